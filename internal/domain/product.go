package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a catalog item
type Product struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string          `gorm:"size:200;index;not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Image       string          `gorm:"size:255;not null;default:''" json:"image"` // stored filename under the images root, empty until attached
	CategoryID  int64           `gorm:"index;not null" json:"category_id"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Qty         int             `gorm:"not null;default:0" json:"qty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TableName Specify table name
func (Product) TableName() string {
	return "products"
}

// ProductWithCategory is a product row joined with its category name
type ProductWithCategory struct {
	Product  `gorm:"embedded"`
	Category string `json:"category"`
}
