package domain

import "time"

// Category groups products. Rows are owned by the catalog administration,
// this service only reads them.
type Category struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"size:100;uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns table name
func (Category) TableName() string {
	return "categories"
}
