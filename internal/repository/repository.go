// Package repository holds the gorm backed data access for products and
// categories.
package repository

import (
	"math"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

var (
	ErrNotFound    = errors.New("record not found")
	ErrPersistence = errors.New("persistence failure")
)

// Page is a bounded slice of a result set. Page is the 0-indexed page number.
type Page[T any] struct {
	Results []T   `json:"results"`
	Total   int64 `json:"total"`
	Page    int   `json:"page"`
	Limit   int   `json:"limit"`
}

// maxOffset bounds page*limit so it stays positive on every platform
const maxOffset = math.MaxInt32

// paginate applies offset and limit for a 0-indexed page. Pages past
// maxOffset are clamped and come back empty.
func paginate(page, limit int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if page < 0 {
			page = 0
		}
		if limit > 0 && page > maxOffset/limit {
			page = maxOffset / limit
		}
		return db.Offset(page * limit).Limit(limit)
	}
}

func isPostgres(db *gorm.DB) bool {
	return db.Dialector != nil && db.Dialector.Name() == "postgres"
}
