package app

import (
	"go.uber.org/zap"

	"github.com/talkincode/catalog/internal/domain"
)

// defaultCategories are inserted by checkCategories
var defaultCategories = []string{"Accessories", "Books", "Electronics", "Home", "Toys"}

// checkCategories initializes demo categories, existing names are kept
func (a *Application) checkCategories() {
	for _, name := range defaultCategories {
		var count int64
		a.gormDB.Model(&domain.Category{}).Where("name = ?", name).Count(&count)
		if count > 0 {
			continue
		}
		c := domain.Category{Name: name}
		if err := a.gormDB.Create(&c).Error; err != nil {
			zap.L().Error("failed to create default category", zap.String("name", name), zap.Error(err))
		} else {
			zap.L().Info("initialized default category", zap.String("name", name))
		}
	}
}
