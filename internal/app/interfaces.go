package app

import (
	"context"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/talkincode/catalog/config"
	"github.com/talkincode/catalog/internal/imagestore"
	"github.com/talkincode/catalog/internal/repository"
)

// DBProvider provides database access
type DBProvider interface {
	DB() *gorm.DB
}

// ConfigProvider provides application configuration
type ConfigProvider interface {
	Config() *config.AppConfig
}

// SchedulerProvider provides task scheduling capability
type SchedulerProvider interface {
	Scheduler() *cron.Cron
}

// RepositoryProvider provides the catalog repositories
type RepositoryProvider interface {
	ProductRepo() repository.ProductRepository
	CategoryRepo() repository.CategoryRepository
}

// ImageStoreProvider provides the product image storage
type ImageStoreProvider interface {
	ImageStore() *imagestore.Store
}

// AppContext combines all provider interfaces for full application context
// Services should depend on specific providers or this combined interface
type AppContext interface {
	DBProvider
	ConfigProvider
	SchedulerProvider
	RepositoryProvider
	ImageStoreProvider

	MigrateDB(track bool) error
	// SweepImages removes image files no product references
	SweepImages(ctx context.Context) ([]string, error)
}
