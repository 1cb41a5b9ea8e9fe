package app

import (
	"context"
	"os"
	"runtime/debug"
	"time"
	_ "time/tzdata"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm"

	"github.com/talkincode/catalog/config"
	"github.com/talkincode/catalog/internal/domain"
	"github.com/talkincode/catalog/internal/imagestore"
	"github.com/talkincode/catalog/internal/repository"
)

type Application struct {
	appConfig  *config.AppConfig
	gormDB     *gorm.DB
	sched      *cron.Cron
	images     *imagestore.Store
	products   *repository.GormProductRepository
	categories *repository.GormCategoryRepository
}

// Ensure Application implements all interfaces
var (
	_ DBProvider         = (*Application)(nil)
	_ ConfigProvider     = (*Application)(nil)
	_ SchedulerProvider  = (*Application)(nil)
	_ RepositoryProvider = (*Application)(nil)
	_ ImageStoreProvider = (*Application)(nil)
	_ AppContext         = (*Application)(nil)
)

func NewApplication(appConfig *config.AppConfig) *Application {
	return &Application{appConfig: appConfig}
}

func (a *Application) Config() *config.AppConfig {
	return a.appConfig
}

func (a *Application) DB() *gorm.DB {
	return a.gormDB
}

// OverrideDB replaces the application's database handle (used in tests).
func (a *Application) OverrideDB(db *gorm.DB) {
	a.gormDB = db
	a.products = repository.NewGormProductRepository(db)
	a.categories = repository.NewGormCategoryRepository(db)
}

func (a *Application) ProductRepo() repository.ProductRepository {
	return a.products
}

func (a *Application) CategoryRepo() repository.CategoryRepository {
	return a.categories
}

func (a *Application) ImageStore() *imagestore.Store {
	return a.images
}

// Scheduler returns the cron scheduler
func (a *Application) Scheduler() *cron.Cron {
	return a.sched
}

// InitLogger installs the global zap logger
func InitLogger(cfg config.LogConfig) error {
	var zapConfig zap.Config
	if cfg.Mode == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.OutputPaths = []string{"stdout"}

	var logger *zap.Logger
	if cfg.FileEnable {
		lumberJackLogger := &lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    64,
			MaxBackups: 7,
			MaxAge:     7,
			Compress:   false,
		}

		core := zapcore.NewTee(
			zapcore.NewCore(
				zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
				zapcore.AddSync(lumberJackLogger),
				zapConfig.Level,
			),
			zapcore.NewCore(
				zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
				zapcore.AddSync(os.Stdout),
				zapConfig.Level,
			),
		)
		logger = zap.New(core, zap.AddCaller())
	} else {
		var err error
		logger, err = zapConfig.Build(zap.AddCaller())
		if err != nil {
			return errors.Wrap(err, "build logger")
		}
	}

	zap.ReplaceGlobals(logger)
	return nil
}

// Init sets up logging, the database connection and image storage. Schema
// migration and jobs are started separately.
func (a *Application) Init() error {
	cfg := a.appConfig
	loc, err := time.LoadLocation(cfg.System.Location)
	if err != nil {
		zap.S().Error("timezone config error")
	} else {
		time.Local = loc
	}

	if err := InitLogger(cfg.Logger); err != nil {
		return err
	}

	db, err := getDatabase(cfg.Database, cfg.System.Workdir)
	if err != nil {
		return err
	}
	a.OverrideDB(db)
	zap.S().Infof("Database connection successful, type: %s", cfg.Database.Type)

	a.images, err = imagestore.New(cfg.GetImagesDir())
	if err != nil {
		return err
	}
	zap.S().Infof("Image storage root: %s", a.images.Root)
	return nil
}

// OverrideImages replaces the image storage (used in tests).
func (a *Application) OverrideImages(s *imagestore.Store) {
	a.images = s
}

func (a *Application) MigrateDB(track bool) (err error) {
	defer func() {
		if err1 := recover(); err1 != nil {
			if os.Getenv("GO_DEGUB_TRACE") != "" {
				debug.PrintStack()
			}
			err2, ok := err1.(error)
			if ok {
				err = err2
				zap.S().Error(err2.Error())
			}
		}
	}()
	db := a.gormDB
	if track {
		db = db.Debug()
	}
	if err := db.Migrator().AutoMigrate(domain.Tables...); err != nil {
		return errors.Wrap(err, "migrate database")
	}
	if a.appConfig.Database.Seed {
		a.checkCategories()
	}
	return nil
}

// SweepImages removes stored images no product references and that are older
// than the configured grace period
func (a *Application) SweepImages(ctx context.Context) ([]string, error) {
	referenced, err := a.products.ImageNames(ctx)
	if err != nil {
		return nil, err
	}
	removed, err := a.images.Sweep(referenced, a.appConfig.Upload.SweepGrace)
	if err != nil {
		return nil, err
	}
	if len(removed) > 0 {
		zap.L().Info("removed orphan images", zap.Int("count", len(removed)), zap.Strings("names", removed))
	}
	return removed, nil
}

// Release releases application resources
func (a *Application) Release() {
	if a.sched != nil {
		<-a.sched.Stop().Done()
	}
	if a.gormDB != nil {
		if sqlDB, err := a.gormDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	_ = zap.L().Sync()
}
