// Package config loads the catalog service configuration.
//
// Values are resolved in three layers: built-in defaults, an optional yaml
// file, then environment variables such as CATALOG_WEB_PORT or
// CATALOG_DATABASE_MAX_CONN (a .env file in the working directory is loaded
// first when present).
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/labstack/gommon/bytes"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "CATALOG"

// SysConfig system config
type SysConfig struct {
	Appid    string `yaml:"appid"`
	Location string `yaml:"location"`
	Workdir  string `yaml:"workdir"`
	Debug    bool   `yaml:"debug"`
}

// WebConfig http server config
type WebConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Prefix          string        `yaml:"prefix"`
	Secret          string        `yaml:"secret"` // jwt signing key; write routes are open when empty
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true"`
}

// DBConfig database config
type DBConfig struct {
	Type     string `yaml:"type"` // postgres, mysql or sqlite
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Passwd   string `yaml:"passwd"`
	MaxConn  int    `yaml:"max_conn" split_words:"true"`
	IdleConn int    `yaml:"idle_conn" split_words:"true"`
	Debug    bool   `yaml:"debug"`
	Seed     bool   `yaml:"seed"` // insert demo categories into an empty table
}

// LogConfig logger config
type LogConfig struct {
	Mode       string `yaml:"mode"`
	FileEnable bool   `yaml:"file_enable" split_words:"true"`
	Filename   string `yaml:"filename"`
}

// UploadConfig image storage config
type UploadConfig struct {
	Dir        string        `yaml:"dir"`
	MaxSize    string        `yaml:"max_size" split_words:"true"`
	SweepCron  string        `yaml:"sweep_cron" split_words:"true"` // empty disables the orphan sweep job
	SweepGrace time.Duration `yaml:"sweep_grace" split_words:"true"`
}

type AppConfig struct {
	System   SysConfig    `yaml:"system" envconfig:"SYSTEM"`
	Web      WebConfig    `yaml:"web" envconfig:"WEB"`
	Database DBConfig     `yaml:"database" envconfig:"DATABASE"`
	Logger   LogConfig    `yaml:"logger" envconfig:"LOGGER"`
	Upload   UploadConfig `yaml:"upload" envconfig:"UPLOAD"`
}

// GetImagesDir returns the images root, relative paths resolve against the workdir
func (c *AppConfig) GetImagesDir() string {
	if filepath.IsAbs(c.Upload.Dir) || c.System.Workdir == "" {
		return c.Upload.Dir
	}
	return filepath.Join(c.System.Workdir, c.Upload.Dir)
}

// MaxUploadBytes returns the parsed upload size limit
func (c *AppConfig) MaxUploadBytes() int64 {
	n, err := bytes.Parse(c.Upload.MaxSize)
	if err != nil || n <= 0 {
		return DefaultMaxUploadBytes
	}
	return n
}

const DefaultMaxUploadBytes int64 = 8 << 20

var DefaultAppConfig = &AppConfig{
	System: SysConfig{
		Appid:    "Catalog",
		Location: "UTC",
		Workdir:  "",
		Debug:    false,
	},
	Web: WebConfig{
		Host:            "0.0.0.0",
		Port:            3000,
		ShutdownTimeout: 15 * time.Second,
	},
	Database: DBConfig{
		Type:     "postgres",
		Host:     "127.0.0.1",
		Port:     5432,
		Name:     "catalog",
		User:     "postgres",
		Passwd:   "postgres",
		MaxConn:  100,
		IdleConn: 10,
	},
	Logger: LogConfig{
		Mode:       "development",
		FileEnable: false,
		Filename:   "catalog.log",
	},
	Upload: UploadConfig{
		Dir:        "public/images",
		MaxSize:    "8MB",
		SweepCron:  "",
		SweepGrace: time.Hour,
	},
}

// LoadConfig reads cfile when it exists and applies the environment overlay.
// An empty cfile uses the defaults only.
func LoadConfig(cfile string) (*AppConfig, error) {
	cfg := *DefaultAppConfig

	if cfile != "" {
		data, err := os.ReadFile(cfile)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, errors.Wrapf(err, "parse config %s", cfile)
			}
		case os.IsNotExist(err):
			// defaults + env
		default:
			return nil, errors.Wrapf(err, "read config %s", cfile)
		}
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "load .env")
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, errors.Wrap(err, "process environment")
	}

	if cfg.Upload.MaxSize != "" {
		if _, err := bytes.Parse(cfg.Upload.MaxSize); err != nil {
			return nil, errors.Wrapf(err, "invalid upload.max_size %q", cfg.Upload.MaxSize)
		}
	}
	switch cfg.Database.Type {
	case "postgres", "mysql", "sqlite":
	case "":
		cfg.Database.Type = "postgres"
	default:
		return nil, errors.Errorf("unsupported database type %q", cfg.Database.Type)
	}
	return &cfg, nil
}
