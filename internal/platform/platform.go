// Package platform opens the database behind the feature store and the
// model registry.
package platform

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	mysqldsn "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/i474232898/aqi-forecast/internal/featurestore"
	"github.com/i474232898/aqi-forecast/internal/registry"
)

// ErrMissingCredential is returned by Login when no API key was supplied.
var ErrMissingCredential = errors.New("platform api key is required")

// Config selects the database driver and connection string.
type Config struct {
	Driver string `validate:"oneof=sqlite mysql postgres memory"`
	DSN    string
}

// Project is an authenticated connection to the platform database.
type Project struct {
	db *gorm.DB
}

// Login opens the configured database. For mysql and postgres the API key is
// used as the database password; the DSN must not carry one.
func Login(ctx context.Context, cfg Config, apiKey string) (*Project, error) {
	if apiKey == "" {
		return nil, ErrMissingCredential
	}

	dialector, err := dialectorFor(cfg, apiKey)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			logger.Config{
				SlowThreshold: time.Second,
				LogLevel:      logger.Warn,
				Colorful:      false,
			},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get database handle: %w", err)
	}
	if cfg.Driver == "sqlite" || cfg.Driver == "memory" {
		// sqlite allows a single writer; background inserts share one connection.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(25)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping %s database: %w", cfg.Driver, err)
	}

	log.Printf("INFO: connected to %s platform database", cfg.Driver)
	return &Project{db: db}, nil
}

func dialectorFor(cfg Config, apiKey string) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "aqi-platform.db"
		}
		return sqlite.Open(dsn), nil
	case "memory":
		return sqlite.Open("file::memory:?cache=shared"), nil
	case "mysql":
		parsed, err := mysqldsn.ParseDSN(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("invalid mysql dsn: %w", err)
		}
		parsed.Passwd = apiKey
		parsed.ParseTime = true
		return mysql.Open(parsed.FormatDSN()), nil
	case "postgres":
		if strings.Contains(cfg.DSN, "://") {
			return nil, fmt.Errorf("postgres dsn must use key=value form")
		}
		return postgres.Open(strings.TrimSpace(cfg.DSN) + " password=" + apiKey), nil
	default:
		return nil, fmt.Errorf("unsupported platform driver %q", cfg.Driver)
	}
}

// FeatureStore returns the project's feature store.
func (p *Project) FeatureStore() (*featurestore.GormStore, error) {
	return featurestore.NewGormStore(p.db)
}

// ModelRegistry returns the project's model registry with artifacts under dir.
func (p *Project) ModelRegistry(dir string) (*registry.Registry, error) {
	return registry.New(p.db, dir)
}

// Close releases the database connection.
func (p *Project) Close() {
	if sqlDB, err := p.db.DB(); err == nil {
		sqlDB.Close()
	}
}
