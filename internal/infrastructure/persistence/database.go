package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/wms/shopsync/internal/infrastructure/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database is the process-wide GORM handle and the pool beneath it
type Database struct {
	DB   *gorm.DB
	pool *sql.DB
}

type openOptions struct {
	logger  gormlogger.Interface
	plugins []gorm.Plugin
}

// Option configures Open
type Option func(*openOptions)

// WithLogger routes GORM's own logging, silent by default
func WithLogger(l gormlogger.Interface) Option {
	return func(o *openOptions) { o.logger = l }
}

// WithPlugins installs plugins, such as query tracing, once connected
func WithPlugins(plugins ...gorm.Plugin) Option {
	return func(o *openOptions) { o.plugins = append(o.plugins, plugins...) }
}

// Open connects to PostgreSQL, sizes the pool from cfg and verifies the
// connection before returning
func Open(ctx context.Context, cfg *config.DatabaseConfig, opts ...Option) (*Database, error) {
	o := openOptions{logger: gormlogger.Discard}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:                 o.logger,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		TranslateError:         true,
		DisableAutomaticPing:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	pool, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database pool: %w", err)
	}
	pool.SetMaxOpenConns(cfg.MaxOpenConns)
	pool.SetMaxIdleConns(cfg.MaxIdleConns)
	pool.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	pool.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	d := &Database{DB: db, pool: pool}
	if err := d.Ping(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}
	for _, p := range o.plugins {
		if err := db.Use(p); err != nil {
			_ = pool.Close()
			return nil, fmt.Errorf("install %s plugin: %w", p.Name(), err)
		}
	}
	return d, nil
}

// SQL returns the pool, for tools that need database/sql such as migrations.
// Closing it closes the Database.
func (d *Database) SQL() *sql.DB {
	return d.pool
}

// Ping checks that a connection can be used
func (d *Database) Ping(ctx context.Context) error {
	if err := d.pool.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// Close releases every pooled connection
func (d *Database) Close() error {
	return d.pool.Close()
}
