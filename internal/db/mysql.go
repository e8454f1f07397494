package db

import (
	"context"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/jmehdipour/leadsite/internal/config"
)

// NewMySQLConnection opens the lead store database with the configured pool and
// pings it once.
func NewMySQLConnection(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("empty MySQL DSN")
	}
	return open("mysql", cfg, 5*time.Second)
}

// open applies the pool settings shared by every sqlx-backed store.
func open(driver string, cfg config.DatabaseConfig, defaultPing time.Duration) (*sqlx.DB, error) {
	db, err := sqlx.Open(driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = defaultPing
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	return db, nil
}
