package db

import (
	"fmt"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/jmoiron/sqlx"

	"github.com/jmehdipour/leadsite/internal/config"
)

// NewClickHouseConnection opens the reports store. The DSN looks like
// clickhouse://default:@localhost:9000/leadsite?dial_timeout=5s&compress=true
func NewClickHouseConnection(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("empty ClickHouse DSN")
	}
	return open("clickhouse", cfg, 3*time.Second)
}
