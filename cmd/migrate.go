package cmd

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jmehdipour/leadsite/internal/db"
	"github.com/jmehdipour/leadsite/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the MySQL leads table and the ClickHouse lead_events table",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := zap.L().Named("migrate")
		ran := 0

		if cfg.Store.Backend == "mysql" {
			sqlDB, err := db.NewMySQLConnection(cfg.MySQL)
			if err != nil {
				return fmt.Errorf("open mysql: %w", err)
			}
			defer sqlDB.Close()

			if err := apply(cmd.Context(), sqlDB, "mysql"); err != nil {
				return err
			}
			log.Info("mysql schema ready")
			ran++
		}

		if cfg.ClickHouse.DSN != "" {
			chDB, err := db.NewClickHouseConnection(cfg.ClickHouse)
			if err != nil {
				return fmt.Errorf("open clickhouse: %w", err)
			}
			defer chDB.Close()

			if err := apply(cmd.Context(), chDB, "clickhouse"); err != nil {
				return err
			}
			log.Info("clickhouse schema ready")
			ran++
		}

		if ran == 0 {
			log.Info("nothing to migrate: store backend is not mysql and clickhouse dsn is empty")
			return nil
		}
		fmt.Println(">> Migration complete ✅")
		return nil
	},
}

func apply(ctx context.Context, dbx *sqlx.DB, dir string) error {
	stmts, err := migrations.Statements(dir)
	if err != nil {
		return fmt.Errorf("read %s migrations: %w", dir, err)
	}
	for i, stmt := range stmts {
		if _, err := dbx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %s migration #%d: %w", dir, i+1, err)
		}
	}
	return nil
}
