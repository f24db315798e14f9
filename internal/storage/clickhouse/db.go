// Package clickhouse mirrors AgentTrade/AgentLog records to ClickHouse for
// historical win-rate queries and replay. It is an append-only read-side
// copy of data already durably written through the Postgres repository —
// never a source of truth, so losing the mirror never risks the
// never-update-a-position-without-a-trade-record invariant.
package clickhouse

import (
	"fmt"

	ch "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/driftline/signalcore/internal/config"
	"github.com/driftline/signalcore/pkg/logger"
)

// Open connects to ClickHouse and verifies reachability before returning.
func Open(cfg config.ClickHouseConfig) (*sqlx.DB, error) {
	sqlDB := ch.OpenDB(&ch.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: ch.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
	})

	db := sqlx.NewDb(sqlDB, "clickhouse")

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	logger.Info("clickhouse connection established",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database),
	)

	return db, nil
}

// Close is a thin wrapper kept for symmetry with internal/storage/postgres's
// lifecycle shape; callers may also call db.Close() directly.
func Close(db *sqlx.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}
