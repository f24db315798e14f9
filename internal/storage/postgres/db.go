// Package postgres implements ports.Repository against a Postgres database
// via sqlx and lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/driftline/signalcore/internal/config"
	"github.com/driftline/signalcore/pkg/logger"
)

// DB wraps the pooled Postgres connection used by Repository.
type DB struct {
	conn *sqlx.DB
}

// Open connects to Postgres, tunes the connection pool, and verifies
// reachability before returning.
func Open(cfg config.DatabaseConfig) (*DB, error) {
	conn, err := sqlx.Connect("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Name),
	)

	return &DB{conn: conn}, nil
}

// Close closes the underlying connection pool.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	logger.Info("closing database connection")
	return db.conn.Close()
}

// Conn returns the underlying *sql.DB, for migration tooling.
func (db *DB) Conn() *sql.DB { return db.conn.DB }

// WrapForTest builds a DB around an already-open connection, for
// integration tests that manage their own connection lifecycle.
func WrapForTest(conn *sqlx.DB) *DB { return &DB{conn: conn} }

// Health pings the database with a short timeout, for the readiness probe.
func (db *DB) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}
