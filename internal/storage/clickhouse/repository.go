package clickhouse

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/driftline/signalcore/pkg/logger"
	"github.com/driftline/signalcore/pkg/models"
)

// Repository batch-inserts the append-only ClickHouse mirror tables.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// SaveTrades mirrors a batch of already-persisted trades into
// agent_trades_mirror.
func (r *Repository) SaveTrades(ctx context.Context, trades []models.AgentTrade) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	stmt, err := tx.Preparex(`
		INSERT INTO agent_trades_mirror
		(id, agent_id, token_id, type, amount, price, total, pnl, reasoning, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, t := range trades {
		tokenID := ""
		if t.TokenID != nil {
			tokenID = *t.TokenID
		}

		_, err = stmt.ExecContext(ctx,
			t.ID, t.AgentID, tokenID, string(t.Type),
			t.Amount, t.Price, t.Total, t.Pnl, t.Reasoning, t.Timestamp,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert trade: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	logger.Debug("mirrored trades to clickhouse", zap.Int("count", len(trades)))
	return nil
}

// SaveLogs mirrors a batch of already-persisted agent decision logs into
// agent_logs_mirror.
func (r *Repository) SaveLogs(ctx context.Context, logs []models.AgentLog) error {
	if len(logs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	stmt, err := tx.Preparex(`
		INSERT INTO agent_logs_mirror
		(id, agent_id, action, reasoning, tokens_analyzed, decision, confidence, market_context, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, l := range logs {
		marketContext := ""
		if l.MarketContext != nil {
			marketContext = *l.MarketContext
		}

		_, err = stmt.ExecContext(ctx,
			l.ID, l.AgentID, string(l.Action), l.Reasoning, l.TokensAnalyzed,
			l.Decision, l.Confidence, marketContext, l.CreatedAt,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert log: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	logger.Debug("mirrored agent logs to clickhouse", zap.Int("count", len(logs)))
	return nil
}
