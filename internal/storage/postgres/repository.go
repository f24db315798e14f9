package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/driftline/signalcore/internal/ports"
	"github.com/driftline/signalcore/pkg/models"
)

// Repository implements ports.Repository against Postgres, grounded on the
// teacher's internal/agents/repository.go and internal/risk/repository.go:
// one struct wrapping *sqlx.DB, context-scoped query methods, fmt.Errorf
// wrapping on every failure path.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db.conn}
}

func (r *Repository) ListActiveAgents(ctx context.Context) ([]models.AgentConfig, error) {
	query := `
		SELECT id, wallet_address, strategy, chain, status, max_position_size,
		       max_daily_trades, daily_trades_used, stop_loss_percent,
		       take_profit_percent, risk_level, total_trades, win_rate,
		       total_pnl, last_trade_at
		FROM agent_configs
		WHERE status = $1
	`

	var agents []models.AgentConfig
	if err := r.db.SelectContext(ctx, &agents, query, models.AgentStatusRunning); err != nil {
		return nil, fmt.Errorf("failed to list active agents: %w", err)
	}
	return agents, nil
}

func (r *Repository) GetAgent(ctx context.Context, id string) (*models.AgentConfig, error) {
	query := `
		SELECT id, wallet_address, strategy, chain, status, max_position_size,
		       max_daily_trades, daily_trades_used, stop_loss_percent,
		       take_profit_percent, risk_level, total_trades, win_rate,
		       total_pnl, last_trade_at
		FROM agent_configs
		WHERE id = $1
	`

	var agent models.AgentConfig
	if err := r.db.GetContext(ctx, &agent, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("agent not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	return &agent, nil
}

func (r *Repository) UpdateAgent(ctx context.Context, agent *models.AgentConfig) error {
	query := `
		UPDATE agent_configs
		SET status = $1, daily_trades_used = $2, total_trades = $3,
		    win_rate = $4, total_pnl = $5, last_trade_at = $6
		WHERE id = $7
	`

	result, err := r.db.ExecContext(ctx, query,
		agent.Status, agent.DailyTradesUsed, agent.TotalTrades,
		agent.WinRate, agent.TotalPnl, agent.LastTradeAt, agent.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update agent: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("agent not found: %s", agent.ID)
	}
	return nil
}

func (r *Repository) ListOpenPositionsByAgent(ctx context.Context, agentID string) ([]models.AgentPosition, error) {
	query := `
		SELECT id, agent_id, token_id, token_address, token_symbol, chain, side,
		       size, avg_entry_price, current_price, highest_price,
		       stop_loss_price, take_profit_price, trailing_stop_price,
		       realized_pnl, unrealized_pnl, unrealized_pnl_percent, status,
		       tier_reached, opened_at, closed_at
		FROM agent_positions
		WHERE agent_id = $1 AND status = $2
		ORDER BY opened_at
	`

	var positions []models.AgentPosition
	if err := r.db.SelectContext(ctx, &positions, query, agentID, models.PositionOpen); err != nil {
		return nil, fmt.Errorf("failed to list open positions: %w", err)
	}
	return positions, nil
}

func (r *Repository) GetPosition(ctx context.Context, id string) (*models.AgentPosition, error) {
	query := `
		SELECT id, agent_id, token_id, token_address, token_symbol, chain, side,
		       size, avg_entry_price, current_price, highest_price,
		       stop_loss_price, take_profit_price, trailing_stop_price,
		       realized_pnl, unrealized_pnl, unrealized_pnl_percent, status,
		       tier_reached, opened_at, closed_at
		FROM agent_positions
		WHERE id = $1
	`

	var position models.AgentPosition
	if err := r.db.GetContext(ctx, &position, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("position not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get position: %w", err)
	}
	return &position, nil
}

func (r *Repository) CreatePosition(ctx context.Context, p *models.AgentPosition) error {
	query := `
		INSERT INTO agent_positions (
			id, agent_id, token_id, token_address, token_symbol, chain, side,
			size, avg_entry_price, current_price, highest_price,
			stop_loss_price, take_profit_price, realized_pnl, status,
			tier_reached, opened_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.AgentID, p.TokenID, p.TokenAddress, p.TokenSymbol, p.Chain, p.Side,
		p.Size, p.AvgEntryPrice, p.CurrentPrice, p.HighestPrice,
		p.StopLossPrice, p.TakeProfitPrice, p.RealizedPnl, p.Status,
		p.TierReached, p.OpenedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create position: %w", err)
	}
	return nil
}

func (r *Repository) UpdatePosition(ctx context.Context, p *models.AgentPosition) error {
	query := `
		UPDATE agent_positions
		SET size = $1, current_price = $2, highest_price = $3,
		    stop_loss_price = $4, take_profit_price = $5,
		    trailing_stop_price = $6, avg_entry_price = $7,
		    realized_pnl = $8, unrealized_pnl = $9, unrealized_pnl_percent = $10,
		    tier_reached = $11
		WHERE id = $12
	`

	_, err := r.db.ExecContext(ctx, query,
		p.Size, p.CurrentPrice, p.HighestPrice,
		p.StopLossPrice, p.TakeProfitPrice, p.TrailingStopPrice, p.AvgEntryPrice,
		p.RealizedPnl, p.UnrealizedPnl, p.UnrealizedPnlPercent,
		p.TierReached, p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update position: %w", err)
	}
	return nil
}

func (r *Repository) CloseAgentPosition(ctx context.Context, id string, exitPrice, realizedPnl float64) error {
	query := `
		UPDATE agent_positions
		SET status = $1, current_price = $2, realized_pnl = $3, closed_at = NOW()
		WHERE id = $4
	`

	_, err := r.db.ExecContext(ctx, query, models.PositionClosed, exitPrice, realizedPnl, id)
	if err != nil {
		return fmt.Errorf("failed to close position: %w", err)
	}
	return nil
}

func (r *Repository) CreateAgentTrade(ctx context.Context, t *models.AgentTrade) error {
	query := `
		INSERT INTO agent_trades (
			id, agent_id, token_id, type, amount, price, total, pnl,
			reasoning, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.AgentID, t.TokenID, t.Type, t.Amount, t.Price, t.Total, t.Pnl,
		t.Reasoning, t.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to record trade: %w", err)
	}
	return nil
}

func (r *Repository) CreateAgentLog(ctx context.Context, l *models.AgentLog) error {
	query := `
		INSERT INTO agent_logs (
			id, agent_id, action, reasoning, tokens_analyzed, decision,
			confidence, market_context, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		l.ID, l.AgentID, l.Action, l.Reasoning, l.TokensAnalyzed, l.Decision,
		l.Confidence, l.MarketContext, l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record agent log: %w", err)
	}
	return nil
}

func (r *Repository) GetAgentTrades(ctx context.Context, agentID string, limit int) ([]models.AgentTrade, error) {
	query := `
		SELECT id, agent_id, token_id, type, amount, price, total, pnl,
		       reasoning, timestamp
		FROM agent_trades
		WHERE agent_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`

	var trades []models.AgentTrade
	if err := r.db.SelectContext(ctx, &trades, query, agentID, limit); err != nil {
		return nil, fmt.Errorf("failed to get agent trades: %w", err)
	}
	return trades, nil
}

func (r *Repository) GetAllSignalPerformance(ctx context.Context) ([]models.SignalPerformance, error) {
	query := `
		SELECT signal, strategy, wins, losses, total_pnl, count, avg_pnl
		FROM signal_performance
	`

	var performance []models.SignalPerformance
	if err := r.db.SelectContext(ctx, &performance, query); err != nil {
		return nil, fmt.Errorf("failed to get signal performance: %w", err)
	}
	return performance, nil
}

// UpsertSignalPerformance folds one trade outcome into a signal's running
// performance row, creating it on first sight.
func (r *Repository) UpsertSignalPerformance(ctx context.Context, signal string, strategy models.Strategy, won bool, pnlPercent float64) error {
	wins, losses := 0, 0
	if won {
		wins = 1
	} else {
		losses = 1
	}

	query := `
		INSERT INTO signal_performance (signal, strategy, wins, losses, total_pnl, count, avg_pnl)
		VALUES ($1, $2, $3, $4, $5, 1, $5)
		ON CONFLICT (signal, strategy) DO UPDATE SET
			wins = signal_performance.wins + EXCLUDED.wins,
			losses = signal_performance.losses + EXCLUDED.losses,
			total_pnl = signal_performance.total_pnl + EXCLUDED.total_pnl,
			count = signal_performance.count + 1,
			avg_pnl = (signal_performance.total_pnl + EXCLUDED.total_pnl) / (signal_performance.count + 1)
	`

	_, err := r.db.ExecContext(ctx, query, signal, strategy, wins, losses, pnlPercent)
	if err != nil {
		return fmt.Errorf("failed to upsert signal performance: %w", err)
	}
	return nil
}

func (r *Repository) HasActivePromoAccess(ctx context.Context, userID string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM promo_access
			WHERE user_id = $1 AND expires_at > NOW()
		)
	`

	var active bool
	if err := r.db.GetContext(ctx, &active, query, userID); err != nil {
		return false, fmt.Errorf("failed to check promo access: %w", err)
	}
	return active, nil
}

func (r *Repository) GetUserActiveSubscription(ctx context.Context, userID string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM subscriptions
			WHERE user_id = $1 AND status = 'active' AND current_period_end > NOW()
		)
	`

	var active bool
	if err := r.db.GetContext(ctx, &active, query, userID); err != nil {
		return false, fmt.Errorf("failed to check active subscription: %w", err)
	}
	return active, nil
}

func (r *Repository) GetUserSubscriptionIncludingGrace(ctx context.Context, userID string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM subscriptions
			WHERE user_id = $1
			  AND status IN ('active', 'grace_period')
			  AND grace_period_end > NOW()
		)
	`

	var active bool
	if err := r.db.GetContext(ctx, &active, query, userID); err != nil {
		return false, fmt.Errorf("failed to check grace-period subscription: %w", err)
	}
	return active, nil
}

func (r *Repository) GetUserIDByWallet(ctx context.Context, walletAddress string) (string, error) {
	query := `SELECT user_id FROM user_wallets WHERE wallet_address = $1`

	var userID string
	if err := r.db.GetContext(ctx, &userID, query, walletAddress); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("failed to resolve wallet to user: %w", err)
	}
	return userID, nil
}

// GetTokenSnapshot implements ports.TokenSnapshotSource, the Signal
// Builder's fallback seed for a token it has previously recorded but whose
// live data sources are currently silent. A nil result with a nil error
// means no prior snapshot exists, not an error.
func (r *Repository) GetTokenSnapshot(ctx context.Context, address string, chain models.Chain) (*ports.DatabaseTokenSnapshot, error) {
	query := `
		SELECT chain, address, symbol, price, holders, safety_score,
		       dev_percent, top_holder_percent, first_seen_at
		FROM token_snapshots
		WHERE address = $1 AND chain = $2
	`

	var row struct {
		Chain            string    `db:"chain"`
		Address          string    `db:"address"`
		Symbol           string    `db:"symbol"`
		Price            float64   `db:"price"`
		Holders          int       `db:"holders"`
		SafetyScore      float64   `db:"safety_score"`
		DevPercent       float64   `db:"dev_percent"`
		TopHolderPercent float64   `db:"top_holder_percent"`
		FirstSeenAt      time.Time `db:"first_seen_at"`
	}

	if err := r.db.GetContext(ctx, &row, query, address, string(chain)); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get token snapshot: %w", err)
	}

	return &ports.DatabaseTokenSnapshot{
		Chain:            chain,
		Address:          row.Address,
		Symbol:           row.Symbol,
		Price:            row.Price,
		Holders:          row.Holders,
		SafetyScore:      row.SafetyScore,
		DevPercent:       row.DevPercent,
		TopHolderPercent: row.TopHolderPercent,
		Age:              time.Since(row.FirstSeenAt),
	}, nil
}

var _ ports.Repository = (*Repository)(nil)
var _ ports.TokenSnapshotSource = (*Repository)(nil)
