package models

import "time"

// Strategy is the closed set of agent risk postures.
type Strategy string

const (
	StrategyConservative Strategy = "conservative"
	StrategyBalanced     Strategy = "balanced"
	StrategyAggressive   Strategy = "aggressive"
	StrategyDegen        Strategy = "degen"
)

// AgentStatus is the lifecycle state of an agent.
type AgentStatus string

const (
	AgentStatusRunning             AgentStatus = "running"
	AgentStatusStopped             AgentStatus = "stopped"
	AgentStatusSubscriptionExpired AgentStatus = "subscription_expired"
)

// MaxOpenPositions is the strategy-capped ceiling on concurrent open
// positions for an agent.
func (s Strategy) MaxOpenPositions() int {
	switch s {
	case StrategyConservative:
		return 3
	case StrategyBalanced:
		return 5
	case StrategyAggressive:
		return 8
	case StrategyDegen:
		return 10
	default:
		return 3
	}
}

// RugRiskCap is the strategy-specific ceiling on tolerated rug-risk score.
func (s Strategy) RugRiskCap() float64 {
	switch s {
	case StrategyConservative:
		return 45
	case StrategyBalanced:
		return 60
	case StrategyAggressive:
		return 70
	case StrategyDegen:
		return 70
	default:
		return 45
	}
}

// AgentConfig is the persisted configuration and running totals of one
// agent.
type AgentConfig struct {
	ID                string      `db:"id" json:"id"`
	WalletAddress     string      `db:"wallet_address" json:"walletAddress"`
	Strategy          Strategy    `db:"strategy" json:"strategy"`
	Chain             *Chain      `db:"chain" json:"chain,omitempty"`
	Status            AgentStatus `db:"status" json:"status"`
	MaxPositionSize   float64     `db:"max_position_size" json:"maxPositionSize"`
	MaxDailyTrades    int         `db:"max_daily_trades" json:"maxDailyTrades"`
	DailyTradesUsed   int         `db:"daily_trades_used" json:"dailyTradesUsed"`
	StopLossPercent   float64     `db:"stop_loss_percent" json:"stopLossPercent"`
	TakeProfitPercent float64     `db:"take_profit_percent" json:"takeProfitPercent"`
	RiskLevel         string      `db:"risk_level" json:"riskLevel"`
	TotalTrades       int         `db:"total_trades" json:"totalTrades"`
	WinRate           float64     `db:"win_rate" json:"winRate"`
	TotalPnl          float64     `db:"total_pnl" json:"totalPnl"`
	LastTradeAt       *time.Time  `db:"last_trade_at" json:"lastTradeAt,omitempty"`
}
