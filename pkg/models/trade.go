package models

import "time"

// TradeType is buy or sell, for the append-only trade ledger.
type TradeType string

const (
	TradeBuy  TradeType = "buy"
	TradeSell TradeType = "sell"
)

// AgentTrade is a single, append-only fill record.
type AgentTrade struct {
	ID        string    `db:"id" json:"id"`
	AgentID   string    `db:"agent_id" json:"agentId"`
	TokenID   *string   `db:"token_id" json:"tokenId,omitempty"`
	Type      TradeType `db:"type" json:"type"`
	Amount    float64   `db:"amount" json:"amount"`
	Price     float64   `db:"price" json:"price"`
	Total     float64   `db:"total" json:"total"` // amount * price
	Pnl       float64   `db:"pnl" json:"pnl"`
	Reasoning string    `db:"reasoning" json:"reasoning"`
	Timestamp time.Time `db:"timestamp" json:"timestamp"`
}

// AgentAction is the closed set of things an AgentLog entry can record.
type AgentAction string

const (
	ActionBuy      AgentAction = "buy"
	ActionSell     AgentAction = "sell"
	ActionHold     AgentAction = "hold"
	ActionBlocked  AgentAction = "blocked"
	ActionSkipped  AgentAction = "skipped"
	ActionError    AgentAction = "error"
	ActionStopped  AgentAction = "stopped"
)

// AgentLog is an append-only telemetry record of one cycle's outcome for one
// agent.
type AgentLog struct {
	ID             string      `db:"id" json:"id"`
	AgentID        string      `db:"agent_id" json:"agentId"`
	Action         AgentAction `db:"action" json:"action"`
	Reasoning      string      `db:"reasoning" json:"reasoning"`
	TokensAnalyzed int         `db:"tokens_analyzed" json:"tokensAnalyzed"`
	Decision       string      `db:"decision" json:"decision"`
	Confidence     int         `db:"confidence" json:"confidence"`
	MarketContext  *string     `db:"market_context" json:"marketContext,omitempty"`
	CreatedAt      time.Time   `db:"created_at" json:"createdAt"`
}
