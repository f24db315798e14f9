package models

import "time"

// PositionStatus is the lifecycle state of an agent position.
type PositionStatus string

const (
	PositionOpen   PositionStatus = "open"
	PositionClosed PositionStatus = "closed"
)

// AgentPosition is a persisted open or closed position held by an agent.
// Side is always "long" — the core only ever opens long positions.
type AgentPosition struct {
	ID                 string         `db:"id" json:"id"`
	AgentID            string         `db:"agent_id" json:"agentId"`
	TokenID             *string        `db:"token_id" json:"tokenId,omitempty"`
	TokenAddress        string         `db:"token_address" json:"tokenAddress"`
	TokenSymbol         string         `db:"token_symbol" json:"tokenSymbol"`
	Chain               Chain          `db:"chain" json:"chain"`
	Side                string         `db:"side" json:"side"` // always "long"
	Size                float64        `db:"size" json:"size"`
	AvgEntryPrice       float64        `db:"avg_entry_price" json:"avgEntryPrice"`
	CurrentPrice        float64        `db:"current_price" json:"currentPrice"`
	HighestPrice        float64        `db:"highest_price" json:"highestPrice"`
	StopLossPrice       float64        `db:"stop_loss_price" json:"stopLossPrice"`
	TakeProfitPrice     float64        `db:"take_profit_price" json:"takeProfitPrice"`
	TrailingStopPrice   *float64       `db:"trailing_stop_price" json:"trailingStopPrice,omitempty"`
	RealizedPnl         float64        `db:"realized_pnl" json:"realizedPnl"`
	UnrealizedPnl       float64        `db:"unrealized_pnl" json:"unrealizedPnl"`
	UnrealizedPnlPercent float64       `db:"unrealized_pnl_percent" json:"unrealizedPnlPercent"`
	Status              PositionStatus `db:"status" json:"status"`
	// TierReached is the tiered take-profit counter; it is persisted on the
	// position itself (not ephemeral process state) because a position's
	// tiered take-profit progress must survive process restarts.
	TierReached int        `db:"tier_reached" json:"tierReached"`
	OpenedAt    time.Time  `db:"opened_at" json:"openedAt"`
	ClosedAt    *time.Time `db:"closed_at" json:"closedAt,omitempty"`
}

// PnLPercent returns the unrealized P&L as a percentage of entry price.
func (p *AgentPosition) PnLPercent() float64 {
	if p.AvgEntryPrice <= 0 {
		return 0
	}
	return (p.CurrentPrice - p.AvgEntryPrice) / p.AvgEntryPrice * 100
}

// UpdateHighest folds a new observed price into the monotonically
// non-decreasing highest-price-while-open watermark.
func (p *AgentPosition) UpdateHighest(price float64) {
	if price > p.HighestPrice {
		p.HighestPrice = price
	}
}
