package runner

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/driftline/signalcore/internal/ports"
	"github.com/driftline/signalcore/pkg/logger"
	"github.com/driftline/signalcore/pkg/models"
)

// recentTokenLosses is an in-memory, per-agent record of tokens that just
// produced a losing exit, used by the entry gate's recent-loss-on-token
// rule. It is deliberately process-local and not persisted: a restarted
// process simply re-learns this from the next losing exit, the same way
// Tracker's win/loss streak state is rebuilt rather than restored.
type recentTokenLosses struct {
	mu  sync.Mutex
	at  map[string]map[models.TokenKey]time.Time
}

func newRecentTokenLosses() *recentTokenLosses {
	return &recentTokenLosses{at: make(map[string]map[models.TokenKey]time.Time)}
}

const recentLossWindow = 6 * time.Hour

func (l *recentTokenLosses) record(agentID string, key models.TokenKey, when time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	byToken, ok := l.at[agentID]
	if !ok {
		byToken = make(map[models.TokenKey]time.Time)
		l.at[agentID] = byToken
	}
	byToken[key] = when
}

func (l *recentTokenLosses) active(agentID string, key models.TokenKey, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	byToken, ok := l.at[agentID]
	if !ok {
		return false
	}
	at, ok := byToken[key]
	return ok && now.Sub(at) < recentLossWindow
}

func (r *Runner) hasRecentLossOnToken(agentID string, key models.TokenKey, now time.Time) bool {
	if r.recentLosses == nil {
		return false
	}
	return r.recentLosses.active(agentID, key, now)
}

// executeBuy runs the final sizing/gate check and, if allowed, opens or
// adds to a position.
func (r *Runner) executeBuy(ctx context.Context, agent *models.AgentConfig, decision models.Decision, target models.TokenSignal, openPositions []models.AgentPosition, cycleSignals []models.TokenSignal) {
	thresholds := r.Tracker.GetAdaptiveEntryThresholds(agent.ID, agent.Strategy, time.Now())
	verdict := r.evaluateBuyGate(*agent, decision, target, openPositions, cycleSignals, thresholds, time.Now())
	if !verdict.Allowed {
		r.logCycle(ctx, agent.ID, models.ActionBlocked, verdict.Reason, 0, string(decision.Action), decision.Confidence)
		return
	}

	amount := verdict.Amount
	now := time.Now()

	var existing *models.AgentPosition
	for i := range openPositions {
		if openPositions[i].Chain == target.Chain && openPositions[i].TokenAddress == target.Address {
			existing = &openPositions[i]
			break
		}
	}

	dynSL := agent.StopLossPercent
	if target.DynamicStopLoss > 0 {
		dynSL = target.DynamicStopLoss
	}
	dynTP := agent.TakeProfitPercent
	if target.DynamicTakeProfit > 0 {
		dynTP = target.DynamicTakeProfit
	}

	if existing != nil {
		totalCost := existing.Size*existing.AvgEntryPrice + amount*target.Price
		totalSize := existing.Size + amount
		existing.AvgEntryPrice = totalCost / totalSize
		existing.Size = totalSize
		existing.CurrentPrice = target.Price
		existing.UpdateHighest(target.Price)
		existing.StopLossPrice = existing.AvgEntryPrice * (1 - dynSL/100)
		existing.TakeProfitPrice = existing.AvgEntryPrice * (1 + dynTP/100)
		if err := r.Repo.UpdatePosition(ctx, existing); err != nil {
			logger.Error("failed to update position on add-to-buy", zap.String("agent", agent.ID), zap.Error(err))
			return
		}
	} else {
		pos := &models.AgentPosition{
			ID:              newID(),
			AgentID:         agent.ID,
			TokenAddress:    target.Address,
			TokenSymbol:     target.Symbol,
			Chain:           target.Chain,
			Side:            "long",
			Size:            amount,
			AvgEntryPrice:   target.Price,
			CurrentPrice:    target.Price,
			HighestPrice:    target.Price,
			StopLossPrice:   target.Price * (1 - dynSL/100),
			TakeProfitPrice: target.Price * (1 + dynTP/100),
			Status:          models.PositionOpen,
			OpenedAt:        now,
		}
		if err := r.Repo.CreatePosition(ctx, pos); err != nil {
			logger.Error("failed to create position", zap.String("agent", agent.ID), zap.Error(err))
			return
		}
	}

	trade := &models.AgentTrade{
		ID:        newID(),
		AgentID:   agent.ID,
		Type:      models.TradeBuy,
		Amount:    amount,
		Price:     target.Price,
		Total:     amount * target.Price,
		Reasoning: decision.Reasoning,
		Timestamp: now,
	}
	if err := r.Repo.CreateAgentTrade(ctx, trade); err != nil {
		logger.Error("failed to record buy trade", zap.String("agent", agent.ID), zap.Error(err))
	}
	if r.Mirror != nil {
		r.Mirror.AddTrade(*trade)
	}

	agent.DailyTradesUsed++
	agent.LastTradeAt = &now
	if err := r.Repo.UpdateAgent(ctx, agent); err != nil {
		logger.Error("failed to update agent after buy", zap.String("agent", agent.ID), zap.Error(err))
	}

	r.Broadcaster.Broadcast(ctx, ports.Event{Kind: ports.EventAgentTrade, Data: trade})
}

// executeSell closes or trims the position matching the decision's token,
// via an oracle sell decision. Counts against the daily trade limit.
func (r *Runner) executeSell(ctx context.Context, agent *models.AgentConfig, decision models.Decision, target models.TokenSignal, openPositions []models.AgentPosition) {
	var pos *models.AgentPosition
	for i := range openPositions {
		if openPositions[i].Chain == target.Chain && openPositions[i].TokenAddress == target.Address {
			pos = &openPositions[i]
			break
		}
	}
	if pos == nil {
		r.logCycle(ctx, agent.ID, models.ActionSkipped, "sell decision on a token with no open position", 0, string(decision.Action), decision.Confidence)
		return
	}

	sellAmount := decision.Amount
	if sellAmount <= 0 || sellAmount > pos.Size {
		sellAmount = pos.Size
	}

	r.finalizeSell(ctx, agent, pos, target, sellAmount, decision.Reasoning, true)
}

// finalizeSell is the shared close/trim settlement path for both
// oracle-driven sells and Position Manager exit-rule triggers. A close is
// "full" once the sell amount reaches 95% of the position's current size —
// the remaining dust is swept rather than left open. incrementDailyTrades
// is false for risk-management exits, which are not new trading decisions
// the agent's daily-trade cap is meant to throttle.
func (r *Runner) finalizeSell(ctx context.Context, agent *models.AgentConfig, pos *models.AgentPosition, target models.TokenSignal, sellAmount float64, reasoning string, incrementDailyTrades bool) {
	now := time.Now()
	realizedPnl := (target.Price - pos.AvgEntryPrice) * sellAmount
	fullClose := sellAmount >= 0.95*pos.Size

	if fullClose {
		if err := r.Repo.CloseAgentPosition(ctx, pos.ID, target.Price, pos.RealizedPnl+realizedPnl); err != nil {
			logger.Error("failed to close position", zap.String("agent", agent.ID), zap.Error(err))
			return
		}
		pnlPercent := pos.PnLPercent()
		if store := r.Learning[agent.Strategy]; store != nil {
			store.RecordTradeExit(ctx, target.Signals, pos.AvgEntryPrice, target.Price)
		}
		r.Tracker.RecordTradeExit(agent.ID, pnlPercent, now)
		if realizedPnl < 0 {
			r.Cooldown.Trigger(agent.ID, now.Add(30*time.Minute))
			if r.recentLosses != nil {
				r.recentLosses.record(agent.ID, models.TokenKey{Chain: pos.Chain, Address: pos.TokenAddress}, now)
			}
		}
		applyClosedTradeToTotals(agent, realizedPnl, pnlPercent > 0)
	} else {
		pos.Size -= sellAmount
		pos.RealizedPnl += realizedPnl
		pos.CurrentPrice = target.Price
		if err := r.Repo.UpdatePosition(ctx, pos); err != nil {
			logger.Error("failed to update position after partial sell", zap.String("agent", agent.ID), zap.Error(err))
			return
		}
	}

	trade := &models.AgentTrade{
		ID:        newID(),
		AgentID:   agent.ID,
		Type:      models.TradeSell,
		Amount:    sellAmount,
		Price:     target.Price,
		Total:     sellAmount * target.Price,
		Pnl:       realizedPnl,
		Reasoning: reasoning,
		Timestamp: now,
	}
	if err := r.Repo.CreateAgentTrade(ctx, trade); err != nil {
		logger.Error("failed to record sell trade", zap.String("agent", agent.ID), zap.Error(err))
	}
	if r.Mirror != nil {
		r.Mirror.AddTrade(*trade)
	}

	if incrementDailyTrades {
		agent.DailyTradesUsed++
	}
	agent.LastTradeAt = &now
	if err := r.Repo.UpdateAgent(ctx, agent); err != nil {
		logger.Error("failed to update agent after sell", zap.String("agent", agent.ID), zap.Error(err))
	}

	r.Broadcaster.Broadcast(ctx, ports.Event{Kind: ports.EventAgentTrade, Data: trade})
}

// applyClosedTradeToTotals folds one closed trade's outcome into the
// agent's running totals and win rate; the caller persists the agent in
// the same UpdateAgent call that records the trade timestamp.
func applyClosedTradeToTotals(agent *models.AgentConfig, realizedPnl float64, won bool) {
	wins := agent.WinRate * float64(agent.TotalTrades)
	agent.TotalTrades++
	if won {
		wins++
	}
	agent.WinRate = wins / float64(agent.TotalTrades)
	agent.TotalPnl += realizedPnl
}
