package runner

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/driftline/signalcore/internal/oracle"
	"github.com/driftline/signalcore/internal/ports"
	"github.com/driftline/signalcore/internal/signals"
	"github.com/driftline/signalcore/pkg/logger"
	"github.com/driftline/signalcore/pkg/models"
)

const (
	minTradeAmount = 0.01
	correlationCapOtherPositions = 2
)

// convictionSizeLadder maps the TokenSignal's own conviction score (already
// adaptive-boosted by the time the rescore pass finishes, via
// learning.Store.ComputeAdaptiveConvictionBoost applied in internal/signals'
// rescore pass) to a fraction of maxPositionSize,
// before the oracle-amount cap and the adaptive/combo multipliers. The
// 65-75 band is pinned to spec.md §8 scenario 1: conviction=70,
// maxPositionSize=1.0 → convictionSize≈0.225.
func convictionSizeLadder(conviction float64) float64 {
	switch {
	case conviction >= 85:
		return 0.40
	case conviction >= 75:
		return 0.30
	case conviction >= 65:
		return 0.225
	case conviction >= 55:
		return 0.15
	default:
		return 0.08
	}
}

// executeAgentCycle runs the full per-agent decision cycle for one tick,
// per spec.md §4.7. It never returns an error: every failure path logs and
// returns, since the calling goroutine has nothing to propagate to.
func (r *Runner) executeAgentCycle(ctx context.Context, agent models.AgentConfig, gr groupResult) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if r.Locks != nil {
		lock := r.Locks.CreateAgentLock(agent.ID)
		acquired, err := lock.TryAcquire(ctx)
		if err != nil {
			logger.Error("failed to acquire distributed agent lock", zap.String("agent", agent.ID), zap.Error(err))
			return
		}
		if !acquired {
			logger.Debug("skipping agent cycle: lock held by another instance", zap.String("agent", agent.ID))
			return
		}
		defer lock.Release(ctx)
	}

	if !r.hasActiveSubscription(ctx, agent) {
		agent.Status = models.AgentStatusSubscriptionExpired
		if err := r.Repo.UpdateAgent(ctx, &agent); err != nil {
			logger.Error("failed to mark agent subscription expired", zap.String("agent", agent.ID), zap.Error(err))
		}
		r.logCycle(ctx, agent.ID, models.ActionStopped, "subscription inactive", 0, "", 0)
		r.Broadcaster.Broadcast(ctx, ports.Event{Kind: ports.EventAgentSubscriptionExpired, Data: agent.ID})
		return
	}

	cycleSignals := gr.signals
	now := time.Now()

	anyClosed, err := r.updateOpenPositions(ctx, &agent, cycleSignals, now)
	if err != nil {
		logger.Error("position update failed", zap.String("agent", agent.ID), zap.Error(err))
	}
	if anyClosed {
		r.Broadcaster.Broadcast(ctx, ports.Event{Kind: ports.EventAgentUpdate, Data: agent.ID})
	}

	current, err := r.Repo.GetAgent(ctx, agent.ID)
	if err != nil {
		logger.Error("failed to re-fetch agent", zap.String("agent", agent.ID), zap.Error(err))
		return
	}
	if current.Status != models.AgentStatusRunning {
		return
	}
	agent = *current

	if agent.DailyTradesUsed >= agent.MaxDailyTrades {
		r.logCycle(ctx, agent.ID, models.ActionBlocked, "daily trade limit reached", len(cycleSignals), "", 0)
		return
	}

	openPositions, err := r.Repo.ListOpenPositionsByAgent(ctx, agent.ID)
	if err != nil {
		logger.Error("failed to list open positions", zap.String("agent", agent.ID), zap.Error(err))
		return
	}

	decision := r.consultOracle(ctx, agent, openPositions, cycleSignals, gr.breadth)
	r.logCycle(ctx, agent.ID, actionFor(decision), decision.Reasoning, len(cycleSignals), string(decision.Action), decision.Confidence)

	if decision.Action == models.DecisionHold || decision.TokenSymbol == "" {
		r.Broadcaster.Broadcast(ctx, ports.Event{Kind: ports.EventAgentUpdate, Data: agent.ID})
		return
	}

	targetSignal, ok := resolveTargetSignal(cycleSignals, decision)
	if !ok || targetSignal.Price <= 0 {
		r.logCycle(ctx, agent.ID, models.ActionSkipped, "target token not found or has no price", len(cycleSignals), string(decision.Action), decision.Confidence)
		return
	}

	if decision.Action == models.DecisionBuy {
		r.executeBuy(ctx, &agent, decision, targetSignal, openPositions, cycleSignals)
		return
	}
	if decision.Action == models.DecisionSell {
		r.executeSell(ctx, &agent, decision, targetSignal, openPositions)
	}
}

func actionFor(d models.Decision) models.AgentAction {
	switch d.Action {
	case models.DecisionBuy:
		return models.ActionBuy
	case models.DecisionSell:
		return models.ActionSell
	default:
		return models.ActionHold
	}
}

func (r *Runner) logCycle(ctx context.Context, agentID string, action models.AgentAction, reasoning string, tokensAnalyzed int, decision string, confidence int) {
	entry := &models.AgentLog{
		ID:             newID(),
		AgentID:        agentID,
		Action:         action,
		Reasoning:      reasoning,
		TokensAnalyzed: tokensAnalyzed,
		Decision:       decision,
		Confidence:     confidence,
		CreatedAt:      time.Now(),
	}
	if err := r.Repo.CreateAgentLog(ctx, entry); err != nil {
		logger.Error("failed to persist agent log", zap.String("agent", agentID), zap.Error(err))
	}
	if r.Mirror != nil {
		r.Mirror.AddLog(*entry)
	}
}

// hasActiveSubscription resolves the agent's wallet to a user and checks
// promo access, then active subscription, then grace-period subscription —
// the first that grants access wins.
func (r *Runner) hasActiveSubscription(ctx context.Context, agent models.AgentConfig) bool {
	userID, err := r.Repo.GetUserIDByWallet(ctx, agent.WalletAddress)
	if err != nil || userID == "" {
		return false
	}
	if ok, err := r.Repo.HasActivePromoAccess(ctx, userID); err == nil && ok {
		return true
	}
	if ok, err := r.Repo.GetUserActiveSubscription(ctx, userID); err == nil && ok {
		return true
	}
	ok, err := r.Repo.GetUserSubscriptionIncludingGrace(ctx, userID)
	return err == nil && ok
}

// resolveTargetSignal finds the decision's token in the cycle's signal set
// by address+chain first, then falls back to a bare symbol match per
// spec.md §4.7.
func resolveTargetSignal(cycleSignals []models.TokenSignal, d models.Decision) (models.TokenSignal, bool) {
	if d.TokenAddress != "" {
		for _, s := range cycleSignals {
			if s.Address == d.TokenAddress && (d.Chain == "" || s.Chain == d.Chain) {
				return s, true
			}
		}
	}
	for _, s := range cycleSignals {
		if s.Symbol == d.TokenSymbol && (d.Chain == "" || s.Chain == d.Chain) {
			return s, true
		}
	}
	for _, s := range cycleSignals {
		if s.Symbol == d.TokenSymbol {
			return s, true
		}
	}
	return models.TokenSignal{}, false
}

// consultOracle assembles the oracle prompt input and returns its decision.
func (r *Runner) consultOracle(ctx context.Context, agent models.AgentConfig, openPositions []models.AgentPosition, cycleSignals []models.TokenSignal, breadth models.MarketBreadth) models.Decision {
	thresholds := r.Tracker.GetAdaptiveEntryThresholds(agent.ID, agent.Strategy, time.Now())

	signalByKey := make(map[models.TokenKey]models.TokenSignal, len(cycleSignals))
	for _, s := range cycleSignals {
		signalByKey[s.Key()] = s
	}

	summaries := make([]oracle.PositionSummary, 0, len(openPositions))
	for _, p := range openPositions {
		sum := oracle.PositionSummary{
			Symbol:        p.TokenSymbol,
			Chain:         p.Chain,
			Size:          p.Size,
			AvgEntryPrice: p.AvgEntryPrice,
			CurrentPrice:  p.CurrentPrice,
			PnLPercent:    p.PnLPercent(),
			HoldHours:     time.Since(p.OpenedAt).Hours(),
			WhaleActivity: models.WhaleNeutral,
		}
		if s, ok := signalByKey[models.TokenKey{Chain: p.Chain, Address: p.TokenAddress}]; ok {
			sum.WhaleActivity = s.WhaleActivity
			sum.ShortTermMomentum = s.ShortTermMomentum
		}
		summaries = append(summaries, sum)
	}

	recentTrades, err := r.Repo.GetAgentTrades(ctx, agent.ID, 5)
	if err != nil {
		logger.Warn("failed to fetch recent trades for oracle context", zap.String("agent", agent.ID), zap.Error(err))
	}

	lossStreakWarning := ""
	if r.Cooldown.Active(agent.ID, time.Now()) {
		lossStreakWarning = "agent is in a post-loss-streak cooldown; avoid new entries unless conviction is exceptional"
	}

	store := r.Learning[agent.Strategy]

	in := oracle.PromptInput{
		Strategy:          agent.Strategy,
		Breadth:           breadth,
		Thresholds:        thresholds,
		Learning:          store,
		Positions:         summaries,
		RankedSignals:     cycleSignals,
		TopBuyCandidates:  signals.GetTopBuySignals(cycleSignals, agent.Strategy),
		RecentTrades:      recentTrades,
		LossStreakWarning: lossStreakWarning,
	}

	return r.OracleAdapter.Decide(ctx, in)
}

// exposureAgainstOpenPositions is the sum of (size*avgEntryPrice) across
// every open position, used for the total-exposure cap.
func exposureAgainstOpenPositions(openPositions []models.AgentPosition) float64 {
	var total float64
	for _, p := range openPositions {
		total += p.Size * p.AvgEntryPrice
	}
	return total
}

func sameChainCount(openPositions []models.AgentPosition, chain models.Chain) int {
	n := 0
	for _, p := range openPositions {
		if p.Chain == chain {
			n++
		}
	}
	return n
}

// correlatedPositionCount counts other open positions whose momentum and
// buy-pressure are both within a tight band of the candidate's, on the same
// chain. AgentPosition carries no live momentum/buy-pressure fields — those
// exist only on the ephemeral per-cycle TokenSignal — so this is a
// best-effort match against whatever signal the cycle cache has for each
// other position's token; positions with no matching signal this cycle are
// skipped rather than counted.
func correlatedPositionCount(openPositions []models.AgentPosition, cycleSignals []models.TokenSignal, candidate models.TokenSignal) int {
	byKey := make(map[models.TokenKey]models.TokenSignal, len(cycleSignals))
	for _, s := range cycleSignals {
		byKey[s.Key()] = s
	}

	n := 0
	for _, p := range openPositions {
		if p.Chain != candidate.Chain {
			continue
		}
		other, ok := byKey[models.TokenKey{Chain: p.Chain, Address: p.TokenAddress}]
		if !ok {
			continue
		}
		if math.Abs(other.MomentumScore-candidate.MomentumScore) < 12 && math.Abs(other.BuyPressureScore-candidate.BuyPressureScore) < 10 {
			n++
		}
	}
	return n
}

func clampAmount(amount, maxPositionSize float64) float64 {
	if amount < minTradeAmount {
		amount = minTradeAmount
	}
	if amount > maxPositionSize {
		amount = maxPositionSize
	}
	return amount
}
