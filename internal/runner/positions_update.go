package runner

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/driftline/signalcore/pkg/logger"
	"github.com/driftline/signalcore/pkg/models"
)

// updateOpenPositions refreshes every open position's mark price against
// the cycle's signal set and runs the Position Manager's exit pipeline
// against it. Returns whether any position closed or trimmed this cycle.
func (r *Runner) updateOpenPositions(ctx context.Context, agent *models.AgentConfig, cycleSignals []models.TokenSignal, now time.Time) (bool, error) {
	openPositions, err := r.Repo.ListOpenPositionsByAgent(ctx, agent.ID)
	if err != nil {
		return false, err
	}
	if len(openPositions) == 0 {
		return false, nil
	}

	byKey := make(map[models.TokenKey]models.TokenSignal, len(cycleSignals))
	for _, s := range cycleSignals {
		byKey[s.Key()] = s
	}

	anyChanged := false
	for i := range openPositions {
		pos := &openPositions[i]
		signal, ok := byKey[models.TokenKey{Chain: pos.Chain, Address: pos.TokenAddress}]
		if !ok {
			// No fresh signal for this token this cycle — nothing to
			// evaluate the exit pipeline against; mark price stays as-is.
			continue
		}

		pos.CurrentPrice = signal.Price
		pos.UpdateHighest(signal.Price)
		pos.UnrealizedPnl = (pos.CurrentPrice - pos.AvgEntryPrice) * pos.Size
		pos.UnrealizedPnlPercent = pos.PnLPercent()

		action := r.PositionMgr.Evaluate(pos, signal, agent.Strategy, now)
		if action == nil {
			if err := r.Repo.UpdatePosition(ctx, pos); err != nil {
				logger.Error("failed to update position mark price", zap.String("agent", agent.ID), zap.Error(err))
			}
			continue
		}

		sellAmount := pos.Size * action.SellPercent / 100
		if isTierExit(action.Reason) {
			pos.TierReached++
			if err := r.Repo.UpdatePosition(ctx, pos); err != nil {
				logger.Error("failed to persist tier progress", zap.String("agent", agent.ID), zap.Error(err))
			}
		}

		r.finalizeSell(ctx, agent, pos, signal, sellAmount, action.Reason, false)
		anyChanged = true
	}

	return anyChanged, nil
}

func isTierExit(reason string) bool {
	return reason == "Tiered take-profit" || reason == "Tiered take-profit: remainder below minimum size"
}
