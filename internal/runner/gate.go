package runner

import (
	"math"
	"time"

	"github.com/driftline/signalcore/internal/positions"
	"github.com/driftline/signalcore/internal/tracker"
	"github.com/driftline/signalcore/pkg/models"
)

// gateVerdict is the post-oracle hard-filter outcome: either the trade
// proceeds (possibly at a reduced amount) or it is blocked with a reason.
type gateVerdict struct {
	Allowed bool
	Reason  string
	Amount  float64
}

// evaluateBuyGate runs every post-oracle hard-filter rule from spec.md §4.7
// in the order the spec enumerates them: the first rule that blocks wins.
func (r *Runner) evaluateBuyGate(agent models.AgentConfig, decision models.Decision, target models.TokenSignal, openPositions []models.AgentPosition, cycleSignals []models.TokenSignal, thresholds tracker.EntryThresholds, now time.Time) gateVerdict {
	if target.ConvictionScore < float64(thresholds.MinConviction) || target.OverallSignalScore < float64(thresholds.MinSignal) || target.MomentumScore < float64(thresholds.MinMomentum) {
		return gateVerdict{Reason: "below adaptive entry thresholds"}
	}

	store := r.Learning[agent.Strategy]
	if store != nil {
		combo := store.GetComboConfidence(target.Signals)
		if combo.Blacklisted {
			return gateVerdict{Reason: "signal combination is blacklisted by adaptive learning"}
		}
		for _, tag := range target.Signals {
			if store.IsSignalBlacklisted(tag) {
				return gateVerdict{Reason: "individual signal is blacklisted by adaptive learning"}
			}
		}
	}

	maxPositions := agent.Strategy.MaxOpenPositions()
	if len(openPositions) >= maxPositions {
		return gateVerdict{Reason: "max open positions reached for strategy"}
	}

	sameChainCap := maxPositions * 6 / 10
	if sameChainCap < 2 {
		sameChainCap = 2
	}
	if sameChainCount(openPositions, target.Chain) >= sameChainCap {
		return gateVerdict{Reason: "same-chain concentration cap reached"}
	}

	if correlatedPositionCount(openPositions, cycleSignals, target) > correlationCapOtherPositions {
		return gateVerdict{Reason: "too many correlated open positions"}
	}

	if r.Cooldown.Active(agent.ID, now) {
		return gateVerdict{Reason: "agent is in post-loss-streak cooldown"}
	}

	if target.RugRiskScore >= agent.Strategy.RugRiskCap() {
		return gateVerdict{Reason: "rug risk exceeds strategy cap"}
	}
	if target.WhaleActivity == models.WhaleDistributing {
		return gateVerdict{Reason: "whale distributing"}
	}
	if target.HasTag(models.TagFlashCrash) {
		return gateVerdict{Reason: "flash crash detected"}
	}
	if target.HasTag(models.TagHeavySellPressure) {
		return gateVerdict{Reason: "heavy sell pressure"}
	}
	if r.hasRecentLossOnToken(agent.ID, target.Key(), now) {
		return gateVerdict{Reason: "recent loss on this token"}
	}
	if positions.MomentumReversalScore(target) >= 40 {
		return gateVerdict{Reason: "momentum reversal risk too high"}
	}

	amount := r.sizePosition(agent, decision, target, thresholds)

	exposureCap := agent.MaxPositionSize * float64(maxPositions) * 0.8
	if exposure := exposureAgainstOpenPositions(openPositions); exposure+amount > exposureCap {
		remaining := exposureCap - exposure
		if remaining < minTradeAmount {
			return gateVerdict{Reason: "total exposure cap reached"}
		}
		amount = remaining
	}

	return gateVerdict{Allowed: true, Amount: clampAmount(amount, agent.MaxPositionSize)}
}

// sizePosition computes convictionSize from the TokenSignal's own
// (adaptive-boosted) conviction score, caps the oracle-proposed amount
// against it, then applies the adaptive size multiplier, the
// combo-confidence multiplier, and a 0.5x halving while in a loss streak —
// the exact order spec.md §4.7's final-sizing step specifies:
// amount := min(decision.Amount, convictionSize) × positionSizeMultiplier ×
// comboMultiplier × (0.5 if lossStreak).
func (r *Runner) sizePosition(agent models.AgentConfig, decision models.Decision, target models.TokenSignal, thresholds tracker.EntryThresholds) float64 {
	convictionSize := agent.MaxPositionSize * convictionSizeLadder(target.ConvictionScore)
	amount := math.Min(decision.Amount, convictionSize) * thresholds.SizeMultiplier

	if store := r.Learning[agent.Strategy]; store != nil {
		combo := store.GetComboConfidence(target.Signals)
		amount *= combo.Multiplier
	}

	if r.Cooldown.Active(agent.ID, time.Now()) {
		amount *= 0.5
	}

	return amount
}
