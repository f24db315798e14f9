// Package positions implements the Position Manager: the ordered exit-rule
// pipeline evaluated against every open position once per agent cycle.
package positions

import (
	"time"

	"github.com/driftline/signalcore/pkg/models"
)

// ExitAction is one exit decision for an open position. SellPercent is the
// percentage of the position's *current remaining size* to close, in
// (0,100]; 100 is a full close.
type ExitAction struct {
	Reason      string
	SellPercent float64
}

func full(reason string) ExitAction { return ExitAction{Reason: reason, SellPercent: 100} }
func partial(reason string, pct float64) ExitAction {
	return ExitAction{Reason: reason, SellPercent: pct}
}

// Manager evaluates the exit-rule pipeline. It holds no state of its own —
// the only piece of the pipeline that needs to persist across cycles,
// TierReached, lives on AgentPosition itself.
type Manager struct{}

func NewManager() *Manager { return &Manager{} }

var trailingKByStrategy = map[models.Strategy]float64{
	models.StrategyConservative: 1.8,
	models.StrategyBalanced:     2.2,
	models.StrategyAggressive:   2.8,
	models.StrategyDegen:        3.5,
}

var breakevenTriggerByStrategy = map[models.Strategy]float64{
	models.StrategyConservative: 5,
	models.StrategyBalanced:     8,
	models.StrategyAggressive:   12,
	models.StrategyDegen:        18,
}

var maxHoldHoursByStrategy = map[models.Strategy]float64{
	models.StrategyConservative: 48,
	models.StrategyBalanced:     36,
	models.StrategyAggressive:   18,
	models.StrategyDegen:        10,
}

type tier struct {
	fraction float64
	sellPct  float64
}

var tiersByStrategy = map[models.Strategy][]tier{
	models.StrategyConservative: {{.30, 30}, {.55, 25}, {.80, 25}, {1.0, 20}},
	models.StrategyBalanced:     {{.25, 25}, {.50, 25}, {.75, 25}, {1.0, 25}},
	models.StrategyAggressive:   {{.20, 20}, {.45, 25}, {.70, 25}, {1.0, 30}},
	models.StrategyDegen:        {{.15, 15}, {.35, 20}, {.60, 25}, {1.0, 40}},
}

// Evaluate runs the priority-ordered exit pipeline from spec.md §4.5 and
// returns at most one ExitAction — the first rule that fires wins.
func (m *Manager) Evaluate(position *models.AgentPosition, signal models.TokenSignal, strategy models.Strategy, now time.Time) *ExitAction {
	pnl := position.PnLPercent()

	if a := m.stopLoss(position, pnl); a != nil {
		return a
	}
	if a := m.trailingStop(position, signal, strategy, pnl); a != nil {
		return a
	}
	if a := m.breakeven(position, strategy, pnl); a != nil {
		return a
	}
	if a := m.momentumReversal(signal, pnl); a != nil {
		return a
	}
	if a := m.timeDecay(position, strategy, pnl, now); a != nil {
		return a
	}
	if a := m.tokenSignalRules(position, signal, strategy, pnl); a != nil {
		return a
	}
	if a := m.stale(position, pnl, now); a != nil {
		return a
	}
	return nil
}

// stopLossPercentOf and takeProfitPercentOf derive the dynamic percentage
// thresholds from the absolute prices recorded on the position at entry.
func stopLossPercentOf(position *models.AgentPosition) float64 {
	if position.AvgEntryPrice <= 0 {
		return 0
	}
	return (position.AvgEntryPrice - position.StopLossPrice) / position.AvgEntryPrice * 100
}

func takeProfitPercentOf(position *models.AgentPosition) float64 {
	if position.AvgEntryPrice <= 0 {
		return 0
	}
	return (position.TakeProfitPrice - position.AvgEntryPrice) / position.AvgEntryPrice * 100
}

func (m *Manager) stopLoss(position *models.AgentPosition, pnl float64) *ExitAction {
	if pnl <= -stopLossPercentOf(position) {
		a := full("Stop loss triggered")
		return &a
	}
	return nil
}

func (m *Manager) trailingStop(position *models.AgentPosition, signal models.TokenSignal, strategy models.Strategy, pnl float64) *ExitAction {
	entry := position.AvgEntryPrice
	highest := position.HighestPrice
	current := position.CurrentPrice

	var atrTrailing, legacyTrailing float64
	hasATR := pnl >= 3 && highest > entry
	if hasATR {
		k := trailingKByStrategy[strategy]
		switch signal.MarketRegime {
		case models.RegimeBear:
			k *= 0.8
		}
		if pnl > 30 {
			k *= 0.7
		} else if pnl > 15 {
			k *= 0.85
		}
		distance := highest * signal.Indicators.ATRPercent / 100 * k
		atrTrailing = highest - distance
	}

	hasLegacy := highest >= 1.05*entry
	if hasLegacy {
		dynSL := stopLossPercentOf(position)
		factor := 0.7
		if current > 1.15*entry {
			factor = 0.5
		}
		distance := entry * dynSL / 100 * factor
		legacyTrailing = highest - distance
	}

	trailing := 0.0
	switch {
	case hasATR && hasLegacy:
		trailing = max(atrTrailing, legacyTrailing)
	case hasATR:
		trailing = atrTrailing
	case hasLegacy:
		trailing = legacyTrailing
	default:
		return nil
	}

	if current <= trailing {
		a := full("Trailing stop triggered")
		return &a
	}
	return nil
}

func (m *Manager) breakeven(position *models.AgentPosition, strategy models.Strategy, pnl float64) *ExitAction {
	trigger := breakevenTriggerByStrategy[strategy]
	entry := position.AvgEntryPrice
	if entry <= 0 {
		return nil
	}
	peakGain := (position.HighestPrice - entry) / entry * 100
	if peakGain < trigger {
		return nil
	}
	if peakGain <= 0 {
		return nil
	}
	gaveBack := (peakGain - pnl) / peakGain
	if gaveBack >= 0.60 && pnl <= 1 {
		a := full("Breakeven stop: gave back majority of peak gain")
		return &a
	}
	return nil
}

// MomentumReversalScore is the weighted bearish-signal table from
// spec.md §4.5, exported so the post-oracle entry gate (internal/runner)
// can block new entries on the same score the exit pipeline uses to close
// existing ones.
func MomentumReversalScore(signal models.TokenSignal) float64 {
	var score float64
	if signal.Indicators.RSIDivergence == models.RSIDivergenceBearish {
		score += 30
	}
	if signal.Indicators.EMACrossover == models.EMACrossoverDeath {
		score += 35
	}
	if signal.Indicators.MACDLine < signal.Indicators.MACDSignal && signal.Indicators.MACDHistogram < 0 {
		score += 20
	}
	if signal.MomentumAcceleration < 0 {
		score += 15
	}
	if signal.ShortTermMomentum < 30 {
		score += 15
	}
	if signal.Indicators.EMATrendAlignment == models.EMAAlignmentBearish {
		score += 20
	}
	if signal.WhaleActivity == models.WhaleDistributing {
		score += 25
	}
	if signal.BuyPressureScore < 40 {
		score += 10
	}
	return score
}

func (m *Manager) momentumReversal(signal models.TokenSignal, pnl float64) *ExitAction {
	score := MomentumReversalScore(signal)

	if score >= 60 && pnl > -3 {
		if score >= 80 {
			a := full("Momentum reversal: severe")
			return &a
		}
		a := partial("Momentum reversal", 70)
		return &a
	}
	return nil
}

func (m *Manager) timeDecay(position *models.AgentPosition, strategy models.Strategy, pnl float64, now time.Time) *ExitAction {
	maxHold := maxHoldHoursByStrategy[strategy]
	halfMax := maxHold / 2
	heldHours := now.Sub(position.OpenedAt).Hours()
	if heldHours < halfMax {
		return nil
	}
	progress := (heldHours - halfMax) / halfMax
	if progress > 1 {
		progress = 1
	}
	threshold := 3 - 6*progress
	if pnl < threshold {
		a := full("Time decay: insufficient gain for holding period")
		return &a
	}
	return nil
}

func (m *Manager) tokenSignalRules(position *models.AgentPosition, signal models.TokenSignal, strategy models.Strategy, pnl float64) *ExitAction {
	switch {
	case signal.HasTag(models.TagFlashCrash):
		a := full("Flash crash detected")
		return &a
	case signal.WhaleActivity == models.WhaleDistributing && pnl > -3:
		a := full("Whale distributing")
		return &a
	case signal.RugRiskScore >= 65 && pnl > -5:
		a := full("Rug risk elevated")
		return &a
	case signal.BuyPressureScore <= 25 && pnl > -3:
		a := full("Buy pressure collapsed")
		return &a
	}

	if a := m.tieredTakeProfit(position, strategy, pnl); a != nil {
		return a
	}

	switch {
	case pnl >= takeProfitPercentOf(position):
		a := full("Take profit reached")
		return &a
	case signal.MomentumScore <= 25 && pnl > 0:
		a := full("Momentum collapsed with open profit")
		return &a
	case signal.BuyPressureScore <= 35 && pnl > -3:
		a := partial("Weak buy pressure", 80)
		return &a
	case signal.MomentumAcceleration < -3 && signal.MomentumScore < 40:
		a := full("Momentum decelerating sharply")
		return &a
	case signal.ShortTermMomentum < 20 && pnl > 3:
		a := partial("Short-term momentum fading", 60)
		return &a
	case signal.HasTag(models.TagHeavySellPressure) && pnl < 5:
		a := full("Heavy sell pressure")
		return &a
	case signal.Indicators.EMACrossover == models.EMACrossoverDeath && pnl > -3:
		a := full("Death cross")
		return &a
	case signal.Indicators.RSI14 > 85 && pnl > 10:
		a := partial("RSI extremely overbought", 70)
		return &a
	case signal.Indicators.RSIDivergence == models.RSIDivergenceBearish && pnl > 5:
		a := partial("Bearish RSI divergence", 60)
		return &a
	case signal.Indicators.EMATrendAlignment == models.EMAAlignmentBearish && pnl > 0:
		a := full("EMA trend turned bearish")
		return &a
	case signal.Indicators.MACDLine < signal.Indicators.MACDSignal && signal.Indicators.MACDHistogram < 0 && pnl > 3:
		a := partial("MACD fully bearish", 80)
		return &a
	case signal.Indicators.IsOverextended && pnl > 15:
		a := partial("Overextended with large gain", 50)
		return &a
	}
	return nil
}

// tieredTakeProfit sells a fraction of the position's current remaining
// size once pnl% crosses each strategy tier threshold, never leaving less
// than 5% of the current size — that becomes a full close instead. The
// final tier closes the whole remaining position.
func (m *Manager) tieredTakeProfit(position *models.AgentPosition, strategy models.Strategy, pnl float64) *ExitAction {
	tiers := tiersByStrategy[strategy]
	if position.TierReached >= len(tiers) {
		return nil
	}
	tp := takeProfitPercentOf(position)
	t := tiers[position.TierReached]
	if pnl < t.fraction*tp {
		return nil
	}
	if position.TierReached == len(tiers)-1 {
		a := full("Tiered take-profit: final tier")
		return &a
	}
	remainingAfter := 100 - t.sellPct
	if remainingAfter < 5 {
		a := full("Tiered take-profit: remainder below minimum size")
		return &a
	}
	a := partial("Tiered take-profit", t.sellPct)
	return &a
}

func (m *Manager) stale(position *models.AgentPosition, pnl float64, now time.Time) *ExitAction {
	heldHours := now.Sub(position.OpenedAt).Hours()
	absPnl := pnl
	if absPnl < 0 {
		absPnl = -absPnl
	}
	switch {
	case heldHours > 72 && absPnl < 5:
		a := full("Stale position: no meaningful movement in 72h")
		return &a
	case heldHours > 24 && absPnl < 2:
		a := partial("Stale position: flat for 24h", 50)
		return &a
	}
	return nil
}
