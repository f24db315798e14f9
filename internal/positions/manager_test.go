package positions

import (
	"testing"
	"time"

	"github.com/driftline/signalcore/pkg/models"
)

func basePosition(now time.Time) *models.AgentPosition {
	return &models.AgentPosition{
		AvgEntryPrice:   1.0,
		CurrentPrice:    1.0,
		HighestPrice:    1.0,
		StopLossPrice:   0.88, // 12% dynamic SL
		TakeProfitPrice: 1.30, // 30% dynamic TP
		OpenedAt:        now,
		Status:          models.PositionOpen,
	}
}

func baseSignal() models.TokenSignal {
	return models.TokenSignal{
		MomentumScore:    60,
		BuyPressureScore: 55,
		ShortTermMomentum: 55,
		RugRiskScore:     20,
		WhaleActivity:    models.WhaleNeutral,
		MarketRegime:     models.RegimeNeutral,
	}
}

func TestEvaluate_StopLossTriggers(t *testing.T) {
	m := NewManager()
	now := time.Now()
	pos := basePosition(now)
	pos.CurrentPrice = 0.85 // -15%, breaches -12% stop

	action := m.Evaluate(pos, baseSignal(), models.StrategyBalanced, now)
	if action == nil || action.SellPercent != 100 {
		t.Fatalf("expected full stop-loss close, got %+v", action)
	}
}

func TestEvaluate_NoActionWhenHealthy(t *testing.T) {
	m := NewManager()
	now := time.Now()
	pos := basePosition(now)
	pos.CurrentPrice = 1.05

	action := m.Evaluate(pos, baseSignal(), models.StrategyBalanced, now)
	if action != nil {
		t.Fatalf("expected no exit action, got %+v", action)
	}
}

func TestEvaluate_FlashCrashTagForcesFullClose(t *testing.T) {
	m := NewManager()
	now := time.Now()
	pos := basePosition(now)
	pos.CurrentPrice = 1.0

	sig := baseSignal()
	sig.Signals = []models.SignalTag{models.TagFlashCrash}

	action := m.Evaluate(pos, sig, models.StrategyBalanced, now)
	if action == nil || action.SellPercent != 100 || action.Reason == "" {
		t.Fatalf("expected full close on flash crash, got %+v", action)
	}
}

func TestEvaluate_TieredTakeProfitSellsFractionAndAdvancesTier(t *testing.T) {
	m := NewManager()
	now := time.Now()
	pos := basePosition(now)
	// balanced tier 0 fires at pnl >= 0.25*30 = 7.5%
	pos.CurrentPrice = 1.10 // +10%

	action := m.Evaluate(pos, baseSignal(), models.StrategyBalanced, now)
	if action == nil {
		t.Fatal("expected a tiered take-profit action")
	}
	if action.SellPercent != 25 {
		t.Fatalf("expected first balanced tier to sell 25%%, got %v", action.SellPercent)
	}
}

func TestEvaluate_TieredTakeProfitNeverLeavesDustPosition(t *testing.T) {
	m := NewManager()
	now := time.Now()
	pos := basePosition(now)
	pos.TierReached = 3 // final tier: closes the whole position, no remainder left
	pos.CurrentPrice = 1.30

	action := m.Evaluate(pos, baseSignal(), models.StrategyBalanced, now)
	if action == nil || action.SellPercent != 100 {
		t.Fatalf("expected final tier full close, got %+v", action)
	}
}

func TestEvaluate_StaleFlatPositionClosesHalfAfter24h(t *testing.T) {
	m := NewManager()
	openedAt := time.Now().Add(-25 * time.Hour)
	pos := basePosition(openedAt)
	pos.CurrentPrice = 1.005 // ~0.5% pnl, within |pnl|<2

	// Degen's short max-hold makes the time-decay threshold fall to its
	// floor well before 24h, so this case reaches the staleness rule
	// rather than tripping time decay first.
	action := m.Evaluate(pos, baseSignal(), models.StrategyDegen, time.Now())
	if action == nil || action.SellPercent != 50 {
		t.Fatalf("expected 50%% stale close, got %+v", action)
	}
}

func TestEvaluate_MomentumReversalSeverityGatesFullVsPartialClose(t *testing.T) {
	m := NewManager()
	now := time.Now()
	pos := basePosition(now)
	pos.CurrentPrice = 1.0

	sig := baseSignal()
	sig.Indicators.EMACrossover = models.EMACrossoverDeath  // +35
	sig.Indicators.RSIDivergence = models.RSIDivergenceBearish // +30
	sig.WhaleActivity = models.WhaleDistributing // +25, total 90 >= 80

	action := m.Evaluate(pos, sig, models.StrategyBalanced, now)
	if action == nil || action.SellPercent != 100 {
		t.Fatalf("expected severe momentum reversal full close, got %+v", action)
	}
}
