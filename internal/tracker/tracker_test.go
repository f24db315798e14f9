package tracker

import (
	"testing"
	"time"

	"github.com/driftline/signalcore/pkg/models"
)

func TestGetAdaptiveEntryThresholds_MonotonicAfterLoss(t *testing.T) {
	tr := NewTracker()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	before := tr.GetAdaptiveEntryThresholds("agent-1", models.StrategyBalanced, now)

	tr.RecordTradeExit("agent-1", -5, now)

	after := tr.GetAdaptiveEntryThresholds("agent-1", models.StrategyBalanced, now)

	if after.MinConviction <= before.MinConviction {
		t.Fatalf("expected minConviction to rise after a loss: before=%d after=%d", before.MinConviction, after.MinConviction)
	}
	if after.MinSignal <= before.MinSignal {
		t.Fatalf("expected minSignal to rise after a loss: before=%d after=%d", before.MinSignal, after.MinSignal)
	}
}

func TestGetAdaptiveEntryThresholds_WinStreakLowersOffset(t *testing.T) {
	tr := NewTracker()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		tr.RecordTradeExit("agent-2", 5, now.Add(time.Duration(i)*time.Minute))
	}

	got := tr.GetAdaptiveEntryThresholds("agent-2", models.StrategyBalanced, now)
	base := strategyBases[models.StrategyBalanced]
	if got.MinConviction >= base.minConviction {
		t.Fatalf("expected a 3-win streak to lower minConviction below base %d, got %d", base.minConviction, got.MinConviction)
	}
	if got.SizeMultiplier != 1.10 {
		t.Fatalf("expected 1.10 size multiplier for a 3-win streak, got %v", got.SizeMultiplier)
	}
}

func TestGetAdaptiveEntryThresholds_LossStreakShrinksSize(t *testing.T) {
	tr := NewTracker()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		tr.RecordTradeExit("agent-3", -5, now.Add(time.Duration(i)*time.Minute))
	}

	got := tr.GetAdaptiveEntryThresholds("agent-3", models.StrategyBalanced, now)
	if got.SizeMultiplier != 0.3 {
		t.Fatalf("expected 0.3 size multiplier for a 4-loss streak, got %v", got.SizeMultiplier)
	}
}

func TestCooldown_ActiveUntilExpiry(t *testing.T) {
	c := NewCooldown()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.Trigger("agent-1", now.Add(time.Hour))

	if !c.Active("agent-1", now.Add(30*time.Minute)) {
		t.Fatal("expected cooldown to be active before expiry")
	}
	if c.Active("agent-1", now.Add(2*time.Hour)) {
		t.Fatal("expected cooldown to have expired")
	}
}
