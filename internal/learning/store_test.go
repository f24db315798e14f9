package learning

import (
	"context"
	"testing"

	"github.com/driftline/signalcore/internal/ports/testdoubles"
	"github.com/driftline/signalcore/pkg/models"
)

func TestGetSignalConfidenceMultiplier_UntestedSignalIsNeutral(t *testing.T) {
	s := NewStore(testdoubles.NewRepository(), models.StrategyBalanced)
	if got := s.GetSignalConfidenceMultiplier(models.TagStrongUptrend); got != 1.0 {
		t.Fatalf("expected neutral multiplier for untested signal, got %v", got)
	}
}

func TestGetSignalConfidenceMultiplier_Tiers(t *testing.T) {
	repo := testdoubles.NewRepository()
	s := NewStore(repo, models.StrategyBalanced)

	// 4 wins, 0 losses -> winRate 1.0 -> top tier.
	for i := 0; i < 4; i++ {
		s.upsert(string(models.TagStrongUptrend), true, 10)
	}
	if got := s.GetSignalConfidenceMultiplier(models.TagStrongUptrend); got != 1.4 {
		t.Fatalf("expected 1.4 multiplier for winRate>=0.75, got %v", got)
	}
}

func TestIsSignalBlacklisted(t *testing.T) {
	s := NewStore(testdoubles.NewRepository(), models.StrategyBalanced)
	for i := 0; i < 5; i++ {
		s.upsert(string(models.TagHighRugRisk), false, -10)
	}
	if !s.IsSignalBlacklisted(models.TagHighRugRisk) {
		t.Fatal("expected signal with count>=5, winRate<0.25, avgPnl<-3 to be blacklisted")
	}
}

func TestComboKey_OrderIndependent(t *testing.T) {
	a := models.ComboKey([]models.SignalTag{models.TagStrongUptrend, models.TagBreakout})
	b := models.ComboKey([]models.SignalTag{models.TagBreakout, models.TagStrongUptrend})
	if a != b {
		t.Fatalf("combo key must be order-independent: %q vs %q", a, b)
	}
}

func TestRecordTradeExit_PersistsAndUpdatesMemory(t *testing.T) {
	repo := testdoubles.NewRepository()
	s := NewStore(repo, models.StrategyBalanced)
	tags := []models.SignalTag{models.TagStrongUptrend, models.TagBreakout}

	s.RecordTradeExit(context.Background(), tags, 1.0, 1.2)

	p, ok := s.get(string(models.TagStrongUptrend))
	if !ok || p.Wins != 1 || p.Count != 1 {
		t.Fatalf("expected one win recorded for tag, got %+v ok=%v", p, ok)
	}
	combo, ok := s.get(models.ComboKey(tags))
	if !ok || combo.Wins != 1 {
		t.Fatalf("expected combo key to also be recorded, got %+v ok=%v", combo, ok)
	}
	if len(repo.Performance) != 3 {
		t.Fatalf("expected 3 persisted rows (2 tags + 1 combo), got %d", len(repo.Performance))
	}
}
