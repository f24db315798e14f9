package indicators

import (
	"testing"
	"time"

	"github.com/driftline/signalcore/pkg/models"
)

func testKey() models.TokenKey {
	return models.TokenKey{Chain: models.ChainSolana, Address: "So111111111111111111111111111111111111112"}
}

func seedBars(e *Engine, key models.TokenKey, closes []float64) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		at := base.Add(time.Duration(i) * time.Minute)
		high, low := c*1.01, c*0.99
		e.UpdatePriceHistory(key, at, c, 1000, &high, &low)
	}
}

func TestComputeTechnicalIndicators_InsufficientHistoryReturnsDefaults(t *testing.T) {
	e := NewEngine(45*time.Second, 200)
	key := testKey()
	seedBars(e, key, []float64{1, 1.1, 1.2})

	got := e.ComputeTechnicalIndicators(key, 1.2)
	want := models.DefaultTechnicalIndicators()

	if got != want {
		t.Fatalf("expected defaults for <10 bars, got %+v", got)
	}
}

func TestComputeTechnicalIndicators_DeterministicForSameBars(t *testing.T) {
	e := NewEngine(45*time.Second, 200)
	key := testKey()
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 1.0 + float64(i)*0.01
	}
	seedBars(e, key, closes)

	first := e.ComputeTechnicalIndicators(key, closes[len(closes)-1])

	e2 := NewEngine(45*time.Second, 200)
	seedBars(e2, key, closes)
	second := e2.ComputeTechnicalIndicators(key, closes[len(closes)-1])

	if first != second {
		t.Fatalf("expected identical indicators for identical bar history, got %+v vs %+v", first, second)
	}
}

func TestComputeTechnicalIndicators_CachedWithinTTL(t *testing.T) {
	e := NewEngine(45*time.Second, 200)
	key := testKey()
	closes := make([]float64, 15)
	for i := range closes {
		closes[i] = 1.0
	}
	seedBars(e, key, closes)

	first := e.ComputeTechnicalIndicators(key, 1.0)

	// Mutate the ring directly without clearing the cache entry's TTL to
	// confirm the cached value (not a recompute) is served.
	e.mu.Lock()
	e.cache[key.String()] = cachedIndicators{value: first, expiresAt: time.Now().Add(time.Minute)}
	k := key.String()
	e.bars[k] = append(e.bars[k], models.PriceBar{T: e.bars[k][len(e.bars[k])-1].T + 60_000, O: 5, H: 5, L: 5, C: 5, V: 1000})
	e.mu.Unlock()

	second := e.ComputeTechnicalIndicators(key, 1.0)
	if second != first {
		t.Fatalf("expected cached value to be served within TTL")
	}
}

func TestWilderRSI_ZeroAverageLossIsMaximallyOverbought(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 1.0 + float64(i)*0.1
	}
	series := wilderRSISeries(closes, rsiPeriod)
	if len(series) == 0 {
		t.Fatal("expected a non-empty RSI series")
	}
	if got := series[len(series)-1]; got != 100 {
		t.Fatalf("expected RSI=100 for an all-gains series, got %v", got)
	}
}

func TestComboKey_Canonicalized(t *testing.T) {
	a := models.ComboKey([]models.SignalTag{models.TagStrongUptrend, models.TagSmartMoneyBuy})
	b := models.ComboKey([]models.SignalTag{models.TagSmartMoneyBuy, models.TagStrongUptrend})
	if a != b {
		t.Fatalf("expected combo key order-independence, got %q vs %q", a, b)
	}
}
