// Package indicators maintains per-token rolling OHLCV history and derives
// the technical indicator set the Signal Builder scores against: EMAs,
// RSI, MACD, ATR, divergences, pullback/overextension flags and trend
// strength.
package indicators

import (
	"sync"
	"time"

	"github.com/driftline/signalcore/pkg/models"
)

const (
	minBarsForIndicators = 10
	rsiPeriod             = 14
	atrPeriod              = 14
	emaFastPeriod          = 9
	emaMidPeriod           = 21
	emaSlowPeriodCap       = 50
	macdFastPeriod         = 12
	macdSlowPeriod         = 26
	macdSignalPeriod       = 9
)

type cachedIndicators struct {
	value     models.TechnicalIndicators
	expiresAt time.Time
}

// Engine is the process-wide, thread-safe bar ring and derived-indicator
// cache. One Engine is constructed at process start and shared by the
// Signal Builder across all cycles.
type Engine struct {
	mu sync.RWMutex

	bars   map[string][]models.PriceBar
	cache  map[string]cachedIndicators

	barCap        int
	indicatorTTL  time.Duration
}

// NewEngine constructs an Engine with the given indicator-cache TTL and
// per-token bar cap.
func NewEngine(indicatorTTL time.Duration, barCap int) *Engine {
	if barCap <= 0 {
		barCap = models.MaxBarHistory
	}
	return &Engine{
		bars:         make(map[string][]models.PriceBar),
		cache:        make(map[string]cachedIndicators),
		barCap:       barCap,
		indicatorTTL: indicatorTTL,
	}
}

// UpdatePriceHistory folds a live tick into the current minute-bucket bar,
// or appends a new bar if the minute has rolled over.
func (e *Engine) UpdatePriceHistory(key models.TokenKey, at time.Time, price, volume float64, high, low *float64) {
	h, l := price, price
	if high != nil {
		h = *high
	}
	if low != nil {
		l = *low
	}

	bucket := models.MinuteBucket(at.UnixMilli())

	e.mu.Lock()
	defer e.mu.Unlock()

	k := key.String()
	bars := e.bars[k]

	if n := len(bars); n > 0 && bars[n-1].T == bucket {
		last := &bars[n-1]
		if h > last.H {
			last.H = h
		}
		if l < last.L {
			last.L = l
		}
		last.C = price
		last.V += volume
	} else {
		bars = append(bars, models.PriceBar{T: bucket, O: price, H: h, L: l, C: price, V: volume})
	}

	e.bars[k] = capBars(bars, e.barCap)
	delete(e.cache, k)
}

// IngestOHLCV merges externally-fetched candles into the ring by minute
// bucket, de-duplicating and sorting ascending before enforcing the cap.
func (e *Engine) IngestOHLCV(key models.TokenKey, candles []models.PriceBar) {
	if len(candles) == 0 {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	k := key.String()
	byBucket := make(map[int64]models.PriceBar)
	for _, b := range e.bars[k] {
		byBucket[b.T] = b
	}
	for _, c := range candles {
		bucket := models.MinuteBucket(c.T)
		c.T = bucket
		if existing, ok := byBucket[bucket]; ok {
			merged := existing
			if c.H > merged.H {
				merged.H = c.H
			}
			if c.L < merged.L {
				merged.L = c.L
			}
			merged.C = c.C
			merged.V += c.V
			byBucket[bucket] = merged
		} else {
			byBucket[bucket] = c
		}
	}

	merged := make([]models.PriceBar, 0, len(byBucket))
	for _, b := range byBucket {
		merged = append(merged, b)
	}
	sortBarsAscending(merged)

	e.bars[k] = capBars(merged, e.barCap)
	delete(e.cache, k)
}

// Snapshot returns a deep copy of the current bar ring for a token, used by
// the Signal Builder for its bar-derived fields (momentum acceleration,
// volatility, volume breakout) — callers never see the internal ring
// directly.
func (e *Engine) Snapshot(key models.TokenKey) []models.PriceBar {
	e.mu.RLock()
	defer e.mu.RUnlock()

	bars := e.bars[key.String()]
	out := make([]models.PriceBar, len(bars))
	copy(out, bars)
	return out
}

// ComputeTechnicalIndicators returns the cached indicator set for a token
// if fresh, otherwise recomputes it. Bar history shorter than 10 bars
// always yields the documented defaults and is never cached (cheap to
// recompute, and callers shouldn't pin a stale "insufficient data" result).
func (e *Engine) ComputeTechnicalIndicators(key models.TokenKey, currentPrice float64) models.TechnicalIndicators {
	k := key.String()

	e.mu.RLock()
	if c, ok := e.cache[k]; ok && time.Now().Before(c.expiresAt) {
		e.mu.RUnlock()
		return c.value
	}
	bars := e.bars[k]
	e.mu.RUnlock()

	if len(bars) < minBarsForIndicators {
		return models.DefaultTechnicalIndicators()
	}

	result := compute(bars, currentPrice)

	e.mu.Lock()
	e.cache[k] = cachedIndicators{value: result, expiresAt: time.Now().Add(e.indicatorTTL)}
	e.mu.Unlock()

	return result
}

func capBars(bars []models.PriceBar, cap int) []models.PriceBar {
	if len(bars) <= cap {
		return bars
	}
	return bars[len(bars)-cap:]
}

func sortBarsAscending(bars []models.PriceBar) {
	for i := 1; i < len(bars); i++ {
		for j := i; j > 0 && bars[j-1].T > bars[j].T; j-- {
			bars[j-1], bars[j] = bars[j], bars[j-1]
		}
	}
}
