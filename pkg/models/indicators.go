package models

// EMATrendAlignment classifies how price sits relative to its EMA stack.
type EMATrendAlignment string

const (
	EMAAlignmentBullish EMATrendAlignment = "bullish"
	EMAAlignmentBearish EMATrendAlignment = "bearish"
	EMAAlignmentMixed   EMATrendAlignment = "mixed"
)

// EMACrossover reports a recent 9/21 EMA cross, if any.
type EMACrossover string

const (
	EMACrossoverGolden EMACrossover = "golden_cross"
	EMACrossoverDeath  EMACrossover = "death_cross"
	EMACrossoverNone   EMACrossover = "none"
)

// RSIDivergence reports a price/RSI divergence over the recent window.
type RSIDivergence string

const (
	RSIDivergenceBullish RSIDivergence = "bullish"
	RSIDivergenceBearish RSIDivergence = "bearish"
	RSIDivergenceNone    RSIDivergence = "none"
)

// VolumeTrend compares recent volume to the prior window.
type VolumeTrend string

const (
	VolumeTrendIncreasing VolumeTrend = "increasing"
	VolumeTrendDecreasing VolumeTrend = "decreasing"
	VolumeTrendStable     VolumeTrend = "stable"
)

// TechnicalIndicators is the per-token derived indicator set, cached <= 45s.
// When history has fewer than 10 bars, DefaultTechnicalIndicators() is used
// instead of computing any of these fields from data.
type TechnicalIndicators struct {
	RSI14 float64 `json:"rsi14"`

	EMA9  float64 `json:"ema9"`
	EMA21 float64 `json:"ema21"`
	EMA50 float64 `json:"ema50"`

	MACDLine      float64 `json:"macdLine"`
	MACDSignal    float64 `json:"macdSignal"`
	MACDHistogram float64 `json:"macdHistogram"`

	ATR14      float64 `json:"atr14"`
	ATRPercent float64 `json:"atrPercent"`

	EMATrendAlignment EMATrendAlignment `json:"emaTrendAlignment"`
	EMACrossover      EMACrossover      `json:"emaCrossover"`
	RSIDivergence     RSIDivergence     `json:"rsiDivergence"`

	PriceVsEMA9  float64 `json:"priceVsEma9"`
	PriceVsEMA21 float64 `json:"priceVsEma21"`
	PriceVsEMA50 float64 `json:"priceVsEma50"`

	IsOverextended bool `json:"isOverextended"`
	IsPullback     bool `json:"isPullback"`

	TrendStrength float64     `json:"trendStrength"`
	VolumeTrend   VolumeTrend `json:"volumeTrend"`
}

// DefaultTechnicalIndicators is the typed "defaults" value returned when a
// token's bar history has fewer than 10 bars.
func DefaultTechnicalIndicators() TechnicalIndicators {
	return TechnicalIndicators{
		RSI14:             50,
		EMA9:              0,
		EMA21:             0,
		EMA50:             0,
		EMATrendAlignment: EMAAlignmentMixed,
		EMACrossover:      EMACrossoverNone,
		RSIDivergence:     RSIDivergenceNone,
		TrendStrength:     50,
		VolumeTrend:       VolumeTrendStable,
	}
}
