package models

// PriceBar is a minute-aligned OHLCV candle.
type PriceBar struct {
	T int64   `json:"t"` // minute-aligned epoch-ms
	O float64 `json:"o"`
	H float64 `json:"h"`
	L float64 `json:"l"`
	C float64 `json:"c"`
	V float64 `json:"v"`
}

// MaxBarHistory is the cap on retained bars per token; older bars are
// discarded on write.
const MaxBarHistory = 200

// MinuteBucket aligns an epoch-ms timestamp to the start of its minute.
func MinuteBucket(epochMs int64) int64 {
	const minuteMs = 60_000
	return (epochMs / minuteMs) * minuteMs
}
