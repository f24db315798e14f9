package indicators

import (
	"math"

	"github.com/driftline/signalcore/pkg/models"
)

// compute derives the full technical indicator set from a bar ring plus
// the current live price. Every function here is a pure, deterministic
// function of its inputs — no clock, no shared state — so the same bars
// always yield the same indicators.
func compute(bars []models.PriceBar, currentPrice float64) models.TechnicalIndicators {
	closes := closesOf(bars)
	volumes := volumesOf(bars)

	rsiSeries := wilderRSISeries(closes, rsiPeriod)
	rsi14 := 50.0
	if len(rsiSeries) > 0 {
		rsi14 = rsiSeries[len(rsiSeries)-1]
	}

	ema9 := emaSeries(closes, emaFastPeriod)
	ema21 := emaSeries(closes, emaMidPeriod)
	slowPeriod := emaSlowPeriodCap
	if len(closes) < slowPeriod {
		slowPeriod = len(closes)
	}
	ema50 := emaSeries(closes, slowPeriod)

	macdLine, signalLine, histogram := macd(closes, macdFastPeriod, macdSlowPeriod, macdSignalPeriod)

	atr14, atrPercent := wilderATR(bars, atrPeriod, currentPrice)

	lastEMA9, lastEMA21, lastEMA50 := last(ema9), last(ema21), last(ema50)

	result := models.TechnicalIndicators{
		RSI14:             round1(rsi14),
		EMA9:              lastEMA9,
		EMA21:             lastEMA21,
		EMA50:             lastEMA50,
		MACDLine:          round8(macdLine),
		MACDSignal:        round8(signalLine),
		MACDHistogram:     round8(histogram),
		ATR14:             atr14,
		ATRPercent:        round1(atrPercent),
		EMATrendAlignment: emaTrendAlignment(lastEMA9, lastEMA21, lastEMA50),
		EMACrossover:      emaCrossover(ema9, ema21),
		RSIDivergence:     rsiDivergence(closes, rsiSeries),
		PriceVsEMA9:       pctDelta(currentPrice, lastEMA9),
		PriceVsEMA21:      pctDelta(currentPrice, lastEMA21),
		PriceVsEMA50:      pctDelta(currentPrice, lastEMA50),
		VolumeTrend:       volumeTrend(volumes),
	}
	result.IsOverextended = isOverextended(result.RSI14, result.PriceVsEMA9, result.PriceVsEMA21)
	result.IsPullback = isPullback(result.RSI14, result.PriceVsEMA21, result.EMATrendAlignment, currentPrice, lastEMA50)
	result.TrendStrength = trendStrength(result.EMATrendAlignment, result.MACDHistogram, currentPrice, result.RSI14, result.EMACrossover)

	return result
}

func closesOf(bars []models.PriceBar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.C
	}
	return out
}

func volumesOf(bars []models.PriceBar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.V
	}
	return out
}

func last(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}

// emaSeries computes one EMA value per input close, seeded with the first
// close (period is the smoothing constant's span, alpha = 2/(period+1)).
func emaSeries(values []float64, period int) []float64 {
	if len(values) == 0 || period <= 0 {
		return nil
	}
	alpha := 2.0 / (float64(period) + 1.0)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// wilderRSISeries returns one RSI value per close from index `period`
// onward (inclusive), computed with Wilder's incremental smoothing:
// the first `period` deltas are simple-averaged, then each subsequent
// delta updates the running average via avg = (avg*(period-1)+x)/period.
func wilderRSISeries(closes []float64, period int) []float64 {
	if len(closes) <= period {
		return nil
	}

	var gainSum, lossSum float64
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum += -delta
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)

	out := make([]float64, 0, len(closes)-period)
	out = append(out, rsiFromAverages(avgGain, avgLoss))

	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out = append(out, rsiFromAverages(avgGain, avgLoss))
	}

	return out
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// macd returns the final MACD line, signal line and histogram values for
// a close series: line = EMA(fast) - EMA(slow); signal = EMA(signalPeriod)
// of the full line series; histogram = line - signal.
func macd(closes []float64, fast, slow, signalPeriod int) (line, signal, histogram float64) {
	if len(closes) == 0 {
		return 0, 0, 0
	}
	fastSeries := emaSeries(closes, fast)
	slowSeries := emaSeries(closes, slow)

	lineSeries := make([]float64, len(closes))
	for i := range closes {
		lineSeries[i] = fastSeries[i] - slowSeries[i]
	}
	signalSeries := emaSeries(lineSeries, signalPeriod)

	line = last(lineSeries)
	signal = last(signalSeries)
	return line, signal, line - signal
}

// wilderATR returns the final ATR14 value and its percent-of-price form,
// using Wilder smoothing over true range the same way RSI smooths deltas.
func wilderATR(bars []models.PriceBar, period int, currentPrice float64) (atr, atrPercent float64) {
	if len(bars) <= period {
		return 0, 0
	}

	trueRanges := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		h, l, prevClose := bars[i].H, bars[i].L, bars[i-1].C
		tr := math.Max(h-l, math.Max(math.Abs(h-prevClose), math.Abs(l-prevClose)))
		trueRanges = append(trueRanges, tr)
	}

	var sum float64
	for i := 0; i < period; i++ {
		sum += trueRanges[i]
	}
	atrValue := sum / float64(period)

	for i := period; i < len(trueRanges); i++ {
		atrValue = (atrValue*float64(period-1) + trueRanges[i]) / float64(period)
	}

	atr = atrValue
	if currentPrice > 0 {
		atrPercent = atr / currentPrice * 100
	}
	return atr, atrPercent
}

func emaTrendAlignment(ema9, ema21, ema50 float64) models.EMATrendAlignment {
	switch {
	case ema9 > ema21 && ema21 > ema50:
		return models.EMAAlignmentBullish
	case ema9 < ema21 && ema21 < ema50:
		return models.EMAAlignmentBearish
	default:
		return models.EMAAlignmentMixed
	}
}

// emaCrossover compares the EMA9/EMA21 relationship three bars ago against
// the most recent bar: a flip from below-or-equal to above is a golden
// cross, the reverse is a death cross.
func emaCrossover(ema9, ema21 []float64) models.EMACrossover {
	n := len(ema9)
	if n < 3 || len(ema21) < 3 {
		return models.EMACrossoverNone
	}
	prevDiff := ema9[n-3] - ema21[n-3]
	curDiff := ema9[n-1] - ema21[n-1]

	switch {
	case prevDiff <= 0 && curDiff > 0:
		return models.EMACrossoverGolden
	case prevDiff >= 0 && curDiff < 0:
		return models.EMACrossoverDeath
	default:
		return models.EMACrossoverNone
	}
}

// rsiDivergence compares the most recent 10-bar window of price and RSI
// against the prior 10-bar window: price making a lower low while RSI
// makes a higher low is bullish divergence, and the mirrored case for
// highs is bearish. Needs at least 20 aligned RSI/close points.
func rsiDivergence(closes []float64, rsiSeries []float64) models.RSIDivergence {
	if len(rsiSeries) < 20 {
		return models.RSIDivergenceNone
	}
	// rsiSeries[i] corresponds to closes[len(closes)-len(rsiSeries)+i].
	offset := len(closes) - len(rsiSeries)

	recentStart := len(rsiSeries) - 10
	priorStart := len(rsiSeries) - 20

	priceLow := func(from, to int) float64 {
		m := closes[offset+from]
		for i := from + 1; i < to; i++ {
			if closes[offset+i] < m {
				m = closes[offset+i]
			}
		}
		return m
	}
	priceHigh := func(from, to int) float64 {
		m := closes[offset+from]
		for i := from + 1; i < to; i++ {
			if closes[offset+i] > m {
				m = closes[offset+i]
			}
		}
		return m
	}
	rsiLow := func(from, to int) float64 {
		m := rsiSeries[from]
		for i := from + 1; i < to; i++ {
			if rsiSeries[i] < m {
				m = rsiSeries[i]
			}
		}
		return m
	}
	rsiHigh := func(from, to int) float64 {
		m := rsiSeries[from]
		for i := from + 1; i < to; i++ {
			if rsiSeries[i] > m {
				m = rsiSeries[i]
			}
		}
		return m
	}

	priorLow, recentLow := priceLow(priorStart, recentStart), priceLow(recentStart, len(rsiSeries))
	priorRSILow, recentRSILow := rsiLow(priorStart, recentStart), rsiLow(recentStart, len(rsiSeries))
	if recentLow < priorLow && recentRSILow > priorRSILow {
		return models.RSIDivergenceBullish
	}

	priorHigh, recentHigh := priceHigh(priorStart, recentStart), priceHigh(recentStart, len(rsiSeries))
	priorRSIHigh, recentRSIHigh := rsiHigh(priorStart, recentStart), rsiHigh(recentStart, len(rsiSeries))
	if recentHigh > priorHigh && recentRSIHigh < priorRSIHigh {
		return models.RSIDivergenceBearish
	}

	return models.RSIDivergenceNone
}

func pctDelta(price, ema float64) float64 {
	if ema == 0 {
		return 0
	}
	return round2((price - ema) / ema * 100)
}

// isOverextended is a three-way disjunction: price has run far past EMA21,
// RSI alone is extreme, or a smaller RSI extreme combines with a smaller
// EMA9 extension.
func isOverextended(rsi14, priceVsEMA9, priceVsEMA21 float64) bool {
	return priceVsEMA21 > 15 || rsi14 > 80 || (priceVsEMA9 > 8 && rsi14 > 70)
}

// isPullback requires a bullish trend, RSI cooled into a mid-range band,
// price sitting close to EMA21 on either side, and price still holding
// above EMA50.
func isPullback(rsi14, priceVsEMA21 float64, alignment models.EMATrendAlignment, price, ema50 float64) bool {
	return alignment == models.EMAAlignmentBullish &&
		rsi14 > 25 && rsi14 < 45 &&
		priceVsEMA21 > -5 && priceVsEMA21 < 3 &&
		price > ema50
}

// trendStrength starts at the neutral midpoint and applies bounded shifts
// for EMA alignment, MACD histogram magnitude, RSI location and EMA
// crossover, clamped to the documented [0,100] score range.
func trendStrength(alignment models.EMATrendAlignment, histogram, price, rsi14 float64, crossover models.EMACrossover) float64 {
	score := 50.0

	switch alignment {
	case models.EMAAlignmentBullish:
		score += 15
	case models.EMAAlignmentBearish:
		score -= 15
	}

	if price > 0 {
		score += clamp(histogram/price*10000, -10, 10)
	}

	score += clamp((rsi14-50)/5, -10, 10)

	switch crossover {
	case models.EMACrossoverGolden:
		score += 8
	case models.EMACrossoverDeath:
		score -= 8
	}

	return clamp(math.Round(score), 0, 100)
}

func volumeTrend(volumes []float64) models.VolumeTrend {
	if len(volumes) < 10 {
		return models.VolumeTrendStable
	}
	n := len(volumes)
	recent := average(volumes[n-5:])
	prior := average(volumes[n-10 : n-5])
	if prior == 0 {
		return models.VolumeTrendStable
	}
	change := (recent - prior) / prior
	switch {
	case change > 0.3:
		return models.VolumeTrendIncreasing
	case change < -0.3:
		return models.VolumeTrendDecreasing
	default:
		return models.VolumeTrendStable
	}
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round8(v float64) float64 { return math.Round(v*1e8) / 1e8 }
