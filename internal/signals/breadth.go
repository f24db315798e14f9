package signals

import (
	"github.com/driftline/signalcore/internal/learning"
	"github.com/driftline/signalcore/pkg/models"
)

const breadthSampleSize = 50

// computeMarketBreadth derives the market-wide regime snapshot from the
// top-50 signals by initial score, per spec.md §4.2's second pass. Callers
// must have already sorted `signals` descending by OverallSignalScore.
func computeMarketBreadth(signals []models.TokenSignal) models.MarketBreadth {
	n := len(signals)
	if n > breadthSampleSize {
		n = breadthSampleSize
	}
	if n == 0 {
		return models.MarketBreadth{Regime: models.RegimeNeutral}
	}
	sample := signals[:n]

	var sumMomentum, sumBuyPressure, sumRSI, sumTrend float64
	var positive1h, bullishEMA, bearishEMA, volumeUp int

	for _, s := range sample {
		sumMomentum += s.MomentumScore
		sumBuyPressure += s.BuyPressureScore
		sumRSI += s.Indicators.RSI14
		sumTrend += s.Indicators.TrendStrength
		if s.Change1h > 0 {
			positive1h++
		}
		switch s.Indicators.EMATrendAlignment {
		case models.EMAAlignmentBullish:
			bullishEMA++
		case models.EMAAlignmentBearish:
			bearishEMA++
		}
		if s.Indicators.VolumeTrend == models.VolumeTrendIncreasing {
			volumeUp++
		}
	}

	breadth := models.MarketBreadth{
		AvgMomentum:      sumMomentum / float64(n),
		AvgBuyPressure:   sumBuyPressure / float64(n),
		PctPositive1h:    pct(positive1h, n),
		AvgRSI:           sumRSI / float64(n),
		AvgTrendStrength: sumTrend / float64(n),
		PctBullishEMA:    pct(bullishEMA, n),
		PctBearishEMA:    pct(bearishEMA, n),
		PctVolumeTrendUp: pct(volumeUp, n),
	}

	score := 50.0
	score += (breadth.AvgMomentum - 50) * 0.25
	score += (breadth.AvgBuyPressure - 50) * 0.2
	score += (breadth.PctPositive1h - 50) * 0.15
	score += (breadth.AvgRSI - 50) * 0.15
	score += (breadth.AvgTrendStrength - 50) * 0.15
	score += (breadth.PctBullishEMA - breadth.PctBearishEMA) * 0.15
	score += (breadth.PctVolumeTrendUp - 50) * 0.1

	breadth.BreadthScore = clamp0to100(score)

	switch {
	case breadth.BreadthScore >= 68:
		breadth.Regime = models.RegimeBull
	case breadth.BreadthScore <= 32:
		breadth.Regime = models.RegimeBear
	default:
		breadth.Regime = models.RegimeNeutral
	}

	return breadth
}

func pct(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(count) / float64(total) * 100
}

// adaptiveWeights is the regime-specific score-weight table from spec.md
// §4.2's third pass; fields sum to <=1.0, the remainder absorbed by the
// additive bonuses applied in rescore.
type adaptiveWeights struct {
	momentum, volume, buyPressure, liquidity, safety float64
	smartMoney, antiRug, stMom, trend, social         float64
}

func getAdaptiveWeights(regime models.MarketRegime) adaptiveWeights {
	switch regime {
	case models.RegimeBull:
		return adaptiveWeights{0.17, 0.12, 0.10, 0.05, 0.05, 0.12, 0.04, 0.05, 0.12, 0.10}
	case models.RegimeBear:
		return adaptiveWeights{0.11, 0.09, 0.12, 0.10, 0.11, 0.10, 0.09, 0.04, 0.09, 0.07}
	default:
		return adaptiveWeights{0.16, 0.11, 0.11, 0.07, 0.07, 0.11, 0.05, 0.04, 0.11, 0.09}
	}
}

// rescore is the third pass: recompute overallSignalScore with regime-
// adaptive weights, recompute dynamicStopLoss/TakeProfit and conviction,
// and re-emit the signal tag list.
func rescore(sig *models.TokenSignal, w adaptiveWeights, breadth models.MarketBreadth, store *learning.Store, strategy models.Strategy) {
	sig.MarketRegime = breadth.Regime

	score := sig.MomentumScore*w.momentum +
		sig.VolumeScore*w.volume +
		sig.BuyPressureScore*w.buyPressure +
		sig.LiquidityScore*w.liquidity +
		sig.SafetyScoreNorm*w.safety +
		sig.SmartMoneyScore*w.smartMoney +
		(100-sig.RugRiskScore)*w.antiRug +
		sig.ShortTermMomentum*w.stMom +
		sig.Indicators.TrendStrength*w.trend +
		sig.SocialSentimentScore*w.social

	score += techBonus(sig)
	score += socialBonus(sig)
	score += smartMoneyFlowBonus(sig)
	score += newsBonus(sig)
	score += fearGreedBonus(sig)
	score += liquidityBonus(sig)
	score += categoricalBonus(sig)

	sig.OverallSignalScore = clamp0to100(score)

	base := strategyDefaults[strategy]
	volMult := volatilityMultiplier(sig.VolatilityScore)
	sig.DynamicStopLoss = round2(base[0] * volMult)
	sig.DynamicTakeProfit = round2(base[1] * volMult * regimeTakeProfitMultiplier(breadth.Regime))

	conviction := convictionRubric(*sig)
	if store != nil {
		conviction += store.ComputeAdaptiveConvictionBoost(sig.Signals)
	}
	sig.ConvictionScore = clamp0to100(conviction)

	sig.Signals = emitTags(*sig)
}

func techBonus(sig *models.TokenSignal) float64 {
	var bonus float64
	if sig.Indicators.EMATrendAlignment == models.EMAAlignmentBullish {
		bonus += 4
	}
	if sig.Indicators.MACDHistogram > 0 {
		bonus += 3
	}
	return bonus
}

func socialBonus(sig *models.TokenSignal) float64 {
	if sig.SocialSentimentScore > 70 {
		return 3
	}
	return 0
}

func smartMoneyFlowBonus(sig *models.TokenSignal) float64 {
	switch sig.SmartMoneyFlow {
	case models.SmartMoneyStrongBuy:
		return 6
	case models.SmartMoneyBuy:
		return 3
	case models.SmartMoneySell:
		return -3
	case models.SmartMoneyStrongSell:
		return -6
	default:
		return 0
	}
}

func newsBonus(sig *models.TokenSignal) float64 {
	if sig.NewsImpact != models.NewsImpactHigh {
		return 0
	}
	switch sig.NewsSentiment {
	case models.NewsSentimentMajorBullish, models.NewsSentimentBullish:
		return 5
	case models.NewsSentimentMajorBearish, models.NewsSentimentBearish:
		return -5
	default:
		return 0
	}
}

func fearGreedBonus(sig *models.TokenSignal) float64 {
	switch {
	case sig.FearGreedValue <= 20:
		return -2
	case sig.FearGreedValue >= 80:
		return -2
	default:
		return 0
	}
}

func liquidityBonus(sig *models.TokenSignal) float64 {
	switch {
	case sig.LiquidityHealthScore > 80:
		return 3
	case sig.LiquidityHealthScore < 30:
		return -5
	default:
		return 0
	}
}

func categoricalBonus(sig *models.TokenSignal) float64 {
	var bonus float64
	switch sig.WhaleActivity {
	case models.WhaleAccumulating:
		bonus += 4
	case models.WhaleDistributing:
		bonus -= 4
	}
	if sig.VolumeBreakout {
		bonus += 3
	}
	return bonus
}
