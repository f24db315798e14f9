package signals

import "github.com/driftline/signalcore/pkg/models"

// emitTags derives the closed signal-tag vocabulary (spec.md Glossary)
// from a scored TokenSignal. Tags are informational labels read by the
// Position Manager's exit rules and the oracle's prompt context; a token
// can carry any number of them.
func emitTags(sig models.TokenSignal) []models.SignalTag {
	var tags []models.SignalTag
	add := func(t models.SignalTag) { tags = append(tags, t) }

	switch {
	case sig.Change24h >= 40:
		add(models.TagStrongUptrend)
	case sig.Change24h >= 15:
		add(models.TagUptrend)
	case sig.Change24h >= 5:
		add(models.TagMildUptrend)
	case sig.Change24h <= -40:
		add(models.TagStrongDowntrend)
	case sig.Change24h <= -15:
		add(models.TagDowntrend)
	}

	if sig.Change1h <= -20 {
		add(models.TagFlashCrash)
	} else if sig.Change1h <= -10 {
		add(models.TagSharpDrop)
	}
	if sig.Change1h >= 30 {
		add(models.TagParabolic)
	}
	if sig.VolumeBreakout {
		add(models.TagVolumeBreakout)
		add(models.TagBreakout)
	}

	switch {
	case sig.VolumeScore >= 85:
		add(models.TagHighVolumeSurge)
	case sig.VolumeScore >= 55:
		add(models.TagAboveAvgVolume)
	case sig.VolumeScore <= 20:
		add(models.TagLowVolume)
	}

	switch {
	case sig.BuyPressureScore >= 70:
		add(models.TagStrongBuyPressure)
	case sig.BuyPressureScore >= 55:
		add(models.TagBuyPressure)
	case sig.BuyPressureScore <= 20:
		add(models.TagHeavySellPressure)
	case sig.BuyPressureScore <= 35:
		add(models.TagSellPressure)
	}

	switch {
	case sig.LiquidityScore >= 80:
		add(models.TagDeepLiquidity)
	case sig.LiquidityScore <= 20:
		add(models.TagLowLiquidityRisk)
	}

	if sig.Trending {
		add(models.TagTrending)
	}
	if sig.Boosted {
		add(models.TagBoosted)
	}

	switch {
	case sig.SafetyScore >= 80:
		add(models.TagHighSafety)
	case sig.SafetyScore < 40:
		add(models.TagSafetyRisk)
	}

	switch {
	case sig.RugRiskScore >= 65:
		add(models.TagHighRugRisk)
	case sig.RugRiskScore >= 40:
		add(models.TagModerateRugRisk)
	}

	switch sig.SmartMoneyFlow {
	case models.SmartMoneyStrongBuy:
		add(models.TagSmartMoneyStrongBuy)
		add(models.TagSmartMoneyInflow)
	case models.SmartMoneyBuy:
		add(models.TagSmartMoneyBuy)
		add(models.TagSmartMoneyInterest)
	case models.SmartMoneySell:
		add(models.TagSmartMoneySell)
	case models.SmartMoneyStrongSell:
		add(models.TagSmartMoneyStrongSell)
	}

	if sig.MomentumAcceleration > 3 {
		add(models.TagMomentumAccelerating)
	} else if sig.MomentumAcceleration < -3 {
		add(models.TagMomentumDecelerating)
	}

	switch sig.WhaleActivity {
	case models.WhaleAccumulating:
		add(models.TagWhaleAccumulating)
	case models.WhaleDistributing:
		add(models.TagWhaleDistributing)
	}
	if sig.Holders > 0 && sig.MarketCap > 0 {
		// a concentrated top-holder base combined with real market cap
		// is the cheapest available proxy for whale concentration risk.
		if sig.RugRiskScore >= 45 && sig.Holders < 300 {
			add(models.TagWhaleConcentration)
		}
	}
	if sig.Liquidity > 0 && sig.Volume24h > 3*sig.Liquidity {
		add(models.TagVolumeExceedsLiq)
	}

	switch {
	case sig.ConvictionScore >= 75:
		add(models.TagHighConviction)
	case sig.ConvictionScore >= 55:
		add(models.TagModerateConviction)
	}

	if sig.ShortTermMomentum >= 65 {
		add(models.TagShortTermBullish)
	} else if sig.ShortTermMomentum <= 35 {
		add(models.TagShortTermBearish)
	}

	switch {
	case sig.VolatilityScore >= 85:
		add(models.TagExtremeVolatility)
	case sig.VolatilityScore >= 70:
		add(models.TagHighVolatility)
	}

	switch sig.LifecyclePhase {
	case models.LifecycleLaunch:
		add(models.TagNewLaunch)
	case models.LifecycleGrowth:
		add(models.TagGrowthPhase)
	}

	switch sig.Indicators.EMATrendAlignment {
	case models.EMAAlignmentBullish:
		add(models.TagEMABullishAligned)
	case models.EMAAlignmentBearish:
		add(models.TagEMABearishAligned)
	}
	switch sig.Indicators.EMACrossover {
	case models.EMACrossoverGolden:
		add(models.TagGoldenCross)
	case models.EMACrossoverDeath:
		add(models.TagDeathCross)
	}

	switch {
	case sig.Indicators.RSI14 > 80:
		add(models.TagRSIOverbought)
	case sig.Indicators.RSI14 > 70:
		add(models.TagRSIHigh)
	case sig.Indicators.RSI14 < 20:
		add(models.TagRSIOversold)
	case sig.Indicators.RSI14 < 30:
		add(models.TagRSILow)
	}
	switch sig.Indicators.RSIDivergence {
	case models.RSIDivergenceBullish:
		add(models.TagRSIBullishDivergence)
	case models.RSIDivergenceBearish:
		add(models.TagRSIBearishDivergence)
	}

	if sig.Indicators.IsOverextended {
		add(models.TagOverextended)
	}
	if sig.Indicators.IsPullback {
		add(models.TagPullbackEntry)
	}

	if sig.Indicators.MACDLine > sig.Indicators.MACDSignal && sig.Indicators.MACDHistogram > 0 {
		add(models.TagMACDBullish)
	} else if sig.Indicators.MACDLine < sig.Indicators.MACDSignal && sig.Indicators.MACDHistogram < 0 {
		add(models.TagMACDBearish)
	}

	switch {
	case sig.Indicators.TrendStrength >= 70:
		add(models.TagStrongTrend)
	case sig.Indicators.TrendStrength <= 30:
		add(models.TagWeakTrend)
	}

	switch {
	case sig.SocialSentimentScore >= 75:
		add(models.TagSocialBuzzHigh)
	case sig.SocialSentimentScore >= 60:
		add(models.TagSocialPositive)
	case sig.SocialSentimentScore <= 30:
		add(models.TagSocialNegative)
	}
	if sig.SocialSpike {
		add(models.TagSocialSpike)
	}

	switch sig.NewsSentiment {
	case models.NewsSentimentMajorBullish:
		add(models.TagNewsMajorBullish)
	case models.NewsSentimentBullish:
		add(models.TagNewsBullish)
	case models.NewsSentimentBearish:
		add(models.TagNewsBearish)
	case models.NewsSentimentMajorBearish:
		add(models.TagNewsMajorBearish)
	}

	switch {
	case sig.FearGreedValue <= 10:
		add(models.TagExtremeFear)
	case sig.FearGreedValue <= 25:
		add(models.TagMarketFear)
	case sig.FearGreedValue >= 90:
		add(models.TagExtremeGreed)
	case sig.FearGreedValue >= 75:
		add(models.TagMarketGreed)
	}

	if sig.LiquidityDraining {
		add(models.TagLiquidityDraining)
	}
	if sig.LiquidityGrowing {
		add(models.TagLiquidityGrowing)
	}
	if sig.LiquidityHealthScore < 15 {
		add(models.TagLiquidityCritical)
	}

	switch sig.LiquidityFlow {
	case models.LiquidityFlowOutflow:
		add(models.TagMarketLiquidityOutfl)
	case models.LiquidityFlowInflow:
		add(models.TagMarketLiquidityInfl)
	}

	return tags
}
