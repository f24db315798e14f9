// Package signals implements the Signal Builder: per-cycle fusion of live
// market data, on-chain/social/news context, and technical indicators into
// a ranked, scored TokenSignal list, rescored twice more (market-regime
// breadth, then adaptive per-signal weights) before the Agent Runner
// consults it.
package signals

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/driftline/signalcore/internal/indicators"
	"github.com/driftline/signalcore/internal/learning"
	"github.com/driftline/signalcore/internal/ports"
	"github.com/driftline/signalcore/pkg/logger"
	"github.com/driftline/signalcore/pkg/models"
)

// Builder fuses every data source port into scored TokenSignals. One
// Builder is constructed per process and shared by every cycle; it owns
// no per-cycle state beyond the shared indicator Engine.
type Builder struct {
	Engine     *indicators.Engine
	Pairs      ports.PairSource
	Snapshots  ports.TokenSnapshotSource
	SmartMoney ports.SmartMoneySource
	Social     ports.SocialSource
	News       ports.NewsSource
	FearGreed  ports.FearGreedSource
	Liquidity  ports.LiquiditySource
	Learning   map[models.Strategy]*learning.Store
}

// strategyDefaults maps strategy -> (baseStopLossPct, baseTakeProfitPct).
var strategyDefaults = map[models.Strategy][2]float64{
	models.StrategyConservative: {8, 18},
	models.StrategyBalanced:     {12, 30},
	models.StrategyAggressive:   {18, 50},
	models.StrategyDegen:        {25, 80},
}

func volatilityMultiplier(volatility float64) float64 {
	switch {
	case volatility <= 10:
		return 1.6
	case volatility <= 25:
		return 1.35
	case volatility <= 40:
		return 1.15
	case volatility <= 70:
		return 1.0
	default:
		return 0.85
	}
}

func regimeTakeProfitMultiplier(regime models.MarketRegime) float64 {
	switch regime {
	case models.RegimeBull:
		return 1.3
	case models.RegimeBear:
		return 0.7
	default:
		return 1.0
	}
}

// BuildSignals runs the full three-pass pipeline for one (chain, strategy)
// group: merge+score every live token, compute market breadth, then
// rescore with regime-adaptive weights.
func (b *Builder) BuildSignals(ctx context.Context, chain *models.Chain, strategy models.Strategy) ([]models.TokenSignal, models.MarketBreadth, error) {
	pairs, err := b.Pairs.ListLivePairs(ctx)
	if err != nil {
		return nil, models.MarketBreadth{}, err
	}

	now := time.Now()
	store := b.Learning[strategy]

	signals := make([]models.TokenSignal, 0, len(pairs))
	for _, pair := range pairs {
		if chain != nil && pair.Chain != *chain {
			continue
		}
		signals = append(signals, b.mergeAndScoreToken(ctx, pair, strategy, now))
	}

	sortDescending(signals)
	breadth := computeMarketBreadth(signals)

	weights := getAdaptiveWeights(breadth.Regime)
	for i := range signals {
		rescore(&signals[i], weights, breadth, store, strategy)
	}
	sortDescending(signals)

	return signals, breadth, nil
}

func sortDescending(signals []models.TokenSignal) {
	sort.Slice(signals, func(i, j int) bool {
		return signals[i].OverallSignalScore > signals[j].OverallSignalScore
	})
}

// mergeAndScoreToken is the first-pass, per-token derivation described in
// spec.md §4.2 steps 1-9.
func (b *Builder) mergeAndScoreToken(ctx context.Context, pair ports.Pair, strategy models.Strategy, now time.Time) models.TokenSignal {
	key := models.TokenKey{Chain: pair.Chain, Address: pair.BaseAddress}

	sig := models.TokenSignal{
		Chain:       pair.Chain,
		Address:     pair.BaseAddress,
		Symbol:      pair.BaseSymbol,
		Price:       pair.PriceUSD,
		Change1h:    pair.PriceChange1h,
		Change24h:   pair.PriceChange24h,
		Volume24h:   pair.Volume24h,
		MarketCap:   pair.MarketCap,
		Liquidity:   pair.LiquidityUSD,
		Buys24h:     pair.Buys24h,
		Sells24h:    pair.Sells24h,
		Trending:    pair.BoostsActive > 0,
		Boosted:     pair.BoostsActive > 0,
		PairCreated: pair.PairCreatedAt,
	}

	var snap *ports.DatabaseTokenSnapshot
	if s, err := b.Snapshots.GetTokenSnapshot(ctx, pair.BaseAddress, pair.Chain); err == nil && s != nil {
		snap = s
		if sig.Price == 0 {
			sig.Price = s.Price
		}
		sig.Holders = s.Holders
		sig.SafetyScore = s.SafetyScore
	} else if err != nil {
		logUnexpectedSource("token_snapshot", err)
	}

	if sig.PairCreated.IsZero() {
		sig.LifecyclePhase = models.LifecycleMature
	} else {
		sig.LifecyclePhase = classifyLifecycle(now.Sub(sig.PairCreated))
	}

	// Step 2: update the price-history ring and compute indicators.
	b.Engine.UpdatePriceHistory(key, now, sig.Price, sig.Volume24h, nil, nil)
	sig.Indicators = b.Engine.ComputeTechnicalIndicators(key, sig.Price)
	bars := b.Engine.Snapshot(key)

	// Step 3: auxiliaries.
	sig.MomentumAcceleration = momentumAcceleration(bars)
	sig.ShortTermMomentum = shortTermMomentum(sig.Change1h)
	sig.VolatilityScore = volatilityScore(bars)
	sig.VolumeBreakout = volumeBreakout(bars)
	sig.WhaleActivity = classifyWhaleActivity(sig.Buys24h, sig.Sells24h, sig.Volume24h, sig.Liquidity, sig.Change1h)

	// Step 4: sub-scores.
	sig.MomentumScore = momentumScore(sig.Change1h, sig.Change24h, sig.Indicators.TrendStrength)
	sig.VolumeScore = volumeScore(sig.Volume24h, sig.MarketCap)
	sig.BuyPressureScore = buyPressureScore(sig.Buys24h, sig.Sells24h)
	sig.LiquidityScore = liquidityScore(sig.Liquidity, sig.MarketCap)
	sig.RugRiskScore = rugRiskScore(sig, snap, now)
	sig.SafetyScoreNorm = sig.SafetyScore
	sig.SmartMoneyScore = 40 // neutral baseline, raised/lowered once merged below

	// Step 5: external signal merges.
	if sm, err := b.SmartMoney.GetSmartMoneySignal(ctx, pair.BaseAddress, pair.Chain); err == nil && sm != nil {
		sig.SmartMoneyFlow = classifySmartMoneyFlow(*sm)
		sig.SmartMoneyScore = smartMoneyScore(sig, *sm)
	} else {
		if err != nil {
			logUnexpectedSource("smart_money", err)
		}
		sig.SmartMoneyFlow = models.SmartMoneyNeutral
	}
	if soc, err := b.Social.GetSocial(ctx, pair.BaseSymbol); err == nil && soc != nil {
		sig.SocialSentimentScore = socialSentimentScore(*soc)
		sig.SocialSpike = soc.SocialSpike
	} else if err != nil {
		logUnexpectedSource("social", err)
	}
	if news, err := b.News.GetNewsForToken(ctx, pair.BaseSymbol); err == nil && news != nil {
		sig.NewsSentiment = classifyNewsSentiment(news.OverallSentiment)
		sig.NewsImpact = classifyNewsImpact(news.HighImpactCount)
		sig.NewsScore = newsScore(news.OverallSentiment, sig.NewsImpact)
	} else {
		if err != nil {
			logUnexpectedSource("news", err)
		}
		sig.NewsSentiment = models.NewsSentimentNeutral
		sig.NewsImpact = models.NewsImpactNone
	}
	if fg, err := b.FearGreed.Get(ctx); err == nil && fg != nil {
		sig.FearGreedValue = fg.Value
	} else if err != nil {
		logUnexpectedSource("fear_greed", err)
	}
	if liq, err := b.Liquidity.GetSnapshot(ctx, pair.BaseAddress, pair.Chain); err == nil && liq != nil {
		sig.LiquidityHealthScore = liquidityHealthScore(*liq)
		sig.LiquidityDraining = liq.IsDraining
		sig.LiquidityGrowing = liq.IsGrowing
		if liq.IsDraining {
			sig.LiquidityFlow = models.LiquidityFlowOutflow
		} else if liq.IsGrowing {
			sig.LiquidityFlow = models.LiquidityFlowInflow
		} else {
			sig.LiquidityFlow = models.LiquidityFlowNeutral
		}
	} else if err != nil {
		logUnexpectedSource("liquidity", err)
	}

	// Step 6: dynamic stop-loss / take-profit (regime unknown in this
	// pass; the third-pass rescore recomputes TP once breadth exists).
	base := strategyDefaults[strategy]
	volMult := volatilityMultiplier(sig.VolatilityScore)
	sig.DynamicStopLoss = round2(base[0] * volMult)
	sig.DynamicTakeProfit = round2(base[1] * volMult)

	// Step 7: initial overall score (neutral weights).
	sig.OverallSignalScore = clamp0to100(initialScore(sig))

	// Step 8: conviction rubric.
	sig.ConvictionScore = clamp0to100(convictionRubric(sig))

	// Step 9: categorical tags.
	sig.Signals = emitTags(sig)

	return sig
}

func classifyLifecycle(age time.Duration) models.LifecyclePhase {
	switch {
	case age < time.Hour:
		return models.LifecycleLaunch
	case age < 24*time.Hour:
		return models.LifecycleGrowth
	case age < 30*24*time.Hour:
		return models.LifecycleMature
	default:
		return models.LifecycleEstablished
	}
}

func momentumAcceleration(bars []models.PriceBar) float64 {
	if len(bars) < 3 {
		return 0
	}
	n := len(bars)
	last := pctChange(bars[n-2].C, bars[n-1].C)
	prior := pctChange(bars[n-3].C, bars[n-2].C)
	return round2(last - prior)
}

func pctChange(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to - from) / from * 100
}

func shortTermMomentum(change1h float64) float64 {
	return clamp0to100(50 + 3*change1h)
}

func volatilityScore(bars []models.PriceBar) float64 {
	if len(bars) < 11 {
		return 40
	}
	n := len(bars)
	returns := make([]float64, 10)
	for i := 0; i < 10; i++ {
		returns[i] = pctChange(bars[n-11+i].C, bars[n-10+i].C)
	}
	stddev := stddevOf(returns)
	switch {
	case stddev < 1:
		return 10
	case stddev < 2.5:
		return 25
	case stddev < 5:
		return 40
	case stddev < 8:
		return 55
	case stddev < 12:
		return 70
	case stddev < 20:
		return 85
	default:
		return 100
	}
}

func stddevOf(values []float64) float64 {
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}

func volumeBreakout(bars []models.PriceBar) bool {
	n := len(bars)
	if n < 11 {
		return false
	}
	var sum float64
	var count int
	for i := n - 11; i < n-1; i++ {
		if bars[i].V > 0 {
			sum += bars[i].V
			count++
		}
	}
	if count == 0 {
		return false
	}
	mean := sum / float64(count)
	return bars[n-1].V > 2.5*mean
}

func classifyWhaleActivity(buys, sells int, volume, liquidity, change1h float64) models.WhaleActivity {
	total := buys + sells
	if total == 0 {
		return models.WhaleNeutral
	}
	buyRatio := float64(buys) / float64(total)
	volToLiq := 0.0
	if liquidity > 0 {
		volToLiq = volume / liquidity
	}
	switch {
	case buyRatio > 0.62 && volToLiq > 0.8 && change1h > 2:
		return models.WhaleAccumulating
	case buyRatio < 0.38 && volToLiq > 0.8 && change1h < -2:
		return models.WhaleDistributing
	default:
		return models.WhaleNeutral
	}
}

func momentumScore(change1h, change24h, trendStrength float64) float64 {
	return clamp0to100(50 + change1h*2 + change24h*0.3 + (trendStrength-50)*0.4)
}

func volumeScore(volume24h, marketCap float64) float64 {
	if marketCap <= 0 {
		return 15
	}
	ratio := volume24h / marketCap
	switch {
	case ratio >= 1.0:
		return 100
	case ratio >= 0.5:
		return 85
	case ratio >= 0.25:
		return 70
	case ratio >= 0.1:
		return 55
	case ratio >= 0.05:
		return 40
	case ratio >= 0.01:
		return 25
	default:
		return 15
	}
}

// buyPressureScore is the one sub-score the invariant ledger (spec.md §8)
// pins exactly: round(buys/(buys+sells)*100), 50 when there is no data.
func buyPressureScore(buys, sells int) float64 {
	total := buys + sells
	if total == 0 {
		return 50
	}
	return math.Round(float64(buys) / float64(total) * 100)
}

func liquidityScore(liquidity, marketCap float64) float64 {
	if marketCap <= 0 {
		if liquidity <= 0 {
			return 10
		}
		return 50
	}
	ratio := liquidity / marketCap
	switch {
	case ratio >= 0.3:
		return 100
	case ratio >= 0.15:
		return 80
	case ratio >= 0.08:
		return 60
	case ratio >= 0.04:
		return 40
	case ratio >= 0.02:
		return 25
	default:
		return 10
	}
}

// rugRiskScore sums contributing risk factors: small liquidity, few
// holders, low liquidity/marketcap ratio, top-holder concentration, dev
// wallet percent, safety score, and sub-1h age — per spec.md §4.2 step 4.
func rugRiskScore(sig models.TokenSignal, snap *ports.DatabaseTokenSnapshot, now time.Time) float64 {
	var risk float64
	if sig.Liquidity < 5000 {
		risk += 25
	} else if sig.Liquidity < 15000 {
		risk += 12
	}
	if sig.Holders < 50 {
		risk += 20
	} else if sig.Holders < 200 {
		risk += 8
	}
	if sig.MarketCap > 0 && sig.Liquidity/sig.MarketCap < 0.03 {
		risk += 15
	}
	if sig.SafetyScore < 40 {
		risk += 20
	} else if sig.SafetyScore < 60 {
		risk += 8
	}
	if snap != nil {
		if snap.TopHolderPercent > 30 {
			risk += 15
		} else if snap.TopHolderPercent > 15 {
			risk += 7
		}
		if snap.DevPercent > 10 {
			risk += 15
		} else if snap.DevPercent > 5 {
			risk += 7
		}
	}
	if !sig.PairCreated.IsZero() && now.Sub(sig.PairCreated) < time.Hour {
		risk += 10
	}
	return clamp0to100(risk)
}

func classifySmartMoneyFlow(sm models.SmartMoneySignal) models.SmartMoneyFlow {
	total := sm.TopTraderBuys + sm.TopTraderSells
	switch {
	case total == 0:
		return models.SmartMoneyNeutral
	case sm.NetFlow > 0 && sm.WhaleAccumulationScore >= 70:
		return models.SmartMoneyStrongBuy
	case sm.NetFlow > 0:
		return models.SmartMoneyBuy
	case sm.NetFlow < 0 && sm.WhaleAccumulationScore <= 30:
		return models.SmartMoneyStrongSell
	case sm.NetFlow < 0:
		return models.SmartMoneySell
	default:
		return models.SmartMoneyNeutral
	}
}

func smartMoneyScore(sig models.TokenSignal, sm models.SmartMoneySignal) float64 {
	score := 40.0
	if sig.Trending {
		score += 10
	}
	if sig.Boosted {
		score += 5
	}
	score += (sig.BuyPressureScore - 50) * 0.3
	score += (sig.VolumeScore - 50) * 0.2
	switch sig.WhaleActivity {
	case models.WhaleAccumulating:
		score += 15
	case models.WhaleDistributing:
		score -= 15
	}
	score += (sm.AvgWalletWinRate - 0.5) * 20
	switch classifySmartMoneyFlow(sm) {
	case models.SmartMoneyStrongBuy:
		score += 20
	case models.SmartMoneyBuy:
		score += 10
	case models.SmartMoneySell:
		score -= 10
	case models.SmartMoneyStrongSell:
		score -= 20
	}
	return clamp0to100(score)
}

func socialSentimentScore(soc models.SocialSignal) float64 {
	score := soc.GalaxyScore*0.4 + soc.Sentiment*0.3
	if soc.SocialSpike {
		score += 10
	}
	score += math.Min(float64(soc.InfluencerMentions)*2, 15)
	if soc.AltRank > 0 && soc.AltRank < 100 {
		score += 5
	}
	return clamp0to100(score)
}

func classifyNewsSentiment(overall float64) models.NewsSentiment {
	switch {
	case overall >= 0.6:
		return models.NewsSentimentMajorBullish
	case overall >= 0.2:
		return models.NewsSentimentBullish
	case overall <= -0.6:
		return models.NewsSentimentMajorBearish
	case overall <= -0.2:
		return models.NewsSentimentBearish
	default:
		return models.NewsSentimentNeutral
	}
}

func classifyNewsImpact(highImpactCount int) models.NewsImpact {
	switch {
	case highImpactCount >= 3:
		return models.NewsImpactHigh
	case highImpactCount >= 1:
		return models.NewsImpactMedium
	default:
		return models.NewsImpactLow
	}
}

func newsScore(overall float64, impact models.NewsImpact) float64 {
	base := 50 + overall*40
	if impact == models.NewsImpactHigh {
		base += (base - 50) * 0.3
	}
	return clamp0to100(base)
}

// liquidityHealthScore takes only the snapshot-argument form per the
// resolved Open Question in SPEC_FULL.md §9.
func liquidityHealthScore(snap models.LiquiditySnapshot) float64 {
	score := 50.0
	if snap.IsGrowing {
		score += 25
	}
	if snap.IsDraining {
		score -= 25
	}
	if snap.VolumeToLiqRatio > 3 {
		score -= 15
	}
	if snap.HasAbnormalActivity {
		score -= 15
	}
	return clamp0to100(score)
}

func initialScore(sig models.TokenSignal) float64 {
	score := sig.MomentumScore*0.18 +
		sig.VolumeScore*0.12 +
		sig.BuyPressureScore*0.12 +
		sig.LiquidityScore*0.08 +
		(100-sig.RugRiskScore)*0.10 +
		sig.SmartMoneyScore*0.12 +
		sig.ShortTermMomentum*0.08 +
		sig.Indicators.TrendStrength*0.12

	if sig.VolumeBreakout {
		score += 5
	}
	if sig.Indicators.IsPullback {
		score += 4
	}
	if sig.Indicators.IsOverextended {
		score -= 6
	}
	return score
}

func convictionRubric(sig models.TokenSignal) float64 {
	score := sig.OverallSignalScore * 0.35
	score += sig.MomentumScore * 0.15
	score += sig.BuyPressureScore * 0.10
	score += sig.SmartMoneyScore * 0.10
	score += (100 - sig.RugRiskScore) * 0.15
	score += sig.Indicators.TrendStrength * 0.15

	if sig.WhaleActivity == models.WhaleAccumulating {
		score += 8
	}
	if sig.Indicators.EMATrendAlignment == models.EMAAlignmentBullish {
		score += 6
	}
	if sig.Indicators.RSIDivergence == models.RSIDivergenceBullish {
		score += 5
	}
	return score
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func clamp0to100(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// FormatSignalsForAI renders the top `limit` ranked signals as one text
// line per token, used as the oracle prompt's ranked-signal table.
func FormatSignalsForAI(signals []models.TokenSignal, limit int) string {
	if limit > len(signals) {
		limit = len(signals)
	}
	var b strings.Builder
	for i := 0; i < limit; i++ {
		s := signals[i]
		b.WriteString(s.Symbol)
		b.WriteString(" | ")
		b.WriteString(string(s.Chain))
		b.WriteString(" | score=")
		b.WriteString(trimFloat(s.OverallSignalScore))
		b.WriteString(" conviction=")
		b.WriteString(trimFloat(s.ConvictionScore))
		b.WriteString(" momentum=")
		b.WriteString(trimFloat(s.MomentumScore))
		b.WriteString(" buyPressure=")
		b.WriteString(trimFloat(s.BuyPressureScore))
		b.WriteString(" rug=")
		b.WriteString(trimFloat(s.RugRiskScore))
		b.WriteString(" rsi14=")
		b.WriteString(trimFloat(s.Indicators.RSI14))
		b.WriteString(" tags=[")
		for j, tag := range s.Signals {
			if j > 0 {
				b.WriteString(",")
			}
			b.WriteString(string(tag))
		}
		b.WriteString("]\n")
	}
	return b.String()
}

func trimFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}

// logUnexpectedSource logs a transient data-source failure without
// aborting the cycle — the token is scored with defaults for that source
// per spec.md §7's transient-source-failure handling.
func logUnexpectedSource(source string, err error) {
	logger.Warn("signal source fetch failed, using defaults", zap.String("source", source), zap.Error(err))
}
