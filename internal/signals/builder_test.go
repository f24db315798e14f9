package signals

import (
	"context"
	"testing"
	"time"

	"github.com/driftline/signalcore/internal/indicators"
	"github.com/driftline/signalcore/internal/learning"
	"github.com/driftline/signalcore/internal/ports"
	"github.com/driftline/signalcore/internal/ports/testdoubles"
	"github.com/driftline/signalcore/pkg/models"
)

type stubPairs struct{ pairs []ports.Pair }

func (s stubPairs) ListLivePairs(ctx context.Context) ([]ports.Pair, error) { return s.pairs, nil }

type stubSnapshots struct{}

func (stubSnapshots) GetTokenSnapshot(ctx context.Context, address string, chain models.Chain) (*ports.DatabaseTokenSnapshot, error) {
	return &ports.DatabaseTokenSnapshot{Holders: 500, SafetyScore: 80}, nil
}

type stubSmartMoney struct{}

func (stubSmartMoney) GetSmartMoneySignal(ctx context.Context, address string, chain models.Chain) (*models.SmartMoneySignal, error) {
	return &models.SmartMoneySignal{TopTraderBuys: 10, TopTraderSells: 2, NetFlow: 5000, WhaleAccumulationScore: 75, AvgWalletWinRate: 0.6}, nil
}

type stubSocial struct{}

func (stubSocial) GetSocial(ctx context.Context, symbol string) (*models.SocialSignal, error) {
	return &models.SocialSignal{GalaxyScore: 70, Sentiment: 65, AltRank: 50}, nil
}

type stubNews struct{}

func (stubNews) GetNewsForToken(ctx context.Context, symbol string) (*models.NewsSignal, error) {
	return &models.NewsSignal{OverallSentiment: 0.3, HighImpactCount: 0}, nil
}
func (stubNews) GetOverallMarketNewsSentiment(ctx context.Context) (float64, error) { return 0.1, nil }

type stubFearGreed struct{}

func (stubFearGreed) Get(ctx context.Context) (*models.FearGreed, error) {
	return &models.FearGreed{Value: 55}, nil
}

type stubLiquidity struct{}

func (stubLiquidity) GetSnapshot(ctx context.Context, address string, chain models.Chain) (*models.LiquiditySnapshot, error) {
	return &models.LiquiditySnapshot{IsGrowing: true}, nil
}
func (stubLiquidity) MarketFlowDirection(ctx context.Context) (models.LiquidityFlow, error) {
	return models.LiquidityFlowNeutral, nil
}

func newTestBuilder(pairs []ports.Pair) *Builder {
	return &Builder{
		Engine:     indicators.NewEngine(45*time.Second, 200),
		Pairs:      stubPairs{pairs: pairs},
		Snapshots:  stubSnapshots{},
		SmartMoney: stubSmartMoney{},
		Social:     stubSocial{},
		News:       stubNews{},
		FearGreed:  stubFearGreed{},
		Liquidity:  stubLiquidity{},
		Learning: map[models.Strategy]*learning.Store{
			models.StrategyBalanced: learning.NewStore(testdoubles.NewRepository(), models.StrategyBalanced),
		},
	}
}

func samplePair() ports.Pair {
	return ports.Pair{
		Chain:          models.ChainSolana,
		BaseAddress:    "tokenA",
		BaseSymbol:     "TOKA",
		PriceUSD:       1.5,
		PriceChange1h:  4,
		PriceChange24h: 18,
		Volume24h:      500_000,
		Buys24h:        700,
		Sells24h:       300,
		LiquidityUSD:   200_000,
		MarketCap:      2_000_000,
		BoostsActive:   1,
	}
}

func TestBuildSignals_ScoresAreWithinBounds(t *testing.T) {
	b := newTestBuilder([]ports.Pair{samplePair()})
	signals, breadth, err := b.BuildSignals(context.Background(), nil, models.StrategyBalanced)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(signals) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(signals))
	}
	s := signals[0]

	for name, v := range map[string]float64{
		"momentum":      s.MomentumScore,
		"volume":        s.VolumeScore,
		"buyPressure":   s.BuyPressureScore,
		"liquidity":     s.LiquidityScore,
		"rugRisk":       s.RugRiskScore,
		"smartMoney":    s.SmartMoneyScore,
		"overall":       s.OverallSignalScore,
		"conviction":    s.ConvictionScore,
		"volatility":    s.VolatilityScore,
		"shortTermMom":  s.ShortTermMomentum,
		"social":        s.SocialSentimentScore,
		"news":          s.NewsScore,
		"liquidityHlth": s.LiquidityHealthScore,
	} {
		if v < 0 || v > 100 {
			t.Errorf("score %s out of [0,100] bounds: %v", name, v)
		}
	}

	if breadth.Regime == "" {
		t.Error("expected a classified market regime")
	}
}

func TestBuildSignals_BuyPressureScoreFormula(t *testing.T) {
	b := newTestBuilder([]ports.Pair{samplePair()})
	signals, _, err := b.BuildSignals(context.Background(), nil, models.StrategyBalanced)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := float64(70) // round(700/(700+300)*100)
	if signals[0].BuyPressureScore != want {
		t.Fatalf("expected buyPressureScore=%v, got %v", want, signals[0].BuyPressureScore)
	}
}

func TestBuyPressureScore_NoActivityDefaultsToNeutral(t *testing.T) {
	if got := buyPressureScore(0, 0); got != 50 {
		t.Fatalf("expected neutral buyPressureScore=50 with no buys/sells, got %v", got)
	}
}

func TestGetTopBuySignals_ExcludesFlashCrash(t *testing.T) {
	crash := samplePair()
	crash.PriceChange1h = -25
	b := newTestBuilder([]ports.Pair{crash})
	signals, _, err := b.BuildSignals(context.Background(), nil, models.StrategyDegen)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	shortlist := GetTopBuySignals(signals, models.StrategyDegen)
	for _, s := range shortlist {
		if s.HasTag(models.TagFlashCrash) {
			t.Fatalf("expected flash-crash token to be excluded from buy shortlist")
		}
	}
}
