package runner

import (
	"context"
	"testing"
	"time"

	"github.com/driftline/signalcore/internal/indicators"
	"github.com/driftline/signalcore/internal/learning"
	"github.com/driftline/signalcore/internal/oracle"
	"github.com/driftline/signalcore/internal/ports"
	"github.com/driftline/signalcore/internal/ports/testdoubles"
	"github.com/driftline/signalcore/internal/positions"
	"github.com/driftline/signalcore/internal/signals"
	"github.com/driftline/signalcore/internal/tracker"
	"github.com/driftline/signalcore/pkg/models"
)

// The data-source stubs below mirror internal/signals/builder_test.go's
// pattern, authored locally since those are unexported to the signals
// package.

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

// samplePair is a well-formed, low-rug-risk pair that clears every
// post-oracle gate rule for a Balanced-strategy agent: ample liquidity and
// holders, healthy safety score, and enough buy pressure/momentum to clear
// the default adaptive thresholds.
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

// testHarness bundles one fully-wired Runner plus the fakes backing it, so
// each test can mutate the repository/oracle fixtures before invoking a
// cycle directly.
type testHarness struct {
	runner *Runner
	repo   *testdoubles.Repository
	oracle *testdoubles.Oracle
	broad  *testdoubles.Broadcaster
}

func newHarness(pairs []ports.Pair) *testHarness {
	repo := testdoubles.NewRepository()
	broad := &testdoubles.Broadcaster{}
	fakeOracle := &testdoubles.Oracle{}

	learningStores := map[models.Strategy]*learning.Store{
		models.StrategyBalanced: learning.NewStore(repo, models.StrategyBalanced),
	}

	builder := &signals.Builder{
		Engine:     indicators.NewEngine(45*time.Second, 200),
		Pairs:      stubPairs{pairs: pairs},
		Snapshots:  stubSnapshots{},
		SmartMoney: stubSmartMoney{},
		Social:     stubSocial{},
		News:       stubNews{},
		FearGreed:  stubFearGreed{},
		Liquidity:  stubLiquidity{},
		Learning:   learningStores,
	}

	r := NewRunner(
		repo,
		broad,
		builder,
		positions.NewManager(),
		oracle.NewAdapter(fakeOracle, 1024),
		learningStores,
		tracker.NewTracker(),
		tracker.NewCooldown(),
		10*time.Second,
		5*time.Second,
		2*time.Second,
	)

	return &testHarness{runner: r, repo: repo, oracle: fakeOracle, broad: broad}
}

func newTestAgent(id string) *models.AgentConfig {
	return &models.AgentConfig{
		ID:                id,
		WalletAddress:     "wallet-" + id,
		Strategy:          models.StrategyBalanced,
		Status:            models.AgentStatusRunning,
		MaxPositionSize:   100,
		MaxDailyTrades:    10,
		StopLossPercent:   10,
		TakeProfitPercent: 20,
	}
}

func (h *testHarness) addRunnableAgent(agent *models.AgentConfig) {
	h.repo.Agents[agent.ID] = agent
	h.repo.WalletToUser[agent.WalletAddress] = "user-" + agent.ID
	h.repo.ActiveSubscriptions["user-"+agent.ID] = true
}

const buyDecisionJSON = `{"action":"buy","tokenSymbol":"TOKA","tokenAddress":"tokenA","chain":"solana","amount":100,"confidence":90,"reasoning":"strong breakout","signalScore":80}`

func TestRunCycle_FullBuyCycle(t *testing.T) {
	h := newHarness([]ports.Pair{samplePair()})
	h.oracle.RawResponse = buyDecisionJSON

	agent := newTestAgent("agent-1")
	h.addRunnableAgent(agent)

	h.runner.runCycle(context.Background())

	if len(h.repo.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(h.repo.Trades))
	}
	trade := h.repo.Trades[0]
	if trade.Type != models.TradeBuy {
		t.Fatalf("expected a buy trade, got %v", trade.Type)
	}
	if trade.Amount != 30 {
		t.Fatalf("expected a conviction-sized buy of 30 (ladder 0.30 x maxPositionSize 100), got %v", trade.Amount)
	}

	var opened *models.AgentPosition
	for _, p := range h.repo.Positions {
		opened = p
	}
	if opened == nil {
		t.Fatal("expected a position to have been opened")
	}
	if opened.TokenAddress != "tokenA" || opened.Size != 30 {
		t.Fatalf("unexpected opened position: %+v", opened)
	}

	updated := h.repo.Agents[agent.ID]
	if updated.DailyTradesUsed != 1 {
		t.Fatalf("expected DailyTradesUsed=1, got %d", updated.DailyTradesUsed)
	}

	if h.broad.Len() == 0 {
		t.Fatal("expected at least one broadcast event")
	}
}

func TestRunCycle_HoldDecisionOpensNoPosition(t *testing.T) {
	h := newHarness([]ports.Pair{samplePair()})
	h.oracle.RawResponse = `{"action":"hold","reasoning":"nothing compelling","confidence":40}`

	agent := newTestAgent("agent-2")
	h.addRunnableAgent(agent)

	h.runner.runCycle(context.Background())

	if len(h.repo.Trades) != 0 {
		t.Fatalf("expected no trades on a hold decision, got %d", len(h.repo.Trades))
	}
	if len(h.repo.Positions) != 0 {
		t.Fatalf("expected no positions opened, got %d", len(h.repo.Positions))
	}
}

func TestRunCycle_SubscriptionExpiredSkipsOracle(t *testing.T) {
	h := newHarness([]ports.Pair{samplePair()})
	h.oracle.RawResponse = buyDecisionJSON

	agent := newTestAgent("agent-3")
	h.repo.Agents[agent.ID] = agent
	h.repo.WalletToUser[agent.WalletAddress] = "user-agent-3"
	// No active subscription recorded for this user.

	h.runner.runCycle(context.Background())

	updated := h.repo.Agents[agent.ID]
	if updated.Status != models.AgentStatusSubscriptionExpired {
		t.Fatalf("expected agent status to become subscription_expired, got %v", updated.Status)
	}
	if len(h.repo.Trades) != 0 {
		t.Fatalf("expected no trades for an agent with no active subscription, got %d", len(h.repo.Trades))
	}

	found := false
	for _, e := range h.broad.Events {
		if e.Kind == ports.EventAgentSubscriptionExpired {
			found = true
		}
	}
	if !found {
		t.Fatal("expected an EventAgentSubscriptionExpired broadcast")
	}
}

func TestRunCycle_DailyTradeLimitBlocksNewTrades(t *testing.T) {
	h := newHarness([]ports.Pair{samplePair()})
	h.oracle.RawResponse = buyDecisionJSON

	agent := newTestAgent("agent-4")
	agent.MaxDailyTrades = 1
	agent.DailyTradesUsed = 1
	h.addRunnableAgent(agent)

	h.runner.runCycle(context.Background())

	if len(h.repo.Trades) != 0 {
		t.Fatalf("expected no trades once the daily trade limit is reached, got %d", len(h.repo.Trades))
	}
	if len(h.repo.Logs) != 1 || h.repo.Logs[0].Action != models.ActionBlocked {
		t.Fatalf("expected a single ActionBlocked log entry, got %+v", h.repo.Logs)
	}
}

func TestRunCycle_DropsOverlappingTick(t *testing.T) {
	h := newHarness([]ports.Pair{samplePair()})
	h.oracle.RawResponse = buyDecisionJSON

	agent := newTestAgent("agent-5")
	h.addRunnableAgent(agent)

	h.runner.inFlight.Store(true)
	h.runner.runCycle(context.Background())

	if len(h.repo.Trades) != 0 {
		t.Fatalf("expected the overlapping tick to be dropped entirely, got %d trades", len(h.repo.Trades))
	}
	h.runner.inFlight.Store(false)
}

// fakeMirror records every trade/log handed to it, standing in for the
// optional ClickHouse analytics sink.
type fakeMirror struct {
	trades []models.AgentTrade
	logs   []models.AgentLog
}

func (m *fakeMirror) AddTrade(t models.AgentTrade) { m.trades = append(m.trades, t) }
func (m *fakeMirror) AddLog(l models.AgentLog)     { m.logs = append(m.logs, l) }

func TestRunCycle_MirrorsTradesAndLogsWhenAttached(t *testing.T) {
	h := newHarness([]ports.Pair{samplePair()})
	h.oracle.RawResponse = buyDecisionJSON

	mirror := &fakeMirror{}
	h.runner.SetMirror(mirror)

	agent := newTestAgent("agent-6")
	h.addRunnableAgent(agent)

	h.runner.runCycle(context.Background())

	if len(mirror.trades) != 1 {
		t.Fatalf("expected 1 mirrored trade, got %d", len(mirror.trades))
	}
	if len(mirror.logs) == 0 {
		t.Fatal("expected at least 1 mirrored log entry")
	}
}

func TestRunCycle_NilMirrorIsSafe(t *testing.T) {
	h := newHarness([]ports.Pair{samplePair()})
	h.oracle.RawResponse = buyDecisionJSON

	agent := newTestAgent("agent-7")
	h.addRunnableAgent(agent)

	// h.runner.Mirror is left nil; runCycle must not panic.
	h.runner.runCycle(context.Background())

	if len(h.repo.Trades) != 1 {
		t.Fatalf("expected the trade to still execute with no mirror attached, got %d", len(h.repo.Trades))
	}
}

// fakeLockFactory/fakeLock let a test control whether a given agent's
// distributed lock is already held by "another instance".
type fakeLockFactory struct {
	deniedAgents map[string]bool
}

func (f *fakeLockFactory) CreateAgentLock(agentID string) ports.AgentLock {
	return &fakeLock{agentID: agentID, denied: f.deniedAgents[agentID]}
}

type fakeLock struct {
	agentID string
	denied  bool
	held    bool
}

func (l *fakeLock) TryAcquire(ctx context.Context) (bool, error) {
	if l.denied {
		return false, nil
	}
	l.held = true
	return true, nil
}
func (l *fakeLock) Release(ctx context.Context) error              { l.held = false; return nil }
func (l *fakeLock) CheckLockHeld(ctx context.Context) (bool, error) { return l.held, nil }
func (l *fakeLock) GetAgentID() string                              { return l.agentID }

func TestRunCycle_SkipsAgentWhenLockDenied(t *testing.T) {
	h := newHarness([]ports.Pair{samplePair()})
	h.oracle.RawResponse = buyDecisionJSON

	agent := newTestAgent("agent-8")
	h.addRunnableAgent(agent)

	h.runner.SetLockFactory(&fakeLockFactory{deniedAgents: map[string]bool{agent.ID: true}})

	h.runner.runCycle(context.Background())

	if len(h.repo.Trades) != 0 {
		t.Fatalf("expected no trades when the distributed lock is denied, got %d", len(h.repo.Trades))
	}
}

func TestRunCycle_RunsAgentWhenLockGranted(t *testing.T) {
	h := newHarness([]ports.Pair{samplePair()})
	h.oracle.RawResponse = buyDecisionJSON

	agent := newTestAgent("agent-9")
	h.addRunnableAgent(agent)

	h.runner.SetLockFactory(&fakeLockFactory{deniedAgents: map[string]bool{}})

	h.runner.runCycle(context.Background())

	if len(h.repo.Trades) != 1 {
		t.Fatalf("expected 1 trade once the distributed lock is granted, got %d", len(h.repo.Trades))
	}
}
