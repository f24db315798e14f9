// Package runner implements the Agent Runner: the 10-second cycle
// scheduler that lists active agents, prefetches signals per group,
// updates open positions, consults the decision oracle, and executes
// buy/sell decisions through the post-oracle hard-filter gate.
package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/driftline/signalcore/internal/learning"
	"github.com/driftline/signalcore/internal/oracle"
	"github.com/driftline/signalcore/internal/ports"
	"github.com/driftline/signalcore/internal/positions"
	"github.com/driftline/signalcore/internal/signals"
	"github.com/driftline/signalcore/internal/tracker"
	"github.com/driftline/signalcore/pkg/logger"
	"github.com/driftline/signalcore/pkg/models"
	"github.com/driftline/signalcore/pkg/worker"
)

// Runner owns the single periodic cycle and every agent's execution
// within it. One Runner per process.
type Runner struct {
	Repo        ports.Repository
	Broadcaster ports.Broadcaster
	Builder     *signals.Builder
	PositionMgr *positions.Manager
	OracleAdapter *oracle.Adapter
	Learning    map[models.Strategy]*learning.Store
	Tracker     *tracker.Tracker
	Cooldown    *tracker.Cooldown

	CyclePeriod    time.Duration
	SignalCacheTTL time.Duration
	SlowCycleWarn  time.Duration

	// Mirror is the optional ClickHouse analytics sink. Nil when the
	// mirror is disabled (internal/config's ClickHouseConfig.Enabled is
	// false by default); every call site must tolerate a nil Mirror.
	Mirror ports.TelemetryMirror

	// Locks mints the optional distributed per-agent lock. Single-instance
	// deployments (internal/config's RedisConfig.Enabled is false by
	// default) get a runlock.NoopLockFactory from cmd/signalcore; a nil
	// Locks also disables locking, and every call site tolerates it.
	Locks ports.LockFactory

	inFlight atomic.Bool
	group    *worker.WorkerGroup

	recentLosses *recentTokenLosses
}

// SetMirror attaches the optional analytics mirror after construction, so
// callers that don't run with ClickHouse enabled never need to pass a nil
// interface value through NewRunner's already-long parameter list.
func (r *Runner) SetMirror(m ports.TelemetryMirror) {
	r.Mirror = m
}

// SetLockFactory attaches the optional distributed lock factory after
// construction, for the same reason SetMirror exists as a setter rather
// than a constructor parameter.
func (r *Runner) SetLockFactory(f ports.LockFactory) {
	r.Locks = f
}

// NewRunner constructs a Runner with its process-local ephemeral state
// initialized.
func NewRunner(repo ports.Repository, broadcaster ports.Broadcaster, builder *signals.Builder, posMgr *positions.Manager, oracleAdapter *oracle.Adapter, learningStores map[models.Strategy]*learning.Store, tr *tracker.Tracker, cooldown *tracker.Cooldown, cyclePeriod, signalCacheTTL, slowCycleWarn time.Duration) *Runner {
	return &Runner{
		Repo:           repo,
		Broadcaster:    broadcaster,
		Builder:        builder,
		PositionMgr:    posMgr,
		OracleAdapter:  oracleAdapter,
		Learning:       learningStores,
		Tracker:        tr,
		Cooldown:       cooldown,
		CyclePeriod:    cyclePeriod,
		SignalCacheTTL: signalCacheTTL,
		SlowCycleWarn:  slowCycleWarn,
		recentLosses:   newRecentTokenLosses(),
	}
}

// groupKey partitions agents for shared signal prefetch: agents sharing a
// chain scope ("" meaning all chains) and strategy draw from one
// BuildSignals call per cycle.
type groupKey struct {
	chain    string
	strategy models.Strategy
}

type groupResult struct {
	signals []models.TokenSignal
	breadth models.MarketBreadth
	err     error
}

// Start launches the 10s agent cycle and the daily trade-counter reset on
// independent tickers, guarded by a WorkerGroup so both stop together.
func (r *Runner) Start(ctx context.Context) {
	r.group = worker.NewWorkerGroup(ctx)
	r.group.Add(&cycleWorker{r: r}, r.CyclePeriod)
	r.group.Add(&dailyResetWorker{r: r}, 24*time.Hour)
	r.group.Start()
}

// Stop waits for the in-flight cycle (if any) to finish, up to timeout.
func (r *Runner) Stop(timeout time.Duration) {
	if r.group != nil {
		r.group.Stop(timeout)
	}
}

type cycleWorker struct{ r *Runner }

func (w *cycleWorker) Name() string { return "agent-cycle" }
func (w *cycleWorker) Run(ctx context.Context) error {
	w.r.runCycle(ctx)
	return nil
}

type dailyResetWorker struct{ r *Runner }

func (w *dailyResetWorker) Name() string { return "daily-trade-reset" }
func (w *dailyResetWorker) Run(ctx context.Context) error {
	return w.r.resetDailyTrades(ctx)
}

// runCycle is one tick: list active agents, prefetch signals per group,
// then execute every agent's cycle concurrently. Overlapping ticks are
// dropped via the inFlight guard rather than queued.
func (r *Runner) runCycle(ctx context.Context) {
	if !r.inFlight.CompareAndSwap(false, true) {
		logger.Warn("agent cycle tick dropped: previous cycle still running")
		return
	}
	defer r.inFlight.Store(false)

	start := time.Now()
	defer func() {
		if elapsed := time.Since(start); elapsed > r.SlowCycleWarn {
			logger.Warn("slow agent cycle", zap.Duration("elapsed", elapsed))
		}
	}()

	agents, err := r.Repo.ListActiveAgents(ctx)
	if err != nil {
		logger.Error("failed to list active agents", zap.Error(err))
		return
	}
	if len(agents) == 0 {
		return
	}

	groups := make(map[groupKey][]models.AgentConfig)
	for _, a := range agents {
		key := groupKey{strategy: a.Strategy}
		if a.Chain != nil {
			key.chain = string(*a.Chain)
		}
		groups[key] = append(groups[key], a)
	}

	cache := r.prefetchGroups(ctx, groups)

	var wg sync.WaitGroup
	for key, groupAgents := range groups {
		gr := cache[key]
		for i := range groupAgents {
			agent := groupAgents[i]
			wg.Add(1)
			go func() {
				defer wg.Done()
				r.executeAgentCycle(ctx, agent, gr)
			}()
		}
	}
	wg.Wait()
}

// prefetchGroups builds one signal set per (chain, strategy) group in
// parallel, each BuildSignals call bounded by a SignalCacheTTL timeout.
// The results are used for this cycle only and are not kept across cycles.
func (r *Runner) prefetchGroups(ctx context.Context, groups map[groupKey][]models.AgentConfig) map[groupKey]groupResult {
	results := make(map[groupKey]groupResult, len(groups))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for key := range groups {
		key := key
		wg.Add(1)
		go func() {
			defer wg.Done()
			fetchCtx, cancel := context.WithTimeout(ctx, r.SignalCacheTTL)
			defer cancel()

			var chainPtr *models.Chain
			if key.chain != "" {
				c := models.Chain(key.chain)
				chainPtr = &c
			}
			sigs, breadth, err := r.Builder.BuildSignals(fetchCtx, chainPtr, key.strategy)
			if err != nil {
				logger.Warn("signal prefetch failed for group, using empty signal set",
					zap.String("chain", key.chain), zap.String("strategy", string(key.strategy)), zap.Error(err))
			}
			mu.Lock()
			results[key] = groupResult{signals: sigs, breadth: breadth, err: err}
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results
}

func (r *Runner) resetDailyTrades(ctx context.Context) error {
	agents, err := r.Repo.ListActiveAgents(ctx)
	if err != nil {
		return err
	}
	for i := range agents {
		a := agents[i]
		if a.DailyTradesUsed == 0 {
			continue
		}
		a.DailyTradesUsed = 0
		if err := r.Repo.UpdateAgent(ctx, &a); err != nil {
			logger.Error("failed to reset daily trade count", zap.String("agent", a.ID), zap.Error(err))
		}
	}
	return nil
}

func newID() string { return uuid.NewString() }
