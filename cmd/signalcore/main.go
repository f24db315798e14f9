// Command signalcore runs the Agent Runner process: it wires persistence,
// the optional ClickHouse analytics mirror, the optional distributed run
// lock, the Telegram broadcaster, the Signal Builder's data sources, and
// the Decision Oracle together, then runs the periodic agent cycle until
// terminated.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/driftline/signalcore/internal/adapters/news"
	"github.com/driftline/signalcore/internal/adapters/onchain"
	"github.com/driftline/signalcore/internal/adapters/price"
	"github.com/driftline/signalcore/internal/config"
	"github.com/driftline/signalcore/internal/health"
	"github.com/driftline/signalcore/internal/indicators"
	"github.com/driftline/signalcore/internal/learning"
	"github.com/driftline/signalcore/internal/notify/telegram"
	"github.com/driftline/signalcore/internal/oracle"
	"github.com/driftline/signalcore/internal/ports"
	"github.com/driftline/signalcore/internal/positions"
	"github.com/driftline/signalcore/internal/runlock"
	"github.com/driftline/signalcore/internal/runner"
	"github.com/driftline/signalcore/internal/signals"
	"github.com/driftline/signalcore/internal/storage/clickhouse"
	"github.com/driftline/signalcore/internal/storage/postgres"
	"github.com/driftline/signalcore/internal/tracker"
	"github.com/driftline/signalcore/pkg/logger"
	"github.com/driftline/signalcore/pkg/models"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nreceived interrupt signal, shutting down...")
		cancel()
	}()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := initConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("signalcore starting",
		zap.Duration("cycle_period", cfg.Runner.CyclePeriod),
		zap.Bool("clickhouse_enabled", cfg.ClickHouse.Enabled),
		zap.Bool("redis_enabled", cfg.Redis.Enabled),
	)

	db, err := postgres.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	repo := postgres.NewRepository(db)

	mirror, closeMirror, err := initMirror(cfg)
	if err != nil {
		return err
	}
	defer closeMirror()

	lockFactory, lockPinger, closeLocks, err := initLocks(cfg)
	if err != nil {
		return err
	}
	defer closeLocks()

	broadcaster, err := initBroadcaster(cfg)
	if err != nil {
		return err
	}

	rn := initRunner(cfg, repo, repo, broadcaster)
	rn.SetMirror(mirror)
	rn.SetLockFactory(lockFactory)

	healthSrv := health.NewServer(cfg.Health.Port, db, lockPinger, repo)
	go func() {
		if err := healthSrv.Start(); err != nil {
			logger.Error("health server exited", zap.Error(err))
		}
	}()

	rn.Start(ctx)
	healthSrv.SetReady(true)

	<-ctx.Done()

	logger.Info("shutting down")
	healthSrv.SetReady(false)
	rn.Stop(10 * time.Second)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := healthSrv.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop health server cleanly", zap.Error(err))
	}

	return nil
}

// initConfig loads configuration and initializes the logger, in that
// order, since logging config lives inside the loaded config.
func initConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return cfg, nil
}

// initMirror wires the optional ClickHouse analytics sink. When disabled
// it returns a nil ports.TelemetryMirror and a no-op closer, which
// Runner.SetMirror and every call site already tolerate.
func initMirror(cfg *config.Config) (ports.TelemetryMirror, func(), error) {
	noop := func() {}
	if !cfg.ClickHouse.Enabled {
		logger.Info("clickhouse mirror disabled")
		return nil, noop, nil
	}

	chDB, err := clickhouse.Open(cfg.ClickHouse)
	if err != nil {
		return nil, noop, fmt.Errorf("failed to open clickhouse: %w", err)
	}

	chRepo := clickhouse.NewRepository(chDB)
	mirror := clickhouse.NewMirror(chRepo, 200, 5*time.Second)

	closer := func() {
		if err := mirror.Close(); err != nil {
			logger.Error("failed to flush clickhouse mirror", zap.Error(err))
		}
		if err := clickhouse.Close(chDB); err != nil {
			logger.Error("failed to close clickhouse connection", zap.Error(err))
		}
	}
	return mirror, closer, nil
}

// initLocks wires the distributed per-agent lock. When Redis is disabled
// this deploys as a single instance: NoopLockFactory always grants the
// lock and there is no health.LockPinger to report.
func initLocks(cfg *config.Config) (ports.LockFactory, health.LockPinger, func(), error) {
	noop := func() {}
	if !cfg.Redis.Enabled {
		logger.Info("distributed run lock disabled, running single-instance")
		return runlock.NewNoopLockFactory(), nil, noop, nil
	}

	client, err := runlock.New(cfg.Redis)
	if err != nil {
		return nil, nil, noop, fmt.Errorf("failed to connect to redis: %w", err)
	}

	closer := func() {
		if err := client.Close(); err != nil {
			logger.Error("failed to close redis client", zap.Error(err))
		}
	}
	return runlock.NewRedisLockFactory(client), client, closer, nil
}

// initBroadcaster wires the Telegram notifier. An unconfigured bot token
// degrades to a silent no-op broadcaster rather than failing startup,
// since alerting is an ambient convenience, not a correctness dependency.
func initBroadcaster(cfg *config.Config) (ports.Broadcaster, error) {
	if cfg.Telegram.BotToken == "" {
		logger.Info("telegram bot token not configured, broadcasts are disabled")
		return noopBroadcaster{}, nil
	}

	notifier, err := telegram.NewNotifier(cfg.Telegram)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telegram notifier: %w", err)
	}
	return notifier, nil
}

type noopBroadcaster struct{}

func (noopBroadcaster) Broadcast(ctx context.Context, event ports.Event) {}

// initRunner assembles the Signal Builder's data sources, the Decision
// Oracle, per-strategy learning stores, and the Agent Runner itself.
func initRunner(cfg *config.Config, repo ports.Repository, snapshots ports.TokenSnapshotSource, broadcaster ports.Broadcaster) *runner.Runner {
	engine := indicators.NewEngine(cfg.Runner.IndicatorCacheTTL, cfg.Runner.BarHistoryMax)

	dex := price.NewDexScreenerSource(cfg.Runner.SignalCacheTTL)

	learningStores := make(map[models.Strategy]*learning.Store)
	for _, strategy := range []models.Strategy{
		models.StrategyConservative,
		models.StrategyBalanced,
		models.StrategyAggressive,
		models.StrategyDegen,
	} {
		store := learning.NewStore(repo, strategy)
		if err := store.Load(context.Background()); err != nil {
			logger.Warn("failed to load signal performance", zap.String("strategy", string(strategy)), zap.Error(err))
		}
		learningStores[strategy] = store
	}

	builder := &signals.Builder{
		Engine:     engine,
		Pairs:      dex,
		Snapshots:  snapshots,
		SmartMoney: onchain.NewWhaleSmartMoneySource(os.Getenv("WHALE_ALERT_API_KEY")),
		Social:     news.NewRedditSocialSource(),
		News:       news.NewCoinDeskNewsSource(),
		FearGreed:  price.NewFearGreedSource(),
		Liquidity:  dex,
		Learning:   learningStores,
	}

	oracleClient := oracle.NewClient(cfg.Oracle.APIKey, cfg.Oracle.Model, cfg.Oracle.Timeout)
	oracleAdapter := oracle.NewAdapter(oracleClient, cfg.Oracle.MaxOutputTokens)

	return runner.NewRunner(
		repo,
		broadcaster,
		builder,
		positions.NewManager(),
		oracleAdapter,
		learningStores,
		tracker.NewTracker(),
		tracker.NewCooldown(),
		cfg.Runner.CyclePeriod,
		cfg.Runner.SignalCacheTTL,
		cfg.Runner.SlowCycleWarn,
	)
}
