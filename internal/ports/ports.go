// Package ports defines the external-collaborator interfaces the core
// consumes: data sources, persistence, the decision oracle, and the
// outbound broadcast channel. Concrete implementations live under
// internal/storage, internal/oracle, and internal/notify; internal/ports
// only names the contracts spec.md §6 requires.
package ports

import (
	"context"
	"time"

	"github.com/driftline/signalcore/pkg/models"
)

// Pair is one live trading pair as returned by a DexScreener-like source.
type Pair struct {
	Chain         models.Chain
	PairAddress   string
	BaseAddress   string
	BaseSymbol    string
	QuoteAddress  string
	QuoteSymbol   string
	PriceUSD      float64
	PriceChange1h float64
	PriceChange24h float64
	Volume24h     float64
	Buys24h       int
	Sells24h      int
	LiquidityUSD  float64
	MarketCap     float64
	PairCreatedAt time.Time
	BoostsActive  int
}

// PairSource lists currently-live pairs. Implementations cache for ~30s.
type PairSource interface {
	ListLivePairs(ctx context.Context) ([]Pair, error)
}

// OHLCVSource fetches recent candles for a pair. Implementations cache
// for ~60s.
type OHLCVSource interface {
	FetchOHLCV(ctx context.Context, chain models.Chain, pairAddress string, timeframe string) ([]models.PriceBar, error)
}

// SmartMoneySource looks up top-wallet behavior for a token. A nil result
// with a nil error means "no data" and is treated as neutral by scoring.
type SmartMoneySource interface {
	GetSmartMoneySignal(ctx context.Context, address string, chain models.Chain) (*models.SmartMoneySignal, error)
}

// SocialSource looks up social-platform attention for a symbol.
type SocialSource interface {
	GetSocial(ctx context.Context, symbol string) (*models.SocialSignal, error)
}

// NewsSource looks up recent news coverage for a symbol and the
// market-wide sentiment baseline.
type NewsSource interface {
	GetNewsForToken(ctx context.Context, symbol string) (*models.NewsSignal, error)
	GetOverallMarketNewsSentiment(ctx context.Context) (float64, error)
}

// FearGreedSource polls the macro sentiment gauge, cadence ~10 min.
type FearGreedSource interface {
	Get(ctx context.Context) (*models.FearGreed, error)
}

// LiquiditySource looks up per-token liquidity health and the market-wide
// flow direction.
type LiquiditySource interface {
	GetSnapshot(ctx context.Context, address string, chain models.Chain) (*models.LiquiditySnapshot, error)
	MarketFlowDirection(ctx context.Context) (models.LiquidityFlow, error)
}

// DatabaseTokenSnapshot is the persisted token/safety-report fallback the
// Signal Builder seeds from when a live pair is absent or incomplete.
type DatabaseTokenSnapshot struct {
	Chain       models.Chain
	Address     string
	Symbol      string
	Price       float64
	Holders     int
	SafetyScore float64
	DevPercent  float64
	TopHolderPercent float64
	Age         time.Duration
}

// TokenSnapshotSource returns the last known database record for a token,
// used as a fallback seed per spec.md §4.2 step 1.
type TokenSnapshotSource interface {
	GetTokenSnapshot(ctx context.Context, address string, chain models.Chain) (*DatabaseTokenSnapshot, error)
}

// Repository is the Persistence port: every operation the core invokes
// against durable storage, per spec.md §6.
type Repository interface {
	// Agents
	ListActiveAgents(ctx context.Context) ([]models.AgentConfig, error)
	GetAgent(ctx context.Context, id string) (*models.AgentConfig, error)
	UpdateAgent(ctx context.Context, agent *models.AgentConfig) error

	// Positions
	ListOpenPositionsByAgent(ctx context.Context, agentID string) ([]models.AgentPosition, error)
	GetPosition(ctx context.Context, id string) (*models.AgentPosition, error)
	CreatePosition(ctx context.Context, p *models.AgentPosition) error
	UpdatePosition(ctx context.Context, p *models.AgentPosition) error
	CloseAgentPosition(ctx context.Context, id string, exitPrice, realizedPnl float64) error

	// Trades & logs
	CreateAgentTrade(ctx context.Context, t *models.AgentTrade) error
	CreateAgentLog(ctx context.Context, l *models.AgentLog) error
	GetAgentTrades(ctx context.Context, agentID string, limit int) ([]models.AgentTrade, error)

	// Signal performance
	GetAllSignalPerformance(ctx context.Context) ([]models.SignalPerformance, error)
	UpsertSignalPerformance(ctx context.Context, signal string, strategy models.Strategy, won bool, pnlPercent float64) error

	// Access control
	HasActivePromoAccess(ctx context.Context, userID string) (bool, error)
	GetUserActiveSubscription(ctx context.Context, userID string) (bool, error)
	GetUserSubscriptionIncludingGrace(ctx context.Context, userID string) (bool, error)
	GetUserIDByWallet(ctx context.Context, walletAddress string) (string, error)
}

// Oracle is the Decision-oracle port: a single request/response round-trip
// against the external LLM. The core parses the raw text strictly.
type Oracle interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string, maxOutputTokens int) (string, error)
}

// TelemetryMirror is the optional analytics-sink port: a fire-and-forget
// copy of already-persisted trades/logs for historical querying. It is
// never consulted for correctness — only Repository is a source of truth —
// so a nil or failing mirror must never block a trading decision.
type TelemetryMirror interface {
	AddTrade(t models.AgentTrade)
	AddLog(l models.AgentLog)
}

// AgentLock is one distributed mutual-exclusion lock scoped to a single
// agent, held by whichever Runner process acquires it first. This sits
// above the single-process in-flight guard: it exists only to keep two
// Runner processes from double-running the same agent.
type AgentLock interface {
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
	CheckLockHeld(ctx context.Context) (bool, error)
	GetAgentID() string
}

// LockFactory mints an AgentLock per agent ID. A nil LockFactory on Runner
// means distributed locking is disabled (single-instance deployment); every
// call site must tolerate that.
type LockFactory interface {
	CreateAgentLock(agentID string) AgentLock
}

// EventKind is the closed set of outbound broadcast event kinds.
type EventKind string

const (
	EventAgentUpdate            EventKind = "agent_update"
	EventAgentTrade             EventKind = "agent_trade"
	EventAgentError             EventKind = "agent_error"
	EventAgentSubscriptionExpired EventKind = "subscription_expired"
)

// Event is a fire-and-forget outbound notification.
type Event struct {
	Kind EventKind
	Data any
}

// Broadcaster is the Outbound events port. Subscribers are external; there
// is no acknowledgement.
type Broadcaster interface {
	Broadcast(ctx context.Context, event Event)
}
