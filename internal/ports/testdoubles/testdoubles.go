// Package testdoubles provides in-memory fakes of the ports.Repository,
// ports.Oracle and ports.Broadcaster interfaces, used by this module's test
// suites so each package can exercise the pipeline without a database or
// network. Data-source ports are stubbed inside the tests that need them.
package testdoubles

import (
	"context"
	"sync"

	"github.com/driftline/signalcore/internal/ports"
	"github.com/driftline/signalcore/pkg/models"
)

// Repository is an in-memory fake of ports.Repository.
type Repository struct {
	mu sync.Mutex

	Agents      map[string]*models.AgentConfig
	Positions   map[string]*models.AgentPosition
	Trades      []models.AgentTrade
	Logs        []models.AgentLog
	Performance map[string]*models.SignalPerformance

	// ActiveSubscriptions maps userID -> has an active subscription.
	ActiveSubscriptions map[string]bool
	WalletToUser        map[string]string
}

func NewRepository() *Repository {
	return &Repository{
		Agents:              map[string]*models.AgentConfig{},
		Positions:           map[string]*models.AgentPosition{},
		Performance:         map[string]*models.SignalPerformance{},
		ActiveSubscriptions: map[string]bool{},
		WalletToUser:        map[string]string{},
	}
}

func (r *Repository) ListActiveAgents(ctx context.Context) ([]models.AgentConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.AgentConfig, 0, len(r.Agents))
	for _, a := range r.Agents {
		if a.Status == models.AgentStatusRunning {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *Repository) GetAgent(ctx context.Context, id string) (*models.AgentConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.Agents[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *Repository) UpdateAgent(ctx context.Context, agent *models.AgentConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *agent
	r.Agents[agent.ID] = &cp
	return nil
}

func (r *Repository) ListOpenPositionsByAgent(ctx context.Context, agentID string) ([]models.AgentPosition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.AgentPosition, 0)
	for _, p := range r.Positions {
		if p.AgentID == agentID && p.Status == models.PositionOpen {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *Repository) GetPosition(ctx context.Context, id string) (*models.AgentPosition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.Positions[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *Repository) CreatePosition(ctx context.Context, p *models.AgentPosition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.Positions[p.ID] = &cp
	return nil
}

func (r *Repository) UpdatePosition(ctx context.Context, p *models.AgentPosition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.Positions[p.ID] = &cp
	return nil
}

func (r *Repository) CloseAgentPosition(ctx context.Context, id string, exitPrice, realizedPnl float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.Positions[id]
	if !ok {
		return nil
	}
	p.Status = models.PositionClosed
	p.CurrentPrice = exitPrice
	p.RealizedPnl = realizedPnl
	return nil
}

func (r *Repository) CreateAgentTrade(ctx context.Context, t *models.AgentTrade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Trades = append(r.Trades, *t)
	return nil
}

func (r *Repository) CreateAgentLog(ctx context.Context, l *models.AgentLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Logs = append(r.Logs, *l)
	return nil
}

func (r *Repository) GetAgentTrades(ctx context.Context, agentID string, limit int) ([]models.AgentTrade, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.AgentTrade, 0)
	for i := len(r.Trades) - 1; i >= 0 && len(out) < limit; i-- {
		if r.Trades[i].AgentID == agentID {
			out = append(out, r.Trades[i])
		}
	}
	return out, nil
}

func (r *Repository) GetAllSignalPerformance(ctx context.Context) ([]models.SignalPerformance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.SignalPerformance, 0, len(r.Performance))
	for _, p := range r.Performance {
		out = append(out, *p)
	}
	return out, nil
}

func (r *Repository) UpsertSignalPerformance(ctx context.Context, signal string, strategy models.Strategy, won bool, pnlPercent float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := signal + "|" + string(strategy)
	p, ok := r.Performance[key]
	if !ok {
		p = &models.SignalPerformance{Signal: signal, Strategy: strategy}
		r.Performance[key] = p
	}
	if won {
		p.Wins++
	} else {
		p.Losses++
	}
	p.Count++
	p.TotalPnl += pnlPercent
	p.AvgPnl = p.TotalPnl / float64(p.Count)
	return nil
}

func (r *Repository) HasActivePromoAccess(ctx context.Context, userID string) (bool, error) {
	return false, nil
}

func (r *Repository) GetUserActiveSubscription(ctx context.Context, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ActiveSubscriptions[userID], nil
}

func (r *Repository) GetUserSubscriptionIncludingGrace(ctx context.Context, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ActiveSubscriptions[userID], nil
}

func (r *Repository) GetUserIDByWallet(ctx context.Context, walletAddress string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.WalletToUser[walletAddress], nil
}

var _ ports.Repository = (*Repository)(nil)

// Oracle is a scripted fake of ports.Oracle: it returns RawResponse (or
// calls Err) regardless of prompt content, for deterministic decision
// pipeline tests.
type Oracle struct {
	RawResponse string
	Err         error
}

func (o *Oracle) Generate(ctx context.Context, systemPrompt, userPrompt string, maxOutputTokens int) (string, error) {
	if o.Err != nil {
		return "", o.Err
	}
	return o.RawResponse, nil
}

var _ ports.Oracle = (*Oracle)(nil)

// Broadcaster records every event fired at it.
type Broadcaster struct {
	mu     sync.Mutex
	Events []ports.Event
}

func (b *Broadcaster) Broadcast(ctx context.Context, event ports.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Events = append(b.Events, event)
}

func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Events)
}

var _ ports.Broadcaster = (*Broadcaster)(nil)
