// Package tracker implements the Agent Performance Tracker: per-agent,
// process-local rolling trade history, win/loss streaks, and the adaptive
// entry-threshold/position-size shifts that follow from them. State here
// never escapes the owning agent and is never persisted — after a process
// restart it starts empty and refills from later trade exits.
package tracker

import (
	"sync"
	"time"

	"github.com/driftline/signalcore/pkg/models"
)

const (
	recentTradeWindow = 24 * time.Hour
	recentTradeCap    = 50

	offsetFloor = -10
	offsetCap   = 25
)

type trade struct {
	pnlPercent float64
	at         time.Time
}

// AgentPerf is the mutable per-agent performance state, guarded by its own
// mutex so agents never contend with each other's updates.
type AgentPerf struct {
	mu sync.Mutex

	recentTrades []trade
	winStreak    int
	lossStreak   int
	offset       float64
}

// Tracker owns one independently-guarded AgentPerf per agent ID.
type Tracker struct {
	agents sync.Map // agentID string -> *AgentPerf
}

func NewTracker() *Tracker {
	return &Tracker{}
}

func (t *Tracker) perf(agentID string) *AgentPerf {
	v, _ := t.agents.LoadOrStore(agentID, &AgentPerf{})
	return v.(*AgentPerf)
}

// RecordTradeExit appends a completed trade's pnl% to the agent's rolling
// window, prunes entries older than 24h or beyond the 50-trade cap, updates
// win/loss streaks, and shifts adaptiveThresholdOffset accordingly.
func (t *Tracker) RecordTradeExit(agentID string, pnlPercent float64, now time.Time) {
	p := t.perf(agentID)
	p.mu.Lock()
	defer p.mu.Unlock()

	p.recentTrades = append(p.recentTrades, trade{pnlPercent: pnlPercent, at: now})
	p.recentTrades = pruneTrades(p.recentTrades, now)

	won := pnlPercent > 0
	if won {
		p.winStreak++
		p.lossStreak = 0
	} else {
		p.lossStreak++
		p.winStreak = 0
	}

	switch {
	case won && p.winStreak >= 3:
		p.offset -= 2
	case !won && p.lossStreak >= 3:
		p.offset += 5
	case !won:
		p.offset += 3
	}
	if p.offset < offsetFloor {
		p.offset = offsetFloor
	}
	if p.offset > offsetCap {
		p.offset = offsetCap
	}
}

func pruneTrades(trades []trade, now time.Time) []trade {
	cutoff := now.Add(-recentTradeWindow)
	out := trades[:0]
	for _, tr := range trades {
		if tr.at.After(cutoff) {
			out = append(out, tr)
		}
	}
	if len(out) > recentTradeCap {
		out = out[len(out)-recentTradeCap:]
	}
	return out
}

// strategyBase is the (minConviction, minSignal, minMomentum) starting
// point before the agent's adaptive offset is applied.
type strategyBase struct {
	minConviction, minSignal, minMomentum int
}

var strategyBases = map[models.Strategy]strategyBase{
	models.StrategyConservative: {55, 60, 55},
	models.StrategyBalanced:     {42, 55, 50},
	models.StrategyAggressive:   {35, 50, 45},
	models.StrategyDegen:        {25, 45, 40},
}

// EntryThresholds is the adaptive entry-gate output for one agent/strategy.
type EntryThresholds struct {
	MinConviction int
	MinSignal     int
	MinMomentum   int
	SizeMultiplier float64
}

// GetAdaptiveEntryThresholds computes the agent's current entry bar and
// position-size multiplier from its rolling trade history.
func (t *Tracker) GetAdaptiveEntryThresholds(agentID string, strategy models.Strategy, now time.Time) EntryThresholds {
	base, ok := strategyBases[strategy]
	if !ok {
		base = strategyBases[models.StrategyBalanced]
	}

	p := t.perf(agentID)
	p.mu.Lock()
	defer p.mu.Unlock()

	offset := p.offset
	minConviction := capInt(base.minConviction+int(offset), 90)
	minSignal := capInt(base.minSignal+int(offset), 90)
	minMomentum := capInt(base.minMomentum+int(offset/2), 85)

	mult := 1.0
	switch {
	case p.lossStreak >= 4:
		mult = 0.3
	case p.lossStreak >= 3:
		mult = 0.5
	case p.lossStreak >= 2:
		mult = 0.7
	case p.winStreak >= 5:
		mult = 1.15
	case p.winStreak >= 3:
		mult = 1.10
	}

	pruned := pruneTrades(append([]trade(nil), p.recentTrades...), now)
	rolling := rollingPnlPercent(pruned)
	switch {
	case rolling < -15:
		mult *= 0.6
	case rolling < -8:
		mult *= 0.8
	}

	if mult < 0.2 {
		mult = 0.2
	}
	if mult > 1.2 {
		mult = 1.2
	}

	return EntryThresholds{
		MinConviction:  minConviction,
		MinSignal:      minSignal,
		MinMomentum:    minMomentum,
		SizeMultiplier: mult,
	}
}

func rollingPnlPercent(trades []trade) float64 {
	if len(trades) == 0 {
		return 0
	}
	var sum float64
	for _, tr := range trades {
		sum += tr.pnlPercent
	}
	return sum / float64(len(trades))
}

func capInt(v, max int) int {
	if v > max {
		return max
	}
	return v
}

// Cooldown tracks a per-agent cooldown window entered after a loss streak,
// used by the Runner to skip entry consideration for a short period.
type Cooldown struct {
	mu      sync.Mutex
	until   map[string]time.Time
}

func NewCooldown() *Cooldown {
	return &Cooldown{until: make(map[string]time.Time)}
}

// Trigger starts (or extends) a cooldown window for an agent.
func (c *Cooldown) Trigger(agentID string, until time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.until[agentID]; !ok || until.After(cur) {
		c.until[agentID] = until
	}
}

// Active reports whether the agent is still within its cooldown window.
func (c *Cooldown) Active(agentID string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	until, ok := c.until[agentID]
	return ok && now.Before(until)
}
