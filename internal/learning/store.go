// Package learning implements the Adaptive Learning Store: an in-memory,
// persistence-backed record of which signal tags and signal combinations
// have historically preceded winning or losing trades, used to bias future
// scoring and conviction.
package learning

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/driftline/signalcore/internal/ports"
	"github.com/driftline/signalcore/pkg/logger"
	"github.com/driftline/signalcore/pkg/models"
)

// Store is the process-wide, thread-safe adaptive-learning cache. One Store
// is constructed at process start, loaded once from persistence, and
// shared read-mostly across all cycles; writes happen on position close.
type Store struct {
	mu sync.RWMutex

	// byKey covers both plain signal tags and "COMBO:A+B" composite keys;
	// both live in the same map since their lookup shape is identical.
	byKey map[string]*models.SignalPerformance

	repo     ports.Repository
	strategy models.Strategy
}

// NewStore constructs a Store bound to a repository for a given strategy
// partition; the spec tracks performance per (signal, strategy) pair.
func NewStore(repo ports.Repository, strategy models.Strategy) *Store {
	return &Store{
		byKey:    make(map[string]*models.SignalPerformance),
		repo:     repo,
		strategy: strategy,
	}
}

// Load populates the in-memory maps from persistence. Called once per
// process at startup, and safe to call again to force a refresh.
func (s *Store) Load(ctx context.Context) error {
	rows, err := s.repo.GetAllSignalPerformance(ctx)
	if err != nil {
		return err
	}

	fresh := make(map[string]*models.SignalPerformance, len(rows))
	for i := range rows {
		row := rows[i]
		if row.Strategy != s.strategy {
			continue
		}
		cp := row
		fresh[row.Signal] = &cp
	}

	s.mu.Lock()
	s.byKey = fresh
	s.mu.Unlock()
	return nil
}

// RecordTradeExit upserts win/loss/avgPnl for every signal tag present at
// entry, plus the sorted COMBO: key for the full tag set, and persists
// each upsert.
func (s *Store) RecordTradeExit(ctx context.Context, tagsAtEntry []models.SignalTag, entry, exit float64) {
	if entry == 0 {
		return
	}
	pnlPercent := (exit - entry) / entry * 100
	profitable := pnlPercent > 0

	keys := make([]string, 0, len(tagsAtEntry)+1)
	for _, t := range tagsAtEntry {
		keys = append(keys, string(t))
	}
	if len(tagsAtEntry) > 0 {
		keys = append(keys, models.ComboKey(tagsAtEntry))
	}

	for _, key := range keys {
		s.upsert(key, profitable, pnlPercent)
		if err := s.repo.UpsertSignalPerformance(ctx, key, s.strategy, profitable, pnlPercent); err != nil {
			logger.Error("failed to persist signal performance",
				zap.String("signal", key),
				zap.Error(err),
			)
		}
	}
}

func (s *Store) upsert(key string, profitable bool, pnlPercent float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byKey[key]
	if !ok {
		p = &models.SignalPerformance{Signal: key, Strategy: s.strategy}
		s.byKey[key] = p
	}
	if profitable {
		p.Wins++
	} else {
		p.Losses++
	}
	p.Count++
	p.TotalPnl += pnlPercent
	p.AvgPnl = p.TotalPnl / float64(p.Count)
}

func (s *Store) get(key string) (models.SignalPerformance, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byKey[key]
	if !ok {
		return models.SignalPerformance{}, false
	}
	return *p, true
}

// GetSignalConfidenceMultiplier returns the score multiplier a signal's
// historical track record earns. Untested signals (count<3) are neutral.
func (s *Store) GetSignalConfidenceMultiplier(signal models.SignalTag) float64 {
	p, ok := s.get(string(signal))
	if !ok || p.Count < 3 {
		return 1.0
	}
	wr := p.WinRate()
	switch {
	case wr >= 0.75:
		return 1.4
	case wr >= 0.60:
		return 1.2
	case wr >= 0.50:
		return 1.05
	case wr >= 0.40:
		return 0.85
	case wr >= 0.30:
		return 0.6
	default:
		return 0.3
	}
}

// IsSignalBlacklisted reports whether a signal has a long enough, bad
// enough track record to be excluded from scoring entirely.
func (s *Store) IsSignalBlacklisted(signal models.SignalTag) bool {
	p, ok := s.get(string(signal))
	if !ok {
		return false
	}
	return p.Count >= 5 && p.WinRate() < 0.25 && p.AvgPnl < -3
}

// ComboConfidence is the combo-key lookup result: a multiplier plus a
// blacklist flag (a blacklisted combo contributes a zero multiplier and
// should additionally suppress the underlying signals from consideration).
type ComboConfidence struct {
	Multiplier  float64
	Blacklisted bool
}

// GetComboConfidence looks up the sorted COMBO: key for a tag set.
func (s *Store) GetComboConfidence(tags []models.SignalTag) ComboConfidence {
	if len(tags) == 0 {
		return ComboConfidence{Multiplier: 1.0}
	}
	p, ok := s.get(models.ComboKey(tags))
	if !ok || p.Count < 3 {
		return ComboConfidence{Multiplier: 1.0}
	}
	wr := p.WinRate()
	switch {
	case wr < 0.20 && p.Count >= 5:
		return ComboConfidence{Multiplier: 0, Blacklisted: true}
	case wr >= 0.70:
		return ComboConfidence{Multiplier: 1.5}
	case wr >= 0.55:
		return ComboConfidence{Multiplier: 1.2}
	case wr < 0.35:
		return ComboConfidence{Multiplier: 0.5}
	default:
		return ComboConfidence{Multiplier: 1.0}
	}
}

// ComputeAdaptiveConvictionBoost is the arithmetic mean of (multiplier-1)*15
// over every non-combo signal whose multiplier deviates from neutral,
// rounded to the nearest integer. Returns 0 if no signal has a track record.
func (s *Store) ComputeAdaptiveConvictionBoost(tags []models.SignalTag) float64 {
	var sum float64
	var n int
	for _, t := range tags {
		mult := s.GetSignalConfidenceMultiplier(t)
		if mult == 1.0 {
			continue
		}
		sum += (mult - 1) * 15
		n++
	}
	if n == 0 {
		return 0
	}
	return math.Round(sum / float64(n))
}

// WinningSignals returns the signal keys (excluding COMBO: entries) with
// the strongest positive track record, for the oracle's adaptive-learning
// context. Sorted by win rate descending, ties by count descending.
func (s *Store) WinningSignals(minCount int, limit int) []models.SignalPerformance {
	return s.ranked(minCount, limit, true)
}

// LosingSignals mirrors WinningSignals for the worst-performing tags.
func (s *Store) LosingSignals(minCount int, limit int) []models.SignalPerformance {
	return s.ranked(minCount, limit, false)
}

func (s *Store) ranked(minCount, limit int, winning bool) []models.SignalPerformance {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.SignalPerformance, 0, len(s.byKey))
	for key, p := range s.byKey {
		if strings.HasPrefix(key, models.ComboKeyPrefix) {
			continue
		}
		if p.Count < minCount {
			continue
		}
		out = append(out, *p)
	}

	sort.Slice(out, func(i, j int) bool {
		if winning {
			if out[i].WinRate() != out[j].WinRate() {
				return out[i].WinRate() > out[j].WinRate()
			}
		} else {
			if out[i].WinRate() != out[j].WinRate() {
				return out[i].WinRate() < out[j].WinRate()
			}
		}
		return out[i].Count > out[j].Count
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
