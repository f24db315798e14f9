package signals

import "github.com/driftline/signalcore/pkg/models"

// strategyFilter is the strategy-gated hard filter spec.md §4.2's
// getTopBuySignals applies before a shortlist reaches the oracle prompt.
type strategyFilter struct {
	minConviction int
	minSignal     int
	maxRugRisk    float64
	limit         int
}

var strategyFilters = map[models.Strategy]strategyFilter{
	models.StrategyConservative: {minConviction: 55, minSignal: 60, maxRugRisk: 35, limit: 10},
	models.StrategyBalanced:     {minConviction: 42, minSignal: 55, maxRugRisk: 50, limit: 15},
	models.StrategyAggressive:   {minConviction: 35, minSignal: 50, maxRugRisk: 65, limit: 20},
	models.StrategyDegen:        {minConviction: 25, minSignal: 45, maxRugRisk: 80, limit: 25},
}

// GetTopBuySignals returns a strategy-gated, capped shortlist of candidate
// buy signals. `signals` must already be sorted descending by
// OverallSignalScore; a blacklisted token (HIGH_RUG_RISK with no safety
// tag, or a flash crash) is never shortlisted regardless of score.
func GetTopBuySignals(signals []models.TokenSignal, strategy models.Strategy) []models.TokenSignal {
	f, ok := strategyFilters[strategy]
	if !ok {
		f = strategyFilters[models.StrategyBalanced]
	}

	out := make([]models.TokenSignal, 0, f.limit)
	for _, s := range signals {
		if len(out) >= f.limit {
			break
		}
		if s.ConvictionScore < float64(f.minConviction) {
			continue
		}
		if s.OverallSignalScore < float64(f.minSignal) {
			continue
		}
		if s.RugRiskScore > f.maxRugRisk {
			continue
		}
		if s.HasTag(models.TagFlashCrash) {
			continue
		}
		if s.HasTag(models.TagHighRugRisk) && !s.HasTag(models.TagHighSafety) {
			continue
		}
		out = append(out, s)
	}
	return out
}
