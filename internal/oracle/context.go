package oracle

import (
	"fmt"
	"strings"
	"time"

	"github.com/driftline/signalcore/internal/learning"
	"github.com/driftline/signalcore/internal/signals"
	"github.com/driftline/signalcore/internal/tracker"
	"github.com/driftline/signalcore/pkg/models"
)

// PositionSummary is one line of the portfolio-summary section.
type PositionSummary struct {
	Symbol            string
	Chain             models.Chain
	Size              float64
	AvgEntryPrice     float64
	CurrentPrice      float64
	PnLPercent        float64
	HoldHours         float64
	WhaleActivity     models.WhaleActivity
	ShortTermMomentum float64
}

// PromptInput is everything the Decision Oracle Adapter needs to build one
// agent-cycle prompt, per spec.md §4.6.
type PromptInput struct {
	Strategy          models.Strategy
	Breadth           models.MarketBreadth
	Thresholds        tracker.EntryThresholds
	Learning          *learning.Store
	Positions         []PositionSummary
	RankedSignals     []models.TokenSignal
	TopBuyCandidates  []models.TokenSignal
	RecentTrades      []models.AgentTrade
	LossStreakWarning string
}

// adaptiveMode classifies the agent's current posture for prompt framing
// purposes only — it is not a scoring input, so its boundaries are a
// reasonable interpretation of the adaptive size multiplier rather than a
// pinned spec value.
func adaptiveMode(mult float64) string {
	switch {
	case mult <= 0.7:
		return "Defensive"
	case mult >= 1.1:
		return "Confident"
	default:
		return "Standard"
	}
}

// BuildSystemPrompt is the strategy rule block plus the fixed response
// contract every provider must satisfy.
func BuildSystemPrompt(strategy models.Strategy) string {
	return strategyRules(strategy) + "\n\n" + responseContract
}

// BuildUserPrompt assembles the market-context preamble, portfolio
// summary, ranked-signal table, top-buy shortlist, and recent-trade
// context into the single user-role prompt.
func BuildUserPrompt(in PromptInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "MARKET CONTEXT\nregime=%s breadthScore=%.1f avgMomentum=%.1f avgBuyPressure=%.1f pctBullishEMA=%.1f\n",
		in.Breadth.Regime, in.Breadth.BreadthScore, in.Breadth.AvgMomentum, in.Breadth.AvgBuyPressure, in.Breadth.PctBullishEMA)
	fmt.Fprintf(&b, "adaptiveMode=%s minConviction=%d minSignal=%d minMomentum=%d sizeMultiplier=%.2f\n\n",
		adaptiveMode(in.Thresholds.SizeMultiplier), in.Thresholds.MinConviction, in.Thresholds.MinSignal,
		in.Thresholds.MinMomentum, in.Thresholds.SizeMultiplier)

	if in.Learning != nil {
		b.WriteString("ADAPTIVE LEARNING\n")
		if wins := in.Learning.WinningSignals(3, 5); len(wins) > 0 {
			fmt.Fprintf(&b, "winning signals: %s\n", formatPerformance(wins))
		}
		if losses := in.Learning.LosingSignals(3, 5); len(losses) > 0 {
			fmt.Fprintf(&b, "losing signals: %s\n", formatPerformance(losses))
		}
		b.WriteString("\n")
	}

	b.WriteString("PORTFOLIO\n")
	if len(in.Positions) == 0 {
		b.WriteString("(no open positions)\n")
	}
	for _, p := range in.Positions {
		fmt.Fprintf(&b, "%s | %s | size=%.4f entry=%.6f current=%.6f pnl%%=%.2f holdHours=%.1f whale=%s stMom=%.1f\n",
			p.Symbol, p.Chain, p.Size, p.AvgEntryPrice, p.CurrentPrice, p.PnLPercent, p.HoldHours, p.WhaleActivity, p.ShortTermMomentum)
	}
	b.WriteString("\n")

	b.WriteString("RANKED SIGNALS (top 30)\n")
	b.WriteString(signals.FormatSignalsForAI(in.RankedSignals, 30))
	b.WriteString("\n")

	if len(in.TopBuyCandidates) > 0 {
		b.WriteString("TOP BUY CANDIDATES\n")
		b.WriteString(signals.FormatSignalsForAI(in.TopBuyCandidates, len(in.TopBuyCandidates)))
		b.WriteString("\n")
	}

	if len(in.RecentTrades) > 0 {
		b.WriteString("RECENT TRADES\n")
		n := len(in.RecentTrades)
		if n > 5 {
			n = 5
		}
		for _, t := range in.RecentTrades[:n] {
			fmt.Fprintf(&b, "%s | amount=%.4f price=%.6f pnl=%.4f | %s\n",
				t.Type, t.Amount, t.Price, t.Pnl, t.Timestamp.Format(time.RFC3339))
		}
	}
	if in.LossStreakWarning != "" {
		fmt.Fprintf(&b, "\nWARNING: %s\n", in.LossStreakWarning)
	}

	return b.String()
}

func formatPerformance(perf []models.SignalPerformance) string {
	parts := make([]string, 0, len(perf))
	for _, p := range perf {
		parts = append(parts, fmt.Sprintf("%s(wr=%.0f%%,n=%d)", p.Signal, p.WinRate()*100, p.Count))
	}
	return strings.Join(parts, ", ")
}
