// Package oracle implements the Decision Oracle Adapter: prompt
// construction, the external LLM round-trip, and defensive parsing of
// its response into a models.Decision.
package oracle

import (
	"context"

	"go.uber.org/zap"

	"github.com/driftline/signalcore/internal/ports"
	"github.com/driftline/signalcore/pkg/logger"
	"github.com/driftline/signalcore/pkg/models"
)

// Adapter wires a ports.Oracle implementation to the prompt-construction
// and defensive-parsing rules of spec.md §4.6.
type Adapter struct {
	Oracle          ports.Oracle
	MaxOutputTokens int
}

func NewAdapter(oracle ports.Oracle, maxOutputTokens int) *Adapter {
	return &Adapter{Oracle: oracle, MaxOutputTokens: maxOutputTokens}
}

// Decide builds the full prompt for one agent cycle, invokes the oracle,
// and returns a defensively-parsed Decision. It never returns an error:
// any failure — transport, timeout, malformed response — yields a hold
// decision with the failure recorded as its reasoning, so the Agent
// Runner can always proceed to the next step of the cycle.
func (a *Adapter) Decide(ctx context.Context, in PromptInput) models.Decision {
	system := BuildSystemPrompt(in.Strategy)
	user := BuildUserPrompt(in)

	raw, err := a.Oracle.Generate(ctx, system, user, a.MaxOutputTokens)
	if err != nil {
		logger.Warn("oracle round-trip failed, defaulting to hold", zap.Error(err))
		return holdOn("oracle request failed: " + err.Error())
	}

	return ParseDecision(raw)
}
