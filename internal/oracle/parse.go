package oracle

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/driftline/signalcore/pkg/models"
)

var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// extractJSON strips markdown code fences (providers frequently wrap the
// response even when asked not to) and falls back to the span from the
// first "{" to the last "}" in the text, grounded on the teacher's extractJSON in
// internal/adapters/ai/prompts.go.
func extractJSON(text string) string {
	if m := fenceRe.FindStringSubmatch(text); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return strings.TrimSpace(text[start : end+1])
	}
	return strings.TrimSpace(text)
}

type rawDecision struct {
	Action       string  `json:"action"`
	TokenSymbol  string  `json:"tokenSymbol"`
	TokenAddress string  `json:"tokenAddress"`
	Chain        string  `json:"chain"`
	Amount       float64 `json:"amount"`
	Confidence   int     `json:"confidence"`
	Reasoning    string  `json:"reasoning"`
	SignalScore  float64 `json:"signalScore"`
}

// ParseDecision defensively parses one oracle response into a Decision.
// Any invalid action is coerced to hold rather than rejected, and any
// parse failure returns a hold decision carrying the error as its
// reasoning rather than propagating the error — per spec.md §4.6.
func ParseDecision(raw string) models.Decision {
	jsonStr := extractJSON(raw)

	var parsed rawDecision
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		return holdOn("oracle response parse failed: " + err.Error())
	}

	confidence := parsed.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 100 {
		confidence = 100
	}

	return models.Decision{
		Action:       models.ParseDecisionAction(parsed.Action),
		TokenSymbol:  parsed.TokenSymbol,
		TokenAddress: parsed.TokenAddress,
		Chain:        models.Chain(parsed.Chain),
		Amount:       parsed.Amount,
		Confidence:   confidence,
		Reasoning:    parsed.Reasoning,
		SignalScore:  parsed.SignalScore,
	}
}

func holdOn(reasoning string) models.Decision {
	return models.Decision{Action: models.DecisionHold, Reasoning: reasoning}
}
