package oracle

import (
	"testing"

	"github.com/driftline/signalcore/pkg/models"
)

func TestParseDecision_StripsMarkdownFences(t *testing.T) {
	raw := "```json\n{\"action\":\"buy\",\"tokenSymbol\":\"FOO\",\"tokenAddress\":\"0xabc\",\"chain\":\"solana\",\"amount\":1.5,\"confidence\":80,\"reasoning\":\"strong momentum\",\"signalScore\":72}\n```"
	d := ParseDecision(raw)
	if d.Action != models.DecisionBuy {
		t.Fatalf("expected buy action, got %v", d.Action)
	}
	if d.TokenSymbol != "FOO" || d.Confidence != 80 {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestParseDecision_InvalidActionCoercesToHold(t *testing.T) {
	raw := `{"action":"yolo_buy","tokenSymbol":"BAR","confidence":50}`
	d := ParseDecision(raw)
	if d.Action != models.DecisionHold {
		t.Fatalf("expected invalid action coerced to hold, got %v", d.Action)
	}
}

func TestParseDecision_MalformedJSONReturnsHoldWithReasoning(t *testing.T) {
	d := ParseDecision("not json at all")
	if d.Action != models.DecisionHold {
		t.Fatalf("expected hold on parse failure, got %v", d.Action)
	}
	if d.Reasoning == "" {
		t.Fatal("expected the parse error recorded as reasoning")
	}
}

func TestParseDecision_ConfidenceClampedToPercentRange(t *testing.T) {
	raw := `{"action":"hold","confidence":150}`
	d := ParseDecision(raw)
	if d.Confidence != 100 {
		t.Fatalf("expected confidence clamped to 100, got %d", d.Confidence)
	}
}

func TestExtractJSON_FindsBalancedObjectWithoutFences(t *testing.T) {
	raw := "here is my answer: {\"action\":\"hold\"} thanks"
	got := extractJSON(raw)
	if got != `{"action":"hold"}` {
		t.Fatalf("unexpected extraction: %q", got)
	}
}
