package telegram

import (
	"strings"
	"testing"

	"github.com/driftline/signalcore/internal/config"
	"github.com/driftline/signalcore/internal/ports"
	"github.com/driftline/signalcore/pkg/models"
)

// newTestNotifier builds a Notifier without touching the network: render
// never calls n.api, so a nil *tgbotapi.BotAPI is safe for these tests.
func newTestNotifier(cfg config.TelegramConfig) *Notifier {
	return &Notifier{cfg: cfg, tmpl: newTemplateSet()}
}

func TestRender_TradeEventRespectsAlertOnTrades(t *testing.T) {
	n := newTestNotifier(config.TelegramConfig{AlertOnTrades: false, ChatID: 1})

	_, ok := n.render(ports.Event{Kind: ports.EventAgentTrade, Data: &models.AgentTrade{AgentID: "a1", Pnl: 5}})
	if ok {
		t.Fatal("expected trade event to be gated off when AlertOnTrades is false")
	}

	n.cfg.AlertOnTrades = true
	text, ok := n.render(ports.Event{Kind: ports.EventAgentTrade, Data: &models.AgentTrade{AgentID: "a1", Type: models.TradeBuy, Pnl: 5}})
	if !ok {
		t.Fatal("expected trade event to render when AlertOnTrades is true")
	}
	if !strings.Contains(text, "a1") {
		t.Fatalf("expected rendered text to mention the agent ID, got %q", text)
	}
}

func TestRender_ErrorEventRespectsAlertOnErrors(t *testing.T) {
	n := newTestNotifier(config.TelegramConfig{AlertOnErrors: false, ChatID: 1})

	_, ok := n.render(ports.Event{Kind: ports.EventAgentSubscriptionExpired, Data: "agent-1"})
	if ok {
		t.Fatal("expected subscription-expired event to be gated off when AlertOnErrors is false")
	}

	n.cfg.AlertOnErrors = true
	text, ok := n.render(ports.Event{Kind: ports.EventAgentSubscriptionExpired, Data: "agent-1"})
	if !ok {
		t.Fatal("expected subscription-expired event to render when AlertOnErrors is true")
	}
	if !strings.Contains(text, "agent-1") {
		t.Fatalf("expected rendered text to mention the agent ID, got %q", text)
	}
}

func TestRender_UnrecognizedEventKindIsIgnored(t *testing.T) {
	n := newTestNotifier(config.TelegramConfig{AlertOnTrades: true, AlertOnErrors: true, ChatID: 1})

	_, ok := n.render(ports.Event{Kind: ports.EventKind("unknown"), Data: nil})
	if ok {
		t.Fatal("expected an unrecognized event kind to be ignored")
	}
}

func TestRender_WrongDataTypeIsIgnoredNotPanicked(t *testing.T) {
	n := newTestNotifier(config.TelegramConfig{AlertOnTrades: true, ChatID: 1})

	_, ok := n.render(ports.Event{Kind: ports.EventAgentTrade, Data: "not a trade"})
	if ok {
		t.Fatal("expected a mistyped event payload to be ignored rather than rendered")
	}
}

func TestNotifier_SatisfiesBroadcasterPort(t *testing.T) {
	var _ ports.Broadcaster = (*Notifier)(nil)
}
