// Package telegram implements the Outbound events port over Telegram: every
// EventKind is rendered to a chat message and fired at one configured ops
// chat. There is no per-subscriber routing and no acknowledgement, matching
// the Broadcaster port contract (fire-and-forget, subscribers are
// external).
package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/driftline/signalcore/internal/config"
	"github.com/driftline/signalcore/internal/ports"
	"github.com/driftline/signalcore/pkg/logger"
	"github.com/driftline/signalcore/pkg/models"
)

// Notifier implements ports.Broadcaster over a single Telegram chat.
type Notifier struct {
	api  *tgbotapi.BotAPI
	cfg  config.TelegramConfig
	tmpl *templateSet
}

// NewNotifier builds the Telegram bot client. Returns an error if the bot
// token is missing or rejected, so misconfiguration surfaces at startup
// rather than on the first broadcast.
func NewNotifier(cfg config.TelegramConfig) (*Notifier, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot API client: %w", err)
	}
	bot.Debug = false

	logger.Info("telegram notifier initialized", zap.String("bot_username", bot.Self.UserName))

	return &Notifier{api: bot, cfg: cfg, tmpl: newTemplateSet()}, nil
}

// Broadcast renders the event and sends it to the configured ops chat. It
// never returns an error to the caller: a broadcast failure is logged, not
// propagated, since the port contract has no acknowledgement for the
// caller to react to.
func (n *Notifier) Broadcast(ctx context.Context, event ports.Event) {
	if n.cfg.ChatID == 0 {
		return
	}

	text, ok := n.render(event)
	if !ok {
		return
	}

	msg := tgbotapi.NewMessage(n.cfg.ChatID, text)
	msg.ParseMode = "Markdown"

	if _, err := n.api.Send(msg); err != nil {
		logger.Error("failed to send telegram broadcast",
			zap.String("kind", string(event.Kind)),
			zap.Error(err),
		)
	}
}

// render maps one Event to chat text, honoring AlertOnTrades/AlertOnErrors
// gating per spec.md's configuration semantics. The second return value is
// false when the event kind is gated off or unrecognized.
func (n *Notifier) render(event ports.Event) (string, bool) {
	switch event.Kind {
	case ports.EventAgentTrade:
		if !n.cfg.AlertOnTrades {
			return "", false
		}
		trade, ok := event.Data.(*models.AgentTrade)
		if !ok {
			return "", false
		}
		return n.tmpl.tradeExecuted(trade), true

	case ports.EventAgentUpdate:
		if !n.cfg.AlertOnTrades {
			return "", false
		}
		agentID, _ := event.Data.(string)
		return n.tmpl.agentUpdate(agentID), true

	case ports.EventAgentSubscriptionExpired:
		if !n.cfg.AlertOnErrors {
			return "", false
		}
		agentID, _ := event.Data.(string)
		return n.tmpl.subscriptionExpired(agentID), true

	case ports.EventAgentError:
		if !n.cfg.AlertOnErrors {
			return "", false
		}
		errMsg, _ := event.Data.(string)
		return n.tmpl.errorAlert(errMsg), true

	default:
		return "", false
	}
}

var _ ports.Broadcaster = (*Notifier)(nil)
