package telegram

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/driftline/signalcore/pkg/models"
)

// templateSet holds the parsed message templates for each broadcast kind.
// Templates are embedded as literals rather than loaded from a directory,
// grounded on the teacher's TemplateManager but simplified since this
// adapter ships no on-disk template assets of its own.
type templateSet struct {
	tradeTmpl               *template.Template
	agentUpdateTmpl         *template.Template
	subscriptionExpiredTmpl *template.Template
	errorAlertTmpl          *template.Template
}

func newTemplateSet() *templateSet {
	return &templateSet{
		tradeTmpl: template.Must(template.New("trade_executed").Parse(
			"{{.Emoji}} *{{.Action}}* {{.Symbol}}\nAgent: `{{.AgentID}}`\nSize: {{printf \"%.4f\" .Amount}} @ {{printf \"%.6f\" .Price}}{{if ne .Pnl 0.0}}\nPnL: {{.PnLSign}}{{printf \"%.2f\" .Pnl}}{{end}}",
		)),
		agentUpdateTmpl: template.Must(template.New("agent_update").Parse(
			"🔄 Agent `{{.}}` position update",
		)),
		subscriptionExpiredTmpl: template.Must(template.New("subscription_expired").Parse(
			"⏸️ Agent `{{.}}` paused: subscription expired",
		)),
		errorAlertTmpl: template.Must(template.New("error_alert").Parse(
			"❌ Runner error: {{.}}",
		)),
	}
}

func (t *templateSet) tradeExecuted(trade *models.AgentTrade) string {
	emoji := "💚"
	pnlSign := ""
	if trade.Pnl < 0 {
		emoji = "❤️"
	}
	if trade.Pnl > 0 {
		pnlSign = "+"
	}

	data := struct {
		Emoji   string
		Action  string
		Symbol  string
		AgentID string
		Amount  float64
		Price   float64
		Pnl     float64
		PnLSign string
	}{
		Emoji:   emoji,
		Action:  string(trade.Type),
		Symbol:  tokenLabel(trade),
		AgentID: trade.AgentID,
		Amount:  trade.Amount,
		Price:   trade.Price,
		Pnl:     trade.Pnl,
		PnLSign: pnlSign,
	}

	var buf bytes.Buffer
	if err := t.tradeTmpl.Execute(&buf, data); err != nil {
		return fmt.Sprintf("trade executed: agent=%s pnl=%.2f", trade.AgentID, trade.Pnl)
	}
	return buf.String()
}

func tokenLabel(trade *models.AgentTrade) string {
	if trade.TokenID != nil {
		return *trade.TokenID
	}
	return "unknown"
}

func (t *templateSet) agentUpdate(agentID string) string {
	var buf bytes.Buffer
	if err := t.agentUpdateTmpl.Execute(&buf, agentID); err != nil {
		return fmt.Sprintf("agent %s position update", agentID)
	}
	return buf.String()
}

func (t *templateSet) subscriptionExpired(agentID string) string {
	var buf bytes.Buffer
	if err := t.subscriptionExpiredTmpl.Execute(&buf, agentID); err != nil {
		return fmt.Sprintf("agent %s paused: subscription expired", agentID)
	}
	return buf.String()
}

func (t *templateSet) errorAlert(msg string) string {
	var buf bytes.Buffer
	if err := t.errorAlertTmpl.Execute(&buf, msg); err != nil {
		return fmt.Sprintf("runner error: %s", msg)
	}
	return buf.String()
}
