package models

// DecisionAction is the closed set of actions the decision oracle may
// return. Any other value observed in the raw response is coerced to Hold.
type DecisionAction string

const (
	DecisionBuy  DecisionAction = "buy"
	DecisionSell DecisionAction = "sell"
	DecisionHold DecisionAction = "hold"
)

// Decision is the parsed, defensively-validated output of one oracle
// round-trip for one agent in one cycle.
type Decision struct {
	Action       DecisionAction `json:"action"`
	TokenSymbol  string         `json:"tokenSymbol"`
	TokenAddress string         `json:"tokenAddress"`
	Chain        Chain          `json:"chain"`
	Amount       float64        `json:"amount"`
	Confidence   int            `json:"confidence"`
	Reasoning    string         `json:"reasoning"`
	SignalScore  float64        `json:"signalScore"`
}

// ParseDecisionAction coerces an arbitrary string into a DecisionAction,
// defaulting to Hold for anything outside the closed set.
func ParseDecisionAction(raw string) DecisionAction {
	switch DecisionAction(raw) {
	case DecisionBuy:
		return DecisionBuy
	case DecisionSell:
		return DecisionSell
	default:
		return DecisionHold
	}
}
