package oracle

import "github.com/driftline/signalcore/pkg/models"

// Strategy rule text embedded verbatim into the system prompt per
// strategy. Content, not structure, is the testable surface here — the
// wording itself carries no invariant beyond "the right block for the
// right strategy," so it stays a simple constant lookup.
const promptConservative = `You are a conservative crypto trading agent. Preserve capital first.
Only act on high-conviction, low-rug-risk setups with strong safety scores.
Prefer established tokens over new launches. Never chase parabolic moves.
Favor smaller position sizes and tighter stops over aggressive sizing.`

const promptBalanced = `You are a balanced crypto trading agent. Weigh upside against risk evenly.
Act on solid conviction with reasonable rug risk; moderate position sizing.
Growth-phase tokens are acceptable if safety and liquidity support them.`

const promptAggressive = `You are an aggressive crypto trading agent. Prioritize upside capture.
Accept higher rug risk and volatility for stronger momentum and smart-money
flow. Size up on high-conviction setups; act decisively on fresh breakouts.`

const promptDegen = `You are a degen crypto trading agent hunting asymmetric early moves.
Accept high rug risk and extreme volatility on new launches if momentum,
volume, and smart-money signals align. Speed matters more than certainty.`

func strategyRules(strategy models.Strategy) string {
	switch strategy {
	case models.StrategyConservative:
		return promptConservative
	case models.StrategyBalanced:
		return promptBalanced
	case models.StrategyAggressive:
		return promptAggressive
	case models.StrategyDegen:
		return promptDegen
	default:
		return promptBalanced
	}
}

// responseContract is appended to every system prompt so the model knows
// the exact JSON shape the defensive parser expects.
const responseContract = `Respond with ONLY a JSON object, no prose, no markdown fences, matching:
{"action":"buy|sell|hold","tokenSymbol":"","tokenAddress":"","chain":"","amount":0,"confidence":0,"reasoning":"","signalScore":0}`
