// Package fuse blends the externally supplied primary signal with the
// deterministic guardrail signal. The primary opinion stays in charge; a
// high-confidence guardrail can break a neutral tie or neuter a conflicting
// bet.
package fuse

import (
	"strings"

	"llm-futures-trader/internal/types"
)

// Thresholds are the hand-tuned guardrail confidence cutoffs. Kept
// configurable: their values are a tuning choice, not a verified contract.
type Thresholds struct {
	NeutralTiebreak  float64
	ConflictSuppress float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{NeutralTiebreak: 0.55, ConflictSuppress: 0.75}
}

// Rule identifies which fusion rule fired, for event reporting. The rules
// form a precedence chain; only the first match fires.
type Rule int

const (
	RulePrimaryOnly Rule = iota + 1
	RuleAgreement
	RuleNeutralTiebreak
	RuleGuardrailNeutral
	RuleConflictSuppressed
	RulePrimaryWins
)

func (r Rule) String() string {
	switch r {
	case RulePrimaryOnly:
		return "primary_only"
	case RuleAgreement:
		return "agreement"
	case RuleNeutralTiebreak:
		return "neutral_tiebreak"
	case RuleGuardrailNeutral:
		return "guardrail_neutral"
	case RuleConflictSuppressed:
		return "conflict_suppressed"
	case RulePrimaryWins:
		return "primary_wins"
	}
	return "unknown"
}

// Normalize maps a free-form directional string (any casing or whitespace)
// onto the three-valued domain. The second return is false when a non-empty
// value was unrecognized and defaulted to Neutral; callers log that as a
// warning, not a failure.
func Normalize(raw string) (types.Direction, bool) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return types.Neutral, true
	}
	cleaned = strings.ToUpper(cleaned[:1]) + strings.ToLower(cleaned[1:])
	switch d := types.Direction(cleaned); d {
	case types.Bullish, types.Bearish, types.Neutral:
		return d, true
	}
	return types.Neutral, false
}

// Combine fuses the normalized primary signal with the optional guardrail.
// A nil guardrail means the indicator pipeline failed and the primary signal
// passes through unchanged.
func Combine(primary types.Direction, guardrail *types.TechnicalSignal, th Thresholds) (types.Direction, Rule) {
	if guardrail == nil {
		return primary, RulePrimaryOnly
	}
	tech := guardrail.Signal
	switch {
	case primary == tech:
		return primary, RuleAgreement
	case primary == types.Neutral && guardrail.Confidence >= th.NeutralTiebreak:
		return tech, RuleNeutralTiebreak
	case tech == types.Neutral:
		return primary, RuleGuardrailNeutral
	case guardrail.Confidence >= th.ConflictSuppress:
		// Active Bullish-vs-Bearish disagreement with a confident guardrail.
		return types.Neutral, RuleConflictSuppressed
	default:
		return primary, RulePrimaryWins
	}
}
