package fuse

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"llm-futures-trader/internal/types"
)

func guardrail(sig types.Direction, conf float64) *types.TechnicalSignal {
	return &types.TechnicalSignal{Signal: sig, Confidence: conf, Rationale: "test"}
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want types.Direction
		ok   bool
	}{
		{"Bullish", types.Bullish, true},
		{"bullish", types.Bullish, true},
		{"  BEARISH \n", types.Bearish, true},
		{"neutral", types.Neutral, true},
		{"", types.Neutral, true},
		{"   ", types.Neutral, true},
		{"sideways", types.Neutral, false},
		{"LONG", types.Neutral, false},
	}
	for _, c := range cases {
		got, ok := Normalize(c.in)
		assert.Equal(t, c.want, got, "Normalize(%q)", c.in)
		assert.Equal(t, c.ok, ok, "Normalize(%q) recognized", c.in)
	}
}

func TestCombinePrecedence(t *testing.T) {
	th := DefaultThresholds()
	cases := []struct {
		name      string
		primary   types.Direction
		guardrail *types.TechnicalSignal
		want      types.Direction
		rule      Rule
	}{
		{"no guardrail", types.Bullish, nil, types.Bullish, RulePrimaryOnly},
		{"agreement", types.Bearish, guardrail(types.Bearish, 0.50), types.Bearish, RuleAgreement},
		{"neutral tiebreak", types.Neutral, guardrail(types.Bullish, 0.60), types.Bullish, RuleNeutralTiebreak},
		{"neutral tiebreak below threshold", types.Neutral, guardrail(types.Bullish, 0.50), types.Neutral, RulePrimaryWins},
		{"guardrail neutral", types.Bearish, guardrail(types.Neutral, 0.90), types.Bearish, RuleGuardrailNeutral},
		{"conflict suppressed", types.Bullish, guardrail(types.Bearish, 0.80), types.Neutral, RuleConflictSuppressed},
		{"conflict below threshold", types.Bullish, guardrail(types.Bearish, 0.60), types.Bullish, RulePrimaryWins},
		{"conflict at threshold", types.Bearish, guardrail(types.Bullish, 0.75), types.Neutral, RuleConflictSuppressed},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, rule := Combine(c.primary, c.guardrail, th)
			assert.Equal(t, c.want, got)
			assert.Equal(t, c.rule, rule)
		})
	}
}

func TestCombineConfigurableThresholds(t *testing.T) {
	th := Thresholds{NeutralTiebreak: 0.90, ConflictSuppress: 0.95}

	// Guardrail at 0.80 no longer breaks a neutral tie.
	got, rule := Combine(types.Neutral, guardrail(types.Bullish, 0.80), th)
	assert.Equal(t, types.Neutral, got)
	assert.Equal(t, RulePrimaryWins, rule)

	// Nor does it suppress a conflict.
	got, rule = Combine(types.Bullish, guardrail(types.Bearish, 0.80), th)
	assert.Equal(t, types.Bullish, got)
	assert.Equal(t, RulePrimaryWins, rule)
}
