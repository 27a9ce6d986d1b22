// Package sizing converts a configured position size specification into a
// tradeable base-currency quantity, with volatility-based rescaling.
package sizing

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrSpecType marks a position_size config value of an unsupported shape.
	ErrSpecType = errors.New("invalid position size type")
	// ErrValidation marks a spec whose value is out of range for the account.
	ErrValidation = errors.New("invalid position size")
)

type Mode int

const (
	// Percent sizes the trade as a fraction of available capital ("10%").
	Percent Mode = iota
	// Fixed sizes the trade as a fixed notional amount in quote currency.
	Fixed
)

// Spec is a parsed position size specification, immutable per run except for
// volatility rescaling.
type Spec struct {
	Mode  Mode
	Value float64
}

func (s Spec) String() string {
	if s.Mode == Percent {
		return fmt.Sprintf("%.2f%%", s.Value)
	}
	return strconv.FormatFloat(s.Value, 'f', -1, 64)
}

// ParseSpec accepts the raw YAML value of position_size: a string ending in
// '%', or a bare number treated as fixed notional. Anything else is a
// spec-type error.
func ParseSpec(raw any) (Spec, error) {
	switch v := raw.(type) {
	case string:
		if !strings.HasSuffix(v, "%") {
			return Spec{}, fmt.Errorf("%w: string spec must end with '%%', got %q", ErrValidation, v)
		}
		pct, err := strconv.ParseFloat(strings.TrimSuffix(v, "%"), 64)
		if err != nil {
			return Spec{}, fmt.Errorf("%w: invalid percentage format %q", ErrValidation, v)
		}
		return Spec{Mode: Percent, Value: pct}, nil
	case int:
		return Spec{Mode: Fixed, Value: float64(v)}, nil
	case int64:
		return Spec{Mode: Fixed, Value: float64(v)}, nil
	case float64:
		return Spec{Mode: Fixed, Value: v}, nil
	case nil:
		return Spec{}, fmt.Errorf("%w: position size missing", ErrSpecType)
	default:
		return Spec{}, fmt.Errorf("%w: %T", ErrSpecType, raw)
	}
}

// Quantity converts the spec into a base-currency quantity given available
// capital and the current price. Percentage specs must be in (0, 100]; fixed
// specs must be positive and within capital.
func Quantity(spec Spec, capital, price float64) (float64, error) {
	if price <= 0 {
		return 0, fmt.Errorf("%w: price must be positive, got %v", ErrValidation, price)
	}
	var capitalToUse float64
	switch spec.Mode {
	case Percent:
		if spec.Value <= 0 || spec.Value > 100 {
			return 0, fmt.Errorf("%w: percentage must be between 0 and 100, got %v%%", ErrValidation, spec.Value)
		}
		capitalToUse = capital * spec.Value / 100
	case Fixed:
		if spec.Value <= 0 {
			return 0, fmt.Errorf("%w: amount must be positive, got %v", ErrValidation, spec.Value)
		}
		if spec.Value > capital {
			return 0, fmt.Errorf("%w: fixed amount %.2f exceeds available capital %.2f", ErrValidation, spec.Value, capital)
		}
		capitalToUse = spec.Value
	default:
		return 0, fmt.Errorf("%w: mode %d", ErrSpecType, spec.Mode)
	}
	return capitalToUse / price, nil
}

// VolatilityScale maps the snapshot's ATR percentage onto a size multiplier:
// shrink in rough markets, lean in slightly when the tape is quiet.
func VolatilityScale(atrPct float64) float64 {
	switch {
	case atrPct >= 4:
		return 0.5
	case atrPct >= 3:
		return 0.75
	case atrPct <= 1:
		return 1.1
	default:
		return 1.0
	}
}

// Rescale applies a volatility multiplier to the spec. Percentage specs are
// floored at 0.1% and fixed specs at 1e-8 so scaling can never zero a trade
// out entirely.
func Rescale(spec Spec, scale float64) Spec {
	if scale == 1.0 {
		return spec
	}
	switch spec.Mode {
	case Percent:
		return Spec{Mode: Percent, Value: math.Max(0.1, spec.Value*scale)}
	case Fixed:
		return Spec{Mode: Fixed, Value: math.Max(1e-8, spec.Value*scale)}
	}
	return spec
}
