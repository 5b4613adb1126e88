package premium

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// ErrInvalidInput means the inputs cannot produce a meaningful premium.
// Zero or negative values are treated as data faults, not as "not ready".
var ErrInvalidInput = errors.New("invalid premium input")

// Calculator turns the three input values into a premium percentage.
type Calculator interface {
	Compute(domestic, international, fxRate float64) (float64, error)
}

// Standard is the kimchi premium formula.
type Standard struct{}

func (Standard) Compute(domestic, international, fxRate float64) (float64, error) {
	return Compute(domestic, international, fxRate)
}

// Compute returns ((domestic / (international * fxRate)) - 1) * 100 at full precision.
func Compute(domestic, international, fxRate float64) (float64, error) {
	for _, in := range []struct {
		name string
		v    float64
	}{
		{"domestic", domestic},
		{"international", international},
		{"fx rate", fxRate},
	} {
		if math.IsNaN(in.v) || math.IsInf(in.v, 0) {
			return 0, fmt.Errorf("%w: %s is not finite", ErrInvalidInput, in.name)
		}
		if in.v <= 0 {
			return 0, fmt.Errorf("%w: %s must be positive, got %v", ErrInvalidInput, in.name, in.v)
		}
	}

	converted := international * fxRate
	if converted == 0 || math.IsInf(converted, 0) {
		return 0, fmt.Errorf("%w: converted price %v", ErrInvalidInput, converted)
	}
	return (domestic/converted - 1) * 100, nil
}

// Format renders a premium with exactly two decimals.
func Format(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
