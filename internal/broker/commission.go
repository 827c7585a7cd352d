package broker

import (
	"math"

	"github.com/rxtech-lab/tempo-trading/pkg/errors"
)

// Commission prices a fill. Implementations receive the signed fill
// quantity and return the fee in account currency.
type Commission interface {
	Calculate(quantity, price float64) float64
}

// CommissionMode selects a commission model from configuration.
type CommissionMode string

const (
	CommissionModeZero     CommissionMode = "zero"
	CommissionModePerShare CommissionMode = "per_share"
)

// NewCommission builds the commission model for a mode string.
func NewCommission(mode CommissionMode) (Commission, error) {
	switch mode {
	case CommissionModeZero, "":
		return ZeroCommission{}, nil
	case CommissionModePerShare:
		return PerShareCommission{Rate: 0.005, Minimum: 1.0}, nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidCommissionMode, "unknown commission mode: %s", mode)
	}
}

// ZeroCommission charges nothing.
type ZeroCommission struct{}

func (ZeroCommission) Calculate(quantity, price float64) float64 {
	return 0.0
}

// PerShareCommission charges a per-share rate with a minimum per fill.
type PerShareCommission struct {
	Rate    float64
	Minimum float64
}

func (c PerShareCommission) Calculate(quantity, price float64) float64 {
	fee := c.Rate * math.Abs(quantity)
	if fee < c.Minimum {
		return c.Minimum
	}

	return fee
}
