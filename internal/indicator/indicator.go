// Package indicator computes technical indicators over bar windows.
// Strategies receive an Indicators value through their context; the
// default implementation delegates the math to TA-Lib.
package indicator

import (
	"github.com/markcheno/go-talib"
	"github.com/rxtech-lab/tempo-trading/internal/types"
	"github.com/rxtech-lab/tempo-trading/pkg/errors"
)

// Indicators is the indicator surface exposed to strategies. Each method
// returns the latest indicator value for the supplied bars.
type Indicators interface {
	SMA(bars []types.Bar, period int) (float64, error)
	EMA(bars []types.Bar, period int) (float64, error)
	RSI(bars []types.Bar, period int) (float64, error)
	ATR(bars []types.Bar, period int) (float64, error)
}

// TALib implements Indicators with go-talib.
type TALib struct{}

// NewTALib creates the default indicator engine.
func NewTALib() Indicators {
	return &TALib{}
}

func closes(bars []types.Bar) []float64 {
	result := make([]float64, len(bars))
	for i, bar := range bars {
		result[i] = bar.Close
	}

	return result
}

func checkWindow(bars []types.Bar, period, needed int, name string) error {
	if period <= 0 {
		return errors.Newf(errors.ErrCodeInvalidPeriod, "%s period must be positive, got %d", name, period)
	}

	if len(bars) < needed {
		return errors.NewInsufficientDataErrorf(needed, len(bars), symbolOf(bars), "%s(%d) needs %d bars, have %d", name, period, needed, len(bars))
	}

	return nil
}

func symbolOf(bars []types.Bar) string {
	if len(bars) == 0 {
		return ""
	}

	return bars[0].Symbol
}

// SMA returns the simple moving average of closes over period.
func (t *TALib) SMA(bars []types.Bar, period int) (float64, error) {
	if err := checkWindow(bars, period, period, "SMA"); err != nil {
		return 0, err
	}

	series := talib.Sma(closes(bars), period)

	return series[len(series)-1], nil
}

// EMA returns the exponential moving average of closes over period.
func (t *TALib) EMA(bars []types.Bar, period int) (float64, error) {
	if err := checkWindow(bars, period, period, "EMA"); err != nil {
		return 0, err
	}

	series := talib.Ema(closes(bars), period)

	return series[len(series)-1], nil
}

// RSI returns the relative strength index over period. RSI needs one bar
// beyond the period to seed the first gain/loss delta.
func (t *TALib) RSI(bars []types.Bar, period int) (float64, error) {
	if err := checkWindow(bars, period, period+1, "RSI"); err != nil {
		return 0, err
	}

	series := talib.Rsi(closes(bars), period)

	return series[len(series)-1], nil
}

// ATR returns the average true range over period.
func (t *TALib) ATR(bars []types.Bar, period int) (float64, error) {
	if err := checkWindow(bars, period, period+1, "ATR"); err != nil {
		return 0, err
	}

	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))

	for i, bar := range bars {
		highs[i] = bar.High
		lows[i] = bar.Low
	}

	series := talib.Atr(highs, lows, closes(bars), period)

	return series[len(series)-1], nil
}
