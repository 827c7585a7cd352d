package types

import (
	"time"

	"github.com/rxtech-lab/tempo-trading/pkg/errors"
)

// Timeframe is the sampling interval of a bar series.
type Timeframe string

const (
	TimeframeDay    Timeframe = "day"
	TimeframeMinute Timeframe = "minute"
)

// ParseTimeframe converts a config string into a Timeframe.
func ParseTimeframe(s string) (Timeframe, error) {
	switch Timeframe(s) {
	case TimeframeDay:
		return TimeframeDay, nil
	case TimeframeMinute:
		return TimeframeMinute, nil
	default:
		return "", errors.Newf(errors.ErrCodeInvalidParameter, "unknown timeframe: %q", s)
	}
}

// Duration returns the wall duration covered by one bar of this timeframe.
func (t Timeframe) Duration() time.Duration {
	if t == TimeframeMinute {
		return time.Minute
	}

	return 24 * time.Hour
}

// Bar is one OHLCV price sample for a symbol at a timeframe.
// Bars are immutable once produced by a feed.
type Bar struct {
	Symbol    string    `yaml:"symbol" json:"symbol" csv:"symbol"`
	Time      time.Time `yaml:"time" json:"time" csv:"time"`
	Open      float64   `yaml:"open" json:"open" csv:"open"`
	High      float64   `yaml:"high" json:"high" csv:"high"`
	Low       float64   `yaml:"low" json:"low" csv:"low"`
	Close     float64   `yaml:"close" json:"close" csv:"close"`
	Volume    float64   `yaml:"volume" json:"volume" csv:"volume"`
	Timeframe Timeframe `yaml:"timeframe" json:"timeframe" csv:"timeframe"`
}
