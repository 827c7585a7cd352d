package types

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// StatsRecord is the reduced statistics table for one run. Ratio metrics that
// cannot be computed (fewer than two valuation samples, zero-variance returns,
// missing benchmark) are reported as NaN sentinels, never as errors.
type StatsRecord struct {
	// ID is the unique identifier for this run.
	ID string `yaml:"id" json:"id"`
	// Timestamp is when this record was produced.
	Timestamp time.Time `yaml:"timestamp" json:"timestamp"`
	// Start and End bound the valuation history the record was reduced from.
	Start time.Time `yaml:"start" json:"start"`
	End   time.Time `yaml:"end" json:"end"`

	StartValue float64 `yaml:"start_value" json:"start_value"`
	EndValue   float64 `yaml:"end_value" json:"end_value"`

	// TotalReturn is final/initial - 1.
	TotalReturn float64 `yaml:"total_return" json:"total_return"`
	// CAGR is the geometric annualization of TotalReturn over the elapsed period.
	CAGR float64 `yaml:"cagr" json:"cagr"`
	// Sharpe is mean period return over its standard deviation, annualized.
	Sharpe float64 `yaml:"sharpe" json:"sharpe"`
	// Sortino uses only downside deviation in the denominator.
	Sortino float64 `yaml:"sortino" json:"sortino"`
	// Alpha and Beta come from regressing period returns on the benchmark's.
	Alpha float64 `yaml:"alpha" json:"alpha"`
	Beta  float64 `yaml:"beta" json:"beta"`
	// MaxDrawdown is the largest peak-to-trough decline, as a positive fraction.
	MaxDrawdown float64 `yaml:"max_drawdown" json:"max_drawdown"`

	// Win statistics come from realized-profit fill events, not valuation deltas.
	WinRate     float64 `yaml:"win_rate" json:"win_rate"`
	AverageWin  float64 `yaml:"average_win" json:"average_win"`
	AverageLoss float64 `yaml:"average_loss" json:"average_loss"`

	NumberOfFills      int     `yaml:"number_of_fills" json:"number_of_fills"`
	NumberOfCloses     int     `yaml:"number_of_closes" json:"number_of_closes"`
	TotalCommission    float64 `yaml:"total_commission" json:"total_commission"`
	RealizedPnL        float64 `yaml:"realized_pnl" json:"realized_pnl"`
	ValuationSamples   int     `yaml:"valuation_samples" json:"valuation_samples"`
	BenchmarkAvailable bool    `yaml:"benchmark_available" json:"benchmark_available"`
}

// Undefined is the sentinel for metrics that cannot be computed.
func Undefined() float64 {
	return math.NaN()
}

// IsUndefined reports whether a metric carries the sentinel value.
func IsUndefined(v float64) bool {
	return math.IsNaN(v)
}

// WriteStats writes the record to a YAML file.
func WriteStats(path string, stats StatsRecord) error {
	data, err := yaml.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal stats to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write stats to file: %w", err)
	}

	return nil
}
