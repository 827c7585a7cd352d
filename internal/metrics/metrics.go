// Package metrics derives performance statistics from a run's valuation
// series and fill log. Every ratio that lacks the data to be meaningful
// comes back as NaN rather than zero, so a flat backtest is
// distinguishable from a break-even one.
package metrics

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/tempo-trading/internal/types"
)

const daysPerYear = 365.25

// Config tunes the annualization of ratio statistics.
type Config struct {
	// PeriodsPerYear is the number of valuation samples in a trading year.
	// 252 for daily bars.
	PeriodsPerYear float64 `yaml:"periods_per_year" json:"periods_per_year"`
	// RiskFreeRate is the annual risk-free rate used by Sharpe and Sortino.
	RiskFreeRate float64 `yaml:"risk_free_rate" json:"risk_free_rate"`
	// DownsideTarget is the annual return floor for the Sortino downside
	// deviation. Returns below it count as downside; the risk-free rate
	// plays no part in the denominator.
	DownsideTarget float64 `yaml:"downside_target" json:"downside_target"`
}

// DefaultConfig assumes daily sampling, a zero risk-free rate, and a zero
// downside target.
func DefaultConfig() Config {
	return Config{PeriodsPerYear: 252, RiskFreeRate: 0, DownsideTarget: 0}
}

// Compute derives a StatsRecord from the valuation series, the fill log,
// and an optional benchmark value series aligned sample-for-sample with
// the valuations. Pass nil for benchmark when none is configured.
func Compute(valuations []types.Valuation, fills []types.Fill, benchmark []float64, cfg Config) types.StatsRecord {
	if cfg.PeriodsPerYear <= 0 {
		cfg.PeriodsPerYear = DefaultConfig().PeriodsPerYear
	}

	stats := types.StatsRecord{
		ID:               uuid.NewString(),
		Timestamp:        time.Now().UTC(),
		TotalReturn:      types.Undefined(),
		CAGR:             types.Undefined(),
		Sharpe:           types.Undefined(),
		Sortino:          types.Undefined(),
		Alpha:            types.Undefined(),
		Beta:             types.Undefined(),
		MaxDrawdown:      types.Undefined(),
		WinRate:          types.Undefined(),
		AverageWin:       types.Undefined(),
		AverageLoss:      types.Undefined(),
		NumberOfFills:    len(fills),
		ValuationSamples: len(valuations),
	}

	computeFillStats(&stats, fills)

	if len(valuations) == 0 {
		return stats
	}

	first := valuations[0]
	last := valuations[len(valuations)-1]

	stats.Start = first.Time
	stats.End = last.Time
	stats.StartValue = first.Value
	stats.EndValue = last.Value
	stats.MaxDrawdown = maxDrawdown(valuations)

	if len(valuations) < 2 || first.Value <= 0 {
		return stats
	}

	stats.TotalReturn = last.Value/first.Value - 1

	years := last.Time.Sub(first.Time).Hours() / 24 / daysPerYear
	if years > 0 && last.Value > 0 {
		stats.CAGR = math.Pow(last.Value/first.Value, 1/years) - 1
	}

	returns := sampleReturns(valuations)
	riskFreePerPeriod := cfg.RiskFreeRate / cfg.PeriodsPerYear

	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - riskFreePerPeriod
	}

	stats.Sharpe = sharpe(excess, cfg.PeriodsPerYear)
	stats.Sortino = sortino(returns, excess, cfg.DownsideTarget/cfg.PeriodsPerYear, cfg.PeriodsPerYear)

	if len(benchmark) == len(valuations) && len(benchmark) >= 2 {
		stats.BenchmarkAvailable = true
		benchReturns := make([]float64, 0, len(benchmark)-1)

		for i := 1; i < len(benchmark); i++ {
			if benchmark[i-1] == 0 {
				return stats
			}

			benchReturns = append(benchReturns, benchmark[i]/benchmark[i-1]-1)
		}

		stats.Alpha, stats.Beta = alphaBeta(returns, benchReturns, cfg.PeriodsPerYear)
	}

	return stats
}

func computeFillStats(stats *types.StatsRecord, fills []types.Fill) {
	var (
		wins, losses         int
		winTotal, lossTotal  float64
		realized, commission float64
	)

	closes := 0

	for _, fill := range fills {
		commission += fill.Commission

		if !fill.Closing {
			continue
		}

		closes++
		realized += fill.RealizedPnL

		if fill.RealizedPnL > 0 {
			wins++
			winTotal += fill.RealizedPnL
		} else {
			losses++
			lossTotal += fill.RealizedPnL
		}
	}

	stats.NumberOfCloses = closes
	stats.TotalCommission = commission
	stats.RealizedPnL = realized

	if closes > 0 {
		stats.WinRate = float64(wins) / float64(closes)
	}

	if wins > 0 {
		stats.AverageWin = winTotal / float64(wins)
	}

	if losses > 0 {
		stats.AverageLoss = lossTotal / float64(losses)
	}
}

func sampleReturns(valuations []types.Valuation) []float64 {
	returns := make([]float64, 0, len(valuations)-1)

	for i := 1; i < len(valuations); i++ {
		prev := valuations[i-1].Value
		if prev == 0 {
			returns = append(returns, 0)

			continue
		}

		returns = append(returns, valuations[i].Value/prev-1)
	}

	return returns
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}

	total := 0.0
	for _, x := range xs {
		total += x
	}

	return total / float64(len(xs))
}

// variance is the population variance.
func variance(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}

	m := mean(xs)

	total := 0.0
	for _, x := range xs {
		total += (x - m) * (x - m)
	}

	return total / float64(len(xs))
}

func sharpe(excess []float64, periodsPerYear float64) float64 {
	sd := math.Sqrt(variance(excess))
	if sd == 0 {
		return types.Undefined()
	}

	return mean(excess) / sd * math.Sqrt(periodsPerYear)
}

// sortino keeps the Sharpe numerator but measures dispersion only for
// returns below the per-period target.
func sortino(returns, excess []float64, target, periodsPerYear float64) float64 {
	downside := 0.0

	for _, r := range returns {
		if r < target {
			downside += (r - target) * (r - target)
		}
	}

	downside = math.Sqrt(downside / float64(len(returns)))
	if downside == 0 {
		return types.Undefined()
	}

	return mean(excess) / downside * math.Sqrt(periodsPerYear)
}

// alphaBeta runs the single-factor OLS regression of strategy returns on
// benchmark returns. Alpha comes back annualized.
func alphaBeta(returns, bench []float64, periodsPerYear float64) (alpha, beta float64) {
	if len(returns) != len(bench) || len(bench) == 0 {
		return types.Undefined(), types.Undefined()
	}

	benchVar := variance(bench)
	if benchVar == 0 {
		return types.Undefined(), types.Undefined()
	}

	meanR := mean(returns)
	meanB := mean(bench)

	cov := 0.0
	for i := range returns {
		cov += (returns[i] - meanR) * (bench[i] - meanB)
	}

	cov /= float64(len(returns))

	beta = cov / benchVar
	alpha = (meanR - beta*meanB) * periodsPerYear

	return alpha, beta
}

// maxDrawdown is the largest peak-to-trough decline, as a positive
// fraction of the peak.
func maxDrawdown(valuations []types.Valuation) float64 {
	if len(valuations) == 0 {
		return types.Undefined()
	}

	peak := valuations[0].Value
	worst := 0.0

	for _, v := range valuations {
		if v.Value > peak {
			peak = v.Value
		}

		if peak > 0 {
			drawdown := (peak - v.Value) / peak
			if drawdown > worst {
				worst = drawdown
			}
		}
	}

	return worst
}
