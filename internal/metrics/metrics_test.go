package metrics

import (
	"testing"
	"time"

	"github.com/rxtech-lab/tempo-trading/internal/types"
	"github.com/stretchr/testify/suite"
)

type MetricsTestSuite struct {
	suite.Suite
}

func TestMetricsSuite(t *testing.T) {
	suite.Run(t, new(MetricsTestSuite))
}

func valuationSeries(values ...float64) []types.Valuation {
	series := make([]types.Valuation, 0, len(values))
	for i, v := range values {
		series = append(series, types.Valuation{
			Time:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			Value: v,
			Cash:  v,
		})
	}

	return series
}

func (suite *MetricsTestSuite) TestEmptyRunIsAllUndefined() {
	stats := Compute(nil, nil, nil, DefaultConfig())

	suite.True(types.IsUndefined(stats.TotalReturn))
	suite.True(types.IsUndefined(stats.CAGR))
	suite.True(types.IsUndefined(stats.Sharpe))
	suite.True(types.IsUndefined(stats.Sortino))
	suite.True(types.IsUndefined(stats.Alpha))
	suite.True(types.IsUndefined(stats.Beta))
	suite.True(types.IsUndefined(stats.MaxDrawdown))
	suite.True(types.IsUndefined(stats.WinRate))
	suite.Zero(stats.NumberOfFills)
	suite.Zero(stats.ValuationSamples)
}

func (suite *MetricsTestSuite) TestSingleSampleHasNoReturns() {
	stats := Compute(valuationSeries(10000), nil, nil, DefaultConfig())

	suite.True(types.IsUndefined(stats.TotalReturn))
	suite.Equal(10000.0, stats.StartValue)
	suite.Equal(10000.0, stats.EndValue)
	suite.Equal(1, stats.ValuationSamples)
}

func (suite *MetricsTestSuite) TestTotalReturn() {
	stats := Compute(valuationSeries(10000, 10500, 11000), nil, nil, DefaultConfig())

	suite.InDelta(0.10, stats.TotalReturn, 1e-9)
	suite.Equal(10000.0, stats.StartValue)
	suite.Equal(11000.0, stats.EndValue)
}

func (suite *MetricsTestSuite) TestFlatSeriesHasUndefinedSharpe() {
	stats := Compute(valuationSeries(10000, 10000, 10000, 10000), nil, nil, DefaultConfig())

	// Zero total return is a defined value; zero variance is not.
	suite.InDelta(0.0, stats.TotalReturn, 1e-12)
	suite.True(types.IsUndefined(stats.Sharpe))
	suite.True(types.IsUndefined(stats.Sortino))
	suite.InDelta(0.0, stats.MaxDrawdown, 1e-12)
}

func (suite *MetricsTestSuite) TestCAGRDoublingInOneYear() {
	series := []types.Valuation{
		{Time: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), Value: 10000, Cash: 10000},
		{Time: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(daysPerYear * 24 * float64(time.Hour))), Value: 20000, Cash: 20000},
	}

	stats := Compute(series, nil, nil, DefaultConfig())
	suite.InDelta(1.0, stats.CAGR, 1e-6)
}

func (suite *MetricsTestSuite) TestMaxDrawdown() {
	stats := Compute(valuationSeries(10000, 12000, 9000, 11000, 8400), nil, nil, DefaultConfig())

	// Peak 12000, trough 8400.
	suite.InDelta(0.30, stats.MaxDrawdown, 1e-9)
}

func (suite *MetricsTestSuite) TestWinStatsFromClosingFills() {
	fills := []types.Fill{
		{Symbol: "AAPL", Quantity: 10, Price: 100, Commission: 1},
		{Symbol: "AAPL", Quantity: -10, Price: 110, Commission: 1, Closing: true, RealizedPnL: 100},
		{Symbol: "MSFT", Quantity: -5, Price: 90, Commission: 1, Closing: true, RealizedPnL: -50},
		{Symbol: "GOOG", Quantity: -5, Price: 95, Commission: 1, Closing: true, RealizedPnL: 200},
	}

	stats := Compute(valuationSeries(10000, 10250), fills, nil, DefaultConfig())

	suite.Equal(4, stats.NumberOfFills)
	suite.Equal(3, stats.NumberOfCloses)
	suite.InDelta(2.0/3.0, stats.WinRate, 1e-9)
	suite.InDelta(150.0, stats.AverageWin, 1e-9)
	suite.InDelta(-50.0, stats.AverageLoss, 1e-9)
	suite.InDelta(250.0, stats.RealizedPnL, 1e-9)
	suite.InDelta(4.0, stats.TotalCommission, 1e-9)
}

func (suite *MetricsTestSuite) TestNoClosesLeavesWinStatsUndefined() {
	fills := []types.Fill{
		{Symbol: "AAPL", Quantity: 10, Price: 100},
	}

	stats := Compute(valuationSeries(10000, 10100), fills, nil, DefaultConfig())

	suite.True(types.IsUndefined(stats.WinRate))
	suite.True(types.IsUndefined(stats.AverageWin))
	suite.True(types.IsUndefined(stats.AverageLoss))
	suite.Equal(1, stats.NumberOfFills)
	suite.Zero(stats.NumberOfCloses)
}

func (suite *MetricsTestSuite) TestBetaAgainstIdenticalBenchmarkIsOne() {
	values := []float64{10000, 10200, 10100, 10400, 10300}

	stats := Compute(valuationSeries(values...), nil, values, DefaultConfig())

	suite.True(stats.BenchmarkAvailable)
	suite.InDelta(1.0, stats.Beta, 1e-9)
	suite.InDelta(0.0, stats.Alpha, 1e-9)
}

func (suite *MetricsTestSuite) TestLeveredBenchmarkBeta() {
	// Strategy returns are exactly twice the benchmark returns.
	bench := []float64{100, 102, 101, 103}
	values := make([]float64, len(bench))
	values[0] = 100

	for i := 1; i < len(bench); i++ {
		r := bench[i]/bench[i-1] - 1
		values[i] = values[i-1] * (1 + 2*r)
	}

	stats := Compute(valuationSeries(values...), nil, bench, DefaultConfig())
	suite.InDelta(2.0, stats.Beta, 1e-9)
}

func (suite *MetricsTestSuite) TestMissingBenchmarkLeavesAlphaBetaUndefined() {
	stats := Compute(valuationSeries(10000, 10100, 10200), nil, nil, DefaultConfig())

	suite.False(stats.BenchmarkAvailable)
	suite.True(types.IsUndefined(stats.Alpha))
	suite.True(types.IsUndefined(stats.Beta))
}

func (suite *MetricsTestSuite) TestMisalignedBenchmarkIgnored() {
	stats := Compute(valuationSeries(10000, 10100, 10200), nil, []float64{100, 101}, DefaultConfig())

	suite.False(stats.BenchmarkAvailable)
	suite.True(types.IsUndefined(stats.Beta))
}

func (suite *MetricsTestSuite) TestSortinoDownsideTargetWidensDownside() {
	series := valuationSeries(10000, 10100, 10050, 10200)

	base := Compute(series, nil, nil, DefaultConfig())

	cfg := DefaultConfig()
	cfg.DownsideTarget = 2.0
	raised := Compute(series, nil, nil, cfg)

	// A higher floor counts more dispersion as downside, shrinking the
	// ratio; Sharpe is untouched by the target.
	suite.False(types.IsUndefined(base.Sortino))
	suite.False(types.IsUndefined(raised.Sortino))
	suite.Less(raised.Sortino, base.Sortino)
	suite.Equal(base.Sharpe, raised.Sharpe)
}

func (suite *MetricsTestSuite) TestSortinoTargetIndependentOfRiskFreeRate() {
	series := valuationSeries(10000, 10100, 10050, 10200)

	cfg := DefaultConfig()
	cfg.RiskFreeRate = 0.05
	stats := Compute(series, nil, nil, cfg)

	base := Compute(series, nil, nil, DefaultConfig())

	// The risk-free rate shifts the numerator but leaves the downside
	// deviation alone, so the two denominators agree.
	suite.False(types.IsUndefined(stats.Sortino))
	suite.Less(stats.Sortino, base.Sortino)
}

func (suite *MetricsTestSuite) TestPositiveRunSharpeIsPositive() {
	stats := Compute(valuationSeries(10000, 10100, 10150, 10300, 10280, 10400), nil, nil, DefaultConfig())

	suite.False(types.IsUndefined(stats.Sharpe))
	suite.Greater(stats.Sharpe, 0.0)
	suite.False(types.IsUndefined(stats.Sortino))
	suite.Greater(stats.Sortino, 0.0)
}
