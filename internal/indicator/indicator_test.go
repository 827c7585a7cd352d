package indicator

import (
	"testing"
	"time"

	"github.com/rxtech-lab/tempo-trading/internal/types"
	"github.com/rxtech-lab/tempo-trading/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type IndicatorTestSuite struct {
	suite.Suite
	talib Indicators
}

func TestIndicatorSuite(t *testing.T) {
	suite.Run(t, new(IndicatorTestSuite))
}

func (suite *IndicatorTestSuite) SetupTest() {
	suite.talib = NewTALib()
}

func barsFromCloses(values ...float64) []types.Bar {
	bars := make([]types.Bar, 0, len(values))
	for i, v := range values {
		bars = append(bars, types.Bar{
			Symbol:    "AAPL",
			Time:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			Open:      v,
			High:      v + 1,
			Low:       v - 1,
			Close:     v,
			Volume:    1000,
			Timeframe: types.TimeframeDay,
		})
	}

	return bars
}

func (suite *IndicatorTestSuite) TestSMA() {
	bars := barsFromCloses(1, 2, 3, 4, 5)

	value, err := suite.talib.SMA(bars, 3)
	suite.Require().NoError(err)
	suite.InDelta(4.0, value, 1e-9)
}

func (suite *IndicatorTestSuite) TestSMAExactWindow() {
	bars := barsFromCloses(10, 20, 30)

	value, err := suite.talib.SMA(bars, 3)
	suite.Require().NoError(err)
	suite.InDelta(20.0, value, 1e-9)
}

func (suite *IndicatorTestSuite) TestSMAInsufficientData() {
	bars := barsFromCloses(1, 2)

	_, err := suite.talib.SMA(bars, 3)
	suite.Require().Error(err)
	suite.True(errors.IsInsufficientDataError(err))

	var insufficientErr *errors.InsufficientDataError
	suite.Require().ErrorAs(err, &insufficientErr)
	suite.Equal(3, insufficientErr.Required)
	suite.Equal(2, insufficientErr.Actual)
	suite.Equal("AAPL", insufficientErr.Symbol)
}

func (suite *IndicatorTestSuite) TestInvalidPeriod() {
	bars := barsFromCloses(1, 2, 3)

	_, err := suite.talib.SMA(bars, 0)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidPeriod))
}

func (suite *IndicatorTestSuite) TestEMAConvergesTowardRecent() {
	rising := barsFromCloses(1, 2, 3, 4, 5, 6, 7, 8, 9, 10)

	ema, err := suite.talib.EMA(rising, 5)
	suite.Require().NoError(err)

	sma, err := suite.talib.SMA(rising, 5)
	suite.Require().NoError(err)

	// On a rising series EMA sits above SMA.
	suite.Greater(ema, sma)
}

func (suite *IndicatorTestSuite) TestRSIExtremes() {
	rising := barsFromCloses(1, 2, 3, 4, 5, 6, 7, 8)

	value, err := suite.talib.RSI(rising, 5)
	suite.Require().NoError(err)
	suite.InDelta(100.0, value, 1e-6)

	falling := barsFromCloses(8, 7, 6, 5, 4, 3, 2, 1)

	value, err = suite.talib.RSI(falling, 5)
	suite.Require().NoError(err)
	suite.InDelta(0.0, value, 1e-6)
}

func (suite *IndicatorTestSuite) TestRSINeedsSeedBar() {
	bars := barsFromCloses(1, 2, 3, 4, 5)

	_, err := suite.talib.RSI(bars, 5)
	suite.Require().Error(err)
	suite.True(errors.IsInsufficientDataError(err))
}

func (suite *IndicatorTestSuite) TestATRConstantRange() {
	// Every bar has a high-low range of 2 and no gaps, so ATR settles at 2.
	bars := barsFromCloses(10, 10, 10, 10, 10, 10)

	value, err := suite.talib.ATR(bars, 3)
	suite.Require().NoError(err)
	suite.InDelta(2.0, value, 1e-9)
}
