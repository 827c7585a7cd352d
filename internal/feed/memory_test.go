package feed

import (
	"context"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/tempo-trading/internal/types"
	"github.com/rxtech-lab/tempo-trading/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type MemoryFeedTestSuite struct {
	suite.Suite
	feed *Memory
}

func TestMemoryFeedSuite(t *testing.T) {
	suite.Run(t, new(MemoryFeedTestSuite))
}

func (suite *MemoryFeedTestSuite) SetupTest() {
	suite.feed = NewMemory()
}

func dailyBar(symbol string, day int, close float64) types.Bar {
	t := time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC)

	return types.Bar{
		Symbol:    symbol,
		Time:      t,
		Open:      close - 1,
		High:      close + 1,
		Low:       close - 2,
		Close:     close,
		Volume:    1000,
		Timeframe: types.TimeframeDay,
	}
}

func (suite *MemoryFeedTestSuite) TestGetBarsLastN() {
	for day := 1; day <= 10; day++ {
		suite.feed.Push(dailyBar("AAPL", day, float64(100+day)))
	}

	asOf := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)

	bars, err := suite.feed.GetBars("AAPL", types.TimeframeDay, LastN(3, asOf))
	suite.Require().NoError(err)
	suite.Require().Len(bars, 3)
	suite.Equal(106.0, bars[0].Close)
	suite.Equal(107.0, bars[1].Close)
	suite.Equal(108.0, bars[2].Close)
}

func (suite *MemoryFeedTestSuite) TestGetBarsLastDays() {
	for day := 1; day <= 10; day++ {
		suite.feed.Push(dailyBar("AAPL", day, float64(100+day)))
	}

	asOf := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	bars, err := suite.feed.GetBars("AAPL", types.TimeframeDay, LastDays(4, asOf))
	suite.Require().NoError(err)
	// Days window is (asOf-4d, asOf].
	suite.Require().Len(bars, 4)
	suite.Equal(107.0, bars[0].Close)
	suite.Equal(110.0, bars[3].Close)
}

func (suite *MemoryFeedTestSuite) TestGetBarsUnknownSymbol() {
	suite.feed.Push(dailyBar("AAPL", 1, 100))

	_, err := suite.feed.GetBars("MSFT", types.TimeframeDay, LastN(1, time.Time{}))
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeNoDataFound))
}

func (suite *MemoryFeedTestSuite) TestGetBarsInvalidWindow() {
	suite.feed.Push(dailyBar("AAPL", 1, 100))

	_, err := suite.feed.GetBars("AAPL", types.TimeframeDay, Window{Length: 2, Days: 3, AsOf: time.Time{}})
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidWindow))
}

func (suite *MemoryFeedTestSuite) TestGetBarsFiltersTimeframe() {
	suite.feed.Push(dailyBar("AAPL", 1, 100))

	minuteBar := dailyBar("AAPL", 2, 101)
	minuteBar.Timeframe = types.TimeframeMinute
	suite.feed.Push(minuteBar)

	bars, err := suite.feed.GetBars("AAPL", types.TimeframeDay, LastN(10, time.Time{}.AddDate(2100, 0, 0)))
	suite.Require().NoError(err)
	suite.Require().Len(bars, 1)
	suite.Equal(types.TimeframeDay, bars[0].Timeframe)
}

func (suite *MemoryFeedTestSuite) TestReadAllOrderedAcrossOutOfOrderPush() {
	suite.feed.Push(dailyBar("AAPL", 3, 103))
	suite.feed.Push(dailyBar("AAPL", 1, 101))
	suite.feed.Push(dailyBar("AAPL", 2, 102))

	var closes []float64

	for bar, err := range suite.feed.ReadAll(optional.None[time.Time](), optional.None[time.Time]()) {
		suite.Require().NoError(err)

		closes = append(closes, bar.Close)
	}

	suite.Equal([]float64{101, 102, 103}, closes)
}

func (suite *MemoryFeedTestSuite) TestReadAllBounds() {
	for day := 1; day <= 5; day++ {
		suite.feed.Push(dailyBar("AAPL", day, float64(100+day)))
	}

	start := optional.Some(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	end := optional.Some(time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC))

	count, err := suite.feed.Count(start, end)
	suite.Require().NoError(err)
	suite.Equal(3, count)
}

func (suite *MemoryFeedTestSuite) TestLastBar() {
	suite.feed.Push(dailyBar("AAPL", 1, 101))
	suite.feed.Push(dailyBar("AAPL", 5, 105))
	suite.feed.Push(dailyBar("AAPL", 3, 103))

	bar, err := suite.feed.LastBar("AAPL")
	suite.Require().NoError(err)
	suite.Equal(105.0, bar.Close)

	_, err = suite.feed.LastBar("MSFT")
	suite.Require().Error(err)
}

func (suite *MemoryFeedTestSuite) TestSubscribeLiveDelivery() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := suite.feed.SubscribeLive(ctx, "AAPL")
	suite.Require().NoError(err)

	pushed := dailyBar("AAPL", 1, 101)
	suite.feed.Push(pushed)
	suite.feed.Push(dailyBar("MSFT", 1, 200)) // different symbol, not delivered

	select {
	case bar := <-ch:
		suite.Equal(pushed, bar)
	case <-time.After(time.Second):
		suite.Fail("timed out waiting for bar")
	}

	select {
	case bar, ok := <-ch:
		suite.Require().False(ok, "unexpected bar %+v", bar)
	default:
	}
}

func (suite *MemoryFeedTestSuite) TestSubscribeLiveCancelClosesChannel() {
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := suite.feed.SubscribeLive(ctx, "AAPL")
	suite.Require().NoError(err)

	cancel()

	select {
	case _, ok := <-ch:
		suite.False(ok)
	case <-time.After(time.Second):
		suite.Fail("channel not closed after cancel")
	}
}

func (suite *MemoryFeedTestSuite) TestSubscribeLiveAfterClose() {
	suite.Require().NoError(suite.feed.Close())

	_, err := suite.feed.SubscribeLive(context.Background(), "AAPL")
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeFeedClosed))
}
