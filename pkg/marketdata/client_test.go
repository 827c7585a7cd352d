package marketdata_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rxtech-lab/tempo-trading/internal/logger"
	"github.com/rxtech-lab/tempo-trading/internal/types"
	"github.com/rxtech-lab/tempo-trading/mocks"
	"github.com/rxtech-lab/tempo-trading/pkg/errors"
	"github.com/rxtech-lab/tempo-trading/pkg/marketdata"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

type ClientTestSuite struct {
	suite.Suite
	ctrl         *gomock.Controller
	mockProvider *mocks.MockProvider
	tempDir      string
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

func (suite *ClientTestSuite) SetupTest() {
	suite.ctrl = gomock.NewController(suite.T())
	suite.mockProvider = mocks.NewMockProvider(suite.ctrl)
	suite.tempDir = suite.T().TempDir()
}

func (suite *ClientTestSuite) TearDownTest() {
	suite.ctrl.Finish()
}

func (suite *ClientTestSuite) newClient() *marketdata.Client {
	client, err := marketdata.NewClientWithProvider(
		marketdata.ClientConfig{
			ProviderType: marketdata.ProviderBinance,
			DataPath:     suite.tempDir,
		},
		suite.mockProvider,
		logger.NewNopLogger(),
		nil,
	)
	suite.Require().NoError(err)

	return client
}

func (suite *ClientTestSuite) params() marketdata.DownloadParams {
	return marketdata.DownloadParams{
		Symbol:    "AAPL",
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
		Timeframe: types.TimeframeDay,
	}
}

func (suite *ClientTestSuite) TestDownloadWritesParquet() {
	suite.mockProvider.EXPECT().
		Fetch(gomock.Any(), "AAPL", gomock.Any(), gomock.Any(), types.TimeframeDay, gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, symbol string, start, end time.Time, timeframe types.Timeframe, sink marketdata.BarSink, onProgress marketdata.OnProgress) error {
			return sink([]types.Bar{
				{Symbol: symbol, Time: start, Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 1000, Timeframe: timeframe},
				{Symbol: symbol, Time: start.AddDate(0, 0, 1), Open: 100.5, High: 102, Low: 100, Close: 101.5, Volume: 1200, Timeframe: timeframe},
			})
		}).
		Times(1)

	path, err := suite.newClient().Download(context.Background(), suite.params())
	suite.Require().NoError(err)
	suite.Contains(path, "AAPL_2024-01-01_2024-01-03_day.parquet")

	info, err := os.Stat(path)
	suite.Require().NoError(err)
	suite.Positive(info.Size())
}

func (suite *ClientTestSuite) TestDownloadWithoutBarsFails() {
	suite.mockProvider.EXPECT().
		Fetch(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil).
		Times(1)
	suite.mockProvider.EXPECT().Name().Return("binance").AnyTimes()

	_, err := suite.newClient().Download(context.Background(), suite.params())
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeNoDataFound))
}

func (suite *ClientTestSuite) TestDownloadPropagatesProviderError() {
	suite.mockProvider.EXPECT().
		Fetch(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(errors.New(errors.ErrCodeDataUnavailable, "rate limited")).
		Times(1)

	_, err := suite.newClient().Download(context.Background(), suite.params())
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeDataUnavailable))
}

func (suite *ClientTestSuite) TestDownloadValidatesParams() {
	params := suite.params()
	params.EndDate = params.StartDate.AddDate(0, 0, -1)

	_, err := suite.newClient().Download(context.Background(), params)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
}

func (suite *ClientTestSuite) TestNewClientValidatesConfig() {
	_, err := marketdata.NewClient(marketdata.ClientConfig{
		ProviderType: marketdata.ProviderPolygon,
		DataPath:     suite.tempDir,
	}, logger.NewNopLogger(), nil)
	suite.Require().Error(err)
}

func (suite *ClientTestSuite) TestProviderRegistry() {
	providers := marketdata.GetSupportedProviders()
	suite.Len(providers, 2)

	info, err := marketdata.GetProviderInfo("polygon")
	suite.Require().NoError(err)
	suite.True(info.RequiresAuth)

	_, err = marketdata.GetProviderInfo("bloomberg")
	suite.Require().Error(err)
}
