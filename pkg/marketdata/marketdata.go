// Package marketdata downloads historical bars from external providers and
// stores them as Parquet files that the backtest feed can ingest directly.
package marketdata

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/tempo-trading/internal/feed"
	"github.com/rxtech-lab/tempo-trading/internal/logger"
	"github.com/rxtech-lab/tempo-trading/internal/types"
	"github.com/rxtech-lab/tempo-trading/pkg/errors"
)

// ProviderType names a market data provider.
type ProviderType string

const (
	ProviderPolygon ProviderType = "polygon"
	ProviderBinance ProviderType = "binance"
)

// OnProgress reports download progress: done and total are in provider
// units (days for polygon, kline pages for binance).
type OnProgress func(done, total int)

// BarSink receives each fetched page of bars in chronological order.
type BarSink func(bars []types.Bar) error

// Provider fetches historical bars from one external source.
type Provider interface {
	// Name returns the provider's registry name.
	Name() string
	// Fetch streams bars for the symbol over [start, end] into sink,
	// reporting progress when onProgress is non-nil.
	Fetch(ctx context.Context, symbol string, start, end time.Time, timeframe types.Timeframe, sink BarSink, onProgress OnProgress) error
}

// ClientConfig holds the configuration for the market data client.
type ClientConfig struct {
	ProviderType  ProviderType `validate:"required,oneof=polygon binance"`
	DataPath      string       `validate:"required"`
	PolygonApiKey string       `validate:"required_if=ProviderType polygon"`
}

// DownloadParams holds the parameters for one download request.
type DownloadParams struct {
	Symbol    string          `validate:"required"`
	StartDate time.Time       `validate:"required"`
	EndDate   time.Time       `validate:"required,gtfield=StartDate"`
	Timeframe types.Timeframe `validate:"required,oneof=day minute"`
}

// Client downloads bars from a provider and writes them to Parquet under
// the configured data path.
type Client struct {
	provider   Provider
	config     ClientConfig
	validate   *validator.Validate
	logger     *logger.Logger
	onProgress OnProgress
}

// NewClient creates a market data client with the given configuration.
func NewClient(config ClientConfig, log *logger.Logger, onProgress OnProgress) (*Client, error) {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidParameter, "invalid client configuration", err)
	}

	var provider Provider

	var err error

	switch config.ProviderType {
	case ProviderPolygon:
		provider, err = NewPolygonProvider(config.PolygonApiKey)
	case ProviderBinance:
		provider, err = NewBinanceProvider()
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "unsupported provider type: %s", config.ProviderType)
	}

	if err != nil {
		return nil, err
	}

	return NewClientWithProvider(config, provider, log, onProgress)
}

// NewClientWithProvider creates a client over an explicit provider. Tests
// inject mocks here.
func NewClientWithProvider(config ClientConfig, provider Provider, log *logger.Logger, onProgress OnProgress) (*Client, error) {
	if provider == nil {
		return nil, errors.New(errors.ErrCodeInvalidParameter, "provider must not be nil")
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Client{
		provider:   provider,
		config:     config,
		validate:   validator.New(),
		logger:     log,
		onProgress: onProgress,
	}, nil
}

// outputFileName is SYMBOL_START_END_TIMEFRAME.parquet.
func (c *Client) outputFileName(params DownloadParams) string {
	return fmt.Sprintf("%s_%s_%s_%s.parquet",
		params.Symbol,
		params.StartDate.Format("2006-01-02"),
		params.EndDate.Format("2006-01-02"),
		params.Timeframe)
}

// Download fetches bars per the parameters and writes one Parquet file,
// returning its path. The context cancels an in-flight download.
func (c *Client) Download(ctx context.Context, params DownloadParams) (string, error) {
	if err := c.validate.Struct(params); err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidParameter, "invalid download parameters", err)
	}

	if err := os.MkdirAll(c.config.DataPath, 0o755); err != nil {
		return "", errors.Wrapf(errors.ErrCodeStoreFailed, err, "failed to create data path %s", c.config.DataPath)
	}

	// Bars accumulate in a transient DuckDB so the Parquet export is a
	// single sorted COPY.
	staging, err := feed.NewDuckDB(":memory:", c.logger)
	if err != nil {
		return "", err
	}

	defer staging.Close()

	sink := func(bars []types.Bar) error {
		if ctx.Err() != nil {
			return errors.Wrap(errors.ErrCodeEngineStopped, "download cancelled", ctx.Err())
		}

		return staging.Insert(bars...)
	}

	if err := c.provider.Fetch(ctx, params.Symbol, params.StartDate, params.EndDate, params.Timeframe, sink, c.onProgress); err != nil {
		return "", err
	}

	count, err := staging.Count(optional.None[time.Time](), optional.None[time.Time]())
	if err != nil {
		return "", err
	}

	if count == 0 {
		return "", errors.Newf(errors.ErrCodeNoDataFound, "provider %s returned no bars for %s", c.provider.Name(), params.Symbol)
	}

	outputPath := filepath.Join(c.config.DataPath, c.outputFileName(params))
	if err := staging.WriteParquet(outputPath); err != nil {
		return "", err
	}

	return outputPath, nil
}
