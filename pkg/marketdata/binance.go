package marketdata

import (
	"context"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/rxtech-lab/tempo-trading/internal/types"
	"github.com/rxtech-lab/tempo-trading/pkg/errors"
)

// binancePageLimit is the exchange's maximum klines per request.
const binancePageLimit = 1000

// BinanceProvider fetches crypto klines from the Binance public market
// data API, which needs no credentials.
type BinanceProvider struct {
	client *binance.Client
}

// NewBinanceProvider creates a Binance provider.
func NewBinanceProvider() (*BinanceProvider, error) {
	return &BinanceProvider{client: binance.NewClient("", "")}, nil
}

func (p *BinanceProvider) Name() string {
	return string(ProviderBinance)
}

func binanceInterval(timeframe types.Timeframe) (string, error) {
	switch timeframe {
	case types.TimeframeDay:
		return "1d", nil
	case types.TimeframeMinute:
		return "1m", nil
	default:
		return "", errors.Newf(errors.ErrCodeInvalidParameter, "unsupported timeframe: %s", timeframe)
	}
}

// Fetch pages through the horizon at the exchange's kline limit, advancing
// the cursor past each page's last open time.
func (p *BinanceProvider) Fetch(ctx context.Context, symbol string, start, end time.Time, timeframe types.Timeframe, sink BarSink, onProgress OnProgress) error {
	interval, err := binanceInterval(timeframe)
	if err != nil {
		return err
	}

	barSpan := timeframe.Duration()
	totalPages := int(end.Sub(start)/(time.Duration(binancePageLimit)*barSpan)) + 1
	cursor := start
	page := 0

	for !cursor.After(end) {
		klines, err := p.client.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(cursor.UnixMilli()).
			EndTime(end.UnixMilli()).
			Limit(binancePageLimit).
			Do(ctx)
		if err != nil {
			return errors.Wrapf(errors.ErrCodeDataUnavailable, err, "binance klines failed for %s at %s", symbol, cursor.Format(time.RFC3339))
		}

		if len(klines) == 0 {
			break
		}

		bars := make([]types.Bar, 0, len(klines))
		for _, k := range klines {
			bars = append(bars, types.Bar{
				Symbol:    symbol,
				Time:      time.UnixMilli(k.OpenTime).UTC(),
				Open:      parsePrice(k.Open),
				High:      parsePrice(k.High),
				Low:       parsePrice(k.Low),
				Close:     parsePrice(k.Close),
				Volume:    parsePrice(k.Volume),
				Timeframe: timeframe,
			})
		}

		if err := sink(bars); err != nil {
			return err
		}

		page++

		if onProgress != nil {
			onProgress(page, totalPages)
		}

		cursor = time.UnixMilli(klines[len(klines)-1].OpenTime).Add(barSpan)
	}

	return nil
}

func parsePrice(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}

	return v
}
