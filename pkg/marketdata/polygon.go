package marketdata

import (
	"context"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/rxtech-lab/tempo-trading/internal/types"
	"github.com/rxtech-lab/tempo-trading/pkg/errors"
)

// PolygonProvider fetches US equity aggregates from Polygon.io.
type PolygonProvider struct {
	client *polygon.Client
}

// NewPolygonProvider creates a Polygon provider. The API key is required.
func NewPolygonProvider(apiKey string) (*PolygonProvider, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ErrCodeInvalidParameter, "polygon API key is required")
	}

	return &PolygonProvider{client: polygon.New(apiKey)}, nil
}

func (p *PolygonProvider) Name() string {
	return string(ProviderPolygon)
}

func polygonTimespan(timeframe types.Timeframe) (models.Timespan, error) {
	switch timeframe {
	case types.TimeframeDay:
		return models.Day, nil
	case types.TimeframeMinute:
		return models.Minute, nil
	default:
		return "", errors.Newf(errors.ErrCodeInvalidParameter, "unsupported timeframe: %s", timeframe)
	}
}

// Fetch pages through the horizon one day at a time, which keeps each
// aggregate request inside Polygon's result limits even for minute bars.
func (p *PolygonProvider) Fetch(ctx context.Context, symbol string, start, end time.Time, timeframe types.Timeframe, sink BarSink, onProgress OnProgress) error {
	timespan, err := polygonTimespan(timeframe)
	if err != nil {
		return err
	}

	totalDays := int(end.Sub(start).Hours()/24) + 1
	done := 0

	for date := start; !date.After(end); date = date.AddDate(0, 0, 1) {
		params := models.ListAggsParams{
			Ticker:     symbol,
			From:       models.Millis(date),
			To:         models.Millis(date.Add(24*time.Hour - time.Second)),
			Multiplier: 1,
			Timespan:   timespan,
		}

		iter := p.client.ListAggs(ctx, &params)

		var bars []types.Bar

		for iter.Next() {
			agg := iter.Item()
			bars = append(bars, types.Bar{
				Symbol:    symbol,
				Time:      time.Time(agg.Timestamp).UTC(),
				Open:      agg.Open,
				High:      agg.High,
				Low:       agg.Low,
				Close:     agg.Close,
				Volume:    agg.Volume,
				Timeframe: timeframe,
			})
		}

		if err := iter.Err(); err != nil {
			return errors.Wrapf(errors.ErrCodeDataUnavailable, err, "polygon aggregates failed for %s on %s", symbol, date.Format("2006-01-02"))
		}

		if len(bars) > 0 {
			if err := sink(bars); err != nil {
				return err
			}
		}

		done++

		if onProgress != nil {
			onProgress(done, totalDays)
		}
	}

	return nil
}
