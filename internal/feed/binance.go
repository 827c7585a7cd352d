package feed

import (
	"context"
	"strconv"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/rxtech-lab/tempo-trading/internal/logger"
	"github.com/rxtech-lab/tempo-trading/internal/types"
	"github.com/rxtech-lab/tempo-trading/pkg/errors"
	"go.uber.org/zap"
)

// KlineService abstracts the Binance REST kline endpoint for testing.
type KlineService interface {
	Klines(ctx context.Context, symbol, interval string, startTime, endTime int64, limit int) ([]*binance.Kline, error)
}

// KlineStreamer abstracts the Binance websocket kline stream for testing.
type KlineStreamer interface {
	WsKlineServe(symbol, interval string, handler binance.WsKlineHandler, errHandler binance.ErrHandler) (doneC, stopC chan struct{}, err error)
}

// Binance is a Live feed backed by the Binance spot API. Historical windows
// are served from the REST kline endpoint; live bars arrive over the
// websocket kline stream and only finalized candles are delivered.
type Binance struct {
	klines   KlineService
	streamer KlineStreamer
	logger   *logger.Logger
}

type realKlineService struct {
	client *binance.Client
}

func (s *realKlineService) Klines(ctx context.Context, symbol, interval string, startTime, endTime int64, limit int) ([]*binance.Kline, error) {
	svc := s.client.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit)
	if startTime > 0 {
		svc = svc.StartTime(startTime)
	}

	if endTime > 0 {
		svc = svc.EndTime(endTime)
	}

	return svc.Do(ctx)
}

type realKlineStreamer struct{}

func (realKlineStreamer) WsKlineServe(symbol, interval string, handler binance.WsKlineHandler, errHandler binance.ErrHandler) (chan struct{}, chan struct{}, error) {
	return binance.WsKlineServe(symbol, interval, handler, errHandler)
}

// NewBinance creates a Binance feed. Keys may be empty for public market
// data. When useTestnet is true the client talks to the Binance testnet.
func NewBinance(apiKey, secretKey string, useTestnet bool, logger *logger.Logger) *Binance {
	if useTestnet {
		binance.UseTestnet = true
	}

	client := binance.NewClient(apiKey, secretKey)

	return &Binance{
		klines:   &realKlineService{client: client},
		streamer: realKlineStreamer{},
		logger:   logger,
	}
}

// NewBinanceWithServices creates a Binance feed with injected service
// implementations. Used by tests.
func NewBinanceWithServices(klines KlineService, streamer KlineStreamer, logger *logger.Logger) *Binance {
	return &Binance{
		klines:   klines,
		streamer: streamer,
		logger:   logger,
	}
}

func binanceInterval(timeframe types.Timeframe) (string, error) {
	switch timeframe {
	case types.TimeframeDay:
		return "1d", nil
	case types.TimeframeMinute:
		return "1m", nil
	default:
		return "", errors.Newf(errors.ErrCodeInvalidParameter, "unsupported timeframe for Binance: %s", timeframe)
	}
}

// GetBars implements Feed.
func (b *Binance) GetBars(symbol string, timeframe types.Timeframe, w Window) ([]types.Bar, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	interval, err := binanceInterval(timeframe)
	if err != nil {
		return nil, err
	}

	var startTime, endTime int64

	limit := w.Length

	if !w.AsOf.IsZero() {
		endTime = w.AsOf.UnixMilli()
	}

	if w.Days > 0 {
		startTime = w.AsOf.AddDate(0, 0, -w.Days).UnixMilli()
		limit = 1000
	}

	klines, err := b.klines.Klines(context.Background(), symbol, interval, startTime, endTime, limit)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeDataUnavailable, err, "failed to fetch klines for %s", symbol)
	}

	if len(klines) == 0 {
		return nil, errors.Newf(errors.ErrCodeNoDataFound, "no %s bars for symbol %s in window", timeframe, symbol)
	}

	bars := make([]types.Bar, 0, len(klines))
	for _, k := range klines {
		bars = append(bars, klineToBar(symbol, timeframe, k))
	}

	return bars, nil
}

func klineToBar(symbol string, timeframe types.Timeframe, k *binance.Kline) types.Bar {
	open, _ := strconv.ParseFloat(k.Open, 64)
	high, _ := strconv.ParseFloat(k.High, 64)
	low, _ := strconv.ParseFloat(k.Low, 64)
	closePrice, _ := strconv.ParseFloat(k.Close, 64)
	volume, _ := strconv.ParseFloat(k.Volume, 64)

	return types.Bar{
		Symbol:    symbol,
		Time:      time.UnixMilli(k.OpenTime),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    volume,
		Timeframe: timeframe,
	}
}

// SubscribeLive implements Live. Only finalized candles are delivered; the
// in-progress kline updates Binance pushes every couple of seconds are
// dropped.
func (b *Binance) SubscribeLive(ctx context.Context, symbol string) (<-chan types.Bar, error) {
	out := make(chan types.Bar, 64)

	handler := func(event *binance.WsKlineEvent) {
		if event == nil || !event.Kline.IsFinal {
			return
		}

		open, _ := strconv.ParseFloat(event.Kline.Open, 64)
		high, _ := strconv.ParseFloat(event.Kline.High, 64)
		low, _ := strconv.ParseFloat(event.Kline.Low, 64)
		closePrice, _ := strconv.ParseFloat(event.Kline.Close, 64)
		volume, _ := strconv.ParseFloat(event.Kline.Volume, 64)

		bar := types.Bar{
			Symbol:    event.Symbol,
			Time:      time.UnixMilli(event.Kline.StartTime),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    volume,
			Timeframe: types.TimeframeMinute,
		}

		select {
		case out <- bar:
		case <-ctx.Done():
		}
	}

	errHandler := func(err error) {
		b.logger.Error("binance websocket error", zap.String("symbol", symbol), zap.Error(err))
	}

	doneC, stopC, err := b.streamer.WsKlineServe(symbol, "1m", handler, errHandler)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeSubscribeFailed, err, "failed to start websocket for %s", symbol)
	}

	go func() {
		defer close(out)

		select {
		case <-ctx.Done():
			close(stopC)
			<-doneC
		case <-doneC:
		}
	}()

	return out, nil
}
