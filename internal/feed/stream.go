package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/rxtech-lab/tempo-trading/internal/logger"
	"github.com/rxtech-lab/tempo-trading/internal/types"
	"github.com/rxtech-lab/tempo-trading/pkg/errors"
	"go.uber.org/zap"
)

// Stream is a Live feed that reads JSON-encoded bars from a websocket
// endpoint. One connection is opened per subscription, at
// <baseURL>/bars/<symbol>.
type Stream struct {
	baseURL string
	dialer  *websocket.Dialer
	logger  *logger.Logger
}

// NewStream creates a websocket bar feed. baseURL is the ws:// or wss://
// endpoint without a trailing slash.
func NewStream(baseURL string, logger *logger.Logger) *Stream {
	return &Stream{
		baseURL: baseURL,
		dialer:  websocket.DefaultDialer,
		logger:  logger,
	}
}

// GetBars implements Feed. A stream carries no history, so lookback
// windows cannot be served.
func (s *Stream) GetBars(symbol string, timeframe types.Timeframe, w Window) ([]types.Bar, error) {
	return nil, errors.New(errors.ErrCodeDataUnavailable, "websocket stream does not provide historical bars")
}

// SubscribeLive implements Live.
func (s *Stream) SubscribeLive(ctx context.Context, symbol string) (<-chan types.Bar, error) {
	url := fmt.Sprintf("%s/bars/%s", s.baseURL, symbol)

	conn, _, err := s.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeSubscribeFailed, err, "failed to dial %s", url)
	}

	out := make(chan types.Bar, 64)

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	go func() {
		defer close(out)
		defer conn.Close()

		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					s.logger.Error("websocket read failed", zap.String("symbol", symbol), zap.Error(err))
				}

				return
			}

			var bar types.Bar
			if err := json.Unmarshal(message, &bar); err != nil {
				s.logger.Warn("dropping malformed bar message", zap.String("symbol", symbol), zap.Error(err))

				continue
			}

			select {
			case out <- bar:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}
