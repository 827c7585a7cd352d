// Package feed defines the data-feed collaborator interfaces and the
// implementations shipped with the engine. The core treats feeds as
// read-only: strategies pull windows of bars, the manager enumerates the
// historical horizon, and live mode optionally subscribes to a bar stream.
package feed

import (
	"context"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/tempo-trading/internal/types"
	"github.com/rxtech-lab/tempo-trading/pkg/errors"
)

// Window bounds a GetBars request. Exactly one of Length (a bar count) or
// Days (a calendar day count) must be positive. AsOf anchors the window; the
// zero time means "latest available".
type Window struct {
	Length int
	Days   int
	AsOf   time.Time
}

// LastN requests the n most recent bars at or before asOf.
func LastN(n int, asOf time.Time) Window {
	return Window{Length: n, Days: 0, AsOf: asOf}
}

// LastDays requests all bars within the d calendar days ending at asOf.
func LastDays(d int, asOf time.Time) Window {
	return Window{Length: 0, Days: d, AsOf: asOf}
}

// Validate rejects ambiguous or empty windows.
func (w Window) Validate() error {
	if (w.Length > 0) == (w.Days > 0) {
		return errors.New(errors.ErrCodeInvalidWindow, "window needs exactly one of a bar count or a day count")
	}

	return nil
}

// Feed supplies bounded windows of historical bars.
type Feed interface {
	// GetBars returns the bars for symbol/timeframe selected by the window,
	// in ascending time order. An unknown symbol or empty result yields a
	// data error, never a nil-and-nil pair.
	GetBars(symbol string, timeframe types.Timeframe, w Window) ([]types.Bar, error)
}

// Historical is a feed with a bounded horizon that can be replayed in order.
// Backtests require this capability of the manager's default feed.
type Historical interface {
	Feed

	// ReadAll yields every bar within the optional bounds, ordered by time
	// then symbol. Iteration stops when yield returns false.
	ReadAll(start optional.Option[time.Time], end optional.Option[time.Time]) func(yield func(types.Bar, error) bool)

	// Count returns the number of bars ReadAll would yield.
	Count(start optional.Option[time.Time], end optional.Option[time.Time]) (int, error)

	// LastBar returns the most recent bar for a symbol.
	LastBar(symbol string) (types.Bar, error)

	// Close releases feed resources.
	Close() error
}

// Live is a feed that can push a live-updating tail of bars.
type Live interface {
	Feed

	// SubscribeLive streams bars for a symbol until the context is cancelled.
	// The returned channel is closed on cancellation or stream end.
	SubscribeLive(ctx context.Context, symbol string) (<-chan types.Bar, error)
}
