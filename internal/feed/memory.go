package feed

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/tempo-trading/internal/types"
	"github.com/rxtech-lab/tempo-trading/pkg/errors"
)

// Memory is an in-process feed. It backs tests and examples, and doubles as
// a paper-trading feed when bars arrive from an external source via Push.
// It implements both Historical and Live.
type Memory struct {
	mu       sync.RWMutex
	bars     []types.Bar // ordered by time, then symbol
	bySymbol map[string][]types.Bar
	subs     map[string][]chan types.Bar
	closed   bool
}

// NewMemory creates an empty in-memory feed.
func NewMemory() *Memory {
	return &Memory{
		bars:     nil,
		bySymbol: make(map[string][]types.Bar),
		subs:     make(map[string][]chan types.Bar),
		closed:   false,
	}
}

// Push appends bars and delivers them to live subscribers. Bars are kept
// sorted by time so out-of-order pushes are tolerated.
func (m *Memory) Push(bars ...types.Bar) {
	m.mu.Lock()

	for _, bar := range bars {
		m.bars = insertSorted(m.bars, bar)
		m.bySymbol[bar.Symbol] = insertSorted(m.bySymbol[bar.Symbol], bar)
	}

	var deliveries []struct {
		ch  chan types.Bar
		bar types.Bar
	}

	for _, bar := range bars {
		for _, ch := range m.subs[bar.Symbol] {
			deliveries = append(deliveries, struct {
				ch  chan types.Bar
				bar types.Bar
			}{ch, bar})
		}
	}
	m.mu.Unlock()

	for _, d := range deliveries {
		select {
		case d.ch <- d.bar:
		default: // slow subscriber drops the bar rather than blocking Push
		}
	}
}

func insertSorted(bars []types.Bar, bar types.Bar) []types.Bar {
	i := sort.Search(len(bars), func(i int) bool { return bars[i].Time.After(bar.Time) })
	bars = append(bars, types.Bar{})
	copy(bars[i+1:], bars[i:])
	bars[i] = bar

	return bars
}

// GetBars implements Feed.
func (m *Memory) GetBars(symbol string, timeframe types.Timeframe, w Window) ([]types.Bar, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	series, ok := m.bySymbol[symbol]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeNoDataFound, "no bars for symbol %s", symbol)
	}

	var eligible []types.Bar

	for _, bar := range series {
		if bar.Timeframe != timeframe {
			continue
		}

		if !w.AsOf.IsZero() && bar.Time.After(w.AsOf) {
			continue
		}

		if w.Days > 0 {
			cutoff := w.AsOf.AddDate(0, 0, -w.Days)
			if !bar.Time.After(cutoff) {
				continue
			}
		}

		eligible = append(eligible, bar)
	}

	if w.Length > 0 && len(eligible) > w.Length {
		eligible = eligible[len(eligible)-w.Length:]
	}

	if len(eligible) == 0 {
		return nil, errors.Newf(errors.ErrCodeNoDataFound, "no %s bars for symbol %s in window", timeframe, symbol)
	}

	out := make([]types.Bar, len(eligible))
	copy(out, eligible)

	return out, nil
}

// ReadAll implements Historical.
func (m *Memory) ReadAll(start optional.Option[time.Time], end optional.Option[time.Time]) func(yield func(types.Bar, error) bool) {
	return func(yield func(types.Bar, error) bool) {
		m.mu.RLock()
		snapshot := make([]types.Bar, len(m.bars))
		copy(snapshot, m.bars)
		m.mu.RUnlock()

		for _, bar := range snapshot {
			if start.IsSome() && bar.Time.Before(start.Unwrap()) {
				continue
			}

			if end.IsSome() && bar.Time.After(end.Unwrap()) {
				continue
			}

			if !yield(bar, nil) {
				return
			}
		}
	}
}

// Count implements Historical.
func (m *Memory) Count(start optional.Option[time.Time], end optional.Option[time.Time]) (int, error) {
	count := 0
	for range m.ReadAll(start, end) {
		count++
	}

	return count, nil
}

// LastBar implements Historical.
func (m *Memory) LastBar(symbol string) (types.Bar, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	series := m.bySymbol[symbol]
	if len(series) == 0 {
		return types.Bar{}, errors.Newf(errors.ErrCodeNoDataFound, "no bars for symbol %s", symbol)
	}

	return series[len(series)-1], nil
}

// Close implements Historical.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}

	m.closed = true

	for _, channels := range m.subs {
		for _, ch := range channels {
			close(ch)
		}
	}

	m.subs = make(map[string][]chan types.Bar)

	return nil
}

// SubscribeLive implements Live.
func (m *Memory) SubscribeLive(ctx context.Context, symbol string) (<-chan types.Bar, error) {
	m.mu.Lock()

	if m.closed {
		m.mu.Unlock()

		return nil, errors.New(errors.ErrCodeFeedClosed, "feed is closed")
	}

	ch := make(chan types.Bar, 64)
	m.subs[symbol] = append(m.subs[symbol], ch)
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.unsubscribe(symbol, ch)
	}()

	return ch, nil
}

func (m *Memory) unsubscribe(symbol string, ch chan types.Bar) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	channels := m.subs[symbol]
	for i, c := range channels {
		if c == ch {
			m.subs[symbol] = append(channels[:i], channels[i+1:]...)
			close(ch)

			return
		}
	}
}
