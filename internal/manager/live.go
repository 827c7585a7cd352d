package manager

import (
	"context"
	"time"

	"github.com/rxtech-lab/tempo-trading/internal/clock"
	"github.com/rxtech-lab/tempo-trading/internal/feed"
	"github.com/rxtech-lab/tempo-trading/internal/types"
	"github.com/rxtech-lab/tempo-trading/pkg/errors"
	"go.uber.org/zap"
)

// RunOptions tune a wall-clock (paper or live) run.
type RunOptions struct {
	// Granularity is the wall-clock tick spacing. Defaults to one second.
	Granularity time.Duration
	// Symbols to subscribe for when the feed supports live streaming.
	// Streamed bars reach the execution layer between dispatches.
	Symbols []string
	// MarkEvery throttles valuation sampling: a mark-to-market sample is
	// taken every MarkEvery ticks. Defaults to every tick.
	MarkEvery int
}

// Run drives attached strategies from the wall clock until the context is
// cancelled. The same dispatch path as Backtest executes, so a strategy
// sees no difference beyond the clock's origin. The returned statistics
// reduce whatever history accumulated before cancellation.
func (m *Manager) Run(ctx context.Context, opts RunOptions) (types.StatsRecord, error) {
	if len(m.slots) == 0 {
		return types.StatsRecord{}, errors.New(errors.ErrCodeNoStrategies, "no strategies attached")
	}

	granularity := opts.Granularity
	if granularity <= 0 {
		granularity = time.Second
	}

	markEvery := opts.MarkEvery
	if markEvery <= 0 {
		markEvery = 1
	}

	if live, ok := m.feed.(feed.Live); ok && len(opts.Symbols) > 0 {
		for _, symbol := range opts.Symbols {
			bars, err := live.SubscribeLive(ctx, symbol)
			if err != nil {
				return types.StatsRecord{}, err
			}

			go m.pump(ctx, bars)
		}
	}

	driver := clock.NewWall(granularity)

	m.logger.Info("starting wall-clock run",
		zap.Duration("granularity", granularity),
		zap.Strings("symbols", opts.Symbols),
		zap.Int("strategies", len(m.slots)))

	var lastTick time.Time

	ticks := 0

	for {
		now, ok := driver.Next(ctx)
		if !ok {
			break
		}

		lastTick = now

		prices := m.drainQuotes()

		m.dispatch(now)

		ticks++
		if ticks%markEvery == 0 {
			m.portfolio.MarkToMarket(now, prices)
		}

		m.prune()
	}

	m.logger.Info("wall-clock run stopped", zap.Int("ticks", ticks))

	if lastTick.IsZero() {
		lastTick = time.Now()
	}

	return m.finish(lastTick, nil)
}

// pump forwards a live bar channel into the quote queue. A full queue
// drops the oldest update rather than blocking the feed.
func (m *Manager) pump(ctx context.Context, bars <-chan types.Bar) {
	for {
		select {
		case <-ctx.Done():
			return
		case bar, ok := <-bars:
			if !ok {
				return
			}

			select {
			case m.quotes <- bar:
			default:
				select {
				case <-m.quotes:
				default:
				}

				select {
				case m.quotes <- bar:
				default:
				}
			}
		}
	}
}

// drainQuotes applies all queued live bars to the execution layer and
// returns their closes. Runs on the dispatch loop, so the simulator never
// sees concurrent access.
func (m *Manager) drainQuotes() map[string]float64 {
	prices := make(map[string]float64)

	for {
		select {
		case bar := <-m.quotes:
			for symbol, price := range m.applyBars([]types.Bar{bar}) {
				prices[symbol] = price
			}
		default:
			return prices
		}
	}
}
