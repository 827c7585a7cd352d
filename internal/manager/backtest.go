package manager

import (
	"context"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/tempo-trading/internal/clock"
	"github.com/rxtech-lab/tempo-trading/internal/types"
	"github.com/rxtech-lab/tempo-trading/pkg/errors"
	"go.uber.org/zap"
)

// Bound is one end of a backtest horizon: an absolute time, a day count
// relative to the other end, or open (neither set, falling back to the
// feed's edge).
type Bound struct {
	at   optional.Option[time.Time]
	days optional.Option[int]
}

// At bounds the horizon at an absolute time.
func At(t time.Time) Bound {
	return Bound{at: optional.Some(t), days: optional.None[int]()}
}

// Days bounds the horizon a day count away from the other bound.
func Days(n int) Bound {
	return Bound{at: optional.None[time.Time](), days: optional.Some(n)}
}

// Open leaves the bound at the feed's edge.
func Open() Bound {
	return Bound{at: optional.None[time.Time](), days: optional.None[int]()}
}

func (b Bound) relative() bool { return b.days.IsSome() }

// resolveBounds turns the two bounds into absolute times. Relative bounds
// need an anchor: either the opposing bound is absolute, or the feed edge
// on that side serves as one. Two relative bounds are rejected.
func resolveBounds(start, end Bound, feedStart, feedEnd time.Time) (time.Time, time.Time, error) {
	if start.relative() && end.relative() {
		return time.Time{}, time.Time{}, errors.New(errors.ErrCodeInvalidTimeRange, "start and end cannot both be relative day counts")
	}

	from := feedStart
	if start.at.IsSome() {
		from = start.at.Unwrap()
	}

	to := feedEnd
	if end.at.IsSome() {
		to = end.at.Unwrap()
	}

	if start.relative() {
		from = to.AddDate(0, 0, -start.days.Unwrap())
	}

	if end.relative() {
		to = from.AddDate(0, 0, end.days.Unwrap())
	}

	if to.Before(from) {
		return time.Time{}, time.Time{}, errors.Newf(errors.ErrCodeInvalidTimeRange, "horizon end %s precedes start %s", to.Format(time.RFC3339), from.Format(time.RFC3339))
	}

	return from, to, nil
}

// BacktestOptions tune one backtest run.
type BacktestOptions struct {
	Start Bound
	End   Bound
	// OnProgress, when non-nil, is called after each tick with the number
	// of ticks processed and the total.
	OnProgress func(done, total int)
}

// loadTicks replays the feed horizon into timestamp groups.
func (m *Manager) loadTicks(from, to time.Time) ([]tick, error) {
	var ticks []tick

	for bar, err := range m.feed.ReadAll(optional.Some(from), optional.Some(to)) {
		if err != nil {
			return nil, err
		}

		if n := len(ticks); n > 0 && ticks[n-1].time.Equal(bar.Time) {
			ticks[n-1].bars = append(ticks[n-1].bars, bar)

			continue
		}

		ticks = append(ticks, tick{time: bar.Time, bars: []types.Bar{bar}})
	}

	return ticks, nil
}

// horizon finds the feed's first and last bar times.
func (m *Manager) horizon() (time.Time, time.Time, error) {
	var first, last time.Time

	found := false

	for bar, err := range m.feed.ReadAll(optional.None[time.Time](), optional.None[time.Time]()) {
		if err != nil {
			return time.Time{}, time.Time{}, err
		}

		if !found {
			first = bar.Time
			found = true
		}

		last = bar.Time
	}

	if !found {
		return time.Time{}, time.Time{}, errors.New(errors.ErrCodeNoDataFound, "feed contains no bars")
	}

	return first, last, nil
}

// Backtest replays the feed horizon through every attached strategy on a
// simulated clock and returns the run's statistics. Two backtests over the
// same feed and strategies produce identical results: the loop is
// single-threaded and every timestamp comes from bar data.
func (m *Manager) Backtest(ctx context.Context, opts BacktestOptions) (types.StatsRecord, error) {
	if len(m.slots) == 0 {
		return types.StatsRecord{}, errors.New(errors.ErrCodeNoStrategies, "no strategies attached")
	}

	feedStart, feedEnd, err := m.horizon()
	if err != nil {
		return types.StatsRecord{}, err
	}

	from, to, err := resolveBounds(opts.Start, opts.End, feedStart, feedEnd)
	if err != nil {
		return types.StatsRecord{}, err
	}

	ticks, err := m.loadTicks(from, to)
	if err != nil {
		return types.StatsRecord{}, err
	}

	if len(ticks) == 0 {
		return types.StatsRecord{}, errors.Newf(errors.ErrCodeNoDataFound, "no bars between %s and %s", from.Format(time.RFC3339), to.Format(time.RFC3339))
	}

	m.logger.Info("starting backtest",
		zap.Time("from", ticks[0].time),
		zap.Time("to", ticks[len(ticks)-1].time),
		zap.Int("ticks", len(ticks)),
		zap.Int("strategies", len(m.slots)))

	times := make([]time.Time, len(ticks))
	for i, t := range ticks {
		times[i] = t.time
	}

	driver := clock.NewSimulated(times)

	var benchmark []float64

	lastBench := 0.0
	benchSeen := false

	done := 0

	for {
		now, ok := driver.Next(ctx)
		if !ok {
			if ctx.Err() != nil {
				return types.StatsRecord{}, errors.Wrap(errors.ErrCodeEngineStopped, "backtest cancelled", ctx.Err())
			}

			break
		}

		group := ticks[done]
		prices := m.applyBars(group.bars)

		m.dispatch(now)
		m.portfolio.MarkToMarket(now, prices)

		if m.cfg.BenchmarkSymbol != "" {
			if price, ok := prices[m.cfg.BenchmarkSymbol]; ok {
				lastBench = price
				benchSeen = true
			}

			benchmark = append(benchmark, lastBench)
		}

		m.prune()

		done++

		if opts.OnProgress != nil {
			opts.OnProgress(done, len(ticks))
		}
	}

	if !benchSeen {
		benchmark = nil
	} else {
		// Backfill ticks before the benchmark's first bar so the series
		// stays aligned with the valuation samples.
		first := 0.0

		for _, v := range benchmark {
			if v != 0 {
				first = v

				break
			}
		}

		for i := range benchmark {
			if benchmark[i] == 0 {
				benchmark[i] = first
			} else {
				break
			}
		}
	}

	stats, err := m.finish(ticks[len(ticks)-1].time, benchmark)
	if err != nil {
		return stats, err
	}

	m.logger.Info("backtest complete",
		zap.Float64("end_value", stats.EndValue),
		zap.Int("fills", stats.NumberOfFills))

	return stats, nil
}
