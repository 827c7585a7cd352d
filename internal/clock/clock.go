// Package clock provides the tick driver behind the dispatch loop. A backtest
// runs on a Simulated clock replaying historical bar timestamps; live and
// paper trading run on a Wall clock that wakes on second boundaries. Both
// satisfy the same interface so the dispatch loop never knows which mode it
// is in, which keeps backtests deterministic and testable without mocking
// system time.
package clock

import (
	"context"
	"time"
)

// Clock yields the successive tick timestamps of one run.
type Clock interface {
	// Next blocks until the next tick and returns its timestamp. The second
	// return value is false when the clock is exhausted or the context was
	// cancelled; the dispatch loop observes cancellation here, once per tick.
	Next(ctx context.Context) (time.Time, bool)
}

// Simulated replays a fixed, ordered timeline. It never sleeps.
type Simulated struct {
	times []time.Time
	idx   int
}

// NewSimulated creates a simulated clock over the given timeline. The caller
// is responsible for ordering.
func NewSimulated(times []time.Time) *Simulated {
	return &Simulated{times: times, idx: 0}
}

// Next implements Clock.
func (s *Simulated) Next(ctx context.Context) (time.Time, bool) {
	if ctx.Err() != nil || s.idx >= len(s.times) {
		return time.Time{}, false
	}

	t := s.times[s.idx]
	s.idx++

	return t, true
}

// Remaining returns the number of ticks not yet consumed.
func (s *Simulated) Remaining() int {
	return len(s.times) - s.idx
}

// Wall wakes on wall-clock boundaries at the configured granularity.
type Wall struct {
	granularity time.Duration
	now         func() time.Time
}

// NewWall creates a wall clock ticking on boundaries of the given
// granularity. A non-positive granularity falls back to one second.
func NewWall(granularity time.Duration) *Wall {
	if granularity <= 0 {
		granularity = time.Second
	}

	return &Wall{granularity: granularity, now: time.Now}
}

// Next sleeps until the next boundary and returns it. Returns false only on
// context cancellation.
func (w *Wall) Next(ctx context.Context) (time.Time, bool) {
	target := nextBoundary(w.now(), w.granularity)

	timer := time.NewTimer(time.Until(target))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return time.Time{}, false
	case <-timer.C:
		return target, true
	}
}

func nextBoundary(t time.Time, granularity time.Duration) time.Time {
	return t.Truncate(granularity).Add(granularity)
}
