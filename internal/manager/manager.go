// Package manager owns the engine loop. It drives attached strategies
// from a clock — simulated over a historical horizon for backtests, the
// wall clock for paper and live runs — and serializes every strategy
// callback, bar update, and portfolio mutation on that single loop.
package manager

import (
	"sync"
	"time"

	"github.com/rxtech-lab/tempo-trading/internal/broker"
	"github.com/rxtech-lab/tempo-trading/internal/feed"
	"github.com/rxtech-lab/tempo-trading/internal/logger"
	"github.com/rxtech-lab/tempo-trading/internal/metrics"
	"github.com/rxtech-lab/tempo-trading/internal/portfolio"
	"github.com/rxtech-lab/tempo-trading/internal/store"
	"github.com/rxtech-lab/tempo-trading/internal/types"
	"github.com/rxtech-lab/tempo-trading/internal/version"
	"github.com/rxtech-lab/tempo-trading/pkg/errors"
	"github.com/rxtech-lab/tempo-trading/pkg/strategy"
	"go.uber.org/zap"
)

// attachRegistry tracks which manager currently owns each strategy value.
// Attaching a strategy to a second manager detaches it from the first, so
// a strategy never receives ticks from two engines at once.
var attachRegistry = struct {
	sync.Mutex
	owners map[strategy.Strategy]*Manager
}{owners: make(map[strategy.Strategy]*Manager)}

// Config wires a manager.
type Config struct {
	// InitialCash funds the shared portfolio.
	InitialCash float64
	// Commission selects the fee model for simulated fills.
	Commission broker.Commission
	// AllowShort permits sells that open or extend a short position.
	AllowShort bool
	// Metrics tunes statistic annualization.
	Metrics metrics.Config
	// BenchmarkSymbol, when non-empty, names the symbol whose closes form
	// the alpha/beta benchmark series.
	BenchmarkSymbol string
	// Store, when non-nil, receives the order and fill history at the end
	// of a run.
	Store *store.RunStore
	// Logger defaults to a production logger when nil.
	Logger *logger.Logger
}

type slot struct {
	strategy strategy.Strategy
	ctx      *strategy.Context
	paused   bool
	removed  bool
}

// Manager drives strategies. All methods must be called from a single
// goroutine; the manager provides determinism, not thread safety.
type Manager struct {
	cfg       Config
	logger    *logger.Logger
	feed      feed.Historical
	portfolio *portfolio.Portfolio
	simulator *broker.Simulator
	slots     []*slot

	// quotes carries live bars from feed subscriptions into the dispatch
	// loop so the simulator stays single-threaded.
	quotes chan types.Bar
}

// NewManager creates a manager over a historical feed. The feed is the
// default data source for every attached strategy and, in backtests, the
// replay horizon.
func NewManager(f feed.Historical, cfg Config) (*Manager, error) {
	if f == nil {
		return nil, errors.New(errors.ErrCodeInvalidParameter, "manager requires a feed")
	}

	if cfg.InitialCash <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidParameter, "initial cash must be positive")
	}

	log := cfg.Logger
	if log == nil {
		var err error

		log, err = logger.NewLogger()
		if err != nil {
			return nil, err
		}
	}

	commission := cfg.Commission
	if commission == nil {
		commission = broker.ZeroCommission{}
	}

	p := portfolio.NewPortfolio(cfg.InitialCash)
	simulator := broker.NewSimulator(p, commission, log)
	simulator.SetAllowShort(cfg.AllowShort)

	return &Manager{
		cfg:       cfg,
		logger:    log,
		feed:      f,
		portfolio: p,
		simulator: simulator,
		slots:     nil,
		quotes:    make(chan types.Bar, 256),
	}, nil
}

// Portfolio exposes the shared portfolio for inspection.
func (m *Manager) Portfolio() *portfolio.Portfolio {
	return m.portfolio
}

// Simulator exposes the execution layer for inspection.
func (m *Manager) Simulator() *broker.Simulator {
	return m.simulator
}

func (m *Manager) findSlot(name string) *slot {
	for _, s := range m.slots {
		if !s.removed && s.strategy.Name() == name {
			return s
		}
	}

	return nil
}

// AddAlgo attaches a strategy: the version gate runs, Init executes with a
// live configuration surface, and the context freezes. Attachment order is
// dispatch order. Attaching a strategy that is currently attached to
// another manager detaches it there first.
func (m *Manager) AddAlgo(s strategy.Strategy) error {
	if s == nil {
		return errors.New(errors.ErrCodeInvalidParameter, "strategy must not be nil")
	}

	if m.findSlot(s.Name()) != nil {
		return errors.Newf(errors.ErrCodeInvalidParameter, "strategy %q is already attached", s.Name())
	}

	if versioned, ok := s.(strategy.APIVersioned); ok {
		if err := version.CheckStrategyCompatibility(version.GetVersion(), versioned.APIVersion()); err != nil {
			return err
		}
	}

	attachRegistry.Lock()
	if prev, ok := attachRegistry.owners[s]; ok && prev != m {
		prev.detach(s)
	}

	attachRegistry.owners[s] = m
	attachRegistry.Unlock()

	ctx := strategy.NewContext(s.Name(), m.feed, m.simulator, m.portfolio, m.logger)

	if err := s.Init(ctx); err != nil {
		attachRegistry.Lock()
		delete(attachRegistry.owners, s)
		attachRegistry.Unlock()

		return errors.Wrapf(errors.ErrCodeStrategyInitFailed, err, "strategy %q failed to initialize", s.Name())
	}

	ctx.Freeze()

	m.slots = append(m.slots, &slot{strategy: s, ctx: ctx, paused: false, removed: false})
	m.logger.Info("strategy attached", zap.String("strategy", s.Name()))

	return nil
}

// detach marks a strategy's slot removed without cancelling orders. Called
// under the attach registry lock when another manager claims the strategy.
func (m *Manager) detach(s strategy.Strategy) {
	for _, sl := range m.slots {
		if sl.strategy == s {
			sl.removed = true
		}
	}
}

// RemoveAlgo detaches a strategy by name. Its resting orders are cancelled
// immediately; the slot itself is pruned between ticks, so a removal from
// inside a strategy callback never perturbs the current dispatch pass.
func (m *Manager) RemoveAlgo(name string) error {
	s := m.findSlot(name)
	if s == nil {
		return errors.Newf(errors.ErrCodeInvalidParameter, "no attached strategy named %q", name)
	}

	s.removed = true
	cancelled := m.simulator.CancelStrategy(name)

	attachRegistry.Lock()
	if attachRegistry.owners[s.strategy] == m {
		delete(attachRegistry.owners, s.strategy)
	}
	attachRegistry.Unlock()

	m.logger.Info("strategy removed",
		zap.String("strategy", name),
		zap.Int("orders_cancelled", len(cancelled)))

	return nil
}

// Pause stops dispatching a strategy without touching its orders or
// positions.
func (m *Manager) Pause(name string) error {
	s := m.findSlot(name)
	if s == nil {
		return errors.Newf(errors.ErrCodeInvalidParameter, "no attached strategy named %q", name)
	}

	s.paused = true

	return nil
}

// Resume reverses Pause.
func (m *Manager) Resume(name string) error {
	s := m.findSlot(name)
	if s == nil {
		return errors.Newf(errors.ErrCodeInvalidParameter, "no attached strategy named %q", name)
	}

	s.paused = false

	return nil
}

// prune drops removed slots. Runs between ticks only.
func (m *Manager) prune() {
	kept := m.slots[:0]

	for _, s := range m.slots {
		if !s.removed {
			kept = append(kept, s)
		}
	}

	m.slots = kept
}

// dispatch runs every active strategy whose schedule matches t, in
// attachment order. A strategy error is logged and isolated; it never
// stops the run or other strategies.
func (m *Manager) dispatch(t time.Time) {
	for _, s := range m.slots {
		if s.removed || s.paused || !s.ctx.Matches(t) {
			continue
		}

		s.ctx.SetNow(t)

		if err := s.strategy.Run(s.ctx); err != nil {
			wrapped := errors.Wrapf(errors.ErrCodeStrategyRunFailed, err, "strategy %q failed at %s", s.strategy.Name(), t.Format(time.RFC3339))
			m.logger.Error("strategy run failed",
				zap.String("strategy", s.strategy.Name()),
				zap.Time("tick", t),
				zap.Error(wrapped))
		}
	}
}

// finish runs OnFinish hooks, expires resting orders, reduces metrics, and
// persists history when a store is configured.
func (m *Manager) finish(end time.Time, benchmark []float64) (types.StatsRecord, error) {
	expired := m.simulator.ExpireAll()
	if len(expired) > 0 {
		m.logger.Info("expired resting orders", zap.Int("count", len(expired)))
	}

	for _, s := range m.slots {
		if s.removed {
			continue
		}

		finisher, ok := s.strategy.(strategy.Finisher)
		if !ok {
			continue
		}

		s.ctx.SetNow(end)

		if err := finisher.OnFinish(s.ctx); err != nil {
			m.logger.Error("strategy finish hook failed",
				zap.String("strategy", s.strategy.Name()),
				zap.Error(err))
		}
	}

	stats := metrics.Compute(m.portfolio.Valuations(), m.simulator.Fills(), benchmark, m.cfg.Metrics)

	if m.cfg.Store != nil {
		if err := m.cfg.Store.RecordOrders(m.simulator.Orders()); err != nil {
			return stats, err
		}

		if err := m.cfg.Store.RecordFills(m.simulator.Fills()); err != nil {
			return stats, err
		}
	}

	return stats, nil
}

// tick groups the bars sharing one timestamp.
type tick struct {
	time time.Time
	bars []types.Bar
}

// applyBars feeds a tick's bars to the simulator and returns the closes
// for mark-to-market.
func (m *Manager) applyBars(bars []types.Bar) map[string]float64 {
	prices := make(map[string]float64, len(bars))

	for _, bar := range bars {
		fills := m.simulator.UpdateBar(bar)
		for _, fill := range fills {
			m.logger.Debug("resting order filled",
				zap.String("symbol", fill.Symbol),
				zap.Float64("price", fill.Price),
				zap.String("strategy", fill.Strategy))
		}

		prices[bar.Symbol] = bar.Close
	}

	return prices
}
