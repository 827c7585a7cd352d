package strategy

import (
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/tempo-trading/internal/broker"
	"github.com/rxtech-lab/tempo-trading/internal/feed"
	"github.com/rxtech-lab/tempo-trading/internal/indicator"
	"github.com/rxtech-lab/tempo-trading/internal/logger"
	"github.com/rxtech-lab/tempo-trading/internal/portfolio"
	"github.com/rxtech-lab/tempo-trading/internal/schedule"
	"github.com/rxtech-lab/tempo-trading/internal/types"
	"github.com/rxtech-lab/tempo-trading/pkg/errors"
)

// Context is a strategy's window into the engine. One context exists per
// attached strategy; the manager mutates its clock between ticks and
// freezes its configuration surface after Init returns.
//
// All methods are single-threaded: the manager never runs two strategies
// concurrently, so strategies need no locking.
type Context struct {
	name       string
	schedule   *schedule.Schedule
	feed       feed.Feed
	broker     broker.Broker
	portfolio  *portfolio.Portfolio
	indicators indicator.Indicators
	logger     *logger.Logger
	now        time.Time
	frozen     bool
}

// NewContext wires a context for one strategy. The manager calls this at
// attachment; it is exported for tests that drive a strategy directly.
func NewContext(name string, f feed.Feed, b broker.Broker, p *portfolio.Portfolio, log *logger.Logger) *Context {
	return &Context{
		name:       name,
		schedule:   schedule.MustNew(),
		feed:       f,
		broker:     b,
		portfolio:  p,
		indicators: indicator.NewTALib(),
		logger:     log,
		frozen:     false,
	}
}

// SetSchedule restricts when Run is dispatched. Callable only during Init;
// without a call the strategy runs on every tick.
func (c *Context) SetSchedule(configs ...schedule.Config) error {
	if c.frozen {
		return errors.New(errors.ErrCodeContextFrozen, "schedule can only be set during Init")
	}

	s, err := schedule.New(configs...)
	if err != nil {
		return err
	}

	c.schedule = s

	return nil
}

// SetFeed overrides the data feed this strategy reads from. Callable only
// during Init; the manager's default feed remains in place otherwise.
func (c *Context) SetFeed(f feed.Feed) error {
	if c.frozen {
		return errors.New(errors.ErrCodeContextFrozen, "feed can only be set during Init")
	}

	if f == nil {
		return errors.New(errors.ErrCodeInvalidParameter, "feed must not be nil")
	}

	c.feed = f

	return nil
}

// Freeze closes the configuration surface. The manager calls this after
// Init returns.
func (c *Context) Freeze() {
	c.frozen = true
}

// SetNow advances the context clock. The manager calls this before each
// dispatch; Now is the only clock strategies should consult.
func (c *Context) SetNow(t time.Time) {
	c.now = t
}

// Matches reports whether the strategy's schedule selects t.
func (c *Context) Matches(t time.Time) bool {
	return c.schedule.Matches(t)
}

// Name returns the owning strategy's name.
func (c *Context) Name() string {
	return c.name
}

// Now returns the current engine time: the driving bar's timestamp in
// backtests, the wall clock tick in live mode.
func (c *Context) Now() time.Time {
	return c.now
}

// Logger returns the engine logger.
func (c *Context) Logger() *logger.Logger {
	return c.logger
}

// Indicators returns the indicator engine.
func (c *Context) Indicators() indicator.Indicators {
	return c.indicators
}

// GetData returns a window of bars from the strategy's feed, anchored at
// the current engine time when the window has no explicit anchor.
func (c *Context) GetData(symbol string, timeframe types.Timeframe, w feed.Window) ([]types.Bar, error) {
	if w.AsOf.IsZero() {
		w.AsOf = c.now
	}

	return c.feed.GetBars(symbol, timeframe, w)
}

// Order submits an order for a signed quantity. Rejections come back in
// the result, not as errors.
func (c *Context) Order(symbol string, quantity float64, spec types.KindSpec) (types.SubmitResult, error) {
	return c.broker.Submit(types.OrderRequest{
		ID:            uuid.NewString(),
		Symbol:        symbol,
		Quantity:      quantity,
		TargetPercent: optional.None[float64](),
		Spec:          spec,
		Strategy:      c.name,
		CreatedAt:     c.now,
	})
}

// OrderTargetPercent sizes an order to bring the symbol's position to the
// given fraction of total portfolio value. A negligible delta places no
// order.
func (c *Context) OrderTargetPercent(symbol string, pct float64, spec types.KindSpec) (types.SubmitResult, error) {
	return c.broker.Submit(types.OrderRequest{
		ID:            uuid.NewString(),
		Symbol:        symbol,
		Quantity:      0,
		TargetPercent: optional.Some(pct),
		Spec:          spec,
		Strategy:      c.name,
		CreatedAt:     c.now,
	})
}

// CancelOrders cancels this strategy's resting orders and returns their
// IDs. Passing symbols narrows the cancellation to orders for those
// symbols; with none, every resting order the strategy owns is removed.
func (c *Context) CancelOrders(symbols ...string) []string {
	if len(symbols) == 0 {
		return c.broker.CancelStrategy(c.name)
	}

	var cancelled []string
	for _, symbol := range symbols {
		cancelled = append(cancelled, c.broker.CancelSymbol(c.name, symbol)...)
	}

	return cancelled
}

// Outstanding returns this strategy's resting orders.
func (c *Context) Outstanding() []types.OrderRequest {
	var mine []types.OrderRequest

	for _, req := range c.broker.Outstanding() {
		if req.Strategy == c.name {
			mine = append(mine, req)
		}
	}

	return mine
}

// Position returns the portfolio position for a symbol. The portfolio is
// shared across strategies.
func (c *Context) Position(symbol string) types.Position {
	return c.portfolio.Position(symbol)
}

// Positions returns all open positions.
func (c *Context) Positions() []types.Position {
	return c.portfolio.Positions()
}

// Cash returns the current cash balance.
func (c *Context) Cash() float64 {
	return c.portfolio.Cash()
}

// TotalValue returns cash plus positions at last observed prices.
func (c *Context) TotalValue() float64 {
	return c.portfolio.TotalValue()
}
