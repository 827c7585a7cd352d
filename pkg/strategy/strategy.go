// Package strategy defines the contract trading strategies implement and
// the context through which they talk to the engine. A strategy written
// against this package runs unmodified in backtest, paper, and live modes;
// the manager decides which clock and execution layer sit behind the
// context.
package strategy

// Strategy is the unit of trading logic the manager drives.
//
// Init runs once at attachment, before any ticks; it is the only place a
// strategy may configure its schedule or a custom data feed. Run executes
// on every tick whose time matches the strategy's schedule. Both receive
// the same Context value.
type Strategy interface {
	// Name identifies the strategy in logs, fills, and the audit trail.
	// Names must be unique within a manager.
	Name() string
	Init(ctx *Context) error
	Run(ctx *Context) error
}

// Finisher is implemented by strategies that want a hook after the last
// tick, while the context is still valid.
type Finisher interface {
	OnFinish(ctx *Context) error
}

// APIVersioned is implemented by strategies that declare which engine API
// version they were written against. The manager refuses to attach a
// strategy whose declared version falls outside the supported range.
type APIVersioned interface {
	APIVersion() string
}
