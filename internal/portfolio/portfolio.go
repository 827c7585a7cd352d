// Package portfolio tracks cash, open positions, and the valuation series
// the metrics engine consumes. All mutation flows through fills, so the
// same portfolio code serves backtest, paper, and live modes.
package portfolio

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/rxtech-lab/tempo-trading/internal/types"
	"github.com/rxtech-lab/tempo-trading/pkg/errors"
)

// Portfolio is the single ledger behind an engine run. It is not
// goroutine-safe; the manager serializes all access on the dispatch loop.
type Portfolio struct {
	initialCash float64
	cash        float64
	positions   map[string]*types.Position
	valuations  []types.Valuation
	lastPrices  map[string]float64
}

// NewPortfolio creates a portfolio holding only cash.
func NewPortfolio(initialCash float64) *Portfolio {
	return &Portfolio{
		initialCash: initialCash,
		cash:        initialCash,
		positions:   make(map[string]*types.Position),
		valuations:  nil,
		lastPrices:  make(map[string]float64),
	}
}

// InitialCash returns the starting cash balance.
func (p *Portfolio) InitialCash() float64 {
	return p.initialCash
}

// Cash returns the current cash balance.
func (p *Portfolio) Cash() float64 {
	return p.cash
}

// Position returns the position for a symbol. A flat symbol returns a
// zero-quantity position rather than an error.
func (p *Portfolio) Position(symbol string) types.Position {
	if pos, ok := p.positions[symbol]; ok {
		return *pos
	}

	return types.Position{Symbol: symbol, Quantity: 0, AvgPrice: 0, OpenedAt: time.Time{}, UpdatedAt: time.Time{}}
}

// Positions returns all open positions ordered by symbol.
func (p *Portfolio) Positions() []types.Position {
	result := make([]types.Position, 0, len(p.positions))
	for _, pos := range p.positions {
		result = append(result, *pos)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Symbol < result[j].Symbol })

	return result
}

// ApplyFill applies a fill to cash and positions. The fill's RealizedPnL
// and Closing fields are set as a side effect so the caller can record
// them. Position cost basis is maintained as a weighted average; a fill
// that crosses through flat closes the old position entirely and opens
// the remainder at the fill price.
func (p *Portfolio) ApplyFill(fill *types.Fill) error {
	if fill.Quantity == 0 {
		return errors.New(errors.ErrCodeInvalidOrder, "fill quantity must be non-zero")
	}

	p.cash -= fill.Quantity*fill.Price + fill.Commission

	pos, ok := p.positions[fill.Symbol]
	if !ok {
		pos = &types.Position{
			Symbol:    fill.Symbol,
			Quantity:  0,
			AvgPrice:  0,
			OpenedAt:  fill.Time,
			UpdatedAt: fill.Time,
		}
		p.positions[fill.Symbol] = pos
	}

	oldQty := pos.Quantity
	newQty := oldQty + fill.Quantity

	switch {
	case oldQty == 0:
		pos.AvgPrice = fill.Price
		pos.OpenedAt = fill.Time

	case sameSign(oldQty, fill.Quantity):
		// Increasing exposure: weighted-average cost.
		oldCost := decimal.NewFromFloat(oldQty).Mul(decimal.NewFromFloat(pos.AvgPrice))
		addCost := decimal.NewFromFloat(fill.Quantity).Mul(decimal.NewFromFloat(fill.Price))
		avg := oldCost.Add(addCost).Div(decimal.NewFromFloat(newQty))
		pos.AvgPrice, _ = avg.Float64()

	default:
		// Reducing, closing, or flipping.
		closedQty := fill.Quantity
		if !sameSign(oldQty, newQty) && newQty != 0 {
			closedQty = -oldQty
		}

		entry := decimal.NewFromFloat(-closedQty).Mul(decimal.NewFromFloat(pos.AvgPrice))
		exit := decimal.NewFromFloat(-closedQty).Mul(decimal.NewFromFloat(fill.Price))
		realized, _ := exit.Sub(entry).Float64()

		fill.RealizedPnL = realized
		fill.Closing = true

		if newQty != 0 && !sameSign(oldQty, newQty) {
			// Flipped through flat: remainder opens at the fill price.
			pos.AvgPrice = fill.Price
			pos.OpenedAt = fill.Time
		}
	}

	pos.Quantity = newQty
	pos.UpdatedAt = fill.Time

	if newQty == 0 {
		delete(p.positions, fill.Symbol)
	}

	p.lastPrices[fill.Symbol] = fill.Price

	return nil
}

// MarkPrice records an observed price for a symbol without sampling a
// valuation. The execution layer calls this on every bar so TotalValue
// stays current between mark-to-market samples.
func (p *Portfolio) MarkPrice(symbol string, price float64) {
	p.lastPrices[symbol] = price
}

// MarkToMarket values the portfolio at t using the supplied prices and
// appends the sample to the valuation series. Symbols missing from prices
// fall back to their last observed price.
func (p *Portfolio) MarkToMarket(t time.Time, prices map[string]float64) types.Valuation {
	for symbol, price := range prices {
		p.lastPrices[symbol] = price
	}

	valuation := types.Valuation{
		Time:  t,
		Value: p.TotalValue(),
		Cash:  p.cash,
	}

	p.valuations = append(p.valuations, valuation)

	return valuation
}

// TotalValue returns cash plus open positions at their last observed
// prices.
func (p *Portfolio) TotalValue() float64 {
	total := p.cash
	for symbol, pos := range p.positions {
		total += pos.Quantity * p.lastPrices[symbol]
	}

	return total
}

// ValueAt returns the valuation sample at or before t. It reports false
// when no sample that old exists.
func (p *Portfolio) ValueAt(t time.Time) (types.Valuation, bool) {
	ix := sort.Search(len(p.valuations), func(i int) bool {
		return p.valuations[i].Time.After(t)
	})

	if ix == 0 {
		return types.Valuation{}, false
	}

	return p.valuations[ix-1], true
}

// Valuations returns the mark-to-market series in sample order.
func (p *Portfolio) Valuations() []types.Valuation {
	result := make([]types.Valuation, len(p.valuations))
	copy(result, p.valuations)

	return result
}

// LastPrice returns the most recent observed price for a symbol.
func (p *Portfolio) LastPrice(symbol string) (float64, bool) {
	price, ok := p.lastPrices[symbol]

	return price, ok
}

// Reset restores the portfolio to its initial state.
func (p *Portfolio) Reset() {
	p.cash = p.initialCash
	p.positions = make(map[string]*types.Position)
	p.valuations = nil
	p.lastPrices = make(map[string]float64)
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}
