// Package broker provides the execution layer. The Simulator models fills
// against bar data and is shared by backtest and paper modes; live mode
// swaps in a real broker behind the same interface.
package broker

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/tempo-trading/internal/logger"
	"github.com/rxtech-lab/tempo-trading/internal/portfolio"
	"github.com/rxtech-lab/tempo-trading/internal/types"
	"github.com/rxtech-lab/tempo-trading/pkg/errors"
	"go.uber.org/zap"
)

const (
	// CancelReasonRequested marks explicit cancellations.
	CancelReasonRequested = "cancelled"
	// CancelReasonExpired marks orders still resting at the end of the run.
	CancelReasonExpired = "expired"
	// CancelReasonNoChange marks target-percent orders whose delta was
	// negligible.
	CancelReasonNoChange = "no_change"

	// targetEpsilon is the notional below which a target-percent delta is
	// treated as already satisfied.
	targetEpsilon = 1e-6

	// fundsTolerance absorbs floating-point rounding in the cost check so
	// a buy sized from the exact cash balance still fills.
	fundsTolerance = 1e-9
)

// Broker is the execution surface strategies see. Rejections come back as
// SubmitResult values; errors are reserved for misuse of the broker itself.
type Broker interface {
	Submit(req types.OrderRequest) (types.SubmitResult, error)
	Cancel(orderID string) error
	CancelAll() []string
	CancelStrategy(strategy string) []string
	CancelSymbol(strategy, symbol string) []string
	Outstanding() []types.OrderRequest
	Fills() []types.Fill
	Orders() []types.OrderRecord
}

// pendingOrder is a resting order with its thresholds resolved to absolute
// prices at submission time.
type pendingOrder struct {
	request    types.OrderRequest
	limitPrice float64
	stopPrice  float64
	armed      bool
}

// Simulator fills orders against the bar stream. It is single-threaded:
// the manager owns it and serializes UpdateBar with strategy dispatch, so
// no locking is needed.
type Simulator struct {
	portfolio  *portfolio.Portfolio
	commission Commission
	logger     *logger.Logger
	allowShort bool

	lastBars map[string]types.Bar
	pending  []*pendingOrder
	fills    []types.Fill
	records  []types.OrderRecord
	recordIx map[string]int
}

// NewSimulator creates an execution simulator over the given portfolio.
func NewSimulator(p *portfolio.Portfolio, commission Commission, logger *logger.Logger) *Simulator {
	return &Simulator{
		portfolio:  p,
		commission: commission,
		logger:     logger,
		lastBars:   make(map[string]types.Bar),
		pending:    nil,
		fills:      nil,
		records:    nil,
		recordIx:   make(map[string]int),
	}
}

// SetAllowShort permits sells that open or extend a short position.
// Shorting is off by default; without it a sell that would take a
// position below flat is rejected.
func (s *Simulator) SetAllowShort(allow bool) {
	s.allowShort = allow
}

func (s *Simulator) record(req types.OrderRequest, status types.OrderStatus, reason string, t time.Time) {
	if ix, ok := s.recordIx[req.ID]; ok {
		s.records[ix].Status = status
		s.records[ix].Reason = reason
		s.records[ix].Time = t

		return
	}

	s.recordIx[req.ID] = len(s.records)
	s.records = append(s.records, types.OrderRecord{
		Request: req,
		Status:  status,
		Reason:  reason,
		Time:    t,
	})
}

func (s *Simulator) reject(req types.OrderRequest, reason string, t time.Time) types.SubmitResult {
	s.record(req, types.OrderStatusRejected, reason, t)
	s.logger.Debug("order rejected",
		zap.String("order_id", req.ID),
		zap.String("symbol", req.Symbol),
		zap.String("reason", reason))

	return types.SubmitResult{
		Status:  types.OrderStatusRejected,
		OrderID: req.ID,
		Fill:    optional.None[types.Fill](),
		Reason:  reason,
	}
}

// Submit validates and prices an order against the most recent bar for its
// symbol. Market orders fill immediately at the bar close; threshold orders
// rest until a bar close satisfies them.
func (s *Simulator) Submit(req types.OrderRequest) (types.SubmitResult, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	bar, ok := s.lastBars[req.Symbol]

	if err := req.Validate(); err != nil {
		return s.reject(req, types.RejectReasonInvalidOrder, bar.Time), nil
	}

	if !ok {
		return s.reject(req, types.RejectReasonUnknownSymbol, time.Time{}), nil
	}

	ref := bar.Close
	if ref <= 0 || math.IsNaN(ref) {
		return s.reject(req, types.RejectReasonInvalidPrice, bar.Time), nil
	}

	if req.TargetPercent.IsSome() {
		delta := s.targetDelta(req.Symbol, req.TargetPercent.Unwrap(), ref)
		if math.Abs(delta)*ref < targetEpsilon {
			s.record(req, types.OrderStatusCancelled, CancelReasonNoChange, bar.Time)

			return types.SubmitResult{
				Status:  types.OrderStatusCancelled,
				OrderID: req.ID,
				Fill:    optional.None[types.Fill](),
				Reason:  CancelReasonNoChange,
			}, nil
		}

		req.Quantity = delta
	}

	switch req.Spec.Kind {
	case types.OrderKindMarket:
		return s.fillNow(req, ref, bar.Time)

	case types.OrderKindLimit, types.OrderKindStop, types.OrderKindStopLimit:
		pending := &pendingOrder{
			request:    req,
			limitPrice: ref * (1 + req.Spec.LimitOffset),
			stopPrice:  ref * (1 + req.Spec.StopOffset),
			armed:      req.Spec.Kind == types.OrderKindLimit,
		}

		if pending.armed && pending.limitPrice <= 0 {
			return s.reject(req, types.RejectReasonInvalidPrice, bar.Time), nil
		}

		if !pending.armed && pending.stopPrice <= 0 {
			return s.reject(req, types.RejectReasonInvalidPrice, bar.Time), nil
		}

		// A threshold already satisfied by the current close fills on the
		// submission bar.
		if result, done := s.tryResolve(pending, bar); done {
			return result, nil
		}

		s.pending = append(s.pending, pending)
		s.record(req, types.OrderStatusPending, "", bar.Time)

		return types.SubmitResult{
			Status:  types.OrderStatusPending,
			OrderID: req.ID,
			Fill:    optional.None[types.Fill](),
			Reason:  "",
		}, nil

	default:
		return s.reject(req, types.RejectReasonInvalidOrder, bar.Time), nil
	}
}

// targetDelta converts a target allocation into a signed share delta at the
// reference price.
func (s *Simulator) targetDelta(symbol string, pct, ref float64) float64 {
	desired := pct * s.portfolio.TotalValue() / ref
	current := s.portfolio.Position(symbol).Quantity

	return desired - current
}

// fillNow executes a fill at price, applying commission and the funds check.
func (s *Simulator) fillNow(req types.OrderRequest, price float64, t time.Time) (types.SubmitResult, error) {
	commission := s.commission.Calculate(req.Quantity, price)

	if req.Quantity > 0 {
		cost := req.Quantity*price + commission
		if cost > s.portfolio.Cash()*(1+fundsTolerance) {
			return s.reject(req, types.RejectReasonInsufficientFunds, t), nil
		}
	}

	if req.Quantity < 0 && !s.allowShort {
		if s.portfolio.Position(req.Symbol).Quantity+req.Quantity < 0 {
			return s.reject(req, types.RejectReasonShortNotAllowed, t), nil
		}
	}

	fill := types.Fill{
		ID:         uuid.NewString(),
		OrderID:    req.ID,
		Symbol:     req.Symbol,
		Quantity:   req.Quantity,
		Price:      price,
		Time:       t,
		Commission: commission,
		Strategy:   req.Strategy,
	}

	if err := s.portfolio.ApplyFill(&fill); err != nil {
		return types.SubmitResult{}, errors.Wrap(errors.ErrCodeInvalidOrder, "failed to apply fill", err)
	}

	s.fills = append(s.fills, fill)
	s.record(req, types.OrderStatusFilled, "", t)
	s.logger.Debug("order filled",
		zap.String("order_id", req.ID),
		zap.String("symbol", req.Symbol),
		zap.Float64("quantity", fill.Quantity),
		zap.Float64("price", fill.Price))

	return types.SubmitResult{
		Status:  types.OrderStatusFilled,
		OrderID: req.ID,
		Fill:    optional.Some(fill),
		Reason:  "",
	}, nil
}

// tryResolve evaluates a resting order against a bar close. It returns the
// terminal result and true when the order left the book.
func (s *Simulator) tryResolve(p *pendingOrder, bar types.Bar) (types.SubmitResult, bool) {
	req := p.request
	close := bar.Close
	buy := req.IsBuy()

	if !p.armed {
		triggered := (buy && close >= p.stopPrice) || (!buy && close <= p.stopPrice)
		if !triggered {
			return types.SubmitResult{}, false
		}

		if req.Spec.Kind == types.OrderKindStop {
			result, _ := s.fillNow(req, close, bar.Time)

			return result, true
		}

		// Stop-limit: the limit leg activates and is checked on this same
		// close.
		p.armed = true
	}

	marketable := (buy && close <= p.limitPrice) || (!buy && close >= p.limitPrice)
	if !marketable {
		return types.SubmitResult{}, false
	}

	// Fill at the better of threshold and close.
	price := math.Min(p.limitPrice, close)
	if !buy {
		price = math.Max(p.limitPrice, close)
	}

	result, _ := s.fillNow(req, price, bar.Time)

	return result, true
}

// UpdateBar records the latest bar for a symbol and resolves any resting
// orders it satisfies, in submission order. It returns the fills produced.
func (s *Simulator) UpdateBar(bar types.Bar) []types.Fill {
	s.lastBars[bar.Symbol] = bar
	s.portfolio.MarkPrice(bar.Symbol, bar.Close)

	var produced []types.Fill

	remaining := s.pending[:0]

	for _, p := range s.pending {
		if p.request.Symbol != bar.Symbol {
			remaining = append(remaining, p)

			continue
		}

		result, done := s.tryResolve(p, bar)
		if !done {
			remaining = append(remaining, p)

			continue
		}

		if result.Status == types.OrderStatusFilled && result.Fill.IsSome() {
			produced = append(produced, result.Fill.Unwrap())
		}
	}

	s.pending = remaining

	return produced
}

// LastBar returns the most recent bar seen for a symbol.
func (s *Simulator) LastBar(symbol string) (types.Bar, bool) {
	bar, ok := s.lastBars[symbol]

	return bar, ok
}

// Cancel removes a resting order.
func (s *Simulator) Cancel(orderID string) error {
	for i, p := range s.pending {
		if p.request.ID == orderID {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			s.record(p.request, types.OrderStatusCancelled, CancelReasonRequested, s.lastBars[p.request.Symbol].Time)

			return nil
		}
	}

	return errors.Newf(errors.ErrCodeOrderNotFound, "no resting order with id %s", orderID)
}

// CancelAll removes every resting order and returns their IDs.
func (s *Simulator) CancelAll() []string {
	return s.cancelWhere(func(*pendingOrder) bool { return true }, CancelReasonRequested)
}

// CancelStrategy removes every resting order owned by a strategy.
func (s *Simulator) CancelStrategy(strategy string) []string {
	return s.cancelWhere(func(p *pendingOrder) bool { return p.request.Strategy == strategy }, CancelReasonRequested)
}

// CancelSymbol removes a strategy's resting orders for one symbol.
func (s *Simulator) CancelSymbol(strategy, symbol string) []string {
	return s.cancelWhere(func(p *pendingOrder) bool {
		return p.request.Strategy == strategy && p.request.Symbol == symbol
	}, CancelReasonRequested)
}

// ExpireAll cancels all resting orders at the end of a run.
func (s *Simulator) ExpireAll() []string {
	return s.cancelWhere(func(*pendingOrder) bool { return true }, CancelReasonExpired)
}

func (s *Simulator) cancelWhere(match func(*pendingOrder) bool, reason string) []string {
	var cancelled []string

	remaining := s.pending[:0]

	for _, p := range s.pending {
		if !match(p) {
			remaining = append(remaining, p)

			continue
		}

		s.record(p.request, types.OrderStatusCancelled, reason, s.lastBars[p.request.Symbol].Time)
		cancelled = append(cancelled, p.request.ID)
	}

	s.pending = remaining

	return cancelled
}

// Outstanding returns the resting orders in submission order.
func (s *Simulator) Outstanding() []types.OrderRequest {
	result := make([]types.OrderRequest, 0, len(s.pending))
	for _, p := range s.pending {
		result = append(result, p.request)
	}

	return result
}

// Fills returns all fills in execution order.
func (s *Simulator) Fills() []types.Fill {
	result := make([]types.Fill, len(s.fills))
	copy(result, s.fills)

	return result
}

// Orders returns the full audit log, one record per submitted order.
func (s *Simulator) Orders() []types.OrderRecord {
	result := make([]types.OrderRecord, len(s.records))
	copy(result, s.records)

	return result
}

// Reset clears all execution state. The portfolio is reset separately.
func (s *Simulator) Reset() {
	s.lastBars = make(map[string]types.Bar)
	s.pending = nil
	s.fills = nil
	s.records = nil
	s.recordIx = make(map[string]int)
}
