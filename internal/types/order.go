package types

import (
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/tempo-trading/pkg/errors"
)

type OrderKind string

type OrderStatus string

const (
	OrderKindMarket    OrderKind = "MARKET"
	OrderKindLimit     OrderKind = "LIMIT"
	OrderKindStop      OrderKind = "STOP"
	OrderKindStopLimit OrderKind = "STOP_LIMIT"
)

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRejected  OrderStatus = "REJECTED"
)

const (
	RejectReasonInsufficientFunds string = "insufficient_funds"
	RejectReasonInvalidOrder      string = "invalid_order"
	RejectReasonUnknownSymbol     string = "unknown_symbol"
	RejectReasonInvalidPrice      string = "invalid_price"
	RejectReasonShortNotAllowed   string = "short_not_allowed"
)

// KindSpec is the tagged order-kind variant. Offsets are fractions of the
// reference price at submission time: a limit buy at -0.01 only fills once
// price reaches 99% of reference, a stop sell at -0.05 arms at 95%.
type KindSpec struct {
	Kind        OrderKind `yaml:"kind" json:"kind" validate:"required,oneof=MARKET LIMIT STOP STOP_LIMIT"`
	LimitOffset float64   `yaml:"limit_offset" json:"limit_offset"`
	StopOffset  float64   `yaml:"stop_offset" json:"stop_offset"`
}

// Market creates a market-order kind.
func Market() KindSpec {
	return KindSpec{Kind: OrderKindMarket, LimitOffset: 0, StopOffset: 0}
}

// Limit creates a limit-order kind with the given fractional offset.
func Limit(offset float64) KindSpec {
	return KindSpec{Kind: OrderKindLimit, LimitOffset: offset, StopOffset: 0}
}

// Stop creates a stop-order kind with the given fractional offset.
func Stop(offset float64) KindSpec {
	return KindSpec{Kind: OrderKindStop, LimitOffset: 0, StopOffset: offset}
}

// StopLimit creates a stop-limit kind: arms at the stop offset, then rests as
// a limit order at the limit offset.
func StopLimit(stopOffset, limitOffset float64) KindSpec {
	return KindSpec{Kind: OrderKindStopLimit, LimitOffset: limitOffset, StopOffset: stopOffset}
}

// OrderRequest is an immutable order submission. Quantity is signed: positive
// buys, negative sells. TargetPercent, when set, sizes the order to bring the
// symbol's position to that fraction of total portfolio value and Quantity is
// ignored.
type OrderRequest struct {
	ID            string                   `yaml:"id" json:"id" csv:"id" validate:"required,uuid"`
	Symbol        string                   `yaml:"symbol" json:"symbol" csv:"symbol" validate:"required"`
	Quantity      float64                  `yaml:"quantity" json:"quantity" csv:"quantity"`
	TargetPercent optional.Option[float64] `yaml:"target_percent" json:"target_percent" csv:"target_percent"`
	Spec          KindSpec                 `yaml:"spec" json:"spec" csv:"spec" validate:"required"`
	Strategy      string                   `yaml:"strategy" json:"strategy" csv:"strategy" validate:"required"`
	CreatedAt     time.Time                `yaml:"created_at" json:"created_at" csv:"created_at" validate:"required"`
}

// Validate checks the request's structural validity. A zero quantity is only
// valid for target-percent orders.
func (r *OrderRequest) Validate() error {
	validate := validator.New()

	if err := validate.Struct(r); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrder, "invalid order request", err)
	}

	if r.TargetPercent.IsNone() {
		if r.Quantity == 0 {
			return errors.New(errors.ErrCodeInvalidOrder, "order quantity must be non-zero")
		}

		if math.IsNaN(r.Quantity) || math.IsInf(r.Quantity, 0) {
			return errors.New(errors.ErrCodeInvalidOrder, "order quantity must be finite")
		}
	}

	return nil
}

// IsBuy reports whether the request increases exposure. Target-percent orders
// resolve their direction at submission time, not here.
func (r *OrderRequest) IsBuy() bool {
	return r.Quantity > 0
}

// SubmitResult is the outcome of submitting an order request. Rejections are
// result values, never errors: one bad order must not abort a tick.
type SubmitResult struct {
	Status  OrderStatus
	OrderID string
	Fill    optional.Option[Fill]
	Reason  string
}

// Rejected reports whether the order was turned away at submission.
func (r SubmitResult) Rejected() bool {
	return r.Status == OrderStatusRejected
}

// OrderRecord is one entry in the audit log of submissions and their outcomes.
type OrderRecord struct {
	Request OrderRequest `yaml:"request" json:"request"`
	Status  OrderStatus  `yaml:"status" json:"status"`
	Reason  string       `yaml:"reason" json:"reason"`
	Time    time.Time    `yaml:"time" json:"time"`
}
