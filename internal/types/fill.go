package types

import "time"

// Fill is the immutable record of an executed order. Quantity is signed the
// same way as OrderRequest. RealizedPnL is non-zero only on fills that closed
// or reversed an existing position; Closing marks those fills so metrics can
// compute win/loss statistics without re-deriving position history.
type Fill struct {
	ID          string    `yaml:"id" json:"id" csv:"id"`
	OrderID     string    `yaml:"order_id" json:"order_id" csv:"order_id"`
	Symbol      string    `yaml:"symbol" json:"symbol" csv:"symbol"`
	Quantity    float64   `yaml:"quantity" json:"quantity" csv:"quantity"`
	Price       float64   `yaml:"price" json:"price" csv:"price"`
	Time        time.Time `yaml:"time" json:"time" csv:"time"`
	Commission  float64   `yaml:"commission" json:"commission" csv:"commission"`
	RealizedPnL float64   `yaml:"realized_pnl" json:"realized_pnl" csv:"realized_pnl"`
	Closing     bool      `yaml:"closing" json:"closing" csv:"closing"`
	Strategy    string    `yaml:"strategy" json:"strategy" csv:"strategy"`
}

// Notional returns the unsigned cash value of the fill before commission.
func (f Fill) Notional() float64 {
	qty := f.Quantity
	if qty < 0 {
		qty = -qty
	}

	return qty * f.Price
}
