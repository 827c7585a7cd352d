package types

import "time"

// Position is the current holding of one symbol. Quantity is signed: negative
// means short. AvgPrice is the weighted-average cost basis of the open
// quantity; it is recomputed on same-direction fills and reset to the fill
// price when a reversal opens a new position in the opposite direction.
type Position struct {
	Symbol    string    `yaml:"symbol" json:"symbol" csv:"symbol"`
	Quantity  float64   `yaml:"quantity" json:"quantity" csv:"quantity"`
	AvgPrice  float64   `yaml:"avg_price" json:"avg_price" csv:"avg_price"`
	OpenedAt  time.Time `yaml:"opened_at" json:"opened_at" csv:"opened_at"`
	UpdatedAt time.Time `yaml:"updated_at" json:"updated_at" csv:"updated_at"`
}

// MarketValue returns the signed value of the position at the given price.
func (p Position) MarketValue(price float64) float64 {
	return p.Quantity * price
}

// IsFlat reports whether the position holds nothing.
func (p Position) IsFlat() bool {
	return p.Quantity == 0
}

// Valuation is one sample of the portfolio's total value.
type Valuation struct {
	Time  time.Time `yaml:"time" json:"time" csv:"time"`
	Value float64   `yaml:"value" json:"value" csv:"value"`
	Cash  float64   `yaml:"cash" json:"cash" csv:"cash"`
}
