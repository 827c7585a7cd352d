package types

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() OrderRequest {
	return OrderRequest{
		ID:        uuid.New().String(),
		Symbol:    "AAPL",
		Quantity:  10,
		Spec:      Market(),
		Strategy:  "test",
		CreatedAt: time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC),
	}
}

func TestOrderRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*OrderRequest)
		wantErr bool
	}{
		{name: "valid market order", mutate: func(r *OrderRequest) {}, wantErr: false},
		{name: "missing symbol", mutate: func(r *OrderRequest) { r.Symbol = "" }, wantErr: true},
		{name: "missing id", mutate: func(r *OrderRequest) { r.ID = "" }, wantErr: true},
		{name: "non uuid id", mutate: func(r *OrderRequest) { r.ID = "order-1" }, wantErr: true},
		{name: "zero quantity", mutate: func(r *OrderRequest) { r.Quantity = 0 }, wantErr: true},
		{name: "nan quantity", mutate: func(r *OrderRequest) { r.Quantity = math.NaN() }, wantErr: true},
		{name: "bad kind", mutate: func(r *OrderRequest) { r.Spec.Kind = "TRAILING" }, wantErr: true},
		{
			name: "zero quantity with target percent",
			mutate: func(r *OrderRequest) {
				r.Quantity = 0
				r.TargetPercent = optional.Some(0.5)
			},
			wantErr: false,
		},
		{name: "sell quantity", mutate: func(r *OrderRequest) { r.Quantity = -10 }, wantErr: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(&req)
			err := req.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestKindSpecConstructors(t *testing.T) {
	assert.Equal(t, OrderKindMarket, Market().Kind)

	limit := Limit(-0.01)
	assert.Equal(t, OrderKindLimit, limit.Kind)
	assert.Equal(t, -0.01, limit.LimitOffset)

	stop := Stop(-0.05)
	assert.Equal(t, OrderKindStop, stop.Kind)
	assert.Equal(t, -0.05, stop.StopOffset)

	sl := StopLimit(0.02, 0.03)
	assert.Equal(t, OrderKindStopLimit, sl.Kind)
	assert.Equal(t, 0.02, sl.StopOffset)
	assert.Equal(t, 0.03, sl.LimitOffset)
}

func TestFillNotional(t *testing.T) {
	fill := Fill{Quantity: -10, Price: 101.5}
	assert.InDelta(t, 1015.0, fill.Notional(), 1e-9)
}

func TestSubmitResultRejected(t *testing.T) {
	res := SubmitResult{Status: OrderStatusRejected, Reason: RejectReasonInsufficientFunds}
	assert.True(t, res.Rejected())
	assert.False(t, SubmitResult{Status: OrderStatusFilled}.Rejected())
}

func TestUndefinedSentinel(t *testing.T) {
	assert.True(t, IsUndefined(Undefined()))
	assert.False(t, IsUndefined(0))
}

func TestWriteStats(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stats.yaml")

	record := StatsRecord{
		ID:          "run_1",
		TotalReturn: 0.1,
		Sharpe:      Undefined(),
	}
	require.NoError(t, WriteStats(path, record))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "total_return: 0.1")
	assert.Contains(t, string(data), ".nan")
}

func TestParseTimeframe(t *testing.T) {
	tf, err := ParseTimeframe("day")
	require.NoError(t, err)
	assert.Equal(t, TimeframeDay, tf)
	assert.Equal(t, 24*time.Hour, tf.Duration())

	_, err = ParseTimeframe("hour")
	assert.Error(t, err)
}
