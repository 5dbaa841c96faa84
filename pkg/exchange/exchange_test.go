package exchange

import (
	"testing"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/stretchr/testify/assert"

	"tradeprobe/pkg/core"
)

func dec(s string) *apd.Decimal {
	d, _, err := apd.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestOrderRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     *OrderRequest
		wantErr bool
	}{
		{
			name: "limit_ok",
			req:  &OrderRequest{Symbol: "BTCUSDT", Side: core.SideBuy, Type: core.TypeLimit, Quantity: dec("0.001"), Price: dec("20000")},
		},
		{
			name:    "limit_without_price",
			req:     &OrderRequest{Symbol: "BTCUSDT", Side: core.SideBuy, Type: core.TypeLimit, Quantity: dec("0.001")},
			wantErr: true,
		},
		{
			name:    "limit_without_quantity",
			req:     &OrderRequest{Symbol: "BTCUSDT", Side: core.SideBuy, Type: core.TypeLimit, Price: dec("20000")},
			wantErr: true,
		},
		{
			name:    "limit_with_quote_qty",
			req:     &OrderRequest{Symbol: "BTCUSDT", Side: core.SideBuy, Type: core.TypeLimit, Quantity: dec("1"), Price: dec("1"), QuoteOrderQty: dec("10")},
			wantErr: true,
		},
		{
			name: "market_quantity",
			req:  &OrderRequest{Symbol: "BTCUSDT", Side: core.SideSell, Type: core.TypeMarket, Quantity: dec("0.001")},
		},
		{
			name: "market_quote_qty",
			req:  &OrderRequest{Symbol: "BTCUSDT", Side: core.SideBuy, Type: core.TypeMarket, QuoteOrderQty: dec("10")},
		},
		{
			name:    "market_both",
			req:     &OrderRequest{Symbol: "BTCUSDT", Side: core.SideBuy, Type: core.TypeMarket, Quantity: dec("1"), QuoteOrderQty: dec("10")},
			wantErr: true,
		},
		{
			name:    "market_neither",
			req:     &OrderRequest{Symbol: "BTCUSDT", Side: core.SideBuy, Type: core.TypeMarket},
			wantErr: true,
		},
		{
			name:    "market_with_price",
			req:     &OrderRequest{Symbol: "BTCUSDT", Side: core.SideBuy, Type: core.TypeMarket, Quantity: dec("1"), Price: dec("1")},
			wantErr: true,
		},
		{
			name:    "missing_symbol",
			req:     &OrderRequest{Side: core.SideBuy, Type: core.TypeMarket, Quantity: dec("1")},
			wantErr: true,
		},
		{
			name:    "lowercase_symbol",
			req:     &OrderRequest{Symbol: "btcusdt", Side: core.SideBuy, Type: core.TypeMarket, Quantity: dec("1")},
			wantErr: true,
		},
		{
			name:    "invalid_side",
			req:     &OrderRequest{Symbol: "BTCUSDT", Side: core.OrderSide(5), Type: core.TypeMarket, Quantity: dec("1")},
			wantErr: true,
		},
		{
			name:    "unsupported_type",
			req:     &OrderRequest{Symbol: "BTCUSDT", Side: core.SideBuy, Type: core.TypeOther, Quantity: dec("1")},
			wantErr: true,
		},
		{
			name: "negative_quantity_left_to_exchange",
			req:  &OrderRequest{Symbol: "BTCUSDT", Side: core.SideBuy, Type: core.TypeLimit, Quantity: dec("-0.001"), Price: dec("20000")},
		},
		{
			name:    "client_order_id_too_long",
			req:     &OrderRequest{Symbol: "BTCUSDT", Side: core.SideBuy, Type: core.TypeMarket, Quantity: dec("1"), ClientOrderID: "0123456789012345678901234567890123456789"},
			wantErr: true,
		},
		{
			name:    "nil",
			req:     nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, core.IsValidationError(err))
				assert.True(t, core.IsErrorCode(err, core.ErrCodeInvalidOrderRequest))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestApplyOptions(t *testing.T) {
	start := time.UnixMilli(1000)
	end := time.UnixMilli(2000)

	o := ApplyOptions(WithLimit(10), WithTimeRange(start, end), WithFromID(7))

	assert.Equal(t, 10, o.Limit)
	assert.Equal(t, start, o.StartTime)
	assert.Equal(t, end, o.EndTime)
	assert.Equal(t, int64(7), o.FromID)
	assert.Equal(t, 10, o.LimitOr(500))
	assert.Equal(t, 500, ApplyOptions().LimitOr(500))
}
