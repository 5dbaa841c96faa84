package order

import (
	"testing"

	"github.com/cockroachdb/apd/v3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeprobe/pkg/core"
	"tradeprobe/pkg/exchange"
)

func TestBuilder_Build(t *testing.T) {
	tests := []struct {
		name       string
		build      func() (*exchange.OrderRequest, error)
		wantErr    bool
		errContain string
	}{
		{
			name: "valid limit buy order",
			build: func() (*exchange.OrderRequest, error) {
				return NewBuilder("BTCUSDT").Buy().Limit().Price("20000").Quantity("0.001").Build()
			},
		},
		{
			name: "valid market sell order",
			build: func() (*exchange.OrderRequest, error) {
				return NewBuilder("ETHUSDT").Sell().Market().Quantity("1.5").Build()
			},
		},
		{
			name: "valid market quote order",
			build: func() (*exchange.OrderRequest, error) {
				return NewBuilder("BNBUSDT").Buy().Market().QuoteQuantity("10").Build()
			},
		},
		{
			name: "valid order with decimal price",
			build: func() (*exchange.OrderRequest, error) {
				var price apd.Decimal
				_, _, _ = price.SetString("20000.50")
				var qty apd.Decimal
				_, _, _ = qty.SetString("0.1")
				return NewBuilder("BTCUSDT").Buy().Limit().PriceDecimal(price).QuantityDecimal(qty).IOC().Build()
			},
		},
		{
			name: "invalid price string",
			build: func() (*exchange.OrderRequest, error) {
				return NewBuilder("BTCUSDT").Buy().Limit().Price("abc").Quantity("1").Build()
			},
			wantErr:    true,
			errContain: "parse price",
		},
		{
			name: "first parse error wins",
			build: func() (*exchange.OrderRequest, error) {
				return NewBuilder("BTCUSDT").Buy().Limit().Quantity("x").Price("y").Build()
			},
			wantErr:    true,
			errContain: "parse quantity",
		},
		{
			name: "limit without price",
			build: func() (*exchange.OrderRequest, error) {
				return NewBuilder("BTCUSDT").Buy().Limit().Quantity("1").Build()
			},
			wantErr:    true,
			errContain: "requires a price",
		},
		{
			name: "market with both quantities",
			build: func() (*exchange.OrderRequest, error) {
				return NewBuilder("BTCUSDT").Buy().Market().Quantity("1").QuoteQuantity("10").Build()
			},
			wantErr:    true,
			errContain: "exactly one",
		},
		{
			name: "market with time in force",
			build: func() (*exchange.OrderRequest, error) {
				return NewBuilder("BTCUSDT").Buy().Market().Quantity("1").FOK().Build()
			},
			wantErr:    true,
			errContain: "time in force",
		},
		{
			name: "empty symbol",
			build: func() (*exchange.OrderRequest, error) {
				return NewBuilder("").Buy().Market().Quantity("1").Build()
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := tt.build()
			if tt.wantErr {
				require.Error(t, err)
				if tt.errContain != "" {
					assert.Contains(t, err.Error(), tt.errContain)
				}
				assert.Nil(t, req)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, req)
		})
	}
}

func TestBuilder_Fields(t *testing.T) {
	req, err := NewBuilder("BTCUSDT").
		Sell().
		Limit().
		Price("20000").
		Quantity("0.001").
		ClientOrderID("client-123").
		Build()
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", req.Symbol)
	assert.Equal(t, core.SideSell, req.Side)
	assert.Equal(t, core.TypeLimit, req.Type)
	assert.Equal(t, core.GTC, req.TimeInForce)
	assert.Equal(t, "20000", req.Price.Text('f'))
	assert.Equal(t, "0.001", req.Quantity.Text('f'))
	assert.Nil(t, req.QuoteOrderQty)
	assert.Equal(t, "client-123", req.ClientOrderID)
}

func TestBuilder_ClientOrderID(t *testing.T) {
	req, err := NewBuilder("BTCUSDT").Buy().Market().Quantity("1").Build()
	require.NoError(t, err)
	_, err = uuid.Parse(req.ClientOrderID)
	assert.NoError(t, err)

	req, err = NewBuilder("BTCUSDT").Buy().Market().Quantity("1").WithoutClientOrderID().Build()
	require.NoError(t, err)
	assert.Empty(t, req.ClientOrderID)
}

func TestBuilder_BuildReturnsIndependentRequests(t *testing.T) {
	b := NewBuilder("BTCUSDT").Buy().Market().Quantity("1")
	first, err := b.Build()
	require.NoError(t, err)
	second, err := b.Build()
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.NotEqual(t, first.ClientOrderID, second.ClientOrderID)
}
