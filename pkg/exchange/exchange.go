package exchange

import (
	"context"
	"fmt"

	"github.com/cockroachdb/apd/v3"
	"github.com/go-playground/validator/v10"

	"tradeprobe/pkg/core"
)

// Exchange is the REST operation surface of a spot exchange. Every call returns the raw
// response snapshot; 4xx and 5xx statuses are returned as responses, not errors, so
// callers can assert on exact status and error codes. Errors are reserved for
// configuration faults and transport failures.
type Exchange interface {
	Name() string

	Ping(ctx context.Context) (*core.Response, error)
	ServerTime(ctx context.Context) (*core.Response, error)
	// ExchangeInfo returns rules for one symbol, or all symbols when symbol is empty.
	ExchangeInfo(ctx context.Context, symbol string) (*core.Response, error)
	OrderBook(ctx context.Context, symbol string, opts ...Option) (*core.Response, error)
	RecentTrades(ctx context.Context, symbol string, opts ...Option) (*core.Response, error)
	Klines(ctx context.Context, symbol, interval string, opts ...Option) (*core.Response, error)
	// Ticker24hr returns statistics for one symbol, or all symbols when symbol is empty.
	Ticker24hr(ctx context.Context, symbol string) (*core.Response, error)

	AccountInfo(ctx context.Context) (*core.Response, error)
	TestOrder(ctx context.Context, req *OrderRequest) (*core.Response, error)
	CreateOrder(ctx context.Context, req *OrderRequest) (*core.Response, error)
	GetOrder(ctx context.Context, symbol string, orderID int64) (*core.Response, error)
	CancelOrder(ctx context.Context, symbol string, orderID int64) (*core.Response, error)
	// OpenOrders returns open orders for one symbol, or all symbols when symbol is empty.
	OpenOrders(ctx context.Context, symbol string) (*core.Response, error)
	AllOrders(ctx context.Context, symbol string, opts ...Option) (*core.Response, error)

	// Do sends an arbitrary call through the same session, for probes outside the typed surface.
	Do(ctx context.Context, method, path string, params *core.Params, signed bool) (*core.Response, error)

	HasCredentials() bool
	Close() error
}

// Factory builds a fresh client, one per burst worker.
type Factory func() (Exchange, error)

// OrderRequest contains the parameters of a new or test order. Nil decimals are
// omitted from the request.
type OrderRequest struct {
	Symbol        string `validate:"required,uppercase,alphanum"`
	Side          core.OrderSide
	Type          core.OrderType
	Quantity      *apd.Decimal
	QuoteOrderQty *apd.Decimal
	Price         *apd.Decimal
	TimeInForce   core.TimeInForce
	ClientOrderID string `validate:"omitempty,max=36,printascii"`
}

var validate = validator.New()

// Validate enforces the per-type parameter rules: LIMIT needs a quantity and a price,
// MARKET needs exactly one of quantity or quoteOrderQty. Sign checks are left to the
// exchange so negative values can still be probed.
func (r *OrderRequest) Validate() error {
	if r == nil {
		return invalidRequest("order request is nil")
	}
	if err := validate.Struct(r); err != nil {
		return invalidRequest(err.Error())
	}
	if r.Side != core.SideBuy && r.Side != core.SideSell {
		return invalidRequest(fmt.Sprintf("invalid side %d", r.Side))
	}

	switch r.Type {
	case core.TypeLimit:
		if r.Price == nil {
			return invalidRequest("LIMIT order requires a price")
		}
		if r.Quantity == nil {
			return invalidRequest("LIMIT order requires a quantity")
		}
		if r.QuoteOrderQty != nil {
			return invalidRequest("LIMIT order does not accept quoteOrderQty")
		}
	case core.TypeMarket:
		if (r.Quantity == nil) == (r.QuoteOrderQty == nil) {
			return invalidRequest("MARKET order requires exactly one of quantity or quoteOrderQty")
		}
		if r.Price != nil {
			return invalidRequest("MARKET order does not accept a price")
		}
	default:
		return invalidRequest(fmt.Sprintf("unsupported order type %s", r.Type))
	}
	return nil
}

func invalidRequest(msg string) error {
	return core.NewExchangeError("client", core.ErrorTypeValidation, 0, msg).WithCode(core.ErrCodeInvalidOrderRequest)
}
