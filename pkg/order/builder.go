// Package order provides a fluent builder for exchange order requests.
package order

import (
	"fmt"

	"github.com/cockroachdb/apd/v3"
	"github.com/google/uuid"

	"tradeprobe/pkg/core"
	"tradeprobe/pkg/exchange"
)

// Builder provides a fluent interface for constructing order requests.
// It keeps the first parse error and reports it on Build.
//
// Example:
//
//	req, err := order.NewBuilder("BTCUSDT").
//	    Buy().
//	    Limit().
//	    Price("20000").
//	    Quantity("0.001").
//	    Build()
type Builder struct {
	req         exchange.OrderRequest
	tifSet      bool
	autoID      bool
	err         error
	newClientID func() string
}

// NewBuilder creates a new builder for the given symbol. Orders get a random
// client order id unless one is set or WithoutClientOrderID is called.
func NewBuilder(symbol string) *Builder {
	return &Builder{
		req:         exchange.OrderRequest{Symbol: symbol},
		autoID:      true,
		newClientID: uuid.NewString,
	}
}

// Side sets the order side.
func (b *Builder) Side(side core.OrderSide) *Builder {
	b.req.Side = side
	return b
}

// Buy sets the order side to buy.
func (b *Builder) Buy() *Builder {
	return b.Side(core.SideBuy)
}

// Sell sets the order side to sell.
func (b *Builder) Sell() *Builder {
	return b.Side(core.SideSell)
}

// Type sets the order type.
func (b *Builder) Type(orderType core.OrderType) *Builder {
	b.req.Type = orderType
	return b
}

// Market sets the order type to market.
func (b *Builder) Market() *Builder {
	return b.Type(core.TypeMarket)
}

// Limit sets the order type to limit.
func (b *Builder) Limit() *Builder {
	return b.Type(core.TypeLimit)
}

// Price sets the limit price from its decimal string form.
func (b *Builder) Price(price string) *Builder {
	b.req.Price = b.parse("price", price)
	return b
}

// PriceDecimal sets the limit price.
func (b *Builder) PriceDecimal(price apd.Decimal) *Builder {
	b.req.Price = new(apd.Decimal).Set(&price)
	return b
}

// Quantity sets the base asset quantity from its decimal string form.
func (b *Builder) Quantity(qty string) *Builder {
	b.req.Quantity = b.parse("quantity", qty)
	return b
}

// QuantityDecimal sets the base asset quantity.
func (b *Builder) QuantityDecimal(qty apd.Decimal) *Builder {
	b.req.Quantity = new(apd.Decimal).Set(&qty)
	return b
}

// QuoteQuantity sets quoteOrderQty for market orders.
func (b *Builder) QuoteQuantity(qty string) *Builder {
	b.req.QuoteOrderQty = b.parse("quoteOrderQty", qty)
	return b
}

// TimeInForce sets the time-in-force policy for limit orders.
func (b *Builder) TimeInForce(tif core.TimeInForce) *Builder {
	b.req.TimeInForce = tif
	b.tifSet = true
	return b
}

// GTC sets the time-in-force to Good-Till-Cancelled.
func (b *Builder) GTC() *Builder {
	return b.TimeInForce(core.GTC)
}

// IOC sets the time-in-force to Immediate-Or-Cancel.
func (b *Builder) IOC() *Builder {
	return b.TimeInForce(core.IOC)
}

// FOK sets the time-in-force to Fill-Or-Kill.
func (b *Builder) FOK() *Builder {
	return b.TimeInForce(core.FOK)
}

// ClientOrderID sets a client-assigned identifier for order tracking.
func (b *Builder) ClientOrderID(id string) *Builder {
	b.req.ClientOrderID = id
	return b
}

// WithoutClientOrderID leaves newClientOrderId out so the exchange assigns one.
func (b *Builder) WithoutClientOrderID() *Builder {
	b.autoID = false
	b.req.ClientOrderID = ""
	return b
}

func (b *Builder) parse(field, s string) *apd.Decimal {
	d, _, err := apd.NewFromString(s)
	if err != nil {
		if b.err == nil {
			b.err = fmt.Errorf("parse %s: %w", field, err)
		}
		return nil
	}
	return d
}

// Build validates and returns the request. Limit orders default to GTC.
func (b *Builder) Build() (*exchange.OrderRequest, error) {
	if b.err != nil {
		return nil, b.err
	}

	req := b.req
	if req.Type == core.TypeMarket && b.tifSet {
		return nil, fmt.Errorf("market orders do not take a time in force")
	}
	if req.ClientOrderID == "" && b.autoID {
		req.ClientOrderID = b.newClientID()
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}
