package binance

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"tradeprobe/pkg/core"
	"tradeprobe/pkg/exchange"
)

const (
	ExchangeName  = "binance"
	ProductionURL = "https://api.binance.com"
	TestnetURL    = core.TestnetURL
)

// Endpoint defaults for list calls.
const (
	DefaultDepthLimit  = 100
	DefaultTradesLimit = 500
	DefaultKlinesLimit = 500
	DefaultOrdersLimit = 500
)

// Protocol builds Binance spot requests. Parameter order follows the exchange
// documentation and is preserved on the wire.
type Protocol struct{}

// NewProtocol creates a new Binance protocol instance.
func NewProtocol() *Protocol {
	return &Protocol{}
}

// Name returns the protocol identifier "binance".
func (p *Protocol) Name() string {
	return ExchangeName
}

// Version returns the Binance REST API version string.
func (p *Protocol) Version() string {
	return "3"
}

func (p *Protocol) Ping() *core.Request {
	return core.NewRequest(core.OpPing)
}

func (p *Protocol) ServerTime() *core.Request {
	return core.NewRequest(core.OpServerTime)
}

func (p *Protocol) ExchangeInfo(symbol string) *core.Request {
	req := core.NewRequest(core.OpExchangeInfo)
	if symbol != "" {
		req.Set("symbol", formatSymbol(symbol))
		req.SetWeight(2)
	}
	return req
}

func (p *Protocol) OrderBook(symbol string, o *exchange.Options) *core.Request {
	limit := o.LimitOr(DefaultDepthLimit)
	return core.NewRequest(core.OpOrderBook).
		Set("symbol", formatSymbol(symbol)).
		Set("limit", limit).
		SetWeight(depthWeight(limit))
}

// depthWeight follows the published weight table for /api/v3/depth.
func depthWeight(limit int) int {
	switch {
	case limit <= 100:
		return 5
	case limit <= 500:
		return 25
	case limit <= 1000:
		return 50
	default:
		return 250
	}
}

func (p *Protocol) RecentTrades(symbol string, o *exchange.Options) *core.Request {
	return core.NewRequest(core.OpRecentTrades).
		Set("symbol", formatSymbol(symbol)).
		Set("limit", o.LimitOr(DefaultTradesLimit))
}

func (p *Protocol) Klines(symbol, interval string, o *exchange.Options) *core.Request {
	req := core.NewRequest(core.OpKlines).
		Set("symbol", formatSymbol(symbol)).
		Set("interval", interval).
		Set("limit", o.LimitOr(DefaultKlinesLimit))
	if !o.StartTime.IsZero() {
		req.Set("startTime", o.StartTime.UnixMilli())
	}
	if !o.EndTime.IsZero() {
		req.Set("endTime", o.EndTime.UnixMilli())
	}
	return req
}

func (p *Protocol) Ticker24hr(symbol string) *core.Request {
	req := core.NewRequest(core.OpTicker24hr)
	if symbol == "" {
		return req.SetWeight(80)
	}
	return req.Set("symbol", formatSymbol(symbol))
}

func (p *Protocol) AccountInfo() *core.Request {
	return core.NewRequest(core.OpAccountInfo)
}

// NewOrder builds a create or test order request: symbol, side, type, then quantity or
// quoteOrderQty, then timeInForce and price for LIMIT orders.
func (p *Protocol) NewOrder(op core.Operation, r *exchange.OrderRequest) (*core.Request, error) {
	if op != core.OpCreateOrder && op != core.OpTestOrder {
		return nil, fmt.Errorf("operation %s does not place orders", op)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	req := core.NewRequest(op).
		Set("symbol", formatSymbol(r.Symbol)).
		Set("side", r.Side.String()).
		Set("type", r.Type.String())

	if r.Quantity != nil {
		req.Set("quantity", r.Quantity)
	} else if r.QuoteOrderQty != nil {
		req.Set("quoteOrderQty", r.QuoteOrderQty)
	}

	if r.Type == core.TypeLimit {
		req.Set("timeInForce", r.TimeInForce.String())
		req.Set("price", r.Price)
	}

	if r.ClientOrderID != "" {
		req.Set("newClientOrderId", r.ClientOrderID)
	}
	return req, nil
}

func (p *Protocol) GetOrder(symbol string, orderID int64) *core.Request {
	return core.NewRequest(core.OpGetOrder).
		Set("symbol", formatSymbol(symbol)).
		Set("orderId", orderID)
}

func (p *Protocol) CancelOrder(symbol string, orderID int64) *core.Request {
	return core.NewRequest(core.OpCancelOrder).
		Set("symbol", formatSymbol(symbol)).
		Set("orderId", orderID)
}

func (p *Protocol) OpenOrders(symbol string) *core.Request {
	req := core.NewRequest(core.OpOpenOrders)
	if symbol == "" {
		return req.SetWeight(80)
	}
	return req.Set("symbol", formatSymbol(symbol))
}

func (p *Protocol) AllOrders(symbol string, o *exchange.Options) *core.Request {
	req := core.NewRequest(core.OpAllOrders).
		Set("symbol", formatSymbol(symbol))
	if o.FromID > 0 {
		req.Set("orderId", o.FromID)
	}
	if !o.StartTime.IsZero() {
		req.Set("startTime", o.StartTime.UnixMilli())
	}
	if !o.EndTime.IsZero() {
		req.Set("endTime", o.EndTime.UnixMilli())
	}
	return req.Set("limit", o.LimitOr(DefaultOrdersLimit))
}

// formatSymbol accepts both "BTC/USDT" and "BTCUSDT".
func formatSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "")
}

// ErrorFromResponse converts a non-2xx response into an *core.ExchangeError.
// It returns nil for 2xx responses. The dispatcher never calls this; callers decide
// when a status is an error.
func ErrorFromResponse(resp *core.Response) error {
	if resp == nil || resp.IsSuccess() {
		return nil
	}

	apiErr, hasPayload := resp.APIError()
	errType := mapStatus(resp.StatusCode)
	if hasPayload && apiErr.Code != 0 {
		if t := mapBinanceErrorCode(apiErr.Code); t != core.ErrorTypeUnknown && !resp.IsRateLimited() {
			errType = t
		}
	}

	msg := apiErr.Msg
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	e := core.NewExchangeError("binance", errType, resp.StatusCode, msg)
	if hasPayload && apiErr.Code != 0 {
		e.Code = strconv.Itoa(apiErr.Code)
	}
	if d, ok := resp.RetryAfter(); ok {
		e.RetryAfter = d
	}
	return e
}

func mapStatus(status int) core.ErrorType {
	switch {
	case status == http.StatusTooManyRequests || status == http.StatusTeapot:
		return core.ErrorTypeRateLimit
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return core.ErrorTypeAuthentication
	case status == http.StatusNotFound:
		return core.ErrorTypeNotFound
	case status >= 500:
		return core.ErrorTypeServerError
	case status >= 400:
		return core.ErrorTypeValidation
	}
	return core.ErrorTypeUnknown
}

func mapBinanceErrorCode(code int) core.ErrorType {
	switch code {
	case -1003, -1015:
		return core.ErrorTypeRateLimit
	case -1002, -1022, -2014, -2015:
		return core.ErrorTypeAuthentication
	case -1021:
		return core.ErrorTypeValidation
	case -2011, -2013:
		return core.ErrorTypeNotFound
	case -2010:
		return core.ErrorTypeInvalidOrder
	default:
		if code <= -1000 && code > -2000 {
			return core.ErrorTypeValidation
		}
		if code <= -2000 && code > -3000 {
			return core.ErrorTypeInvalidOrder
		}
		return core.ErrorTypeUnknown
	}
}
