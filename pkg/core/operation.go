package core

import "net/http"

// Operation represents a REST call supported by the client.
type Operation int

// Operation constants define all supported exchange operations.
const (
	// OpPing tests connectivity.
	OpPing Operation = iota
	// OpServerTime reads the exchange clock.
	OpServerTime
	// OpExchangeInfo reads trading rules and symbol metadata.
	OpExchangeInfo
	// OpOrderBook retrieves the current order book depth.
	OpOrderBook
	// OpRecentTrades retrieves recent public trades for a symbol.
	OpRecentTrades
	// OpKlines retrieves candlestick/OHLCV data.
	OpKlines
	// OpTicker24hr retrieves rolling 24 hour statistics.
	OpTicker24hr
	// OpAccountInfo retrieves account balances and permissions.
	OpAccountInfo
	// OpTestOrder validates an order without placing it.
	OpTestOrder
	// OpCreateOrder submits a new order to the exchange.
	OpCreateOrder
	// OpGetOrder retrieves details of a specific order.
	OpGetOrder
	// OpCancelOrder cancels an existing order.
	OpCancelOrder
	// OpOpenOrders retrieves all open orders.
	OpOpenOrders
	// OpAllOrders retrieves order history for a symbol.
	OpAllOrders
)

// Endpoint is the wire definition of an operation.
type Endpoint struct {
	Name   string
	Method string
	Path   string
	Signed bool
	// Weight is the request weight charged by the exchange, used for client-side pacing.
	Weight int
}

var endpoints = [...]Endpoint{
	OpPing:         {"PING", http.MethodGet, "/api/v3/ping", false, 1},
	OpServerTime:   {"SERVER_TIME", http.MethodGet, "/api/v3/time", false, 1},
	OpExchangeInfo: {"EXCHANGE_INFO", http.MethodGet, "/api/v3/exchangeInfo", false, 20},
	OpOrderBook:    {"ORDER_BOOK", http.MethodGet, "/api/v3/depth", false, 5},
	OpRecentTrades: {"RECENT_TRADES", http.MethodGet, "/api/v3/trades", false, 25},
	OpKlines:       {"KLINES", http.MethodGet, "/api/v3/klines", false, 2},
	OpTicker24hr:   {"TICKER_24HR", http.MethodGet, "/api/v3/ticker/24hr", false, 2},
	OpAccountInfo:  {"ACCOUNT_INFO", http.MethodGet, "/api/v3/account", true, 20},
	OpTestOrder:    {"TEST_ORDER", http.MethodPost, "/api/v3/order/test", true, 1},
	OpCreateOrder:  {"CREATE_ORDER", http.MethodPost, "/api/v3/order", true, 1},
	OpGetOrder:     {"GET_ORDER", http.MethodGet, "/api/v3/order", true, 4},
	OpCancelOrder:  {"CANCEL_ORDER", http.MethodDelete, "/api/v3/order", true, 1},
	OpOpenOrders:   {"OPEN_ORDERS", http.MethodGet, "/api/v3/openOrders", true, 6},
	OpAllOrders:    {"ALL_ORDERS", http.MethodGet, "/api/v3/allOrders", true, 20},
}

// Endpoint returns the wire definition of the operation.
func (o Operation) Endpoint() Endpoint {
	if o < 0 || int(o) >= len(endpoints) {
		return Endpoint{Name: "UNKNOWN", Method: http.MethodGet, Weight: 1}
	}
	return endpoints[o]
}

// String returns the string representation of the operation.
func (o Operation) String() string {
	return o.Endpoint().Name
}

// Operations lists every supported operation in declaration order.
func Operations() []Operation {
	ops := make([]Operation, len(endpoints))
	for i := range endpoints {
		ops[i] = Operation(i)
	}
	return ops
}
