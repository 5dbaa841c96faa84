package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"
)

// OrderSide represents the direction of an order (buy or sell).
type OrderSide int

// Order side constants define the direction of a trade.
const (
	// SideBuy indicates an order to purchase an asset.
	SideBuy OrderSide = iota
	// SideSell indicates an order to sell an asset.
	SideSell
)

// String returns the string representation of the order side ("BUY" or "SELL").
func (s OrderSide) String() string {
	if s < 0 || s > SideSell {
		return "UNKNOWN"
	}
	return [...]string{"BUY", "SELL"}[s]
}

// ParseOrderSide converts an exchange side string to an OrderSide.
func ParseOrderSide(s string) (OrderSide, error) {
	switch strings.ToUpper(s) {
	case "BUY":
		return SideBuy, nil
	case "SELL":
		return SideSell, nil
	}
	return 0, fmt.Errorf("unknown order side %q", s)
}

// MarshalJSON implements json.Marshaler for OrderSide.
func (s OrderSide) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for OrderSide.
// It accepts both uppercase and lowercase formats.
func (s *OrderSide) UnmarshalJSON(data []byte) error {
	v, err := ParseOrderSide(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// OrderType represents the type of order to place on an exchange.
type OrderType int

// Order type constants define how an order is executed.
const (
	// TypeMarket executes immediately at the best available price.
	TypeMarket OrderType = iota
	// TypeLimit executes at a specified price or better.
	TypeLimit
	// TypeOther covers conditional types the client reads back but never places.
	TypeOther
)

// String returns the string representation of the order type.
func (t OrderType) String() string {
	switch t {
	case TypeMarket:
		return "MARKET"
	case TypeLimit:
		return "LIMIT"
	}
	return "OTHER"
}

// ParseOrderType converts an exchange type string to an OrderType.
// Conditional types such as STOP_LOSS_LIMIT map to TypeOther.
func ParseOrderType(s string) OrderType {
	switch strings.ToUpper(s) {
	case "MARKET":
		return TypeMarket
	case "LIMIT":
		return TypeLimit
	}
	return TypeOther
}

// MarshalJSON implements json.Marshaler for OrderType.
func (t OrderType) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for OrderType.
func (t *OrderType) UnmarshalJSON(data []byte) error {
	*t = ParseOrderType(strings.Trim(string(data), `"`))
	return nil
}

// OrderStatus represents the current state of an order as reported by the exchange.
type OrderStatus int

// Order status constants define the lifecycle state of an order.
const (
	// StatusUnknown is the zero value and any status string the client does not recognize.
	StatusUnknown OrderStatus = iota
	// StatusNew indicates the order has been accepted by the exchange.
	StatusNew
	// StatusPartiallyFilled indicates the order has been partially filled.
	StatusPartiallyFilled
	// StatusFilled indicates the order has been completely filled.
	StatusFilled
	// StatusPendingCancel indicates a cancel request is being processed.
	StatusPendingCancel
	// StatusCanceled indicates the order has been canceled.
	StatusCanceled
	// StatusRejected indicates the order was rejected by the exchange.
	StatusRejected
	// StatusExpired indicates the order has expired.
	StatusExpired
)

var orderStatusNames = [...]string{
	"UNKNOWN", "NEW", "PARTIALLY_FILLED", "FILLED", "PENDING_CANCEL", "CANCELED", "REJECTED", "EXPIRED",
}

// String returns the string representation of the order status.
func (s OrderStatus) String() string {
	if s < 0 || int(s) >= len(orderStatusNames) {
		return "UNKNOWN"
	}
	return orderStatusNames[s]
}

// ParseOrderStatus converts an exchange status string to an OrderStatus.
func ParseOrderStatus(s string) OrderStatus {
	up := strings.ToUpper(s)
	for i, name := range orderStatusNames {
		if name == up {
			return OrderStatus(i)
		}
	}
	return StatusUnknown
}

// IsTerminal returns true if the order is in a terminal state (no further changes possible).
func (s OrderStatus) IsTerminal() bool {
	return s == StatusFilled || s == StatusCanceled || s == StatusRejected || s == StatusExpired
}

// MarshalJSON implements json.Marshaler for OrderStatus.
func (s OrderStatus) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for OrderStatus.
func (s *OrderStatus) UnmarshalJSON(data []byte) error {
	*s = ParseOrderStatus(strings.Trim(string(data), `"`))
	return nil
}

// TimeInForce defines how long an order remains active.
type TimeInForce int

// Time in force constants define order lifetime behavior.
const (
	// GTC (Good Till Canceled) keeps the order active until filled or canceled.
	GTC TimeInForce = iota
	// IOC (Immediate Or Cancel) requires immediate execution; unfilled portion is canceled.
	IOC
	// FOK (Fill Or Kill) requires complete immediate execution or cancellation.
	FOK
)

// String returns the string representation of time in force.
func (t TimeInForce) String() string {
	if t < 0 || t > FOK {
		return "GTC"
	}
	return [...]string{"GTC", "IOC", "FOK"}[t]
}

// ParseTimeInForce converts an exchange string to a TimeInForce.
func ParseTimeInForce(s string) (TimeInForce, error) {
	switch strings.ToUpper(s) {
	case "GTC":
		return GTC, nil
	case "IOC":
		return IOC, nil
	case "FOK":
		return FOK, nil
	}
	return GTC, fmt.Errorf("unknown time in force %q", s)
}

// MarshalJSON implements json.Marshaler for TimeInForce.
func (t TimeInForce) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for TimeInForce.
func (t *TimeInForce) UnmarshalJSON(data []byte) error {
	v, err := ParseTimeInForce(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Ticker represents 24-hour rolling statistics for a trading pair.
type Ticker struct {
	// Symbol is the exchange symbol (e.g., "BTCUSDT").
	Symbol string `json:"symbol"`
	// Bid is the highest price a buyer is willing to pay.
	Bid apd.Decimal `json:"bid"`
	// Ask is the lowest price a seller is willing to accept.
	Ask apd.Decimal `json:"ask"`
	// Last is the price of the most recent trade.
	Last apd.Decimal `json:"last"`
	// High is the highest price in the last 24 hours.
	High apd.Decimal `json:"high"`
	// Low is the lowest price in the last 24 hours.
	Low apd.Decimal `json:"low"`
	// Volume is the total trading volume in the last 24 hours.
	Volume apd.Decimal `json:"volume"`
	// PriceChange is the absolute change over the window.
	PriceChange apd.Decimal `json:"price_change"`
	// PriceChangePercent is the relative change over the window.
	PriceChangePercent apd.Decimal `json:"price_change_percent"`
	// Timestamp is the close time of the window.
	Timestamp time.Time `json:"timestamp"`
}

// Order is the client view of an exchange order. It is only ever built from a server
// read; the client never advances its state locally.
type Order struct {
	// OrderID is the exchange-assigned order identifier.
	OrderID int64 `json:"order_id"`
	// ClientOrderID is the client-assigned order identifier.
	ClientOrderID string `json:"client_order_id"`
	// Symbol is the trading pair for this order.
	Symbol string `json:"symbol"`
	// Side indicates whether this is a buy or sell order.
	Side OrderSide `json:"side"`
	// Type defines how the order executes.
	Type OrderType `json:"type"`
	// Price is the limit price; zero for market orders.
	Price apd.Decimal `json:"price"`
	// Quantity is the original order quantity.
	Quantity apd.Decimal `json:"quantity"`
	// FilledQuantity is the amount that has been executed.
	FilledQuantity apd.Decimal `json:"filled_quantity"`
	// Status is the state reported by the exchange.
	Status OrderStatus `json:"status"`
	// RawStatus keeps the exchange string when Status is StatusUnknown.
	RawStatus string `json:"raw_status,omitempty"`
	// TimeInForce defines how long the order remains active.
	TimeInForce TimeInForce `json:"time_in_force"`
	// CreatedAt is when the order was accepted.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the order was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// Balance represents account balance for a single asset.
type Balance struct {
	// Asset is the currency or token symbol (e.g., "BTC", "USDT").
	Asset string `json:"asset"`
	// Free is the available balance for trading.
	Free apd.Decimal `json:"free"`
	// Locked is the balance locked in open orders.
	Locked apd.Decimal `json:"locked"`
}

// Account is the signed account snapshot.
type Account struct {
	CanTrade    bool      `json:"can_trade"`
	CanWithdraw bool      `json:"can_withdraw"`
	CanDeposit  bool      `json:"can_deposit"`
	Balances    []Balance `json:"balances"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Trade represents a single public trade.
type Trade struct {
	// ID is the exchange-assigned trade identifier.
	ID int64 `json:"id"`
	// Symbol is the trading pair for this trade.
	Symbol string `json:"symbol"`
	// Side is the taker side, derived from the buyer-maker flag.
	Side OrderSide `json:"side"`
	// Price is the execution price of this trade.
	Price apd.Decimal `json:"price"`
	// Quantity is the amount executed in this trade.
	Quantity apd.Decimal `json:"quantity"`
	// QuoteQuantity is price times quantity.
	QuoteQuantity apd.Decimal `json:"quote_quantity"`
	// Timestamp is when the trade was executed.
	Timestamp time.Time `json:"timestamp"`
}

// Kline represents a candlestick/OHLCV data point for a time period.
type Kline struct {
	// Symbol is the trading pair for this kline.
	Symbol string `json:"symbol"`
	// OpenTime is the start of the candlestick period.
	OpenTime time.Time `json:"open_time"`
	// Open is the price at the start of the period.
	Open apd.Decimal `json:"open"`
	// High is the highest price during the period.
	High apd.Decimal `json:"high"`
	// Low is the lowest price during the period.
	Low apd.Decimal `json:"low"`
	// Close is the price at the end of the period.
	Close apd.Decimal `json:"close"`
	// Volume is the total trading volume during the period.
	Volume apd.Decimal `json:"volume"`
	// CloseTime is the end of the candlestick period.
	CloseTime time.Time `json:"close_time"`
	// QuoteVolume is the total value traded in quote currency.
	QuoteVolume apd.Decimal `json:"quote_volume"`
	// NumTrades is the number of trades executed during the period.
	NumTrades int64 `json:"num_trades"`
}

// OrderBookLevel represents a single price level in the order book.
type OrderBookLevel struct {
	// Price is the limit price for this level.
	Price apd.Decimal `json:"price"`
	// Quantity is the total quantity available at this price.
	Quantity apd.Decimal `json:"quantity"`
}

// OrderBook represents a depth snapshot for a trading pair.
type OrderBook struct {
	// Symbol is the trading pair for this order book.
	Symbol string `json:"symbol"`
	// LastUpdateID is the exchange sequence number of the snapshot.
	LastUpdateID int64 `json:"last_update_id"`
	// Bids are buy levels in the order the exchange returned them.
	Bids []OrderBookLevel `json:"bids"`
	// Asks are sell levels in the order the exchange returned them.
	Asks []OrderBookLevel `json:"asks"`
}

// SymbolInfo describes one tradable symbol from exchange info.
type SymbolInfo struct {
	Symbol     string   `json:"symbol"`
	Status     string   `json:"status"`
	BaseAsset  string   `json:"base_asset"`
	QuoteAsset string   `json:"quote_asset"`
	OrderTypes []string `json:"order_types"`
}

// ExchangeInfo is the trading rules snapshot.
type ExchangeInfo struct {
	Timezone   string       `json:"timezone"`
	ServerTime time.Time    `json:"server_time"`
	Symbols    []SymbolInfo `json:"symbols"`
}
