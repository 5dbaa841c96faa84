package binance

import (
	"fmt"
	"time"

	"github.com/cockroachdb/apd/v3"

	"tradeprobe/pkg/core"
)

// binanceTicker represents the raw 24hr ticker response from Binance API.
type binanceTicker struct {
	Symbol             string      `json:"symbol"`
	PriceChange        apd.Decimal `json:"priceChange"`
	PriceChangePercent apd.Decimal `json:"priceChangePercent"`
	LastPrice          apd.Decimal `json:"lastPrice"`
	HighPrice          apd.Decimal `json:"highPrice"`
	LowPrice           apd.Decimal `json:"lowPrice"`
	Volume             apd.Decimal `json:"volume"`
	BidPrice           apd.Decimal `json:"bidPrice"`
	AskPrice           apd.Decimal `json:"askPrice"`
	CloseTime          int64       `json:"closeTime"`
}

// binanceOrder represents the raw order response from Binance API.
// Create responses carry transactTime, queries carry time and updateTime.
type binanceOrder struct {
	Symbol        string      `json:"symbol"`
	OrderID       int64       `json:"orderId"`
	ClientOrderID string      `json:"clientOrderId"`
	Price         apd.Decimal `json:"price"`
	OrigQty       apd.Decimal `json:"origQty"`
	ExecutedQty   apd.Decimal `json:"executedQty"`
	Status        string      `json:"status"`
	Type          string      `json:"type"`
	Side          string      `json:"side"`
	TimeInForce   string      `json:"timeInForce"`
	TransactTime  int64       `json:"transactTime"`
	Time          int64       `json:"time"`
	UpdateTime    int64       `json:"updateTime"`
}

// binanceBalance represents a single asset balance from Binance API.
type binanceBalance struct {
	Asset  string      `json:"asset"`
	Free   apd.Decimal `json:"free"`
	Locked apd.Decimal `json:"locked"`
}

// binanceAccount represents the account information response from Binance API.
type binanceAccount struct {
	MakerCommission int64            `json:"makerCommission"`
	TakerCommission int64            `json:"takerCommission"`
	CanTrade        bool             `json:"canTrade"`
	CanWithdraw     bool             `json:"canWithdraw"`
	CanDeposit      bool             `json:"canDeposit"`
	UpdateTime      int64            `json:"updateTime"`
	Balances        []binanceBalance `json:"balances"`
}

// binanceTrade represents a public trade from Binance API.
type binanceTrade struct {
	ID           int64       `json:"id"`
	Price        apd.Decimal `json:"price"`
	Qty          apd.Decimal `json:"qty"`
	QuoteQty     apd.Decimal `json:"quoteQty"`
	Time         int64       `json:"time"`
	IsBuyerMaker bool        `json:"isBuyerMaker"`
	IsBestMatch  bool        `json:"isBestMatch"`
}

// binanceOrderBook represents the order book response from Binance API.
type binanceOrderBook struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

// binanceKline represents a kline/candlestick data array from Binance API.
type binanceKline []any

type binanceServerTime struct {
	ServerTime int64 `json:"serverTime"`
}

type binanceSymbol struct {
	Symbol     string   `json:"symbol"`
	Status     string   `json:"status"`
	BaseAsset  string   `json:"baseAsset"`
	QuoteAsset string   `json:"quoteAsset"`
	OrderTypes []string `json:"orderTypes"`
}

type binanceExchangeInfo struct {
	Timezone   string          `json:"timezone"`
	ServerTime int64           `json:"serverTime"`
	Symbols    []binanceSymbol `json:"symbols"`
}

// decode checks the status and unmarshals the body into v.
func decode(resp *core.Response, v any) error {
	if resp == nil {
		return fmt.Errorf("nil response")
	}
	if err := ErrorFromResponse(resp); err != nil {
		return err
	}
	if err := resp.Unmarshal(v); err != nil {
		return fmt.Errorf("decode %d-byte body: %w", len(resp.Body), err)
	}
	return nil
}

// DecodeServerTime extracts serverTime from a /api/v3/time response.
func DecodeServerTime(resp *core.Response) (time.Time, error) {
	var raw binanceServerTime
	if err := decode(resp, &raw); err != nil {
		return time.Time{}, err
	}
	if raw.ServerTime <= 0 {
		return time.Time{}, fmt.Errorf("serverTime missing from response")
	}
	return time.UnixMilli(raw.ServerTime), nil
}

// DecodeTicker decodes a single-symbol 24hr ticker.
func DecodeTicker(resp *core.Response) (*core.Ticker, error) {
	var raw binanceTicker
	if err := decode(resp, &raw); err != nil {
		return nil, err
	}
	return normalizeTicker(&raw), nil
}

func normalizeTicker(data *binanceTicker) *core.Ticker {
	t := &core.Ticker{
		Symbol:             data.Symbol,
		Bid:                data.BidPrice,
		Ask:                data.AskPrice,
		Last:               data.LastPrice,
		High:               data.HighPrice,
		Low:                data.LowPrice,
		Volume:             data.Volume,
		PriceChange:        data.PriceChange,
		PriceChangePercent: data.PriceChangePercent,
	}
	if data.CloseTime > 0 {
		t.Timestamp = time.UnixMilli(data.CloseTime)
	}
	return t
}

// DecodeOrder decodes a create, query or cancel order response.
func DecodeOrder(resp *core.Response) (*core.Order, error) {
	var raw binanceOrder
	if err := decode(resp, &raw); err != nil {
		return nil, err
	}
	return normalizeOrder(&raw), nil
}

// DecodeOrders decodes an openOrders or allOrders response.
func DecodeOrders(resp *core.Response) ([]core.Order, error) {
	var raw []binanceOrder
	if err := decode(resp, &raw); err != nil {
		return nil, err
	}
	orders := make([]core.Order, 0, len(raw))
	for i := range raw {
		orders = append(orders, *normalizeOrder(&raw[i]))
	}
	return orders, nil
}

func normalizeOrder(data *binanceOrder) *core.Order {
	order := &core.Order{
		OrderID:        data.OrderID,
		ClientOrderID:  data.ClientOrderID,
		Symbol:         data.Symbol,
		Type:           core.ParseOrderType(data.Type),
		Status:         core.ParseOrderStatus(data.Status),
		Price:          data.Price,
		Quantity:       data.OrigQty,
		FilledQuantity: data.ExecutedQty,
	}
	if side, err := core.ParseOrderSide(data.Side); err == nil {
		order.Side = side
	}
	if tif, err := core.ParseTimeInForce(data.TimeInForce); err == nil {
		order.TimeInForce = tif
	}
	if order.Status == core.StatusUnknown {
		order.RawStatus = data.Status
	}

	switch {
	case data.TransactTime > 0:
		order.CreatedAt = time.UnixMilli(data.TransactTime)
	case data.Time > 0:
		order.CreatedAt = time.UnixMilli(data.Time)
	}
	if data.UpdateTime > 0 {
		order.UpdatedAt = time.UnixMilli(data.UpdateTime)
	} else {
		order.UpdatedAt = order.CreatedAt
	}
	return order
}

// DecodeAccount decodes a signed /api/v3/account response.
func DecodeAccount(resp *core.Response) (*core.Account, error) {
	var raw binanceAccount
	if err := decode(resp, &raw); err != nil {
		return nil, err
	}
	acct := &core.Account{
		CanTrade:    raw.CanTrade,
		CanWithdraw: raw.CanWithdraw,
		CanDeposit:  raw.CanDeposit,
		Balances:    make([]core.Balance, 0, len(raw.Balances)),
	}
	if raw.UpdateTime > 0 {
		acct.UpdatedAt = time.UnixMilli(raw.UpdateTime)
	}
	for _, b := range raw.Balances {
		acct.Balances = append(acct.Balances, core.Balance{Asset: b.Asset, Free: b.Free, Locked: b.Locked})
	}
	return acct, nil
}

// DecodeTrades decodes a recent trades response.
func DecodeTrades(resp *core.Response, symbol string) ([]core.Trade, error) {
	var raw []binanceTrade
	if err := decode(resp, &raw); err != nil {
		return nil, err
	}
	trades := make([]core.Trade, 0, len(raw))
	for _, t := range raw {
		trade := core.Trade{
			ID:            t.ID,
			Symbol:        symbol,
			Side:          parseSideFromBuyerMaker(t.IsBuyerMaker),
			Price:         t.Price,
			Quantity:      t.Qty,
			QuoteQuantity: t.QuoteQty,
		}
		if t.Time > 0 {
			trade.Timestamp = time.UnixMilli(t.Time)
		}
		trades = append(trades, trade)
	}
	return trades, nil
}

// DecodeOrderBook decodes a depth snapshot. Levels keep the order the exchange sent.
func DecodeOrderBook(resp *core.Response, symbol string) (*core.OrderBook, error) {
	var raw binanceOrderBook
	if err := decode(resp, &raw); err != nil {
		return nil, err
	}

	book := &core.OrderBook{
		Symbol:       symbol,
		LastUpdateID: raw.LastUpdateID,
	}

	var err error
	if book.Bids, err = normalizeOrderBookLevels(raw.Bids); err != nil {
		return nil, fmt.Errorf("normalize bids: %w", err)
	}
	if book.Asks, err = normalizeOrderBookLevels(raw.Asks); err != nil {
		return nil, fmt.Errorf("normalize asks: %w", err)
	}
	return book, nil
}

func normalizeOrderBookLevels(levels [][]string) ([]core.OrderBookLevel, error) {
	result := make([]core.OrderBookLevel, 0, len(levels))
	for _, level := range levels {
		if len(level) < 2 {
			continue
		}

		var obl core.OrderBookLevel
		if err := parseDecimal(&obl.Price, level[0]); err != nil {
			return nil, fmt.Errorf("parse price: %w", err)
		}
		if err := parseDecimal(&obl.Quantity, level[1]); err != nil {
			return nil, fmt.Errorf("parse quantity: %w", err)
		}
		result = append(result, obl)
	}
	return result, nil
}

// DecodeKlines decodes a klines response.
func DecodeKlines(resp *core.Response, symbol string) ([]core.Kline, error) {
	var raw []binanceKline
	if err := decode(resp, &raw); err != nil {
		return nil, err
	}
	klines := make([]core.Kline, 0, len(raw))
	for _, k := range raw {
		kline, err := normalizeKline(k, symbol)
		if err != nil {
			return nil, fmt.Errorf("normalize kline: %w", err)
		}
		klines = append(klines, *kline)
	}
	return klines, nil
}

func normalizeKline(data binanceKline, symbol string) (*core.Kline, error) {
	if len(data) < 7 {
		return nil, fmt.Errorf("insufficient kline data elements: %d", len(data))
	}

	kline := &core.Kline{Symbol: symbol}
	kline.OpenTime = millisFromAny(data[0])

	if err := parseDecimalFromAny(&kline.Open, data[1]); err != nil {
		return nil, fmt.Errorf("parse open: %w", err)
	}
	if err := parseDecimalFromAny(&kline.High, data[2]); err != nil {
		return nil, fmt.Errorf("parse high: %w", err)
	}
	if err := parseDecimalFromAny(&kline.Low, data[3]); err != nil {
		return nil, fmt.Errorf("parse low: %w", err)
	}
	if err := parseDecimalFromAny(&kline.Close, data[4]); err != nil {
		return nil, fmt.Errorf("parse close: %w", err)
	}
	if err := parseDecimalFromAny(&kline.Volume, data[5]); err != nil {
		return nil, fmt.Errorf("parse volume: %w", err)
	}
	kline.CloseTime = millisFromAny(data[6])

	if len(data) > 7 {
		if err := parseDecimalFromAny(&kline.QuoteVolume, data[7]); err != nil {
			kline.QuoteVolume = apd.Decimal{}
		}
	}
	if len(data) > 8 {
		if n, ok := data[8].(float64); ok {
			kline.NumTrades = int64(n)
		}
	}
	return kline, nil
}

// DecodeExchangeInfo decodes the trading rules snapshot.
func DecodeExchangeInfo(resp *core.Response) (*core.ExchangeInfo, error) {
	var raw binanceExchangeInfo
	if err := decode(resp, &raw); err != nil {
		return nil, err
	}
	info := &core.ExchangeInfo{
		Timezone: raw.Timezone,
		Symbols:  make([]core.SymbolInfo, 0, len(raw.Symbols)),
	}
	if raw.ServerTime > 0 {
		info.ServerTime = time.UnixMilli(raw.ServerTime)
	}
	for _, s := range raw.Symbols {
		info.Symbols = append(info.Symbols, core.SymbolInfo{
			Symbol:     s.Symbol,
			Status:     s.Status,
			BaseAsset:  s.BaseAsset,
			QuoteAsset: s.QuoteAsset,
			OrderTypes: s.OrderTypes,
		})
	}
	return info, nil
}

func parseDecimal(dest *apd.Decimal, s string) error {
	if s == "" {
		*dest = apd.Decimal{}
		return nil
	}

	_, _, err := apd.BaseContext.SetString(dest, s)
	if err != nil {
		return fmt.Errorf("set decimal from string: %w", err)
	}
	return nil
}

func parseDecimalFromAny(dest *apd.Decimal, val any) error {
	switch v := val.(type) {
	case string:
		return parseDecimal(dest, v)
	case float64:
		_, _, err := apd.BaseContext.SetString(dest, fmt.Sprintf("%v", v))
		return err
	default:
		return fmt.Errorf("unsupported type for decimal: %T", val)
	}
}

func millisFromAny(val any) time.Time {
	switch v := val.(type) {
	case float64:
		return time.UnixMilli(int64(v))
	case int64:
		return time.UnixMilli(v)
	}
	return time.Time{}
}

func parseSideFromBuyerMaker(isBuyerMaker bool) core.OrderSide {
	if isBuyerMaker {
		return core.SideSell
	}
	return core.SideBuy
}
