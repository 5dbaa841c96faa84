package verify

import (
	"context"
	"net/http"
	"time"

	"tradeprobe/pkg/exchange"
	"tradeprobe/pkg/exchange/binance"
)

const SuiteFunctional = "functional"

// MarketSuite checks the unsigned market data surface.
type MarketSuite struct {
	Client  exchange.Exchange
	Symbol  string
	Symbols []string
	// RepeatDelay separates the repeated ticker reads.
	RepeatDelay time.Duration
}

func (s *MarketSuite) Scenarios() []Scenario {
	mk := func(name string, fn func(context.Context) error) Scenario {
		return Scenario{Suite: SuiteFunctional, Name: name, Run: fn}
	}
	return []Scenario{
		mk("ping", s.ping),
		mk("server_time", s.serverTime),
		mk("exchange_info", s.exchangeInfo),
		mk("exchange_info_symbol", s.exchangeInfoSymbol),
		mk("order_book", s.orderBook),
		mk("recent_trades", s.recentTrades),
		mk("klines", s.klines),
		mk("ticker_24hr", s.ticker),
		mk("ticker_consistency", s.tickerConsistency),
		mk("multiple_symbols_order_book", s.multiSymbolOrderBook),
		mk("multiple_symbols_klines", s.multiSymbolKlines),
	}
}

func (s *MarketSuite) ping(ctx context.Context) error {
	resp, err := s.Client.Ping(ctx)
	if err != nil {
		return err
	}
	if err := expectStatus("ping", resp, http.StatusOK); err != nil {
		return err
	}
	obj, err := requireObject("ping", resp)
	if err != nil {
		return err
	}
	if len(obj) != 0 {
		return failf("ping", "expected an empty object, got %d fields", len(obj))
	}
	return nil
}

func (s *MarketSuite) serverTime(ctx context.Context) error {
	resp, err := s.Client.ServerTime(ctx)
	if err != nil {
		return err
	}
	if err := expectStatus("server time", resp, http.StatusOK); err != nil {
		return err
	}
	obj, err := requireObject("server time", resp)
	if err != nil {
		return err
	}
	ts, ok := wholeNumber(obj["serverTime"])
	if !ok || ts <= 0 {
		return failf("server time", "serverTime must be a positive integer, got %v", obj["serverTime"])
	}
	return nil
}

func (s *MarketSuite) exchangeInfo(ctx context.Context) error {
	resp, err := s.Client.ExchangeInfo(ctx, "")
	if err != nil {
		return err
	}
	if err := expectStatus("exchange info", resp, http.StatusOK); err != nil {
		return err
	}
	info, err := binance.DecodeExchangeInfo(resp)
	if err != nil {
		return failf("exchange info", "decode: %v", err)
	}
	if len(info.Symbols) == 0 {
		return failf("exchange info", "symbol list is empty")
	}
	return nil
}

func (s *MarketSuite) exchangeInfoSymbol(ctx context.Context) error {
	resp, err := s.Client.ExchangeInfo(ctx, s.Symbol)
	if err != nil {
		return err
	}
	if err := expectStatus("exchange info", resp, http.StatusOK); err != nil {
		return err
	}
	obj, err := requireObject("exchange info", resp)
	if err != nil {
		return err
	}
	symbols, ok := obj["symbols"].([]any)
	if !ok || len(symbols) == 0 {
		return failf("exchange info", "no symbols returned for %s", s.Symbol)
	}
	first, ok := symbols[0].(map[string]any)
	if !ok {
		return failf("exchange info", "symbol entry is not an object")
	}
	if first["symbol"] != s.Symbol {
		return failf("exchange info", "got symbol %v, expected %s", first["symbol"], s.Symbol)
	}
	return requireFields("exchange info", first, "baseAsset", "quoteAsset", "filters")
}

func (s *MarketSuite) orderBook(ctx context.Context) error {
	return s.checkOrderBook(ctx, s.Symbol, 5)
}

func (s *MarketSuite) checkOrderBook(ctx context.Context, symbol string, limit int) error {
	step := "order book " + symbol
	resp, err := s.Client.OrderBook(ctx, symbol, exchange.WithLimit(limit))
	if err != nil {
		return err
	}
	if err := expectStatus(step, resp, http.StatusOK); err != nil {
		return err
	}
	book, err := binance.DecodeOrderBook(resp, symbol)
	if err != nil {
		return failf(step, "decode: %v", err)
	}
	if len(book.Bids) > limit || len(book.Asks) > limit {
		return failf(step, "got %d bids and %d asks, limit %d", len(book.Bids), len(book.Asks), limit)
	}
	for i := 1; i < len(book.Bids); i++ {
		if book.Bids[i-1].Price.Cmp(&book.Bids[i].Price) <= 0 {
			return failf(step, "bids not strictly decreasing at level %d", i)
		}
	}
	for i := 1; i < len(book.Asks); i++ {
		if book.Asks[i-1].Price.Cmp(&book.Asks[i].Price) >= 0 {
			return failf(step, "asks not strictly increasing at level %d", i)
		}
	}
	return nil
}

func (s *MarketSuite) recentTrades(ctx context.Context) error {
	const limit = 10
	resp, err := s.Client.RecentTrades(ctx, s.Symbol, exchange.WithLimit(limit))
	if err != nil {
		return err
	}
	if err := expectStatus("recent trades", resp, http.StatusOK); err != nil {
		return err
	}
	arr, err := requireArray("recent trades", resp)
	if err != nil {
		return err
	}
	if len(arr) > limit {
		return failf("recent trades", "got %d trades, limit %d", len(arr), limit)
	}
	if len(arr) > 0 {
		trade, ok := arr[0].(map[string]any)
		if !ok {
			return failf("recent trades", "trade is not an object")
		}
		return requireFields("recent trades", trade, "id", "price", "qty", "time")
	}
	return nil
}

func (s *MarketSuite) klines(ctx context.Context) error {
	return s.checkKlines(ctx, s.Symbol, 10, false)
}

func (s *MarketSuite) checkKlines(ctx context.Context, symbol string, limit int, nonEmpty bool) error {
	step := "klines " + symbol
	resp, err := s.Client.Klines(ctx, symbol, "1h", exchange.WithLimit(limit))
	if err != nil {
		return err
	}
	if err := expectStatus(step, resp, http.StatusOK); err != nil {
		return err
	}
	arr, err := requireArray(step, resp)
	if err != nil {
		return err
	}
	if len(arr) > limit {
		return failf(step, "got %d klines, limit %d", len(arr), limit)
	}
	if nonEmpty && len(arr) == 0 {
		return failf(step, "no klines returned")
	}
	if len(arr) > 0 {
		k, ok := arr[0].([]any)
		if !ok || len(k) != 12 {
			return failf(step, "kline must have 12 fields")
		}
		if _, ok := wholeNumber(k[0]); !ok {
			return failf(step, "open time must be an integer, got %v", k[0])
		}
	}
	return nil
}

var tickerFields = []string{"symbol", "priceChange", "priceChangePercent", "lastPrice", "volume", "quoteVolume"}

func (s *MarketSuite) ticker(ctx context.Context) error {
	resp, err := s.Client.Ticker24hr(ctx, s.Symbol)
	if err != nil {
		return err
	}
	if err := expectStatus("ticker", resp, http.StatusOK); err != nil {
		return err
	}
	obj, err := requireObject("ticker", resp)
	if err != nil {
		return err
	}
	if err := requireFields("ticker", obj, tickerFields...); err != nil {
		return err
	}
	if obj["symbol"] != s.Symbol {
		return failf("ticker", "got symbol %v, expected %s", obj["symbol"], s.Symbol)
	}
	return nil
}

func (s *MarketSuite) tickerConsistency(ctx context.Context) error {
	const reads = 5
	for i := 0; i < reads; i++ {
		if i > 0 && s.RepeatDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.RepeatDelay):
			}
		}
		resp, err := s.Client.Ticker24hr(ctx, s.Symbol)
		if err != nil {
			return err
		}
		if err := expectStatus("ticker", resp, http.StatusOK); err != nil {
			return err
		}
		obj, err := requireObject("ticker", resp)
		if err != nil {
			return err
		}
		if err := requireFields("ticker", obj, "symbol", "lastPrice"); err != nil {
			return err
		}
		if obj["symbol"] != s.Symbol {
			return failf("ticker", "read %d returned symbol %v", i+1, obj["symbol"])
		}
	}
	return nil
}

func (s *MarketSuite) multiSymbolOrderBook(ctx context.Context) error {
	for _, symbol := range s.Symbols {
		if err := s.checkOrderBook(ctx, symbol, 5); err != nil {
			return err
		}
	}
	return nil
}

func (s *MarketSuite) multiSymbolKlines(ctx context.Context) error {
	for _, symbol := range s.Symbols {
		if err := s.checkKlines(ctx, symbol, 5, true); err != nil {
			return err
		}
	}
	return nil
}
