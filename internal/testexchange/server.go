// Package testexchange runs an in-process imitation of the spot REST API for tests.
// It checks signatures with the real signer, enforces the receive window, keeps order
// state and can be told to rate limit or fail.
package testexchange

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/apd/v3"

	"tradeprobe/internal/signer"
)

const (
	APIKey    = "test-api-key-0123456789"
	SecretKey = "test-secret-key-9876543210"

	defaultRecvWindow = 5 * time.Second
	maxFutureSkew     = time.Second
	maxKlineLimit     = 1000
	maxDepthLimit     = 5000
	maxTradesLimit    = 1000
)

var decimalCtx = apd.BaseContext.WithPrecision(34)

var symbolPattern = regexp.MustCompile(`^[A-Z0-9\-_.]{1,20}$`)

// RecordedRequest is one request as the server saw it.
type RecordedRequest struct {
	Method   string
	Path     string
	RawQuery string
	APIKey   string
}

type order struct {
	ID            int64
	ClientOrderID string
	Symbol        string
	Side          string
	Type          string
	Price         string
	Quantity      string
	Executed      string
	Status        string
	TimeInForce   string
	Time          int64
	UpdateTime    int64
}

// Server is a fake exchange backed by httptest.Server.
type Server struct {
	srv *httptest.Server

	mu         sync.Mutex
	keys       map[string]string
	symbols    map[string]string
	now        func() time.Time
	latency    time.Duration
	budget     int
	retryAfter time.Duration
	banAfter   int
	failNext   int
	failStatus int
	served     int
	requests   []RecordedRequest
	nextID     int64
	orders     map[int64]*order
}

// Option configures a Server.
type Option func(*Server)

// WithKey registers an extra API key pair.
func WithKey(apiKey, secret string) Option {
	return func(s *Server) {
		s.keys[apiKey] = secret
	}
}

// WithClock replaces the server clock.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// WithLatency delays every response.
func WithLatency(d time.Duration) Option {
	return func(s *Server) {
		s.latency = d
	}
}

// WithRequestBudget answers 429 with Retry-After once more than budget requests were
// served. A positive banAfter switches to 418 once that many requests were refused.
func WithRequestBudget(budget int, retryAfter time.Duration, banAfter int) Option {
	return func(s *Server) {
		s.budget = budget
		s.retryAfter = retryAfter
		s.banAfter = banAfter
	}
}

// New starts a fake exchange with the default key pair and BTCUSDT, ETHUSDT, BNBUSDT listed.
func New(opts ...Option) *Server {
	s := &Server{
		keys: map[string]string{APIKey: SecretKey},
		symbols: map[string]string{
			"BTCUSDT": "20000",
			"ETHUSDT": "1500",
			"BNBUSDT": "300",
		},
		now:    time.Now,
		nextID: 1000,
		orders: make(map[int64]*order),
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v3/ping", s.handlePing)
	mux.HandleFunc("GET /api/v3/time", s.handleTime)
	mux.HandleFunc("GET /api/v3/exchangeInfo", s.handleExchangeInfo)
	mux.HandleFunc("GET /api/v3/depth", s.handleDepth)
	mux.HandleFunc("GET /api/v3/trades", s.handleTrades)
	mux.HandleFunc("GET /api/v3/klines", s.handleKlines)
	mux.HandleFunc("GET /api/v3/ticker/24hr", s.handleTicker)
	mux.HandleFunc("GET /api/v3/account", s.signed(s.handleAccount))
	mux.HandleFunc("POST /api/v3/order/test", s.signed(s.handleTestOrder))
	mux.HandleFunc("POST /api/v3/order", s.signed(s.handleNewOrder))
	mux.HandleFunc("GET /api/v3/order", s.signed(s.handleGetOrder))
	mux.HandleFunc("DELETE /api/v3/order", s.signed(s.handleCancelOrder))
	mux.HandleFunc("GET /api/v3/openOrders", s.signed(s.handleOpenOrders))
	mux.HandleFunc("GET /api/v3/allOrders", s.signed(s.handleAllOrders))

	s.srv = httptest.NewServer(s.gate(mux))
	return s
}

// URL returns the base URL of the server.
func (s *Server) URL() string {
	return s.srv.URL
}

// Close shuts the server down.
func (s *Server) Close() {
	s.srv.Close()
}

// CloseClientConnections drops every open client connection.
func (s *Server) CloseClientConnections() {
	s.srv.CloseClientConnections()
}

// FailNext makes the next n requests answer status with an empty body.
func (s *Server) FailNext(n, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
	s.failStatus = status
}

// Requests returns a copy of every request received so far.
func (s *Server) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RecordedRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// RequestCount returns how many requests were received.
func (s *Server) RequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// OrderStatus returns the stored status of an order, or "" if unknown.
func (s *Server) OrderStatus(id int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.orders[id]; ok {
		return o.Status
	}
	return ""
}

func (s *Server) gate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, RecordedRequest{
			Method:   r.Method,
			Path:     r.URL.Path,
			RawQuery: r.URL.RawQuery,
			APIKey:   r.Header.Get("X-MBX-APIKEY"),
		})
		latency := s.latency

		if s.failNext > 0 {
			s.failNext--
			status := s.failStatus
			s.mu.Unlock()
			w.WriteHeader(status)
			return
		}

		if s.budget > 0 && s.served >= s.budget {
			refused := len(s.requests) - s.served
			retryAfter := s.retryAfter
			banned := s.banAfter > 0 && refused > s.banAfter
			s.mu.Unlock()

			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter/time.Second)))
			if banned {
				writeError(w, http.StatusTeapot, -1003, "Way too many requests; IP banned.")
				return
			}
			writeError(w, http.StatusTooManyRequests, -1003, "Too many requests; current limit is exceeded.")
			return
		}
		s.served++
		s.mu.Unlock()

		if latency > 0 {
			select {
			case <-time.After(latency):
			case <-r.Context().Done():
				return
			}
		}
		w.Header().Set("X-MBX-USED-WEIGHT-1M", strconv.Itoa(s.usedWeight()))
		next.ServeHTTP(w, r)
	})
}

func (s *Server) usedWeight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.served
}

// signed authenticates the API key, the receive window and the signature before next runs.
func (s *Server) signed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-MBX-APIKEY")
		if key == "" {
			writeError(w, http.StatusUnauthorized, -2014, "API-key format invalid.")
			return
		}
		s.mu.Lock()
		secret, ok := s.keys[key]
		now := s.now()
		s.mu.Unlock()
		if !ok {
			writeError(w, http.StatusUnauthorized, -2015, "Invalid API-key, IP, or permissions for action.")
			return
		}

		raw := r.URL.RawQuery
		payload, sig := splitSignature(raw)
		if sig == "" {
			writeError(w, http.StatusBadRequest, -1102, "Mandatory parameter 'signature' was not sent, was empty/null, or malformed.")
			return
		}

		q := r.URL.Query()
		ts, err := strconv.ParseInt(q.Get("timestamp"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, -1102, "Mandatory parameter 'timestamp' was not sent, was empty/null, or malformed.")
			return
		}
		window := defaultRecvWindow
		if rw := q.Get("recvWindow"); rw != "" {
			ms, err := strconv.ParseInt(rw, 10, 64)
			if err != nil || ms <= 0 || ms > 60000 {
				writeError(w, http.StatusBadRequest, -1131, "recvWindow must be less than 60000")
				return
			}
			window = time.Duration(ms) * time.Millisecond
		}
		serverMs := now.UnixMilli()
		if ts < serverMs-window.Milliseconds() || ts > serverMs+maxFutureSkew.Milliseconds() {
			writeError(w, http.StatusBadRequest, -1021, "Timestamp for this request is outside of the recvWindow.")
			return
		}

		if !signer.Verify(payload, sig, secret) {
			writeError(w, http.StatusUnauthorized, -1022, "Signature for this request is not valid.")
			return
		}
		next(w, r)
	}
}

// splitSignature separates the signed payload from a trailing signature parameter.
func splitSignature(raw string) (payload, sig string) {
	if strings.HasPrefix(raw, "signature=") {
		return "", strings.TrimPrefix(raw, "signature=")
	}
	i := strings.LastIndex(raw, "&signature=")
	if i < 0 {
		return raw, ""
	}
	return raw[:i], raw[i+len("&signature="):]
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (s *Server) handleTime(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	now := s.now()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"serverTime": now.UnixMilli()})
}

func (s *Server) handleExchangeInfo(w http.ResponseWriter, r *http.Request) {
	names := s.sortedSymbols()
	if raw := r.URL.Query().Get("symbol"); raw != "" {
		symbol, ok := s.checkSymbol(w, raw)
		if !ok {
			return
		}
		names = []string{symbol}
	}

	symbols := make([]map[string]any, 0, len(names))
	for _, name := range names {
		symbols = append(symbols, map[string]any{
			"symbol":     name,
			"status":     "TRADING",
			"baseAsset":  strings.TrimSuffix(name, "USDT"),
			"quoteAsset": "USDT",
			"orderTypes": []string{"LIMIT", "MARKET"},
			"filters": []map[string]any{
				{"filterType": "PRICE_FILTER", "minPrice": "0.01000000", "maxPrice": "1000000.00000000", "tickSize": "0.01000000"},
				{"filterType": "LOT_SIZE", "minQty": "0.00001000", "maxQty": "9000.00000000", "stepSize": "0.00001000"},
			},
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"timezone":   "UTC",
		"serverTime": s.now().UnixMilli(),
		"rateLimits": []map[string]any{{"rateLimitType": "REQUEST_WEIGHT", "interval": "MINUTE", "intervalNum": 1, "limit": 6000}},
		"symbols":    symbols,
	})
}

func (s *Server) handleDepth(w http.ResponseWriter, r *http.Request) {
	symbol, ok := s.checkSymbol(w, r.URL.Query().Get("symbol"))
	if !ok {
		return
	}
	limit, ok := parseLimit(w, r, 100, maxDepthLimit)
	if !ok {
		return
	}

	mid := s.midPrice(symbol)
	bids := make([][]string, 0, limit)
	asks := make([][]string, 0, limit)
	for i := 1; i <= limit; i++ {
		bids = append(bids, []string{offsetPrice(mid, -i), "1.00000000"})
		asks = append(asks, []string{offsetPrice(mid, i), "1.00000000"})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"lastUpdateId": 1027024,
		"bids":         bids,
		"asks":         asks,
	})
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	symbol, ok := s.checkSymbol(w, r.URL.Query().Get("symbol"))
	if !ok {
		return
	}
	limit, ok := parseLimit(w, r, 500, maxTradesLimit)
	if !ok {
		return
	}

	mid := s.midPrice(symbol)
	now := s.now().UnixMilli()
	trades := make([]map[string]any, 0, limit)
	for i := 0; i < limit; i++ {
		trades = append(trades, map[string]any{
			"id":           int64(28457 + i),
			"price":        mid,
			"qty":          "0.01000000",
			"quoteQty":     quoteQty(mid, "0.01"),
			"time":         now - int64(limit-i),
			"isBuyerMaker": i%2 == 0,
			"isBestMatch":  true,
		})
	}
	writeJSON(w, http.StatusOK, trades)
}

func (s *Server) handleKlines(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbol, ok := s.checkSymbol(w, q.Get("symbol"))
	if !ok {
		return
	}
	interval, ok := intervalDuration(q.Get("interval"))
	if !ok {
		writeError(w, http.StatusBadRequest, -1120, "Invalid interval.")
		return
	}
	limit, ok := parseLimit(w, r, 500, maxKlineLimit)
	if !ok {
		return
	}

	mid := s.midPrice(symbol)
	end := s.now().Truncate(interval)
	klines := make([][]any, 0, limit)
	for i := limit - 1; i >= 0; i-- {
		open := end.Add(-time.Duration(i) * interval)
		klines = append(klines, []any{
			open.UnixMilli(), mid, offsetPrice(mid, 1), offsetPrice(mid, -1), mid, "10.00000000",
			open.Add(interval).UnixMilli() - 1, quoteQty(mid, "10"), 100, "5.00000000", quoteQty(mid, "5"), "0",
		})
	}
	writeJSON(w, http.StatusOK, klines)
}

func (s *Server) handleTicker(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("symbol")
	if raw == "" {
		tickers := make([]map[string]any, 0, len(s.symbols))
		for _, name := range s.sortedSymbols() {
			tickers = append(tickers, s.ticker(name))
		}
		writeJSON(w, http.StatusOK, tickers)
		return
	}
	symbol, ok := s.checkSymbol(w, raw)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.ticker(symbol))
}

func (s *Server) ticker(symbol string) map[string]any {
	mid := s.midPrice(symbol)
	now := s.now()
	return map[string]any{
		"symbol":             symbol,
		"priceChange":        "0.00000000",
		"priceChangePercent": "0.000",
		"weightedAvgPrice":   mid,
		"lastPrice":          mid,
		"bidPrice":           offsetPrice(mid, -1),
		"askPrice":           offsetPrice(mid, 1),
		"openPrice":          mid,
		"highPrice":          offsetPrice(mid, 10),
		"lowPrice":           offsetPrice(mid, -10),
		"volume":             "1000.00000000",
		"quoteVolume":        quoteQty(mid, "1000"),
		"openTime":           now.Add(-24 * time.Hour).UnixMilli(),
		"closeTime":          now.UnixMilli(),
		"count":              100,
	}
}

func (s *Server) handleAccount(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"makerCommission": 10,
		"takerCommission": 10,
		"canTrade":        true,
		"canWithdraw":     false,
		"canDeposit":      false,
		"updateTime":      s.now().UnixMilli(),
		"accountType":     "SPOT",
		"balances": []map[string]any{
			{"asset": "BTC", "free": "1.00000000", "locked": "0.00000000"},
			{"asset": "ETH", "free": "10.00000000", "locked": "0.00000000"},
			{"asset": "BNB", "free": "100.00000000", "locked": "0.00000000"},
			{"asset": "USDT", "free": "10000.00000000", "locked": "0.00000000"},
		},
	})
}

func (s *Server) handleTestOrder(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.parseOrder(w, r); !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (s *Server) handleNewOrder(w http.ResponseWriter, r *http.Request) {
	o, ok := s.parseOrder(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	s.nextID++
	o.ID = s.nextID
	o.Time = s.now().UnixMilli()
	o.UpdateTime = o.Time
	if o.ClientOrderID == "" {
		o.ClientOrderID = fmt.Sprintf("fake-%d", o.ID)
	}
	s.orders[o.ID] = o
	view := orderView(o)
	s.mu.Unlock()

	view["transactTime"] = o.Time
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	o, ok := s.lookupOrder(w, r, -2013, "Order does not exist.")
	if !ok {
		return
	}
	s.mu.Lock()
	view := orderView(o)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	o, ok := s.lookupOrder(w, r, -2011, "Unknown order sent.")
	if !ok {
		return
	}

	s.mu.Lock()
	if o.Status != "NEW" && o.Status != "PARTIALLY_FILLED" {
		s.mu.Unlock()
		writeError(w, http.StatusBadRequest, -2011, "Unknown order sent.")
		return
	}
	o.Status = "CANCELED"
	o.UpdateTime = s.now().UnixMilli()
	view := orderView(o)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleOpenOrders(w http.ResponseWriter, r *http.Request) {
	symbol := ""
	if raw := r.URL.Query().Get("symbol"); raw != "" {
		var ok bool
		if symbol, ok = s.checkSymbol(w, raw); !ok {
			return
		}
	}
	writeJSON(w, http.StatusOK, s.listOrders(symbol, true, 0))
}

func (s *Server) handleAllOrders(w http.ResponseWriter, r *http.Request) {
	symbol, ok := s.checkSymbol(w, r.URL.Query().Get("symbol"))
	if !ok {
		return
	}
	limit, ok := parseLimit(w, r, 500, 1000)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.listOrders(symbol, false, limit))
}

func (s *Server) listOrders(symbol string, openOnly bool, limit int) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0, len(s.orders))
	for id, o := range s.orders {
		if symbol != "" && o.Symbol != symbol {
			continue
		}
		if openOnly && o.Status != "NEW" && o.Status != "PARTIALLY_FILLED" {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if limit > 0 && len(ids) > limit {
		ids = ids[len(ids)-limit:]
	}

	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, orderView(s.orders[id]))
	}
	return out
}

// parseOrder validates new order parameters the way the exchange does.
func (s *Server) parseOrder(w http.ResponseWriter, r *http.Request) (*order, bool) {
	q := r.URL.Query()
	symbol, ok := s.checkSymbol(w, q.Get("symbol"))
	if !ok {
		return nil, false
	}

	side := q.Get("side")
	if side != "BUY" && side != "SELL" {
		writeError(w, http.StatusBadRequest, -1117, "Invalid side.")
		return nil, false
	}
	typ := q.Get("type")
	if typ != "LIMIT" && typ != "MARKET" {
		writeError(w, http.StatusBadRequest, -1116, "Invalid orderType.")
		return nil, false
	}

	o := &order{
		ClientOrderID: q.Get("newClientOrderId"),
		Symbol:        symbol,
		Side:          side,
		Type:          typ,
		Quantity:      q.Get("quantity"),
		Price:         "0.00000000",
		Executed:      "0.00000000",
	}

	quote := q.Get("quoteOrderQty")
	if o.Quantity == "" && quote == "" {
		writeError(w, http.StatusBadRequest, -1102, "Param 'quantity' or 'quoteOrderQty' must be sent, but both were empty/null!")
		return nil, false
	}
	for name, v := range map[string]string{"quantity": o.Quantity, "quoteOrderQty": quote} {
		if v != "" && !positiveDecimal(v) {
			writeError(w, http.StatusBadRequest, -1100, fmt.Sprintf("Illegal characters found in parameter '%s'; legal range is '^([0-9]{1,20})(\\.[0-9]{1,20})?$'.", name))
			return nil, false
		}
	}

	switch typ {
	case "LIMIT":
		tif := q.Get("timeInForce")
		if tif == "" {
			writeError(w, http.StatusBadRequest, -1102, "Mandatory parameter 'timeInForce' was not sent, was empty/null, or malformed.")
			return nil, false
		}
		price := q.Get("price")
		if price == "" || !positiveDecimal(price) {
			writeError(w, http.StatusBadRequest, -1100, "Illegal characters found in parameter 'price'; legal range is '^([0-9]{1,20})(\\.[0-9]{1,20})?$'.")
			return nil, false
		}
		o.TimeInForce = tif
		o.Price = price
		o.Status = "NEW"
	case "MARKET":
		o.Status = "FILLED"
		if o.Quantity == "" {
			o.Quantity = "0.00000000"
		}
		o.Executed = o.Quantity
	}
	return o, true
}

func (s *Server) lookupOrder(w http.ResponseWriter, r *http.Request, code int, msg string) (*order, bool) {
	q := r.URL.Query()
	symbol, ok := s.checkSymbol(w, q.Get("symbol"))
	if !ok {
		return nil, false
	}
	id, err := strconv.ParseInt(q.Get("orderId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, -1102, "Param 'origClientOrderId' or 'orderId' must be sent, but both were empty/null!")
		return nil, false
	}

	s.mu.Lock()
	o, found := s.orders[id]
	s.mu.Unlock()
	if !found || o.Symbol != symbol {
		writeError(w, http.StatusBadRequest, code, msg)
		return nil, false
	}
	return o, true
}

// checkSymbol rejects malformed and unknown symbols without echoing them back.
func (s *Server) checkSymbol(w http.ResponseWriter, symbol string) (string, bool) {
	if symbol == "" {
		writeError(w, http.StatusBadRequest, -1102, "Mandatory parameter 'symbol' was not sent, was empty/null, or malformed.")
		return "", false
	}
	if !symbolPattern.MatchString(symbol) {
		writeError(w, http.StatusBadRequest, -1100, "Illegal characters found in parameter 'symbol'; legal range is '^[A-Z0-9-_.]{1,20}$'.")
		return "", false
	}
	if _, ok := s.symbols[symbol]; !ok {
		writeError(w, http.StatusBadRequest, -1121, "Invalid symbol.")
		return "", false
	}
	return symbol, true
}

func (s *Server) sortedSymbols() []string {
	names := make([]string, 0, len(s.symbols))
	for name := range s.symbols {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Server) midPrice(symbol string) string {
	return s.symbols[symbol]
}

func orderView(o *order) map[string]any {
	return map[string]any{
		"symbol":              o.Symbol,
		"orderId":             o.ID,
		"orderListId":         -1,
		"clientOrderId":       o.ClientOrderID,
		"price":               o.Price,
		"origQty":             o.Quantity,
		"executedQty":         o.Executed,
		"cummulativeQuoteQty": "0.00000000",
		"status":              o.Status,
		"timeInForce":         o.TimeInForce,
		"type":                o.Type,
		"side":                o.Side,
		"time":                o.Time,
		"updateTime":          o.UpdateTime,
		"isWorking":           o.Status == "NEW",
	}
}

// parseLimit reads the limit parameter, clamping values above upper.
func parseLimit(w http.ResponseWriter, r *http.Request, def, upper int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		writeError(w, http.StatusBadRequest, -1100, "Illegal characters found in parameter 'limit'.")
		return 0, false
	}
	if n > upper {
		n = upper
	}
	return n, true
}

func intervalDuration(s string) (time.Duration, bool) {
	switch s {
	case "1m":
		return time.Minute, true
	case "5m":
		return 5 * time.Minute, true
	case "15m":
		return 15 * time.Minute, true
	case "1h":
		return time.Hour, true
	case "4h":
		return 4 * time.Hour, true
	case "1d":
		return 24 * time.Hour, true
	}
	return 0, false
}

func positiveDecimal(s string) bool {
	d, _, err := apd.NewFromString(s)
	return err == nil && d.Sign() > 0
}

// offsetPrice returns mid + ticks * 0.01 with eight decimals.
func offsetPrice(mid string, ticks int) string {
	var out apd.Decimal
	m, _, _ := apd.NewFromString(mid)
	step := apd.New(int64(ticks), -2)
	_, _ = decimalCtx.Add(&out, m, step)
	return fixed8(&out)
}

func quoteQty(price, qty string) string {
	var out apd.Decimal
	p, _, _ := apd.NewFromString(price)
	q, _, _ := apd.NewFromString(qty)
	_, _ = decimalCtx.Mul(&out, p, q)
	return fixed8(&out)
}

func fixed8(d *apd.Decimal) string {
	var out apd.Decimal
	_, _ = decimalCtx.Quantize(&out, d, -8)
	return out.Text('f')
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json;charset=UTF-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status, code int, msg string) {
	writeJSON(w, status, map[string]any{"code": code, "msg": msg})
}
