package binance

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"tradeprobe/internal/ratelimit"
	"tradeprobe/internal/transport"
	"tradeprobe/pkg/core"
	"tradeprobe/pkg/exchange"
)

// Client implements exchange.Exchange for the Binance spot REST API. Every call goes
// through a single pooled session; signed calls carry timestamp and signature.
type Client struct {
	dispatcher *transport.Dispatcher
	protocol   *Protocol
	logger     zerolog.Logger
}

var (
	_ exchange.Exchange   = (*Client)(nil)
	_ exchange.TimeSyncer = (*Client)(nil)
)

// Option is a functional option for configuring the Client.
type Option func(*Options)

// Options holds configuration options for the Client.
type Options struct {
	Logger       zerolog.Logger
	Clock        func() time.Time
	RateLimiter  *ratelimit.RateLimiter
	RoundTripper http.RoundTripper
}

// WithLogger returns an option that sets the logger for the client.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithClock returns an option that replaces the clock used for request timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Options) {
		o.Clock = now
	}
}

// WithRateLimiter returns an option that shares a limiter across clients.
func WithRateLimiter(l *ratelimit.RateLimiter) Option {
	return func(o *Options) {
		o.RateLimiter = l
	}
}

// WithRoundTripper returns an option that swaps the HTTP transport.
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(o *Options) {
		o.RoundTripper = rt
	}
}

// New creates a Client from config. The config is copied, so later changes to it have
// no effect on the client.
func New(config *core.Config, opts ...Option) (*Client, error) {
	options := &Options{
		Logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(options)
	}

	logger := options.Logger.With().Str("exchange", ExchangeName).Logger()
	dopts := []transport.Option{transport.WithLogger(logger)}
	if options.Clock != nil {
		dopts = append(dopts, transport.WithClock(options.Clock))
	}
	if options.RateLimiter != nil {
		dopts = append(dopts, transport.WithRateLimiter(options.RateLimiter))
	}
	if options.RoundTripper != nil {
		dopts = append(dopts, transport.WithRoundTripper(options.RoundTripper))
	}

	d, err := transport.NewDispatcher(config, dopts...)
	if err != nil {
		return nil, err
	}

	return &Client{
		dispatcher: d,
		protocol:   NewProtocol(),
		logger:     logger,
	}, nil
}

// Name returns the exchange identifier "binance".
func (c *Client) Name() string {
	return c.protocol.Name()
}

// Version returns the REST API version.
func (c *Client) Version() string {
	return c.protocol.Version()
}

// HasCredentials reports whether signed operations are available.
func (c *Client) HasCredentials() bool {
	return c.dispatcher.HasCredentials()
}

// Dispatcher exposes the underlying transport, mostly for time offset and breaker state.
func (c *Client) Dispatcher() *transport.Dispatcher {
	return c.dispatcher
}

// Close releases the pooled session. Calls after Close fail with core.ErrClientClosed.
func (c *Client) Close() error {
	return c.dispatcher.Close()
}

func (c *Client) Ping(ctx context.Context) (*core.Response, error) {
	return c.dispatcher.Execute(ctx, c.protocol.Ping())
}

func (c *Client) ServerTime(ctx context.Context) (*core.Response, error) {
	return c.dispatcher.Execute(ctx, c.protocol.ServerTime())
}

// SyncTime reads the server clock and shifts every future signed timestamp by the
// difference to local time. It returns the applied offset.
func (c *Client) SyncTime(ctx context.Context) (time.Duration, error) {
	before := time.Now()
	resp, err := c.ServerTime(ctx)
	if err != nil {
		return 0, err
	}
	serverTime, err := DecodeServerTime(resp)
	if err != nil {
		return 0, fmt.Errorf("sync time: %w", err)
	}

	// Compare against the midpoint of the round trip.
	local := before.Add(resp.Elapsed / 2)
	offset := serverTime.Sub(local).Truncate(time.Millisecond)
	c.dispatcher.SetTimeOffset(offset)

	c.logger.Debug().Dur("offset", offset).Msg("server time synced")
	return offset, nil
}

func (c *Client) ExchangeInfo(ctx context.Context, symbol string) (*core.Response, error) {
	return c.dispatcher.Execute(ctx, c.protocol.ExchangeInfo(symbol))
}

func (c *Client) OrderBook(ctx context.Context, symbol string, opts ...exchange.Option) (*core.Response, error) {
	return c.dispatcher.Execute(ctx, c.protocol.OrderBook(symbol, exchange.ApplyOptions(opts...)))
}

func (c *Client) RecentTrades(ctx context.Context, symbol string, opts ...exchange.Option) (*core.Response, error) {
	return c.dispatcher.Execute(ctx, c.protocol.RecentTrades(symbol, exchange.ApplyOptions(opts...)))
}

func (c *Client) Klines(ctx context.Context, symbol, interval string, opts ...exchange.Option) (*core.Response, error) {
	return c.dispatcher.Execute(ctx, c.protocol.Klines(symbol, interval, exchange.ApplyOptions(opts...)))
}

func (c *Client) Ticker24hr(ctx context.Context, symbol string) (*core.Response, error) {
	return c.dispatcher.Execute(ctx, c.protocol.Ticker24hr(symbol))
}

func (c *Client) AccountInfo(ctx context.Context) (*core.Response, error) {
	return c.dispatcher.Execute(ctx, c.protocol.AccountInfo())
}

// TestOrder validates an order on the exchange without placing it.
func (c *Client) TestOrder(ctx context.Context, req *exchange.OrderRequest) (*core.Response, error) {
	r, err := c.protocol.NewOrder(core.OpTestOrder, req)
	if err != nil {
		return nil, err
	}
	return c.dispatcher.Execute(ctx, r)
}

// CreateOrder places an order. It is never retried.
func (c *Client) CreateOrder(ctx context.Context, req *exchange.OrderRequest) (*core.Response, error) {
	r, err := c.protocol.NewOrder(core.OpCreateOrder, req)
	if err != nil {
		return nil, err
	}
	return c.dispatcher.Execute(ctx, r)
}

func (c *Client) GetOrder(ctx context.Context, symbol string, orderID int64) (*core.Response, error) {
	return c.dispatcher.Execute(ctx, c.protocol.GetOrder(symbol, orderID))
}

func (c *Client) CancelOrder(ctx context.Context, symbol string, orderID int64) (*core.Response, error) {
	return c.dispatcher.Execute(ctx, c.protocol.CancelOrder(symbol, orderID))
}

func (c *Client) OpenOrders(ctx context.Context, symbol string) (*core.Response, error) {
	return c.dispatcher.Execute(ctx, c.protocol.OpenOrders(symbol))
}

func (c *Client) AllOrders(ctx context.Context, symbol string, opts ...exchange.Option) (*core.Response, error) {
	return c.dispatcher.Execute(ctx, c.protocol.AllOrders(symbol, exchange.ApplyOptions(opts...)))
}

func (c *Client) Do(ctx context.Context, method, path string, params *core.Params, signed bool) (*core.Response, error) {
	return c.dispatcher.Do(ctx, method, path, params, signed)
}

// Factory returns an exchange.Factory that builds an independent client per call.
func Factory(config *core.Config, opts ...Option) exchange.Factory {
	cfg := *config
	return func() (exchange.Exchange, error) {
		c := cfg
		client, err := New(&c, opts...)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// Register adds the binance constructor to r. Every client built through r shares opts.
func Register(r *exchange.Registry, opts ...Option) {
	r.Register(ExchangeName, func(config *core.Config) (exchange.Exchange, error) {
		client, err := New(config, opts...)
		if err != nil {
			return nil, err
		}
		return client, nil
	})
}
