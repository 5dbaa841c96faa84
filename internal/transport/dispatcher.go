// Package transport issues REST calls over one pooled HTTP session per client, signing
// them when asked and retrying network-layer failures of reads.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"resty.dev/v3"

	"tradeprobe/internal/circuitbreaker"
	"tradeprobe/internal/ratelimit"
	"tradeprobe/internal/signer"
	"tradeprobe/pkg/core"
)

// APIKeyHeader carries the public key on every request of a keyed session.
const APIKeyHeader = "X-MBX-APIKEY"

const logTruncate = 200

// ordersBucket paces order-mutating calls separately from reads.
const ordersBucket = "orders"

// Dispatcher turns core.Request values into HTTP exchanges. 4xx and 5xx statuses are
// returned as responses; only transport failures become errors.
type Dispatcher struct {
	client  *resty.Client
	cfg     core.Config
	logger  zerolog.Logger
	now     func() time.Time
	offset  atomic.Int64
	limiter *ratelimit.RateLimiter
	breaker *circuitbreaker.Breaker

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithClock replaces the wall clock used for request timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// WithRateLimiter shares a limiter between dispatchers instead of building one from the config.
func WithRateLimiter(l *ratelimit.RateLimiter) Option {
	return func(d *Dispatcher) {
		d.limiter = l
	}
}

// WithRoundTripper swaps the underlying HTTP transport.
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(d *Dispatcher) {
		d.client.SetTransport(rt)
	}
}

// NewDispatcher validates cfg, copies it and opens the HTTP session.
func NewDispatcher(cfg *core.Config, opts ...Option) (*Dispatcher, error) {
	if cfg == nil {
		return nil, core.NewConfigurationError("config is required")
	}
	if err := cfg.Validate(); err != nil {
		e := core.NewConfigurationError("invalid config")
		e.Cause = err
		return nil, e
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")
	client.AddContentTypeEncoder("application/json", func(w io.Writer, v any) error {
		data, err := sonic.Marshal(v)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	})
	client.AddContentTypeDecoder("application/json", func(r io.Reader, v any) error {
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		return sonic.Unmarshal(data, v)
	})
	if key := cfg.Credentials.APIKey(); key != "" {
		client.SetHeader(APIKeyHeader, key)
	}

	d := &Dispatcher{
		client: client,
		cfg:    *cfg,
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.limiter == nil && (cfg.RateLimitRequests > 0 || cfg.OrderRateLimitRequests > 0) {
		requests, period := cfg.RateLimitRequests, cfg.RateLimitPeriod
		if requests == 0 {
			// unlimited global budget
			period = 0
		}
		d.limiter = ratelimit.New(requests, period)
	}
	if d.limiter != nil && cfg.OrderRateLimitRequests > 0 {
		d.limiter.SetBucketLimit(ordersBucket, cfg.OrderRateLimitRequests, cfg.OrderRateLimitPeriod)
	}
	if cfg.CircuitBreakerEnabled {
		logger := d.logger
		d.breaker = circuitbreaker.New(circuitbreaker.Config{
			FailThreshold:    cfg.CircuitBreakerFailThreshold,
			SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
			Timeout:          cfg.CircuitBreakerTimeout,
			OnStateChange: func(from, to circuitbreaker.State) {
				logger.Warn().Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			},
		})
	}

	return d, nil
}

// SetTimeOffset shifts every future request timestamp by offset, typically the
// difference between server and local time.
func (d *Dispatcher) SetTimeOffset(offset time.Duration) {
	d.offset.Store(int64(offset))
}

// TimeOffset returns the current timestamp shift.
func (d *Dispatcher) TimeOffset() time.Duration {
	return time.Duration(d.offset.Load())
}

// Timestamp returns the epoch milliseconds that a request signed now would carry.
func (d *Dispatcher) Timestamp() int64 {
	return d.now().Add(d.TimeOffset()).UnixMilli()
}

// HasCredentials reports whether signed calls can be made.
func (d *Dispatcher) HasCredentials() bool {
	return !d.cfg.Credentials.IsZero()
}

// Do is Execute for an ad-hoc call that is not in the endpoint table.
func (d *Dispatcher) Do(ctx context.Context, method, path string, params *core.Params, signed bool) (*core.Response, error) {
	return d.Execute(ctx, &core.Request{
		Method: method,
		Path:   path,
		Params: params,
		Signed: signed,
		Weight: 1,
	})
}

// Execute sends req and returns the response snapshot. Signed requests get timestamp
// appended after the business parameters and signature appended last. Reads are
// retried on network failure up to MaxRetries times; writes are sent at most once.
func (d *Dispatcher) Execute(ctx context.Context, req *core.Request) (*core.Response, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		e := core.NewExchangeError("client", core.ErrorTypeConfiguration, 0, "dispatcher closed").WithCode(core.ErrCodeClientClosed)
		e.Cause = core.ErrClientClosed
		return nil, e
	}
	if req.Signed && d.cfg.Credentials.IsZero() {
		e := core.NewConfigurationError("signed request requires an API key and secret").WithCode(core.ErrCodeNoCredentials)
		e.Cause = core.ErrNoCredentials
		return nil, e
	}

	if d.limiter != nil {
		var err error
		if req.Method == http.MethodGet {
			err = d.limiter.WaitN(ctx, req.Weight)
		} else {
			err = d.limiter.WaitBucket(ctx, ordersBucket, req.Weight)
		}
		if err != nil {
			return nil, core.NewNetworkError("rate limiter wait", err)
		}
	}

	attempt := 0
	op := func() (*core.Response, error) {
		attempt++
		return d.attempt(ctx, req, attempt)
	}

	if req.Method != http.MethodGet || d.cfg.MaxRetries == 0 {
		resp, err := op()
		return resp, unwrapPermanent(err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = d.cfg.RetryWaitMin
	policy.MaxInterval = d.cfg.RetryWaitMax
	policy.RandomizationFactor = 0.5
	policy.Multiplier = 2

	resp, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(d.cfg.MaxRetries+1)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			d.logger.Warn().Err(err).
				Str("method", req.Method).
				Str("path", req.Path).
				Int("attempt", attempt).
				Dur("backoff", next).
				Msg("retrying request")
		}),
	)
	if err != nil {
		err = unwrapPermanent(err)
		var exErr *core.ExchangeError
		if !errors.As(err, &exErr) {
			err = core.NewNetworkError(fmt.Sprintf("%s %s", req.Method, req.Path), err)
		}
		return nil, err
	}
	return resp, nil
}

func (d *Dispatcher) attempt(ctx context.Context, req *core.Request, n int) (*core.Response, error) {
	if d.breaker != nil && !d.breaker.Allow() {
		return nil, backoff.Permanent(core.NewNetworkError(
			fmt.Sprintf("%s %s", req.Method, req.Path), core.ErrCircuitBreakerOpen,
		).WithCode(core.ErrCodeCircuitBreaker))
	}

	url, summary, err := d.buildURL(req)
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	d.logger.Debug().
		Str("method", req.Method).
		Str("path", req.Path).
		Str("params", truncate(summary, logTruncate)).
		Bool("signed", req.Signed).
		Int("attempt", n).
		Msg("http request")

	start := time.Now()
	resp, err := d.client.R().SetContext(ctx).Execute(req.Method, url)
	elapsed := time.Since(start)
	if err != nil {
		if d.breaker != nil {
			d.breaker.Record(false)
		}
		netErr := core.NewNetworkError(fmt.Sprintf("%s %s", req.Method, req.Path), err)
		d.logger.Debug().Err(err).Str("method", req.Method).Str("path", req.Path).Dur("elapsed", elapsed).Msg("http request failed")
		if ctx.Err() != nil {
			return nil, backoff.Permanent(netErr)
		}
		return nil, netErr
	}
	if d.breaker != nil {
		d.breaker.Record(true)
	}

	out := core.NewResponse(resp.StatusCode(), resp.Header(), resp.Bytes(), elapsed)
	d.logger.Debug().
		Str("method", req.Method).
		Str("path", req.Path).
		Int("status", out.StatusCode).
		Float64("elapsed_ms", out.ElapsedMs()).
		Str("body", truncate(string(out.Body), logTruncate)).
		Msg("http response")
	return out, nil
}

// buildURL renders path?query by hand so the wire order is exactly the signed order.
// The returned summary never contains the signature.
func (d *Dispatcher) buildURL(req *core.Request) (url, summary string, err error) {
	query := req.Params.Clone()
	if req.Signed {
		// recvWindow, timestamp and signature always trail the business params
		recvWindow, hasWindow := query.Get("recvWindow")
		query.Del("recvWindow").Del("timestamp").Del("signature")
		switch {
		case hasWindow:
			query.Set("recvWindow", recvWindow)
		case d.cfg.RecvWindow > 0:
			query.Set("recvWindow", d.cfg.RecvWindow.Milliseconds())
		}
		query.Set("timestamp", d.Timestamp())
	}

	summary = query.Encode()
	url = req.Path
	if summary != "" {
		url += "?" + summary
	}
	if !req.Signed {
		// probes may carry a hand-made signature
		if query.Has("signature") {
			summary = query.Clone().Del("signature").Encode()
		}
		return url, summary, nil
	}

	sig, err := signer.Sign(query, d.cfg.Credentials.SecretKey())
	if err != nil {
		return "", "", err
	}
	if summary == "" {
		return url + "?signature=" + sig, summary, nil
	}
	return url + "&signature=" + sig, summary, nil
}

// Close releases the HTTP session. Calls after the first return ErrClientClosed.
func (d *Dispatcher) Close() error {
	first := false
	d.closeOnce.Do(func() {
		first = true
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
		d.client.Client().CloseIdleConnections()
		d.closeErr = d.client.Close()
		d.logStats()
	})
	if !first {
		return core.ErrClientClosed
	}
	return d.closeErr
}

func (d *Dispatcher) logStats() {
	ev := d.logger.Debug()
	if !ev.Enabled() {
		return
	}
	if d.limiter != nil {
		m := d.limiter.Metrics()
		ev = ev.Int64("limiter_allowed", m.AllowedRequests).
			Int64("limiter_denied", m.DeniedRequests).
			Dur("limiter_wait", m.TotalWait)
	}
	if d.breaker != nil {
		m := d.breaker.Metrics()
		ev = ev.Int64("breaker_failed", m.FailedRequests).
			Int64("breaker_rejected", m.RejectedRequests).
			Str("breaker_state", m.CurrentState)
	}
	ev.Msg("dispatcher closed")
}

func unwrapPermanent(err error) error {
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Unwrap()
	}
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
