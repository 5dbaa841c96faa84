package loadtest

import (
	"context"
	"errors"
	"time"

	"tradeprobe/internal/ratelimit"
	"tradeprobe/pkg/core"
	"tradeprobe/pkg/exchange"
)

// Op is the request a load run repeats.
type Op func(ctx context.Context, client exchange.Exchange) (*core.Response, error)

// Ping, ServerTime and Ticker are the usual load operations.
func Ping(ctx context.Context, c exchange.Exchange) (*core.Response, error) {
	return c.Ping(ctx)
}

func ServerTime(ctx context.Context, c exchange.Exchange) (*core.Response, error) {
	return c.ServerTime(ctx)
}

func Ticker(symbol string) Op {
	return func(ctx context.Context, c exchange.Exchange) (*core.Response, error) {
		return c.Ticker24hr(ctx, symbol)
	}
}

func measure(ctx context.Context, client exchange.Exchange, op Op) Result {
	start := time.Now()
	resp, err := op(ctx, client)
	res := Result{Latency: time.Since(start), Err: err}
	if resp != nil {
		res.StatusCode = resp.StatusCode
		res.Latency = resp.Elapsed
		if d, ok := resp.RetryAfter(); ok {
			res.RetryAfter = d
		}
	}
	return res
}

// Sample issues n sequential calls on one client.
func Sample(ctx context.Context, client exchange.Exchange, n int, op Op) Stats {
	start := time.Now()
	results := make([]Result, 0, n)
	for i := 0; i < n && ctx.Err() == nil; i++ {
		results = append(results, measure(ctx, client, op))
	}
	return NewStats(results, time.Since(start))
}

// Burst issues n requests on workers goroutines, each request on its own client built
// by factory and closed afterwards.
func Burst(ctx context.Context, factory exchange.Factory, n, workers int, op Op) Stats {
	tasks := make([]Task, n)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) Result {
			client, err := factory()
			if err != nil {
				return Result{Err: err}
			}
			defer client.Close()
			return measure(ctx, client, op)
		}
	}

	start := time.Now()
	results := NewPool(workers).Run(ctx, tasks)
	return NewStats(results, time.Since(start))
}

// Sustained issues one request per interval for duration. A request in flight when
// duration ends is allowed to finish.
func Sustained(ctx context.Context, client exchange.Exchange, interval, duration time.Duration, op Op) Stats {
	limiter := ratelimit.NewInterval(interval)
	window, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	start := time.Now()
	var results []Result
	for {
		if err := limiter.Wait(window); err != nil {
			break
		}
		results = append(results, measure(ctx, client, op))
	}
	return NewStats(results, time.Since(start))
}

// ProbeConfig bounds a rate limit probe.
type ProbeConfig struct {
	Budget     int
	PauseEvery int
	Pause      time.Duration
}

// DefaultProbeConfig sends up to 1500 requests, pausing 100ms after every 100.
func DefaultProbeConfig() ProbeConfig {
	return ProbeConfig{Budget: 1500, PauseEvery: 100, Pause: 100 * time.Millisecond}
}

// ProbeRateLimit sends requests until the exchange answers 429 or 418 or the budget is
// spent. Stats.RateLimitHit and Stats.RetryAfter report what was found. Transport
// errors are counted; only an open circuit breaker ends the probe early.
func ProbeRateLimit(ctx context.Context, client exchange.Exchange, cfg ProbeConfig, op Op) Stats {
	start := time.Now()
	results := make([]Result, 0, cfg.Budget)
	for i := 0; i < cfg.Budget; i++ {
		if i > 0 && cfg.PauseEvery > 0 && i%cfg.PauseEvery == 0 {
			if err := sleep(ctx, cfg.Pause); err != nil {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}
		r := measure(ctx, client, op)
		results = append(results, r)
		if r.RateLimited() {
			break
		}
		if errors.Is(r.Err, core.ErrCircuitBreakerOpen) || core.IsTerminalError(r.Err) {
			break
		}
	}
	return NewStats(results, time.Since(start))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
