package verify

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"tradeprobe/pkg/core"
	"tradeprobe/pkg/exchange"
	"tradeprobe/pkg/loadtest"
)

const (
	SuitePerformance = "performance"
	SuiteRateLimit   = "ratelimit"
)

// Latency and load thresholds.
const (
	MaxPingMean         = 500 * time.Millisecond
	MaxOrderBookLatency = time.Second
	MaxKlinesLatency    = 2 * time.Second
	MaxBurstElapsed     = 10 * time.Second
	MaxSustainedErrors  = 0.01

	pingSamples = 10
)

// PerformanceSuite measures response times and behavior under concurrent and paced load.
type PerformanceSuite struct {
	Client  exchange.Exchange
	Factory exchange.Factory
	Symbol  string

	BurstSize         int
	BurstWorkers      int
	SustainedDuration time.Duration
	SustainedInterval time.Duration
	Probe             loadtest.ProbeConfig

	Logger zerolog.Logger
}

func (s *PerformanceSuite) Scenarios() []Scenario {
	return []Scenario{
		{Suite: SuitePerformance, Name: "ping_latency", Run: s.pingLatency},
		{Suite: SuitePerformance, Name: "order_book_latency", Run: s.orderBookLatency},
		{Suite: SuitePerformance, Name: "klines_latency", Run: s.klinesLatency},
		{Suite: SuitePerformance, Name: "burst", Requires: RequiresLoad, Run: s.burst},
		{Suite: SuitePerformance, Name: "sustained", Requires: RequiresLoad, Run: s.sustained},
	}
}

// RateLimitScenarios returns the probe that deliberately exhausts the request budget.
func (s *PerformanceSuite) RateLimitScenarios() []Scenario {
	return []Scenario{
		{Suite: SuiteRateLimit, Name: "rate_limit_probe", Requires: RequiresLoad, Run: s.probe},
	}
}

func (s *PerformanceSuite) pingLatency(ctx context.Context) error {
	stats := loadtest.Sample(ctx, s.Client, pingSamples, loadtest.Ping)
	if stats.ErrorCount > 0 {
		return failf("ping latency", "%d of %d pings failed", stats.ErrorCount, stats.Count)
	}
	if mean := stats.Mean(); mean >= MaxPingMean {
		return failf("ping latency", "mean %s, limit %s", mean, MaxPingMean)
	}
	return WithDetail("mean %s over %d pings", stats.Mean(), stats.Count)
}

func (s *PerformanceSuite) timed(ctx context.Context, step string, limit time.Duration, call func(context.Context) (*core.Response, error)) error {
	resp, err := call(ctx)
	if err != nil {
		return err
	}
	if err := expectStatus(step, resp, http.StatusOK); err != nil {
		return err
	}
	if resp.Elapsed >= limit {
		return failf(step, "took %s, limit %s", resp.Elapsed, limit)
	}
	return WithDetail("%s", resp.Elapsed)
}

func (s *PerformanceSuite) orderBookLatency(ctx context.Context) error {
	return s.timed(ctx, "order book latency", MaxOrderBookLatency, func(ctx context.Context) (*core.Response, error) {
		return s.Client.OrderBook(ctx, s.Symbol, exchange.WithLimit(100))
	})
}

func (s *PerformanceSuite) klinesLatency(ctx context.Context) error {
	return s.timed(ctx, "klines latency", MaxKlinesLatency, func(ctx context.Context) (*core.Response, error) {
		return s.Client.Klines(ctx, s.Symbol, "1h", exchange.WithLimit(1000))
	})
}

func (s *PerformanceSuite) burst(ctx context.Context) error {
	if s.Factory == nil {
		return failf("burst", "no client factory configured")
	}
	stats := loadtest.Burst(ctx, s.Factory, s.BurstSize, s.BurstWorkers, loadtest.ServerTime)
	s.Logger.Info().Str("scenario", "burst").EmbedObject(stats).Msg("load finished")
	if stats.Count != s.BurstSize {
		return failf("burst", "got %d results for %d requests", stats.Count, s.BurstSize)
	}
	if stats.ErrorCount > 0 {
		return failf("burst", "%d of %d requests failed", stats.ErrorCount, stats.Count)
	}
	if stats.Elapsed >= MaxBurstElapsed {
		return failf("burst", "took %s, limit %s", stats.Elapsed, MaxBurstElapsed)
	}
	return WithDetail("%d requests in %s, %.1f rps", stats.Count, stats.Elapsed.Round(time.Millisecond), stats.RPS())
}

func (s *PerformanceSuite) sustained(ctx context.Context) error {
	stats := loadtest.Sustained(ctx, s.Client, s.SustainedInterval, s.SustainedDuration, loadtest.Ping)
	s.Logger.Info().Str("scenario", "sustained").EmbedObject(stats).Msg("load finished")
	if stats.Count == 0 {
		return failf("sustained", "no requests were sent")
	}
	if rate := stats.ErrorRate(); rate >= MaxSustainedErrors {
		return failf("sustained", "error rate %.2f%%, limit %.2f%%", rate*100, MaxSustainedErrors*100)
	}
	return WithDetail("%d requests, error rate %.2f%%", stats.Count, stats.ErrorRate()*100)
}

// probe never fails: hitting the limit and staying under it are both findings.
func (s *PerformanceSuite) probe(ctx context.Context) error {
	cfg := s.Probe
	if cfg.Budget == 0 {
		cfg = loadtest.DefaultProbeConfig()
	}
	stats := loadtest.ProbeRateLimit(ctx, s.Client, cfg, loadtest.ServerTime)
	s.Logger.Info().Str("scenario", "rate_limit_probe").EmbedObject(stats).Msg("load finished")
	if stats.RateLimitHit {
		return WithDetail("rate limited after %d requests, Retry-After %s", stats.Count, stats.RetryAfter)
	}
	return WithDetail("no rate limit within %d requests", stats.Count)
}
