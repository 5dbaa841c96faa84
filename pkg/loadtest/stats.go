package loadtest

import (
	"math"
	"net/http"
	"slices"
	"time"

	"github.com/rs/zerolog"
)

// Result is the outcome of one request.
type Result struct {
	Latency    time.Duration
	StatusCode int
	Err        error
	RetryAfter time.Duration
}

// Failed reports whether the request errored or returned a non-2xx status.
func (r Result) Failed() bool {
	return r.Err != nil || r.StatusCode < 200 || r.StatusCode >= 300
}

// RateLimited reports whether the exchange answered 429 or 418.
func (r Result) RateLimited() bool {
	return r.StatusCode == http.StatusTooManyRequests || r.StatusCode == http.StatusTeapot
}

// Stats aggregates a set of results.
type Stats struct {
	Count        int
	ErrorCount   int
	Latencies    []time.Duration
	Elapsed      time.Duration
	StatusCounts map[int]int
	RateLimitHit bool
	// RetryAfter is taken from the first rate limited response.
	RetryAfter time.Duration
}

// NewStats summarizes results collected over elapsed.
func NewStats(results []Result, elapsed time.Duration) Stats {
	s := Stats{
		Elapsed:      elapsed,
		Latencies:    make([]time.Duration, 0, len(results)),
		StatusCounts: make(map[int]int),
	}
	for _, r := range results {
		s.add(r)
	}
	return s
}

func (s *Stats) add(r Result) {
	s.Count++
	if r.Failed() {
		s.ErrorCount++
	}
	if r.StatusCode != 0 {
		s.StatusCounts[r.StatusCode]++
		s.Latencies = append(s.Latencies, r.Latency)
	}
	if r.RateLimited() && !s.RateLimitHit {
		s.RateLimitHit = true
		s.RetryAfter = r.RetryAfter
	}
}

func (s Stats) Mean() time.Duration {
	if len(s.Latencies) == 0 {
		return 0
	}
	var total time.Duration
	for _, l := range s.Latencies {
		total += l
	}
	return total / time.Duration(len(s.Latencies))
}

func (s Stats) Min() time.Duration {
	if len(s.Latencies) == 0 {
		return 0
	}
	return slices.Min(s.Latencies)
}

func (s Stats) Max() time.Duration {
	if len(s.Latencies) == 0 {
		return 0
	}
	return slices.Max(s.Latencies)
}

// Percentile returns the nearest-rank latency percentile, p in (0, 100].
func (s Stats) Percentile(p float64) time.Duration {
	if len(s.Latencies) == 0 || p <= 0 {
		return 0
	}
	sorted := slices.Clone(s.Latencies)
	slices.Sort(sorted)
	idx := int(math.Ceil(float64(len(sorted))*p/100)) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}

// ErrorRate is the failed fraction of all requests, in [0, 1].
func (s Stats) ErrorRate() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.ErrorCount) / float64(s.Count)
}

// RPS is requests per second over the elapsed wall time.
func (s Stats) RPS() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Count) / s.Elapsed.Seconds()
}

// MarshalZerologObject renders the summary as log fields.
func (s Stats) MarshalZerologObject(e *zerolog.Event) {
	e.Int("requests", s.Count).
		Int("errors", s.ErrorCount).
		Float64("error_rate", s.ErrorRate()).
		Float64("rps", s.RPS()).
		Dur("mean", s.Mean()).
		Dur("min", s.Min()).
		Dur("max", s.Max()).
		Dur("p95", s.Percentile(95)).
		Dur("elapsed", s.Elapsed)
	if s.RateLimitHit {
		e.Bool("rate_limited", true).Dur("retry_after", s.RetryAfter)
	}
}
