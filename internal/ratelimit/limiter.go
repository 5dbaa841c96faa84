// Package ratelimit paces outgoing requests on the client side, either by request weight
// against a global budget or at a fixed interval for sustained load runs.
package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter provides weight-aware pacing with an optional per-bucket limit.
type RateLimiter struct {
	global   *rate.Limiter
	buckets  sync.Map
	requests int
	period   time.Duration
	metrics  *Metrics
}

// Metrics tracks statistics about rate limiter usage.
type Metrics struct {
	totalRequests   atomic.Int64
	allowedRequests atomic.Int64
	deniedRequests  atomic.Int64
	waited          atomic.Int64
	bucketCount     atomic.Int32
}

// New creates a RateLimiter allowing requests units of weight per period, with a burst
// equal to the full budget.
func New(requests int, period time.Duration) *RateLimiter {
	return &RateLimiter{
		global:   rate.NewLimiter(perSecond(requests, period), requests),
		requests: requests,
		period:   period,
		metrics:  &Metrics{},
	}
}

// NewInterval creates a RateLimiter that admits one request per interval with no burst.
// The first request is admitted immediately.
func NewInterval(interval time.Duration) *RateLimiter {
	return New(1, interval)
}

func perSecond(requests int, period time.Duration) rate.Limit {
	if period <= 0 {
		return rate.Inf
	}
	return rate.Limit(float64(requests) / period.Seconds())
}

// Wait blocks until one unit of weight is available or the context is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.WaitN(ctx, 1)
}

// WaitN blocks until weight units are available or the context is cancelled.
// Weights above the burst are clamped so a heavy endpoint cannot block forever.
func (r *RateLimiter) WaitN(ctx context.Context, weight int) error {
	return r.wait(ctx, r.global, weight)
}

// WaitBucket waits on the named bucket first and then on the global budget.
// Buckets are created on-demand with the default rate limit.
func (r *RateLimiter) WaitBucket(ctx context.Context, bucket string, weight int) error {
	if err := r.wait(ctx, r.getBucket(bucket), weight); err != nil {
		return err
	}
	return r.wait(ctx, r.global, weight)
}

func (r *RateLimiter) wait(ctx context.Context, l *rate.Limiter, weight int) error {
	r.metrics.totalRequests.Add(1)
	if weight < 1 {
		weight = 1
	}
	if b := l.Burst(); b > 0 && weight > b {
		weight = b
	}
	start := time.Now()
	if err := l.WaitN(ctx, weight); err != nil {
		r.metrics.deniedRequests.Add(1)
		return err
	}
	r.metrics.waited.Add(int64(time.Since(start)))
	r.metrics.allowedRequests.Add(1)
	return nil
}

func (r *RateLimiter) getBucket(bucket string) *rate.Limiter {
	if v, ok := r.buckets.Load(bucket); ok {
		return v.(*rate.Limiter)
	}

	limiter := rate.NewLimiter(perSecond(r.requests, r.period), r.requests)
	actual, loaded := r.buckets.LoadOrStore(bucket, limiter)
	if !loaded {
		r.metrics.bucketCount.Add(1)
	}
	return actual.(*rate.Limiter)
}

// SetBucketLimit updates the rate limit for a specific bucket.
// The bucket is created if it does not exist.
func (r *RateLimiter) SetBucketLimit(bucket string, requests int, period time.Duration) {
	limiter := r.getBucket(bucket)
	limiter.SetLimit(perSecond(requests, period))
	limiter.SetBurst(requests)
}

// Metrics returns a snapshot of the current rate limiter statistics.
func (r *RateLimiter) Metrics() MetricsSnapshot {
	return MetricsSnapshot{
		TotalRequests:   r.metrics.totalRequests.Load(),
		AllowedRequests: r.metrics.allowedRequests.Load(),
		DeniedRequests:  r.metrics.deniedRequests.Load(),
		TotalWait:       time.Duration(r.metrics.waited.Load()),
		BucketCount:     r.metrics.bucketCount.Load(),
	}
}

// MetricsSnapshot is a point-in-time capture of rate limiter statistics.
type MetricsSnapshot struct {
	// TotalRequests is the total number of rate limit checks performed.
	TotalRequests int64
	// AllowedRequests is the number of requests that were allowed.
	AllowedRequests int64
	// DeniedRequests is the number of requests that were denied or cancelled while waiting.
	DeniedRequests int64
	// TotalWait is the accumulated time spent blocked in Wait calls.
	TotalWait time.Duration
	// BucketCount is the number of rate limit buckets in use.
	BucketCount int32
}
