package core

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	// TestnetURL is the REST base URL of the spot testnet.
	TestnetURL = "https://testnet.binance.vision"
	// TestnetWSURL is the stream URL of the spot testnet. The REST client never dials it.
	TestnetWSURL = "wss://testnet.binance.vision/ws"
)

// Config contains all configuration options for an exchange client.
// A Config is copied by the client at construction; mutating it afterwards has no effect
// on clients that were already built from it.
type Config struct {
	BaseURL     string      `json:"base_url" yaml:"base_url" validate:"required,url"`
	WSURL       string      `json:"ws_url" yaml:"ws_url" validate:"omitempty,url"`
	Credentials Credentials `json:"-" yaml:"-"`

	// Timeout is the maximum duration of a single HTTP attempt.
	Timeout      time.Duration `json:"timeout" yaml:"timeout" validate:"min=1ms"`
	MaxRetries   int           `json:"max_retries" yaml:"max_retries" validate:"min=0,max=10"`
	RetryWaitMin time.Duration `json:"retry_wait_min" yaml:"retry_wait_min" validate:"min=0"`
	RetryWaitMax time.Duration `json:"retry_wait_max" yaml:"retry_wait_max" validate:"min=0"`

	// RecvWindow is sent with signed requests when positive.
	RecvWindow time.Duration `json:"recv_window" yaml:"recv_window" validate:"min=0,max=60s"`

	// RateLimitRequests of zero disables client-side pacing.
	RateLimitRequests int           `json:"rate_limit_requests" yaml:"rate_limit_requests" validate:"min=0"`
	RateLimitPeriod   time.Duration `json:"rate_limit_period" yaml:"rate_limit_period" validate:"min=0"`

	// OrderRateLimitRequests caps order placement and cancellation separately from the
	// global budget. Zero leaves writes on the global budget only.
	OrderRateLimitRequests int           `json:"order_rate_limit_requests" yaml:"order_rate_limit_requests" validate:"min=0"`
	OrderRateLimitPeriod   time.Duration `json:"order_rate_limit_period" yaml:"order_rate_limit_period" validate:"min=0"`

	CircuitBreakerEnabled          bool          `json:"circuit_breaker_enabled" yaml:"circuit_breaker_enabled"`
	CircuitBreakerFailThreshold    int           `json:"circuit_breaker_fail_threshold" yaml:"circuit_breaker_fail_threshold"`
	CircuitBreakerSuccessThreshold int           `json:"circuit_breaker_success_threshold" yaml:"circuit_breaker_success_threshold"`
	CircuitBreakerTimeout          time.Duration `json:"circuit_breaker_timeout" yaml:"circuit_breaker_timeout"`

	LogLevel string `json:"log_level" yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// DefaultConfig returns a Config pointed at the spot testnet.
// Default values: 10s timeout, 3 retries, 100ms-1s retry wait, no client-side pacing,
// circuit breaker with 5 failures/2 successes/30s timeout.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:      TestnetURL,
		WSURL:        TestnetWSURL,
		Timeout:      10 * time.Second,
		MaxRetries:   3,
		RetryWaitMin: 100 * time.Millisecond,
		RetryWaitMax: 1 * time.Second,

		RateLimitPeriod:      time.Minute,
		OrderRateLimitPeriod: 10 * time.Second,

		CircuitBreakerEnabled:          true,
		CircuitBreakerFailThreshold:    5,
		CircuitBreakerSuccessThreshold: 2,
		CircuitBreakerTimeout:          30 * time.Second,

		LogLevel: "info",
	}
}

var validate = validator.New()

// Validate checks field constraints and the cross-field rules validator tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.RetryWaitMax < c.RetryWaitMin {
		return errors.New("RetryWaitMax must not be smaller than RetryWaitMin")
	}
	if c.RateLimitRequests > 0 && c.RateLimitPeriod <= 0 {
		return errors.New("RateLimitPeriod must be positive when RateLimitRequests is set")
	}
	if c.OrderRateLimitRequests > 0 && c.OrderRateLimitPeriod <= 0 {
		return errors.New("OrderRateLimitPeriod must be positive when OrderRateLimitRequests is set")
	}
	if c.CircuitBreakerEnabled {
		if c.CircuitBreakerFailThreshold <= 0 {
			return errors.New("CircuitBreakerFailThreshold must be positive when enabled")
		}
		if c.CircuitBreakerSuccessThreshold <= 0 {
			return errors.New("CircuitBreakerSuccessThreshold must be positive when enabled")
		}
		if c.CircuitBreakerTimeout <= 0 {
			return errors.New("CircuitBreakerTimeout must be positive when enabled")
		}
	}
	return nil
}

// HasCredentials reports whether both halves of the API key pair are present.
func (c *Config) HasCredentials() bool {
	return !c.Credentials.IsZero()
}

// WithCredentials sets the API credentials and returns the config for chaining.
func (c *Config) WithCredentials(creds Credentials) *Config {
	c.Credentials = creds
	return c
}

// WithBaseURL sets the REST base URL and returns the config for chaining.
func (c *Config) WithBaseURL(url string) *Config {
	c.BaseURL = url
	return c
}

// WithTimeout sets the request timeout and returns the config for chaining.
func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.Timeout = timeout
	return c
}

// WithRetry sets the network retry bound and backoff window and returns the config for chaining.
func (c *Config) WithRetry(maxRetries int, waitMin, waitMax time.Duration) *Config {
	c.MaxRetries = maxRetries
	c.RetryWaitMin = waitMin
	c.RetryWaitMax = waitMax
	return c
}

// WithRateLimit sets the client-side pacing parameters and returns the config for chaining.
func (c *Config) WithRateLimit(requests int, period time.Duration) *Config {
	c.RateLimitRequests = requests
	c.RateLimitPeriod = period
	return c
}

// WithOrderRateLimit caps order writes and returns the config for chaining.
func (c *Config) WithOrderRateLimit(requests int, period time.Duration) *Config {
	c.OrderRateLimitRequests = requests
	c.OrderRateLimitPeriod = period
	return c
}

// WithCircuitBreaker enables or disables the network circuit breaker and returns the config for chaining.
func (c *Config) WithCircuitBreaker(enabled bool) *Config {
	c.CircuitBreakerEnabled = enabled
	return c
}
