package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrorType represents the category of a client or exchange error.
type ErrorType int

// Error type constants categorize errors for proper handling and retry logic.
const (
	// ErrorTypeUnknown indicates an unclassified error.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeConfiguration indicates missing or invalid credentials or settings, caught before any network call.
	ErrorTypeConfiguration
	// ErrorTypeNetwork indicates a connection or DNS failure.
	ErrorTypeNetwork
	// ErrorTypeTimeout indicates the request exceeded its deadline.
	ErrorTypeTimeout
	// ErrorTypeRateLimit indicates rate limit was exceeded (HTTP 429 or 418).
	ErrorTypeRateLimit
	// ErrorTypeAuthentication indicates a rejected key or signature (HTTP 401/403).
	ErrorTypeAuthentication
	// ErrorTypeValidation indicates a malformed request, including timestamp skew (HTTP 400).
	ErrorTypeValidation
	// ErrorTypeNotFound indicates the requested resource does not exist.
	ErrorTypeNotFound
	// ErrorTypeServerError indicates a server-side error.
	ErrorTypeServerError
	// ErrorTypeInvalidOrder indicates the order violates exchange rules.
	ErrorTypeInvalidOrder
)

// String returns the string representation of the error type.
func (t ErrorType) String() string {
	names := [...]string{
		"UNKNOWN",
		"CONFIGURATION",
		"NETWORK",
		"TIMEOUT",
		"RATE_LIMIT",
		"AUTHENTICATION",
		"VALIDATION",
		"NOT_FOUND",
		"SERVER_ERROR",
		"INVALID_ORDER",
	}
	if t < 0 || int(t) >= len(names) {
		return "UNKNOWN"
	}
	return names[t]
}

// Sentinel errors for common error conditions.
var (
	// ErrClientClosed is returned when attempting to use a closed client.
	ErrClientClosed = errors.New("client is closed")
	// ErrCircuitBreakerOpen is returned when the network circuit breaker is open.
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")
	// ErrNoCredentials is returned when a signed call is made without a key pair.
	ErrNoCredentials = errors.New("no credentials configured")
)

// ExchangeError represents a structured error from the client or the exchange.
type ExchangeError struct {
	// Type categorizes the error for programmatic handling.
	Type ErrorType `json:"type"`
	// StatusCode is the HTTP status code from the response, zero for transport failures.
	StatusCode int `json:"status_code"`
	// Code is the exchange-specific error code, e.g. "-1022".
	Code string `json:"code"`
	// Message is the human-readable error description.
	Message string `json:"message"`
	// RetryAfter is the server's backoff hint for rate limit errors.
	RetryAfter time.Duration `json:"retry_after,omitempty"`
	// Exchange identifies which exchange returned this error.
	Exchange string `json:"exchange"`
	// Timestamp is when the error occurred.
	Timestamp time.Time `json:"timestamp"`
	// Cause is the underlying transport error, if any.
	Cause error `json:"-"`
}

// Error implements the error interface for ExchangeError.
func (e *ExchangeError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Code != "" {
		return fmt.Sprintf("[%s] %s (%d/%s): %s",
			e.Exchange, e.Type, e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("[%s] %s (%d): %s",
		e.Exchange, e.Type, e.StatusCode, msg)
}

// Unwrap exposes the transport cause to errors.Is and errors.As.
func (e *ExchangeError) Unwrap() error {
	return e.Cause
}

// WithCode sets the error code and returns the error for chaining.
func (e *ExchangeError) WithCode(code ErrorCode) *ExchangeError {
	e.Code = string(code)
	return e
}

// NewExchangeError creates a new ExchangeError with the specified details.
func NewExchangeError(exchange string, errorType ErrorType, statusCode int, message string) *ExchangeError {
	return &ExchangeError{
		Type:       errorType,
		StatusCode: statusCode,
		Message:    message,
		Exchange:   exchange,
		Timestamp:  time.Now(),
	}
}

// NewExchangeErrorWithCode creates a new ExchangeError including an exchange-specific error code.
func NewExchangeErrorWithCode(exchange string, errorType ErrorType, statusCode int, code, message string) *ExchangeError {
	return &ExchangeError{
		Type:       errorType,
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
		Exchange:   exchange,
		Timestamp:  time.Now(),
	}
}

// NewConfigurationError reports a fault that must be fixed before any request is sent.
func NewConfigurationError(message string) *ExchangeError {
	return NewExchangeError("client", ErrorTypeConfiguration, 0, message).WithCode(ErrCodeInvalidConfig)
}

// NewNetworkError wraps a transport failure. Deadline and timeout causes are typed as
// ErrorTypeTimeout, everything else as ErrorTypeNetwork.
func NewNetworkError(message string, cause error) *ExchangeError {
	e := NewExchangeError("client", ErrorTypeNetwork, 0, message).WithCode(ErrCodeNetwork)
	e.Cause = cause
	if isTimeout(cause) {
		e.Type = ErrorTypeTimeout
		e.Code = string(ErrCodeTimeout)
	}
	return e
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func errorType(err error) (ErrorType, bool) {
	var e *ExchangeError
	if errors.As(err, &e) {
		return e.Type, true
	}
	return ErrorTypeUnknown, false
}

// IsConfigurationError returns true if the error was raised before any network call.
func IsConfigurationError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrorTypeConfiguration
}

// IsNetworkError returns true for transport-level failures, including timeouts.
func IsNetworkError(err error) bool {
	t, ok := errorType(err)
	return ok && (t == ErrorTypeNetwork || t == ErrorTypeTimeout)
}

// IsTimeoutError returns true if the error is a timeout.
func IsTimeoutError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrorTypeTimeout
}

// IsRateLimitError returns true if the error is a rate limit violation.
func IsRateLimitError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrorTypeRateLimit
}

// IsAuthenticationError returns true if the error is an authentication failure.
func IsAuthenticationError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrorTypeAuthentication
}

// IsValidationError returns true if the exchange rejected the request as malformed.
func IsValidationError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrorTypeValidation
}

// IsTerminalError returns true if retrying the same request cannot succeed.
func IsTerminalError(err error) bool {
	t, ok := errorType(err)
	if !ok {
		return false
	}
	switch t {
	case ErrorTypeConfiguration, ErrorTypeAuthentication, ErrorTypeValidation,
		ErrorTypeNotFound, ErrorTypeInvalidOrder:
		return true
	}
	return false
}
