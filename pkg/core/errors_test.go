package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorType_String(t *testing.T) {
	tests := []struct {
		name      string
		errorType ErrorType
		want      string
	}{
		{"unknown", ErrorTypeUnknown, "UNKNOWN"},
		{"configuration", ErrorTypeConfiguration, "CONFIGURATION"},
		{"network", ErrorTypeNetwork, "NETWORK"},
		{"timeout", ErrorTypeTimeout, "TIMEOUT"},
		{"rate_limit", ErrorTypeRateLimit, "RATE_LIMIT"},
		{"authentication", ErrorTypeAuthentication, "AUTHENTICATION"},
		{"validation", ErrorTypeValidation, "VALIDATION"},
		{"not_found", ErrorTypeNotFound, "NOT_FOUND"},
		{"server_error", ErrorTypeServerError, "SERVER_ERROR"},
		{"invalid_order", ErrorTypeInvalidOrder, "INVALID_ORDER"},
		{"out_of_range", ErrorType(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.errorType.String())
		})
	}
}

func TestExchangeError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ExchangeError
		want string
	}{
		{
			name: "without_code",
			err: &ExchangeError{
				Exchange:   "binance",
				Type:       ErrorTypeRateLimit,
				StatusCode: 429,
				Message:    "too many requests",
			},
			want: "[binance] RATE_LIMIT (429): too many requests",
		},
		{
			name: "with_code",
			err: &ExchangeError{
				Exchange:   "binance",
				Type:       ErrorTypeAuthentication,
				StatusCode: 401,
				Code:       "-1022",
				Message:    "Signature for this request is not valid.",
			},
			want: "[binance] AUTHENTICATION (401/-1022): Signature for this request is not valid.",
		},
		{
			name: "with_cause",
			err: &ExchangeError{
				Exchange: "client",
				Type:     ErrorTypeNetwork,
				Message:  "request failed",
				Cause:    errors.New("connection refused"),
			},
			want: "[client] NETWORK (0): request failed: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestNewExchangeErrorWithCode(t *testing.T) {
	err := NewExchangeErrorWithCode("binance", ErrorTypeAuthentication, 401, "-2015", "Invalid API-key")

	assert.Equal(t, "binance", err.Exchange)
	assert.Equal(t, ErrorTypeAuthentication, err.Type)
	assert.Equal(t, 401, err.StatusCode)
	assert.Equal(t, "-2015", err.Code)
	assert.False(t, err.Timestamp.IsZero())
	assert.True(t, IsErrorCode(err, CodeRejectedMBXKey))
}

func TestNewConfigurationError(t *testing.T) {
	err := NewConfigurationError("secret key is empty")

	assert.True(t, IsConfigurationError(err))
	assert.True(t, IsTerminalError(err))
	assert.True(t, IsErrorCode(err, ErrCodeInvalidConfig))
}

func TestNewNetworkError(t *testing.T) {
	t.Run("connection", func(t *testing.T) {
		cause := errors.New("dial tcp: connection refused")
		err := NewNetworkError("GET /api/v3/ping", cause)

		assert.True(t, IsNetworkError(err))
		assert.False(t, IsTimeoutError(err))
		assert.ErrorIs(t, err, cause)
	})

	t.Run("deadline", func(t *testing.T) {
		err := NewNetworkError("GET /api/v3/ping", fmt.Errorf("wrapped: %w", context.DeadlineExceeded))

		assert.True(t, IsTimeoutError(err))
		assert.True(t, IsNetworkError(err))
		assert.True(t, IsErrorCode(err, ErrCodeTimeout))
	})
}

func TestErrorPredicates_Wrapped(t *testing.T) {
	base := NewExchangeError("binance", ErrorTypeRateLimit, 429, "slow down")
	wrapped := fmt.Errorf("probe: %w", base)

	assert.True(t, IsRateLimitError(wrapped))
	assert.False(t, IsAuthenticationError(wrapped))
	assert.False(t, IsValidationError(wrapped))
	assert.False(t, IsRateLimitError(nil))

	var exErr *ExchangeError
	require.ErrorAs(t, wrapped, &exErr)
	assert.Equal(t, 429, exErr.StatusCode)
}

func TestIsTerminalError(t *testing.T) {
	tests := []struct {
		name     string
		errType  ErrorType
		terminal bool
	}{
		{"configuration", ErrorTypeConfiguration, true},
		{"authentication", ErrorTypeAuthentication, true},
		{"validation", ErrorTypeValidation, true},
		{"invalid_order", ErrorTypeInvalidOrder, true},
		{"not_found", ErrorTypeNotFound, true},
		{"network", ErrorTypeNetwork, false},
		{"timeout", ErrorTypeTimeout, false},
		{"rate_limit", ErrorTypeRateLimit, false},
		{"server_error", ErrorTypeServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewExchangeError("test", tt.errType, 500, "message")
			assert.Equal(t, tt.terminal, IsTerminalError(err))
		})
	}

	assert.False(t, IsTerminalError(nil))
	assert.False(t, IsTerminalError(errors.New("plain")))
}
