package core

import "errors"

// ErrorCode represents a client-side error identifier.
// Exchange errors carry the exchange's own numeric code instead, e.g. "-1022".
type ErrorCode string

// Error code constants for failures that originate in the client.
const (
	ErrCodeNetwork       ErrorCode = "NETWORK_ERROR"
	ErrCodeTimeout       ErrorCode = "TIMEOUT"
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
	ErrCodeClientClosed  ErrorCode = "CLIENT_CLOSED"
	ErrCodeNoCredentials ErrorCode = "NO_CREDENTIALS"

	ErrCodeInvalidOrderRequest ErrorCode = "INVALID_ORDER_REQUEST"

	ErrCodeCircuitBreaker ErrorCode = "CIRCUIT_BREAKER_OPEN"
)

// Exchange application codes that the verification layer asserts on.
const (
	CodeTimestampOutsideWindow ErrorCode = "-1021"
	CodeInvalidSignature       ErrorCode = "-1022"
	CodeBadSymbol              ErrorCode = "-1121"
	CodeCancelRejected         ErrorCode = "-2011"
	CodeNoSuchOrder            ErrorCode = "-2013"
	CodeRejectedMBXKey         ErrorCode = "-2015"
)

// IsErrorCode checks if the error matches the specified error code.
func IsErrorCode(err error, code ErrorCode) bool {
	var exErr *ExchangeError
	if errors.As(err, &exErr) {
		return ErrorCode(exErr.Code) == code
	}
	return false
}
