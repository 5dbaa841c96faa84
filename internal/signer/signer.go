// Package signer computes request signatures for the exchange's HMAC-SHA256 scheme.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"tradeprobe/pkg/core"
)

// Sign returns the lowercase hex HMAC-SHA256 of params encoded in insertion order.
// The caller must add timestamp before signing and must not reorder params afterwards.
func Sign(params *core.Params, secret string) (string, error) {
	if secret == "" {
		return "", core.NewConfigurationError("secret key is required for signing").WithCode(core.ErrCodeNoCredentials)
	}
	return SignPayload(params.Encode(), secret), nil
}

// SignPayload signs an already encoded query string.
func SignPayload(payload, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches payload under secret, in constant time.
func Verify(payload, signature, secret string) bool {
	want, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hmac.Equal(mac.Sum(nil), want)
}
