package verify

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tradeprobe/internal/signer"
	"tradeprobe/pkg/core"
	"tradeprobe/pkg/exchange"
)

const SuiteSecurity = "security"

const (
	accountPath      = "/api/v3/account"
	bogusSignature   = "invalid_signature_12345"
	bogusAPIKey      = "fake_api_key_12345"
	bogusSecretKey   = "fake_secret_key_12345"
	expiredBy        = 5 * time.Minute
	oversizedLimit   = 100000
	maxKlinesPerCall = 1000
)

var (
	injectionSymbol = "BTCUSDT' OR '1'='1"
	scriptSymbol    = "<script>alert('XSS')</script>"
)

// SecuritySuite checks that the exchange rejects unauthenticated, forged and hostile
// requests with well-formed error payloads.
type SecuritySuite struct {
	Client      exchange.Exchange
	Credentials core.Credentials
	// NewClient builds a throwaway client with other credentials.
	NewClient func(core.Credentials) (exchange.Exchange, error)
	BaseURL   string
	Symbol    string
	// Now is the local clock; defaults to time.Now.
	Now func() time.Time
}

func (s *SecuritySuite) Scenarios() []Scenario {
	return []Scenario{
		{Suite: SuiteSecurity, Name: "tls_base_url", Run: s.tls},
		{Suite: SuiteSecurity, Name: "missing_signature", Run: s.missingSignature},
		{Suite: SuiteSecurity, Name: "invalid_signature", Requires: RequiresCredentials, Run: s.invalidSignature},
		{Suite: SuiteSecurity, Name: "invalid_api_key", Run: s.invalidAPIKey},
		{Suite: SuiteSecurity, Name: "expired_timestamp", Requires: RequiresCredentials, Run: s.expiredTimestamp},
		{Suite: SuiteSecurity, Name: "sql_injection_symbol", Run: s.sqlInjection},
		{Suite: SuiteSecurity, Name: "script_injection_symbol", Run: s.scriptInjection},
		{Suite: SuiteSecurity, Name: "oversized_limit", Run: s.oversizedLimit},
	}
}

func (s *SecuritySuite) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *SecuritySuite) tls(context.Context) error {
	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return failf("tls", "parse base URL: %v", err)
	}
	if u.Scheme != "https" {
		return failf("tls", "base URL scheme is %q, expected https", u.Scheme)
	}
	return nil
}

func (s *SecuritySuite) missingSignature(ctx context.Context) error {
	params := core.NewParams().Set("timestamp", s.now().UnixMilli())
	resp, err := s.Client.Do(ctx, http.MethodGet, accountPath, params, false)
	if err != nil {
		return err
	}
	if err := expectStatus("unsigned account", resp, http.StatusBadRequest, http.StatusUnauthorized); err != nil {
		return err
	}
	_, err = expectErrorPayload("unsigned account", resp)
	return err
}

func (s *SecuritySuite) invalidSignature(ctx context.Context) error {
	params := core.NewParams().
		Set("timestamp", s.now().UnixMilli()).
		Set("signature", bogusSignature)
	resp, err := s.Client.Do(ctx, http.MethodGet, accountPath, params, false)
	if err != nil {
		return err
	}
	return expectAPICode("forged signature", resp, core.CodeInvalidSignature, http.StatusUnauthorized, http.StatusBadRequest)
}

func (s *SecuritySuite) invalidAPIKey(ctx context.Context) error {
	if s.NewClient == nil {
		return failf("invalid api key", "no client constructor configured")
	}
	client, err := s.NewClient(core.NewCredentials(bogusAPIKey, bogusSecretKey))
	if err != nil {
		return err
	}
	defer client.Close()

	resp, err := client.AccountInfo(ctx)
	if err != nil {
		return err
	}
	return expectAPICode("unknown api key", resp, core.CodeRejectedMBXKey, http.StatusUnauthorized, http.StatusForbidden)
}

func (s *SecuritySuite) expiredTimestamp(ctx context.Context) error {
	params := core.NewParams().Set("timestamp", s.now().Add(-expiredBy).UnixMilli())
	sig, err := signer.Sign(params, s.Credentials.SecretKey())
	if err != nil {
		return err
	}
	params.Set("signature", sig)

	resp, err := s.Client.Do(ctx, http.MethodGet, accountPath, params, false)
	if err != nil {
		return err
	}
	return expectAPICode("stale timestamp", resp, core.CodeTimestampOutsideWindow, http.StatusBadRequest)
}

func (s *SecuritySuite) sqlInjection(ctx context.Context) error {
	resp, err := s.Client.OrderBook(ctx, injectionSymbol, exchange.WithLimit(5))
	if err != nil {
		return err
	}
	if err := expectStatus("sql injection", resp, http.StatusBadRequest); err != nil {
		return err
	}
	apiErr, err := expectErrorPayload("sql injection", resp)
	if err != nil {
		return err
	}
	if strings.Contains(strings.ToUpper(apiErr.Msg), "SQL") {
		return failf("sql injection", "error message leaks database details: %q", apiErr.Msg)
	}
	return nil
}

func (s *SecuritySuite) scriptInjection(ctx context.Context) error {
	resp, err := s.Client.OrderBook(ctx, scriptSymbol, exchange.WithLimit(5))
	if err != nil {
		return err
	}
	if err := expectStatus("script injection", resp, http.StatusBadRequest); err != nil {
		return err
	}
	if strings.Contains(strings.ToLower(string(resp.Body)), "<script>") {
		return failf("script injection", "error body reflects the script tag")
	}
	return nil
}

func (s *SecuritySuite) oversizedLimit(ctx context.Context) error {
	resp, err := s.Client.Klines(ctx, s.Symbol, "1h", exchange.WithLimit(oversizedLimit))
	if err != nil {
		return err
	}
	switch resp.StatusCode {
	case http.StatusBadRequest:
		_, err := expectErrorPayload("oversized limit", resp)
		return err
	case http.StatusOK:
		arr, err := requireArray("oversized limit", resp)
		if err != nil {
			return err
		}
		if len(arr) > maxKlinesPerCall {
			return failf("oversized limit", "returned %d klines, cap is %d", len(arr), maxKlinesPerCall)
		}
		return nil
	default:
		return statusError("oversized limit", resp, "expected 200 with a clamped result or 400")
	}
}
