package verify

import (
	"fmt"
	"math"
	"slices"

	"tradeprobe/pkg/core"
	"tradeprobe/pkg/exchange/binance"
)

func statusError(step string, resp *core.Response, reason string) *VerificationError {
	e := &VerificationError{Step: step, Reason: reason, StatusCode: resp.StatusCode}
	if apiErr, ok := resp.APIError(); ok {
		e.Code = apiErr.Code
		if apiErr.Msg != "" {
			e.Reason += ": " + apiErr.Msg
		}
	}
	return e
}

// expectStatus fails unless resp carries one of want.
func expectStatus(step string, resp *core.Response, want ...int) error {
	if slices.Contains(want, resp.StatusCode) {
		return nil
	}
	return statusError(step, resp, fmt.Sprintf("expected status %v, got %d", want, resp.StatusCode))
}

// expectErrorPayload fails unless the body is an exchange error object with both code and msg.
func expectErrorPayload(step string, resp *core.Response) (core.APIError, error) {
	obj, ok := resp.JSONObject()
	if !ok {
		return core.APIError{}, &VerificationError{Step: step, Reason: "error body is not a JSON object", StatusCode: resp.StatusCode}
	}
	if _, ok := obj["code"]; !ok {
		return core.APIError{}, &VerificationError{Step: step, Reason: "error body has no code", StatusCode: resp.StatusCode}
	}
	if _, ok := obj["msg"]; !ok {
		return core.APIError{}, &VerificationError{Step: step, Reason: "error body has no msg", StatusCode: resp.StatusCode}
	}
	apiErr, _ := resp.APIError()
	return apiErr, nil
}

// expectAPICode fails unless resp has one of statuses and the exchange code.
func expectAPICode(step string, resp *core.Response, code core.ErrorCode, statuses ...int) error {
	if err := expectStatus(step, resp, statuses...); err != nil {
		return err
	}
	apiErr, err := expectErrorPayload(step, resp)
	if err != nil {
		return err
	}
	if !core.IsErrorCode(binance.ErrorFromResponse(resp), code) {
		return &VerificationError{
			Step:       step,
			Reason:     fmt.Sprintf("expected code %s, got %d", code, apiErr.Code),
			StatusCode: resp.StatusCode,
			Code:       apiErr.Code,
		}
	}
	return nil
}

func requireObject(step string, resp *core.Response) (map[string]any, error) {
	obj, ok := resp.JSONObject()
	if !ok {
		return nil, failf(step, "body is not a JSON object")
	}
	return obj, nil
}

func requireArray(step string, resp *core.Response) ([]any, error) {
	arr, ok := resp.JSONArray()
	if !ok {
		return nil, failf(step, "body is not a JSON array")
	}
	return arr, nil
}

func requireFields(step string, obj map[string]any, fields ...string) error {
	for _, f := range fields {
		if _, ok := obj[f]; !ok {
			return failf(step, "missing field %q", f)
		}
	}
	return nil
}

// wholeNumber reports whether v is a JSON number without a fractional part.
func wholeNumber(v any) (int64, bool) {
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}
