package core

import (
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
)

// Response is an immutable snapshot of one HTTP exchange. Non-2xx statuses are valid
// responses; converting them into errors is the caller's decision.
type Response struct {
	StatusCode int
	// Headers holds the first value of each header under its canonical key.
	Headers map[string]string
	Body    []byte
	// JSON is the decoded body, set only when Content-Type is JSON and the body parses.
	JSON    any
	Elapsed time.Duration
}

// NewResponse builds a Response, decoding the body when the content type is JSON.
func NewResponse(status int, header http.Header, body []byte, elapsed time.Duration) *Response {
	r := &Response{
		StatusCode: status,
		Headers:    make(map[string]string, len(header)),
		Body:       body,
		Elapsed:    elapsed,
	}
	for k, v := range header {
		if len(v) > 0 {
			r.Headers[http.CanonicalHeaderKey(k)] = v[0]
		}
	}
	if isJSON(r.Headers["Content-Type"]) && len(body) > 0 {
		var parsed any
		if err := sonic.Unmarshal(body, &parsed); err == nil {
			r.JSON = parsed
		}
	}
	return r
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && (mt == "application/json" || mt == "text/json")
}

// ElapsedMs returns the round-trip time in milliseconds.
func (r *Response) ElapsedMs() float64 {
	return float64(r.Elapsed) / float64(time.Millisecond)
}

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsError reports a 4xx or 5xx status.
func (r *Response) IsError() bool {
	return r.StatusCode >= 400
}

// IsRateLimited reports 429 or the 418 ban status.
func (r *Response) IsRateLimited() bool {
	return r.StatusCode == http.StatusTooManyRequests || r.StatusCode == http.StatusTeapot
}

// Header returns a header value by case-insensitive name.
func (r *Response) Header(name string) string {
	return r.Headers[http.CanonicalHeaderKey(name)]
}

// Unmarshal decodes the raw body into v.
func (r *Response) Unmarshal(v any) error {
	if err := sonic.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("unmarshal body: %w", err)
	}
	return nil
}

// RetryAfter parses the Retry-After header given in seconds.
func (r *Response) RetryAfter() (time.Duration, bool) {
	v := r.Header("Retry-After")
	if v == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

// APIError is the exchange error payload {"code": -1022, "msg": "..."}.
type APIError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// APIError extracts the exchange error payload. ok is false when the body carries none.
func (r *Response) APIError() (APIError, bool) {
	var e APIError
	if len(r.Body) == 0 || sonic.Unmarshal(r.Body, &e) != nil {
		return APIError{}, false
	}
	return e, e.Code != 0 || e.Msg != ""
}

// JSONObject returns the decoded body as an object.
func (r *Response) JSONObject() (map[string]any, bool) {
	m, ok := r.JSON.(map[string]any)
	return m, ok
}

// JSONArray returns the decoded body as an array.
func (r *Response) JSONArray() ([]any, bool) {
	a, ok := r.JSON.([]any)
	return a, ok
}
