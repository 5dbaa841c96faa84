package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeprobe/internal/signer"
	"tradeprobe/pkg/core"
)

var fixedNow = time.UnixMilli(1700000000000)

func testConfig(url string) *core.Config {
	return core.DefaultConfig().
		WithBaseURL(url).
		WithTimeout(2*time.Second).
		WithRetry(3, time.Millisecond, 5*time.Millisecond).
		WithCircuitBreaker(false).
		WithCredentials(core.NewCredentials("test-api-key-123456", "test-secret"))
}

func newTestDispatcher(t *testing.T, cfg *core.Config, opts ...Option) *Dispatcher {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	d, err := NewDispatcher(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func dropConnection(t *testing.T, w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	require.True(t, ok)
	conn, _, err := hj.Hijack()
	require.NoError(t, err)
	conn.Close()
}

func TestNewDispatcher_InvalidConfig(t *testing.T) {
	_, err := NewDispatcher(core.DefaultConfig().WithBaseURL(""))
	require.Error(t, err)
	assert.True(t, core.IsConfigurationError(err))

	_, err = NewDispatcher(nil)
	assert.True(t, core.IsConfigurationError(err))
}

func TestDispatcher_UnsignedPreservesOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/api/v3/depth", r.URL.Path)
		assert.Equal(t, "symbol=BTCUSDT&limit=5", r.URL.RawQuery)
		assert.Equal(t, "test-api-key-123456", r.Header.Get(APIKeyHeader))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"lastUpdateId":1,"bids":[],"asks":[]}`))
	}))
	defer server.Close()

	d := newTestDispatcher(t, testConfig(server.URL))
	req := core.NewRequest(core.OpOrderBook).Set("symbol", "BTCUSDT").Set("limit", 5)

	resp, err := d.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	obj, ok := resp.JSONObject()
	require.True(t, ok)
	assert.Contains(t, obj, "lastUpdateId")
	assert.Positive(t, resp.Elapsed)
}

func TestDispatcher_SignedAppendsTimestampThenSignature(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.RawQuery
		idx := strings.LastIndex(raw, "&signature=")
		require.Positive(t, idx)
		payload, sig := raw[:idx], raw[idx+len("&signature="):]

		assert.Equal(t, "symbol=BTCUSDT&orderId=42&timestamp=1700000000000", payload)
		assert.True(t, signer.Verify(payload, sig, "test-secret"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"NEW"}`))
	}))
	defer server.Close()

	d := newTestDispatcher(t, testConfig(server.URL))
	req := core.NewRequest(core.OpGetOrder).Set("symbol", "BTCUSDT").Set("orderId", int64(42))

	resp, err := d.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, resp.IsSuccess())
	assert.False(t, req.Params.Has("timestamp"), "caller params must not be mutated")
}

func TestDispatcher_SignedWithoutParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.URL.RawQuery, "timestamp=1700000000000&signature="))
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	d := newTestDispatcher(t, testConfig(server.URL))
	_, err := d.Execute(context.Background(), core.NewRequest(core.OpAccountInfo))
	require.NoError(t, err)
}

func TestDispatcher_RecvWindowAndTimeOffset(t *testing.T) {
	var got atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.URL.RawQuery)
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.RecvWindow = 5 * time.Second
	d := newTestDispatcher(t, cfg)
	d.SetTimeOffset(-1500 * time.Millisecond)

	_, err := d.Execute(context.Background(), core.NewRequest(core.OpOpenOrders).Set("symbol", "BTCUSDT"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(got.Load().(string), "symbol=BTCUSDT&recvWindow=5000&timestamp=1699999998500&signature="))
	assert.Equal(t, int64(1699999998500), d.Timestamp())
}

func TestDispatcher_SignedMovesCallerTrailersToEnd(t *testing.T) {
	tests := []struct {
		name    string
		params  *core.Params
		payload string
	}{
		{
			name:    "caller timestamp",
			params:  core.NewParams().Set("timestamp", 1).Set("symbol", "BTCUSDT"),
			payload: "symbol=BTCUSDT&timestamp=1700000000000",
		},
		{
			name:    "caller recvWindow",
			params:  core.NewParams().Set("recvWindow", 3000).Set("symbol", "BTCUSDT"),
			payload: "symbol=BTCUSDT&recvWindow=3000&timestamp=1700000000000",
		},
		{
			name:    "stale signature",
			params:  core.NewParams().Set("symbol", "BTCUSDT").Set("signature", "stale"),
			payload: "symbol=BTCUSDT&timestamp=1700000000000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got atomic.Value
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got.Store(r.URL.RawQuery)
				w.Write([]byte(`{}`))
			}))
			defer server.Close()

			d := newTestDispatcher(t, testConfig(server.URL))
			_, err := d.Do(context.Background(), http.MethodGet, "/api/v3/account", tt.params, true)
			require.NoError(t, err)

			raw := got.Load().(string)
			assert.Equal(t, 1, strings.Count(raw, "signature="))
			idx := strings.LastIndex(raw, "&signature=")
			require.Positive(t, idx)
			payload, sig := raw[:idx], raw[idx+len("&signature="):]
			assert.Equal(t, tt.payload, payload)
			assert.True(t, signer.Verify(payload, sig, "test-secret"))
		})
	}
}

func TestDispatcher_ApplicationErrorsAreResponses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code":-1022,"msg":"Signature for this request is not valid."}`))
	}))
	defer server.Close()

	d := newTestDispatcher(t, testConfig(server.URL))
	resp, err := d.Execute(context.Background(), core.NewRequest(core.OpAccountInfo))

	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)
	apiErr, ok := resp.APIError()
	require.True(t, ok)
	assert.Equal(t, -1022, apiErr.Code)
}

func TestDispatcher_ServerErrorsAreNotRetried(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	d := newTestDispatcher(t, testConfig(server.URL))
	resp, err := d.Execute(context.Background(), core.NewRequest(core.OpPing))

	require.NoError(t, err)
	assert.Equal(t, 503, resp.StatusCode)
	assert.Equal(t, int32(1), hits.Load())
}

func TestDispatcher_RetriesReadsOnNetworkFailure(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			dropConnection(t, w)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	d := newTestDispatcher(t, testConfig(server.URL))
	resp, err := d.Execute(context.Background(), core.NewRequest(core.OpPing))

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, int32(3), hits.Load())
}

func TestDispatcher_RetryBudgetExhausted(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		dropConnection(t, w)
	}))
	defer server.Close()

	d := newTestDispatcher(t, testConfig(server.URL).WithRetry(2, time.Millisecond, 2*time.Millisecond))
	_, err := d.Execute(context.Background(), core.NewRequest(core.OpServerTime))

	require.Error(t, err)
	assert.True(t, core.IsNetworkError(err))
	assert.Equal(t, int32(3), hits.Load())
}

func TestDispatcher_WritesAreSentAtMostOnce(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		dropConnection(t, w)
	}))
	defer server.Close()

	d := newTestDispatcher(t, testConfig(server.URL))
	for _, op := range []core.Operation{core.OpCreateOrder, core.OpCancelOrder} {
		hits.Store(0)
		_, err := d.Execute(context.Background(), core.NewRequest(op).Set("symbol", "BTCUSDT"))

		require.Error(t, err, op.String())
		assert.True(t, core.IsNetworkError(err))
		assert.Equal(t, int32(1), hits.Load(), op.String())
	}
}

func TestDispatcher_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	cfg := testConfig(server.URL).WithTimeout(30*time.Millisecond).WithRetry(0, 0, 0)
	d := newTestDispatcher(t, cfg)

	_, err := d.Execute(context.Background(), core.NewRequest(core.OpPing))
	require.Error(t, err)
	assert.True(t, core.IsTimeoutError(err))
}

func TestDispatcher_CallerCancellationIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(100 * time.Millisecond)
	}))
	defer server.Close()

	d := newTestDispatcher(t, testConfig(server.URL))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := d.Execute(ctx, core.NewRequest(core.OpPing))
	require.Error(t, err)
	assert.True(t, core.IsNetworkError(err))
	assert.Equal(t, int32(1), hits.Load())
}

func TestDispatcher_SignedWithoutCredentials(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	cfg := testConfig(server.URL).WithCredentials(core.Credentials{})
	d := newTestDispatcher(t, cfg)

	_, err := d.Execute(context.Background(), core.NewRequest(core.OpAccountInfo))
	require.Error(t, err)
	assert.True(t, core.IsConfigurationError(err))
	assert.ErrorIs(t, err, core.ErrNoCredentials)
	assert.Zero(t, hits.Load())
	assert.False(t, d.HasCredentials())
}

func TestDispatcher_CircuitBreakerOpens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	cfg := testConfig(url).WithRetry(0, 0, 0).WithCircuitBreaker(true)
	cfg.CircuitBreakerFailThreshold = 2
	cfg.CircuitBreakerTimeout = time.Minute
	d := newTestDispatcher(t, cfg)

	for i := 0; i < 2; i++ {
		_, err := d.Execute(context.Background(), core.NewRequest(core.OpPing))
		require.Error(t, err)
		assert.False(t, errors.Is(err, core.ErrCircuitBreakerOpen))
	}

	_, err := d.Execute(context.Background(), core.NewRequest(core.OpPing))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrCircuitBreakerOpen)
	assert.True(t, core.IsErrorCode(err, core.ErrCodeCircuitBreaker))
}

func TestDispatcher_RateLimiterPacesByWeight(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	cfg := testConfig(server.URL).WithRateLimit(10, time.Minute)
	d := newTestDispatcher(t, cfg)

	_, err := d.Execute(context.Background(), core.NewRequest(core.OpPing).SetWeight(10))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = d.Execute(ctx, core.NewRequest(core.OpPing))
	require.Error(t, err)
	assert.True(t, core.IsNetworkError(err))
}

func TestDispatcher_WritesUseOrdersBucket(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	cfg := testConfig(server.URL).WithRateLimit(100, time.Minute)
	d, err := NewDispatcher(cfg, WithLogger(logger), WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)

	_, err = d.Execute(context.Background(), core.NewRequest(core.OpPing))
	require.NoError(t, err)
	_, err = d.Execute(context.Background(), core.NewRequest(core.OpCreateOrder).Set("symbol", "BTCUSDT"))
	require.NoError(t, err)
	require.NoError(t, d.Close())

	// one global wait for the read, bucket plus global for the write
	assert.Contains(t, buf.String(), `"limiter_allowed":3`)
	assert.Contains(t, buf.String(), "dispatcher closed")
}

func TestDispatcher_OrderRateLimitCapsWritesOnly(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	cfg := testConfig(server.URL).WithOrderRateLimit(1, time.Minute)
	d, err := NewDispatcher(cfg, WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	defer d.Close()

	_, err = d.Execute(context.Background(), core.NewRequest(core.OpCreateOrder).Set("symbol", "BTCUSDT"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = d.Execute(ctx, core.NewRequest(core.OpCreateOrder).Set("symbol", "BTCUSDT"))
	require.Error(t, err, "second write must wait a full minute for the orders bucket")

	for i := 0; i < 5; i++ {
		_, err = d.Execute(context.Background(), core.NewRequest(core.OpPing))
		require.NoError(t, err, "reads are not paced when only the order cap is set")
	}
	assert.Equal(t, int32(6), hits.Load())
}

func TestDispatcher_SessionUsesJSONCodec(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"echo":` + string(body) + `,"serverTime":1700000000000}`))
	}))
	defer server.Close()

	d, err := NewDispatcher(testConfig(server.URL))
	require.NoError(t, err)
	defer d.Close()

	var out struct {
		Echo       map[string]string `json:"echo"`
		ServerTime int64             `json:"serverTime"`
	}
	resp, err := d.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"symbol": "BTCUSDT"}).
		SetResult(&out).
		Post("/echo")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, "BTCUSDT", out.Echo["symbol"])
	assert.Equal(t, int64(1700000000000), out.ServerTime)
}

func TestDispatcher_Close(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	d, err := NewDispatcher(testConfig(server.URL))
	require.NoError(t, err)

	require.NoError(t, d.Close())
	assert.ErrorIs(t, d.Close(), core.ErrClientClosed)
	assert.NotPanics(t, func() { _ = d.Close() })

	_, err = d.Execute(context.Background(), core.NewRequest(core.OpPing))
	assert.ErrorIs(t, err, core.ErrClientClosed)
}

func TestDispatcher_LogsNeverContainSecrets(t *testing.T) {
	var sig atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sig.Store(r.URL.Query().Get("signature"))
		w.Write([]byte(`{"balances":[]}`))
	}))
	defer server.Close()

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	d := newTestDispatcher(t, testConfig(server.URL), WithLogger(logger))

	_, err := d.Execute(context.Background(), core.NewRequest(core.OpAccountInfo))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "/api/v3/account")
	assert.Contains(t, out, "timestamp=1700000000000")
	assert.NotContains(t, out, "test-secret")
	assert.NotContains(t, out, sig.Load().(string))
	assert.NotContains(t, out, "signature")
}

func TestDispatcher_Do(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "symbol=BTCUSDT&interval=1m&limit=5000", r.URL.RawQuery)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	d := newTestDispatcher(t, testConfig(server.URL))
	params := core.NewParams().Set("symbol", "BTCUSDT").Set("interval", "1m").Set("limit", 5000)

	resp, err := d.Do(context.Background(), http.MethodGet, "/api/v3/klines", params, false)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abcdef", 2))
}
