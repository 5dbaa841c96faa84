package verify

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeprobe/internal/testexchange"
	"tradeprobe/pkg/core"
	"tradeprobe/pkg/exchange"
)

// brokenOpenOrders answers every open orders call with an empty 500.
type brokenOpenOrders struct {
	exchange.Exchange
}

func (brokenOpenOrders) OpenOrders(context.Context, string) (*core.Response, error) {
	return core.NewResponse(http.StatusInternalServerError, http.Header{}, nil, 0), nil
}

// staleRequery reports NEW for an order that was already canceled.
type staleRequery struct {
	exchange.Exchange
	canceled bool
}

func (s *staleRequery) CancelOrder(ctx context.Context, symbol string, id int64) (*core.Response, error) {
	resp, err := s.Exchange.CancelOrder(ctx, symbol, id)
	if err == nil && resp.IsSuccess() {
		s.canceled = true
	}
	return resp, err
}

func (s *staleRequery) GetOrder(ctx context.Context, symbol string, id int64) (*core.Response, error) {
	if !s.canceled {
		return s.Exchange.GetOrder(ctx, symbol, id)
	}
	body := []byte(`{"symbol":"BTCUSDT","orderId":1000,"clientOrderId":"x","price":"10000","origQty":"0.001",` +
		`"executedQty":"0","status":"NEW","timeInForce":"GTC","type":"LIMIT","side":"BUY","time":1}`)
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	return core.NewResponse(http.StatusOK, h, body, time.Millisecond), nil
}

// repeatCancelCode answers every cancel after the first with a 400 carrying code.
type repeatCancelCode struct {
	exchange.Exchange
	code    int
	cancels int
}

func (r *repeatCancelCode) CancelOrder(ctx context.Context, symbol string, id int64) (*core.Response, error) {
	r.cancels++
	if r.cancels == 1 {
		return r.Exchange.CancelOrder(ctx, symbol, id)
	}
	return errorResponse(http.StatusBadRequest, r.code, "rejected"), nil
}

func errorResponse(status, code int, msg string) *core.Response {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	body := []byte(fmt.Sprintf(`{"code":%d,"msg":%q}`, code, msg))
	return core.NewResponse(status, h, body, time.Millisecond)
}

func TestLifecycleVerifier_Run(t *testing.T) {
	srv := testexchange.New()
	defer srv.Close()
	client := newClient(t, srv, validCreds())

	v := NewLifecycleVerifier(client, "BTCUSDT", "0.001", "10000", WithPolling(10*time.Millisecond, time.Second))
	report, err := v.Run(context.Background())
	require.NoError(t, err)

	assert.Positive(t, report.OrderID)
	assert.Len(t, report.ClientOrderID, 36)
	assert.Equal(t, []core.OrderStatus{core.StatusNew, core.StatusNew, core.StatusCanceled, core.StatusCanceled}, report.Observed)
	assert.Equal(t, "CANCELED", srv.OrderStatus(report.OrderID))
}

func TestLifecycleVerifier_CleansUpAfterFailure(t *testing.T) {
	srv := testexchange.New()
	defer srv.Close()
	client := brokenOpenOrders{Exchange: newClient(t, srv, validCreds())}

	v := NewLifecycleVerifier(client, "BTCUSDT", "0.001", "10000", WithPolling(10*time.Millisecond, time.Second))
	report, err := v.Run(context.Background())

	var vErr *VerificationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "open orders", vErr.Step)
	assert.Equal(t, http.StatusInternalServerError, vErr.StatusCode)

	require.NotNil(t, report)
	assert.Equal(t, "CANCELED", srv.OrderStatus(report.OrderID))
}

func TestLifecycleVerifier_DetectsRegression(t *testing.T) {
	srv := testexchange.New()
	defer srv.Close()
	client := &staleRequery{Exchange: newClient(t, srv, validCreds())}

	v := NewLifecycleVerifier(client, "BTCUSDT", "0.001", "10000", WithPolling(10*time.Millisecond, time.Second))
	report, err := v.Run(context.Background())

	var vErr *VerificationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "requery", vErr.Step)
	assert.Contains(t, vErr.Reason, "CANCELED -> NEW")
	assert.Equal(t, []core.OrderStatus{core.StatusNew, core.StatusNew, core.StatusCanceled}, report.Observed)
}

func TestLifecycleVerifier_RejectsBadOrderLocally(t *testing.T) {
	srv := testexchange.New()
	defer srv.Close()
	client := newClient(t, srv, validCreds())

	v := NewLifecycleVerifier(client, "BTCUSDT", "abc", "10000")
	_, err := v.Run(context.Background())
	require.Error(t, err)
	assert.Zero(t, srv.RequestCount())
}

func TestLifecycleVerifier_SecondCancelCode(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		wantErr bool
	}{
		{"cancel rejected", -2011, false},
		{"wrong code", -1100, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testexchange.New()
			defer srv.Close()
			client := &repeatCancelCode{Exchange: newClient(t, srv, validCreds()), code: tt.code}

			v := NewLifecycleVerifier(client, "BTCUSDT", "0.001", "10000", WithPolling(10*time.Millisecond, time.Second))
			report, err := v.Run(context.Background())

			// the order is terminal, so no cleanup cancel follows
			assert.Equal(t, 2, client.cancels)
			assert.Equal(t, "CANCELED", srv.OrderStatus(report.OrderID))
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			var vErr *VerificationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, "cancel again", vErr.Step)
			assert.Equal(t, tt.code, vErr.Code)
			assert.Contains(t, vErr.Reason, "expected code -2011")
		})
	}
}
