package verify

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"tradeprobe/pkg/core"
	"tradeprobe/pkg/exchange"
	"tradeprobe/pkg/exchange/binance"
	"tradeprobe/pkg/order"
)

const (
	defaultPollInterval = 250 * time.Millisecond
	defaultPollTimeout  = 5 * time.Second
	cleanupTimeout      = 10 * time.Second
)

// LifecycleVerifier places a LIMIT buy far below market and drives it through
// create, query, cancel and re-query, checking every status the exchange reports.
type LifecycleVerifier struct {
	client       exchange.Exchange
	symbol       string
	quantity     string
	price        string
	pollInterval time.Duration
	pollTimeout  time.Duration
	logger       zerolog.Logger
}

// LifecycleOption configures a LifecycleVerifier.
type LifecycleOption func(*LifecycleVerifier)

// WithPolling sets how often and how long the verifier waits for a new order to show up.
func WithPolling(interval, timeout time.Duration) LifecycleOption {
	return func(v *LifecycleVerifier) {
		v.pollInterval = interval
		v.pollTimeout = timeout
	}
}

// WithLifecycleLogger sets the logger.
func WithLifecycleLogger(l zerolog.Logger) LifecycleOption {
	return func(v *LifecycleVerifier) {
		v.logger = l
	}
}

func NewLifecycleVerifier(client exchange.Exchange, symbol, quantity, price string, opts ...LifecycleOption) *LifecycleVerifier {
	v := &LifecycleVerifier{
		client:       client,
		symbol:       symbol,
		quantity:     quantity,
		price:        price,
		pollInterval: defaultPollInterval,
		pollTimeout:  defaultPollTimeout,
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// LifecycleReport is what a run observed.
type LifecycleReport struct {
	OrderID       int64
	ClientOrderID string
	Observed      []core.OrderStatus
}

// Run executes the lifecycle. Any deviation is a *VerificationError. If a step fails
// while the order may still be open, a best-effort cancel is sent before returning.
func (v *LifecycleVerifier) Run(ctx context.Context) (*LifecycleReport, error) {
	req, err := order.NewBuilder(v.symbol).
		Buy().
		Limit().
		Quantity(v.quantity).
		Price(v.price).
		GTC().
		Build()
	if err != nil {
		return nil, err
	}

	resp, err := v.client.CreateOrder(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := expectStatus("create", resp, http.StatusOK); err != nil {
		return nil, err
	}
	created, err := binance.DecodeOrder(resp)
	if err != nil {
		return nil, failf("create", "decode order: %v", err)
	}

	report := &LifecycleReport{OrderID: created.OrderID, ClientOrderID: created.ClientOrderID}
	tracker := &StatusTracker{}
	log := v.logger.With().Int64("order_id", created.OrderID).Str("symbol", v.symbol).Logger()
	log.Info().Str("status", created.Status.String()).Msg("order created")

	defer func() {
		report.Observed = tracker.History()
		if !tracker.Terminal() {
			v.cleanup(ctx, created.OrderID, log)
		}
	}()

	if err := checkCreated(created, req); err != nil {
		return report, err
	}
	if err := tracker.Observe(created.Status); err != nil {
		return report, failf("create", "%v", err)
	}

	queried, err := v.pollOrder(ctx, created.OrderID)
	if err != nil {
		return report, err
	}
	if err := tracker.Observe(queried.Status); err != nil {
		return report, failf("query", "%v", err)
	}
	if queried.Status != core.StatusNew {
		return report, failf("query", "expected NEW, got %s", queried.Status)
	}

	if err := v.checkOpenOrders(ctx, created.OrderID); err != nil {
		return report, err
	}

	resp, err = v.client.CancelOrder(ctx, v.symbol, created.OrderID)
	if err != nil {
		return report, err
	}
	if err := expectStatus("cancel", resp, http.StatusOK); err != nil {
		return report, err
	}
	canceled, err := binance.DecodeOrder(resp)
	if err != nil {
		return report, failf("cancel", "decode order: %v", err)
	}
	if canceled.OrderID != created.OrderID {
		return report, failf("cancel", "canceled order %d, expected %d", canceled.OrderID, created.OrderID)
	}
	if err := tracker.Observe(canceled.Status); err != nil {
		return report, failf("cancel", "%v", err)
	}
	if canceled.Status != core.StatusCanceled {
		return report, failf("cancel", "expected CANCELED, got %s", canceled.Status)
	}
	log.Info().Msg("order canceled")

	resp, err = v.client.GetOrder(ctx, v.symbol, created.OrderID)
	if err != nil {
		return report, err
	}
	if err := expectStatus("requery", resp, http.StatusOK); err != nil {
		return report, err
	}
	final, err := binance.DecodeOrder(resp)
	if err != nil {
		return report, failf("requery", "decode order: %v", err)
	}
	if err := tracker.Observe(final.Status); err != nil {
		return report, failf("requery", "%v", err)
	}
	if final.Status != core.StatusCanceled {
		return report, failf("requery", "expected CANCELED to be durable, got %s", final.Status)
	}

	resp, err = v.client.CancelOrder(ctx, v.symbol, created.OrderID)
	if err != nil {
		return report, err
	}
	if resp.IsSuccess() {
		return report, failf("cancel again", "second cancel of a canceled order succeeded with status %d", resp.StatusCode)
	}
	if err := expectAPICode("cancel again", resp, core.CodeCancelRejected, http.StatusBadRequest); err != nil {
		return report, err
	}
	return report, nil
}

func checkCreated(created *core.Order, req *exchange.OrderRequest) error {
	if created.OrderID <= 0 {
		return failf("create", "response has no orderId")
	}
	if created.Symbol != req.Symbol {
		return failf("create", "symbol %q, expected %q", created.Symbol, req.Symbol)
	}
	if created.Side != req.Side {
		return failf("create", "side %s, expected %s", created.Side, req.Side)
	}
	if created.Type != req.Type {
		return failf("create", "type %s, expected %s", created.Type, req.Type)
	}
	return nil
}

// pollOrder queries the order until the exchange knows it or the poll window closes.
func (v *LifecycleVerifier) pollOrder(ctx context.Context, orderID int64) (*core.Order, error) {
	deadline := time.Now().Add(v.pollTimeout)
	for {
		resp, err := v.client.GetOrder(ctx, v.symbol, orderID)
		if err != nil {
			return nil, err
		}
		if resp.IsSuccess() {
			o, err := binance.DecodeOrder(resp)
			if err != nil {
				return nil, failf("query", "decode order: %v", err)
			}
			return o, nil
		}

		var exErr *core.ExchangeError
		notYet := errors.As(binance.ErrorFromResponse(resp), &exErr) && core.IsErrorCode(exErr, core.CodeNoSuchOrder)
		if !notYet || time.Now().After(deadline) {
			return nil, statusError("query", resp, "order not readable")
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(v.pollInterval):
		}
	}
}

func (v *LifecycleVerifier) checkOpenOrders(ctx context.Context, orderID int64) error {
	resp, err := v.client.OpenOrders(ctx, v.symbol)
	if err != nil {
		return err
	}
	if err := expectStatus("open orders", resp, http.StatusOK); err != nil {
		return err
	}
	orders, err := binance.DecodeOrders(resp)
	if err != nil {
		return failf("open orders", "decode orders: %v", err)
	}
	for _, o := range orders {
		if o.OrderID == orderID {
			return nil
		}
	}
	return failf("open orders", "order %d missing from open orders", orderID)
}

func (v *LifecycleVerifier) cleanup(ctx context.Context, orderID int64, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	resp, err := v.client.CancelOrder(ctx, v.symbol, orderID)
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("cleanup cancel failed")
	case !resp.IsSuccess():
		log.Warn().Int("status", resp.StatusCode).Msg("cleanup cancel rejected")
	default:
		log.Info().Msg("order canceled during cleanup")
	}
}
