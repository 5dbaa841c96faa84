package verify

import (
	"context"
	"net/http"
	"slices"

	"tradeprobe/pkg/core"
	"tradeprobe/pkg/exchange"
	"tradeprobe/pkg/exchange/binance"
	"tradeprobe/pkg/order"
)

const SuiteTrading = "trading"

const unknownOrderID int64 = 999999999

// TradingSuite checks the signed account and order surface. Every scenario needs
// credentials; orders are LIMIT buys priced far from market and canceled before the
// scenario returns.
type TradingSuite struct {
	Client   exchange.Exchange
	Symbol   string
	Quantity string
	// Price is a LIMIT price that will not fill.
	Price     string
	Lifecycle []LifecycleOption
}

func (s *TradingSuite) Scenarios() []Scenario {
	mk := func(name string, fn func(context.Context) error) Scenario {
		return Scenario{Suite: SuiteTrading, Name: name, Requires: RequiresCredentials, Run: fn}
	}
	return []Scenario{
		mk("account_balances", s.accountBalances),
		mk("test_order", s.testOrder),
		mk("query_order", s.queryOrder),
		mk("all_orders", s.allOrders),
		mk("order_lifecycle", s.lifecycle),
		mk("cancel_unknown_order", s.cancelUnknown),
		mk("invalid_symbol_order", s.invalidSymbol),
		mk("negative_quantity", s.negativeQuantity),
	}
}

func (s *TradingSuite) limitBuy() (*exchange.OrderRequest, error) {
	return order.NewBuilder(s.Symbol).Buy().Limit().Quantity(s.Quantity).Price(s.Price).GTC().Build()
}

func (s *TradingSuite) accountBalances(ctx context.Context) error {
	resp, err := s.Client.AccountInfo(ctx)
	if err != nil {
		return err
	}
	if err := expectStatus("account", resp, http.StatusOK); err != nil {
		return err
	}
	obj, err := requireObject("account", resp)
	if err != nil {
		return err
	}
	raw, ok := obj["balances"].([]any)
	if !ok {
		return failf("account", "balances is not a list")
	}
	for _, b := range raw {
		entry, ok := b.(map[string]any)
		if !ok {
			return failf("account", "balance entry is not an object")
		}
		if err := requireFields("account", entry, "asset", "free", "locked"); err != nil {
			return err
		}
	}

	acct, err := binance.DecodeAccount(resp)
	if err != nil {
		return failf("account", "decode: %v", err)
	}
	funded := slices.IndexFunc(acct.Balances, func(b core.Balance) bool {
		return b.Free.Sign() > 0 || b.Locked.Sign() > 0
	})
	if funded < 0 {
		return failf("account", "no asset has a non-zero balance")
	}
	return nil
}

func (s *TradingSuite) testOrder(ctx context.Context) error {
	req, err := s.limitBuy()
	if err != nil {
		return err
	}
	resp, err := s.Client.TestOrder(ctx, req)
	if err != nil {
		return err
	}
	if err := expectStatus("test order", resp, http.StatusOK); err != nil {
		return err
	}
	obj, err := requireObject("test order", resp)
	if err != nil {
		return err
	}
	if len(obj) != 0 {
		return failf("test order", "expected an empty object, got %d fields", len(obj))
	}
	return nil
}

func (s *TradingSuite) queryOrder(ctx context.Context) error {
	req, err := s.limitBuy()
	if err != nil {
		return err
	}
	resp, err := s.Client.CreateOrder(ctx, req)
	if err != nil {
		return err
	}
	if err := expectStatus("create", resp, http.StatusOK); err != nil {
		return err
	}
	created, err := binance.DecodeOrder(resp)
	if err != nil {
		return failf("create", "decode order: %v", err)
	}
	defer func() {
		_, _ = s.Client.CancelOrder(context.WithoutCancel(ctx), s.Symbol, created.OrderID)
	}()

	resp, err = s.Client.GetOrder(ctx, s.Symbol, created.OrderID)
	if err != nil {
		return err
	}
	if err := expectStatus("query", resp, http.StatusOK); err != nil {
		return err
	}
	got, err := binance.DecodeOrder(resp)
	if err != nil {
		return failf("query", "decode order: %v", err)
	}
	if got.OrderID != created.OrderID {
		return failf("query", "order id %d, expected %d", got.OrderID, created.OrderID)
	}
	if err := checkCreated(got, req); err != nil {
		return err
	}
	switch got.Status {
	case core.StatusNew, core.StatusPartiallyFilled, core.StatusFilled, core.StatusCanceled:
		return nil
	default:
		return failf("query", "unexpected status %s", got.Status)
	}
}

func (s *TradingSuite) allOrders(ctx context.Context) error {
	resp, err := s.Client.AllOrders(ctx, s.Symbol, exchange.WithLimit(10))
	if err != nil {
		return err
	}
	if err := expectStatus("all orders", resp, http.StatusOK); err != nil {
		return err
	}
	arr, err := requireArray("all orders", resp)
	if err != nil {
		return err
	}
	if len(arr) > 10 {
		return failf("all orders", "got %d orders, limit 10", len(arr))
	}
	return nil
}

func (s *TradingSuite) lifecycle(ctx context.Context) error {
	report, err := NewLifecycleVerifier(s.Client, s.Symbol, s.Quantity, s.Price, s.Lifecycle...).Run(ctx)
	if err != nil {
		return err
	}
	return WithDetail("order %d observed %v", report.OrderID, report.Observed)
}

func (s *TradingSuite) cancelUnknown(ctx context.Context) error {
	resp, err := s.Client.CancelOrder(ctx, s.Symbol, unknownOrderID)
	if err != nil {
		return err
	}
	if err := expectStatus("cancel unknown", resp, http.StatusBadRequest, http.StatusNotFound); err != nil {
		return err
	}
	_, err = expectErrorPayload("cancel unknown", resp)
	return err
}

func (s *TradingSuite) invalidSymbol(ctx context.Context) error {
	req, err := order.NewBuilder("INVALIDPAIR").Buy().Market().Quantity(s.Quantity).Build()
	if err != nil {
		return err
	}
	resp, err := s.Client.CreateOrder(ctx, req)
	if err != nil {
		return err
	}
	return expectAPICode("invalid symbol", resp, core.CodeBadSymbol, http.StatusBadRequest)
}

func (s *TradingSuite) negativeQuantity(ctx context.Context) error {
	req, err := order.NewBuilder(s.Symbol).Buy().Limit().Quantity("-" + s.Quantity).Price(s.Price).GTC().Build()
	if err != nil {
		return err
	}
	resp, err := s.Client.TestOrder(ctx, req)
	if err != nil {
		return err
	}
	if err := expectStatus("negative quantity", resp, http.StatusBadRequest); err != nil {
		return err
	}
	_, err = expectErrorPayload("negative quantity", resp)
	return err
}
