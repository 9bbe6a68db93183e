package test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/polkiloo/payrecon/internal/domain/model"
	"github.com/polkiloo/payrecon/internal/usecase"
)

// WebhookFacadeStub simulates webhook processing.
type WebhookFacadeStub struct {
	HandleFn func(context.Context, []byte, string) (*usecase.WebhookResult, error)
}

// HandleStripeWebhook delegates to override or acknowledges as applied.
func (s WebhookFacadeStub) HandleStripeWebhook(ctx context.Context, body []byte, signature string) (*usecase.WebhookResult, error) {
	if s.HandleFn != nil {
		return s.HandleFn(ctx, body, signature)
	}
	return &usecase.WebhookResult{Outcome: usecase.OutcomeApplied}, nil
}

// CheckoutFacadeStub provides controllable behaviour for checkout endpoints.
type CheckoutFacadeStub struct {
	CreateFn  func(context.Context, model.CreateOrderRequest) (*model.CheckoutSession, error)
	CaptureFn func(context.Context, string) (*usecase.CaptureOutcome, error)
}

// CreatePayPalOrder returns configured session or a default one.
func (s CheckoutFacadeStub) CreatePayPalOrder(ctx context.Context, req model.CreateOrderRequest) (*model.CheckoutSession, error) {
	if s.CreateFn != nil {
		return s.CreateFn(ctx, req)
	}
	return &model.CheckoutSession{ProviderOrderID: "pp_" + req.OrderID, ApprovalLink: "https://paypal.test/approve"}, nil
}

// CapturePayPalOrder returns configured outcome or a paid order.
func (s CheckoutFacadeStub) CapturePayPalOrder(ctx context.Context, providerOrderID string) (*usecase.CaptureOutcome, error) {
	if s.CaptureFn != nil {
		return s.CaptureFn(ctx, providerOrderID)
	}
	return &usecase.CaptureOutcome{
		ProviderOrderID: providerOrderID,
		Status:          model.CaptureCompleted,
		CaptureID:       "cap_1",
		OrderStatus:     model.OrderStatusPaid,
		Outcome:         usecase.OutcomeApplied,
	}, nil
}

// AdminFacadeStub simulates operator tooling.
type AdminFacadeStub struct {
	DetailsFn   func(context.Context, string) (*model.ProviderOrderDetails, error)
	ReconcileFn func(context.Context, string) (*usecase.ApplyResult, error)
}

// PayPalOrderDetails returns configured details or a completed order.
func (s AdminFacadeStub) PayPalOrderDetails(ctx context.Context, providerOrderID string) (*model.ProviderOrderDetails, error) {
	if s.DetailsFn != nil {
		return s.DetailsFn(ctx, providerOrderID)
	}
	return &model.ProviderOrderDetails{
		ProviderOrderID: providerOrderID,
		Status:          model.ProviderOrderCompleted,
		CaptureID:       "cap_1",
		CaptureStatus:   "COMPLETED",
		Amount:          decimal.RequireFromString("50.00"),
		Currency:        "USD",
	}, nil
}

// ReconcileOrder returns configured result or a noop.
func (s AdminFacadeStub) ReconcileOrder(ctx context.Context, orderID string) (*usecase.ApplyResult, error) {
	if s.ReconcileFn != nil {
		return s.ReconcileFn(ctx, orderID)
	}
	return &usecase.ApplyResult{OrderID: orderID, Outcome: usecase.OutcomeNoop, Previous: model.OrderStatusPaid, Status: model.OrderStatusPaid}, nil
}

// PaymentFacadeStub aggregates facade dependencies for HTTP layer tests.
type PaymentFacadeStub struct {
	WebhookFacadeStub
	CheckoutFacadeStub
	AdminFacadeStub
}

// WorkerFacadeStub mimics worker interactions with the payment facade.
type WorkerFacadeStub struct {
	Orders          [][]model.Order
	OrdersFn        func(context.Context, int) ([]model.Order, error)
	ReconcileFn     func(context.Context, model.Order) (*usecase.ApplyResult, error)
	Reconciled      []model.Order
	mu              sync.Mutex
	ordersCallCount int32
}

// Lock exposes internal mutex for external synchronization.
func (s *WorkerFacadeStub) Lock() { s.mu.Lock() }

// Unlock releases previously acquired lock.
func (s *WorkerFacadeStub) Unlock() { s.mu.Unlock() }

// OrdersForReconciliation returns batches from configured queue.
func (s *WorkerFacadeStub) OrdersForReconciliation(ctx context.Context, limit int) ([]model.Order, error) {
	if s.OrdersFn != nil {
		return s.OrdersFn(ctx, limit)
	}
	call := atomic.AddInt32(&s.ordersCallCount, 1)
	if int(call) <= len(s.Orders) {
		return s.Orders[call-1], nil
	}
	time.Sleep(10 * time.Millisecond)
	return nil, nil
}

// Reconcile records reconciled orders.
func (s *WorkerFacadeStub) Reconcile(ctx context.Context, order model.Order) (*usecase.ApplyResult, error) {
	var (
		res *usecase.ApplyResult
		err error
	)
	if s.ReconcileFn != nil {
		res, err = s.ReconcileFn(ctx, order)
	} else {
		res = &usecase.ApplyResult{OrderID: order.ID, Outcome: usecase.OutcomeApplied, Previous: order.Status, Status: model.OrderStatusPaid}
	}
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Reconciled = append(s.Reconciled, order)
	return res, nil
}
