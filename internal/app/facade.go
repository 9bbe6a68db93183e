package app

import (
	"context"

	"github.com/polkiloo/payrecon/internal/domain/model"
	"github.com/polkiloo/payrecon/internal/usecase"
)

// PaymentFacade is the single entry point used by the HTTP layer and the
// reconciliation worker.
type PaymentFacade struct {
	webhooks *usecase.WebhookUseCase
	checkout *usecase.CheckoutUseCase
}

func NewPaymentFacade(webhooks *usecase.WebhookUseCase, checkout *usecase.CheckoutUseCase) *PaymentFacade {
	return &PaymentFacade{webhooks: webhooks, checkout: checkout}
}

func (f *PaymentFacade) HandleStripeWebhook(ctx context.Context, body []byte, signature string) (*usecase.WebhookResult, error) {
	return f.webhooks.Handle(ctx, body, signature)
}

func (f *PaymentFacade) CreatePayPalOrder(ctx context.Context, req model.CreateOrderRequest) (*model.CheckoutSession, error) {
	return f.checkout.CreateOrder(ctx, req)
}

func (f *PaymentFacade) CapturePayPalOrder(ctx context.Context, providerOrderID string) (*usecase.CaptureOutcome, error) {
	return f.checkout.CaptureOrder(ctx, providerOrderID)
}

func (f *PaymentFacade) PayPalOrderDetails(ctx context.Context, providerOrderID string) (*model.ProviderOrderDetails, error) {
	return f.checkout.GetOrderDetails(ctx, providerOrderID)
}

func (f *PaymentFacade) ReconcileOrder(ctx context.Context, orderID string) (*usecase.ApplyResult, error) {
	return f.checkout.ReconcileOrder(ctx, orderID)
}

func (f *PaymentFacade) OrdersForReconciliation(ctx context.Context, limit int) ([]model.Order, error) {
	return f.checkout.OrdersForReconciliation(ctx, limit)
}

func (f *PaymentFacade) Reconcile(ctx context.Context, order model.Order) (*usecase.ApplyResult, error) {
	return f.checkout.Reconcile(ctx, order)
}
