package handlers

import (
	"context"

	"github.com/polkiloo/payrecon/internal/domain/model"
	"github.com/polkiloo/payrecon/internal/usecase"
)

// WebhookFacade processes signed provider notifications.
type WebhookFacade interface {
	HandleStripeWebhook(ctx context.Context, body []byte, signature string) (*usecase.WebhookResult, error)
}

// CheckoutFacade encapsulates the PayPal checkout operations exposed via HTTP.
type CheckoutFacade interface {
	CreatePayPalOrder(ctx context.Context, req model.CreateOrderRequest) (*model.CheckoutSession, error)
	CapturePayPalOrder(ctx context.Context, providerOrderID string) (*usecase.CaptureOutcome, error)
}

// AdminFacade provides operator tooling.
type AdminFacade interface {
	PayPalOrderDetails(ctx context.Context, providerOrderID string) (*model.ProviderOrderDetails, error)
	ReconcileOrder(ctx context.Context, orderID string) (*usecase.ApplyResult, error)
}

// PaymentFacade aggregates the full set of operations used across handlers.
type PaymentFacade interface {
	WebhookFacade
	CheckoutFacade
	AdminFacade
}
