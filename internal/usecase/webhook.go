package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	domainErrors "github.com/polkiloo/payrecon/internal/domain/errors"
	"github.com/polkiloo/payrecon/internal/domain/model"
)

// SignatureVerifier authenticates a raw webhook body.
type SignatureVerifier interface {
	Verify(header string, body []byte) error
}

// WebhookNormalizer maps an authenticated webhook body to a payment event.
type WebhookNormalizer interface {
	Normalize(ctx context.Context, payload []byte) (*model.PaymentEvent, error)
}

// WebhookResult describes an acknowledged delivery.
type WebhookResult struct {
	Outcome Outcome
	OrderID string
	EventID string
	Status  model.OrderStatus
}

// WebhookUseCase verifies, normalizes and applies push notifications.
type WebhookUseCase struct {
	verifier      SignatureVerifier
	normalizer    WebhookNormalizer
	reconciler    *ReconcileUseCase
	ledgerTimeout time.Duration
	logger        *slog.Logger
}

// NewWebhookUseCase constructs WebhookUseCase.
func NewWebhookUseCase(verifier SignatureVerifier, normalizer WebhookNormalizer, reconciler *ReconcileUseCase, ledgerTimeout time.Duration, logger *slog.Logger) *WebhookUseCase {
	if ledgerTimeout <= 0 {
		ledgerTimeout = 5 * time.Second
	}
	return &WebhookUseCase{
		verifier:      verifier,
		normalizer:    normalizer,
		reconciler:    reconciler,
		ledgerTimeout: ledgerTimeout,
		logger:        logger,
	}
}

// Handle processes one delivery. A nil error means the delivery must be
// acknowledged. Errors match ErrAuthentication or ErrMalformedPayload when the
// delivery is rejected, and ErrLedger when the provider should redeliver.
func (u *WebhookUseCase) Handle(ctx context.Context, body []byte, signatureHeader string) (*WebhookResult, error) {
	if err := u.verifier.Verify(signatureHeader, body); err != nil {
		u.logger.Warn("webhook signature rejected", slog.String("error", err.Error()))
		return nil, err
	}

	event, err := u.normalize(ctx, body)
	if err != nil {
		switch {
		case errors.Is(err, domainErrors.ErrMalformedPayload), errors.Is(err, domainErrors.ErrLedger):
			u.logger.Error("webhook not processed", slog.String("error", err.Error()))
			return nil, err
		case errors.Is(err, domainErrors.ErrUnrecognizedEvent):
			u.logger.Info("webhook event ignored", slog.String("reason", err.Error()))
			return &WebhookResult{Outcome: OutcomeIgnored}, nil
		default:
			u.logger.Warn("webhook payload not resolvable, manual review required", slog.String("error", err.Error()))
			return &WebhookResult{Outcome: OutcomeIgnored}, nil
		}
	}

	res, err := u.reconciler.Apply(ctx, *event)
	if err != nil {
		attrs := []any{
			slog.String("order_id", event.OrderID),
			slog.String("event_id", event.ProviderEventID),
			slog.String("error", err.Error()),
		}
		switch {
		case errors.Is(err, domainErrors.ErrNotFound), errors.Is(err, domainErrors.ErrProviderMismatch):
			u.logger.Warn("webhook order not found, manual review required", attrs...)
			return &WebhookResult{Outcome: OutcomeIgnored, OrderID: event.OrderID, EventID: event.ProviderEventID}, nil
		case errors.Is(err, domainErrors.ErrAlreadyExists):
			u.logger.Error("webhook capture id already recorded on another order, manual review required", attrs...)
			return &WebhookResult{Outcome: OutcomeIgnored, OrderID: event.OrderID, EventID: event.ProviderEventID}, nil
		case errors.Is(err, domainErrors.ErrUnrecognizedEvent):
			u.logger.Info("webhook event ignored", attrs...)
			return &WebhookResult{Outcome: OutcomeIgnored, OrderID: event.OrderID, EventID: event.ProviderEventID}, nil
		default:
			u.logger.Error("webhook apply failed", attrs...)
			return nil, err
		}
	}

	return &WebhookResult{
		Outcome: res.Outcome,
		OrderID: res.OrderID,
		EventID: event.ProviderEventID,
		Status:  res.Status,
	}, nil
}

func (u *WebhookUseCase) normalize(ctx context.Context, body []byte) (*model.PaymentEvent, error) {
	normCtx, cancel := context.WithTimeout(ctx, u.ledgerTimeout)
	defer cancel()
	return u.normalizer.Normalize(normCtx, body)
}
