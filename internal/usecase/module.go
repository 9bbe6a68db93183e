package usecase

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/payrecon/internal/config"
	"github.com/polkiloo/payrecon/internal/domain/repository"
)

// Module provides core business use cases to the fx container.
var Module = fx.Provide(
	newReconcileUseCase,
	newWebhookUseCase,
	newCheckoutUseCase,
)

type reconcileParams struct {
	fx.In

	Ledger repository.OrderLedger
	Config *config.Config
	Logger *slog.Logger
}

func newReconcileUseCase(p reconcileParams) *ReconcileUseCase {
	return NewReconcileUseCase(p.Ledger, p.Config.LedgerTimeout, p.Logger)
}

type webhookParams struct {
	fx.In

	Verifier   SignatureVerifier
	Normalizer WebhookNormalizer
	Reconciler *ReconcileUseCase
	Config     *config.Config
	Logger     *slog.Logger
}

func newWebhookUseCase(p webhookParams) *WebhookUseCase {
	return NewWebhookUseCase(p.Verifier, p.Normalizer, p.Reconciler, p.Config.LedgerTimeout, p.Logger)
}

type checkoutParams struct {
	fx.In

	Ledger     repository.OrderLedger
	Provider   OrderProvider
	Normalizer OrderNormalizer
	Reconciler *ReconcileUseCase
	Config     *config.Config
	Logger     *slog.Logger
}

func newCheckoutUseCase(p checkoutParams) *CheckoutUseCase {
	return NewCheckoutUseCase(p.Ledger, p.Provider, p.Normalizer, p.Reconciler, CheckoutConfig{
		ProviderTimeout:  p.Config.ProviderTimeout,
		LedgerTimeout:    p.Config.LedgerTimeout,
		CaptureRetries:   p.Config.CaptureRetries,
		ReconcileBackoff: p.Config.ReconcileBackoff,
	}, p.Logger)
}
