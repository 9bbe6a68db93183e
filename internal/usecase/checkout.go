package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/payrecon/internal/domain/errors"
	"github.com/polkiloo/payrecon/internal/domain/model"
	"github.com/polkiloo/payrecon/internal/domain/repository"
)

// Reasons recorded on orders queued for reconciliation.
const (
	ReasonCaptureUnknown   = "capture outcome unknown"
	ReasonCapturePending   = "capture pending at provider"
	ReasonCaptureUnsettled = "capture returned no settled state"
	ReasonLedgerFailure    = "ledger write failed after capture"
)

// OrderProvider is the pull-style payment provider.
type OrderProvider interface {
	CreateOrder(ctx context.Context, req model.CreateOrderRequest) (*model.CheckoutSession, error)
	CaptureOrder(ctx context.Context, providerOrderID string) (*model.CaptureResult, error)
	GetOrderDetails(ctx context.Context, providerOrderID string) (*model.ProviderOrderDetails, error)
}

// OrderNormalizer maps a provider order resource to a payment event.
type OrderNormalizer interface {
	Normalize(ctx context.Context, payload []byte) (*model.PaymentEvent, error)
}

// CheckoutConfig holds the orchestrator's timeouts and retry budget.
type CheckoutConfig struct {
	ProviderTimeout  time.Duration
	LedgerTimeout    time.Duration
	CaptureRetries   int
	ReconcileBackoff time.Duration
}

// CaptureOutcome is the caller-visible result of a capture.
type CaptureOutcome struct {
	OrderID         string
	ProviderOrderID string
	Status          model.CaptureStatus
	CaptureID       string
	Amount          decimal.Decimal
	Currency        string
	OrderStatus     model.OrderStatus
	Outcome         Outcome
}

// Succeeded reports whether the order is paid.
func (o *CaptureOutcome) Succeeded() bool {
	return o.OrderStatus == model.OrderStatusPaid
}

// CheckoutUseCase drives create, capture and probe calls against the provider
// and routes their results through the shared apply path.
type CheckoutUseCase struct {
	ledger     repository.OrderLedger
	provider   OrderProvider
	normalizer OrderNormalizer
	reconciler *ReconcileUseCase
	cfg        CheckoutConfig
	logger     *slog.Logger
}

// NewCheckoutUseCase constructs CheckoutUseCase.
func NewCheckoutUseCase(ledger repository.OrderLedger, provider OrderProvider, normalizer OrderNormalizer, reconciler *ReconcileUseCase, cfg CheckoutConfig, logger *slog.Logger) *CheckoutUseCase {
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 15 * time.Second
	}
	if cfg.LedgerTimeout <= 0 {
		cfg.LedgerTimeout = 5 * time.Second
	}
	if cfg.CaptureRetries < 0 {
		cfg.CaptureRetries = 0
	}
	if cfg.ReconcileBackoff <= 0 {
		cfg.ReconcileBackoff = time.Minute
	}
	return &CheckoutUseCase{
		ledger:     ledger,
		provider:   provider,
		normalizer: normalizer,
		reconciler: reconciler,
		cfg:        cfg,
		logger:     logger,
	}
}

// CreateOrder opens a provider order for a pending ledger order and records
// the provider reference. The provider call is never retried here.
func (u *CheckoutUseCase) CreateOrder(ctx context.Context, req model.CreateOrderRequest) (*model.CheckoutSession, error) {
	if err := ValidateCreateOrder(req); err != nil {
		return nil, err
	}

	order, err := u.get(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Provider != model.ProviderPayPal {
		return nil, fmt.Errorf("order %s belongs to %s: %w", order.ID, order.Provider, domainErrors.ErrProviderMismatch)
	}
	if order.Status != model.OrderStatusPending {
		return nil, fmt.Errorf("order %s is %s: %w", order.ID, order.Status, domainErrors.ErrStatusMismatch)
	}
	if order.ProviderOrderID != "" {
		return nil, fmt.Errorf("order %s already references %s: %w", order.ID, order.ProviderOrderID, domainErrors.ErrAlreadyExists)
	}

	providerCtx, cancel := context.WithTimeout(ctx, u.cfg.ProviderTimeout)
	session, err := u.provider.CreateOrder(providerCtx, req)
	cancel()
	if err != nil {
		u.logger.Error("create provider order failed", slog.String("order_id", order.ID), slog.String("error", err.Error()))
		return nil, err
	}

	err = ledgerCall(ctx, u.cfg.LedgerTimeout, "assign provider reference", func(ctx context.Context) error {
		return u.ledger.AssignProviderReference(ctx, order.ID, session.ProviderOrderID)
	})
	if err != nil {
		u.logger.Error("store provider reference failed",
			slog.String("order_id", order.ID),
			slog.String("provider_order_id", session.ProviderOrderID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	u.logger.Info("provider order created", slog.String("order_id", order.ID), slog.String("provider_order_id", session.ProviderOrderID))
	return session, nil
}

// CaptureOrder captures providerOrderID and applies the result. Indeterminate
// provider answers are retried up to the configured budget and then returned
// as UnknownStateError with the order queued for reconciliation; they never
// mark the order failed.
func (u *CheckoutUseCase) CaptureOrder(ctx context.Context, providerOrderID string) (*CaptureOutcome, error) {
	order, err := u.findByProviderOrderID(ctx, providerOrderID)
	if err != nil {
		return nil, err
	}

	outcome := &CaptureOutcome{
		OrderID:         order.ID,
		ProviderOrderID: providerOrderID,
		OrderStatus:     order.Status,
		Outcome:         OutcomeNoop,
	}
	switch order.Status {
	case model.OrderStatusPaid:
		outcome.Status = model.CaptureCompleted
		outcome.CaptureID = order.ProviderCaptureID
		outcome.Amount = order.AmountPaid.Decimal
		outcome.Currency = order.Currency
		return outcome, nil
	case model.OrderStatusCancelled:
		return nil, fmt.Errorf("order %s is %s: %w", order.ID, order.Status, domainErrors.ErrStatusMismatch)
	}

	result, err := u.capture(ctx, providerOrderID)
	if err != nil {
		if errors.Is(err, domainErrors.ErrUnknownState) {
			u.flag(ctx, order.ID, ReasonCaptureUnknown)
		}
		return nil, err
	}

	outcome.Status = result.Status
	outcome.CaptureID = result.CaptureID
	outcome.Amount = result.Amount
	outcome.Currency = result.Currency

	if result.Status == model.CapturePending {
		u.flag(ctx, order.ID, ReasonCapturePending)
		return outcome, nil
	}

	event, err := u.normalize(ctx, result.Raw)
	if err != nil {
		if errors.Is(err, domainErrors.ErrUnrecognizedEvent) {
			u.logger.Warn("capture returned unsettled order", slog.String("order_id", order.ID), slog.String("reason", err.Error()))
			u.flag(ctx, order.ID, ReasonCaptureUnsettled)
			return outcome, nil
		}
		return nil, err
	}
	if event.OrderID != order.ID {
		u.logger.Error("capture references another order",
			slog.String("order_id", order.ID),
			slog.String("reference", event.OrderID),
		)
		return nil, fmt.Errorf("capture of %s references %s: %w", providerOrderID, event.OrderID, domainErrors.ErrProviderMismatch)
	}

	applied, err := u.reconciler.Apply(ctx, *event)
	if err != nil {
		if errors.Is(err, domainErrors.ErrLedger) {
			u.flag(ctx, order.ID, ReasonLedgerFailure)
		}
		return nil, err
	}

	outcome.Outcome = applied.Outcome
	outcome.OrderStatus = applied.Status
	if applied.Order != nil && applied.Order.ProviderCaptureID != "" {
		outcome.CaptureID = applied.Order.ProviderCaptureID
	}
	return outcome, nil
}

func (u *CheckoutUseCase) capture(ctx context.Context, providerOrderID string) (*model.CaptureResult, error) {
	for attempt := 0; ; attempt++ {
		providerCtx, cancel := context.WithTimeout(ctx, u.cfg.ProviderTimeout)
		result, err := u.provider.CaptureOrder(providerCtx, providerOrderID)
		cancel()
		if err == nil {
			if result.AlreadyCaptured {
				u.logger.Info("order already captured", slog.String("provider_order_id", providerOrderID))
			}
			return result, nil
		}
		if !errors.Is(err, domainErrors.ErrUnknownState) || attempt >= u.cfg.CaptureRetries || ctx.Err() != nil {
			u.logger.Error("capture failed",
				slog.String("provider_order_id", providerOrderID),
				slog.Int("attempts", attempt+1),
				slog.String("error", err.Error()),
			)
			return nil, err
		}
		u.logger.Warn("capture outcome unknown, retrying", slog.String("provider_order_id", providerOrderID), slog.Int("attempt", attempt+1))
	}
}

// GetOrderDetails probes the provider for its view of an order.
func (u *CheckoutUseCase) GetOrderDetails(ctx context.Context, providerOrderID string) (*model.ProviderOrderDetails, error) {
	providerCtx, cancel := context.WithTimeout(ctx, u.cfg.ProviderTimeout)
	defer cancel()
	return u.provider.GetOrderDetails(providerCtx, providerOrderID)
}

// ReconcileOrder probes and reconciles one order by ledger id.
func (u *CheckoutUseCase) ReconcileOrder(ctx context.Context, orderID string) (*ApplyResult, error) {
	order, err := u.get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return u.Reconcile(ctx, *order)
}

// Reconcile resolves order against the provider's current view. Orders whose
// provider answer is still unsettled stay queued.
func (u *CheckoutUseCase) Reconcile(ctx context.Context, order model.Order) (*ApplyResult, error) {
	if order.Status.Terminal() {
		if order.NeedsReconciliation {
			if err := u.clear(ctx, order.ID); err != nil {
				return nil, err
			}
		}
		return &ApplyResult{OrderID: order.ID, Outcome: OutcomeNoop, Previous: order.Status, Status: order.Status, Order: &order}, nil
	}
	if order.Provider != model.ProviderPayPal {
		return nil, fmt.Errorf("order %s belongs to %s: %w", order.ID, order.Provider, domainErrors.ErrProviderMismatch)
	}
	if order.ProviderOrderID == "" {
		return nil, fmt.Errorf("order %s has no provider reference: %w", order.ID, domainErrors.ErrNotFound)
	}

	details, err := u.GetOrderDetails(ctx, order.ProviderOrderID)
	if err != nil {
		return nil, err
	}

	event, err := u.normalize(ctx, details.Raw)
	if err != nil {
		if errors.Is(err, domainErrors.ErrUnrecognizedEvent) {
			u.logger.Info("order still unsettled at provider",
				slog.String("order_id", order.ID),
				slog.String("provider_status", string(details.Status)),
			)
			return &ApplyResult{OrderID: order.ID, Outcome: OutcomeIgnored, Previous: order.Status, Status: order.Status, Order: &order}, nil
		}
		return nil, err
	}
	if event.OrderID != order.ID {
		return nil, fmt.Errorf("provider order %s references %s: %w", order.ProviderOrderID, event.OrderID, domainErrors.ErrProviderMismatch)
	}

	result, err := u.reconciler.Apply(ctx, *event)
	if err != nil {
		return nil, err
	}
	if result.Order != nil && result.Order.NeedsReconciliation {
		if err := u.clear(ctx, order.ID); err != nil {
			return nil, err
		}
		result.Order.NeedsReconciliation = false
		result.Order.ReconciliationReason = ""
	}
	return result, nil
}

// OrdersForReconciliation leases a batch of flagged orders.
func (u *CheckoutUseCase) OrdersForReconciliation(ctx context.Context, limit int) ([]model.Order, error) {
	var orders []model.Order
	err := ledgerCall(ctx, u.cfg.LedgerTimeout, "select reconciliation batch", func(ctx context.Context) error {
		var err error
		orders, err = u.ledger.SelectBatchForReconciliation(ctx, limit, u.cfg.ReconcileBackoff)
		return err
	})
	return orders, err
}

func (u *CheckoutUseCase) normalize(ctx context.Context, raw []byte) (*model.PaymentEvent, error) {
	normCtx, cancel := context.WithTimeout(ctx, u.cfg.LedgerTimeout)
	defer cancel()
	return u.normalizer.Normalize(normCtx, raw)
}

// flag queues orderID for the reconciliation worker. Failures are logged only;
// the caller's original error is what matters.
func (u *CheckoutUseCase) flag(ctx context.Context, orderID, reason string) {
	err := ledgerCall(context.WithoutCancel(ctx), u.cfg.LedgerTimeout, "flag for reconciliation", func(ctx context.Context) error {
		return u.ledger.FlagForReconciliation(ctx, orderID, reason)
	})
	if err != nil {
		u.logger.Error("flag order for reconciliation failed", slog.String("order_id", orderID), slog.String("error", err.Error()))
		return
	}
	u.logger.Warn("order queued for reconciliation", slog.String("order_id", orderID), slog.String("reason", reason))
}

func (u *CheckoutUseCase) clear(ctx context.Context, orderID string) error {
	return ledgerCall(ctx, u.cfg.LedgerTimeout, "clear reconciliation", func(ctx context.Context) error {
		return u.ledger.ClearReconciliation(ctx, orderID)
	})
}

func (u *CheckoutUseCase) get(ctx context.Context, orderID string) (*model.Order, error) {
	var order *model.Order
	err := ledgerCall(ctx, u.cfg.LedgerTimeout, "get order", func(ctx context.Context) error {
		var err error
		order, err = u.ledger.Get(ctx, orderID)
		return err
	})
	return order, err
}

func (u *CheckoutUseCase) findByProviderOrderID(ctx context.Context, providerOrderID string) (*model.Order, error) {
	var order *model.Order
	err := ledgerCall(ctx, u.cfg.LedgerTimeout, "find order by provider id", func(ctx context.Context) error {
		var err error
		order, err = u.ledger.FindByProviderOrderID(ctx, model.ProviderPayPal, providerOrderID)
		return err
	})
	return order, err
}
