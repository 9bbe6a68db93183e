package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	domainErrors "github.com/polkiloo/payrecon/internal/domain/errors"
	"github.com/polkiloo/payrecon/internal/domain/model"
	"github.com/polkiloo/payrecon/internal/domain/repository"
	"github.com/polkiloo/payrecon/internal/reconcile"
)

// Outcome describes what happened to one payment event.
type Outcome string

const (
	// OutcomeApplied means the event changed the order.
	OutcomeApplied Outcome = "applied"
	// OutcomeNoop means the order already was in an equal or later state.
	OutcomeNoop Outcome = "noop"
	// OutcomeIgnored means the event was acknowledged without touching the ledger.
	OutcomeIgnored Outcome = "ignored"
)

// ApplyResult reports the effect of an event on its order.
type ApplyResult struct {
	OrderID  string
	Outcome  Outcome
	Previous model.OrderStatus
	Status   model.OrderStatus
	Order    *model.Order
}

// ReconcileUseCase is the single write path shared by webhooks, captures and
// reconciliation probes.
type ReconcileUseCase struct {
	ledger        repository.OrderLedger
	ledgerTimeout time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

// NewReconcileUseCase constructs ReconcileUseCase.
func NewReconcileUseCase(ledger repository.OrderLedger, ledgerTimeout time.Duration, logger *slog.Logger) *ReconcileUseCase {
	if ledgerTimeout <= 0 {
		ledgerTimeout = 5 * time.Second
	}
	return &ReconcileUseCase{ledger: ledger, ledgerTimeout: ledgerTimeout, logger: logger, now: time.Now}
}

// Apply feeds event to the state machine and writes the decision with a
// conditional update. Losing a race to a concurrent writer is not an error.
func (u *ReconcileUseCase) Apply(ctx context.Context, event model.PaymentEvent) (*ApplyResult, error) {
	order, err := u.get(ctx, event.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Provider != event.Provider {
		return nil, fmt.Errorf("order %s belongs to %s: %w", order.ID, order.Provider, domainErrors.ErrProviderMismatch)
	}

	decision, err := reconcile.Transition(order.Status, event, u.now())
	if err != nil {
		return nil, err
	}

	result := &ApplyResult{
		OrderID:  order.ID,
		Outcome:  OutcomeNoop,
		Previous: order.Status,
		Status:   order.Status,
		Order:    order,
	}
	if !decision.Apply {
		return result, nil
	}

	err = ledgerCall(ctx, u.ledgerTimeout, "conditional apply", func(ctx context.Context) error {
		return u.ledger.ConditionalApply(ctx, order.ID, order.Status, decision.Update)
	})
	switch {
	case err == nil:
		result.Outcome = OutcomeApplied
		result.Status = decision.Next
		result.Order = withUpdate(*order, decision.Update)
		u.logger.Info("order status changed",
			slog.String("order_id", order.ID),
			slog.String("from", string(order.Status)),
			slog.String("to", string(decision.Next)),
			slog.String("event", string(event.Kind)),
		)
	case errors.Is(err, domainErrors.ErrStatusMismatch):
		u.logger.Info("order reconciled by concurrent writer", slog.String("order_id", order.ID))
		if current, getErr := u.get(ctx, order.ID); getErr == nil {
			result.Order = current
			result.Status = current.Status
		}
	default:
		return nil, err
	}
	return result, nil
}

func (u *ReconcileUseCase) get(ctx context.Context, orderID string) (*model.Order, error) {
	var order *model.Order
	err := ledgerCall(ctx, u.ledgerTimeout, "get order", func(ctx context.Context) error {
		var err error
		order, err = u.ledger.Get(ctx, orderID)
		return err
	})
	return order, err
}

func withUpdate(order model.Order, update model.OrderUpdate) *model.Order {
	order.Status = update.Status
	if update.AmountPaid.Valid {
		order.AmountPaid = update.AmountPaid
	}
	if update.Currency != "" {
		order.Currency = update.Currency
	}
	if update.ProviderCaptureID != "" {
		order.ProviderCaptureID = update.ProviderCaptureID
	}
	if update.PaidAt != nil {
		order.PaidAt = update.PaidAt
	}
	if update.ClearReconciliation {
		order.NeedsReconciliation = false
		order.ReconciliationReason = ""
	}
	return &order
}
