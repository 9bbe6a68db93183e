// Package memory provides an in-process order ledger for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	domainErrors "github.com/polkiloo/payrecon/internal/domain/errors"
	"github.com/polkiloo/payrecon/internal/domain/model"
)

type entry struct {
	order          model.Order
	reconcileAfter time.Time
}

// Ledger is a mutex-guarded order ledger. The mutex serializes every
// compare-and-write so concurrent ConditionalApply calls behave like the
// database implementation.
type Ledger struct {
	mu     sync.Mutex
	orders map[string]*entry
	events []model.OrderStatusChanged
	now    func() time.Time
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{orders: make(map[string]*entry), now: time.Now}
}

// Seed stores order as-is, replacing any previous record with the same id.
func (l *Ledger) Seed(order model.Order) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if order.Status == "" {
		order.Status = model.OrderStatusPending
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = l.now()
	}
	order.UpdatedAt = order.CreatedAt
	l.orders[order.ID] = &entry{order: order}
}

// Events returns the status change events recorded by ConditionalApply.
func (l *Ledger) Events() []model.OrderStatusChanged {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.OrderStatusChanged, len(l.events))
	copy(out, l.events)
	return out
}

func (l *Ledger) Get(ctx context.Context, orderID string) (*model.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.orders[orderID]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	order := e.order
	return &order, nil
}

func (l *Ledger) FindByProviderOrderID(ctx context.Context, provider model.Provider, providerOrderID string) (*model.Order, error) {
	return l.find(ctx, func(o *model.Order) bool {
		return o.Provider == provider && o.ProviderOrderID != "" && o.ProviderOrderID == providerOrderID
	})
}

func (l *Ledger) FindByCaptureID(ctx context.Context, provider model.Provider, captureID string) (*model.Order, error) {
	return l.find(ctx, func(o *model.Order) bool {
		return o.Provider == provider && o.ProviderCaptureID != "" && o.ProviderCaptureID == captureID
	})
}

func (l *Ledger) find(ctx context.Context, match func(*model.Order) bool) (*model.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.orders {
		if match(&e.order) {
			order := e.order
			return &order, nil
		}
	}
	return nil, domainErrors.ErrNotFound
}

func (l *Ledger) ConditionalApply(ctx context.Context, orderID string, expected model.OrderStatus, update model.OrderUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.orders[orderID]
	if !ok {
		return domainErrors.ErrNotFound
	}
	if e.order.Status != expected {
		return fmt.Errorf("order %s is %s: %w", orderID, e.order.Status, domainErrors.ErrStatusMismatch)
	}
	if update.ProviderCaptureID != "" {
		for id, other := range l.orders {
			if id != orderID && other.order.Provider == e.order.Provider && other.order.ProviderCaptureID == update.ProviderCaptureID {
				return fmt.Errorf("capture id already recorded: %w", domainErrors.ErrAlreadyExists)
			}
		}
	}

	o := &e.order
	o.Status = update.Status
	if update.AmountPaid.Valid {
		o.AmountPaid = update.AmountPaid
	}
	if update.Currency != "" {
		o.Currency = update.Currency
	}
	if update.ProviderCaptureID != "" {
		o.ProviderCaptureID = update.ProviderCaptureID
	}
	if update.PaidAt != nil {
		paidAt := *update.PaidAt
		o.PaidAt = &paidAt
	}
	if update.ClearReconciliation {
		o.NeedsReconciliation = false
		o.ReconciliationReason = ""
	}
	o.UpdatedAt = l.now()

	if eventType := model.EventTypeFor(update.Status); eventType != "" {
		event := model.OrderStatusChanged{
			Type:              eventType,
			OrderID:           orderID,
			Provider:          o.Provider,
			ProviderOrderID:   o.ProviderOrderID,
			ProviderCaptureID: o.ProviderCaptureID,
			PreviousStatus:    expected,
			Status:            o.Status,
			Currency:          o.Currency,
			PaidAt:            o.PaidAt,
			OccurredAt:        o.UpdatedAt,
		}
		if o.AmountPaid.Valid {
			amount := o.AmountPaid.Decimal
			event.Amount = &amount
		}
		l.events = append(l.events, event)
	}
	return nil
}

func (l *Ledger) AssignProviderReference(ctx context.Context, orderID, providerOrderID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.orders[orderID]
	if !ok {
		return domainErrors.ErrNotFound
	}
	if e.order.ProviderOrderID != "" {
		if e.order.ProviderOrderID == providerOrderID {
			return nil
		}
		return domainErrors.ErrAlreadyExists
	}
	for id, other := range l.orders {
		if id != orderID && other.order.Provider == e.order.Provider && other.order.ProviderOrderID == providerOrderID {
			return domainErrors.ErrAlreadyExists
		}
	}
	e.order.ProviderOrderID = providerOrderID
	e.order.UpdatedAt = l.now()
	return nil
}

func (l *Ledger) FlagForReconciliation(ctx context.Context, orderID, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.orders[orderID]
	if !ok {
		return domainErrors.ErrNotFound
	}
	e.order.NeedsReconciliation = true
	e.order.ReconciliationReason = reason
	e.reconcileAfter = l.now()
	return nil
}

func (l *Ledger) ClearReconciliation(ctx context.Context, orderID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.orders[orderID]
	if !ok {
		return domainErrors.ErrNotFound
	}
	e.order.NeedsReconciliation = false
	e.order.ReconciliationReason = ""
	e.reconcileAfter = time.Time{}
	return nil
}

func (l *Ledger) SelectBatchForReconciliation(ctx context.Context, limit int, backoff time.Duration) ([]model.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	var due []*entry
	for _, e := range l.orders {
		if e.order.NeedsReconciliation && e.order.ProviderOrderID != "" && !e.reconcileAfter.After(now) {
			due = append(due, e)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].reconcileAfter.Before(due[j].reconcileAfter) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	orders := make([]model.Order, 0, len(due))
	for _, e := range due {
		e.reconcileAfter = now.Add(backoff)
		orders = append(orders, e.order)
	}
	return orders, nil
}
