package repository

import (
	"context"
	"time"

	"github.com/polkiloo/payrecon/internal/domain/model"
)

// OrderLedger describes the durable store of order payment state.
//
// ConditionalApply is the only operation allowed to change an order's status.
// It must write all fields of the update in a single atomic step and only when
// the stored status still equals expected; otherwise it returns
// ErrStatusMismatch (or ErrNotFound when the order does not exist).
type OrderLedger interface {
	Get(ctx context.Context, orderID string) (*model.Order, error)
	FindByProviderOrderID(ctx context.Context, provider model.Provider, providerOrderID string) (*model.Order, error)
	FindByCaptureID(ctx context.Context, provider model.Provider, captureID string) (*model.Order, error)
	ConditionalApply(ctx context.Context, orderID string, expected model.OrderStatus, update model.OrderUpdate) error
	AssignProviderReference(ctx context.Context, orderID, providerOrderID string) error
	FlagForReconciliation(ctx context.Context, orderID, reason string) error
	ClearReconciliation(ctx context.Context, orderID string) error
	SelectBatchForReconciliation(ctx context.Context, limit int, backoff time.Duration) ([]model.Order, error)
}

// OutboxRepository exposes the transactional outbox written by ConditionalApply.
type OutboxRepository interface {
	LockPending(ctx context.Context, limit int, lease time.Duration) ([]model.OutboxMessage, error)
	MarkSent(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, nextRetry time.Time) error
}
