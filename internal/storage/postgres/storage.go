package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/payrecon/internal/domain/errors"
	"github.com/polkiloo/payrecon/internal/domain/model"
	"github.com/polkiloo/payrecon/internal/domain/repository"
)

type pgxPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

var newPgxPool = func(ctx context.Context, cfg *pgxpool.Config) (pgxPool, error) {
	return pgxpool.NewWithConfig(ctx, cfg)
}

// Storage acts as repository facade backed by PostgreSQL.
type Storage struct {
	pool   pgxPool
	logger *slog.Logger
	newID  func() string
	now    func() time.Time
}

type orderLedger struct {
	storage *Storage
}

type outboxRepository struct {
	storage *Storage
}

// New creates storage with schema initialization.
func New(ctx context.Context, dsn string, logger *slog.Logger) (*Storage, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	pool, err := newPgxPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	storage := newStorage(pool, logger)
	if err := storage.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return storage, nil
}

func newStorage(pool pgxPool, logger *slog.Logger) *Storage {
	return &Storage{pool: pool, logger: logger, newID: uuid.NewString, now: time.Now}
}

// Close releases database resources.
func (s *Storage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// HealthCheck verifies database connectivity.
func (s *Storage) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Ledger returns the order ledger backed by this storage.
func (s *Storage) Ledger() repository.OrderLedger {
	return &orderLedger{storage: s}
}

// Outbox returns the payment outbox backed by this storage.
func (s *Storage) Outbox() repository.OutboxRepository {
	return &outboxRepository{storage: s}
}

func (s *Storage) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS orders (
            id TEXT PRIMARY KEY,
            provider TEXT NOT NULL,
            provider_order_id TEXT,
            provider_capture_id TEXT,
            status TEXT NOT NULL DEFAULT 'PENDING'
                CHECK (status IN ('PENDING', 'PAID', 'CANCELLED', 'PAYMENT_FAILED')),
            amount_paid NUMERIC(20, 6),
            currency TEXT,
            paid_at TIMESTAMPTZ,
            needs_reconciliation BOOLEAN NOT NULL DEFAULT FALSE,
            reconciliation_reason TEXT NOT NULL DEFAULT '',
            reconcile_after TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE TABLE IF NOT EXISTS payment_outbox (
            id BIGSERIAL PRIMARY KEY,
            event_id UUID UNIQUE NOT NULL,
            event_type TEXT NOT NULL,
            order_id TEXT NOT NULL REFERENCES orders(id),
            payload JSONB NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            attempts INT NOT NULL DEFAULT 0,
            next_retry TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_provider_order ON orders(provider, provider_order_id) WHERE provider_order_id IS NOT NULL`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_provider_capture ON orders(provider, provider_capture_id) WHERE provider_capture_id IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_orders_reconcile ON orders(reconcile_after) WHERE needs_reconciliation`,
		`CREATE INDEX IF NOT EXISTS idx_payment_outbox_pending ON payment_outbox(status, next_retry)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}

	return nil
}

// --- OrderLedger implementation ---

const orderColumns = `id, provider, provider_order_id, provider_capture_id, status, amount_paid::text, currency,
                      paid_at, needs_reconciliation, reconciliation_reason, created_at, updated_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o                          model.Order
		provider, status           string
		providerOrderID, captureID *string
		amount, currency           *string
	)
	err := row.Scan(&o.ID, &provider, &providerOrderID, &captureID, &status, &amount, &currency,
		&o.PaidAt, &o.NeedsReconciliation, &o.ReconciliationReason, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Provider = model.Provider(provider)
	o.Status = model.OrderStatus(status)
	if providerOrderID != nil {
		o.ProviderOrderID = *providerOrderID
	}
	if captureID != nil {
		o.ProviderCaptureID = *captureID
	}
	if currency != nil {
		o.Currency = *currency
	}
	if amount != nil {
		value, err := decimal.NewFromString(*amount)
		if err != nil {
			return nil, fmt.Errorf("parse amount_paid: %w", err)
		}
		o.AmountPaid = decimal.NewNullDecimal(value)
	}
	return &o, nil
}

func (l *orderLedger) queryOne(ctx context.Context, query string, args ...any) (*model.Order, error) {
	order, err := scanOrder(l.storage.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, err
	}
	return order, nil
}

func (l *orderLedger) Get(ctx context.Context, orderID string) (*model.Order, error) {
	return l.queryOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, orderID)
}

func (l *orderLedger) FindByProviderOrderID(ctx context.Context, provider model.Provider, providerOrderID string) (*model.Order, error) {
	return l.queryOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE provider=$1 AND provider_order_id=$2`,
		string(provider), providerOrderID)
}

func (l *orderLedger) FindByCaptureID(ctx context.Context, provider model.Provider, captureID string) (*model.Order, error) {
	return l.queryOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE provider=$1 AND provider_capture_id=$2`,
		string(provider), captureID)
}

func (l *orderLedger) ConditionalApply(ctx context.Context, orderID string, expected model.OrderStatus, update model.OrderUpdate) error {
	const updateQuery = `UPDATE orders SET
                             status = $3,
                             amount_paid = COALESCE($4::text::numeric, amount_paid),
                             currency = COALESCE($5, currency),
                             provider_capture_id = COALESCE($6, provider_capture_id),
                             paid_at = COALESCE($7, paid_at),
                             needs_reconciliation = CASE WHEN $8 THEN FALSE ELSE needs_reconciliation END,
                             reconciliation_reason = CASE WHEN $8 THEN '' ELSE reconciliation_reason END,
                             updated_at = NOW()
                         WHERE id = $1 AND status = $2
                         RETURNING provider, provider_order_id, provider_capture_id, amount_paid::text, currency, paid_at`

	return l.storage.WithinTransaction(ctx, func(tx pgx.Tx) error {
		var (
			provider                   string
			providerOrderID, captureID *string
			amount, currency           *string
			paidAt                     *time.Time
		)
		err := tx.QueryRow(ctx, updateQuery,
			orderID, string(expected), string(update.Status),
			amountArg(update.AmountPaid), optional(update.Currency), optional(update.ProviderCaptureID),
			update.PaidAt, update.ClearReconciliation,
		).Scan(&provider, &providerOrderID, &captureID, &amount, &currency, &paidAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return classifyMiss(ctx, tx, orderID)
			}
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return fmt.Errorf("capture id already recorded: %w", domainErrors.ErrAlreadyExists)
			}
			return err
		}

		eventType := model.EventTypeFor(update.Status)
		if eventType == "" {
			return nil
		}
		event := model.OrderStatusChanged{
			EventID:        l.storage.newID(),
			Type:           eventType,
			OrderID:        orderID,
			Provider:       model.Provider(provider),
			PreviousStatus: expected,
			Status:         update.Status,
			PaidAt:         paidAt,
			OccurredAt:     l.storage.now().UTC(),
		}
		if providerOrderID != nil {
			event.ProviderOrderID = *providerOrderID
		}
		if captureID != nil {
			event.ProviderCaptureID = *captureID
		}
		if currency != nil {
			event.Currency = *currency
		}
		if amount != nil {
			value, err := decimal.NewFromString(*amount)
			if err != nil {
				return fmt.Errorf("parse amount_paid: %w", err)
			}
			event.Amount = &value
		}
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal outbox event: %w", err)
		}

		const insertOutbox = `INSERT INTO payment_outbox (event_id, event_type, order_id, payload) VALUES ($1, $2, $3, $4)`
		if _, err := tx.Exec(ctx, insertOutbox, event.EventID, eventType, orderID, payload); err != nil {
			return fmt.Errorf("insert outbox: %w", err)
		}
		return nil
	})
}

func classifyMiss(ctx context.Context, tx pgx.Tx, orderID string) error {
	var status string
	err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1`, orderID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domainErrors.ErrNotFound
		}
		return err
	}
	return fmt.Errorf("order %s is %s: %w", orderID, status, domainErrors.ErrStatusMismatch)
}

func (l *orderLedger) AssignProviderReference(ctx context.Context, orderID, providerOrderID string) error {
	const updateQuery = `UPDATE orders SET provider_order_id=$2, updated_at=NOW()
                         WHERE id=$1 AND provider_order_id IS NULL`

	return l.storage.WithinTransaction(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, updateQuery, orderID, providerOrderID)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return domainErrors.ErrAlreadyExists
			}
			return err
		}
		if tag.RowsAffected() > 0 {
			return nil
		}

		var current *string
		err = tx.QueryRow(ctx, `SELECT provider_order_id FROM orders WHERE id=$1`, orderID).Scan(&current)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domainErrors.ErrNotFound
			}
			return err
		}
		if current != nil && *current == providerOrderID {
			return nil
		}
		return domainErrors.ErrAlreadyExists
	})
}

func (l *orderLedger) FlagForReconciliation(ctx context.Context, orderID, reason string) error {
	const query = `UPDATE orders
                   SET needs_reconciliation=TRUE, reconciliation_reason=$2, reconcile_after=NOW(), updated_at=NOW()
                   WHERE id=$1`
	tag, err := l.storage.pool.Exec(ctx, query, orderID, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrNotFound
	}
	return nil
}

func (l *orderLedger) ClearReconciliation(ctx context.Context, orderID string) error {
	const query = `UPDATE orders
                   SET needs_reconciliation=FALSE, reconciliation_reason='', reconcile_after=NULL, updated_at=NOW()
                   WHERE id=$1`
	tag, err := l.storage.pool.Exec(ctx, query, orderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrNotFound
	}
	return nil
}

func (l *orderLedger) SelectBatchForReconciliation(ctx context.Context, limit int, backoff time.Duration) ([]model.Order, error) {
	const selectQuery = `SELECT ` + orderColumns + `
                         FROM orders
                         WHERE needs_reconciliation AND provider_order_id IS NOT NULL AND reconcile_after <= NOW()
                         ORDER BY reconcile_after
                         LIMIT $1
                         FOR UPDATE SKIP LOCKED`

	var orders []model.Order
	err := l.storage.WithinTransaction(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, selectQuery, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			o, err := scanOrder(rows)
			if err != nil {
				return err
			}
			orders = append(orders, *o)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		rows.Close()

		leaseUntil := l.storage.now().Add(backoff)
		for _, o := range orders {
			if _, err := tx.Exec(ctx, `UPDATE orders SET reconcile_after=$2 WHERE id=$1`, o.ID, leaseUntil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func amountArg(amount decimal.NullDecimal) *string {
	if !amount.Valid {
		return nil
	}
	value := amount.Decimal.String()
	return &value
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

// --- OutboxRepository implementation ---

func (r *outboxRepository) LockPending(ctx context.Context, limit int, lease time.Duration) ([]model.OutboxMessage, error) {
	const selectQuery = `SELECT id, event_id::text, event_type, order_id, payload, attempts
                         FROM payment_outbox
                         WHERE (status = 'pending' AND (next_retry IS NULL OR next_retry <= NOW()))
                            OR (status = 'processing' AND next_retry <= NOW())
                         ORDER BY id
                         LIMIT $1
                         FOR UPDATE SKIP LOCKED`

	var messages []model.OutboxMessage
	err := r.storage.WithinTransaction(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, selectQuery, limit)
		if err != nil {
			return fmt.Errorf("query outbox: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var m model.OutboxMessage
			if err := rows.Scan(&m.ID, &m.EventID, &m.EventType, &m.OrderID, &m.Payload, &m.Attempts); err != nil {
				return err
			}
			messages = append(messages, m)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		rows.Close()

		releaseAt := r.storage.now().Add(lease)
		for _, m := range messages {
			const claim = `UPDATE payment_outbox SET status='processing', next_retry=$2, updated_at=NOW() WHERE id=$1`
			if _, err := tx.Exec(ctx, claim, m.ID, releaseAt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *outboxRepository) MarkSent(ctx context.Context, id int64) error {
	_, err := r.storage.pool.Exec(ctx, `UPDATE payment_outbox SET status='sent', updated_at=NOW() WHERE id=$1`, id)
	return err
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id int64, nextRetry time.Time) error {
	const query = `UPDATE payment_outbox
                   SET status='pending', attempts=attempts+1, next_retry=$2, updated_at=NOW()
                   WHERE id=$1`
	if _, err := r.storage.pool.Exec(ctx, query, id, nextRetry); err != nil {
		return fmt.Errorf("update retry: %w", err)
	}
	return nil
}

// WithinTransaction executes function inside transaction boundary.
func (s *Storage) WithinTransaction(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	err = fn(tx)
	return err
}
