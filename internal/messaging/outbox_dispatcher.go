package messaging

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/polkiloo/payrecon/internal/domain/model"
	"github.com/polkiloo/payrecon/internal/domain/repository"
)

const (
	outboxLease    = 30 * time.Second
	publishTimeout = 5 * time.Second
)

// OutboxDispatcher relays outbox rows written with status changes to the
// broker. Rows are claimed with a lease, so a crashed dispatcher's rows become
// visible again once the lease expires.
type OutboxDispatcher struct {
	outbox    repository.OutboxRepository
	publisher Publisher
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	now       func() time.Time

	wg     sync.WaitGroup
	cancel context.CancelFunc
	mu     sync.Mutex
}

// NewOutboxDispatcher constructs a dispatcher. A nil publisher disables it.
func NewOutboxDispatcher(outbox repository.OutboxRepository, publisher Publisher, interval time.Duration, batch int, logger *slog.Logger) *OutboxDispatcher {
	if batch <= 0 {
		batch = 1
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &OutboxDispatcher{
		outbox:    outbox,
		publisher: publisher,
		interval:  interval,
		batchSize: batch,
		logger:    logger,
		now:       time.Now,
	}
}

// Enabled reports whether a publisher is configured.
func (d *OutboxDispatcher) Enabled() bool {
	return d.publisher != nil
}

// Start launches the dispatch loop.
func (d *OutboxDispatcher) Start(ctx context.Context) {
	if !d.Enabled() {
		d.logger.Info("event publishing disabled")
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.wg.Add(1)
	go d.loop(runCtx)
}

// Stop waits for the dispatch loop to finish.
func (d *OutboxDispatcher) Stop() {
	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *OutboxDispatcher) loop(ctx context.Context) {
	defer d.wg.Done()
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		if _, err := d.Dispatch(ctx); err != nil && ctx.Err() == nil {
			d.logger.Error("outbox dispatch failed", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Dispatch publishes one batch of pending rows and reports how many were sent.
func (d *OutboxDispatcher) Dispatch(ctx context.Context) (int, error) {
	messages, err := d.outbox.LockPending(ctx, d.batchSize, outboxLease)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, msg := range messages {
		if err := d.publishOne(ctx, msg); err != nil {
			d.logger.Warn("publish event failed",
				slog.Int64("row_id", msg.ID),
				slog.String("event_type", msg.EventType),
				slog.String("order_id", msg.OrderID),
				slog.String("error", err.Error()),
			)
			continue
		}
		sent++
	}
	return sent, nil
}

func (d *OutboxDispatcher) publishOne(ctx context.Context, msg model.OutboxMessage) error {
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := d.publisher.Publish(pubCtx, Message{ID: msg.EventID, Type: msg.EventType, Payload: msg.Payload}); err != nil {
		nextRetry := d.now().Add(retryDelay(msg.Attempts + 1))
		if markErr := d.outbox.MarkFailed(ctx, msg.ID, nextRetry); markErr != nil {
			d.logger.Error("update outbox retry failed", slog.Int64("row_id", msg.ID), slog.String("error", markErr.Error()))
		}
		return err
	}
	return d.outbox.MarkSent(ctx, msg.ID)
}

func retryDelay(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 5 {
		attempts = 5
	}
	delay := time.Duration(1<<attempts) * time.Second
	if delay > time.Minute {
		delay = time.Minute
	}
	return delay
}
