package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	domainErrors "github.com/polkiloo/payrecon/internal/domain/errors"
	"github.com/polkiloo/payrecon/internal/domain/model"
	"github.com/polkiloo/payrecon/internal/usecase"
)

// ReconciliationFacade exposes the subset of application functionality required by the worker.
type ReconciliationFacade interface {
	OrdersForReconciliation(ctx context.Context, limit int) ([]model.Order, error)
	Reconcile(ctx context.Context, order model.Order) (*usecase.ApplyResult, error)
}

// ReconciliationProcessor probes flagged orders at the provider and settles
// them through the shared apply path.
type ReconciliationProcessor struct {
	facade       ReconciliationFacade
	pollInterval time.Duration
	batchSize    int
	workers      int
	logger       *slog.Logger

	jobs   chan model.Order
	wg     sync.WaitGroup
	cancel context.CancelFunc
	mu     sync.Mutex
}

// NewReconciliationProcessor constructs the reconciliation worker pool.
func NewReconciliationProcessor(facade ReconciliationFacade, pollInterval time.Duration, batchSize, workers int, logger *slog.Logger) *ReconciliationProcessor {
	if workers <= 0 {
		workers = 1
	}
	if batchSize <= 0 {
		batchSize = 1
	}
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	return &ReconciliationProcessor{
		facade:       facade,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		workers:      workers,
		logger:       logger,
		jobs:         make(chan model.Order, batchSize*workers),
	}
}

// Start launches background processing.
func (p *ReconciliationProcessor) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(runCtx)
	}

	p.wg.Add(1)
	go p.dispatch(runCtx)
}

// Stop waits for all workers to finish.
func (p *ReconciliationProcessor) Stop() {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *ReconciliationProcessor) dispatch(ctx context.Context) {
	defer p.wg.Done()
	defer close(p.jobs)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.fetchAndDispatch(ctx)
		}
	}
}

func (p *ReconciliationProcessor) fetchAndDispatch(ctx context.Context) {
	orders, err := p.facade.OrdersForReconciliation(ctx, p.batchSize)
	if err != nil {
		p.logger.Error("fetch orders for reconciliation failed", slog.String("error", err.Error()))
		return
	}
	for _, order := range orders {
		select {
		case <-ctx.Done():
			return
		case p.jobs <- order:
		}
	}
}

func (p *ReconciliationProcessor) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case order, ok := <-p.jobs:
			if !ok {
				return
			}
			p.handleOrder(ctx, order)
		}
	}
}

func (p *ReconciliationProcessor) handleOrder(ctx context.Context, order model.Order) {
	result, err := p.facade.Reconcile(ctx, order)
	if err != nil {
		var providerErr *domainErrors.ProviderError
		switch {
		case errors.As(err, &providerErr) && providerErr.RetryAfter > 0:
			p.logger.Warn("provider rate limited", slog.Duration("retry_after", providerErr.RetryAfter))
			sleep(ctx, providerErr.RetryAfter)
		case errors.Is(err, domainErrors.ErrUnknownState):
			p.logger.Warn("reconciliation probe inconclusive", slog.String("order_id", order.ID), slog.String("error", err.Error()))
		default:
			p.logger.Error("reconcile order failed", slog.String("order_id", order.ID), slog.String("error", err.Error()))
		}
		return
	}

	p.logger.Info("order reconciled",
		slog.String("order_id", order.ID),
		slog.String("outcome", string(result.Outcome)),
		slog.String("status", string(result.Status)),
	)
}

func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
