package di

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"go.uber.org/fx"

	"github.com/polkiloo/payrecon/internal/app"
	"github.com/polkiloo/payrecon/internal/config"
	"github.com/polkiloo/payrecon/internal/domain/model"
	"github.com/polkiloo/payrecon/internal/domain/repository"
	"github.com/polkiloo/payrecon/internal/messaging"
	"github.com/polkiloo/payrecon/internal/storage/memory"
	"github.com/polkiloo/payrecon/internal/storage/postgres"
)

type nopOutbox struct{}

func (nopOutbox) LockPending(context.Context, int, time.Duration) ([]model.OutboxMessage, error) {
	return nil, nil
}

func (nopOutbox) MarkSent(context.Context, int64) error { return nil }

func (nopOutbox) MarkFailed(context.Context, int64, time.Time) error { return nil }

func TestModuleComposesGraphWithReplacements(t *testing.T) {
	cfg := &config.Config{
		RunAddress:          ":0",
		DatabaseURI:         "postgres://stub",
		StripeWebhookSecret: "whsec_test",
		PayPalAPIBase:       "http://localhost",
		PayPalClientID:      "client",
		PayPalClientSecret:  "secret",
		ProviderTimeout:     time.Second,
		LedgerTimeout:       time.Second,
		ReconcileInterval:   time.Millisecond,
		ReconcileBatchSize:  1,
		WorkerPoolSize:      1,
		ShutdownTimeout:     time.Millisecond,
		OutboxInterval:      time.Millisecond,
		OutboxBatchSize:     1,
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	var (
		facade     *app.PaymentFacade
		dispatcher *messaging.OutboxDispatcher
	)
	fxApp := fx.New(
		fx.NopLogger,
		fx.Supply(context.Background()),
		Module(
			fx.Replace(cfg),
			fx.Replace(logger),
			fx.Replace(&postgres.Storage{}),
			fx.Replace(repository.OrderLedger(memory.NewLedger())),
			fx.Replace(repository.OutboxRepository(nopOutbox{})),
		),
		fx.Populate(&facade, &dispatcher),
	)

	if err := fxApp.Err(); err != nil {
		t.Fatalf("fx app returned error: %v", err)
	}
	t.Cleanup(func() { _ = fxApp.Stop(context.Background()) })
	if facade == nil {
		t.Fatal("expected payment facade instance")
	}
	if dispatcher == nil || dispatcher.Enabled() {
		t.Fatal("expected disabled outbox dispatcher without broker")
	}
}
