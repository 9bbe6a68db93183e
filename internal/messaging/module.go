package messaging

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/payrecon/internal/config"
	"github.com/polkiloo/payrecon/internal/domain/repository"
)

// Module wires the broker publisher and the outbox dispatcher.
var Module = fx.Options(
	fx.Provide(newPublisher),
	fx.Provide(newOutboxDispatcher),
)

type publisherParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    *config.Config
	Logger    *slog.Logger
}

// newPublisher returns nil when no broker is configured.
func newPublisher(p publisherParams) (Publisher, error) {
	if p.Config.BrokerURL == "" {
		return nil, nil
	}
	publisher, err := NewRabbitPublisher(p.Config.BrokerURL, p.Config.PaymentsExchange)
	if err != nil {
		return nil, err
	}
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return publisher.Close()
		},
	})
	p.Logger.Info("event publishing enabled", slog.String("exchange", p.Config.PaymentsExchange))
	return publisher, nil
}

type dispatcherParams struct {
	fx.In

	Outbox    repository.OutboxRepository
	Publisher Publisher
	Config    *config.Config
	Logger    *slog.Logger
}

func newOutboxDispatcher(p dispatcherParams) *OutboxDispatcher {
	return NewOutboxDispatcher(p.Outbox, p.Publisher, p.Config.OutboxInterval, p.Config.OutboxBatchSize, p.Logger)
}
