package paypal

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/payrecon/internal/config"
	"github.com/polkiloo/payrecon/internal/domain/repository"
)

// Module exposes the PayPal client and normalizer to fx graph.
var Module = fx.Provide(
	newClient,
	newNormalizer,
)

type clientParams struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
}

func newClient(p clientParams) (Client, error) {
	return NewHTTPClient(p.Config.PayPalAPIBase, p.Config.PayPalClientID, p.Config.PayPalClientSecret, p.Config.ProviderTimeout, p.Logger)
}

func newNormalizer(ledger repository.OrderLedger) *Normalizer {
	return NewNormalizer(ledger)
}
