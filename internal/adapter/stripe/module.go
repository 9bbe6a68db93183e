package stripe

import (
	"go.uber.org/fx"

	"github.com/polkiloo/payrecon/internal/domain/repository"
)

// Module exposes the webhook verifier and normalizer to fx graph.
var Module = fx.Provide(
	NewVerifier,
	newNormalizer,
)

func newNormalizer(ledger repository.OrderLedger) *Normalizer {
	return NewNormalizer(ledger)
}
