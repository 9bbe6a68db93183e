package auth

import (
	"go.uber.org/fx"

	"github.com/polkiloo/payrecon/internal/config"
)

// Module provides authentication primitives via fx.
var Module = fx.Options(
	fx.Provide(newSecretHasher),
	fx.Provide(newWebhookSigner),
	fx.Provide(newAdminTokenVerifier),
)

func newSecretHasher() SecretHasher {
	return NewBcryptHasher(0)
}

type signerParams struct {
	fx.In

	Config *config.Config
}

func newWebhookSigner(p signerParams) *HMACSigner {
	return NewHMACSigner(p.Config.StripeWebhookSecret, Options{Tolerance: p.Config.WebhookTolerance})
}

func newAdminTokenVerifier(cfg *config.Config, hasher SecretHasher) TokenVerifier {
	return NewAdminTokenVerifier(cfg.AdminTokenHash, hasher)
}
