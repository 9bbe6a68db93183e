package di

import (
	"go.uber.org/fx"

	"github.com/polkiloo/payrecon/internal/adapter/paypal"
	"github.com/polkiloo/payrecon/internal/adapter/stripe"
	"github.com/polkiloo/payrecon/internal/app"
	"github.com/polkiloo/payrecon/internal/config"
	"github.com/polkiloo/payrecon/internal/logger"
	"github.com/polkiloo/payrecon/internal/messaging"
	"github.com/polkiloo/payrecon/internal/pkg/auth"
	"github.com/polkiloo/payrecon/internal/server/http/handlers"
	"github.com/polkiloo/payrecon/internal/server/http/router"
	"github.com/polkiloo/payrecon/internal/storage/postgres"
	"github.com/polkiloo/payrecon/internal/usecase"
)

func Module(opts ...fx.Option) fx.Option {
	modules := []fx.Option{
		config.Module,
		logger.Module,
		auth.Module,
		postgres.Module,
		stripe.Module,
		paypal.Module,
		messaging.Module,
		usecase.Module,
		fx.Provide(func(v *stripe.Verifier) usecase.SignatureVerifier { return v }),
		fx.Provide(func(n *stripe.Normalizer) usecase.WebhookNormalizer { return n }),
		fx.Provide(func(c paypal.Client) usecase.OrderProvider { return c }),
		fx.Provide(func(n *paypal.Normalizer) usecase.OrderNormalizer { return n }),
		fx.Provide(func(f *app.PaymentFacade) handlers.PaymentFacade { return f }),
		router.Module,
		app.Module,
	}
	modules = append(modules, opts...)
	return fx.Options(modules...)
}
