package router

import (
	"log/slog"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	pkgAuth "github.com/polkiloo/payrecon/internal/pkg/auth"
	"github.com/polkiloo/payrecon/internal/server/http/handlers"
	"github.com/polkiloo/payrecon/internal/server/http/middleware"
)

const maxRequestBody = 1 << 20

// Setup configures gin router with handlers and middleware.
func Setup(facade handlers.PaymentFacade, verifier pkgAuth.TokenVerifier, logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger(logger))
	engine.Use(middleware.DecompressRequest(maxRequestBody))
	engine.Use(gzip.Gzip(gzip.DefaultCompression))

	webhookHandler := handlers.NewWebhookHandler(facade)
	checkoutHandler := handlers.NewCheckoutHandler(facade)
	adminHandler := handlers.NewAdminHandler(facade)

	api := engine.Group("/api")
	payments := api.Group("/payments")
	payments.POST("/webhooks/stripe", webhookHandler.Stripe)
	payments.POST("/paypal/orders", checkoutHandler.CreateOrder)
	payments.POST("/paypal/capture", checkoutHandler.Capture)

	admin := api.Group("/admin")
	admin.Use(middleware.AdminRequired(verifier))
	admin.GET("/paypal/orders/:providerOrderId", adminHandler.ProviderOrder)
	admin.POST("/orders/:orderId/reconcile", adminHandler.Reconcile)

	return engine
}
