package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/payrecon/internal/adapter/stripe"
	domainErrors "github.com/polkiloo/payrecon/internal/domain/errors"
	"github.com/polkiloo/payrecon/internal/server/http/dto"
)

// maxWebhookBody bounds the size of a webhook delivery.
const maxWebhookBody = 1 << 20

// WebhookHandler receives push notifications.
type WebhookHandler struct {
	facade WebhookFacade
}

// NewWebhookHandler constructs WebhookHandler.
func NewWebhookHandler(facade WebhookFacade) *WebhookHandler {
	return &WebhookHandler{facade: facade}
}

// Stripe handles POST /api/payments/webhooks/stripe. The body is read raw
// because the signature covers the exact bytes sent.
func (h *WebhookHandler) Stripe(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	res, err := h.facade.HandleStripeWebhook(c.Request.Context(), body, c.GetHeader(stripe.SignatureHeader))
	if err != nil {
		switch {
		case errors.Is(err, domainErrors.ErrAuthentication):
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid signature"})
		case errors.Is(err, domainErrors.ErrMalformedPayload):
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "malformed payload"})
		default:
			c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: "temporarily unavailable"})
		}
		return
	}

	c.JSON(http.StatusOK, dto.WebhookResponse{Received: true, Outcome: string(res.Outcome)})
}
