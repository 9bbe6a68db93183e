package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	domainErrors "github.com/polkiloo/payrecon/internal/domain/errors"
	"github.com/polkiloo/payrecon/internal/domain/model"
	"github.com/polkiloo/payrecon/internal/server/http/dto"
)

// CheckoutHandler manages the PayPal checkout endpoints.
type CheckoutHandler struct {
	facade CheckoutFacade
}

// NewCheckoutHandler constructs CheckoutHandler.
func NewCheckoutHandler(facade CheckoutFacade) *CheckoutHandler {
	return &CheckoutHandler{facade: facade}
}

// CreateOrder handles POST /api/payments/paypal/orders.
func (h *CheckoutHandler) CreateOrder(c *gin.Context) {
	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request"})
		return
	}

	session, err := h.facade.CreatePayPalOrder(c.Request.Context(), model.CreateOrderRequest{
		OrderID:   strings.TrimSpace(req.OrderID),
		Amount:    req.Amount,
		Currency:  strings.ToUpper(strings.TrimSpace(req.Currency)),
		ReturnURL: req.ReturnURL,
		CancelURL: req.CancelURL,
	})
	if err != nil {
		abortWithError(c, err, http.StatusGatewayTimeout)
		return
	}

	c.JSON(http.StatusCreated, dto.CreateOrderResponse{
		ProviderOrderID: session.ProviderOrderID,
		ApprovalLink:    session.ApprovalLink,
	})
}

// Capture handles POST /api/payments/paypal/capture. A capture whose outcome
// is not yet known is reported as processing, never as a failure.
func (h *CheckoutHandler) Capture(c *gin.Context) {
	var req dto.CaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request"})
		return
	}

	outcome, err := h.facade.CapturePayPalOrder(c.Request.Context(), strings.TrimSpace(req.OrderID))
	if err != nil {
		if errors.Is(err, domainErrors.ErrUnknownState) {
			c.JSON(http.StatusAccepted, dto.CaptureResponse{Success: false, Error: "processing"})
			return
		}
		abortWithError(c, err, http.StatusGatewayTimeout)
		return
	}

	switch {
	case outcome.Succeeded():
		c.JSON(http.StatusOK, dto.CaptureResponse{Success: true, CaptureID: outcome.CaptureID})
	case outcome.OrderStatus == model.OrderStatusPaymentFailed:
		c.JSON(http.StatusOK, dto.CaptureResponse{Success: false, CaptureID: outcome.CaptureID, Error: "payment_failed"})
	default:
		c.JSON(http.StatusAccepted, dto.CaptureResponse{Success: false, Error: "processing"})
	}
}
