package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/payrecon/internal/server/http/dto"
)

// AdminHandler exposes reconciliation tooling to operators.
type AdminHandler struct {
	facade AdminFacade
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(facade AdminFacade) *AdminHandler {
	return &AdminHandler{facade: facade}
}

// ProviderOrder handles GET /api/admin/paypal/orders/:providerOrderId.
func (h *AdminHandler) ProviderOrder(c *gin.Context) {
	details, err := h.facade.PayPalOrderDetails(c.Request.Context(), c.Param("providerOrderId"))
	if err != nil {
		abortWithError(c, err, http.StatusGatewayTimeout)
		return
	}

	c.JSON(http.StatusOK, dto.ProviderOrderResponse{
		ProviderOrderID: details.ProviderOrderID,
		Status:          string(details.Status),
		ReferenceID:     details.ReferenceID,
		CaptureID:       details.CaptureID,
		CaptureStatus:   details.CaptureStatus,
		Amount:          details.Amount,
		Currency:        details.Currency,
	})
}

// Reconcile handles POST /api/admin/orders/:orderId/reconcile.
func (h *AdminHandler) Reconcile(c *gin.Context) {
	res, err := h.facade.ReconcileOrder(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		abortWithError(c, err, http.StatusGatewayTimeout)
		return
	}

	resp := dto.ReconcileResponse{
		OrderID:        res.OrderID,
		Outcome:        string(res.Outcome),
		PreviousStatus: string(res.Previous),
		Status:         string(res.Status),
	}
	if res.Order != nil {
		resp.CaptureID = res.Order.ProviderCaptureID
		resp.PaidAt = res.Order.PaidAt
		resp.NeedsReview = res.Order.NeedsReconciliation
	}
	c.JSON(http.StatusOK, resp)
}
