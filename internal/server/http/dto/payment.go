package dto

import "github.com/shopspring/decimal"


// CreateOrderRequest describes a PayPal checkout request.
type CreateOrderRequest struct {
	OrderID   string          `json:"orderId" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency" binding:"required"`
	ReturnURL string          `json:"returnUrl" binding:"required"`
	CancelURL string          `json:"cancelUrl" binding:"required"`
}

// CreateOrderResponse carries the provider order and the buyer approval link.
type CreateOrderResponse struct {
	ProviderOrderID string `json:"providerOrderId"`
	ApprovalLink    string `json:"approvalLink"`
}

// CaptureRequest names the PayPal order to capture.
type CaptureRequest struct {
	OrderID string `json:"orderId" binding:"required"`
}

// CaptureResponse reports the capture outcome to the storefront.
type CaptureResponse struct {
	Success   bool   `json:"success"`
	CaptureID string `json:"captureId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// WebhookResponse acknowledges a delivery.
type WebhookResponse struct {
	Received bool   `json:"received"`
	Outcome  string `json:"outcome,omitempty"`
}

// ErrorResponse describes a rejected request.
type ErrorResponse struct {
	Error string `json:"error"`
}
