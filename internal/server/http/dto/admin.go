package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProviderOrderResponse is the provider's view of an order.
type ProviderOrderResponse struct {
	ProviderOrderID string          `json:"providerOrderId"`
	Status          string          `json:"status"`
	ReferenceID     string          `json:"referenceId,omitempty"`
	CaptureID       string          `json:"captureId,omitempty"`
	CaptureStatus   string          `json:"captureStatus,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency,omitempty"`
}

// ReconcileResponse reports a one-off reconciliation.
type ReconcileResponse struct {
	OrderID        string     `json:"orderId"`
	Outcome        string     `json:"outcome"`
	PreviousStatus string     `json:"previousStatus"`
	Status         string     `json:"status"`
	CaptureID      string     `json:"captureId,omitempty"`
	PaidAt         *time.Time `json:"paidAt,omitempty"`
	NeedsReview    bool       `json:"needsReconciliation"`
}
