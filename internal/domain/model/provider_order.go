package model

import "github.com/shopspring/decimal"

// ProviderOrderStatus mirrors order status reported by a pull-style provider.
type ProviderOrderStatus string

const (
	ProviderOrderCreated             ProviderOrderStatus = "CREATED"
	ProviderOrderSaved               ProviderOrderStatus = "SAVED"
	ProviderOrderApproved            ProviderOrderStatus = "APPROVED"
	ProviderOrderVoided              ProviderOrderStatus = "VOIDED"
	ProviderOrderCompleted           ProviderOrderStatus = "COMPLETED"
	ProviderOrderPayerActionRequired ProviderOrderStatus = "PAYER_ACTION_REQUIRED"
)

// CaptureStatus summarizes the outcome of a capture call.
type CaptureStatus string

const (
	CaptureCompleted CaptureStatus = "COMPLETED"
	CapturePending   CaptureStatus = "PENDING"
	CaptureOther     CaptureStatus = "OTHER"
)

// CreateOrderRequest describes a provider order to be created for a ledger order.
type CreateOrderRequest struct {
	OrderID   string
	Amount    decimal.Decimal
	Currency  string
	ReturnURL string
	CancelURL string
}

// CheckoutSession is the provider side of a freshly created order.
type CheckoutSession struct {
	ProviderOrderID string
	ApprovalLink    string
}

// CaptureResult is the parsed answer of a capture call. Raw holds the provider
// order resource for normalization.
type CaptureResult struct {
	ProviderOrderID string
	Status          CaptureStatus
	CaptureID       string
	Amount          decimal.Decimal
	Currency        string
	AlreadyCaptured bool
	Raw             []byte
}

// ProviderOrderDetails is the provider's current view of an order.
type ProviderOrderDetails struct {
	ProviderOrderID string
	Status          ProviderOrderStatus
	ReferenceID     string
	CaptureID       string
	CaptureStatus   string
	Amount          decimal.Decimal
	Currency        string
	Raw             []byte
}
