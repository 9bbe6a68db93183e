package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Provider identifies the external payment processor owning an order's payment flow.
type Provider string

const (
	ProviderStripe Provider = "STRIPE"
	ProviderPayPal Provider = "PAYPAL"
)

// Valid reports whether provider is one of the supported processors.
func (p Provider) Valid() bool {
	return p == ProviderStripe || p == ProviderPayPal
}

// OrderStatus describes the payment lifecycle recorded by the ledger.
type OrderStatus string

const (
	OrderStatusPending       OrderStatus = "PENDING"
	OrderStatusPaid          OrderStatus = "PAID"
	OrderStatusCancelled     OrderStatus = "CANCELLED"
	OrderStatusPaymentFailed OrderStatus = "PAYMENT_FAILED"
)

// Terminal reports whether no further transition may leave the status.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusPaid || s == OrderStatusCancelled
}

// Valid reports whether status belongs to the transition graph.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusCancelled, OrderStatusPaymentFailed:
		return true
	}
	return false
}

// Order is the ledger record of a single payable purchase.
type Order struct {
	ID                   string
	Provider             Provider
	ProviderOrderID      string
	ProviderCaptureID    string
	Status               OrderStatus
	AmountPaid           decimal.NullDecimal
	Currency             string
	PaidAt               *time.Time
	NeedsReconciliation  bool
	ReconciliationReason string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// OrderUpdate carries the fields written together with a status transition.
// Zero-valued payment fields are left untouched by the ledger.
type OrderUpdate struct {
	Status              OrderStatus
	AmountPaid          decimal.NullDecimal
	Currency            string
	ProviderCaptureID   string
	PaidAt              *time.Time
	ClearReconciliation bool
}
