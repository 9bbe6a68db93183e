package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order event types published after a committed status change.
const (
	EventTypeOrderPaid          = "order.paid"
	EventTypeOrderCancelled     = "order.cancelled"
	EventTypeOrderPaymentFailed = "order.payment_failed"
)

// EventTypeFor returns the outbound event type announcing status, or "" when
// the status is not announced.
func EventTypeFor(status OrderStatus) string {
	switch status {
	case OrderStatusPaid:
		return EventTypeOrderPaid
	case OrderStatusCancelled:
		return EventTypeOrderCancelled
	case OrderStatusPaymentFailed:
		return EventTypeOrderPaymentFailed
	default:
		return ""
	}
}

// OrderStatusChanged is the JSON body of an outbound order event.
type OrderStatusChanged struct {
	EventID           string           `json:"eventId"`
	Type              string           `json:"type"`
	OrderID           string           `json:"orderId"`
	Provider          Provider         `json:"provider"`
	ProviderOrderID   string           `json:"providerOrderId,omitempty"`
	ProviderCaptureID string           `json:"providerCaptureId,omitempty"`
	PreviousStatus    OrderStatus      `json:"previousStatus"`
	Status            OrderStatus      `json:"status"`
	Amount            *decimal.Decimal `json:"amount,omitempty"`
	Currency          string           `json:"currency,omitempty"`
	PaidAt            *time.Time       `json:"paidAt,omitempty"`
	OccurredAt        time.Time        `json:"occurredAt"`
}

// OutboxMessage is a pending outbound event row.
type OutboxMessage struct {
	ID        int64
	EventID   string
	EventType string
	OrderID   string
	Payload   []byte
	Attempts  int
}
