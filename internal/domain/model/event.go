package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventKind is the provider-independent meaning of a payment signal.
type EventKind string

const (
	EventCompleted EventKind = "COMPLETED"
	EventExpired   EventKind = "EXPIRED"
	EventFailed    EventKind = "FAILED"
)

// PaymentEvent is a normalized provider signal about one order.
type PaymentEvent struct {
	Kind              EventKind
	Provider          Provider
	OrderID           string
	Amount            decimal.Decimal
	Currency          string
	ProviderCaptureID string
	ProviderOrderID   string
	ProviderEventID   string
	OccurredAt        time.Time
}
