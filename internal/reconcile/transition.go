// Package reconcile holds the payment state machine shared by every ingress path.
package reconcile

import (
	"time"

	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/payrecon/internal/domain/errors"
	"github.com/polkiloo/payrecon/internal/domain/model"
)

// Decision is the outcome of feeding one event to the state machine.
// When Apply is false the ledger must not be written.
type Decision struct {
	Apply  bool
	Next   model.OrderStatus
	Update model.OrderUpdate
}

// Transition computes the next status of an order in state current after
// event. Terminal statuses absorb every event. now becomes paidAt on the
// transition into PAID.
func Transition(current model.OrderStatus, event model.PaymentEvent, now time.Time) (Decision, error) {
	switch event.Kind {
	case model.EventCompleted, model.EventExpired, model.EventFailed:
	default:
		return Decision{}, &domainErrors.UnrecognizedEventError{Provider: string(event.Provider), Type: string(event.Kind)}
	}

	switch current {
	case model.OrderStatusPaid, model.OrderStatusCancelled:
		return stay(current), nil
	case model.OrderStatusPending:
		switch event.Kind {
		case model.EventCompleted:
			return paid(event, now), nil
		case model.EventExpired:
			return move(model.OrderStatusCancelled), nil
		default:
			return move(model.OrderStatusPaymentFailed), nil
		}
	case model.OrderStatusPaymentFailed:
		if event.Kind == model.EventCompleted {
			return paid(event, now), nil
		}
		return stay(current), nil
	default:
		return Decision{}, &domainErrors.UnrecognizedEventError{Provider: string(event.Provider), Type: "status " + string(current)}
	}
}

func stay(status model.OrderStatus) Decision {
	return Decision{Next: status}
}

func move(next model.OrderStatus) Decision {
	return Decision{
		Apply:  true,
		Next:   next,
		Update: model.OrderUpdate{Status: next, ClearReconciliation: next.Terminal()},
	}
}

func paid(event model.PaymentEvent, now time.Time) Decision {
	d := move(model.OrderStatusPaid)
	paidAt := now.UTC()
	d.Update.PaidAt = &paidAt
	d.Update.AmountPaid = decimal.NewNullDecimal(event.Amount)
	d.Update.Currency = event.Currency
	d.Update.ProviderCaptureID = event.ProviderCaptureID
	return d
}
