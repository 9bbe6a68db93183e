package paypal

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	domainErrors "github.com/polkiloo/payrecon/internal/domain/errors"
	"github.com/polkiloo/payrecon/internal/domain/model"
)

const providerName = "paypal"

// OrderResolver finds ledger orders by PayPal order id.
type OrderResolver interface {
	FindByProviderOrderID(ctx context.Context, provider model.Provider, providerOrderID string) (*model.Order, error)
}

// Normalizer maps Orders v2 order resources to model.PaymentEvent.
type Normalizer struct {
	resolver OrderResolver
}

// NewNormalizer creates Normalizer.
func NewNormalizer(resolver OrderResolver) *Normalizer {
	return &Normalizer{resolver: resolver}
}

// Normalize maps an order resource returned by capture or get-order.
//
//	COMPLETED order with a COMPLETED capture -> COMPLETED
//	DECLINED or FAILED capture              -> FAILED
//	VOIDED order                            -> EXPIRED
func (n *Normalizer) Normalize(ctx context.Context, payload []byte) (*model.PaymentEvent, error) {
	var order orderResource
	if err := json.Unmarshal(payload, &order); err != nil {
		return nil, &domainErrors.NormalizationError{Provider: providerName, Reason: "decode order", Err: errors.Join(domainErrors.ErrMalformedPayload, err)}
	}
	if order.ID == "" || order.Status == "" {
		return nil, &domainErrors.NormalizationError{Provider: providerName, Reason: "order id or status missing", Err: domainErrors.ErrMalformedPayload}
	}

	event := &model.PaymentEvent{
		Provider:        model.ProviderPayPal,
		ProviderOrderID: order.ID,
	}

	status := strings.ToUpper(order.Status)
	c := order.firstCapture()
	captureStatus := ""
	if c != nil {
		captureStatus = strings.ToUpper(c.Status)
	}

	switch {
	case status == string(model.ProviderOrderCompleted) && captureStatus == "COMPLETED":
		event.Kind = model.EventCompleted
	case captureStatus == "DECLINED" || captureStatus == "FAILED":
		event.Kind = model.EventFailed
	case status == string(model.ProviderOrderVoided):
		event.Kind = model.EventExpired
	default:
		kind := "order " + status
		if captureStatus != "" {
			kind += " capture " + captureStatus
		}
		return nil, &domainErrors.UnrecognizedEventError{Provider: providerName, Type: kind}
	}

	if c != nil {
		event.ProviderCaptureID = c.ID
		amount := c.Amount
		if amount == nil {
			amount = order.unitAmount()
		}
		event.Amount = amount.decimal()
		event.Currency = amount.currency()
	} else {
		event.Amount = order.unitAmount().decimal()
		event.Currency = order.unitAmount().currency()
	}

	orderID := order.reference()
	if orderID == "" {
		found, err := n.resolver.FindByProviderOrderID(ctx, model.ProviderPayPal, order.ID)
		switch {
		case errors.Is(err, domainErrors.ErrNotFound):
			return nil, &domainErrors.NormalizationError{Provider: providerName, Reason: "no order for provider reference"}
		case err != nil:
			return nil, &domainErrors.LedgerError{Op: "resolve order by paypal id", Err: err}
		}
		orderID = found.ID
	}
	event.OrderID = orderID
	return event, nil
}
