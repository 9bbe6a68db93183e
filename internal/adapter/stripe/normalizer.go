// Package stripe adapts signed Stripe webhook deliveries to payment events.
package stripe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	domainErrors "github.com/polkiloo/payrecon/internal/domain/errors"
	"github.com/polkiloo/payrecon/internal/domain/model"
)

const providerName = "stripe"

// Webhook event types the normalizer understands.
const (
	EventSessionCompleted          = "checkout.session.completed"
	EventSessionAsyncPaymentOK     = "checkout.session.async_payment_succeeded"
	EventSessionAsyncPaymentFailed = "checkout.session.async_payment_failed"
	EventSessionExpired            = "checkout.session.expired"
	EventPaymentIntentFailed       = "payment_intent.payment_failed"
)

// metadataOrderKey is the session/payment intent metadata key holding the ledger order id.
const metadataOrderKey = "orderId"

// OrderResolver finds ledger orders by provider-side identifiers.
type OrderResolver interface {
	FindByProviderOrderID(ctx context.Context, provider model.Provider, providerOrderID string) (*model.Order, error)
	FindByCaptureID(ctx context.Context, provider model.Provider, captureID string) (*model.Order, error)
}

// Normalizer maps webhook payloads to model.PaymentEvent.
type Normalizer struct {
	resolver OrderResolver
}

// NewNormalizer creates Normalizer using resolver for payloads that carry only
// provider identifiers.
func NewNormalizer(resolver OrderResolver) *Normalizer {
	return &Normalizer{resolver: resolver}
}

type envelope struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type checkoutSession struct {
	ID                string            `json:"id"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
	PaymentStatus     string            `json:"payment_status"`
	PaymentIntent     json.RawMessage   `json:"payment_intent"`
	AmountTotal       int64             `json:"amount_total"`
	Currency          string            `json:"currency"`
}

type paymentIntent struct {
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
}

// Normalize decodes payload and resolves the order it refers to.
func (n *Normalizer) Normalize(ctx context.Context, payload []byte) (*model.PaymentEvent, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, malformed("decode event", err)
	}
	if env.Type == "" || len(env.Data.Object) == 0 {
		return nil, malformed("event type or object missing", nil)
	}

	event := &model.PaymentEvent{
		Provider:        model.ProviderStripe,
		ProviderEventID: env.ID,
	}
	if env.Created > 0 {
		event.OccurredAt = time.Unix(env.Created, 0).UTC()
	}

	switch env.Type {
	case EventSessionCompleted, EventSessionAsyncPaymentOK, EventSessionExpired, EventSessionAsyncPaymentFailed:
		return n.fromSession(ctx, env, event)
	case EventPaymentIntentFailed:
		return n.fromPaymentIntent(ctx, env, event)
	default:
		return nil, &domainErrors.UnrecognizedEventError{Provider: providerName, Type: env.Type}
	}
}

func (n *Normalizer) fromSession(ctx context.Context, env envelope, event *model.PaymentEvent) (*model.PaymentEvent, error) {
	var session checkoutSession
	if err := json.Unmarshal(env.Data.Object, &session); err != nil {
		return nil, malformed("decode checkout session", err)
	}

	switch env.Type {
	case EventSessionCompleted:
		// An unpaid completed session is an async payment still in flight; the
		// outcome arrives later as async_payment_succeeded or _failed.
		if session.PaymentStatus != "paid" && session.PaymentStatus != "no_payment_required" {
			return nil, &domainErrors.UnrecognizedEventError{Provider: providerName, Type: env.Type + " (" + session.PaymentStatus + ")"}
		}
		event.Kind = model.EventCompleted
	case EventSessionAsyncPaymentOK:
		event.Kind = model.EventCompleted
	case EventSessionExpired:
		event.Kind = model.EventExpired
	default:
		event.Kind = model.EventFailed
	}

	event.ProviderOrderID = session.ID
	event.ProviderCaptureID = expandableID(session.PaymentIntent)
	event.Currency = strings.ToUpper(session.Currency)
	event.Amount = fromMinorUnits(session.AmountTotal, session.Currency)

	orderID := firstNonEmpty(session.Metadata[metadataOrderKey], session.ClientReferenceID)
	if orderID == "" && session.ID != "" {
		order, err := n.resolver.FindByProviderOrderID(ctx, model.ProviderStripe, session.ID)
		if err != nil {
			return nil, lookupFailure("resolve order by session", err)
		}
		orderID = order.ID
	}
	if orderID == "" {
		return nil, &domainErrors.NormalizationError{Provider: providerName, Reason: "session carries no order reference"}
	}
	event.OrderID = orderID
	return event, nil
}

func (n *Normalizer) fromPaymentIntent(ctx context.Context, env envelope, event *model.PaymentEvent) (*model.PaymentEvent, error) {
	var intent paymentIntent
	if err := json.Unmarshal(env.Data.Object, &intent); err != nil {
		return nil, malformed("decode payment intent", err)
	}

	event.Kind = model.EventFailed
	event.ProviderCaptureID = intent.ID
	event.Currency = strings.ToUpper(intent.Currency)
	event.Amount = fromMinorUnits(intent.Amount, intent.Currency)

	orderID := intent.Metadata[metadataOrderKey]
	if orderID == "" && intent.ID != "" {
		order, err := n.resolver.FindByCaptureID(ctx, model.ProviderStripe, intent.ID)
		if err != nil {
			return nil, lookupFailure("resolve order by payment intent", err)
		}
		orderID = order.ID
	}
	if orderID == "" {
		return nil, &domainErrors.NormalizationError{Provider: providerName, Reason: "payment intent carries no order reference"}
	}
	event.OrderID = orderID
	return event, nil
}

// expandableID reads a field Stripe sends either as an id string or as an
// expanded object.
func expandableID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			return ""
		}
		return id
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ""
	}
	return obj.ID
}

func malformed(reason string, err error) error {
	cause := domainErrors.ErrMalformedPayload
	if err != nil {
		cause = errors.Join(domainErrors.ErrMalformedPayload, err)
	}
	return &domainErrors.NormalizationError{Provider: providerName, Reason: reason, Err: cause}
}

func lookupFailure(op string, err error) error {
	if errors.Is(err, domainErrors.ErrNotFound) {
		return &domainErrors.NormalizationError{Provider: providerName, Reason: "no order for provider reference"}
	}
	return &domainErrors.LedgerError{Op: op, Err: err}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
