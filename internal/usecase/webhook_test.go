package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polkiloo/payrecon/internal/adapter/stripe"
	domainErrors "github.com/polkiloo/payrecon/internal/domain/errors"
	"github.com/polkiloo/payrecon/internal/domain/model"
	"github.com/polkiloo/payrecon/internal/pkg/auth"
	"github.com/polkiloo/payrecon/internal/storage/memory"
)

const webhookSecret = "whsec_test"

type countingNormalizer struct {
	calls int
	event *model.PaymentEvent
	err   error
}

func (n *countingNormalizer) Normalize(context.Context, []byte) (*model.PaymentEvent, error) {
	n.calls++
	return n.event, n.err
}

type failingLedger struct {
	*memory.Ledger
	err error
}

func (l failingLedger) Get(context.Context, string) (*model.Order, error) {
	return nil, l.err
}

func sessionCompleted(orderID string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_%[1]s",
		"type": "checkout.session.completed",
		"created": 1740830400,
		"data": {"object": {
			"id": "cs_%[1]s",
			"object": "checkout.session",
			"client_reference_id": %[1]q,
			"payment_status": "paid",
			"payment_intent": "pi_%[1]s",
			"amount_total": 5000,
			"currency": "usd"
		}}
	}`, orderID))
}

func signedHeader(body []byte) string {
	signer := auth.NewHMACSigner(webhookSecret, auth.Options{})
	now := time.Now()
	return fmt.Sprintf("t=%d,v1=%s", now.Unix(), signer.Sign(now, body))
}

func stripeWebhookUseCase(ledger *memory.Ledger) *WebhookUseCase {
	verifier := stripe.NewVerifier(auth.NewHMACSigner(webhookSecret, auth.Options{}))
	return NewWebhookUseCase(verifier, stripe.NewNormalizer(ledger), NewReconcileUseCase(ledger, time.Second, testLogger()), time.Second, testLogger())
}

func TestWebhookHandleMarksOrderPaidOnce(t *testing.T) {
	ledger := memory.NewLedger()
	ledger.Seed(model.Order{ID: "ord_1", Provider: model.ProviderStripe})
	uc := stripeWebhookUseCase(ledger)
	body := sessionCompleted("ord_1")

	res, err := uc.Handle(context.Background(), body, signedHeader(body))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, "ord_1", res.OrderID)
	assert.Equal(t, "evt_ord_1", res.EventID)
	assert.Equal(t, model.OrderStatusPaid, res.Status)

	res, err = uc.Handle(context.Background(), body, signedHeader(body))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, res.Outcome)

	stored, err := ledger.Get(context.Background(), "ord_1")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPaid, stored.Status)
	assert.Equal(t, "pi_ord_1", stored.ProviderCaptureID)
	assert.Equal(t, "USD", stored.Currency)
	assert.Len(t, ledger.Events(), 1)
}

func TestWebhookHandleRejectsBadSignatureBeforeNormalizing(t *testing.T) {
	ledger := memory.NewLedger()
	ledger.Seed(model.Order{ID: "ord_1", Provider: model.ProviderStripe})
	normalizer := &countingNormalizer{}
	verifier := stripe.NewVerifier(auth.NewHMACSigner(webhookSecret, auth.Options{}))
	uc := NewWebhookUseCase(verifier, normalizer, NewReconcileUseCase(ledger, time.Second, testLogger()), time.Second, testLogger())

	body := sessionCompleted("ord_1")
	header := signedHeader(body)
	tampered := sessionCompleted("ord_2")

	for name, h := range map[string]string{"tampered body": header, "missing header": ""} {
		t.Run(name, func(t *testing.T) {
			_, err := uc.Handle(context.Background(), tampered, h)
			assert.ErrorIs(t, err, domainErrors.ErrAuthentication)
		})
	}
	assert.Zero(t, normalizer.calls)

	stored, err := ledger.Get(context.Background(), "ord_1")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPending, stored.Status)
}

func TestWebhookHandleAcknowledgesUnknownOrder(t *testing.T) {
	ledger := memory.NewLedger()
	uc := stripeWebhookUseCase(ledger)
	body := sessionCompleted("ord_missing")

	res, err := uc.Handle(context.Background(), body, signedHeader(body))
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, res.Outcome)
	assert.Equal(t, "ord_missing", res.OrderID)
	assert.Empty(t, ledger.Events())
}

func TestWebhookHandleAcknowledgesIgnoredEvents(t *testing.T) {
	ledger := memory.NewLedger()
	uc := stripeWebhookUseCase(ledger)
	body := []byte(`{"id":"evt_1","type":"customer.created","created":1740830400,"data":{"object":{"id":"cus_1"}}}`)

	res, err := uc.Handle(context.Background(), body, signedHeader(body))
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, res.Outcome)
}

func TestWebhookHandleRejectsMalformedPayload(t *testing.T) {
	uc := stripeWebhookUseCase(memory.NewLedger())
	body := []byte(`{not json`)

	_, err := uc.Handle(context.Background(), body, signedHeader(body))
	assert.ErrorIs(t, err, domainErrors.ErrMalformedPayload)
}

func TestWebhookHandleLedgerFailureRequestsRedelivery(t *testing.T) {
	base := memory.NewLedger()
	ledger := failingLedger{Ledger: base, err: errors.New("connection refused")}
	verifier := stripe.NewVerifier(auth.NewHMACSigner(webhookSecret, auth.Options{}))
	uc := NewWebhookUseCase(verifier, stripe.NewNormalizer(base), NewReconcileUseCase(ledger, time.Second, testLogger()), time.Second, testLogger())
	body := sessionCompleted("ord_1")

	_, err := uc.Handle(context.Background(), body, signedHeader(body))
	assert.ErrorIs(t, err, domainErrors.ErrLedger)
}

func TestWebhookHandleProviderMismatchIsIgnored(t *testing.T) {
	ledger := memory.NewLedger()
	ledger.Seed(model.Order{ID: "ord_1", Provider: model.ProviderPayPal})
	uc := stripeWebhookUseCase(ledger)
	body := sessionCompleted("ord_1")

	res, err := uc.Handle(context.Background(), body, signedHeader(body))
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, res.Outcome)

	stored, err := ledger.Get(context.Background(), "ord_1")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPending, stored.Status)
}
