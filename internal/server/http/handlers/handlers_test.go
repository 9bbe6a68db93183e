package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/payrecon/internal/domain/errors"
	"github.com/polkiloo/payrecon/internal/domain/model"
	"github.com/polkiloo/payrecon/internal/server/http/dto"
	testhelpers "github.com/polkiloo/payrecon/internal/test"
	"github.com/polkiloo/payrecon/internal/usecase"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func performRequest(t *testing.T, method, pattern, path string, handler gin.HandlerFunc, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	router := gin.New()
	router.Handle(method, pattern, handler)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

var jsonHeaders = map[string]string{"Content-Type": "application/json"}

func TestWebhookHandlerStatusCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"acknowledged", nil, http.StatusOK},
		{"bad signature", domainErrors.ErrAuthentication, http.StatusBadRequest},
		{"malformed", &domainErrors.NormalizationError{Provider: "stripe", Reason: "decode", Err: domainErrors.ErrMalformedPayload}, http.StatusBadRequest},
		{"ledger down", &domainErrors.LedgerError{Op: "get order", Err: errors.New("dial tcp")}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotBody []byte
			var gotSignature string
			handler := NewWebhookHandler(testhelpers.WebhookFacadeStub{HandleFn: func(_ context.Context, body []byte, signature string) (*usecase.WebhookResult, error) {
				gotBody = body
				gotSignature = signature
				if tt.err != nil {
					return nil, tt.err
				}
				return &usecase.WebhookResult{Outcome: usecase.OutcomeApplied}, nil
			}})

			resp := performRequest(t, http.MethodPost, "/webhook", "/webhook", handler.Stripe, []byte(`{"id":"evt_1"}`), map[string]string{"Stripe-Signature": "t=1,v1=abc"})
			if resp.Code != tt.want {
				t.Fatalf("expected status %d, got %d", tt.want, resp.Code)
			}
			if string(gotBody) != `{"id":"evt_1"}` || gotSignature != "t=1,v1=abc" {
				t.Fatalf("raw body or signature not forwarded: %q %q", gotBody, gotSignature)
			}
		})
	}
}

func TestCheckoutHandlerCreateOrder(t *testing.T) {
	var got model.CreateOrderRequest
	handler := NewCheckoutHandler(testhelpers.CheckoutFacadeStub{CreateFn: func(_ context.Context, req model.CreateOrderRequest) (*model.CheckoutSession, error) {
		got = req
		return &model.CheckoutSession{ProviderOrderID: "pp_1", ApprovalLink: "https://paypal.test/approve"}, nil
	}})

	body := []byte(`{"orderId":" ord_1 ","amount":"50.00","currency":"usd","returnUrl":"https://shop.test/r","cancelUrl":"https://shop.test/c"}`)
	resp := performRequest(t, http.MethodPost, "/orders", "/orders", handler.CreateOrder, body, jsonHeaders)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", resp.Code)
	}
	var out dto.CreateOrderResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.ProviderOrderID != "pp_1" || out.ApprovalLink != "https://paypal.test/approve" {
		t.Fatalf("unexpected response %+v", out)
	}
	if got.OrderID != "ord_1" || got.Currency != "USD" || !got.Amount.Equal(decimal.RequireFromString("50")) {
		t.Fatalf("unexpected request passed to facade %+v", got)
	}
}

func TestCheckoutHandlerCreateOrderErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid amount", domainErrors.ErrInvalidAmount, http.StatusBadRequest},
		{"invalid redirect", domainErrors.ErrInvalidRedirect, http.StatusBadRequest},
		{"unknown order", domainErrors.ErrNotFound, http.StatusNotFound},
		{"already referenced", domainErrors.ErrAlreadyExists, http.StatusConflict},
		{"wrong provider", domainErrors.ErrProviderMismatch, http.StatusConflict},
		{"provider rejected", &domainErrors.ProviderError{Op: "create order", StatusCode: 422, Err: errors.New("UNPROCESSABLE_ENTITY")}, http.StatusBadGateway},
		{"provider rate limited", &domainErrors.ProviderError{Op: "create order", StatusCode: 429, RetryAfter: 2 * time.Second, Err: errors.New("RATE_LIMIT_REACHED")}, http.StatusServiceUnavailable},
		{"ledger down", &domainErrors.LedgerError{Op: "get order", Err: errors.New("dial tcp")}, http.StatusServiceUnavailable},
		{"timeout", &domainErrors.UnknownStateError{Op: "create order", Err: context.DeadlineExceeded}, http.StatusGatewayTimeout},
	}
	body := []byte(`{"orderId":"ord_1","amount":50,"currency":"USD","returnUrl":"https://shop.test/r","cancelUrl":"https://shop.test/c"}`)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewCheckoutHandler(testhelpers.CheckoutFacadeStub{CreateFn: func(context.Context, model.CreateOrderRequest) (*model.CheckoutSession, error) {
				return nil, tt.err
			}})
			resp := performRequest(t, http.MethodPost, "/orders", "/orders", handler.CreateOrder, body, jsonHeaders)
			if resp.Code != tt.want {
				t.Fatalf("expected status %d, got %d", tt.want, resp.Code)
			}
		})
	}

	t.Run("bad json", func(t *testing.T) {
		handler := NewCheckoutHandler(testhelpers.CheckoutFacadeStub{})
		resp := performRequest(t, http.MethodPost, "/orders", "/orders", handler.CreateOrder, []byte(`{"orderId":`), jsonHeaders)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", resp.Code)
		}
	})
}

func TestCheckoutHandlerCapture(t *testing.T) {
	tests := []struct {
		name     string
		outcome  *usecase.CaptureOutcome
		err      error
		want     int
		success  bool
		errorMsg string
	}{
		{
			name:    "paid",
			outcome: &usecase.CaptureOutcome{CaptureID: "cap_1", OrderStatus: model.OrderStatusPaid},
			want:    http.StatusOK,
			success: true,
		},
		{
			name:     "pending at provider",
			outcome:  &usecase.CaptureOutcome{Status: model.CapturePending, OrderStatus: model.OrderStatusPending},
			want:     http.StatusAccepted,
			errorMsg: "processing",
		},
		{
			name:     "declined",
			outcome:  &usecase.CaptureOutcome{CaptureID: "cap_2", OrderStatus: model.OrderStatusPaymentFailed},
			want:     http.StatusOK,
			errorMsg: "payment_failed",
		},
		{
			name:     "outcome unknown",
			err:      &domainErrors.UnknownStateError{Op: "capture order", ProviderOrderID: "pp_1", Err: context.DeadlineExceeded},
			want:     http.StatusAccepted,
			errorMsg: "processing",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewCheckoutHandler(testhelpers.CheckoutFacadeStub{CaptureFn: func(_ context.Context, id string) (*usecase.CaptureOutcome, error) {
				if id != "pp_1" {
					t.Errorf("unexpected provider order %q", id)
				}
				return tt.outcome, tt.err
			}})
			resp := performRequest(t, http.MethodPost, "/capture", "/capture", handler.Capture, []byte(`{"orderId":"pp_1"}`), jsonHeaders)
			if resp.Code != tt.want {
				t.Fatalf("expected status %d, got %d", tt.want, resp.Code)
			}
			var out dto.CaptureResponse
			if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if out.Success != tt.success || out.Error != tt.errorMsg {
				t.Fatalf("unexpected response %+v", out)
			}
		})
	}
}

func TestCheckoutHandlerCaptureErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unknown order", domainErrors.ErrNotFound, http.StatusNotFound},
		{"cancelled order", domainErrors.ErrStatusMismatch, http.StatusConflict},
		{"provider 404", &domainErrors.ProviderError{Op: "capture order", StatusCode: 404, Err: domainErrors.ErrNotFound}, http.StatusNotFound},
		{"provider rejected", &domainErrors.ProviderError{Op: "capture order", StatusCode: 422, Err: errors.New("ORDER_NOT_APPROVED")}, http.StatusBadGateway},
		{"ledger down", &domainErrors.LedgerError{Op: "conditional apply", Err: errors.New("dial tcp")}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewCheckoutHandler(testhelpers.CheckoutFacadeStub{CaptureFn: func(context.Context, string) (*usecase.CaptureOutcome, error) {
				return nil, tt.err
			}})
			resp := performRequest(t, http.MethodPost, "/capture", "/capture", handler.Capture, []byte(`{"orderId":"pp_1"}`), jsonHeaders)
			if resp.Code != tt.want {
				t.Fatalf("expected status %d, got %d", tt.want, resp.Code)
			}
		})
	}

	handler := NewCheckoutHandler(testhelpers.CheckoutFacadeStub{})
	resp := performRequest(t, http.MethodPost, "/capture", "/capture", handler.Capture, []byte(`{}`), jsonHeaders)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for missing order id, got %d", resp.Code)
	}
}

func TestAdminHandlerProviderOrder(t *testing.T) {
	handler := NewAdminHandler(testhelpers.AdminFacadeStub{})
	resp := performRequest(t, http.MethodGet, "/orders/:providerOrderId", "/orders/pp_9", handler.ProviderOrder, nil, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var out dto.ProviderOrderResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.ProviderOrderID != "pp_9" || out.Status != "COMPLETED" || out.CaptureID != "cap_1" {
		t.Fatalf("unexpected response %+v", out)
	}

	handler = NewAdminHandler(testhelpers.AdminFacadeStub{DetailsFn: func(context.Context, string) (*model.ProviderOrderDetails, error) {
		return nil, &domainErrors.ProviderError{Op: "get order", StatusCode: 500, Err: errors.New("INTERNAL_SERVER_ERROR")}
	}})
	resp = performRequest(t, http.MethodGet, "/orders/:providerOrderId", "/orders/pp_9", handler.ProviderOrder, nil, nil)
	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", resp.Code)
	}
}

func TestAdminHandlerReconcile(t *testing.T) {
	paidAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	handler := NewAdminHandler(testhelpers.AdminFacadeStub{ReconcileFn: func(_ context.Context, orderID string) (*usecase.ApplyResult, error) {
		if orderID != "ord_1" {
			t.Errorf("unexpected order id %q", orderID)
		}
		return &usecase.ApplyResult{
			OrderID:  orderID,
			Outcome:  usecase.OutcomeApplied,
			Previous: model.OrderStatusPending,
			Status:   model.OrderStatusPaid,
			Order:    &model.Order{ID: orderID, ProviderCaptureID: "cap_1", PaidAt: &paidAt},
		}, nil
	}})
	resp := performRequest(t, http.MethodPost, "/orders/:orderId/reconcile", "/orders/ord_1/reconcile", handler.Reconcile, nil, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var out dto.ReconcileResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Outcome != "applied" || out.PreviousStatus != "PENDING" || out.Status != "PAID" || out.CaptureID != "cap_1" {
		t.Fatalf("unexpected response %+v", out)
	}

	handler = NewAdminHandler(testhelpers.AdminFacadeStub{ReconcileFn: func(context.Context, string) (*usecase.ApplyResult, error) {
		return nil, domainErrors.ErrNotFound
	}})
	resp = performRequest(t, http.MethodPost, "/orders/:orderId/reconcile", "/orders/missing/reconcile", handler.Reconcile, nil, nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
}
