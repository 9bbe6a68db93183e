package router

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/payrecon/internal/server/http/handlers"
	testhelpers "github.com/polkiloo/payrecon/internal/test"
)

func TestSetupRoutes(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	engine := Setup(testhelpers.PaymentFacadeStub{}, testhelpers.TokenVerifierStub{Token: "ops"}, logger)
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		token  string
		want   int
	}{
		{"stripe webhook", http.MethodPost, "/api/payments/webhooks/stripe", `{"id":"evt_1"}`, "", http.StatusOK},
		{"create order", http.MethodPost, "/api/payments/paypal/orders", `{"orderId":"ord_1","amount":"10.00","currency":"USD","returnUrl":"https://shop.test/r","cancelUrl":"https://shop.test/c"}`, "", http.StatusCreated},
		{"capture", http.MethodPost, "/api/payments/paypal/capture", `{"orderId":"pp_1"}`, "", http.StatusOK},
		{"admin without token", http.MethodGet, "/api/admin/paypal/orders/pp_1", "", "", http.StatusUnauthorized},
		{"admin wrong token", http.MethodPost, "/api/admin/orders/ord_1/reconcile", "", "nope", http.StatusUnauthorized},
		{"admin details", http.MethodGet, "/api/admin/paypal/orders/pp_1", "", "ops", http.StatusOK},
		{"admin reconcile", http.MethodPost, "/api/admin/orders/ord_1/reconcile", "", "ops", http.StatusOK},
		{"unknown route", http.MethodGet, "/api/user/orders", "", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.body != "" {
				body = bytes.NewReader([]byte(tt.body))
			}
			req := httptest.NewRequest(tt.method, tt.path, body)
			req.Header.Set("Content-Type", "application/json")
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			resp := httptest.NewRecorder()
			engine.ServeHTTP(resp, req)
			if resp.Code != tt.want {
				t.Fatalf("expected status %d, got %d", tt.want, resp.Code)
			}
			if resp.Header().Get("X-Request-ID") == "" {
				t.Fatal("expected request id header")
			}
		})
	}
}

var _ handlers.PaymentFacade = testhelpers.PaymentFacadeStub{}
