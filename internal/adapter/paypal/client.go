// Package paypal talks to the PayPal Orders v2 REST API and maps its order
// resources to payment events.
package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/payrecon/internal/domain/errors"
	"github.com/polkiloo/payrecon/internal/domain/model"
)

// issueOrderAlreadyCaptured is the error detail PayPal returns for a repeated capture.
const issueOrderAlreadyCaptured = "ORDER_ALREADY_CAPTURED"

// requestIDNamespace seeds the deterministic PayPal-Request-Id values.
var requestIDNamespace = uuid.MustParse("b3a8e2c4-5f1d-4e7a-9c60-1d2f3e4a5b6c")

// tokenExpirySlack renews access tokens before PayPal expires them.
const tokenExpirySlack = time.Minute

// Client exposes the PayPal order operations used by checkout.
type Client interface {
	CreateOrder(ctx context.Context, req model.CreateOrderRequest) (*model.CheckoutSession, error)
	CaptureOrder(ctx context.Context, providerOrderID string) (*model.CaptureResult, error)
	GetOrderDetails(ctx context.Context, providerOrderID string) (*model.ProviderOrderDetails, error)
}

// HTTPClient implements Client via the REST API.
type HTTPClient struct {
	baseURL      *url.URL
	clientID     string
	clientSecret string
	httpClient   *http.Client
	logger       *slog.Logger
	now          func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewHTTPClient creates a PayPal client. timeout bounds every HTTP round trip.
func NewHTTPClient(baseURL, clientID, clientSecret string, timeout time.Duration, logger *slog.Logger) (*HTTPClient, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse paypal url: %w", err)
	}
	if !parsed.IsAbs() {
		return nil, fmt.Errorf("paypal url must be absolute")
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPClient{
		baseURL:      parsed,
		clientID:     clientID,
		clientSecret: clientSecret,
		logger:       logger,
		now:          time.Now,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// CreateOrder creates a CAPTURE-intent order. The call is sent once: a
// transport failure or 5xx answer is reported as UnknownStateError because the
// order may exist at PayPal. The request id is derived from the ledger order
// id, so a caller-level retry is deduplicated by PayPal.
func (c *HTTPClient) CreateOrder(ctx context.Context, req model.CreateOrderRequest) (*model.CheckoutSession, error) {
	body, err := json.Marshal(newCreateOrderBody(req))
	if err != nil {
		return nil, fmt.Errorf("encode create order: %w", err)
	}

	const op = "create order"
	resp, err := c.do(ctx, op, http.MethodPost, "/v2/checkout/orders", body, requestID("create", req.OrderID))
	if err != nil {
		return nil, unknownOnTransport(op, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, &domainErrors.UnknownStateError{Op: op, Err: c.failure(op, resp)}
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, c.failure(op, resp)
	}

	var order orderResource
	if _, err := decodeBody(resp.Body, &order); err != nil {
		return nil, &domainErrors.UnknownStateError{Op: op, Err: err}
	}
	if order.ID == "" {
		return nil, &domainErrors.UnknownStateError{Op: op, Err: errors.New("response carries no order id")}
	}
	return &model.CheckoutSession{ProviderOrderID: order.ID, ApprovalLink: order.approvalLink()}, nil
}

// CaptureOrder captures an approved order. Repeated captures of the same order
// reuse one request id; an ORDER_ALREADY_CAPTURED answer is resolved by
// reading the order and reported with AlreadyCaptured set.
func (c *HTTPClient) CaptureOrder(ctx context.Context, providerOrderID string) (*model.CaptureResult, error) {
	const op = "capture order"
	resp, err := c.do(ctx, op, http.MethodPost, path.Join("/v2/checkout/orders", providerOrderID, "capture"), nil, requestID("capture", providerOrderID))
	if err != nil {
		return nil, unknownOnTransport(op, providerOrderID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		var order orderResource
		raw, err := decodeBody(resp.Body, &order)
		if err != nil {
			return nil, &domainErrors.UnknownStateError{Op: op, ProviderOrderID: providerOrderID, Err: err}
		}
		return order.captureResult(raw, false), nil
	case resp.StatusCode == http.StatusUnprocessableEntity:
		apiErr := readAPIError(resp.Body)
		if apiErr.hasIssue(issueOrderAlreadyCaptured) {
			return c.alreadyCaptured(ctx, providerOrderID)
		}
		return nil, &domainErrors.ProviderError{Op: op, StatusCode: resp.StatusCode, Err: apiErr}
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, &domainErrors.UnknownStateError{Op: op, ProviderOrderID: providerOrderID, Err: c.failure(op, resp)}
	default:
		return nil, c.failure(op, resp)
	}
}

func (c *HTTPClient) alreadyCaptured(ctx context.Context, providerOrderID string) (*model.CaptureResult, error) {
	order, raw, err := c.getOrder(ctx, providerOrderID)
	if err != nil {
		// The capture exists but its details could not be read.
		return nil, &domainErrors.UnknownStateError{Op: "capture order", ProviderOrderID: providerOrderID, Err: err}
	}
	return order.captureResult(raw, true), nil
}

// GetOrderDetails reads the current provider view of an order.
func (c *HTTPClient) GetOrderDetails(ctx context.Context, providerOrderID string) (*model.ProviderOrderDetails, error) {
	order, raw, err := c.getOrder(ctx, providerOrderID)
	if err != nil {
		return nil, err
	}
	return order.details(raw), nil
}

func (c *HTTPClient) getOrder(ctx context.Context, providerOrderID string) (*orderResource, []byte, error) {
	const op = "get order"
	resp, err := c.do(ctx, op, http.MethodGet, path.Join("/v2/checkout/orders", providerOrderID), nil, "")
	if err != nil {
		var providerErr *domainErrors.ProviderError
		if errors.As(err, &providerErr) {
			return nil, nil, err
		}
		return nil, nil, &domainErrors.ProviderError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, c.failure(op, resp)
	}

	var order orderResource
	raw, err := decodeBody(resp.Body, &order)
	if err != nil {
		return nil, nil, &domainErrors.ProviderError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	return &order, raw, nil
}

// do sends an authenticated request. Errors returned before the request is
// written are ProviderError values; transport errors are returned as is.
func (c *HTTPClient) do(ctx context.Context, op, method, apiPath string, body []byte, requestID string) (*http.Response, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := *c.baseURL
	endpoint.Path = path.Join(endpoint.Path, apiPath)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return nil, &domainErrors.ProviderError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Prefer", "return=representation")
	}
	if requestID != "" {
		req.Header.Set("PayPal-Request-Id", requestID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		c.resetToken()
	}
	return resp, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (c *HTTPClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	const op = "oauth token"
	endpoint := *c.baseURL
	endpoint.Path = path.Join(endpoint.Path, "/v1/oauth2/token")

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return "", &domainErrors.ProviderError{Op: op, Err: err}
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &domainErrors.ProviderError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.failure(op, resp)
	}

	var data tokenResponse
	if _, err := decodeBody(resp.Body, &data); err != nil {
		return "", &domainErrors.ProviderError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	if data.AccessToken == "" {
		return "", &domainErrors.ProviderError{Op: op, StatusCode: resp.StatusCode, Err: errors.New("empty access token")}
	}

	c.token = data.AccessToken
	c.tokenExpiry = c.now().Add(time.Duration(data.ExpiresIn)*time.Second - tokenExpirySlack)
	return c.token, nil
}

func (c *HTTPClient) resetToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// failure converts an unexpected answer to ProviderError and logs it.
func (c *HTTPClient) failure(op string, resp *http.Response) error {
	apiErr := readAPIError(resp.Body)
	c.logger.Error("paypal request failed",
		slog.String("op", op),
		slog.Int("status", resp.StatusCode),
		slog.String("name", apiErr.Name),
		slog.String("debug_id", apiErr.DebugID),
	)

	providerErr := &domainErrors.ProviderError{Op: op, StatusCode: resp.StatusCode, Err: apiErr}
	switch resp.StatusCode {
	case http.StatusNotFound:
		providerErr.Err = fmt.Errorf("%w: %w", domainErrors.ErrNotFound, apiErr)
	case http.StatusTooManyRequests:
		providerErr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
	}
	return providerErr
}

// unknownOnTransport classifies a failed side-effecting call. Errors raised
// before sending keep their type; anything else may have reached PayPal.
func unknownOnTransport(op, providerOrderID string, err error) error {
	var providerErr *domainErrors.ProviderError
	if errors.As(err, &providerErr) {
		return err
	}
	return &domainErrors.UnknownStateError{Op: op, ProviderOrderID: providerOrderID, Err: err}
}

func requestID(kind, id string) string {
	return uuid.NewSHA1(requestIDNamespace, []byte(kind+":"+id)).String()
}

func decodeBody(r io.Reader, dst any) ([]byte, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return raw, nil
}

// apiError mirrors the PayPal error response.
type apiError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	DebugID string `json:"debug_id"`
	Details []struct {
		Issue       string `json:"issue"`
		Description string `json:"description"`
	} `json:"details"`
}

func readAPIError(r io.Reader) *apiError {
	apiErr := &apiError{}
	raw, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err == nil && len(raw) > 0 {
		_ = json.Unmarshal(raw, apiErr)
	}
	return apiErr
}

func (e *apiError) Error() string {
	var issues []string
	for _, d := range e.Details {
		issues = append(issues, d.Issue)
	}
	msg := e.Name
	if msg == "" {
		msg = "unexpected response"
	}
	if len(issues) > 0 {
		msg += " [" + strings.Join(issues, ",") + "]"
	}
	return msg
}

func (e *apiError) hasIssue(issue string) bool {
	for _, d := range e.Details {
		if d.Issue == issue {
			return true
		}
	}
	return false
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 5 * time.Second
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}
	return 5 * time.Second
}

// zeroDecimalCurrencies lists currencies PayPal accepts only as whole units.
var zeroDecimalCurrencies = map[string]struct{}{"HUF": {}, "JPY": {}, "TWD": {}}

func formatAmount(amount decimal.Decimal, currency string) string {
	if _, ok := zeroDecimalCurrencies[strings.ToUpper(currency)]; ok {
		return amount.StringFixed(0)
	}
	return amount.StringFixed(2)
}
