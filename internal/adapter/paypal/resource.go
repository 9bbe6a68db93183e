package paypal

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/polkiloo/payrecon/internal/domain/model"
)

type money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

func (m *money) decimal() decimal.Decimal {
	if m == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(strings.TrimSpace(m.Value))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (m *money) currency() string {
	if m == nil {
		return ""
	}
	return strings.ToUpper(m.CurrencyCode)
}

type capture struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount *money `json:"amount"`
}

type purchaseUnit struct {
	ReferenceID string `json:"reference_id"`
	CustomID    string `json:"custom_id"`
	Amount      *money `json:"amount"`
	Payments    struct {
		Captures []capture `json:"captures"`
	} `json:"payments"`
}

type link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method"`
}

// orderResource mirrors the subset of the Orders v2 order object in use.
type orderResource struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	PurchaseUnits []purchaseUnit `json:"purchase_units"`
	Links         []link         `json:"links"`
}

func (o *orderResource) approvalLink() string {
	for _, l := range o.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			return l.Href
		}
	}
	return ""
}

// reference returns the ledger order id carried by the first purchase unit.
func (o *orderResource) reference() string {
	if len(o.PurchaseUnits) == 0 {
		return ""
	}
	unit := o.PurchaseUnits[0]
	if v := strings.TrimSpace(unit.CustomID); v != "" {
		return v
	}
	return strings.TrimSpace(unit.ReferenceID)
}

// firstCapture returns the first capture of the first purchase unit.
func (o *orderResource) firstCapture() *capture {
	if len(o.PurchaseUnits) == 0 || len(o.PurchaseUnits[0].Payments.Captures) == 0 {
		return nil
	}
	return &o.PurchaseUnits[0].Payments.Captures[0]
}

func (o *orderResource) unitAmount() *money {
	if len(o.PurchaseUnits) == 0 {
		return nil
	}
	return o.PurchaseUnits[0].Amount
}

func (o *orderResource) captureResult(raw []byte, alreadyCaptured bool) *model.CaptureResult {
	result := &model.CaptureResult{
		ProviderOrderID: o.ID,
		Status:          model.CaptureOther,
		AlreadyCaptured: alreadyCaptured,
		Raw:             raw,
	}
	c := o.firstCapture()
	if c == nil {
		return result
	}
	result.CaptureID = c.ID
	switch strings.ToUpper(c.Status) {
	case "COMPLETED":
		result.Status = model.CaptureCompleted
	case "PENDING":
		result.Status = model.CapturePending
	}
	amount := c.Amount
	if amount == nil {
		amount = o.unitAmount()
	}
	result.Amount = amount.decimal()
	result.Currency = amount.currency()
	return result
}

func (o *orderResource) details(raw []byte) *model.ProviderOrderDetails {
	d := &model.ProviderOrderDetails{
		ProviderOrderID: o.ID,
		Status:          model.ProviderOrderStatus(strings.ToUpper(o.Status)),
		ReferenceID:     o.reference(),
		Raw:             raw,
	}
	amount := o.unitAmount()
	if c := o.firstCapture(); c != nil {
		d.CaptureID = c.ID
		d.CaptureStatus = strings.ToUpper(c.Status)
		if c.Amount != nil {
			amount = c.Amount
		}
	}
	d.Amount = amount.decimal()
	d.Currency = amount.currency()
	return d
}

type experienceContext struct {
	ReturnURL          string `json:"return_url,omitempty"`
	CancelURL          string `json:"cancel_url,omitempty"`
	UserAction         string `json:"user_action"`
	ShippingPreference string `json:"shipping_preference"`
}

type createUnit struct {
	ReferenceID string `json:"reference_id"`
	CustomID    string `json:"custom_id"`
	Amount      money  `json:"amount"`
}

type createOrderBody struct {
	Intent        string       `json:"intent"`
	PurchaseUnits []createUnit `json:"purchase_units"`
	PaymentSource struct {
		PayPal struct {
			ExperienceContext experienceContext `json:"experience_context"`
		} `json:"paypal"`
	} `json:"payment_source"`
}

func newCreateOrderBody(req model.CreateOrderRequest) createOrderBody {
	currency := strings.ToUpper(req.Currency)
	body := createOrderBody{
		Intent: "CAPTURE",
		PurchaseUnits: []createUnit{{
			ReferenceID: req.OrderID,
			CustomID:    req.OrderID,
			Amount:      money{CurrencyCode: currency, Value: formatAmount(req.Amount, currency)},
		}},
	}
	body.PaymentSource.PayPal.ExperienceContext = experienceContext{
		ReturnURL:          req.ReturnURL,
		CancelURL:          req.CancelURL,
		UserAction:         "PAY_NOW",
		ShippingPreference: "NO_SHIPPING",
	}
	return body
}
