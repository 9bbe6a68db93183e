package usecase

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/payrecon/internal/domain/errors"
	"github.com/polkiloo/payrecon/internal/domain/model"
)

// ValidateCurrency checks for a three letter upper-case ISO 4217 code.
func ValidateCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// ValidateAmount checks that amount is positive and has at most two decimals.
func ValidateAmount(amount decimal.Decimal) bool {
	if !amount.IsPositive() {
		return false
	}
	return amount.Equal(amount.Truncate(2))
}

// ValidateRedirectURL accepts absolute http and https URLs.
func ValidateRedirectURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "https" || u.Scheme == "http") && u.Host != ""
}

// ValidateCreateOrder checks a create-order request before any I/O.
func ValidateCreateOrder(req model.CreateOrderRequest) error {
	if strings.TrimSpace(req.OrderID) == "" {
		return fmt.Errorf("order id is required: %w", domainErrors.ErrNotFound)
	}
	if !ValidateAmount(req.Amount) {
		return domainErrors.ErrInvalidAmount
	}
	if !ValidateCurrency(req.Currency) {
		return domainErrors.ErrInvalidCurrency
	}
	if !ValidateRedirectURL(req.ReturnURL) || !ValidateRedirectURL(req.CancelURL) {
		return domainErrors.ErrInvalidRedirect
	}
	return nil
}
