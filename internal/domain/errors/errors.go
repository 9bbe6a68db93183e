package errors

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrAlreadyExists     = errors.New("already exists")
	ErrNotFound          = errors.New("not found")
	ErrStatusMismatch    = errors.New("status mismatch")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidCurrency   = errors.New("invalid currency")
	ErrInvalidRedirect   = errors.New("invalid redirect url")
	ErrProviderMismatch  = errors.New("provider mismatch")
	ErrAuthentication    = errors.New("authentication failed")
	ErrNormalization     = errors.New("payload normalization failed")
	ErrMalformedPayload  = errors.New("malformed payload")
	ErrUnrecognizedEvent = errors.New("unrecognized event")
	ErrProvider          = errors.New("provider call failed")
	ErrUnknownState      = errors.New("payment state unknown")
	ErrLedger            = errors.New("ledger unavailable")
)

// NormalizationError reports a payload that cannot be mapped to a payment event.
type NormalizationError struct {
	Provider string
	Reason   string
	Err      error
}

func (e *NormalizationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("normalize %s payload: %s: %v", e.Provider, e.Reason, e.Err)
	}
	return fmt.Sprintf("normalize %s payload: %s", e.Provider, e.Reason)
}

func (e *NormalizationError) Unwrap() error { return e.Err }

func (e *NormalizationError) Is(target error) bool { return target == ErrNormalization }

// UnrecognizedEventError reports a valid payload the state machine has no edge for.
type UnrecognizedEventError struct {
	Provider string
	Type     string
}

func (e *UnrecognizedEventError) Error() string {
	return fmt.Sprintf("unrecognized %s event %q", e.Provider, e.Type)
}

func (e *UnrecognizedEventError) Is(target error) bool { return target == ErrUnrecognizedEvent }

// ProviderError reports a failed outbound call with a definite answer.
type ProviderError struct {
	Op         string
	StatusCode int
	RetryAfter time.Duration
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Is(target error) bool { return target == ErrProvider }

// UnknownStateError reports an outbound call whose outcome could not be observed.
type UnknownStateError struct {
	Op              string
	ProviderOrderID string
	Err             error
}

func (e *UnknownStateError) Error() string {
	return fmt.Sprintf("provider %s for %s: outcome unknown: %v", e.Op, e.ProviderOrderID, e.Err)
}

func (e *UnknownStateError) Unwrap() error { return e.Err }

func (e *UnknownStateError) Is(target error) bool { return target == ErrUnknownState }

// LedgerError reports that the order store could not serve a request.
type LedgerError struct {
	Op  string
	Err error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("ledger %s: %v", e.Op, e.Err)
}

func (e *LedgerError) Unwrap() error { return e.Err }

func (e *LedgerError) Is(target error) bool { return target == ErrLedger }
