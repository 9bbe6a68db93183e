package usecase

import (
	"context"
	"errors"
	"time"

	domainErrors "github.com/polkiloo/payrecon/internal/domain/errors"
)

// ledgerCall runs fn under the ledger timeout and classifies its error: domain
// answers pass through, anything else becomes a LedgerError.
func ledgerCall(ctx context.Context, timeout time.Duration, op string, fn func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(callCtx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domainErrors.ErrNotFound),
		errors.Is(err, domainErrors.ErrStatusMismatch),
		errors.Is(err, domainErrors.ErrAlreadyExists),
		errors.Is(err, domainErrors.ErrLedger):
		return err
	default:
		return &domainErrors.LedgerError{Op: op, Err: err}
	}
}
