package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	domainErrors "github.com/polkiloo/payrecon/internal/domain/errors"
	"github.com/polkiloo/payrecon/internal/server/http/dto"
)

// abortWithError maps a domain error to its HTTP status. Uncertain outcomes
// are checked first because UnknownStateError may wrap a provider error.
func abortWithError(c *gin.Context, err error, unknownStatus int) {
	var providerErr *domainErrors.ProviderError
	switch {
	case errors.Is(err, domainErrors.ErrUnknownState):
		c.AbortWithStatusJSON(unknownStatus, dto.ErrorResponse{Error: "processing"})
	case errors.Is(err, domainErrors.ErrLedger):
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: "ledger unavailable"})
	case errors.As(err, &providerErr):
		switch {
		case errors.Is(err, domainErrors.ErrNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, dto.ErrorResponse{Error: "provider order not found"})
		case providerErr.StatusCode == http.StatusTooManyRequests:
			if providerErr.RetryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(providerErr.RetryAfter.Seconds())))
			}
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: "provider rate limited"})
		default:
			c.AbortWithStatusJSON(http.StatusBadGateway, dto.ErrorResponse{Error: "provider error"})
		}
	case errors.Is(err, domainErrors.ErrInvalidAmount),
		errors.Is(err, domainErrors.ErrInvalidCurrency),
		errors.Is(err, domainErrors.ErrInvalidRedirect):
		c.AbortWithStatusJSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, domainErrors.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, dto.ErrorResponse{Error: "order not found"})
	case errors.Is(err, domainErrors.ErrProviderMismatch),
		errors.Is(err, domainErrors.ErrStatusMismatch),
		errors.Is(err, domainErrors.ErrAlreadyExists):
		c.AbortWithStatusJSON(http.StatusConflict, dto.ErrorResponse{Error: err.Error()})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal error"})
	}
}
