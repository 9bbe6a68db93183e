package auth

import "time"

// TokenVerifier authenticates bearer tokens presented to protected routes.
type TokenVerifier interface {
	Verify(token string) error
}

type Options struct {
	Tolerance time.Duration
	Now       func() time.Time
}
