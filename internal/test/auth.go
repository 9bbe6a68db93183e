package test

import (
	"errors"

	pkgAuth "github.com/polkiloo/payrecon/internal/pkg/auth"
)

// HasherStub provides deterministic hashing for tests.
type HasherStub struct {
	HashFn    func(string) (string, error)
	CompareFn func(string, string) error
}

// Hash returns a predictable hash for the supplied secret.
func (h HasherStub) Hash(secret string) (string, error) {
	if h.HashFn != nil {
		return h.HashFn(secret)
	}
	return "hash:" + secret, nil
}

// Compare validates secret against stored hash.
func (h HasherStub) Compare(hash string, secret string) error {
	if h.CompareFn != nil {
		return h.CompareFn(hash, secret)
	}
	if hash != "hash:"+secret {
		return errors.New("mismatch")
	}
	return nil
}

// TokenVerifierStub implements admin token verification for middleware tests.
type TokenVerifierStub struct {
	Token    string
	Err      error
	VerifyFn func(string) error
}

// Verify delegates to override, returns Err, or accepts Token only.
func (s TokenVerifierStub) Verify(token string) error {
	if s.VerifyFn != nil {
		return s.VerifyFn(token)
	}
	if s.Err != nil {
		return s.Err
	}
	if s.Token != "" && token != s.Token {
		return pkgAuth.ErrInvalidToken
	}
	return nil
}

var _ pkgAuth.SecretHasher = HasherStub{}
var _ pkgAuth.TokenVerifier = TokenVerifierStub{}
