package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"
)

var (
	ErrInvalidToken     = errors.New("invalid auth token")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrStaleSignature   = errors.New("signature timestamp outside tolerance")
)

// HMACSigner signs and verifies timestamped payloads with HMAC-SHA256 over
// "<unix timestamp>.<payload>".
type HMACSigner struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewHMACSigner builds HMACSigner with provided secret and options.
func NewHMACSigner(secret string, opts Options) *HMACSigner {
	tolerance := opts.Tolerance
	if tolerance <= 0 {
		tolerance = 5 * time.Minute
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &HMACSigner{secret: []byte(secret), tolerance: tolerance, now: now}
}

// Sign returns the hex encoded signature of payload at timestamp.
func (s *HMACSigner) Sign(timestamp time.Time, payload []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(strconv.FormatInt(timestamp.Unix(), 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks that one of signatures matches payload at timestamp and that
// timestamp lies within the tolerance window around now.
func (s *HMACSigner) Verify(timestamp time.Time, signatures []string, payload []byte) error {
	if len(s.secret) == 0 || len(signatures) == 0 {
		return ErrInvalidSignature
	}

	age := s.now().Sub(timestamp)
	if age > s.tolerance || age < -s.tolerance {
		return ErrStaleSignature
	}

	expected := []byte(s.Sign(timestamp, payload))
	for _, sig := range signatures {
		if hmac.Equal(expected, []byte(sig)) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// Tolerance reports the accepted timestamp skew.
func (s *HMACSigner) Tolerance() time.Duration {
	return s.tolerance
}
