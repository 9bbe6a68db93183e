package auth

import (
	"errors"
	"testing"
	"time"
)

var signedAt = time.Unix(1740830400, 0)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNewHMACSigner_DefaultTolerance(t *testing.T) {
	signer := NewHMACSigner("secret", Options{})
	if string(signer.secret) != "secret" {
		t.Fatalf("unexpected secret: %q", string(signer.secret))
	}
	if signer.Tolerance() != 5*time.Minute {
		t.Fatalf("unexpected tolerance: %s", signer.Tolerance())
	}
	if signer.now == nil {
		t.Fatal("expected default clock")
	}
}

func TestNewHMACSigner_CustomTolerance(t *testing.T) {
	signer := NewHMACSigner("secret", Options{Tolerance: time.Minute})
	if signer.Tolerance() != time.Minute {
		t.Fatalf("unexpected tolerance: %s", signer.Tolerance())
	}
}

func TestHMACSigner_SignIsDeterministic(t *testing.T) {
	signer := NewHMACSigner("whsec_test", Options{})
	first := signer.Sign(signedAt, []byte(`{"id":"evt_1"}`))
	second := signer.Sign(signedAt, []byte(`{"id":"evt_1"}`))
	if first != second || len(first) != 64 {
		t.Fatalf("expected stable hex digest, got %q and %q", first, second)
	}
	if signer.Sign(signedAt.Add(time.Second), []byte(`{"id":"evt_1"}`)) == first {
		t.Fatal("expected timestamp to be part of the signed content")
	}
}

func TestHMACSigner_Verify(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	signer := NewHMACSigner("whsec_test", Options{Now: fixedClock(signedAt.Add(time.Minute))})
	valid := signer.Sign(signedAt, payload)

	cases := []struct {
		name       string
		signer     *HMACSigner
		timestamp  time.Time
		signatures []string
		payload    []byte
		want       error
	}{
		{"valid", signer, signedAt, []string{valid}, payload, nil},
		{"valid among several", signer, signedAt, []string{"deadbeef", valid}, payload, nil},
		{"tampered payload", signer, signedAt, []string{valid}, []byte(`{"id":"evt_2"}`), ErrInvalidSignature},
		{"wrong secret", NewHMACSigner("other", Options{Now: fixedClock(signedAt)}), signedAt, []string{valid}, payload, ErrInvalidSignature},
		{"no signatures", signer, signedAt, nil, payload, ErrInvalidSignature},
		{"empty secret", NewHMACSigner("", Options{Now: fixedClock(signedAt)}), signedAt, []string{valid}, payload, ErrInvalidSignature},
		{"too old", NewHMACSigner("whsec_test", Options{Now: fixedClock(signedAt.Add(6 * time.Minute))}), signedAt, []string{valid}, payload, ErrStaleSignature},
		{"from the future", NewHMACSigner("whsec_test", Options{Now: fixedClock(signedAt.Add(-6 * time.Minute))}), signedAt, []string{valid}, payload, ErrStaleSignature},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.signer.Verify(tc.timestamp, tc.signatures, tc.payload)
			if tc.want == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}
