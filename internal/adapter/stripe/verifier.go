package stripe

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	domainErrors "github.com/polkiloo/payrecon/internal/domain/errors"
	"github.com/polkiloo/payrecon/internal/pkg/auth"
)

// SignatureHeader carries the webhook signature.
const SignatureHeader = "Stripe-Signature"

// Verifier authenticates webhook deliveries signed with the endpoint secret.
type Verifier struct {
	signer *auth.HMACSigner
}

// NewVerifier creates Verifier backed by signer.
func NewVerifier(signer *auth.HMACSigner) *Verifier {
	return &Verifier{signer: signer}
}

// Verify checks header against body. Every failure matches
// domainErrors.ErrAuthentication.
func (v *Verifier) Verify(header string, body []byte) error {
	ts, signatures, err := parseSignatureHeader(header)
	if err != nil {
		return fmt.Errorf("%w: %w", domainErrors.ErrAuthentication, err)
	}
	if err := v.signer.Verify(ts, signatures, body); err != nil {
		return fmt.Errorf("%w: %w", domainErrors.ErrAuthentication, err)
	}
	return nil
}

// parseSignatureHeader reads "t=<unix>,v1=<hex>[,v1=<hex>...]". Schemes other
// than v1 are ignored.
func parseSignatureHeader(header string) (time.Time, []string, error) {
	if strings.TrimSpace(header) == "" {
		return time.Time{}, nil, fmt.Errorf("missing %s header", SignatureHeader)
	}

	var (
		ts         time.Time
		haveTS     bool
		signatures []string
	)
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			unix, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return time.Time{}, nil, fmt.Errorf("invalid signature timestamp %q", value)
			}
			ts = time.Unix(unix, 0)
			haveTS = true
		case "v1":
			if value != "" {
				signatures = append(signatures, value)
			}
		}
	}

	if !haveTS {
		return time.Time{}, nil, fmt.Errorf("signature timestamp missing")
	}
	if len(signatures) == 0 {
		return time.Time{}, nil, fmt.Errorf("no v1 signature")
	}
	return ts, signatures, nil
}
