package auth

import "golang.org/x/crypto/bcrypt"

// SecretHasher defines hashing strategy for operator credentials.
type SecretHasher interface {
	Hash(secret string) (string, error)
	Compare(hash string, secret string) error
}

// BcryptHasher uses bcrypt to hash secrets.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates BcryptHasher with provided cost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash returns bcrypt hash for provided secret.
func (h *BcryptHasher) Hash(secret string) (string, error) {
	encoded, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// Compare checks secret against stored hash.
func (h *BcryptHasher) Compare(hash string, secret string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
}

// AdminTokenVerifier accepts bearer tokens matching a configured bcrypt hash.
// An empty hash disables the admin API.
type AdminTokenVerifier struct {
	hash   string
	hasher SecretHasher
}

// NewAdminTokenVerifier creates a verifier for hash.
func NewAdminTokenVerifier(hash string, hasher SecretHasher) *AdminTokenVerifier {
	return &AdminTokenVerifier{hash: hash, hasher: hasher}
}

func (v *AdminTokenVerifier) Verify(token string) error {
	if v.hash == "" || token == "" {
		return ErrInvalidToken
	}
	if err := v.hasher.Compare(v.hash, token); err != nil {
		return ErrInvalidToken
	}
	return nil
}
