package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrReloadDisabled means no secret is configured, so the operation is off.
	ErrReloadDisabled = errors.New("reload disabled: no reload secret configured")
	// ErrInvalidToken means the presented token does not match the secret.
	ErrInvalidToken = errors.New("invalid reload token")
)

// Verifier checks presented tokens against a plaintext secret, a bcrypt hash
// of the secret, or both.
type Verifier struct {
	secret [sha256.Size]byte
	hasKey bool
	hash   []byte
}

// NewVerifier returns a Verifier. Empty arguments are treated as not set.
func NewVerifier(secret, secretHash string) *Verifier {
	v := &Verifier{}
	if secret != "" {
		v.secret = sha256.Sum256([]byte(secret))
		v.hasKey = true
	}
	if h := strings.TrimSpace(secretHash); h != "" {
		v.hash = []byte(h)
	}
	return v
}

// Enabled reports whether any secret is configured.
func (v *Verifier) Enabled() bool {
	return v != nil && (v.hasKey || len(v.hash) > 0)
}

// Verify returns nil when presented matches a configured secret.
func (v *Verifier) Verify(presented string) error {
	if !v.Enabled() {
		return ErrReloadDisabled
	}
	if presented == "" {
		return ErrInvalidToken
	}

	if v.hasKey {
		// Digests keep the comparison constant-time regardless of length
		digest := sha256.Sum256([]byte(presented))
		if subtle.ConstantTimeCompare(v.secret[:], digest[:]) == 1 {
			return nil
		}
	}
	if len(v.hash) > 0 && bcrypt.CompareHashAndPassword(v.hash, []byte(presented)) == nil {
		return nil
	}
	return ErrInvalidToken
}

// HashSecret returns a bcrypt hash suitable for reload_token_hash.
func HashSecret(secret string) (string, error) {
	return HashSecretCost(secret, bcrypt.DefaultCost)
}

// HashSecretCost is HashSecret with an explicit bcrypt cost.
func HashSecretCost(secret string, cost int) (string, error) {
	if secret == "" {
		return "", errors.New("secret must not be empty")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
