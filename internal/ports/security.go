package ports

import (
	"time"

	"github.com/google/uuid"

	"github.com/securevault/securevault/internal/domain"
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// AccessClaims is the verified content of an access token. Validity of the
// token is fully determined by signature and expiry; revocation is the
// caller's concern via the denylist.
type AccessClaims struct {
	UserID    uuid.UUID
	Email     string
	Role      domain.Role
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	KeyID     string
}

// RemainingTTL is how long the token stays verifiable from the given instant.
// Logout uses it to size the denylist entry so the denial never outlives the
// token and never falls short of it.
func (c AccessClaims) RemainingTTL(now time.Time) time.Duration {
	d := c.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// TokenVerifier is the stateless verification half of the signer. The edge
// gateway depends only on this so it can run with the public key alone.
type TokenVerifier interface {
	Verify(raw string) (AccessClaims, error)
}

// TokenSigner issues and verifies signed access tokens.
type TokenSigner interface {
	TokenVerifier
	IssueAccess(user domain.User, now time.Time, ttl time.Duration) (string, AccessClaims, error)
	PublicJWKs() ([]map[string]any, error)
}

// TOTPProvider generates shared secrets and verifies time-window codes for
// step-up authentication.
type TOTPProvider interface {
	GenerateSecret() (string, error)
	VerifyCode(secret, code string) bool
	ProvisioningURI(secret, email string) string
}
