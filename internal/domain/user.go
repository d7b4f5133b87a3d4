package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role is the coarse authorization level carried in access-token claims.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// ValidRole reports whether the given name is a known role.
func ValidRole(name string) bool {
	switch Role(name) {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

// User is the canonical authentication identity aggregate.
// It keeps only credential-relevant state; profile fields live with the
// profile collaborators.
type User struct {
	UserID       uuid.UUID
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         Role
	TOTPSecret   *string
	TOTPEnabled  bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RefreshToken is one row of the rotation ledger. Revoked is monotonic:
// once true it never returns to false, which is what makes a rotated token
// single-use under concurrent refresh attempts.
type RefreshToken struct {
	TokenID   uuid.UUID
	Token     string
	UserID    uuid.UUID
	IssuedAt  time.Time
	ExpiresAt time.Time
	Revoked   bool
}

// Expired reports whether the token's lifetime has passed at the given instant.
// Expiry is derived from the timestamp, never stored.
func (t RefreshToken) Expired(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}
