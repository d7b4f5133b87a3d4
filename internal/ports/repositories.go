package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/securevault/securevault/internal/domain"
)

// CreateUserParams carries everything needed to persist a new principal.
type CreateUserParams struct {
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         domain.Role
	RegisteredAt time.Time
}

type UserRepository interface {
	Create(ctx context.Context, params CreateUserParams) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByID(ctx context.Context, userID uuid.UUID) (domain.User, error)
	// UpdateTOTP stores or clears the shared secret and flips the enabled flag
	// in one write. A nil secret clears it.
	UpdateTOTP(ctx context.Context, userID uuid.UUID, secret *string, enabled bool, updatedAt time.Time) error
}

// RefreshTokenRepository owns the rotation ledger.
type RefreshTokenRepository interface {
	Create(ctx context.Context, userID uuid.UUID, token string, issuedAt, expiresAt time.Time) (domain.RefreshToken, error)
	GetByToken(ctx context.Context, token string) (domain.RefreshToken, error)
	// Revoke flips revoked to true only if it is currently false. It returns
	// domain.ErrTokenRevoked when another caller already revoked the row and
	// domain.ErrInvalidToken when the row does not exist, so exactly one of
	// two concurrent rotations can win.
	Revoke(ctx context.Context, token string) error
	// DeleteExpired removes rows whose expiry passed before the cutoff.
	// Called by external housekeeping, never on the request path.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
