package domain

import "errors"

var (
	// ErrNotFound is returned when the requested resource does not exist.
	// Keeping this sentinel in domain allows adapters to map it consistently to 404/NOT_FOUND.
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidCredentials hides whether email or password failed.
	// The reason is to prevent account-enumeration side channels.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailExists signals a duplicate registration attempt.
	ErrEmailExists = errors.New("email already in use")
	// ErrInvalidToken covers malformed, unsigned and unknown tokens alike so
	// verification failures stay indistinguishable to callers.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenRevoked = errors.New("token revoked")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
	ErrRateLimited  = errors.New("rate limited")
	// ErrTotpInvalid is returned for wrong or stale second-factor codes.
	ErrTotpInvalid = errors.New("invalid totp code")
	// ErrTotpNotConfigured is returned when a 2FA operation needs a stored secret.
	ErrTotpNotConfigured = errors.New("totp not configured")
)
