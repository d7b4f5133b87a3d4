package application

import (
	"time"

	"github.com/google/uuid"

	"github.com/securevault/securevault/internal/domain"
)

// Config carries the tunables the credential service needs at runtime.
type Config struct {
	DefaultRole     domain.Role
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type RegisterResponse struct {
	UserID    uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Role      string    `json:"role"`
	Message   string    `json:"message"`
}

type LoginRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	IPAddress string `json:"-"`
}

// AuthResponse is the full-login result. When TotpRequired is set only the
// email is populated; both tokens are withheld until the step-up code is
// verified.
type AuthResponse struct {
	UserID       uuid.UUID `json:"id,omitempty"`
	Email        string    `json:"email"`
	FirstName    string    `json:"firstName,omitempty"`
	LastName     string    `json:"lastName,omitempty"`
	Role         string    `json:"role,omitempty"`
	AccessToken  string    `json:"accessToken,omitempty"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	TotpRequired bool      `json:"totpRequired,omitempty"`
	Message      string    `json:"message"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type TotpSetupResponse struct {
	Secret    string `json:"secret"`
	QRCodeURI string `json:"qrCodeUri"`
}

type TotpVerifyRequest struct {
	Code string `json:"code"`
}

type TotpLoginRequest struct {
	Email     string `json:"email"`
	Code      string `json:"code"`
	IPAddress string `json:"-"`
}
