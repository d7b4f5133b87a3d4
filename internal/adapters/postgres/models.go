package postgres

import (
	"time"

	"github.com/google/uuid"
)

type userModel struct {
	UserID       uuid.UUID `gorm:"column:user_id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email        string    `gorm:"column:email"`
	PasswordHash string    `gorm:"column:password_hash"`
	FirstName    string    `gorm:"column:first_name"`
	LastName     string    `gorm:"column:last_name"`
	Role         string    `gorm:"column:role"`
	TOTPSecret   *string   `gorm:"column:totp_secret"`
	TOTPEnabled  bool      `gorm:"column:totp_enabled"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (userModel) TableName() string { return "users" }

type refreshTokenModel struct {
	TokenID   uuid.UUID `gorm:"column:token_id;type:uuid;default:gen_random_uuid();primaryKey"`
	Token     string    `gorm:"column:token"`
	UserID    uuid.UUID `gorm:"column:user_id"`
	IssuedAt  time.Time `gorm:"column:issued_at"`
	ExpiresAt time.Time `gorm:"column:expires_at"`
	Revoked   bool      `gorm:"column:revoked"`
}

func (refreshTokenModel) TableName() string { return "refresh_tokens" }
