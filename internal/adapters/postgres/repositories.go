package postgres

import (
	"gorm.io/gorm"

	"github.com/securevault/securevault/internal/ports"
)

// Repositories bundles all Postgres-backed adapters behind their ports.
type Repositories struct {
	Users         ports.UserRepository
	RefreshTokens ports.RefreshTokenRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Users:         &userRepository{db: db},
		RefreshTokens: &refreshTokenRepository{db: db},
	}
}
