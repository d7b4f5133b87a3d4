package postgres

import (
	"errors"

	"gorm.io/gorm"

	"github.com/securevault/securevault/internal/domain"
)

func toDomainUser(rec userModel) domain.User {
	return domain.User{
		UserID:       rec.UserID,
		Email:        rec.Email,
		PasswordHash: rec.PasswordHash,
		FirstName:    rec.FirstName,
		LastName:     rec.LastName,
		Role:         domain.Role(rec.Role),
		TOTPSecret:   rec.TOTPSecret,
		TOTPEnabled:  rec.TOTPEnabled,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}
}

func toDomainRefreshToken(rec refreshTokenModel) domain.RefreshToken {
	return domain.RefreshToken{
		TokenID:   rec.TokenID,
		Token:     rec.Token,
		UserID:    rec.UserID,
		IssuedAt:  rec.IssuedAt,
		ExpiresAt: rec.ExpiresAt,
		Revoked:   rec.Revoked,
	}
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
