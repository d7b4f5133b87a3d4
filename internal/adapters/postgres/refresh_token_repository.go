package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/securevault/securevault/internal/domain"
)

type refreshTokenRepository struct {
	db *gorm.DB
}

func (r *refreshTokenRepository) Create(ctx context.Context, userID uuid.UUID, token string, issuedAt, expiresAt time.Time) (domain.RefreshToken, error) {
	rec := refreshTokenModel{
		Token:     token,
		UserID:    userID,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return domain.RefreshToken{}, err
	}
	return toDomainRefreshToken(rec), nil
}

func (r *refreshTokenRepository) GetByToken(ctx context.Context, token string) (domain.RefreshToken, error) {
	var rec refreshTokenModel
	if err := r.db.WithContext(ctx).Where("token = ?", token).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.RefreshToken{}, domain.ErrNotFound
		}
		return domain.RefreshToken{}, err
	}
	return toDomainRefreshToken(rec), nil
}

// Revoke is the single-use linearization point of rotation. The conditional
// update commits revoked=true only for a currently-active row; under two
// concurrent rotations of the same token exactly one caller sees
// RowsAffected==1 and the other gets domain.ErrTokenRevoked.
func (r *refreshTokenRepository) Revoke(ctx context.Context, token string) error {
	res := r.db.WithContext(ctx).
		Model(&refreshTokenModel{}).
		Where("token = ?", token).
		Where("revoked = ?", false).
		Update("revoked", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var exists int64
		if err := r.db.WithContext(ctx).Model(&refreshTokenModel{}).Where("token = ?", token).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return domain.ErrInvalidToken
		}
		return domain.ErrTokenRevoked
	}
	return nil
}

func (r *refreshTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at < ?", before).
		Delete(&refreshTokenModel{})
	return res.RowsAffected, res.Error
}
