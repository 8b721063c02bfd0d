package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/tributaria/internal/domain"
)

// RevokeToken blacklists a token ID until expiresAt. Revoking the same ID
// twice is a no-op.
func RevokeToken(ctx context.Context, db *gorm.DB, jti, userID string, expiresAt time.Time) error {
	rec := &domain.RevokedToken{
		JTI:       jti,
		UserID:    userID,
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: time.Now().UTC(),
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(rec).Error
}

// IsTokenRevoked reports whether jti was revoked.
func IsTokenRevoked(ctx context.Context, db *gorm.DB, jti string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.RevokedToken{}).Where("jti = ?", jti).Count(&n).Error
	return n > 0, err
}

// PurgeRevokedTokens removes blacklist entries for tokens that expired
// before now; they would be rejected on expiry alone.
func PurgeRevokedTokens(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now.UTC()).Delete(&domain.RevokedToken{})
	return res.RowsAffected, res.Error
}
