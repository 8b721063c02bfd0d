package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/tributaria/internal/domain"
)

// CreateProfile inserts the profile row for a freshly registered user.
func CreateProfile(ctx context.Context, db *gorm.DB, userID, fullName, phone, email string) (*domain.Profile, error) {
	now := time.Now().UTC()
	p := &domain.Profile{
		ID:        userID,
		FullName:  fullName,
		Phone:     phone,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// UpsertProfile creates the profile or overwrites name, phone and email of
// an existing one. Used by the repair tooling for users whose profile row
// went missing.
func UpsertProfile(ctx context.Context, db *gorm.DB, userID, fullName, phone, email string) (*domain.Profile, error) {
	now := time.Now().UTC()
	p := &domain.Profile{
		ID:        userID,
		FullName:  fullName,
		Phone:     phone,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"full_name", "phone", "email", "updated_at"}),
	}).Create(p).Error
	if err != nil {
		return nil, err
	}
	return GetProfile(ctx, db, userID)
}

// GetProfile returns the profile for userID or ErrNotFound.
func GetProfile(ctx context.Context, db *gorm.DB, userID string) (*domain.Profile, error) {
	var p domain.Profile
	if err := db.WithContext(ctx).Where("id = ?", userID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProfile applies the non-nil fields. ErrNotFound if no row matched.
func UpdateProfile(ctx context.Context, db *gorm.DB, userID string, fullName, phone *string) error {
	fields := map[string]any{"updated_at": time.Now().UTC()}
	if fullName != nil {
		fields["full_name"] = *fullName
	}
	if phone != nil {
		fields["phone"] = *phone
	}
	res := db.WithContext(ctx).Model(&domain.Profile{}).Where("id = ?", userID).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListProfiles returns profiles ordered by most recently updated.
func ListProfiles(ctx context.Context, db *gorm.DB, limit int) ([]domain.Profile, error) {
	var out []domain.Profile
	q := db.WithContext(ctx).Order("updated_at desc, id asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}
