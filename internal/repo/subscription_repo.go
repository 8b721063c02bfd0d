package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/tributaria/internal/domain"
)

// ListPlans returns every subscription plan, cheapest first.
func ListPlans(ctx context.Context, db *gorm.DB) ([]domain.SubscriptionPlan, error) {
	var out []domain.SubscriptionPlan
	err := db.WithContext(ctx).Order("price asc, name asc").Find(&out).Error
	return out, err
}

// SeedPlans inserts the given plans, skipping names that already exist.
// Missing IDs are generated.
func SeedPlans(ctx context.Context, db *gorm.DB, plans []domain.SubscriptionPlan) error {
	if len(plans) == 0 {
		return nil
	}
	rows := make([]domain.SubscriptionPlan, len(plans))
	copy(rows, plans)
	for i := range rows {
		if rows[i].ID == "" {
			rows[i].ID = uuid.NewString()
		}
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&rows).Error
}

// CurrentSubscription returns the newest active subscription of userID with
// its plan preloaded, or ErrNotFound.
func CurrentSubscription(ctx context.Context, db *gorm.DB, userID string) (*domain.Subscription, error) {
	var s domain.Subscription
	err := db.WithContext(ctx).
		Preload("Plan").
		Where("user_id = ? AND status = ?", userID, domain.SubscriptionActive).
		Order("created_at desc").
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateSubscription records a subscription of userID to planID.
func CreateSubscription(ctx context.Context, db *gorm.DB, userID, planID, status string) (*domain.Subscription, error) {
	s := &domain.Subscription{
		ID:     uuid.NewString(),
		UserID: userID,
		PlanID: planID,
		Status: status,
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}
