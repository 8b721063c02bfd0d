package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/tributaria/internal/domain"
)

// ChatsStats returns aggregate metadata for a user's chats: the total number of
// rows and the maximum UpdatedAt timestamp among those rows. Used for ETags.
//
// When the user has no chats, the returned count is 0 and maxUpdatedAt is nil.
func ChatsStats(ctx context.Context, db *gorm.DB, userID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Chat{}).Where("user_id = ?", userID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// MessagesStats returns the number of messages in chatID and the newest
// CreatedAt. Messages are append-only, so the pair changes on every write.
func MessagesStats(ctx context.Context, db *gorm.DB, chatID string) (count int64, maxCreatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Message{}).Where("chat_id = ?", chatID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	var row struct {
		CreatedAt time.Time
	}
	if err = q.Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}

// TableCount is one row of the inspection report.
type TableCount struct {
	Table string
	Rows  int64
	Err   error
}

// TableCounts reports row counts for every table the service owns. A table
// that cannot be read is reported with Err set instead of failing the whole
// report.
func TableCounts(ctx context.Context, db *gorm.DB) []TableCount {
	models := []interface{ TableName() string }{
		domain.User{}, domain.Profile{}, domain.Chat{}, domain.Message{},
		domain.SubscriptionPlan{}, domain.Subscription{}, domain.RevokedToken{},
		domain.Idempotency{},
	}
	out := make([]TableCount, 0, len(models))
	for _, m := range models {
		tc := TableCount{Table: m.TableName()}
		tc.Err = db.WithContext(ctx).Table(tc.Table).Count(&tc.Rows).Error
		out = append(out, tc)
	}
	return out
}
