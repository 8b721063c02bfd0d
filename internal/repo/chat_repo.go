// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Chat model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only
// persistence and query composition. Ownership rules live in the services
// package.
//
// Error semantics:
//   - When a chat is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Usage:
//
//	chat, err := repo.CreateChat(ctx, db, userID, "Nova conversa")
//	if errors.Is(err, repo.ErrNotFound) {
//	    // handle missing
//	} else if err != nil {
//	    // handle DB failure
//	}
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/tributaria/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateChat inserts a new Chat row owned by userID with the given title.
// The chat ID is a randomly generated UUID and CreatedAt is set to UTC now.
func CreateChat(ctx context.Context, db *gorm.DB, userID, title string) (*domain.Chat, error) {
	now := time.Now().UTC()
	c := &domain.Chat{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// ListChats returns all chats belonging to userID, most recent first.
// It returns an empty slice if the user has no chats.
func ListChats(ctx context.Context, db *gorm.DB, userID string) ([]domain.Chat, error) {
	var out []domain.Chat
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc, id desc").
		Find(&out).Error
	return out, err
}

// CountChats returns the total number of chats owned by userID.
func CountChats(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Chat{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListChatsPage returns a paginated slice of chats for userID, ordered by
// creation time descending. The caller computes offset and limit.
func ListChatsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Chat, error) {
	var out []domain.Chat
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc, id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GetChat fetches a single chat by its ID and owner. A chat owned by someone
// else is reported as ErrNotFound; use FindChat to tell the two apart.
func GetChat(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Chat, error) {
	var c domain.Chat
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// FindChat fetches a chat by ID regardless of owner.
func FindChat(ctx context.Context, db *gorm.DB, id string) (*domain.Chat, error) {
	var c domain.Chat
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateChatTitle updates the title of a chat owned by userID. If no rows are
// affected (chat missing or not owned by userID), it returns ErrNotFound.
func UpdateChatTitle(ctx context.Context, db *gorm.DB, id, userID, title string) error {
	res := db.WithContext(ctx).
		Model(&domain.Chat{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{"title": title, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ChatStore exposes the chat functions as a method set, satisfying
// services.ChatRepo.
type ChatStore struct{}

func (ChatStore) CreateChat(ctx context.Context, db *gorm.DB, userID, title string) (*domain.Chat, error) {
	return CreateChat(ctx, db, userID, title)
}

func (ChatStore) ListChats(ctx context.Context, db *gorm.DB, userID string) ([]domain.Chat, error) {
	return ListChats(ctx, db, userID)
}

func (ChatStore) FindChat(ctx context.Context, db *gorm.DB, id string) (*domain.Chat, error) {
	return FindChat(ctx, db, id)
}

func (ChatStore) UpdateChatTitle(ctx context.Context, db *gorm.DB, id, userID, title string) error {
	return UpdateChatTitle(ctx, db, id, userID, title)
}

func (ChatStore) CountChats(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	return CountChats(ctx, db, userID)
}

func (ChatStore) ListChatsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Chat, error) {
	return ListChatsPage(ctx, db, userID, offset, limit)
}
