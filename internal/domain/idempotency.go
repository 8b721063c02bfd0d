package domain

import "time"

// Idempotency represents a recorded result of a previously processed message
// append, keyed by (user_id, chat_id, key). It enables safe retries by
// returning the originally stored message without appending a duplicate.
type Idempotency struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	UserID    string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_user_chat_key,priority:1"`
	ChatID    string    `gorm:"type:char(36);not null;uniqueIndex:ux_user_chat_key,priority:2"`
	Key       string    `gorm:"type:varchar(128);not null;uniqueIndex:ux_user_chat_key,priority:3"`
	MessageID string    `gorm:"type:char(36);not null"`
	Status    int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
