// Package domain defines the persistence models for accounts, profiles,
// conversations, messages, and subscriptions. These types are mapped with
// GORM and form the core data layer of the tributarIA backend.
package domain

import (
	"time"
)

// Message roles. The store rejects anything else.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// User is an authenticated account. PasswordHash holds a bcrypt digest and
// is never serialized.
type User struct {
	ID           string    `json:"id"         gorm:"type:char(36);primaryKey"`
	Email        string    `json:"email"      gorm:"type:varchar(255);not null;uniqueIndex:ux_users_email"`
	PasswordHash string    `json:"-"          gorm:"type:varchar(255);not null"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Profile holds the display data of a user. Its ID equals the owning
// User.ID; a profile is created at sign-up and never hard-deleted.
type Profile struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	FullName  string    `json:"full_name"  gorm:"type:varchar(255)"`
	Phone     string    `json:"phone"      gorm:"type:varchar(32)"`
	Email     string    `json:"email"      gorm:"type:varchar(255)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Profile.
func (Profile) TableName() string { return "profiles" }

// Chat represents a conversation owned by a single user.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - UserID: identifier of the owner; indexed for listing.
//   - Title: human-readable title (timestamped placeholder if not provided).
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type Chat struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"user_id"    gorm:"type:char(36);not null;index:idx_user_chats"`
	Title     string    `json:"title"      gorm:"type:varchar(255);not null;default:'Nova conversa'"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_user_chats_created"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Chat.
func (Chat) TableName() string { return "chats" }

// Message is one entry of a conversation transcript. Messages are
// append-only: once stored they are never edited or removed.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - ChatID: owning conversation (indexed together with CreatedAt).
//   - Role: "user" or "assistant" (enforced by DB constraint).
//   - Content: message text, stored in the "message" column.
//   - CreatedAt: insertion time; transcripts are ordered by (CreatedAt, ID).
type Message struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	ChatID    string    `json:"chat_id"    gorm:"type:char(36);not null;index:idx_chat_msgs,priority:1"`
	Role      string    `json:"role"       gorm:"type:varchar(16);not null;check:role IN ('user','assistant')"`
	Content   string    `json:"message"    gorm:"column:message;type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_chat_msgs,priority:2"`

	Chat Chat `json:"-" gorm:"foreignKey:ChatID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "chat_histories" }

// SubscriptionPlan is a purchasable tier shown on the plans page.
type SubscriptionPlan struct {
	ID          string   `json:"id"          gorm:"type:char(36);primaryKey"`
	Name        string   `json:"name"        gorm:"type:varchar(64);not null;uniqueIndex"`
	Price       float64  `json:"price"       gorm:"not null;index"`
	Description string   `json:"description" gorm:"type:text"`
	Features    []string `json:"features"    gorm:"type:text;serializer:json"`
}

// TableName returns the database table name for SubscriptionPlan.
func (SubscriptionPlan) TableName() string { return "subscription_plans" }

// Subscription statuses.
const (
	SubscriptionActive   = "active"
	SubscriptionCanceled = "canceled"
)

// Subscription links a user to a plan. Only records with status "active"
// count as the user's current subscription.
type Subscription struct {
	ID        string     `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string     `json:"user_id"    gorm:"type:char(36);not null;index"`
	PlanID    string     `json:"plan_id"    gorm:"type:char(36);not null"`
	Status    string     `json:"status"     gorm:"type:varchar(16);not null;index"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	Plan SubscriptionPlan `json:"plan" gorm:"foreignKey:PlanID;references:ID"`
}

// TableName returns the database table name for Subscription.
func (Subscription) TableName() string { return "subscriptions" }

// RevokedToken records a signed-out session token until it would have
// expired anyway.
type RevokedToken struct {
	JTI       string    `gorm:"column:jti;type:char(36);primaryKey"`
	UserID    string    `gorm:"type:char(36);not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
	CreatedAt time.Time
}

// TableName returns the database table name for RevokedToken.
func (RevokedToken) TableName() string { return "revoked_tokens" }
