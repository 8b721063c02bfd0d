package domain

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:domain_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Enforce FKs so cascades actually execute.
	db.Exec("PRAGMA foreign_keys=ON;")
	return db
}

func TestTableNames(t *testing.T) {
	cases := map[string]interface{ TableName() string }{
		"users":              User{},
		"profiles":           Profile{},
		"chats":              Chat{},
		"chat_histories":     Message{},
		"subscription_plans": SubscriptionPlan{},
		"subscriptions":      Subscription{},
		"revoked_tokens":     RevokedToken{},
		"idempotency":        Idempotency{},
	}
	for want, m := range cases {
		if got := m.TableName(); got != want {
			t.Fatalf("%T.TableName() = %q; want %q", m, got, want)
		}
	}
}

func TestMigrations_Indexes_AndCascades(t *testing.T) {
	db := newDomainDB(t)

	if err := db.AutoMigrate(&User{}, &Profile{}, &Chat{}, &Message{}, &SubscriptionPlan{}, &Subscription{}, &RevokedToken{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()

	if !m.HasIndex(&Chat{}, "idx_user_chats") {
		t.Fatalf("expected index idx_user_chats on chats")
	}
	if !m.HasIndex(&Message{}, "idx_chat_msgs") {
		t.Fatalf("expected index idx_chat_msgs on chat_histories")
	}
	if !m.HasColumn(&Message{}, "message") {
		t.Fatalf("expected message text in column \"message\"")
	}

	now := time.Now().UTC()
	if err := db.Create(&Chat{ID: "c1", UserID: "u1", Title: "T", CreatedAt: now, UpdatedAt: now}).Error; err != nil {
		t.Fatalf("insert chat: %v", err)
	}
	if err := db.Create(&Message{ID: "m1", ChatID: "c1", Role: RoleUser, Content: "olá", CreatedAt: now}).Error; err != nil {
		t.Fatalf("insert m1: %v", err)
	}

	// role check constraint
	bad := &Message{ID: "m2", ChatID: "c1", Role: "system", Content: "x", CreatedAt: now}
	if err := db.Create(bad).Error; err == nil {
		t.Fatalf("expected role check constraint to reject %q", bad.Role)
	}

	// CASCADE: deleting the chat removes its messages
	if err := db.Delete(&Chat{}, "id = ?", "c1").Error; err != nil {
		t.Fatalf("delete chat: %v", err)
	}
	var cnt int64
	if err := db.Model(&Message{}).Where("chat_id = ?", "c1").Count(&cnt).Error; err != nil {
		t.Fatalf("count messages after chat delete: %v", err)
	}
	if cnt != 0 {
		t.Fatalf("expected messages to cascade-delete when chat deleted, got count=%d", cnt)
	}
}

func TestUser_EmailUnique(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&User{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	if err := db.Create(&User{ID: "u1", Email: "a@b.co", PasswordHash: "h"}).Error; err != nil {
		t.Fatalf("insert u1: %v", err)
	}
	if err := db.Create(&User{ID: "u2", Email: "a@b.co", PasswordHash: "h"}).Error; err == nil {
		t.Fatalf("expected unique violation on duplicate email")
	}
}

func TestSubscriptionPlan_FeaturesRoundTripJSON(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&SubscriptionPlan{}, &Subscription{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	plan := &SubscriptionPlan{ID: "p1", Name: "Básico", Price: 47, Features: []string{"a", "b"}}
	if err := db.Create(plan).Error; err != nil {
		t.Fatalf("insert plan: %v", err)
	}
	sub := &Subscription{ID: "s1", UserID: "u1", PlanID: "p1", Status: SubscriptionActive}
	if err := db.Create(sub).Error; err != nil {
		t.Fatalf("insert subscription: %v", err)
	}

	var got Subscription
	if err := db.Preload("Plan").First(&got, "id = ?", "s1").Error; err != nil {
		t.Fatalf("load subscription: %v", err)
	}
	if got.Plan.Name != "Básico" || len(got.Plan.Features) != 2 || got.Plan.Features[1] != "b" {
		t.Fatalf("unexpected plan: %+v", got.Plan)
	}
}
