package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/tributaria/internal/domain"
)

func TestCreateMessage_Inserts(t *testing.T) {
	db := newTestDB(t, &domain.Chat{}, &domain.Message{})
	ctx := context.Background()
	if err := db.Create(&domain.Chat{ID: "c1", UserID: "u1", Title: "t"}).Error; err != nil {
		t.Fatalf("seed chat: %v", err)
	}

	msg, err := CreateMessage(ctx, db, "c1", domain.RoleAssistant, "## Resposta")
	if err != nil {
		t.Fatalf("CreateMessage error: %v", err)
	}
	if msg.ID == "" || msg.ChatID != "c1" || msg.Role != domain.RoleAssistant || msg.Content != "## Resposta" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if msg.CreatedAt.IsZero() || time.Since(msg.CreatedAt) > time.Minute {
		t.Fatalf("CreatedAt not set reasonably: %v", msg.CreatedAt)
	}

	got, err := GetMessage(ctx, db, msg.ID)
	if err != nil || got.Content != msg.Content {
		t.Fatalf("GetMessage = %+v, %v", got, err)
	}
}

func TestCreateMessage_RejectsUnknownRole(t *testing.T) {
	db := newTestDB(t, &domain.Chat{}, &domain.Message{})
	if _, err := CreateMessage(context.Background(), db, "c1", "system", "x"); err == nil {
		t.Fatalf("expected check constraint failure for role=system")
	}
}

func TestListMessages_OrderAndLimit(t *testing.T) {
	db := newTestDB(t, &domain.Chat{}, &domain.Message{})
	ctx := context.Background()

	// same CreatedAt for first two; ID "a" must come before "b"
	t0 := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	t1 := t0.Add(1 * time.Second)
	for _, m := range []domain.Message{
		{ID: "b", ChatID: "c2", Role: domain.RoleUser, Content: "y", CreatedAt: t0}, // out of order on purpose
		{ID: "a", ChatID: "c2", Role: domain.RoleUser, Content: "x", CreatedAt: t0},
		{ID: "z", ChatID: "c2", Role: domain.RoleAssistant, Content: "z", CreatedAt: t1},
	} {
		if err := db.Create(&m).Error; err != nil {
			t.Fatalf("seed %s: %v", m.ID, err)
		}
	}

	all, err := ListMessages(ctx, db, "c2", 0)
	if err != nil {
		t.Fatalf("ListMessages(all) error: %v", err)
	}
	if len(all) != 3 || all[0].ID != "a" || all[1].ID != "b" || all[2].ID != "z" {
		t.Fatalf("unexpected order/all: %+v", all)
	}
	for i := 1; i < len(all); i++ {
		if all[i].CreatedAt.Before(all[i-1].CreatedAt) {
			t.Fatalf("created_at decreased at %d", i)
		}
	}

	top2, err := ListMessages(ctx, db, "c2", 2)
	if err != nil || len(top2) != 2 || top2[0].ID != "a" || top2[1].ID != "b" {
		t.Fatalf("unexpected order/limit: %+v err=%v", top2, err)
	}
}

func TestCountMessages(t *testing.T) {
	if _, err := CountMessages(context.Background(), newTestDB(t), "cx"); err == nil {
		t.Fatalf("expected error due to missing chat_histories table")
	}

	db := newTestDB(t, &domain.Chat{}, &domain.Message{})
	for _, m := range []domain.Message{
		{ID: "m1", ChatID: "cx", Role: domain.RoleUser, Content: "1"},
		{ID: "m2", ChatID: "cx", Role: domain.RoleAssistant, Content: "2"},
		{ID: "m3", ChatID: "cy", Role: domain.RoleUser, Content: "3"},
	} {
		if err := db.Create(&m).Error; err != nil {
			t.Fatalf("seed %s: %v", m.ID, err)
		}
	}
	total, err := CountMessages(context.Background(), db, "cx")
	if err != nil || total != 2 {
		t.Fatalf("CountMessages = %d, %v; want 2", total, err)
	}
}

func TestListMessagesPage_Pagination(t *testing.T) {
	db := newTestDB(t, &domain.Chat{}, &domain.Message{})

	base := time.Date(2025, 7, 1, 11, 0, 0, 0, time.UTC)
	for i := 1; i <= 5; i++ {
		m := domain.Message{
			ID:        string(rune('a' + i - 1)),
			ChatID:    "c3",
			Role:      domain.RoleUser,
			Content:   "x",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := db.Create(&m).Error; err != nil {
			t.Fatalf("seed m%d: %v", i, err)
		}
	}

	out, err := ListMessagesPage(context.Background(), db, "c3", 1, 2)
	if err != nil {
		t.Fatalf("ListMessagesPage error: %v", err)
	}
	if len(out) != 2 || out[0].ID != "b" || out[1].ID != "c" {
		t.Fatalf("unexpected page slice: %+v", out)
	}
}

func TestGetMessage_NotFound(t *testing.T) {
	db := newTestDB(t, &domain.Chat{}, &domain.Message{})
	if _, err := GetMessage(context.Background(), db, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMessagesStats(t *testing.T) {
	if _, _, err := MessagesStats(context.Background(), newTestDB(t), "c1"); err == nil {
		t.Fatalf("expected error due to missing table")
	}

	db := newTestDB(t, &domain.Chat{}, &domain.Message{})
	count, maxAt, err := MessagesStats(context.Background(), db, "cX")
	if err != nil || count != 0 || maxAt != nil {
		t.Fatalf("expected (0, nil, nil), got (%d, %v, %v)", count, maxAt, err)
	}

	t1 := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	t2 := time.Date(2025, 4, 1, 12, 5, 0, 0, time.UTC) // max for cX
	t3 := time.Date(2025, 4, 2, 8, 0, 0, 0, time.UTC)  // other chat
	for _, m := range []domain.Message{
		{ID: "m1", ChatID: "cX", Role: domain.RoleUser, Content: "hi", CreatedAt: t1},
		{ID: "m2", ChatID: "cX", Role: domain.RoleAssistant, Content: "hey", CreatedAt: t2},
		{ID: "m3", ChatID: "cY", Role: domain.RoleUser, Content: "yo", CreatedAt: t3},
	} {
		if err := db.Create(&m).Error; err != nil {
			t.Fatalf("seed %s: %v", m.ID, err)
		}
	}
	count, maxAt, err = MessagesStats(context.Background(), db, "cX")
	if err != nil || count != 2 || maxAt == nil || !maxAt.Equal(t2) {
		t.Fatalf("MessagesStats = (%d, %v, %v); want (2, %v)", count, maxAt, err, t2)
	}
}

func TestChatsStats(t *testing.T) {
	if _, _, err := ChatsStats(context.Background(), newTestDB(t), "u1"); err == nil {
		t.Fatalf("expected error due to missing table")
	}

	db := newTestDB(t, &domain.Chat{})
	t1 := time.Date(2025, 1, 2, 15, 0, 0, 0, time.UTC)
	t2 := time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC) // max for u1
	t3 := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	for _, c := range []domain.Chat{
		{ID: "c1", UserID: "u1", Title: "a", CreatedAt: t1, UpdatedAt: t1},
		{ID: "c2", UserID: "u1", Title: "b", CreatedAt: t2, UpdatedAt: t2},
		{ID: "c3", UserID: "u2", Title: "x", CreatedAt: t3, UpdatedAt: t3},
	} {
		if err := db.Create(&c).Error; err != nil {
			t.Fatalf("seed %s: %v", c.ID, err)
		}
	}
	count, maxAt, err := ChatsStats(context.Background(), db, "u1")
	if err != nil || count != 2 || maxAt == nil || !maxAt.Equal(t2) {
		t.Fatalf("ChatsStats = (%d, %v, %v); want (2, %v)", count, maxAt, err, t2)
	}
}
