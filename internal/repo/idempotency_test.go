package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/tributaria/internal/domain"
)

func TestGetIdempotency_NoChatID_ReturnsNotFound(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	rec, err := GetIdempotency(context.Background(), db, "u1", "   ", "k1", time.Now().UTC())
	if rec != nil || !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected (nil, ErrNotFound) for empty chatID, got (%v, %v)", rec, err)
	}
}

func TestGetIdempotency_ExpiredOrMissing_ReturnsNotFound(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	now := time.Now().UTC()

	exp := &domain.Idempotency{
		ID: "expired", UserID: "u1", ChatID: "c1", Key: "k1", MessageID: "m0", Status: 200,
		CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
	}
	if err := db.Create(exp).Error; err != nil {
		t.Fatalf("seed expired: %v", err)
	}

	if rec, err := GetIdempotency(context.Background(), db, "u1", "c1", "k1", now); rec != nil || !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected (nil, ErrNotFound) for expired, got (%v, %v)", rec, err)
	}
	if rec, err := GetIdempotency(context.Background(), db, "u1", "c1", "missing", now); rec != nil || !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected (nil, ErrNotFound) for missing, got (%v, %v)", rec, err)
	}
}

func TestCreateIdempotency_SuccessDuplicateAndGet(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	ctx := context.Background()
	ttl := 90 * time.Minute
	start := time.Now().UTC()

	rec, err := CreateIdempotency(ctx, db, "u9", "c9", "k9", "m9", 201, ttl)
	if err != nil {
		t.Fatalf("CreateIdempotency error: %v", err)
	}
	if rec.ID == "" || rec.MessageID != "m9" || rec.Status != 201 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if !(rec.ExpiresAt.After(start) && rec.ExpiresAt.Before(start.Add(2*time.Hour))) {
		t.Fatalf("unexpected ExpiresAt: %v", rec.ExpiresAt)
	}

	if _, err := CreateIdempotency(ctx, db, "u9", "c9", "k9", "mX", 201, ttl); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	got, err := GetIdempotency(ctx, db, "u9", "c9", "k9", time.Now().UTC())
	if err != nil || got.MessageID != "m9" {
		t.Fatalf("GetIdempotency = %+v, %v", got, err)
	}
}

func TestCreateIdempotency_Error_NoTable(t *testing.T) {
	db := newTestDB(t)
	_, err := CreateIdempotency(context.Background(), db, "uX", "cX", "kX", "mX", 200, time.Minute)
	if err == nil || errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected non-duplicate error, got %v", err)
	}
}

func TestPurgeExpiredIdempotency(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	now := time.Now().UTC()
	for i, exp := range []time.Time{now.Add(-time.Minute), now.Add(time.Hour)} {
		rec := &domain.Idempotency{ID: string(rune('a' + i)), UserID: "u", ChatID: "c", Key: string(rune('a' + i)), MessageID: "m", Status: 201, ExpiresAt: exp}
		if err := db.Create(rec).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	n, err := PurgeExpiredIdempotency(context.Background(), db, now)
	if err != nil || n != 1 {
		t.Fatalf("PurgeExpiredIdempotency = %d, %v; want 1", n, err)
	}
}
