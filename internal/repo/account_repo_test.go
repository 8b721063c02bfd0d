package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/tributaria/internal/domain"
)

func TestCreateUser_DuplicateEmail(t *testing.T) {
	db := newTestDB(t, &domain.User{})
	ctx := context.Background()

	u, err := CreateUser(ctx, db, "ana@exemplo.com.br", "hash")
	if err != nil || u.ID == "" {
		t.Fatalf("CreateUser = %+v, %v", u, err)
	}
	if _, err := CreateUser(ctx, db, "ana@exemplo.com.br", "hash2"); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	taken, err := EmailTaken(ctx, db, "ana@exemplo.com.br")
	if err != nil || !taken {
		t.Fatalf("EmailTaken = %v, %v", taken, err)
	}
	taken, err = EmailTaken(ctx, db, "bia@exemplo.com.br")
	if err != nil || taken {
		t.Fatalf("EmailTaken(free) = %v, %v", taken, err)
	}

	byID, err := GetUser(ctx, db, u.ID)
	if err != nil || byID.Email != u.Email {
		t.Fatalf("GetUser = %+v, %v", byID, err)
	}
	if _, err := GetUserByEmail(ctx, db, "missing@x.io"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestProfile_CreateGetUpdateUpsertList(t *testing.T) {
	db := newTestDB(t, &domain.Profile{})
	ctx := context.Background()

	p, err := CreateProfile(ctx, db, "u1", "Ana Souza", "", "ana@x.io")
	if err != nil || p.ID != "u1" {
		t.Fatalf("CreateProfile = %+v, %v", p, err)
	}

	phone := "(11) 91234-5678"
	if err := UpdateProfile(ctx, db, "u1", nil, &phone); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	got, err := GetProfile(ctx, db, "u1")
	if err != nil || got.Phone != phone || got.FullName != "Ana Souza" {
		t.Fatalf("GetProfile after update = %+v, %v", got, err)
	}

	if err := UpdateProfile(ctx, db, "ghost", nil, &phone); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing profile, got %v", err)
	}

	up, err := UpsertProfile(ctx, db, "u1", "Ana S.", phone, "ana@x.io")
	if err != nil || up.FullName != "Ana S." {
		t.Fatalf("UpsertProfile(existing) = %+v, %v", up, err)
	}
	if _, err := UpsertProfile(ctx, db, "u2", "Bia Lima", "", "bia@x.io"); err != nil {
		t.Fatalf("UpsertProfile(new): %v", err)
	}

	list, err := ListProfiles(ctx, db, 10)
	if err != nil || len(list) != 2 {
		t.Fatalf("ListProfiles = %d rows, %v", len(list), err)
	}
}

func TestRevokedTokens(t *testing.T) {
	db := newTestDB(t, &domain.RevokedToken{})
	ctx := context.Background()
	now := time.Now().UTC()

	if err := RevokeToken(ctx, db, "j1", "u1", now.Add(time.Hour)); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}
	// idempotent
	if err := RevokeToken(ctx, db, "j1", "u1", now.Add(time.Hour)); err != nil {
		t.Fatalf("RevokeToken twice: %v", err)
	}
	if err := RevokeToken(ctx, db, "j0", "u1", now.Add(-time.Hour)); err != nil {
		t.Fatalf("RevokeToken expired: %v", err)
	}

	revoked, err := IsTokenRevoked(ctx, db, "j1")
	if err != nil || !revoked {
		t.Fatalf("IsTokenRevoked(j1) = %v, %v", revoked, err)
	}
	revoked, err = IsTokenRevoked(ctx, db, "j2")
	if err != nil || revoked {
		t.Fatalf("IsTokenRevoked(j2) = %v, %v", revoked, err)
	}

	n, err := PurgeRevokedTokens(ctx, db, now)
	if err != nil || n != 1 {
		t.Fatalf("PurgeRevokedTokens = %d, %v; want 1", n, err)
	}
}

func TestPlansAndSubscriptions(t *testing.T) {
	db := newTestDB(t, &domain.SubscriptionPlan{}, &domain.Subscription{})
	ctx := context.Background()

	plans := []domain.SubscriptionPlan{
		{Name: "Premium", Price: 97, Features: []string{"Tudo do plano básico"}},
		{Name: "Básico", Price: 47, Features: []string{"Perguntas ilimitadas"}},
	}
	if err := SeedPlans(ctx, db, plans); err != nil {
		t.Fatalf("SeedPlans: %v", err)
	}
	// second seed is a no-op
	if err := SeedPlans(ctx, db, plans); err != nil {
		t.Fatalf("SeedPlans again: %v", err)
	}

	got, err := ListPlans(ctx, db)
	if err != nil || len(got) != 2 {
		t.Fatalf("ListPlans = %+v, %v", got, err)
	}
	if got[0].Name != "Básico" || got[1].Name != "Premium" {
		t.Fatalf("plans not ordered by price: %+v", got)
	}

	if _, err := CurrentSubscription(ctx, db, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound without subscription, got %v", err)
	}

	if _, err := CreateSubscription(ctx, db, "u1", got[0].ID, domain.SubscriptionCanceled); err != nil {
		t.Fatalf("CreateSubscription canceled: %v", err)
	}
	if _, err := CreateSubscription(ctx, db, "u1", got[1].ID, domain.SubscriptionActive); err != nil {
		t.Fatalf("CreateSubscription active: %v", err)
	}
	sub, err := CurrentSubscription(ctx, db, "u1")
	if err != nil || sub.Plan.Name != "Premium" {
		t.Fatalf("CurrentSubscription = %+v, %v", sub, err)
	}
}
