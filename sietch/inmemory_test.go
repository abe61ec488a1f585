package sietch

import (
	"context"
	"errors"
	"testing"
	"time"
)

type session struct {
	Token string `json:"token"`
	Email string `json:"email"`
}

func sessionID(s *session) string { return s.Token }

func TestInMemoryConnector_CreateGet(t *testing.T) {
	repo := NewInMemoryConnector[session](sessionID)
	ctx := context.Background()

	tests := []struct {
		name    string
		item    *session
		wantErr error
	}{
		{"create a valid session", &session{Token: "a", Email: "a@example.com"}, nil},
		{"create duplicated session", &session{Token: "a", Email: "b@example.com"}, ErrItemExists},
		{"create nil", nil, ErrNilItem},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := repo.Create(ctx, tc.item)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got: %v", tc.wantErr, err)
			}
		})
	}

	got, err := repo.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Email != "a@example.com" {
		t.Errorf("expected a@example.com, got %s", got.Email)
	}

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound, got: %v", err)
	}
}

func TestInMemoryConnector_StoresCopies(t *testing.T) {
	repo := NewInMemoryConnector[session](sessionID)
	ctx := context.Background()

	item := &session{Token: "a", Email: "before"}
	if err := repo.Upsert(ctx, item); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	item.Email = "mutated"

	got, _ := repo.Get(ctx, "a")
	if got.Email != "before" {
		t.Errorf("stored item changed through caller pointer: %s", got.Email)
	}
	got.Email = "mutated again"

	again, _ := repo.Get(ctx, "a")
	if again.Email != "before" {
		t.Errorf("stored item changed through returned pointer: %s", again.Email)
	}
}

func TestInMemoryConnector_UpsertDeleteExists(t *testing.T) {
	repo := NewInMemoryConnector[session](sessionID)
	ctx := context.Background()

	if err := repo.Upsert(ctx, &session{Token: "a", Email: "1"}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := repo.Upsert(ctx, &session{Token: "a", Email: "2"}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	got, _ := repo.Get(ctx, "a")
	if got.Email != "2" {
		t.Errorf("expected 2, got %s", got.Email)
	}

	ok, _ := repo.Exists(ctx, "a")
	if !ok {
		t.Error("expected a to exist")
	}

	if err := repo.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := repo.Delete(ctx, "a"); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound, got: %v", err)
	}
	ok, _ = repo.Exists(ctx, "a")
	if ok {
		t.Error("expected a to be gone")
	}
}

func TestInMemoryConnector_TTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	repo := NewInMemoryConnector[session](sessionID, WithTTL(time.Minute), WithClock(clock))
	ctx := context.Background()

	if err := repo.Create(ctx, &session{Token: "a"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	now = now.Add(59 * time.Second)
	if ok, _ := repo.Exists(ctx, "a"); !ok {
		t.Fatal("expected a to be alive before its ttl")
	}

	now = now.Add(time.Second)
	if _, err := repo.Get(ctx, "a"); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("expected expired item to be missing, got: %v", err)
	}
	if repo.Len() != 0 {
		t.Errorf("expected no live entries, got %d", repo.Len())
	}

	// an expired id can be created again
	if err := repo.Create(ctx, &session{Token: "a"}); err != nil {
		t.Errorf("Create over expired entry failed: %v", err)
	}
}
