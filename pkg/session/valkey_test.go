package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestValkeyStore(t *testing.T) (*ValkeyStore, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	store, err := NewValkeyStore(ValkeyOptions{
		Address:      srv.Addr(),
		DisableCache: true,
	})
	if err != nil {
		t.Fatalf("connect valkey store: %v", err)
	}
	t.Cleanup(store.Close)
	return store, srv
}

// TestValkeyStoreRoundtrip verifies set/get/delete against miniredis
func TestValkeyStoreRoundtrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestValkeyStore(t)

	if got, err := store.Get(ctx, "u1", "c1"); err != nil || got != nil {
		t.Fatalf("Get on empty store = (%v, %v), want (nil, nil)", got, err)
	}

	s := New("u1", "c1")
	s.Data["step"] = "greeting"
	if err := store.Set(ctx, "u1", "c1", s); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := store.Get(ctx, "u1", "c1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.Data["step"] != "greeting" {
		t.Fatalf("Get returned %+v, want step=greeting", got)
	}

	if err := store.Delete(ctx, "u1", "c1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got, _ := store.Get(ctx, "u1", "c1"); got != nil {
		t.Error("expected session gone after delete")
	}
}

// TestValkeyStoreTTL verifies ExpiresAt translates into a key TTL
func TestValkeyStoreTTL(t *testing.T) {
	ctx := context.Background()
	store, srv := newTestValkeyStore(t)

	s := New("u1", "c1")
	future := time.Now().Add(time.Hour)
	s.ExpiresAt = &future
	if err := store.Set(ctx, "u1", "c1", s); err != nil {
		t.Fatalf("Set: %v", err)
	}

	key := store.key("u1", "c1")
	if ttl := srv.TTL(key); ttl <= 0 || ttl > time.Hour {
		t.Errorf("key TTL = %v, want within (0, 1h]", ttl)
	}

	// Server-side expiry makes the session read as absent.
	srv.FastForward(2 * time.Hour)
	if got, err := store.Get(ctx, "u1", "c1"); err != nil || got != nil {
		t.Errorf("Get after expiry = (%v, %v), want (nil, nil)", got, err)
	}
}

// TestValkeyStoreSetExpired verifies a past ExpiresAt deletes instead of
// storing a dead record
func TestValkeyStoreSetExpired(t *testing.T) {
	ctx := context.Background()
	store, srv := newTestValkeyStore(t)

	s := New("u1", "c1")
	if err := store.Set(ctx, "u1", "c1", s); err != nil {
		t.Fatalf("Set: %v", err)
	}

	past := time.Now().Add(-time.Minute)
	s.ExpiresAt = &past
	if err := store.Set(ctx, "u1", "c1", s); err != nil {
		t.Fatalf("Set expired: %v", err)
	}

	if srv.Exists(store.key("u1", "c1")) {
		t.Error("expected expired session to be deleted, not stored")
	}
}

// TestValkeyStoreClear verifies SCAN-based per-user clearing
func TestValkeyStoreClear(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestValkeyStore(t)

	for _, pair := range [][2]string{{"u1", "c1"}, {"u1", "c2"}, {"u2", "c1"}} {
		if err := store.Set(ctx, pair[0], pair[1], New(pair[0], pair[1])); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}

	if err := store.Clear(ctx, "u1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if got, _ := store.Get(ctx, "u1", "c1"); got != nil {
		t.Error("expected u1 sessions cleared")
	}
	if got, _ := store.Get(ctx, "u2", "c1"); got == nil {
		t.Error("expected u2 session untouched")
	}
}
