package session

import (
	"context"
	"testing"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	id, err := s.Get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if id != "" {
		t.Fatalf("expected absent handle, got %q", id)
	}

	if err := s.Set(ctx, "cart-1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	id, err = s.Get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if id != "cart-1" {
		t.Fatalf("expected cart-1, got %q", id)
	}
}

func TestRedisStoreKeying(t *testing.T) {
	a := NewRedisStore(nil, "visitor-a", 0)
	b := NewRedisStore(nil, "visitor-b", 0)
	if a.key() == b.key() {
		t.Fatal("visitors must not share a handle key")
	}
}
