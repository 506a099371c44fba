package banktransfer

import (
	"context"
	"testing"
	"time"
)

type stubStore struct {
	keys    map[string]bool
	deletes []string
}

func newStubStore() *stubStore { return &stubStore{keys: map[string]bool{}} }

func (s *stubStore) IdempotencyKey(scope, id string) string { return scope + ":" + id }

func (s *stubStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if s.keys[key] {
		return false, nil
	}
	s.keys[key] = true
	return true, nil
}

func (s *stubStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.keys, key)
		s.deletes = append(s.deletes, key)
	}
	return nil
}

func TestCheckAndMarkFirstDelivery(t *testing.T) {
	guard, err := NewIdempotencyGuard(newStubStore(), time.Hour, "bank")
	if err != nil {
		t.Fatalf("NewIdempotencyGuard: %v", err)
	}

	seen, err := guard.CheckAndMark(context.Background(), "txn-1")
	if err != nil {
		t.Fatalf("CheckAndMark: %v", err)
	}
	if seen {
		t.Fatal("first delivery must not be flagged as duplicate")
	}
}

func TestCheckAndMarkDuplicateDelivery(t *testing.T) {
	guard, _ := NewIdempotencyGuard(newStubStore(), time.Hour, "bank")

	if _, err := guard.CheckAndMark(context.Background(), "txn-1"); err != nil {
		t.Fatalf("first CheckAndMark: %v", err)
	}
	seen, err := guard.CheckAndMark(context.Background(), "txn-1")
	if err != nil {
		t.Fatalf("second CheckAndMark: %v", err)
	}
	if !seen {
		t.Fatal("re-delivery must be flagged as duplicate")
	}
}

func TestDeleteReleasesClaim(t *testing.T) {
	store := newStubStore()
	guard, _ := NewIdempotencyGuard(store, time.Hour, "bank")

	if _, err := guard.CheckAndMark(context.Background(), "txn-1"); err != nil {
		t.Fatalf("CheckAndMark: %v", err)
	}
	if err := guard.Delete(context.Background(), "txn-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	seen, err := guard.CheckAndMark(context.Background(), "txn-1")
	if err != nil {
		t.Fatalf("CheckAndMark after release: %v", err)
	}
	if seen {
		t.Fatal("released claim must allow the retry through")
	}
}
