package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeStore struct {
	claimed map[string]bool
	setErr  error
	lastTTL time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{claimed: map[string]bool{}}
}

func (f *fakeStore) SetNX(_ context.Context, key string, _ any, ttl time.Duration) (bool, error) {
	if f.setErr != nil {
		return false, f.setErr
	}
	f.lastTTL = ttl
	if f.claimed[key] {
		return false, nil
	}
	f.claimed[key] = true
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "df:idempotency:" + scope + ":" + id
}

func TestGuardClaimsOnce(t *testing.T) {
	store := newFakeStore()
	guard, err := NewGuard(store, time.Hour)
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}
	eventID := uuid.New()

	first, err := guard.Claim(context.Background(), "generation-events", eventID)
	if err != nil || !first {
		t.Fatalf("expected first claim to win, got %v (%v)", first, err)
	}
	second, err := guard.Claim(context.Background(), "generation-events", eventID)
	if err != nil || second {
		t.Fatalf("expected second claim to lose, got %v (%v)", second, err)
	}
	if store.lastTTL != time.Hour {
		t.Fatalf("unexpected ttl %v", store.lastTTL)
	}
	if !store.claimed["df:idempotency:evt:generation-events:"+eventID.String()] {
		t.Fatalf("unexpected key layout: %v", store.claimed)
	}
}

func TestGuardClaimsAreScopedPerConsumer(t *testing.T) {
	guard, _ := NewGuard(newFakeStore(), time.Hour)
	eventID := uuid.New()

	if ok, _ := guard.Claim(context.Background(), "a", eventID); !ok {
		t.Fatalf("consumer a should claim")
	}
	if ok, _ := guard.Claim(context.Background(), "b", eventID); !ok {
		t.Fatalf("consumer b should claim independently")
	}
}

func TestGuardValidatesInput(t *testing.T) {
	if _, err := NewGuard(nil, time.Hour); err == nil {
		t.Fatalf("expected error for nil store")
	}
	if _, err := NewGuard(newFakeStore(), -time.Second); err == nil {
		t.Fatalf("expected error for negative ttl")
	}

	guard, _ := NewGuard(newFakeStore(), time.Hour)
	if _, err := guard.Claim(context.Background(), "", uuid.New()); err == nil {
		t.Fatalf("expected error for blank consumer")
	}
	if _, err := guard.Claim(context.Background(), "worker", uuid.Nil); err == nil {
		t.Fatalf("expected error for nil event id")
	}

	store := newFakeStore()
	store.setErr = errors.New("redis down")
	guard, _ = NewGuard(store, time.Hour)
	if _, err := guard.Claim(context.Background(), "worker", uuid.New()); err == nil {
		t.Fatalf("expected store error to surface")
	}
}
