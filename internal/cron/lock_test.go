package cron

import (
	"context"
	"testing"
	"time"
)

type fakeLocker struct {
	held     map[string]string
	unlocked int
}

func (f *fakeLocker) LockKey(scope, id string) string { return scope + ":" + id }

func (f *fakeLocker) TryLock(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	if f.held == nil {
		f.held = map[string]string{}
	}
	if _, ok := f.held[key]; ok {
		return "", false, nil
	}
	token := "token-" + key
	f.held[key] = token
	return token, true, nil
}

func (f *fakeLocker) Unlock(_ context.Context, key, token string) error {
	if f.held[key] == token {
		delete(f.held, key)
		f.unlocked++
	}
	return nil
}

func TestRedisLockExclusive(t *testing.T) {
	locker := &fakeLocker{}
	first, err := NewRedisLock(locker, "cron-worker", time.Minute)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	second, _ := NewRedisLock(locker, "cron-worker", time.Minute)
	ctx := context.Background()

	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("expected first acquire to succeed, ok=%v err=%v", ok, err)
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatal("expected second acquire to fail while held")
	}
	if err := second.Release(ctx); err != nil {
		t.Fatalf("release without hold: %v", err)
	}
	if locker.unlocked != 0 {
		t.Fatal("non-owner must not release the lock")
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatal("expected acquire after release to succeed")
	}
}

func TestNewRedisLockValidates(t *testing.T) {
	if _, err := NewRedisLock(nil, "x", 0); err == nil {
		t.Fatal("expected error without locker")
	}
	if _, err := NewRedisLock(&fakeLocker{}, "", 0); err == nil {
		t.Fatal("expected error without name")
	}
}
