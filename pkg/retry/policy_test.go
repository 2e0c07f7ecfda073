package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/draftforge-backend/pkg/config"
)

var errTransient = errors.New("database is locked")

func isTransient(err error) bool {
	return errors.Is(err, errTransient)
}

func TestPolicyRetriesTransientErrorsUntilSuccess(t *testing.T) {
	p := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Retryable: isTransient}
	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestPolicyStopsAtMaxAttempts(t *testing.T) {
	p := Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, Retryable: isTransient}
	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("expected transient error to surface, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestPolicyDoesNotRetryPermanentErrors(t *testing.T) {
	p := Policy{MaxAttempts: 5, BaseDelay: time.Millisecond, Retryable: isTransient}
	permanent := errors.New("state conflict")
	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected single attempt, got %d", calls)
	}
}

func TestNonePolicyAttemptsOnce(t *testing.T) {
	calls := 0
	_ = None().Do(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	})
	if calls != 1 {
		t.Fatalf("expected one attempt, got %d", calls)
	}
}

func TestFromStoreConfigCopiesBounds(t *testing.T) {
	p := FromStoreConfig(config.StoreConfig{
		RetryMaxAttempts: 4,
		RetryBaseBackoff: 50 * time.Millisecond,
		RetryMaxBackoff:  time.Second,
	})
	if p.MaxAttempts != 4 || p.BaseDelay != 50*time.Millisecond || p.MaxDelay != time.Second {
		t.Fatalf("unexpected policy %+v", p)
	}
	if p.Retryable != nil {
		t.Fatalf("classifier should be left to the caller")
	}
}
