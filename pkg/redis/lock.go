package redis

import (
	"context"
	"errors"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// ErrLockBusy is returned when a lock could not be claimed before the wait expired.
var ErrLockBusy = errors.New("lock is held by another caller")

const lockPollInterval = 50 * time.Millisecond

// AcquireLock polls TryLock until it succeeds or wait elapses. A zero wait makes
// a single attempt.
func AcquireLock(ctx context.Context, l Locker, key string, ttl, wait time.Duration) (string, error) {
	if l == nil {
		return "", errors.New("locker required")
	}
	var token string
	backoff := goretry.WithMaxDuration(wait, goretry.NewConstant(lockPollInterval))
	if wait <= 0 {
		backoff = goretry.WithMaxRetries(0, goretry.NewConstant(lockPollInterval))
	}
	err := goretry.Do(ctx, backoff, func(ctx context.Context) error {
		t, ok, err := l.TryLock(ctx, key, ttl)
		if err != nil {
			return err
		}
		if !ok {
			return goretry.RetryableError(ErrLockBusy)
		}
		token = t
		return nil
	})
	if err != nil {
		return "", err
	}
	return token, nil
}
