package dispatcher

import (
	"context"
	"time"

	"github.com/replyreminder/replyreminder/internal/cache"
)

// LockName is the name of the run lock shared by all dispatcher instances.
const LockName = "dispatcher"

// Locker excludes overlapping runs. Lock returns cache.ErrLockHeld when
// another run holds the lock.
type Locker interface {
	Lock(ctx context.Context) (unlock func(context.Context) error, err error)
}

// RedisLocker takes the run lock in Redis.
type RedisLocker struct {
	Cache *cache.Cache
	TTL   time.Duration
}

// Lock implements Locker.
func (l *RedisLocker) Lock(ctx context.Context) (func(context.Context) error, error) {
	lock, err := l.Cache.AcquireLock(ctx, LockName, l.TTL)
	if err != nil {
		return nil, err
	}
	return lock.Release, nil
}
