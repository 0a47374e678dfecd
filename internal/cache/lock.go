package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
)

const lockPrefix = "lock:"

// ErrLockHeld is returned when another holder owns the lock.
var ErrLockHeld = errors.New("lock already held")

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// Lock is a held Redis lock.
type Lock struct {
	client *redis.Client
	key    string
	token  string
}

// AcquireLock takes the named lock for ttl using SET NX.
// The lock expires on its own if the holder dies.
func (c *Cache) AcquireLock(ctx context.Context, name string, ttl time.Duration) (*Lock, error) {
	key := lockKey(name)
	token := ulid.Make().String()

	ok, err := c.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	return &Lock{client: c.client, key: key, token: token}, nil
}

// Release frees the lock if it is still ours.
func (l *Lock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

func lockKey(name string) string {
	return lockPrefix + name
}
