// Package redislock provides a single-holder lock on top of Redis.
// This is part of the platform layer and contains no business logic.
package redislock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when another holder owns the lock.
var ErrNotAcquired = errors.New("redislock: lock is held elsewhere")

// releaseScript deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out locks stored in Redis.
type Locker struct {
	client redis.UniversalClient
	prefix string
}

// New creates a Locker. Keys are stored as prefix + name.
func New(client redis.UniversalClient, prefix string) *Locker {
	return &Locker{client: client, prefix: prefix}
}

// Lock is a held lock. Release it when done.
type Lock struct {
	client redis.UniversalClient
	key    string
	token  string
}

// Obtain takes the named lock for ttl or returns ErrNotAcquired.
func (l *Locker) Obtain(ctx context.Context, name string, ttl time.Duration) (*Lock, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	key := l.prefix + name
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotAcquired
	}
	return &Lock{client: l.client, key: key, token: token}, nil
}

// Release drops the lock if it has not expired and been taken by someone else.
func (lk *Lock) Release(ctx context.Context) error {
	_, err := releaseScript.Run(ctx, lk.client, []string{lk.key}, lk.token).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

// Key returns the Redis key backing the lock.
func (lk *Lock) Key() string { return lk.key }

func newToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
