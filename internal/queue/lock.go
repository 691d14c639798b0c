package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Lock guards work that only one process should run at a time
type Lock interface {
	// TryAcquire returns a release function and true when the lock was taken.
	// It returns false without error when another holder owns it.
	TryAcquire(ctx context.Context) (release func(), acquired bool, err error)
}

// releaseScript deletes the key only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

type redisLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisLock creates a lock on key that expires after ttl if never released
func NewRedisLock(client *redis.Client, key string, ttl time.Duration) Lock {
	return &redisLock{client: client, key: key, ttl: ttl}
}

func (l *redisLock) TryAcquire(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", l.key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.client, []string{l.key}, token).Err()
	}

	return release, true, nil
}

// LocalLock is a process-local Lock for single-instance deployments
type LocalLock struct {
	held chan struct{}
}

// NewLocalLock creates an unlocked LocalLock
func NewLocalLock() *LocalLock {
	return &LocalLock{held: make(chan struct{}, 1)}
}

func (l *LocalLock) TryAcquire(ctx context.Context) (func(), bool, error) {
	select {
	case l.held <- struct{}{}:
		return func() { <-l.held }, true, nil
	default:
		return nil, false, nil
	}
}
