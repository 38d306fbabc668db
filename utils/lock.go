package utils

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrLockTimeout = errors.New("lock: timed out waiting for slot lock")

// Locker serializes work on a key across callers. The returned unlock
// function is safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// SlotKey is the lock key guarding one location on one date.
func SlotKey(location, date string) string {
	return fmt.Sprintf("lock:slot:%s:%s", strings.ToLower(strings.TrimSpace(location)), date)
}

// Deletes the key only while it still holds our token.
var releaseLockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

type RedisLocker struct {
	Redis *redis.Client
	TTL   time.Duration
	Wait  time.Duration
	Retry time.Duration

	newToken func() (string, error)
}

func NewRedisLocker(redisClient *redis.Client, ttl, wait, retry time.Duration) *RedisLocker {
	return &RedisLocker{
		Redis:    redisClient,
		TTL:      ttl,
		Wait:     wait,
		Retry:    retry,
		newToken: func() (string, error) { return GenerateCode(16) },
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	token, err := l.newToken()
	if err != nil {
		return nil, fmt.Errorf("lock token: %w", err)
	}

	deadline := time.Now().Add(l.Wait)
	for {
		ok, err := l.Redis.SetNX(ctx, key, token, l.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			break
		}
		if !time.Now().Before(deadline) {
			return nil, ErrLockTimeout
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.Retry):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's context may already be done; release regardless.
			rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := l.Redis.Eval(rctx, releaseLockScript, []string{key}, token).Err(); err != nil {
				slog.Error("Failed to release slot lock", "key", key, "error", err)
			}
		})
	}, nil
}

// LocalLocker is an in-process keyed mutex for single-instance deployments.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*localSlot
}

type localSlot struct {
	held chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*localSlot)}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &localSlot{held: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.held <- struct{}{}:
	case <-ctx.Done():
		l.release(key, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.held
			l.release(key, s)
		})
	}, nil
}

func (l *LocalLocker) release(key string, s *localSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}
