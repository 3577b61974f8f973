package rag

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/BaSui01/agentswarm/internal/cache"
	"go.uber.org/zap"
)

// ReleaseFunc releases a held build lock. It is safe to call more than once.
type ReleaseFunc func(ctx context.Context) error

// BuildLocker serializes builds of one fingerprint. Different fingerprints
// never block each other.
type BuildLocker interface {
	// Acquire blocks until the lock for fingerprint is held or ctx is done.
	Acquire(ctx context.Context, fingerprint string) (ReleaseFunc, error)
}

// =============================================================================
// 进程内锁
// =============================================================================

// LocalLocker is a per-fingerprint mutex for a single process.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewLocalLocker creates a LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]chan struct{})}
}

func (l *LocalLocker) Acquire(ctx context.Context, fingerprint string) (ReleaseFunc, error) {
	for {
		l.mu.Lock()
		held, busy := l.locks[fingerprint]
		if !busy {
			ch := make(chan struct{})
			l.locks[fingerprint] = ch
			l.mu.Unlock()

			var once sync.Once
			return func(context.Context) error {
				once.Do(func() {
					l.mu.Lock()
					delete(l.locks, fingerprint)
					l.mu.Unlock()
					close(ch)
				})
				return nil
			}, nil
		}
		l.mu.Unlock()

		select {
		case <-held:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// =============================================================================
// Redis 分布式锁
// =============================================================================

// RedisLocker holds a Redis key per fingerprint so that separate processes
// never build the same collection concurrently. While held, the key's TTL is
// refreshed in the background.
type RedisLocker struct {
	redis  *cache.Manager
	prefix string
	ttl    time.Duration
	poll   time.Duration
	logger *zap.Logger
}

// NewRedisLocker creates a RedisLocker. Zero ttl or poll use 2m and 200ms.
func NewRedisLocker(mgr *cache.Manager, keyPrefix string, ttl, poll time.Duration, logger *zap.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	if poll <= 0 {
		poll = 200 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLocker{
		redis:  mgr,
		prefix: keyPrefix + "buildlock:",
		ttl:    ttl,
		poll:   poll,
		logger: logger.With(zap.String("component", "build_lock")),
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, fingerprint string) (ReleaseFunc, error) {
	key := l.prefix + fingerprint
	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		token, ok, err := l.redis.TryLock(ctx, key, l.ttl)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		if ok {
			return l.held(key, token), nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (l *RedisLocker) held(key, token string) ReleaseFunc {
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		t := time.NewTicker(l.ttl / 3)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				ctx, cancel := context.WithTimeout(context.Background(), l.ttl/3)
				err := l.redis.Extend(ctx, key, token, l.ttl)
				cancel()
				if err != nil {
					l.logger.Warn("build lock refresh failed", zap.String("key", key), zap.Error(err))
				}
			}
		}
	}()

	var once sync.Once
	return func(ctx context.Context) error {
		var err error
		once.Do(func() {
			close(stop)
			<-done
			err = l.redis.Unlock(ctx, key, token)
			if errors.Is(err, cache.ErrLockNotHeld) {
				l.logger.Warn("build lock expired before release", zap.String("key", key))
			}
		})
		return err
	}
}
