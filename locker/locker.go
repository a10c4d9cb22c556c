// Package locker provides TTL locks keyed by intent id, so concurrent
// execution requests for the same intent cannot double-spend custody
// funds. Redis backs the locks when reachable; otherwise a process-local
// table takes over, which is sufficient for a single solver instance.
package locker

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultTTL bounds how long one execution may hold an intent lock.
const DefaultTTL = 2 * time.Minute

// Locker acquires and releases TTL locks.
type Locker struct {
	logger *logrus.Logger
	client *redis.Client

	mu    sync.Mutex
	local map[string]time.Time
}

// New connects to Redis at redisURL. A failed connection degrades to
// in-memory locking, logged once.
func New(redisURL string, logger *logrus.Logger) *Locker {
	l := &Locker{
		logger: logger,
		local:  make(map[string]time.Time),
	}

	if redisURL == "" {
		logger.Info("No Redis configured, using in-memory locks")
		return l
	}

	options, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.WithError(err).Warn("Invalid Redis URL, using in-memory locks")
		return l
	}
	options.MaxRetries = 1

	client := redis.NewClient(options)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Warn("Redis not available, using in-memory locks")
		client.Close()
		return l
	}

	l.client = client
	logger.Info("Redis lock backend connected")
	return l
}

// Lock tries to acquire key for ttl. Returns false when the key is
// already held and not yet expired.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	if l.client != nil {
		acquired, err := l.client.SetNX(ctx, key, "1", ttl).Result()
		if err == nil {
			return acquired
		}
		l.logger.WithError(err).Warn("Redis lock failed, falling back to in-memory")
	}
	return l.lockLocal(key, ttl)
}

// Unlock releases key. Releasing an unheld key is a no-op.
func (l *Locker) Unlock(ctx context.Context, key string) {
	if l.client != nil {
		err := l.client.Del(ctx, key).Err()
		if err == nil {
			return
		}
		l.logger.WithError(err).Warn("Redis unlock failed, using in-memory")
	}
	l.unlockLocal(key)
}

// Close releases the Redis connection if one exists.
func (l *Locker) Close() {
	if l.client != nil {
		l.client.Close()
	}
}

func (l *Locker) lockLocal(key string, ttl time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if expiry, held := l.local[key]; held && expiry.After(now) {
		return false
	}
	l.local[key] = now.Add(ttl)
	return true
}

func (l *Locker) unlockLocal(key string) {
	l.mu.Lock()
	delete(l.local, key)
	l.mu.Unlock()
}
