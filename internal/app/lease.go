package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/edubridge/campusconnect/internal/platform/logger"
)

// RedisLocker serializes sync passes per broker across connector
// instances with a redis lease: SET NX PX, released only by the owner.
type RedisLocker struct {
	log    *logger.Logger
	client *redis.Client
}

func NewRedisLocker(log *logger.Logger, client *redis.Client) *RedisLocker {
	return &RedisLocker{
		log:    log.With("service", "RedisLocker"),
		client: client,
	}
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		// Release outlives the pass context; a short deadline keeps a
		// dead redis from blocking shutdown.
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
			l.log.Warn("Lease release failed, lease will expire on its own", "error", err, "key", key)
		}
	}
	return release, true, nil
}

// LocalLocker is the single-instance fallback used when no redis
// address is configured.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: map[string]bool{}}
}

func (l *LocalLocker) Acquire(_ context.Context, key string, _ time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, false, nil
	}
	l.held[key] = true
	release := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}
	return release, true, nil
}
