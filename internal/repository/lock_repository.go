package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the key only while it still holds the caller's token so
// an expired holder cannot drop a lock re-acquired by someone else.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// LockRepository provides a Redis-backed mutual-exclusion lease.
type LockRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewLockRepository constructs a lock repository.
func NewLockRepository(client *redis.Client, logger *zap.Logger) *LockRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LockRepository{client: client, logger: logger}
}

// TryAcquire attempts to take key for ttl. It returns the lease token when the
// lock was taken and "" when somebody else holds it.
func (r *LockRepository) TryAcquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if r.client == nil {
		return "", fmt.Errorf("redis client not configured")
	}
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("redis setnx %s: %w", key, err)
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

// Release frees key if it is still held with token.
func (r *LockRepository) Release(ctx context.Context, key, token string) error {
	if r.client == nil || token == "" {
		return nil
	}
	released, err := releaseScript.Run(ctx, r.client, []string{key}, token).Int()
	if err != nil {
		return fmt.Errorf("redis release %s: %w", key, err)
	}
	if released == 0 {
		r.logger.Sugar().Warnw("lock expired before release", "key", key)
	}
	return nil
}
