package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// LockRepository hands out Redis-backed mutual exclusion for scheduled jobs
// that may run on several instances at once.
type LockRepository struct {
	client *redis.Client
}

// NewLockRepository constructs a lock repository. A nil client grants every
// lock locally.
func NewLockRepository(client *redis.Client) *LockRepository {
	return &LockRepository{client: client}
}

// TryAcquire sets key if absent. It returns a release func when the lock was
// obtained, or ok=false when another holder has it.
func (r *LockRepository) TryAcquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context), ok bool, err error) {
	if r == nil || r.client == nil {
		return func(context.Context) {}, true, nil
	}
	owner := uuid.NewString()
	acquired, err := r.client.SetNX(ctx, key, owner, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !acquired {
		return nil, false, nil
	}
	return func(ctx context.Context) {
		_ = releaseScript.Run(ctx, r.client, []string{key}, owner).Err()
	}, true, nil
}
