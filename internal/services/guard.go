package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const lockPrefix = "outreach:lock:"

// Release the lock only if we still own it.
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Guard keeps a job from running twice at once: concurrent callers in this
// process join the running call, and with Redis configured other processes
// get ErrJobLocked.
type Guard struct {
	Redis *redis.Client
	TTL   time.Duration
	Log   *zap.Logger

	group singleflight.Group
}

func NewGuard(rdb *redis.Client, ttl time.Duration, log *zap.Logger) *Guard {
	if log == nil {
		log = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Guard{Redis: rdb, TTL: ttl, Log: log}
}

func (g *Guard) Do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	_, err, _ := g.group.Do(key, func() (any, error) {
		release, err := g.lock(ctx, key)
		if err != nil {
			return nil, err
		}
		defer release()
		return nil, fn(ctx)
	})
	return err
}

func (g *Guard) lock(ctx context.Context, key string) (func(), error) {
	if g.Redis == nil {
		return func() {}, nil
	}
	k := lockPrefix + key
	token := uuid.NewString()
	ok, err := g.Redis.SetNX(ctx, k, token, g.TTL).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobLocked, key)
	}
	return func() {
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := unlockScript.Run(rctx, g.Redis, []string{k}, token).Err(); err != nil {
			g.Log.Warn("failed to release lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}
