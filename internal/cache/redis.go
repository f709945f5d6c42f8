package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oggyb/agency-backoffice/internal/config"
)

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.Client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.Client.Get(ctx, key).Result()
}

func (c *RedisCache) Del(ctx context.Context, key string) error {
	return c.Client.Del(ctx, key).Err()
}

// --- sessions ---

func keyForSession(token string) string {
	return "session:" + token
}

// SetSession stores token -> userID with the given TTL.
func (c *RedisCache) SetSession(ctx context.Context, token string, userID uint64, ttl time.Duration) error {
	return c.Client.Set(ctx, keyForSession(token), strconv.FormatUint(userID, 10), ttl).Err()
}

// GetSession resolves a session token to a user ID. Returns (0, false, nil)
// on a miss so callers can distinguish "no session" from Redis failures.
func (c *RedisCache) GetSession(ctx context.Context, token string) (uint64, bool, error) {
	val, err := c.Client.Get(ctx, keyForSession(token)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	} else if err != nil {
		return 0, false, err
	}
	id, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// DelSession drops a session token (logout).
func (c *RedisCache) DelSession(ctx context.Context, token string) error {
	return c.Client.Del(ctx, keyForSession(token)).Err()
}

// --- pending proposition badge counters ---

// KeyForPendingPropositions generates the Redis key for a recipient's count
// of open (pending, non-expired) propositions, shown as an inbox badge.
func (c *RedisCache) KeyForPendingPropositions(userID uint64) string {
	return fmt.Sprintf("propositions:pending:%d", userID)
}

// SetPendingPropositions caches the count with a 1h TTL.
func (c *RedisCache) SetPendingPropositions(ctx context.Context, userID uint64, count int64) error {
	key := c.KeyForPendingPropositions(userID)
	return c.Client.Set(ctx, key, count, time.Hour).Err()
}

// GetPendingPropositions returns the cached count, or a miss.
func (c *RedisCache) GetPendingPropositions(ctx context.Context, userID uint64) (int64, bool, error) {
	key := c.KeyForPendingPropositions(userID)
	val, err := c.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	} else if err != nil {
		return 0, false, err
	}
	// refresh TTL on access
	_ = c.Client.Expire(ctx, key, time.Hour).Err()
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

// InvalidatePendingPropositions drops the badge counter after a write that
// changes it (create or respond). Cheap compared to keeping Incr/Decr in sync
// with the 7-day expiry.
func (c *RedisCache) InvalidatePendingPropositions(ctx context.Context, userID uint64) error {
	return c.Client.Del(ctx, c.KeyForPendingPropositions(userID)).Err()
}
