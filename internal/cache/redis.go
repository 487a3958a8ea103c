package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/amoradev/amora/internal/config"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes the Redis client from config.
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

func (c *RedisCache) Incr(ctx context.Context, key string) (int64, error) {
	return c.Client.Incr(ctx, key).Result()
}

func (c *RedisCache) IncrBy(ctx context.Context, key string, n int64) (int64, error) {
	return c.Client.IncrBy(ctx, key, n).Result()
}

// KeyForUsage is the per-day usage counter of one gated action. The day
// component makes stale counters age out on their own; the TTL is a
// backstop, not the reset mechanism.
func (c *RedisCache) KeyForUsage(viewerID, action string, day time.Time) string {
	return fmt.Sprintf("usage:%s:%s:%s", viewerID, action, day.UTC().Format("2006-01-02"))
}

// KeyForSession maps a bearer token to a viewer id.
func (c *RedisCache) KeyForSession(token string) string {
	return "session:" + token
}

// KeyForLikeCount is the cached "who liked you" count of a viewer.
func (c *RedisCache) KeyForLikeCount(viewerID string) string {
	return "likes:count:" + viewerID
}

// ChannelForConversation is the pub/sub channel carrying realtime
// message inserts for one match.
func (c *RedisCache) ChannelForConversation(matchID string) string {
	return "chat:" + matchID
}

// GetUsage reads a usage counter; cache miss reads as zero.
func (c *RedisCache) GetUsage(ctx context.Context, key string) (int, error) {
	val, err := c.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	return strconv.Atoi(val)
}
