package cache

import (
	"context"
	"encoding/json"
	"time"

	"log/slog"

	redis "github.com/redis/go-redis/v9"

	"github.com/kingliujiaxin/Mutiple-user-blog-system/internal/domain"
)

const feedKey = "blog:feed"

type redisCache struct {
	client  *redis.Client
	logger  *slog.Logger
	ttl     time.Duration
	timeout time.Duration
}

// NewRedisCache constructs a Redis backed feed cache. Cache failures are
// logged and treated as misses; the store remains the source of truth.
func NewRedisCache(addr, password string, db int, ttl time.Duration, logger *slog.Logger) (FeedCache, error) {
	opts := &redis.Options{Addr: addr, Password: password, DB: db}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &redisCache{
		client:  client,
		logger:  logger,
		ttl:     ttl,
		timeout: 250 * time.Millisecond,
	}, nil
}

func (c *redisCache) GetFeed(ctx context.Context) ([]domain.Article, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := c.client.Get(ctx, feedKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logRedisError("get", err)
		}
		return nil, false
	}
	var articles []domain.Article
	if err := json.Unmarshal(payload, &articles); err != nil {
		c.logRedisError("decode", err)
		return nil, false
	}
	return articles, true
}

func (c *redisCache) SetFeed(ctx context.Context, articles []domain.Article) {
	payload, err := json.Marshal(articles)
	if err != nil {
		c.logRedisError("encode", err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.client.Set(ctx, feedKey, payload, c.ttl).Err(); err != nil {
		c.logRedisError("set", err)
	}
}

func (c *redisCache) Invalidate(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.client.Del(ctx, feedKey).Err(); err != nil {
		c.logRedisError("del", err)
	}
}

func (c *redisCache) Close() {
	if err := c.client.Close(); err != nil {
		c.logRedisError("close", err)
	}
}

func (c *redisCache) logRedisError(op string, err error) {
	if c.logger == nil {
		return
	}
	c.logger.Warn("feed cache unavailable", "op", op, "error", err)
}
