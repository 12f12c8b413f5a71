package preview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/npezzotti/go-blogchat/internal/types"
	"github.com/redis/go-redis/v9"
)

const (
	defaultCachePrefix = "preview:"
	defaultCacheTTL    = time.Hour
)

type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client: client,
		prefix: defaultCachePrefix,
		ttl:    defaultCacheTTL,
	}
}

func (c *RedisCache) Get(ctx context.Context, url string) (*types.Preview, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+url).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache get: %w", err)
	}

	var p types.Preview
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, false, fmt.Errorf("cache unmarshal: %w", err)
	}

	return &p, true, nil
}

func (c *RedisCache) Set(ctx context.Context, url string, p *types.Preview) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}

	if err := c.client.Set(ctx, c.prefix+url, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}

	return nil
}
