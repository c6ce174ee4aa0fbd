// Package cache 基于 Redis 的计算结果缓存
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/wyfcoding/greeksengine/internal/greeks/domain"
)

// Store 键值存储，pkg/cache.RedisCache 满足该接口
type Store interface {
	GetBytes(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}

type resultCache struct {
	store  Store
	prefix string
	ttl    time.Duration
}

// NewResultCache 创建结果缓存，值以 msgpack 编码
func NewResultCache(store Store, ttl time.Duration) domain.ResultCache {
	return &resultCache{
		store:  store,
		prefix: "greeks:result:",
		ttl:    ttl,
	}
}

func (c *resultCache) Get(ctx context.Context, key string) (*domain.GreeksResult, bool, error) {
	data, ok, err := c.store.GetBytes(ctx, c.prefix+key)
	if err != nil || !ok {
		return nil, false, err
	}
	var result domain.GreeksResult
	if err := msgpack.Unmarshal(data, &result); err != nil {
		return nil, false, fmt.Errorf("decode cached result %s: %w", key, err)
	}
	return &result, true, nil
}

func (c *resultCache) Put(ctx context.Context, key string, result *domain.GreeksResult) error {
	if result == nil {
		return nil
	}
	data, err := msgpack.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result %s: %w", key, err)
	}
	return c.store.Set(ctx, c.prefix+key, data, c.ttl)
}
