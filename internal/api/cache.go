package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"toilet-finder/internal/geo"
)

// Cache：近邻响应缓存，值为已编码的 data 字段
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// RedisCache：基于 GET/SET EX 的实现
type RedisCache struct {
	rc *redis.Client
}

func NewRedisCache(rc *redis.Client) *RedisCache { return &RedisCache{rc: rc} }

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.rc.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return c.rc.Set(ctx, key, val, ttl).Err()
}

// nearbyKey：nearby:<geohash7>:<lat>,<lon>:<radius>:<limit>
// 约束：距离与 total 依赖精确中心点，坐标保留 6 位小数（约 0.1m）；geohash 段仅用于按网格扫描与失效
func nearbyKey(lat, lon, radius float64, limit int) string {
	return fmt.Sprintf("nearby:%s:%.6f,%.6f:%g:%d", geo.Geohash(lat, lon, 7), lat, lon, radius, limit)
}
