// 包 utils：数据库与 Redis 连接工具，统一从启动配置构造客户端
package utils

import (
	"github.com/redis/go-redis/v9"

	"toilet-finder/internal/config"
	"toilet-finder/internal/logger"
)

// OpenRedis：未启用时返回 nil，调用方据此跳过缓存与分布式锁
func OpenRedis(c config.Redis) *redis.Client {
	if !c.Enabled || c.Host == "" {
		return nil
	}
	addr := c.Host + ":" + c.Port
	db := c.DB
	if db < 0 {
		db = 0
	}
	logger.L().Debug("redis_open", "addr", addr, "db", db)
	return redis.NewClient(&redis.Options{Addr: addr, Password: c.Password, DB: db})
}
