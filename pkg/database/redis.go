package database

import (
	"context"
	"fmt"
	"log"
	"progression_backend/internal/config"

	"github.com/go-redis/redis/v8"
)

// InitRedis 课程结构快照缓存和完成通知队列共用这一个客户端。
// 连接失败直接报错，不做降级：缓存层自己对 nil 客户端免疫，但生产配置了 redis 就必须可达。
func InitRedis(cfg *config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     50,
		MinIdleConns: 5,
	})

	ctx := context.Background()
	_, err := rdb.Ping(ctx).Result()
	if err != nil {
		return nil, err
	}

	log.Println("Redis connection established")
	return rdb, nil
}
