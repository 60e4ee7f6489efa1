package database

import (
	"context"

	"github.com/go-redis/redis/v8"

	"medidesk-go/pkg/log"
)

var RDB *redis.Client

// InitRedis 初始化 Redis 客户端连接。addr 为空时不创建客户端，会话只保存在内存中。
func InitRedis(addr, password string, db int) {
	if addr == "" {
		log.Info("未配置 Redis，会话快照功能已禁用")
		return
	}
	RDB = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// 测试连接
	ctx := context.Background()
	if err := RDB.Ping(ctx).Err(); err != nil {
		log.Fatal("failed to connect to redis", err)
	}

	log.Info("Redis client connected successfully")
}
