package database

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// NewRedis 建立 Redis 连接并做一次 Ping 校验。
func NewRedis(addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}
	return rdb, nil
}
