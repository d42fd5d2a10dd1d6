package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type RedisClient struct {
	client *redis.Client
}

func NewRedisClient(addr, password string, db, poolSize, minIdleConns int) *RedisClient {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     poolSize,
		MinIdleConns: minIdleConns,
	})

	return &RedisClient{client: client}
}

// IsMiss key 不存在
func IsMiss(err error) bool {
	return errors.Is(err, redis.Nil)
}

func (r *RedisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisClient) Get(ctx context.Context, key string) (string, error) {
	return r.client.Get(ctx, key).Result()
}

func (r *RedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return r.client.Set(ctx, key, value, expiration).Err()
}

func (r *RedisClient) Delete(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

// ReplaceSet 原子地重建集合并设置过期时间，空集合写入占位成员
func (r *RedisClient) ReplaceSet(ctx context.Context, key string, members []string, placeholder string, expiration time.Duration) error {
	values := make([]interface{}, 0, len(members)+1)
	values = append(values, placeholder)
	for _, m := range members {
		values = append(values, m)
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SAdd(ctx, key, values...)
	pipe.Expire(ctx, key, expiration)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to replace set %s: %w", key, err)
	}
	return nil
}

func (r *RedisClient) SMembers(ctx context.Context, key string) ([]string, error) {
	return r.client.SMembers(ctx, key).Result()
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}
