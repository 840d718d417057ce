package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"PlayDeck/config"

	"github.com/go-redis/redis/v8"
)

// Redis is a Store backed by a Redis server. Keys are namespaced by prefix.
type Redis struct {
	client *redis.Client
	prefix string
}

// ConnectRedis 初始化Redis连接
func ConnectRedis(cfg *config.Config) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedis(client, cfg.RedisKeyPrefix), nil
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) key(k string) string {
	return r.prefix + k
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	if r.client == nil {
		return "", false, ErrStoreUnavailable
	}
	val, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return val, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	if r.client == nil {
		return ErrStoreUnavailable
	}
	if err := r.client.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		// maxmemory with noeviction answers writes with an OOM error
		if strings.HasPrefix(err.Error(), "OOM") {
			return fmt.Errorf("failed to set %s: %w", key, ErrQuotaExceeded)
		}
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Clear(ctx context.Context, key string) error {
	if r.client == nil {
		return ErrStoreUnavailable
	}
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to clear %s: %w", key, err)
	}
	return nil
}

// Ping 检查连接
func (r *Redis) Ping(ctx context.Context) error {
	if r.client == nil {
		return ErrStoreUnavailable
	}
	return r.client.Ping(ctx).Err()
}

// Close 关闭Redis连接
func (r *Redis) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
