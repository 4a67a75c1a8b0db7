package core

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/atelier-studio/atelier/pkg/types"
)

// Cache implements types.Cache over redis. Keys are namespaced by prefix.
type Cache struct {
	redis  redis.UniversalClient
	prefix string
}

func NewCache(cli redis.UniversalClient, prefix string) *Cache {
	return &Cache{redis: cli, prefix: prefix}
}

func (c *Cache) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}

func (c *Cache) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return c.redis.Expire(ctx, c.key(key), expiration).Err()
}

func (c *Cache) SetEx(ctx context.Context, key, value string, expiresAt time.Duration) error {
	return c.redis.SetEx(ctx, c.key(key), value, expiresAt).Err()
}

func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	v, err := c.redis.Get(ctx, c.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", types.ErrCacheMiss
	}
	return v, err
}

func (c *Cache) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	return c.redis.Del(ctx, full...).Err()
}

func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.redis.Exists(ctx, c.key(key)).Result()
	return n > 0, err
}

// Scan returns every key matching pattern, without the namespace prefix.
func (c *Cache) Scan(ctx context.Context, pattern string) ([]string, error) {
	var (
		cursor uint64
		result []string
	)
	for {
		keys, next, err := c.redis.Scan(ctx, cursor, c.key(pattern), 100).Result()
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			if c.prefix != "" {
				k = k[len(c.prefix)+1:]
			}
			result = append(result, k)
		}
		if next == 0 {
			return result, nil
		}
		cursor = next
	}
}

var _ types.Cache = (*Cache)(nil)

func setupRedis(cfg RedisConfig) redis.UniversalClient {
	if cfg.Cluster {
		return redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        cfg.ClusterAddrs,
			Password:     cfg.Password,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			MaxRetries:   cfg.MaxRetries,
			DialTimeout:  seconds(cfg.DialTimeout),
			ReadTimeout:  seconds(cfg.ReadTimeout),
			WriteTimeout: seconds(cfg.WriteTimeout),
		})
	}
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  seconds(cfg.DialTimeout),
		ReadTimeout:  seconds(cfg.ReadTimeout),
		WriteTimeout: seconds(cfg.WriteTimeout),
	})
}

// embeddedRedis serves single-process deployments that run without redis.
func embeddedRedis() (redis.UniversalClient, func()) {
	srv, err := miniredis.Run()
	if err != nil {
		panic(err)
	}
	slog.Warn("redis address not configured, using embedded in-process redis", slog.String("addr", srv.Addr()))
	return redis.NewClient(&redis.Options{Addr: srv.Addr()}), srv.Close
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
