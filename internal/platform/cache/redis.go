package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fatflowers/checkout/pkg/config"
	"github.com/fatflowers/checkout/pkg/metrics"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ErrMiss is returned when a key is absent or has expired.
var ErrMiss = errors.New("cache miss")

// RedisCache stores JSON values in Redis with a per-entry TTL.
type RedisCache struct {
	client *redis.Client
}

func New(cfg *config.Config, log *zap.SugaredLogger) (*RedisCache, error) {
	opt, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	log.Infow("connected to redis", "addr", opt.Addr, "db", opt.DB)
	return &RedisCache{client: client}, nil
}

func NewWithClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get decodes the value at key into dest.
func (c *RedisCache) Get(ctx context.Context, key string, dest any) (err error) {
	defer observe("get", time.Now(), &err)
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// Set stores value at key with expiration.
func (c *RedisCache) Set(ctx context.Context, key string, value any, expiration time.Duration) (err error) {
	defer observe("set", time.Now(), &err)
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, expiration).Err()
}

// SetNX stores value at key only when the key is absent and reports whether
// the write happened.
func (c *RedisCache) SetNX(ctx context.Context, key string, value any, expiration time.Duration) (ok bool, err error) {
	defer observe("setnx", time.Now(), &err)
	data, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	return c.client.SetNX(ctx, key, data, expiration).Result()
}

func (c *RedisCache) Delete(ctx context.Context, key string) (err error) {
	defer observe("delete", time.Now(), &err)
	return c.client.Del(ctx, key).Err()
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func observe(op string, start time.Time, err *error) {
	var e error
	if err != nil && !errors.Is(*err, ErrMiss) {
		e = *err
	}
	metrics.ObserveBusinessProcess("cache", op, start, e)
}

func registerClose(lc fx.Lifecycle, log *zap.SugaredLogger, c *RedisCache) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Infow("closing redis client")
			return c.Close()
		},
	})
}

var Module = fx.Options(
	fx.Provide(New),
	fx.Invoke(registerClose),
)
