package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sentryops/account-security/internal/util/logger"
)

// RedisConfig defines configuration for the Redis client.
type RedisConfig struct {
	Address      string        `yaml:"address"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// RedisStats counts cache traffic since startup.
type RedisStats struct {
	Commands uint64
	Hits     uint64
	Misses   uint64
	Errors   uint64
}

// RedisClient wraps redis.Client with JSON helpers, tracing, and stats.
type RedisClient struct {
	*redis.Client
	tracer trace.Tracer

	commands uint64
	hits     uint64
	misses   uint64
	errors   uint64
}

// NewRedisClient connects and pings the server before returning.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*RedisClient, error) {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 10
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.Infof("Connected to Redis at %s (db %d)", cfg.Address, cfg.DB)
	return &RedisClient{
		Client: rdb,
		tracer: otel.Tracer("redis-client"),
	}, nil
}

// SetJSON marshals value and stores it under key with the given TTL.
func (c *RedisClient) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	ctx, span := c.tracer.Start(ctx, "redis.SetJSON",
		trace.WithAttributes(attribute.String("redis.key", key)))
	defer span.End()

	atomic.AddUint64(&c.commands, 1)
	data, err := json.Marshal(value)
	if err != nil {
		atomic.AddUint64(&c.errors, 1)
		return err
	}
	if err := c.Set(ctx, key, data, ttl).Err(); err != nil {
		atomic.AddUint64(&c.errors, 1)
		return err
	}
	return nil
}

// GetJSON loads key into dest. Returns redis.Nil when the key is absent.
func (c *RedisClient) GetJSON(ctx context.Context, key string, dest interface{}) error {
	ctx, span := c.tracer.Start(ctx, "redis.GetJSON",
		trace.WithAttributes(attribute.String("redis.key", key)))
	defer span.End()

	atomic.AddUint64(&c.commands, 1)
	data, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			atomic.AddUint64(&c.misses, 1)
		} else {
			atomic.AddUint64(&c.errors, 1)
		}
		return err
	}
	atomic.AddUint64(&c.hits, 1)
	return json.Unmarshal(data, dest)
}

// Stats returns a snapshot of the client counters.
func (c *RedisClient) Stats() RedisStats {
	return RedisStats{
		Commands: atomic.LoadUint64(&c.commands),
		Hits:     atomic.LoadUint64(&c.hits),
		Misses:   atomic.LoadUint64(&c.misses),
		Errors:   atomic.LoadUint64(&c.errors),
	}
}

// Healthy reports whether the server answers a ping within the timeout.
func (c *RedisClient) Healthy(ctx context.Context, timeout time.Duration) bool {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.Ping(pingCtx).Err() == nil
}
