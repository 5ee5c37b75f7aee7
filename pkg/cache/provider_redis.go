package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisProvider stores entries as plain keys and keeps one set per tag
// listing the keys written under it. DeleteByTag reads the set, deletes
// the members, then the set itself. Members pointing at already-expired
// keys delete nothing, which is fine.
type RedisProvider struct {
	client  *redis.Client
	options *Options
}

// RedisConfig carries the connection settings for the redis provider.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
	Options  *Options
}

// NewRedisProvider connects to redis and verifies the connection.
func NewRedisProvider(cfg *RedisConfig) (*RedisProvider, error) {
	if cfg == nil {
		cfg = &RedisConfig{}
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6379
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = 10
	}
	if cfg.Options == nil {
		cfg.Options = &Options{DefaultTTL: 5 * time.Minute}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &RedisProvider{client: client, options: cfg.Options}, nil
}

func (r *RedisProvider) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return val, true
}

func (r *RedisProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = r.options.DefaultTTL
	}
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisProvider) SetWithTags(ctx context.Context, key string, value []byte, ttl time.Duration, tags []string) error {
	if ttl == 0 {
		ttl = r.options.DefaultTTL
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, key, value, ttl)
	for _, tag := range tags {
		set := redisTagKey(tag)
		pipe.SAdd(ctx, set, key)
		if ttl > 0 {
			// The set outlives its members so late invalidations still
			// find them.
			pipe.Expire(ctx, set, ttl+time.Hour)
		}
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisProvider) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisProvider) DeleteByTag(ctx context.Context, tag string) error {
	set := redisTagKey(tag)
	keys, err := r.client.SMembers(ctx, set).Result()
	if err != nil {
		return err
	}
	return r.client.Del(ctx, append(keys, set)...).Err()
}

func (r *RedisProvider) Close() error {
	return r.client.Close()
}

func redisTagKey(tag string) string {
	return "cache:tag:" + tag
}
