package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// MemcacheProvider is a Memcache implementation of the Provider interface.
type MemcacheProvider struct {
	client  *memcache.Client
	options *Options
}

// MemcacheConfig contains Memcache-specific configuration.
type MemcacheConfig struct {
	// Servers is a list of memcache server addresses (e.g., "localhost:11211")
	Servers []string

	// MaxIdleConns is the maximum number of idle connections (default: 2)
	MaxIdleConns int

	// Timeout for connection operations (default: 1 second)
	Timeout time.Duration

	// Options contains general cache options
	Options *Options
}

// NewMemcacheProvider creates a new Memcache cache provider.
func NewMemcacheProvider(config *MemcacheConfig) (*MemcacheProvider, error) {
	if config == nil {
		config = &MemcacheConfig{
			Servers: []string{"localhost:11211"},
		}
	}

	if len(config.Servers) == 0 {
		config.Servers = []string{"localhost:11211"}
	}

	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 2
	}

	if config.Timeout == 0 {
		config.Timeout = 1 * time.Second
	}

	if config.Options == nil {
		config.Options = &Options{
			DefaultTTL: 5 * time.Minute,
		}
	}

	client := memcache.New(config.Servers...)
	client.MaxIdleConns = config.MaxIdleConns
	client.Timeout = config.Timeout

	// Test connection
	if err := client.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to Memcache: %w", err)
	}

	return &MemcacheProvider{
		client:  client,
		options: config.Options,
	}, nil
}

// Get retrieves a value from the cache by key.
func (m *MemcacheProvider) Get(ctx context.Context, key string) ([]byte, bool) {
	item, err := m.client.Get(key)
	if err == memcache.ErrCacheMiss {
		return nil, false
	}
	if err != nil {
		return nil, false
	}
	return item.Value, true
}

// Set stores a value in the cache with the specified TTL.
func (m *MemcacheProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = m.options.DefaultTTL
	}

	item := &memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: int32(ttl.Seconds()),
	}

	return m.client.Set(item)
}

// SetWithTags stores a value and records the key under each tag so
// DeleteByTag can find it later. Memcache has no server-side tagging;
// the tag index is itself a cache item, so it shares the cache's
// eviction behavior.
func (m *MemcacheProvider) SetWithTags(ctx context.Context, key string, value []byte, ttl time.Duration, tags []string) error {
	if err := m.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	for _, tag := range tags {
		indexKey := tagIndexKey(tag)
		keys := m.tagIndex(indexKey)
		if !containsKey(keys, key) {
			keys = append(keys, key)
		}
		item := &memcache.Item{
			Key:   indexKey,
			Value: []byte(strings.Join(keys, "\n")),
		}
		if err := m.client.Set(item); err != nil {
			return err
		}
	}
	return nil
}

// DeleteByTag removes every key recorded under the tag, then the tag
// index itself.
func (m *MemcacheProvider) DeleteByTag(ctx context.Context, tag string) error {
	indexKey := tagIndexKey(tag)
	for _, key := range m.tagIndex(indexKey) {
		if err := m.Delete(ctx, key); err != nil {
			return err
		}
	}
	return m.Delete(ctx, indexKey)
}

func (m *MemcacheProvider) tagIndex(indexKey string) []string {
	item, err := m.client.Get(indexKey)
	if err != nil || len(item.Value) == 0 {
		return nil
	}
	return strings.Split(string(item.Value), "\n")
}

func tagIndexKey(tag string) string {
	return "__tag:" + tag
}

func containsKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

// Delete removes a key from the cache.
func (m *MemcacheProvider) Delete(ctx context.Context, key string) error {
	err := m.client.Delete(key)
	if err == memcache.ErrCacheMiss {
		return nil
	}
	return err
}

// Close is a no-op; the memcache client holds no closable state.
func (m *MemcacheProvider) Close() error {
	return nil
}
