package cache

import (
	"fmt"
	"time"

	"github.com/viewspec/viewspec/pkg/config"
)

var defaultProvider Provider

// Initialize installs the package-level provider.
// If not called, the package falls back to an in-memory provider.
func Initialize(provider Provider) {
	defaultProvider = provider
}

// Default returns the package-level provider, creating an in-memory one
// on first use.
func Default() Provider {
	if defaultProvider == nil {
		defaultProvider = NewMemoryProvider(&Options{
			DefaultTTL: 5 * time.Minute,
			MaxSize:    10000,
		})
	}
	return defaultProvider
}

// NewProviderFromConfig builds a provider from application configuration.
func NewProviderFromConfig(cfg config.CacheConfig) (Provider, error) {
	switch cfg.Provider {
	case "memory", "":
		return NewMemoryProvider(&Options{
			DefaultTTL: 5 * time.Minute,
			MaxSize:    10000,
		}), nil
	case "redis":
		provider, err := NewRedisProvider(&RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Redis provider: %w", err)
		}
		return provider, nil
	case "memcache":
		provider, err := NewMemcacheProvider(&MemcacheConfig{
			Servers:      cfg.Memcache.Servers,
			MaxIdleConns: cfg.Memcache.MaxIdleConns,
			Timeout:      cfg.Memcache.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Memcache provider: %w", err)
		}
		return provider, nil
	default:
		return nil, fmt.Errorf("unknown cache provider: %s", cfg.Provider)
	}
}

// Close closes the package-level provider.
func Close() error {
	if defaultProvider != nil {
		return defaultProvider.Close()
	}
	return nil
}
