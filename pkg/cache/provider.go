package cache

import (
	"context"
	"time"
)

// Provider is the storage behind the cached list totals. Entries are
// written with tags (one per resource table) so a mutation can drop
// every total for its table in one call.
type Provider interface {
	// Get returns the raw entry, or false when the key is absent or
	// expired.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores an entry. A zero ttl uses the provider default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetWithTags stores an entry and indexes it under each tag for
	// DeleteByTag.
	SetWithTags(ctx context.Context, key string, value []byte, ttl time.Duration, tags []string) error

	// Delete removes a single entry. Deleting an absent key is not an
	// error.
	Delete(ctx context.Context, key string) error

	// DeleteByTag removes every entry indexed under the tag.
	DeleteByTag(ctx context.Context, tag string) error

	// Close releases the provider's resources.
	Close() error
}

// Options configures a provider.
type Options struct {
	// DefaultTTL applies when Set is called with a zero ttl.
	DefaultTTL time.Duration

	// MaxSize caps the number of entries the memory provider holds.
	MaxSize int
}
