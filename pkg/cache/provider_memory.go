package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value   []byte
	expires time.Time
	tags    []string
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expires.IsZero() && now.After(e.expires)
}

// MemoryProvider keeps entries in a map guarded by one mutex. It is the
// default provider; cached list totals are small and short-lived, so a
// plain map with opportunistic eviction is enough.
type MemoryProvider struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	byTag   map[string]map[string]struct{}
	options *Options
}

// NewMemoryProvider creates an in-memory provider. Passing nil options
// uses a 5 minute default TTL and a 10000 entry cap.
func NewMemoryProvider(opts *Options) *MemoryProvider {
	if opts == nil {
		opts = &Options{DefaultTTL: 5 * time.Minute, MaxSize: 10000}
	}
	return &MemoryProvider{
		entries: make(map[string]*memoryEntry),
		byTag:   make(map[string]map[string]struct{}),
		options: opts,
	}
}

func (m *MemoryProvider) Get(ctx context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if entry.expired(time.Now()) {
		m.remove(key, entry)
		return nil, false
	}
	return entry.value, true
}

func (m *MemoryProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return m.SetWithTags(ctx, key, value, ttl, nil)
}

func (m *MemoryProvider) SetWithTags(ctx context.Context, key string, value []byte, ttl time.Duration, tags []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ttl == 0 {
		ttl = m.options.DefaultTTL
	}
	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}

	if old, ok := m.entries[key]; ok {
		m.remove(key, old)
	} else if m.options.MaxSize > 0 && len(m.entries) >= m.options.MaxSize {
		m.evict()
	}

	m.entries[key] = &memoryEntry{value: value, expires: expires, tags: tags}
	for _, tag := range tags {
		if m.byTag[tag] == nil {
			m.byTag[tag] = make(map[string]struct{})
		}
		m.byTag[tag][key] = struct{}{}
	}
	return nil
}

func (m *MemoryProvider) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.entries[key]; ok {
		m.remove(key, entry)
	}
	return nil
}

func (m *MemoryProvider) DeleteByTag(ctx context.Context, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key := range m.byTag[tag] {
		if entry, ok := m.entries[key]; ok {
			m.remove(key, entry)
		}
	}
	delete(m.byTag, tag)
	return nil
}

func (m *MemoryProvider) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]*memoryEntry)
	m.byTag = make(map[string]map[string]struct{})
	return nil
}

// remove drops one entry and its tag index rows. Callers hold the lock.
func (m *MemoryProvider) remove(key string, entry *memoryEntry) {
	for _, tag := range entry.tags {
		if keys, ok := m.byTag[tag]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(m.byTag, tag)
			}
		}
	}
	delete(m.entries, key)
}

// evict frees room for one insert: expired entries go first, otherwise
// an arbitrary entry is dropped. Callers hold the lock.
func (m *MemoryProvider) evict() {
	now := time.Now()
	for key, entry := range m.entries {
		if entry.expired(now) {
			m.remove(key, entry)
			return
		}
	}
	for key, entry := range m.entries {
		m.remove(key, entry)
		return
	}
}
