package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryProviderRoundTrip(t *testing.T) {
	p := NewMemoryProvider(nil)
	ctx := context.Background()

	_, ok := p.Get(ctx, "missing")
	assert.False(t, ok)

	require.NoError(t, p.Set(ctx, "k", []byte("v"), time.Minute))
	got, ok := p.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, p.Delete(ctx, "k"))
	_, ok = p.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryProviderExpiry(t *testing.T) {
	p := NewMemoryProvider(nil)
	ctx := context.Background()

	require.NoError(t, p.Set(ctx, "k", []byte("v"), time.Nanosecond))
	time.Sleep(5 * time.Millisecond)

	_, ok := p.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryProviderDeleteByTag(t *testing.T) {
	p := NewMemoryProvider(nil)
	ctx := context.Background()

	require.NoError(t, p.SetWithTags(ctx, "posts:a", []byte("1"), time.Minute, []string{"table:posts"}))
	require.NoError(t, p.SetWithTags(ctx, "posts:b", []byte("2"), time.Minute, []string{"table:posts"}))
	require.NoError(t, p.SetWithTags(ctx, "tags:a", []byte("3"), time.Minute, []string{"table:tags"}))

	require.NoError(t, p.DeleteByTag(ctx, "table:posts"))

	_, ok := p.Get(ctx, "posts:a")
	assert.False(t, ok)
	_, ok = p.Get(ctx, "posts:b")
	assert.False(t, ok)
	_, ok = p.Get(ctx, "tags:a")
	assert.True(t, ok, "other tables keep their totals")
}

func TestMemoryProviderOverwriteReplacesTags(t *testing.T) {
	p := NewMemoryProvider(nil)
	ctx := context.Background()

	require.NoError(t, p.SetWithTags(ctx, "k", []byte("1"), time.Minute, []string{"table:posts"}))
	require.NoError(t, p.SetWithTags(ctx, "k", []byte("2"), time.Minute, []string{"table:tags"}))

	require.NoError(t, p.DeleteByTag(ctx, "table:posts"))
	got, ok := p.Get(ctx, "k")
	require.True(t, ok, "old tag no longer indexes the key")
	assert.Equal(t, []byte("2"), got)
}

func TestMemoryProviderEvictsAtCapacity(t *testing.T) {
	p := NewMemoryProvider(&Options{DefaultTTL: time.Minute, MaxSize: 2})
	ctx := context.Background()

	require.NoError(t, p.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, p.Set(ctx, "b", []byte("2"), 0))
	require.NoError(t, p.Set(ctx, "c", []byte("3"), 0))

	kept := 0
	for _, key := range []string{"a", "b", "c"} {
		if _, ok := p.Get(ctx, key); ok {
			kept++
		}
	}
	assert.Equal(t, 2, kept)
}
