package cachemanager

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type slot int

func (s slot) String() string { return fmt.Sprintf("%06d", int(s)) }

type name string

func (n name) String() string { return string(n) }

var _ CacheManager[slot, string] = (*InMemoryCacheManager[slot, string])(nil)

func TestNewInMemoryCacheManager(t *testing.T) {
	require.NotPanics(t, func() {
		NewInMemoryCacheManager[name, string]("test", DefaultExpiration, DefaultCleanupInterval)
	})
}

type ExampleStruct struct {
	ID   int
	Name string
}

func TestNewInMemoryCacheManager_GetExistingValue_StructType(t *testing.T) {
	cache := NewInMemoryCacheManager[slot, ExampleStruct]("documents", DefaultExpiration, DefaultCleanupInterval)
	example := ExampleStruct{
		Name: "alpha",
	}
	cache.Set(context.Background(), 1, example, DefaultExpiration)

	got, ok := cache.Get(context.Background(), 1)
	require.True(t, ok)
	require.Equal(t, example, got)
}

func TestNewInMemoryCacheManager_GetExistingValue(t *testing.T) {
	cache := NewInMemoryCacheManager[name, string]("documents", DefaultExpiration, DefaultCleanupInterval)
	cache.Set(context.Background(), "alpha", "000001", DefaultExpiration)

	got, ok := cache.Get(context.Background(), "alpha")
	require.True(t, ok)
	require.Equal(t, "000001", got)
}

func TestNewInMemoryCacheManager_KeysAreNamespaced(t *testing.T) {
	cache := NewInMemoryCacheManager[slot, string]("documents", DefaultExpiration, DefaultCleanupInterval)
	cache.Set(context.Background(), 7, "alpha", DefaultExpiration)

	_, found := cache.cache.Get("documents:000007")
	require.True(t, found)
	_, found = cache.cache.Get("000007")
	require.False(t, found)
	require.Equal(t, 1, cache.Len())
}

func TestNewInMemoryCacheManager_GetWithNoExistingValue(t *testing.T) {
	cache := NewInMemoryCacheManager[name, string]("documents", DefaultExpiration, DefaultCleanupInterval)

	got, ok := cache.Get(context.Background(), "alpha")
	require.False(t, ok)
	require.Empty(t, got)
}

func TestNewInMemoryCacheManager_GetWithExistingInvalidValueType(t *testing.T) {
	cache := NewInMemoryCacheManager[name, string]("documents", DefaultExpiration, DefaultCleanupInterval)

	cache.cache.Set("documents:alpha", 123, DefaultExpiration)

	got, ok := cache.Get(context.Background(), "alpha")
	require.False(t, ok)
	require.Empty(t, got)
}

func TestNewInMemoryCacheManager_Expires(t *testing.T) {
	cache := NewInMemoryCacheManager[name, string]("documents", DefaultExpiration, DefaultCleanupInterval)
	cache.Set(context.Background(), "alpha", "000001", time.Millisecond)

	require.Eventually(t, func() bool {
		_, ok := cache.Get(context.Background(), "alpha")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestNewInMemoryCacheManager_DeleteWithNoKeysDoesNothing(t *testing.T) {
	cache := NewInMemoryCacheManager[name, string]("documents", DefaultExpiration, DefaultCleanupInterval)

	err := cache.Delete(context.Background())
	require.NoError(t, err)
}

func TestNewInMemoryCacheManager_DeleteExistingValue(t *testing.T) {
	cache := NewInMemoryCacheManager[name, string]("documents", DefaultExpiration, DefaultCleanupInterval)
	cache.Set(context.Background(), "alpha", "000001", DefaultExpiration)

	got, ok := cache.Get(context.Background(), "alpha")
	require.True(t, ok)
	require.Equal(t, "000001", got)

	err := cache.Delete(context.Background(), "alpha")
	require.NoError(t, err)

	got, ok = cache.Get(context.Background(), "alpha")
	require.False(t, ok)
	require.Equal(t, "", got)
}

func TestNewInMemoryCacheManager_Flush(t *testing.T) {
	cache := NewInMemoryCacheManager[name, string]("documents", DefaultExpiration, DefaultCleanupInterval)
	cache.Set(context.Background(), "alpha", "000001", DefaultExpiration)

	got, ok := cache.Get(context.Background(), "alpha")
	require.True(t, ok)
	require.Equal(t, "000001", got)

	err := cache.Flush(context.Background())
	require.NoError(t, err)

	got, ok = cache.Get(context.Background(), "alpha")
	require.False(t, ok)
	require.Equal(t, "", got)
	require.Zero(t, cache.Len())
}
