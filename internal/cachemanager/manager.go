// Package cachemanager provides typed caches used to avoid re-reading and
// re-validating configuration documents that have not changed.
package cachemanager

import (
	"context"
	"time"
)

type CacheManager[K comparable, V any] interface {
	Get(ctx context.Context, key K) (V, bool)
	Set(ctx context.Context, key K, value V, ttl time.Duration)
	Delete(ctx context.Context, keys ...K) error
	Flush(ctx context.Context) error
}

// Key is satisfied by identifiers that render to a stable string.
type Key interface {
	comparable
	String() string
}
