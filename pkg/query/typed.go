package query

import (
	"context"
	"fmt"
	"time"

	"github.com/docshelf/docshelf/internal/metrics"
)

// Snapshot is a typed view of a cache entry.
type Snapshot[T any] struct {
	Key         Key
	Data        T
	HasData     bool
	Status      Status
	Err         error
	UpdatedAt   time.Time
	Invalidated bool
}

// IsLoading reports a fetch in progress with nothing to show yet.
func (s Snapshot[T]) IsLoading() bool {
	return s.Status == StatusFetching && !s.HasData
}

// IsFetching reports a fetch in progress.
func (s Snapshot[T]) IsFetching() bool {
	return s.Status == StatusFetching
}

func typed[T any](st State) Snapshot[T] {
	snap := Snapshot[T]{
		Key:         st.Key,
		Status:      st.Status,
		Err:         st.Err,
		UpdatedAt:   st.UpdatedAt,
		Invalidated: st.Invalidated,
	}
	if st.HasData {
		v, ok := st.Data.(T)
		if !ok {
			snap.Err = fmt.Errorf("cache entry %s holds %T", st.Key, st.Data)
			return snap
		}
		snap.Data = v
		snap.HasData = true
	}
	return snap
}

func erase[T any](fetch func(ctx context.Context) (T, error)) Fetcher {
	return func(ctx context.Context) (any, error) {
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}

// Use is the typed form of Cache.Query.
func Use[T any](ctx context.Context, c *Cache, key Key, fetch func(ctx context.Context) (T, error), opts ...ReadOption) Snapshot[T] {
	return typed[T](c.Query(ctx, key, erase(fetch), opts...))
}

// PrefetchAs is the typed form of Cache.Prefetch.
func PrefetchAs[T any](c *Cache, key Key, fetch func(ctx context.Context) (T, error), opts ...ReadOption) Snapshot[T] {
	return typed[T](c.Prefetch(key, erase(fetch), opts...))
}

// PeekAs is the typed form of Cache.Peek.
func PeekAs[T any](c *Cache, key Key) (Snapshot[T], bool) {
	st, ok := c.Peek(key)
	return typed[T](st), ok
}

// Mutate runs a remote mutation and, only when it succeeds, invalidates the
// entries matched by filters. A failed mutation leaves the cache untouched.
func Mutate[T any](ctx context.Context, c *Cache, name string, run func(ctx context.Context) (T, error), filters ...Filter) (T, error) {
	v, err := run(ctx)
	metrics.RecordMutation(name, err == nil)
	if err != nil {
		return v, err
	}
	c.Invalidate(filters...)
	return v, nil
}
