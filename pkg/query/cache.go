// Package query provides a keyed read-through cache for backend reads with
// per-key single-flight, staleness windows, and explicit invalidation.
package query

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/docshelf/docshelf/internal/logging"
	"github.com/docshelf/docshelf/internal/metrics"
)

// ErrClosed is returned by reads on a closed cache.
var ErrClosed = errors.New("query cache closed")

// Status is the fetch state of an entry.
type Status int

const (
	StatusIdle Status = iota
	StatusFetching
	StatusResolved
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusFetching:
		return "fetching"
	case StatusResolved:
		return "resolved"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// State is a snapshot of one cache entry.
type State struct {
	Key         Key
	Data        any
	HasData     bool
	Status      Status
	Err         error // error of the last fetch, nil once a fetch succeeds
	UpdatedAt   time.Time
	ErrorAt     time.Time
	Invalidated bool
}

// IsLoading reports a fetch in progress with nothing to show yet.
func (s State) IsLoading() bool {
	return s.Status == StatusFetching && !s.HasData
}

// IsFetching reports a fetch in progress, including background refreshes.
func (s State) IsFetching() bool {
	return s.Status == StatusFetching
}

// Fetcher loads the data for a key.
type Fetcher func(ctx context.Context) (any, error)

// Options configures a Cache.
type Options struct {
	// StaleTime is how long resolved data is served without refetching.
	StaleTime time.Duration
	// KindStaleTime overrides StaleTime per kind.
	KindStaleTime map[Kind]time.Duration
	// Now is the clock; time.Now when nil.
	Now func() time.Time
}

// ReadOption tunes a single read.
type ReadOption func(*readOptions)

type readOptions struct {
	staleTime *time.Duration
}

// WithStaleTime overrides the stale time for one read.
func WithStaleTime(d time.Duration) ReadOption {
	return func(o *readOptions) { o.staleTime = &d }
}

type entry struct {
	state  State
	gen    uint64 // bumped on every invalidation
	flight uint64 // registered in-flight fetch, 0 when none
}

// Cache holds one entry per key. Entries live until Close.
type Cache struct {
	opts  Options
	now   func() time.Time
	group singleflight.Group

	mu         sync.Mutex
	entries    map[Key]*entry
	nextFlight uint64
	closed     bool

	events *broadcaster
}

// New creates a cache.
func New(opts Options) *Cache {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Cache{
		opts:    opts,
		now:     now,
		entries: make(map[Key]*entry),
		events:  newBroadcaster(),
	}
}

func (c *Cache) staleTime(key Key, ro readOptions) time.Duration {
	if ro.staleTime != nil {
		return *ro.staleTime
	}
	if d, ok := c.opts.KindStaleTime[key.Kind]; ok {
		return d
	}
	return c.opts.StaleTime
}

func (e *entry) fresh(now time.Time, stale time.Duration) bool {
	if e.state.Status != StatusResolved || e.state.Invalidated {
		return false
	}
	return now.Sub(e.state.UpdatedAt) < stale
}

func flightKey(key Key, id uint64) string {
	return fmt.Sprintf("%s#%d", key, id)
}

// acquire returns the entry state when it is fresh, or a channel that
// delivers the outcome of the fetch serving key. It starts that fetch when
// none is registered. Must be called with c.mu held.
func (c *Cache) acquire(ctx context.Context, key Key, fetch Fetcher, opts []ReadOption) (State, <-chan singleflight.Result, bool) {
	var ro readOptions
	for _, opt := range opts {
		opt(&ro)
	}

	e, ok := c.entries[key]
	if !ok {
		e = &entry{state: State{Key: key}}
		c.entries[key] = e
		metrics.SetCacheEntries(len(c.entries))
	}
	if e.fresh(c.now(), c.staleTime(key, ro)) {
		metrics.RecordCacheLookup(string(key.Kind), "hit")
		return e.state, nil, true
	}

	if e.flight != 0 {
		metrics.RecordCacheLookup(string(key.Kind), "shared")
		ch := c.group.DoChan(flightKey(key, e.flight), func() (any, error) {
			st, _ := c.Peek(key)
			return st, nil
		})
		return e.state, ch, false
	}

	metrics.RecordCacheLookup(string(key.Kind), "miss")
	c.nextFlight++
	id, gen := c.nextFlight, e.gen
	e.flight = id
	e.state.Status = StatusFetching
	c.events.publish(Event{Type: EventFetching, Key: key, State: e.state})

	// The fetch outlives any single caller.
	fctx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(flightKey(key, id), func() (any, error) {
		return c.run(fctx, key, id, gen, fetch), nil
	})
	return e.state, ch, false
}

// run performs the fetch and stores the outcome. Completion order wins for
// the data; an invalidation that happened after the fetch started stays in
// effect.
func (c *Cache) run(ctx context.Context, key Key, id, gen uint64, fetch Fetcher) State {
	start := c.now()
	data, err := safeFetch(ctx, fetch)
	metrics.RecordCacheFetch(string(key.Kind), c.now().Sub(start), err == nil)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || c.closed {
		// Cache closed while fetching.
		return State{Key: key, Data: data, HasData: err == nil, Err: err}
	}

	now := c.now()
	if err != nil {
		e.state.Err = err
		e.state.ErrorAt = now
	} else {
		e.state.Data = data
		e.state.HasData = true
		e.state.Err = nil
		e.state.UpdatedAt = now
		e.state.Invalidated = gen != e.gen
	}

	evType := EventResolved
	if err != nil {
		evType = EventFailed
		logging.Debug("Query failed", zap.String("key", key.String()), zap.Error(err))
	}

	if e.flight == id {
		e.flight = 0
	}
	// A newer fetch registered after an invalidation keeps the entry fetching.
	if e.flight == 0 {
		if err != nil {
			e.state.Status = StatusFailed
		} else {
			e.state.Status = StatusResolved
		}
	}
	c.events.publish(Event{Type: evType, Key: key, State: e.state})
	return e.state
}

func safeFetch(ctx context.Context, fetch Fetcher) (data any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetch panicked: %v", r)
		}
	}()
	return fetch(ctx)
}

// Query returns the data for key, fetching it when missing, stale, or
// invalidated. Concurrent queries for the same key share one fetch. If ctx
// ends first the current snapshot is returned and the fetch keeps running.
func (c *Cache) Query(ctx context.Context, key Key, fetch Fetcher, opts ...ReadOption) State {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return State{Key: key, Status: StatusFailed, Err: ErrClosed}
	}
	st, ch, fresh := c.acquire(ctx, key, fetch, opts)
	c.mu.Unlock()
	if fresh {
		return st
	}

	select {
	case res := <-ch:
		return res.Val.(State)
	case <-ctx.Done():
		cur, _ := c.Peek(key)
		return cur
	}
}

// Prefetch starts a fetch for key when needed and returns the current
// snapshot without waiting.
func (c *Cache) Prefetch(key Key, fetch Fetcher, opts ...ReadOption) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return State{Key: key, Status: StatusFailed, Err: ErrClosed}
	}
	st, _, _ := c.acquire(context.Background(), key, fetch, opts)
	return st
}

// Peek returns the entry for key without fetching.
func (c *Cache) Peek(key Key) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return State{Key: key}, false
	}
	return e.state, true
}

// Invalidate marks every entry matched by any filter as stale and detaches
// its in-flight fetch, so the next read starts a new one. Filters that match
// nothing are ignored; no entries are created. Returns the number of entries
// invalidated.
func (c *Cache) Invalidate(filters ...Filter) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	perKind := make(map[Kind]int)
	for key, e := range c.entries {
		if !matchesAny(filters, key) {
			continue
		}
		c.invalidateLocked(key, e)
		perKind[key.Kind]++
		n++
	}
	for kind, count := range perKind {
		metrics.RecordCacheInvalidation(string(kind), count)
	}
	if n > 0 {
		logging.Debug("Invalidated cache entries", zap.Int("count", n), zap.Any("filters", filterStrings(filters)))
	}
	return n
}

// InvalidateAll marks every entry stale.
func (c *Cache) InvalidateAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.entries {
		c.invalidateLocked(key, e)
		metrics.RecordCacheInvalidation(string(key.Kind), 1)
	}
	return len(c.entries)
}

func (c *Cache) invalidateLocked(key Key, e *entry) {
	e.gen++
	e.state.Invalidated = true
	if e.flight != 0 {
		c.group.Forget(flightKey(key, e.flight))
		e.flight = 0
	}
	c.events.publish(Event{Type: EventInvalidated, Key: key, State: e.state})
}

func matchesAny(filters []Filter, key Key) bool {
	for _, f := range filters {
		if f.Matches(key) {
			return true
		}
	}
	return false
}

func filterStrings(filters []Filter) []string {
	out := make([]string, len(filters))
	for i, f := range filters {
		out[i] = f.String()
	}
	return out
}

// Subscribe returns a channel receiving every entry transition. Slow
// subscribers miss events. Call Unsubscribe when done.
func (c *Cache) Subscribe() <-chan Event {
	return c.events.subscribe()
}

// Unsubscribe removes a subscriber and closes its channel.
func (c *Cache) Unsubscribe(ch <-chan Event) {
	c.events.unsubscribe(ch)
}

// Subscribers returns the number of active subscribers.
func (c *Cache) Subscribers() int {
	return c.events.count()
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close drops all entries and closes subscriber channels. Fetches still
// running complete without touching the cache.
func (c *Cache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.entries = make(map[Key]*entry)
	c.mu.Unlock()

	metrics.SetCacheEntries(0)
	c.events.close()
}
