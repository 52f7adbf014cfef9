// Package cache is the single owner of cached server views. Callers read and
// invalidate through typed keys and never mutate entries directly.
package cache

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrFetchCanceled is returned to callers waiting on a fetch that was
// canceled before it could write its result.
var ErrFetchCanceled = errors.New("cache: fetch canceled")

// NoExpiry keeps a fetched entry fresh until it is explicitly invalidated.
const NoExpiry time.Duration = 0

// FetchFunc loads a view from the server.
type FetchFunc func(ctx context.Context) (any, error)

// EventType describes what happened to a cached entry.
type EventType int

const (
	EventUpdated EventType = iota
	EventInvalidated
	EventRemoved
)

func (t EventType) String() string {
	switch t {
	case EventUpdated:
		return "updated"
	case EventInvalidated:
		return "invalidated"
	case EventRemoved:
		return "removed"
	}
	return "unknown"
}

// Event is delivered to subscribers after an entry changes.
type Event struct {
	Key  Key
	Type EventType
}

// Entry is a point-in-time copy of one cached view, as returned by Snapshot.
type Entry struct {
	Key       Key
	Value     any
	HasValue  bool
	Stale     bool
	UpdatedAt time.Time
}

type entry struct {
	value     any
	hasValue  bool
	stale     bool
	updatedAt time.Time
	// gen is bumped whenever in-flight fetches for this entry must be discarded.
	gen    uint64
	cancel context.CancelFunc
}

type subscriber struct {
	match Matcher
	fn    func(Event)
}

// Cache stores server views keyed by Key. Concurrent fetches of the same key
// share one request. Fetches run on a cache-owned context: a caller whose
// context ends stops waiting, but the shared request keeps going until the
// cache cancels it.
type Cache struct {
	mu      sync.Mutex
	ctx     context.Context
	stop    context.CancelFunc
	entries map[Key]*entry
	group   singleflight.Group
	subs    map[int]subscriber
	nextSub int
	now     func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces the clock used for staleness checks.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates an empty Cache.
func New(opts ...Option) *Cache {
	ctx, stop := context.WithCancel(context.Background())
	c := &Cache{
		ctx:     ctx,
		stop:    stop,
		entries: make(map[Key]*entry),
		subs:    make(map[int]subscriber),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close cancels every in-flight fetch.
func (c *Cache) Close() {
	c.stop()
}

// Get returns the cached value for key.
func (c *Cache) Get(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || !e.hasValue {
		return nil, false
	}
	return e.value, true
}

// Get returns the cached value for key as a T.
func Get[T any](c *Cache, key Key) (T, bool) {
	var zero T
	v, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// IsStale reports whether key is absent, invalidated or older than staleTime.
func (c *Cache) IsStale(key Key, staleTime time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return true
	}
	return c.staleLocked(e, staleTime)
}

func (c *Cache) staleLocked(e *entry, staleTime time.Duration) bool {
	if !e.hasValue || e.stale {
		return true
	}
	if staleTime > NoExpiry && c.now().Sub(e.updatedAt) >= staleTime {
		return true
	}
	return false
}

// Fetch returns the cached value when it is fresh and otherwise loads it with fn.
func (c *Cache) Fetch(ctx context.Context, key Key, staleTime time.Duration, fn FetchFunc) (any, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && !c.staleLocked(e, staleTime) {
		v := e.value
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()
	return c.fetch(ctx, key, fn)
}

// Refetch always loads key with fn, replacing the cached value on success.
func (c *Cache) Refetch(ctx context.Context, key Key, fn FetchFunc) (any, error) {
	return c.fetch(ctx, key, fn)
}

func (c *Cache) fetch(ctx context.Context, key Key, fn FetchFunc) (any, error) {
	ch := c.group.DoChan(key.String(), func() (any, error) {
		c.mu.Lock()
		e := c.entryLocked(key)
		gen := e.gen
		fctx, cancel := context.WithCancel(c.ctx)
		e.cancel = cancel
		c.mu.Unlock()
		defer cancel()

		v, err := fn(fctx)

		c.mu.Lock()
		if cur, ok := c.entries[key]; !ok || cur != e || e.gen != gen {
			c.mu.Unlock()
			return nil, ErrFetchCanceled
		}
		e.cancel = nil
		if err != nil {
			c.mu.Unlock()
			return nil, err
		}
		e.value = v
		e.hasValue = true
		e.stale = false
		e.updatedAt = c.now()
		events := c.eventsLocked([]Key{key}, EventUpdated)
		c.mu.Unlock()
		c.emit(events)
		return v, nil
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) entryLocked(key Key) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}
	return e
}

// Keys returns every cached key selected by m, in a stable order.
func (c *Cache) Keys(m Matcher) []Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keysLocked(m)
}

func (c *Cache) keysLocked(m Matcher) []Key {
	var keys []Key
	for k := range c.entries {
		if m(k) {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// Set writes value for key and marks it fresh.
func (c *Cache) Set(key Key, value any) {
	c.mu.Lock()
	e := c.entryLocked(key)
	e.value = value
	e.hasValue = true
	e.stale = false
	e.updatedAt = c.now()
	events := c.eventsLocked([]Key{key}, EventUpdated)
	c.mu.Unlock()
	c.emit(events)
}

// Update rewrites every cached value selected by m with fn. Entries without a
// value are skipped. fn must return a new value rather than mutate its input,
// so earlier snapshots stay intact.
func (c *Cache) Update(m Matcher, fn func(key Key, old any) any) {
	c.mu.Lock()
	var changed []Key
	for _, k := range c.keysLocked(m) {
		e := c.entries[k]
		if !e.hasValue {
			continue
		}
		e.value = fn(k, e.value)
		changed = append(changed, k)
	}
	events := c.eventsLocked(changed, EventUpdated)
	c.mu.Unlock()
	c.emit(events)
}

// Cancel aborts in-flight fetches for every key selected by m. Their results,
// if they still arrive, are discarded.
func (c *Cache) Cancel(m Matcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range c.keysLocked(m) {
		c.cancelLocked(k, c.entries[k])
	}
}

func (c *Cache) cancelLocked(k Key, e *entry) {
	e.gen++
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	c.group.Forget(k.String())
}

// Snapshot copies every entry selected by m.
func (c *Cache) Snapshot(m Matcher) []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := c.keysLocked(m)
	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		e := c.entries[k]
		out = append(out, Entry{
			Key:       k,
			Value:     e.value,
			HasValue:  e.hasValue,
			Stale:     e.stale,
			UpdatedAt: e.updatedAt,
		})
	}
	return out
}

// Restore overwrites each snapshotted entry verbatim.
func (c *Cache) Restore(snapshot []Entry) {
	c.mu.Lock()
	keys := make([]Key, 0, len(snapshot))
	for _, s := range snapshot {
		e := c.entryLocked(s.Key)
		e.value = s.Value
		e.hasValue = s.HasValue
		e.stale = s.Stale
		e.updatedAt = s.UpdatedAt
		keys = append(keys, s.Key)
	}
	events := c.eventsLocked(keys, EventUpdated)
	c.mu.Unlock()
	c.emit(events)
}

// Invalidate marks every entry selected by m as stale so the next read refetches.
func (c *Cache) Invalidate(m Matcher) {
	c.mu.Lock()
	keys := c.keysLocked(m)
	for _, k := range keys {
		c.entries[k].stale = true
	}
	events := c.eventsLocked(keys, EventInvalidated)
	c.mu.Unlock()
	c.emit(events)
}

// Remove drops every entry selected by m, canceling in-flight fetches.
func (c *Cache) Remove(m Matcher) {
	c.mu.Lock()
	keys := c.keysLocked(m)
	for _, k := range keys {
		c.cancelLocked(k, c.entries[k])
		delete(c.entries, k)
	}
	events := c.eventsLocked(keys, EventRemoved)
	c.mu.Unlock()
	c.emit(events)
}

// Subscribe registers fn for events on keys selected by m. fn runs on the
// goroutine that changed the cache, outside the cache lock. The returned
// function unsubscribes.
func (c *Cache) Subscribe(m Matcher, fn func(Event)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = subscriber{match: m, fn: fn}
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

type delivery struct {
	fn func(Event)
	ev Event
}

func (c *Cache) eventsLocked(keys []Key, typ EventType) []delivery {
	if len(c.subs) == 0 || len(keys) == 0 {
		return nil
	}
	ids := make([]int, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	var out []delivery
	for _, k := range keys {
		for _, id := range ids {
			s := c.subs[id]
			if s.match(k) {
				out = append(out, delivery{fn: s.fn, ev: Event{Key: k, Type: typ}})
			}
		}
	}
	return out
}

func (c *Cache) emit(deliveries []delivery) {
	for _, d := range deliveries {
		d.fn(d.ev)
	}
}
