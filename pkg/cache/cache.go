package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type Options struct {
	TTL                  time.Duration
	StaleWhileRevalidate time.Duration
	NegativeTTL          time.Duration
	MaxEntries           int
}

// MetricsHooks are optional callbacks fired with the cache name as label.
type MetricsHooks struct {
	OnHit   func(name string)
	OnMiss  func(name string)
	OnStale func(name string)
}

type entry[V any] struct {
	value     V
	err       error
	expiresAt time.Time
	staleAt   time.Time
	negative  bool
}

// Cache is a bounded TTL cache with stale-while-revalidate and singleflight
// loading. Eviction is FIFO on insertion order.
type Cache[V any] struct {
	name    string
	mu      sync.RWMutex
	items   map[string]*entry[V]
	order   []string
	opts    Options
	metrics MetricsHooks
	sf      singleflight.Group
}

// Loader fetches a value on miss. ok=false with a non-nil error is cached as
// a negative entry when NegativeTTL is set.
type Loader[V any] func(ctx context.Context, key string) (V, bool, error)

type loadResult[V any] struct {
	val V
	ok  bool
	err error
}

func New[V any](name string, opts Options, hooks MetricsHooks) *Cache[V] {
	return &Cache[V]{
		name:    name,
		items:   make(map[string]*entry[V]),
		order:   make([]string, 0, 128),
		opts:    opts,
		metrics: hooks,
	}
}

func (c *Cache[V]) Get(ctx context.Context, key string, loader Loader[V]) (V, bool, error) {
	var zero V
	now := time.Now()

	c.mu.RLock()
	e, found := c.items[key]
	c.mu.RUnlock()

	if found {
		switch {
		case now.Before(e.expiresAt):
			c.fire(c.metrics.OnHit)
			if e.negative {
				return zero, false, e.err
			}
			return e.value, true, nil
		case now.Before(e.staleAt):
			c.fire(c.metrics.OnStale)
			refreshCtx := context.WithoutCancel(ctx)
			go func() {
				_, _, _ = c.sf.Do("refresh:"+key, func() (interface{}, error) {
					val, ok, err := loader(refreshCtx, key)
					c.store(key, val, ok, err)
					return nil, nil
				})
			}()
			if e.negative {
				return zero, false, e.err
			}
			return e.value, true, nil
		default:
			c.Delete(key)
		}
	}

	c.fire(c.metrics.OnMiss)
	result, _, _ := c.sf.Do(key, func() (interface{}, error) {
		val, ok, err := loader(ctx, key)
		c.store(key, val, ok, err)
		return loadResult[V]{val: val, ok: ok, err: err}, nil
	})
	res := result.(loadResult[V])
	if !res.ok {
		return zero, false, res.err
	}
	return res.val, true, nil
}

func (c *Cache[V]) store(key string, val V, ok bool, err error) {
	now := time.Now()
	e := &entry[V]{}
	if ok {
		e.value = val
		e.expiresAt = now.Add(c.opts.TTL)
		e.staleAt = e.expiresAt.Add(c.opts.StaleWhileRevalidate)
	} else {
		if c.opts.NegativeTTL <= 0 {
			return
		}
		e.err = err
		e.negative = true
		e.expiresAt = now.Add(c.opts.NegativeTTL)
		e.staleAt = e.expiresAt
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.put(key, e)
}

func (c *Cache[V]) put(key string, e *entry[V]) {
	if _, exists := c.items[key]; !exists {
		c.order = append(c.order, key)
	}
	c.items[key] = e
	if c.opts.MaxEntries <= 0 {
		return
	}
	for len(c.items) > c.opts.MaxEntries && len(c.order) > 0 {
		victim := c.order[0]
		c.order = c.order[1:]
		delete(c.items, victim)
	}
}

// Peek returns a cached value without triggering a load. Stale entries are allowed.
func (c *Cache[V]) Peek(key string) (V, bool) {
	var zero V
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.items[key]
	if !ok || e.negative || time.Now().After(e.staleAt) {
		return zero, false
	}
	return e.value, true
}

func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[key]; !ok {
		return
	}
	delete(c.items, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Purge drops every entry.
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	c.items = make(map[string]*entry[V])
	c.order = c.order[:0]
	c.mu.Unlock()
}

// Len reports the number of entries, including stale ones.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *Cache[V]) fire(hook func(string)) {
	if hook != nil {
		hook(c.name)
	}
}
