package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/juju/clock"
)

// ResourceCache memoizes resolved descriptors keyed by
// (name, library, locale prefix, contracts). It has no capacity bound; entries
// leave only through Clear or by going stale and being read.
type ResourceCache[T Entry] struct {
	entries     sync.Map
	clock       clock.Clock
	checkPeriod time.Duration
	disabled    bool

	hits      atomic.Uint64
	misses    atomic.Uint64
	hitTotal  *metrics.Counter
	missTotal *metrics.Counter
}

// New creates a cache whose entries are re-checked every checkPeriodMinutes.
// Zero caches forever and a negative value disables caching.
func New[T Entry](checkPeriodMinutes int, clk clock.Clock) *ResourceCache[T] {
	if clk == nil {
		clk = clock.WallClock
	}
	return &ResourceCache[T]{
		clock:       clk,
		checkPeriod: time.Duration(checkPeriodMinutes) * time.Minute,
		disabled:    checkPeriodMinutes < 0,
		hitTotal:    metrics.GetOrCreateCounter("resource_cache_hits_total"),
		missTotal:   metrics.GetOrCreateCounter("resource_cache_misses_total"),
	}
}

// Add associates info with its key unless a fresh entry is already present.
// It returns the descriptor that ends up cached, which is the incumbent when
// another caller won the race.
func (c *ResourceCache[T]) Add(info T, contracts []string) T {
	if c.disabled {
		return info
	}

	name, library, locale := info.CacheKey()
	k := newKey(name, library, locale, contracts)
	candidate := &item[T]{value: info}
	if c.checkPeriod > 0 && !info.Immutable() {
		candidate.expiresAt = c.clock.Now().Add(c.checkPeriod)
	}

	for {
		existing, loaded := c.entries.LoadOrStore(k, candidate)
		if !loaded {
			return info
		}
		current := existing.(*item[T])
		if !current.stale(c.clock.Now()) {
			return current.value
		}
		if c.entries.CompareAndSwap(k, current, candidate) {
			return info
		}
	}
}

// Get returns the cached descriptor for the key. A stale entry is removed and
// reported as a miss so the caller re-resolves it.
func (c *ResourceCache[T]) Get(name, library, localePrefix string, contracts []string) (T, bool) {
	var zero T
	if c.disabled {
		c.recordMiss()
		return zero, false
	}

	k := newKey(name, library, localePrefix, contracts)
	v, ok := c.entries.Load(k)
	if !ok {
		c.recordMiss()
		return zero, false
	}
	entry := v.(*item[T])
	if entry.stale(c.clock.Now()) {
		c.entries.CompareAndDelete(k, entry)
		c.recordMiss()
		return zero, false
	}
	c.recordHit()
	return entry.value, true
}

// Clear drops every entry.
func (c *ResourceCache[T]) Clear() {
	c.entries.Range(func(k, _ any) bool {
		c.entries.Delete(k)
		return true
	})
}

func (c *ResourceCache[T]) recordHit() {
	c.hits.Add(1)
	c.hitTotal.Inc()
}

func (c *ResourceCache[T]) recordMiss() {
	c.misses.Add(1)
	c.missTotal.Inc()
}
