// ABOUTME: Process-wide cache port and implementations
// ABOUTME: Compute-if-absent helper, LRU backed by golang-lru, and a no-op cache

package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSize is the LRU capacity used when none is configured
const DefaultSize = 4096

// Invalidator clears every cached entry
type Invalidator interface {
	ClearAll()
}

// Cache is a string-keyed store of resolved values
type Cache interface {
	Invalidator
	Get(key string) (any, bool)
	Set(key string, value any)
}

// Recorder receives hit and miss observations
type Recorder interface {
	RecordCacheHit()
	RecordCacheMiss()
	RecordCacheClear()
}

// GetOrAdd returns the cached value for key or computes and stores it.
// There is no lock around compute, so concurrent misses may recompute.
// Errors are returned without caching; a value of another type is a miss.
func GetOrAdd[T any](c Cache, key string, compute func() (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}
	v, err := compute()
	if err != nil {
		var zero T
		return zero, err
	}
	c.Set(key, v)
	return v, nil
}

// Get returns the typed value for key
func Get[T any](c Cache, key string) (T, bool) {
	v, ok := c.Get(key)
	if !ok {
		var zero T
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}

// LRU is a bounded cache safe for concurrent use
type LRU struct {
	entries  *lru.Cache[string, any]
	recorder Recorder
}

// NewLRU creates an LRU holding up to size entries
func NewLRU(size int, recorder Recorder) (*LRU, error) {
	if size <= 0 {
		size = DefaultSize
	}
	entries, err := lru.New[string, any](size)
	if err != nil {
		return nil, err
	}
	return &LRU{entries: entries, recorder: recorder}, nil
}

// Get looks up key
func (c *LRU) Get(key string) (any, bool) {
	v, ok := c.entries.Get(key)
	if c.recorder != nil {
		if ok {
			c.recorder.RecordCacheHit()
		} else {
			c.recorder.RecordCacheMiss()
		}
	}
	return v, ok
}

// Set stores value under key
func (c *LRU) Set(key string, value any) {
	c.entries.Add(key, value)
}

// ClearAll drops every entry
func (c *LRU) ClearAll() {
	c.entries.Purge()
	if c.recorder != nil {
		c.recorder.RecordCacheClear()
	}
}

// Len returns the number of cached entries
func (c *LRU) Len() int {
	return c.entries.Len()
}

// Nop never stores anything
type Nop struct{}

func (Nop) Get(string) (any, bool) { return nil, false }
func (Nop) Set(string, any)        {}
func (Nop) ClearAll()              {}
