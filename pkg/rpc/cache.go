package rpc

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Cache is the query-caching collaborator UseQuery rides on. Its
// internals (batching, deduplication, eviction) are a black box; the
// bindings only need lookup, storage, invalidation, and change
// subscription per query key.
type Cache interface {
	// Get returns the cached value for key, if any.
	Get(key string) (any, bool)

	// Set stores a value for key and notifies the key's subscribers.
	Set(key string, value any)

	// Invalidate drops the value for key and notifies subscribers,
	// which typically refetch.
	Invalidate(key string)

	// Subscribe registers fn to run when key is set or invalidated.
	Subscribe(key string, fn func()) (cancel func())
}

// QueryKey derives the cache key for a resolver call: the resolver name
// plus the canonical JSON of its input.
func QueryKey[I any](name string, input I) string {
	raw, err := json.Marshal(input)
	if err != nil {
		return fmt.Sprintf("%s:!unmarshalable", name)
	}
	return name + ":" + string(raw)
}

// MemoryCache is a minimal in-process Cache, sufficient for tests and
// hosts without a real query cache.
type MemoryCache struct {
	mu       sync.Mutex
	values   map[string]any
	watchers *cacheWatchers
}

type cacheWatchers struct {
	next  uint64
	byKey map[string]map[uint64]func()
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		values:   make(map[string]any),
		watchers: &cacheWatchers{byKey: make(map[string]map[uint64]func())},
	}
}

// Get returns the cached value for key, if any.
func (m *MemoryCache) Get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}

// Set stores a value and notifies subscribers of key.
func (m *MemoryCache) Set(key string, value any) {
	m.mu.Lock()
	m.values[key] = value
	fns := m.snapshot(key)
	m.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Invalidate drops key and notifies subscribers.
func (m *MemoryCache) Invalidate(key string) {
	m.mu.Lock()
	delete(m.values, key)
	fns := m.snapshot(key)
	m.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Subscribe registers a change callback for key.
func (m *MemoryCache) Subscribe(key string, fn func()) (cancel func()) {
	m.mu.Lock()
	m.watchers.next++
	id := m.watchers.next
	set := m.watchers.byKey[key]
	if set == nil {
		set = make(map[uint64]func())
		m.watchers.byKey[key] = set
	}
	set[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if set := m.watchers.byKey[key]; set != nil {
				delete(set, id)
				if len(set) == 0 {
					delete(m.watchers.byKey, key)
				}
			}
		})
	}
}

func (m *MemoryCache) snapshot(key string) []func() {
	set := m.watchers.byKey[key]
	fns := make([]func(), 0, len(set))
	for _, fn := range set {
		fns = append(fns, fn)
	}
	return fns
}
