package storage

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store. Execution contexts in the same
// process that share a MemoryStore instance observe each other's changes
// synchronously, which makes it the default for tests and single-process
// apps.
type MemoryStore struct {
	mu       sync.Mutex
	values   map[string]string
	watchers *watcherSet
	closed   bool
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values:   make(map[string]string),
		watchers: newWatcherSet(),
	}
}

// Get retrieves a value.
func (m *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", false, ErrClosed{}
	}
	v, ok := m.values[key]
	return v, ok, nil
}

// Set stores a value and notifies watchers of the key.
func (m *MemoryStore) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed{}
	}
	m.values[key] = value
	fns := m.watchers.snapshot(key)
	m.mu.Unlock()

	// Notify outside the lock so callbacks may re-enter the store.
	for _, fn := range fns {
		fn()
	}
	return nil
}

// Delete removes a key and notifies watchers.
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed{}
	}
	_, existed := m.values[key]
	delete(m.values, key)
	var fns []func()
	if existed {
		fns = m.watchers.snapshot(key)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return nil
}

// Watch registers a change callback for key.
func (m *MemoryStore) Watch(key string, fn func()) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed{}
	}
	id := m.watchers.add(key, fn)

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.watchers.remove(key, id)
		})
	}, nil
}

// Close marks the store closed. Further operations fail with ErrClosed.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
