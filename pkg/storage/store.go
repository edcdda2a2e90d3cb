package storage

import "context"

// Store is a durable key-value store with change notification.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get retrieves a value. The second return is false when the key is
	// absent. Backend failures are reported as errors, not as absence.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores a value, overwriting any previous one.
	Set(ctx context.Context, key, value string) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Watch registers fn to run whenever key changes, including changes
	// made by other execution contexts sharing the backend. fn may be
	// invoked from an internal goroutine. Delivery is best-effort and
	// at-least-once; there is no ordering guarantee beyond per-key
	// last-write-wins on the value itself.
	//
	// The returned cancel is idempotent and removes exactly this
	// registration.
	Watch(key string, fn func()) (cancel func(), err error)

	// Close releases backend resources and stops notification delivery.
	Close() error
}

// ErrClosed is returned by operations on a closed store.
type ErrClosed struct{}

func (ErrClosed) Error() string { return "storage: store is closed" }

// watcherSet tracks Watch registrations per key. Not safe for concurrent
// use on its own; callers hold their store lock.
type watcherSet struct {
	next     uint64
	watchers map[string]map[uint64]func()
}

func newWatcherSet() *watcherSet {
	return &watcherSet{watchers: make(map[string]map[uint64]func())}
}

func (w *watcherSet) add(key string, fn func()) uint64 {
	w.next++
	id := w.next
	m := w.watchers[key]
	if m == nil {
		m = make(map[uint64]func())
		w.watchers[key] = m
	}
	m[id] = fn
	return id
}

func (w *watcherSet) remove(key string, id uint64) {
	if m := w.watchers[key]; m != nil {
		delete(m, id)
		if len(m) == 0 {
			delete(w.watchers, key)
		}
	}
}

// snapshot returns the callbacks for key, copied so they can be invoked
// without holding locks.
func (w *watcherSet) snapshot(key string) []func() {
	m := w.watchers[key]
	if len(m) == 0 {
		return nil
	}
	fns := make([]func(), 0, len(m))
	for _, fn := range m {
		fns = append(fns, fn)
	}
	return fns
}

// keys returns all watched keys.
func (w *watcherSet) keys() []string {
	out := make([]string, 0, len(w.watchers))
	for k := range w.watchers {
		out = append(out, k)
	}
	return out
}
