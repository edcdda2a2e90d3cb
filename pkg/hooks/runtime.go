package hooks

import "sync"

// Runtime is the slice of a component-tree rendering model the session
// adapter needs: where rendering happens, whether suspense is available,
// and the mount/unmount lifecycle.
type Runtime interface {
	// Server reports whether this is a server-rendering context.
	Server() bool

	// SuspenseEnabled reports whether suspense mode is active for this
	// render.
	SuspenseEnabled() bool

	// Mounted reports whether the component has completed its first
	// mount.
	Mounted() bool

	// OnMount schedules fn to run when the component mounts. A runtime
	// that is already mounted runs fn immediately.
	OnMount(fn func())

	// OnCleanup schedules fn to run when the component unmounts.
	OnCleanup(fn func())
}

// Lifecycle is a minimal Runtime for hosts without a full renderer
// (tests, the CLI). Drive it with Mount and Unmount.
type Lifecycle struct {
	server   bool
	suspense bool

	mu       sync.Mutex
	mounted  bool
	mounts   []func()
	cleanups []func()
}

// LifecycleOption configures a Lifecycle.
type LifecycleOption func(*Lifecycle)

// ServerRendering marks the runtime as a server-rendering context.
func ServerRendering() LifecycleOption {
	return func(l *Lifecycle) { l.server = true }
}

// SuspenseEnabled activates suspense mode.
func SuspenseEnabled() LifecycleOption {
	return func(l *Lifecycle) { l.suspense = true }
}

// NewLifecycle creates an unmounted client-rendering runtime.
func NewLifecycle(opts ...LifecycleOption) *Lifecycle {
	l := &Lifecycle{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Server reports whether this is a server-rendering context.
func (l *Lifecycle) Server() bool { return l.server }

// SuspenseEnabled reports whether suspense mode is active.
func (l *Lifecycle) SuspenseEnabled() bool { return l.suspense }

// Mounted reports whether Mount has run.
func (l *Lifecycle) Mounted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mounted
}

// OnMount schedules fn for mount, running it immediately when already
// mounted.
func (l *Lifecycle) OnMount(fn func()) {
	l.mu.Lock()
	if l.mounted {
		l.mu.Unlock()
		fn()
		return
	}
	l.mounts = append(l.mounts, fn)
	l.mu.Unlock()
}

// OnCleanup schedules fn for unmount.
func (l *Lifecycle) OnCleanup(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cleanups = append(l.cleanups, fn)
}

// Mount runs the pending mount callbacks in registration order.
func (l *Lifecycle) Mount() {
	l.mu.Lock()
	if l.mounted {
		l.mu.Unlock()
		return
	}
	l.mounted = true
	fns := l.mounts
	l.mounts = nil
	l.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Unmount runs the cleanup callbacks in registration order.
func (l *Lifecycle) Unmount() {
	l.mu.Lock()
	if !l.mounted {
		l.mu.Unlock()
		return
	}
	l.mounted = false
	fns := l.cleanups
	l.cleanups = nil
	l.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
