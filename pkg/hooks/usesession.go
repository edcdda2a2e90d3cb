package hooks

import (
	"context"
	"sync"

	"github.com/blitz-go/blitz/pkg/publicstore"
	"github.com/blitz-go/blitz/pkg/session"
)

// Handle is the live session value a component renders from.
type Handle struct {
	mu       sync.Mutex
	value    session.ClientSession
	err      error
	onChange []func(session.ClientSession)
}

// Value returns the current ClientSession.
func (h *Handle) Value() session.ClientSession {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.value
}

// Err returns the last decode error surfaced by a resync, nil when the
// session is healthy.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// OnChange registers fn to run after every value change; the rendering
// layer uses it to schedule a re-render.
func (h *Handle) OnChange(fn func(session.ClientSession)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onChange = append(h.onChange, fn)
}

func (h *Handle) set(cs session.ClientSession, err error) {
	h.mu.Lock()
	h.value = cs
	h.err = err
	fns := make([]func(session.ClientSession), len(h.onChange))
	copy(fns, h.onChange)
	h.mu.Unlock()

	for _, fn := range fns {
		fn(cs)
	}
}

// Option configures one UseSession call.
type Option func(*options)

type options struct {
	initial *session.PublicData
}

// WithInitialPublicData seeds the hook with caller-supplied data, e.g.
// from a server-side props pipeline. The hook starts with
// IsLoading=false and still resyncs at mount.
func WithInitialPublicData(pd session.PublicData) Option {
	return func(o *options) { o.initial = &pd }
}

// UseSession binds store into rt's render lifecycle.
//
// Initial value selection:
//   - a caller-supplied initial value is used as-is (IsLoading=false);
//   - otherwise, in suspense mode, a server-rendering context fails with
//     RenderingSuspendedError (the host catches it and retries once the
//     data is available) while a client-rendering context reads the
//     store synchronously;
//   - otherwise the deterministic prerender snapshot is used:
//     EmptyPublicData with IsLoading=true.
//
// The stored value is never applied before the mount-time resync;
// prerendered markup must match the deterministic snapshot or hydration
// would observe a mismatch. After mount the handle tracks every value
// the store emits until unmount.
func UseSession(rt Runtime, store *publicstore.Store, opts ...Option) (*Handle, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	h := &Handle{}
	switch {
	case o.initial != nil:
		h.value = session.ClientSession{PublicData: *o.initial}
	case rt.SuspenseEnabled():
		if rt.Server() {
			return nil, &session.RenderingSuspendedError{}
		}
		pd, err := store.GetData(context.Background())
		if err != nil {
			return nil, err
		}
		h.value = session.ClientSession{PublicData: pd}
	default:
		h.value = session.ClientSession{PublicData: session.EmptyPublicData(), IsLoading: true}
	}

	rt.OnMount(func() {
		// Resync before subscribing: the store may have moved while the
		// prerendered snapshot was on screen.
		pd, err := store.GetData(context.Background())
		if err != nil {
			h.set(h.Value(), err)
		} else {
			h.set(session.ClientSession{PublicData: pd}, nil)
		}

		unsub := store.Subscribe(func(pd session.PublicData) {
			h.set(session.ClientSession{PublicData: pd}, nil)
		})
		rt.OnCleanup(unsub)
	})

	return h, nil
}
