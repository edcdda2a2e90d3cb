package publicstore

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/blitz-go/blitz/pkg/session"
	"github.com/blitz-go/blitz/pkg/storage"
)

// Watcher delivers change notifications for a key. storage.Store
// satisfies it; pkg/broadcast provides one for contexts that cannot
// share a storage backend.
type Watcher interface {
	Watch(key string, fn func()) (cancel func(), err error)
}

// Announcer is an optional Watcher capability. A durable storage
// backend carries a broadcast to siblings through the write itself; a
// notifier with no storage behind it (a relay connection) must be told
// explicitly, so the store calls Announce on every notifier that
// implements it whenever it broadcasts. broadcast.Client satisfies it.
type Announcer interface {
	Announce(key string) error
}

// Store is the per-execution-context public session store.
//
// Create one per context with New and keep it for the context's
// lifetime. Each context is single-threaded in the browser model; this
// implementation additionally locks its small state so storage watch
// callbacks arriving on other goroutines stay safe.
type Store struct {
	keys    session.Keys
	storage storage.Store
	cookies CookieSource
	logger  *slog.Logger
	now     func() time.Time
	metrics *storeMetrics

	// notifiers are the extra broadcast sources beyond the storage
	// backend; the ones implementing Announcer also carry this store's
	// own broadcasts outward.
	notifiers []Watcher

	mu      sync.Mutex
	current session.PublicData
	subs    []subscription
	nextSub uint64
	// lastBroadcast is the broadcast-key value this store wrote last,
	// used to ignore the echo of its own broadcasts.
	lastBroadcast string

	cancels []func()
	closed  bool
}

type subscription struct {
	id uint64
	fn func(session.PublicData)
}

// Option configures a Store.
type Option func(*config)

type config struct {
	prefix   string
	logger   *slog.Logger
	now      func() time.Time
	registry registerer
	watchers []Watcher
}

// WithPrefix overrides the cookie/storage key prefix (default "blitz").
func WithPrefix(prefix string) Option {
	return func(c *config) { c.prefix = prefix }
}

// WithLogger sets the logger for degraded-storage conditions.
// Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides the time source for broadcast timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

// WithNotifier adds an extra broadcast notification source beyond the
// storage backend's own change delivery, e.g. a broadcast.Client relay.
// Notifiers that implement Announcer are also told about this store's
// own broadcasts, so contexts joined only by a relay still converge.
func WithNotifier(w Watcher) Option {
	return func(c *config) {
		if w != nil {
			c.watchers = append(c.watchers, w)
		}
	}
}

// New creates the store for one execution context and starts listening
// for sibling broadcasts on the storage backend's broadcast key.
func New(st storage.Store, cookies CookieSource, opts ...Option) (*Store, error) {
	cfg := &config{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	s := &Store{
		keys:      session.NewKeys(cfg.prefix),
		storage:   st,
		cookies:   cookies,
		logger:    cfg.logger,
		now:       cfg.now,
		metrics:   newStoreMetrics(cfg.registry),
		current:   session.EmptyPublicData(),
		notifiers: cfg.watchers,
	}

	watchers := append([]Watcher{st}, cfg.watchers...)
	for _, w := range watchers {
		cancel, err := w.Watch(s.keys.BroadcastKey(), s.onBroadcast)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.cancels = append(s.cancels, cancel)
	}
	return s, nil
}

// GetData computes the current public data from the session token.
//
// An absent token resolves to EmptyPublicData. A token that fails to
// decode is a hard error: corruption is surfaced, never silently treated
// as "logged out".
func (s *Store) GetData(ctx context.Context) (session.PublicData, error) {
	token, ok := s.ReadSessionToken(ctx)
	if !ok {
		return session.EmptyPublicData(), nil
	}
	pd, err := session.Decode(token)
	if err != nil {
		s.metrics.decodeFailures.Inc()
		return session.PublicData{}, err
	}
	return pd, nil
}

// UpdateOption modifies a single UpdateState call.
type UpdateOption func(*updateOptions)

type updateOptions struct {
	suppressEvent bool
}

// SuppressEvent stops UpdateState from writing the broadcast key. A
// context reacting to a foreign broadcast MUST pass it, otherwise two
// contexts would notify each other forever.
func SuppressEvent() UpdateOption {
	return func(o *updateOptions) { o.suppressEvent = true }
}

// UpdateState stores a new current value and notifies subscribers.
//
// A nil value means "recompute from storage via GetData". Unless
// suppressed, the broadcast key is advanced so sibling contexts learn
// they must recompute too.
func (s *Store) UpdateState(ctx context.Context, value *session.PublicData, opts ...UpdateOption) error {
	var o updateOptions
	for _, opt := range opts {
		opt(&o)
	}

	var pd session.PublicData
	if value != nil {
		pd = *value
	} else {
		var err error
		if pd, err = s.GetData(ctx); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.current = pd
	subs := make([]subscription, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	// At-most-once per emitted value, in subscription order,
	// outside the lock.
	for _, sub := range subs {
		sub.fn(pd)
	}

	if !o.suppressEvent {
		s.broadcast(ctx)
	}
	s.metrics.updates.WithLabelValues(strconv.FormatBool(!o.suppressEvent)).Inc()
	return nil
}

// Clear resets the context to the logged-out state: the session cookie
// and its durable mirror are removed, then EmptyPublicData is emitted
// WITH a broadcast, since sibling contexts must learn about the logout.
func (s *Store) Clear(ctx context.Context) error {
	s.cookies.DeleteCookie(s.keys.SessionTokenCookie())
	if err := s.storage.Delete(ctx, s.keys.SessionTokenStorage()); err != nil {
		s.logger.Warn("blitz: durable storage unavailable, skipping mirror delete",
			"key", s.keys.SessionTokenStorage(), "error", err)
	}
	empty := session.EmptyPublicData()
	return s.UpdateState(ctx, &empty)
}

// Current returns the last emitted value without recomputing.
func (s *Store) Current() session.PublicData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Subscribe registers an observer for every subsequently emitted value.
// The current value is not delivered at subscribe time. The returned
// unsubscribe handle is idempotent and removes exactly this
// registration.
func (s *Store) Subscribe(fn func(session.PublicData)) (unsubscribe func()) {
	s.mu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscription{id: id, fn: fn})
	s.metrics.subscribers.Inc()
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					// Preserve subscription order for the remaining
					// observers.
					s.subs = append(s.subs[:i], s.subs[i+1:]...)
					s.metrics.subscribers.Dec()
					return
				}
			}
		})
	}
}

// Close stops broadcast listening. It does not close the storage
// backend, which the caller owns and may share between contexts.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancels := s.cancels
	s.cancels = nil
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	return nil
}

// broadcast advances the broadcast key with a monotonically increasing
// decimal timestamp. The value's content is irrelevant to readers; only
// the change matters. Best-effort: a storage failure is logged, not
// surfaced.
func (s *Store) broadcast(ctx context.Context) {
	key := s.keys.BroadcastKey()

	prev := int64(0)
	if raw, ok, err := s.storage.Get(ctx, key); err == nil && ok {
		if n, perr := strconv.ParseInt(raw, 10, 64); perr == nil {
			prev = n
		}
	}

	ts := s.now().UnixMilli()
	if ts <= prev {
		// Two updates inside one clock tick (or a sibling's clock ran
		// ahead) must still produce a strictly greater value.
		ts = prev + 1
	}
	value := strconv.FormatInt(ts, 10)

	s.mu.Lock()
	s.lastBroadcast = value
	s.mu.Unlock()

	if err := s.storage.Set(ctx, key, value); err != nil {
		s.logger.Warn("blitz: durable storage unavailable, broadcast not delivered",
			"key", key, "error", err)
	}

	// Storage-less notifiers never see the write above; announce to
	// them explicitly. Best-effort, like the write.
	for _, w := range s.notifiers {
		a, ok := w.(Announcer)
		if !ok {
			continue
		}
		if err := a.Announce(key); err != nil {
			s.logger.Warn("blitz: relay unavailable, broadcast not delivered",
				"key", key, "error", err)
		}
	}
	s.metrics.broadcastsSent.Inc()
}

// onBroadcast reacts to a change of the broadcast key made by a sibling
// context: recompute and notify locally, suppressing a further broadcast
// to keep the exchange loop-free.
func (s *Store) onBroadcast() {
	ctx := context.Background()

	// Some backends echo a context's own writes; skip those.
	if raw, ok, err := s.storage.Get(ctx, s.keys.BroadcastKey()); err == nil && ok {
		s.mu.Lock()
		own := raw == s.lastBroadcast
		s.mu.Unlock()
		if own {
			return
		}
	}

	s.metrics.broadcastsReceived.Inc()
	if err := s.UpdateState(ctx, nil, SuppressEvent()); err != nil {
		s.logger.Error("blitz: failed to recompute session after broadcast", "error", err)
	}
}
