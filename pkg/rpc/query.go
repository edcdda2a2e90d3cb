package rpc

import (
	"context"
	"sync"

	"github.com/blitz-go/blitz/pkg/hooks"
)

// QueryState tracks where a query is in its fetch cycle.
type QueryState int

const (
	QueryPending QueryState = iota // before the first fetch starts
	QueryLoading                   // fetch in flight
	QueryReady                     // data available
	QueryError                     // last fetch failed
)

// Query is the live result of one resolver call bound to a component.
type Query[O any] struct {
	client *Client
	name   string
	key    string
	cache  Cache
	fetch  func(context.Context) (O, error)

	mu       sync.Mutex
	state    QueryState
	data     O
	err      error
	fetchSeq uint64
	onChange []func()
}

// State returns the current fetch state.
func (q *Query[O]) State() QueryState {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Data returns the last fetched value; meaningful in QueryReady.
func (q *Query[O]) Data() O {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.data
}

// Err returns the last fetch error; meaningful in QueryError.
func (q *Query[O]) Err() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err
}

// OnChange registers fn to run after every state transition.
func (q *Query[O]) OnChange(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onChange = append(q.onChange, fn)
}

// Refetch re-runs the resolver, replacing the cached value on success.
func (q *Query[O]) Refetch(ctx context.Context) {
	q.mu.Lock()
	q.fetchSeq++
	seq := q.fetchSeq
	q.state = QueryLoading
	q.mu.Unlock()
	q.notify()

	data, err := q.fetch(ctx)

	q.mu.Lock()
	if q.fetchSeq != seq {
		// A newer fetch superseded this one; drop the stale result.
		q.mu.Unlock()
		return
	}
	if err != nil {
		q.state = QueryError
		q.err = err
	} else {
		q.state = QueryReady
		q.data = data
		q.err = nil
	}
	q.mu.Unlock()
	q.notify()

	if err == nil && q.cache != nil {
		q.cache.Set(q.key, data)
	}
}

func (q *Query[O]) setReady(data O) {
	q.mu.Lock()
	q.state = QueryReady
	q.data = data
	q.err = nil
	q.mu.Unlock()
	q.notify()
}

func (q *Query[O]) notify() {
	q.mu.Lock()
	fns := make([]func(), len(q.onChange))
	copy(fns, q.onChange)
	q.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// UseQuery binds a resolver call into rt's render lifecycle over cache.
//
// At mount: a cached value resolves the query immediately; otherwise the
// resolver runs. Either way the query subscribes to its cache key, so an
// Invalidate from anywhere (typically a mutation) refetches it. The
// subscription ends at unmount.
func UseQuery[I, O any](rt hooks.Runtime, c *Client, cache Cache, name string, input I) *Query[O] {
	q := &Query[O]{
		client: c,
		name:   name,
		key:    QueryKey(name, input),
		cache:  cache,
		fetch: func(ctx context.Context) (O, error) {
			return Invoke[I, O](ctx, c, name, input)
		},
	}

	rt.OnMount(func() {
		if cache != nil {
			if v, ok := cache.Get(q.key); ok {
				if data, ok := v.(O); ok {
					q.setReady(data)
				}
			}
			cancel := cache.Subscribe(q.key, func() {
				if _, ok := cache.Get(q.key); !ok {
					// Invalidated: refetch with fresh data.
					q.Refetch(context.Background())
				}
			})
			rt.OnCleanup(cancel)
		}
		if q.State() == QueryPending {
			q.Refetch(context.Background())
		}
	})
	return q
}

// Mutation runs a resolver that changes server state.
type Mutation[I, O any] struct {
	client      *Client
	name        string
	cache       Cache
	invalidates []string
}

// UseMutation binds a mutation resolver. Keys listed in invalidates are
// dropped from cache after every successful run, refetching the queries
// that watch them.
func UseMutation[I, O any](c *Client, cache Cache, name string, invalidates ...string) *Mutation[I, O] {
	return &Mutation[I, O]{client: c, name: name, cache: cache, invalidates: invalidates}
}

// Run invokes the mutation.
func (m *Mutation[I, O]) Run(ctx context.Context, input I) (O, error) {
	out, err := Invoke[I, O](ctx, m.client, m.name, input)
	if err != nil {
		return out, err
	}
	if m.cache != nil {
		for _, key := range m.invalidates {
			m.cache.Invalidate(key)
		}
	}
	return out, nil
}
