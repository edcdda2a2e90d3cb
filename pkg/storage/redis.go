package storage

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore is a Store backed by Redis, for execution contexts spread
// across machines. Change notification rides on a single pub/sub channel
// per namespace; each published message carries the writing store's
// instance ID so a store never reacts to its own writes.
type RedisStore struct {
	client redis.UniversalClient
	ns     string
	origin string

	mu       sync.Mutex
	watchers *watcherSet
	closed   bool

	pubsub *redis.PubSub
	done   chan struct{}
}

// NewRedisStore creates a store over client, namespacing every key with
// ns. Stores sharing a namespace observe each other's changes.
func NewRedisStore(client redis.UniversalClient, ns string) *RedisStore {
	if ns == "" {
		ns = "blitz"
	}
	r := &RedisStore{
		client:   client,
		ns:       ns,
		origin:   uuid.NewString(),
		watchers: newWatcherSet(),
		done:     make(chan struct{}),
	}
	r.pubsub = client.Subscribe(context.Background(), r.channel())
	go r.receiveLoop()
	return r
}

func (r *RedisStore) key(key string) string { return r.ns + ":" + key }
func (r *RedisStore) channel() string       { return r.ns + ":changed" }

// Get retrieves a value.
func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	if r.isClosed() {
		return "", false, ErrClosed{}
	}
	v, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Set stores a value and publishes a change notification.
func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	if r.isClosed() {
		return ErrClosed{}
	}
	if err := r.client.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return err
	}
	return r.publish(ctx, key)
}

// Delete removes a key and publishes a change notification.
func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if r.isClosed() {
		return ErrClosed{}
	}
	deleted, err := r.client.Del(ctx, r.key(key)).Result()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return nil
	}
	return r.publish(ctx, key)
}

// Watch registers a change callback for key.
func (r *RedisStore) Watch(key string, fn func()) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed{}
	}
	id := r.watchers.add(key, fn)

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.watchers.remove(key, id)
		})
	}, nil
}

// Close stops notification delivery. The underlying client is owned by
// the caller and is not closed.
func (r *RedisStore) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.done)
	r.mu.Unlock()
	return r.pubsub.Close()
}

func (r *RedisStore) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *RedisStore) publish(ctx context.Context, key string) error {
	return r.client.Publish(ctx, r.channel(), r.origin+" "+key).Err()
}

func (r *RedisStore) receiveLoop() {
	ch := r.pubsub.Channel()
	for {
		select {
		case <-r.done:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			origin, key, found := strings.Cut(msg.Payload, " ")
			if !found || origin == r.origin {
				continue
			}

			r.mu.Lock()
			fns := r.watchers.snapshot(key)
			r.mu.Unlock()
			for _, fn := range fns {
				fn()
			}
		}
	}
}
