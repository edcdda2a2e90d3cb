package storage

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStore is a Store backed by one file per key inside a directory.
// Processes on one machine that point at the same directory behave like
// browser tabs sharing durable storage: a poll loop detects foreign
// writes and fires Watch callbacks.
//
// The poll loop compares file contents, not mtimes, so coarse filesystem
// timestamp granularity cannot hide a change. Local writes update the
// poll snapshot in the same critical section, so a store never reports
// its own writes.
type FileStore struct {
	dir  string
	poll time.Duration

	mu       sync.Mutex
	watchers *watcherSet
	// seen maps watched keys to the last observed content; the second
	// map value is false when the key was absent.
	seen   map[string]fileState
	closed bool
	done   chan struct{}
}

type fileState struct {
	value  string
	exists bool
}

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// WithPollInterval sets how often foreign changes are detected.
// Default: 150ms.
func WithPollInterval(d time.Duration) FileStoreOption {
	return func(f *FileStore) {
		if d > 0 {
			f.poll = d
		}
	}
}

// NewFileStore creates (if needed) dir and returns a store over it.
func NewFileStore(dir string, opts ...FileStoreOption) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	f := &FileStore{
		dir:      dir,
		poll:     150 * time.Millisecond,
		watchers: newWatcherSet(),
		seen:     make(map[string]fileState),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	go f.pollLoop()
	return f, nil
}

func (f *FileStore) path(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key))
}

// Get retrieves a value.
func (f *FileStore) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return "", false, ErrClosed{}
	}
	f.mu.Unlock()

	raw, err := os.ReadFile(f.path(key))
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(raw), true, nil
}

// Set stores a value via a same-directory rename so readers never see a
// partial write.
func (f *FileStore) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed{}
	}

	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, f.path(key)); err != nil {
		os.Remove(tmpName)
		return err
	}

	// Fold the local write into the snapshot so the poll loop only
	// reports foreign changes.
	if _, watched := f.seen[key]; watched {
		f.seen[key] = fileState{value: value, exists: true}
	}
	return nil
}

// Delete removes a key.
func (f *FileStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed{}
	}
	if err := os.Remove(f.path(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	if _, watched := f.seen[key]; watched {
		f.seen[key] = fileState{}
	}
	return nil
}

// Watch registers a change callback for key.
func (f *FileStore) Watch(key string, fn func()) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed{}
	}
	id := f.watchers.add(key, fn)
	if _, ok := f.seen[key]; !ok {
		f.seen[key] = f.readState(key)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.watchers.remove(key, id)
			if len(f.watchers.snapshot(key)) == 0 {
				delete(f.seen, key)
			}
		})
	}, nil
}

// Close stops the poll loop.
func (f *FileStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	close(f.done)
	return nil
}

func (f *FileStore) readState(key string) fileState {
	raw, err := os.ReadFile(f.path(key))
	if err != nil {
		return fileState{}
	}
	return fileState{value: string(raw), exists: true}
}

func (f *FileStore) pollLoop() {
	ticker := time.NewTicker(f.poll)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
			f.pollOnce()
		}
	}
}

func (f *FileStore) pollOnce() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}

	var fire []func()
	for _, key := range f.watchers.keys() {
		cur := f.readState(key)
		prev := f.seen[key]
		if cur != prev {
			f.seen[key] = cur
			fire = append(fire, f.watchers.snapshot(key)...)
		}
	}
	f.mu.Unlock()

	for _, fn := range fire {
		fn()
	}
}
