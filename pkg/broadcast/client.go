package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientLogger sets the logger for connection events.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDialer replaces the WebSocket dialer, e.g. to set TLS config
// or a proxy.
func WithDialer(d *websocket.Dialer) ClientOption {
	return func(c *Client) {
		c.dialer = d
	}
}

// Client is a relay connection that satisfies the same Watch contract
// as a durable storage backend. Register it on a public-data store as
// an extra watcher to receive change signals from other machines:
//
//	relay, err := broadcast.Dial(ctx, "ws://relay.internal/broadcast")
//	if err != nil { ... }
//	store, err := publicstore.New(mem, jar, publicstore.WithNotifier(relay))
type Client struct {
	conn   *websocket.Conn
	logger *slog.Logger
	dialer *websocket.Dialer

	writeMu sync.Mutex

	mu       sync.Mutex
	watchers map[string][]*clientWatcher
	closed   bool
	done     chan struct{}
}

type clientWatcher struct {
	fn func()
}

// Dial connects to a Hub at url (ws:// or wss:// scheme).
func Dial(ctx context.Context, url string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		logger:   slog.Default(),
		dialer:   websocket.DefaultDialer,
		watchers: make(map[string][]*clientWatcher),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	conn, _, err := c.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("broadcast: dial %s: %w", url, err)
	}
	c.conn = conn

	go c.readLoop()
	return c, nil
}

// Watch registers fn to run whenever another connection announces a
// change for key. The first watcher for a key subscribes the
// connection to it; the last cancel unsubscribes.
func (c *Client) Watch(key string, fn func()) (cancel func(), err error) {
	w := &clientWatcher{fn: fn}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, fmt.Errorf("broadcast: client closed")
	}
	first := len(c.watchers[key]) == 0
	c.watchers[key] = append(c.watchers[key], w)
	c.mu.Unlock()

	if first {
		if err := c.writeFrame(frame{Op: opSubscribe, Key: key}); err != nil {
			c.removeWatcher(key, w)
			return nil, err
		}
	}

	var once sync.Once
	cancel = func() {
		once.Do(func() {
			if c.removeWatcher(key, w) {
				// Last watcher for this key; best effort.
				if err := c.writeFrame(frame{Op: opUnsubscribe, Key: key}); err != nil {
					c.logger.Warn("broadcast unsubscribe failed", "key", key, "error", err)
				}
			}
		})
	}
	return cancel, nil
}

// removeWatcher reports whether the key has no watchers left.
func (c *Client) removeWatcher(key string, w *clientWatcher) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ws := c.watchers[key]
	for i, cur := range ws {
		if cur == w {
			c.watchers[key] = append(ws[:i:i], ws[i+1:]...)
			break
		}
	}
	if len(c.watchers[key]) == 0 {
		delete(c.watchers, key)
		return true
	}
	return false
}

// Announce tells the hub that key changed. Other connections
// subscribed to key are notified; this connection is not.
func (c *Client) Announce(key string) error {
	return c.writeFrame(frame{Op: opAnnounce, Key: key})
}

// Close shuts the connection down. Pending watchers stop firing.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.writeMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	err := c.conn.Close()
	<-c.done
	return err
}

func (c *Client) writeFrame(f frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := c.conn.WriteJSON(f); err != nil {
		return fmt.Errorf("broadcast: write %s: %w", f.Op, err)
	}
	return nil
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		var f frame
		if err := c.conn.ReadJSON(&f); err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed && websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.logger.Error("broadcast read error", "error", err)
			}
			return
		}
		if f.Op != opChanged {
			continue
		}

		c.mu.Lock()
		ws := append([]*clientWatcher(nil), c.watchers[f.Key]...)
		c.mu.Unlock()
		for _, w := range ws {
			w.fn()
		}
	}
}
