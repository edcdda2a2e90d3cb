package broadcast

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithHubLogger sets the logger used for connection lifecycle events.
func WithHubLogger(logger *slog.Logger) HubOption {
	return func(h *Hub) {
		h.logger = logger
	}
}

// WithCheckOrigin sets the origin check used during the WebSocket
// handshake. By default all origins are accepted, which is appropriate
// for same-origin deployments behind a reverse proxy; public-facing
// hubs should restrict this.
func WithCheckOrigin(fn func(r *http.Request) bool) HubOption {
	return func(h *Hub) {
		h.upgrader.CheckOrigin = fn
	}
}

// WithWriteTimeout sets the per-frame write deadline for fanout.
func WithWriteTimeout(d time.Duration) HubOption {
	return func(h *Hub) {
		h.writeTimeout = d
	}
}

// Hub is an http.Handler that upgrades requests to WebSocket
// connections and relays change announcements between them.
//
// Each connection subscribes to the keys it cares about; when any
// connection announces a change for a key, every other subscribed
// connection receives a changed frame. The announcing connection is
// skipped, matching the convention that a context never observes its
// own writes through the notification channel.
type Hub struct {
	upgrader     websocket.Upgrader
	logger       *slog.Logger
	writeTimeout time.Duration

	mu    sync.Mutex
	conns map[*hubConn]struct{}
}

type hubConn struct {
	conn *websocket.Conn
	keys map[string]struct{}

	// writeMu serializes fanout writes with pong/close frames.
	writeMu sync.Mutex
}

// NewHub creates a relay hub. Mount it on any route, e.g.
//
//	mux.Handle("/broadcast", broadcast.NewHub())
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:       slog.Default(),
		writeTimeout: 10 * time.Second,
		conns:        make(map[*hubConn]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP upgrades the request and serves the connection until it
// closes. The read loop runs on the caller's goroutine.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("broadcast upgrade failed", "error", err)
		return
	}

	hc := &hubConn{
		conn: conn,
		keys: make(map[string]struct{}),
	}
	h.mu.Lock()
	h.conns[hc] = struct{}{}
	h.mu.Unlock()

	h.readLoop(hc)

	h.mu.Lock()
	delete(h.conns, hc)
	h.mu.Unlock()
	conn.Close()
}

// ConnCount reports the number of live connections.
func (h *Hub) ConnCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *Hub) readLoop(hc *hubConn) {
	for {
		var f frame
		if err := hc.conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				h.logger.Error("broadcast read error", "error", err)
			}
			return
		}

		switch f.Op {
		case opSubscribe:
			h.mu.Lock()
			hc.keys[f.Key] = struct{}{}
			h.mu.Unlock()

		case opUnsubscribe:
			h.mu.Lock()
			delete(hc.keys, f.Key)
			h.mu.Unlock()

		case opAnnounce:
			h.fanout(f.Key, hc)

		default:
			h.logger.Warn("broadcast unknown op", "op", f.Op)
		}
	}
}

// Announce notifies subscribers of key from the server side, for
// example after an in-process session write. No connection is skipped.
func (h *Hub) Announce(key string) {
	h.fanout(key, nil)
}

func (h *Hub) fanout(key string, origin *hubConn) {
	h.mu.Lock()
	targets := make([]*hubConn, 0, len(h.conns))
	for hc := range h.conns {
		if hc == origin {
			continue
		}
		if _, ok := hc.keys[key]; ok {
			targets = append(targets, hc)
		}
	}
	h.mu.Unlock()

	out := frame{Op: opChanged, Key: key}
	for _, hc := range targets {
		hc.writeMu.Lock()
		hc.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		err := hc.conn.WriteJSON(out)
		hc.writeMu.Unlock()
		if err != nil {
			h.logger.Warn("broadcast fanout write failed", "key", key, "error", err)
		}
	}
}
