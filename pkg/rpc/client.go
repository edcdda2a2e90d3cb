package rpc

import (
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"

	"github.com/blitz-go/blitz/pkg/publicstore"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Client invokes resolvers against one Blitz server on behalf of one
// execution context.
type Client struct {
	base   *url.URL
	http   *http.Client
	store  *publicstore.Store
	logger *slog.Logger
	tracer trace.Tracer

	mu               sync.Mutex
	onSessionCreated []func()
}

// ClientOption configures a Client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	httpClient *http.Client
	transport  http.RoundTripper
	logger     *slog.Logger
	tracerName string
}

// WithHTTPClient supplies the underlying http.Client. A cookie jar is
// installed when the client has none, since the session cookies must
// persist across calls.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *clientConfig) { c.httpClient = hc }
}

// WithTransport sets the innermost RoundTripper, e.g. the metrics or
// tracing middleware from pkg/middleware.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *clientConfig) { c.transport = rt }
}

// WithLogger sets the client logger. Default: slog.Default().
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *clientConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTracerName overrides the otel tracer name (default "blitz").
func WithTracerName(name string) ClientOption {
	return func(c *clientConfig) {
		if name != "" {
			c.tracerName = name
		}
	}
}

// New creates a resolver client for baseURL, wiring the session
// transport around the HTTP pipeline.
func New(baseURL string, store *publicstore.Store, opts ...ClientOption) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	cfg := &clientConfig{
		logger:     slog.Default(),
		tracerName: "blitz",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{}
	}
	if hc.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		hc.Jar = jar
	}

	c := &Client{
		base:   base,
		http:   hc,
		store:  store,
		logger: cfg.logger,
		tracer: otel.Tracer(cfg.tracerName),
	}

	inner := cfg.transport
	if inner == nil {
		inner = hc.Transport
	}
	hc.Transport = &sessionTransport{
		inner:  inner,
		store:  store,
		client: c,
		logger: cfg.logger,
	}
	return c, nil
}

// CookieSource returns the client's cookie jar as a publicstore
// CookieSource, so the store reads the same cookies the transport
// receives.
func (c *Client) CookieSource() *publicstore.ClientCookies {
	return publicstore.NewClientCookies(c.http.Jar, c.base)
}

// Store returns the session store this client drives.
func (c *Client) Store() *publicstore.Store { return c.store }

// OnSessionCreated registers fn to run whenever a response carries the
// session-created marker (login, signup).
func (c *Client) OnSessionCreated(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSessionCreated = append(c.onSessionCreated, fn)
}

func (c *Client) dispatchSessionCreated() {
	c.mu.Lock()
	fns := make([]func(), len(c.onSessionCreated))
	copy(fns, c.onSessionCreated)
	c.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
