package session

// DefaultPrefix namespaces every cookie and durable-storage key the
// client bindings touch. Applications embedding multiple apps on one
// domain override it per store.
const DefaultPrefix = "blitz"

// Header names the HTTP middleware hooks read and write. Values are
// opaque; presence is what matters for the marker headers.
const (
	// HeaderCSRF carries the anti-CSRF token on every outgoing request.
	HeaderCSRF = "anti-csrf"

	// HeaderPublicDataChanged marks a response after which the client
	// must re-read its session state.
	HeaderPublicDataChanged = "public-data-changed"

	// HeaderSessionCreated marks a response that established a new
	// session (login, signup).
	HeaderSessionCreated = "session-created"

	// HeaderCSRFError marks a response rejected for a CSRF mismatch.
	HeaderCSRFError = "csrf-error"
)

// Keys derives the concrete cookie and durable-storage key names for a
// prefix. The zero prefix means DefaultPrefix.
type Keys struct {
	prefix string
}

// NewKeys returns the key set for prefix.
func NewKeys(prefix string) Keys {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Keys{prefix: prefix}
}

// Prefix returns the effective prefix.
func (k Keys) Prefix() string { return k.prefix }

// SessionTokenCookie is the cookie holding the public session token.
func (k Keys) SessionTokenCookie() string { return k.prefix + "sSessionToken" }

// CSRFTokenCookie is the cookie holding the anti-CSRF token.
func (k Keys) CSRFTokenCookie() string { return k.prefix + "sAntiCsrfToken" }

// SessionTokenStorage is the durable-storage mirror of the session token
// cookie.
func (k Keys) SessionTokenStorage() string { return k.SessionTokenCookie() }

// CSRFTokenStorage is the durable-storage mirror of the CSRF cookie.
func (k Keys) CSRFTokenStorage() string { return k.CSRFTokenCookie() }

// BroadcastKey is the durable-storage key whose writes signal sibling
// execution contexts to recompute their session state. Its value is a
// decimal timestamp used only as a change trigger.
func (k Keys) BroadcastKey() string { return k.prefix + "publicDataUpdated" }
