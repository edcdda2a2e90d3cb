package publicstore

import (
	"net/http"
	"net/url"
	"sync"
	"time"
)

// CookieSource is the HTTP-managed cookie surface the token bridge reads
// from. Cookie values are authoritative over their durable-storage
// mirrors; deletion is the only mutation the client side ever performs
// (the server owns issuance).
type CookieSource interface {
	// Cookie returns the current value of the named cookie.
	Cookie(name string) (string, bool)

	// DeleteCookie removes the named cookie. Deleting an absent cookie
	// is a no-op.
	DeleteCookie(name string)
}

// Jar is an in-memory CookieSource for tests, CLIs, and contexts without
// an HTTP client. Safe for concurrent use.
type Jar struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewJar creates an empty Jar.
func NewJar() *Jar {
	return &Jar{values: make(map[string]string)}
}

// Cookie returns the current value of the named cookie.
func (j *Jar) Cookie(name string) (string, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	v, ok := j.values[name]
	return v, ok
}

// SetCookie stores a cookie value.
func (j *Jar) SetCookie(name, value string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.values[name] = value
}

// DeleteCookie removes a cookie.
func (j *Jar) DeleteCookie(name string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.values, name)
}

// ClientCookies adapts an http.CookieJar (typically the one on the RPC
// client's http.Client) into a CookieSource scoped to a base URL.
type ClientCookies struct {
	jar  http.CookieJar
	base *url.URL
}

// NewClientCookies wraps jar, reading cookies as they would be sent to
// base.
func NewClientCookies(jar http.CookieJar, base *url.URL) *ClientCookies {
	return &ClientCookies{jar: jar, base: base}
}

// Cookie returns the current value of the named cookie.
func (c *ClientCookies) Cookie(name string) (string, bool) {
	for _, ck := range c.jar.Cookies(c.base) {
		if ck.Name == name {
			return ck.Value, true
		}
	}
	return "", false
}

// DeleteCookie expires the named cookie in the jar.
func (c *ClientCookies) DeleteCookie(name string) {
	c.jar.SetCookies(c.base, []*http.Cookie{{
		Name:    name,
		Value:   "",
		MaxAge:  -1,
		Expires: time.Unix(1, 0),
	}})
}
