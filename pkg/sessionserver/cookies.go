package sessionserver

import "net/http"

// CookiePolicy controls the attributes stamped on every cookie the
// server issues. The defaults suit same-origin development; production
// deployments behind TLS should set Secure.
type CookiePolicy struct {
	// Domain scopes the cookies. Empty means host-only.
	Domain string

	// Path defaults to "/".
	Path string

	// Secure marks the cookies TLS-only.
	Secure bool

	// SameSite defaults to Lax, which still sends cookies on top-level
	// navigation but blocks cross-site POSTs.
	SameSite http.SameSite
}

func defaultCookiePolicy() CookiePolicy {
	return CookiePolicy{
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	}
}

// apply builds a cookie with the policy's attributes. The public-data
// and anti-CSRF cookies must stay readable by the client bindings, so
// HttpOnly is set only on the private credential cookie.
func (p CookiePolicy) apply(name, value string, httpOnly bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Domain:   p.Domain,
		Path:     p.Path,
		Secure:   p.Secure,
		HttpOnly: httpOnly,
		SameSite: p.SameSite,
	}
}

// expire builds a deletion cookie for name.
func (p CookiePolicy) expire(name string) *http.Cookie {
	c := p.apply(name, "", false)
	c.MaxAge = -1
	return c
}
