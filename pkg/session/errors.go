package session

import (
	"errors"
	"net/http"
)

// ErrUnauthorized is the sentinel wrapped by AuthenticationError.
// Hosting frameworks typically convert it into a 401 response.
var ErrUnauthorized = errors.New("blitz: authentication required")

// ErrCSRFMismatch is the sentinel wrapped by CSRFTokenMismatchError.
var ErrCSRFMismatch = errors.New("blitz: anti-csrf token mismatch")

// AuthenticationError is raised by the authorization gate when a page
// requires authentication (or a role) the current session does not have.
// It is a control-flow signal, not a bug: it carries no stack trace and
// is meant to be caught and converted into an access-denied response.
type AuthenticationError struct {
	// Reason is an optional human-readable detail.
	Reason string
}

func (e *AuthenticationError) Error() string {
	if e.Reason != "" {
		return "blitz: authentication error: " + e.Reason
	}
	return "blitz: authentication error"
}

func (e *AuthenticationError) Unwrap() error { return ErrUnauthorized }

// RedirectError is raised when a page's declarative rules resolve to a
// redirect instead of rendering. It carries the target URL and is meant
// to be caught and converted into an HTTP redirect.
type RedirectError struct {
	// URL is the redirect target, already carrying any `next` query
	// parameter the gate appended.
	URL string
}

func (e *RedirectError) Error() string {
	return "blitz: redirect to " + e.URL
}

// CSRFTokenMismatchError is raised from the response middleware hook when
// the server flags a CSRF failure. It surfaces to the caller as a request
// failure.
type CSRFTokenMismatchError struct{}

func (e *CSRFTokenMismatchError) Error() string { return ErrCSRFMismatch.Error() }

func (e *CSRFTokenMismatchError) Unwrap() error { return ErrCSRFMismatch }

// RenderingSuspendedError is raised by the session hook adapter when a
// suspense-mode read happens on a server-rendering context before the
// data is available. The hosting framework catches it and retries the
// render once the data is ready.
type RenderingSuspendedError struct{}

func (e *RenderingSuspendedError) Error() string {
	return "blitz: rendering suspended until session data is ready"
}

// StatusCode returns the HTTP status code for an auth fault.
// Returns (code, true) for faults this package defines, (0, false)
// otherwise.
func StatusCode(err error) (int, bool) {
	if err == nil {
		return 0, false
	}
	var redirect *RedirectError
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, true
	case errors.Is(err, ErrCSRFMismatch):
		return http.StatusUnauthorized, true
	case errors.As(err, &redirect):
		return http.StatusFound, true
	default:
		return 0, false
	}
}

// IsAuthError reports whether err is classified as an authentication
// failure. RPC error payloads carrying the AuthenticationError name are
// classified by pkg/rpc before reaching this helper.
func IsAuthError(err error) bool {
	return err != nil && errors.Is(err, ErrUnauthorized)
}
