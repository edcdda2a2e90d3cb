// Package session defines the public session data model shared by the
// Blitz client bindings.
//
// It contains the PublicData/ClientSession types, the token codec that
// turns a server-issued session token into PublicData, the control-flow
// fault types raised by the auth layer, and the cookie/header/storage key
// names that make up the wire contract.
//
// # Token codec
//
//	pd, err := session.Decode(token)
//	if err != nil {
//	    // malformed token - never treated as "logged out"
//	}
//
// # Faults
//
// AuthenticationError, RedirectError, CSRFTokenMismatchError and
// RenderingSuspendedError are control-flow signals, not bugs. They are
// intended to be caught by the hosting framework and converted into an
// access-denied response, an HTTP redirect, a request failure, or a
// render retry respectively. Match them with errors.As:
//
//	var redirect *session.RedirectError
//	if errors.As(err, &redirect) {
//	    http.Redirect(w, r, redirect.URL, http.StatusFound)
//	}
package session
