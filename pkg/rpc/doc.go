// Package rpc invokes server-side resolver functions and keeps the
// session bindings in sync with what the responses say about the
// session.
//
// Every request flows through the session transport: the anti-CSRF token
// is attached on the way out, and marker headers on the way back drive
// the public session store (back up the CSRF cookie, recompute and
// broadcast public data, announce a created session, or surface a CSRF
// mismatch as a request failure).
//
//	client, _ := rpc.New("https://app.example.com", store)
//	user, err := rpc.Invoke[GetUserInput, User](ctx, client, "getUser", input)
//
// UseQuery and UseMutation bind resolver calls into a render lifecycle
// over a pluggable Cache. The cache's batching and deduplication
// strategies are its own business; this package only relies on
// get/set/subscribe/invalidate.
package rpc
