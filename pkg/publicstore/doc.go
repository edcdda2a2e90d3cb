// Package publicstore implements the cross-context public session store
// at the heart of the Blitz client bindings.
//
// One Store exists per execution context (the Go analogue of a browser
// tab). It caches the last decoded PublicData, notifies local
// subscribers when the value changes, and converges with sibling
// contexts through a broadcast key in durable storage: writing the key
// signals every other context to re-read its session state.
//
//	store, err := publicstore.New(storage.NewMemoryStore(), jar)
//	unsub := store.Subscribe(func(pd session.PublicData) { ... })
//	defer unsub()
//
//	// After a response flagged public-data-changed:
//	store.UpdateState(ctx, nil)
//
// A context reacting to a foreign broadcast recomputes with
// SuppressEvent so two contexts can never ping-pong notifications
// forever; convergence is eventual, with last-write-wins on the token.
//
// The package also carries the dual-storage token bridge: the session
// and anti-CSRF tokens live in an HTTP-managed cookie (authoritative)
// and are mirrored into durable storage (backup that survives cookie
// eviction). Observing a cookie value always copies it into storage;
// reads prefer the cookie.
package publicstore
