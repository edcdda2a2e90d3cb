// Package storage provides the durable key-value store behind the Blitz
// session bindings.
//
// A Store is the Go analogue of the browser's persistent storage: a flat
// namespace of string keys that outlives a single "page load" (process)
// and - crucially - can notify sibling execution contexts when a key
// changes. That change notification is the broadcast channel the
// cross-tab session store rides on.
//
// Three backends are provided:
//
//	store := storage.NewMemoryStore()                    // single process
//	store, _ := storage.NewFileStore("/tmp/blitz")       // processes on one machine
//	store := storage.NewRedisStore(client, "blitz")      // processes anywhere
//
// All callers treat storage as best-effort: an unavailable backend
// degrades reads to "absent" and swallows writes. Backends report honest
// errors; the session layer decides to degrade and log rather than fail.
package storage
