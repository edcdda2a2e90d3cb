// Package sessionserver is a reference server for the client bindings:
// it issues the session cookies the public-data store reads, emits the
// marker headers the RPC transport reacts to, and hosts resolvers under
// the /api/rpc/{name} route shape the resolver client calls.
//
// The public-data token cookie holds the encoded session snapshot and is
// readable by the client; the private credential cookie is HttpOnly and
// authenticates resolver calls. Two credential strategies are provided:
// opaque handles backed by server-side state (OpaqueIssuer) and signed
// stateless tokens (JWTIssuer).
//
// Applications are expected to run their own session server; this one
// exists so the bindings have a complete wire partner in tests, demos,
// and the CLI.
package sessionserver
