// Package broadcast relays "key changed" notifications between execution
// contexts that do not share durable storage. A Hub accepts WebSocket
// connections and fans out change announcements to every other connection
// subscribed to the same key; a Client implements the same Watch contract
// as a storage backend, so a public-data store can converge across
// machines exactly as it does across contexts on one machine.
//
// The wire protocol is a small set of JSON frames:
//
//	{"op": "subscribe", "key": "blitzpublicDataUpdated"}
//	{"op": "announce",  "key": "blitzpublicDataUpdated"}
//	{"op": "changed",   "key": "blitzpublicDataUpdated"}
//
// Clients send subscribe and announce frames; the hub sends changed
// frames. Announcements are never echoed back to the connection that
// sent them.
package broadcast
