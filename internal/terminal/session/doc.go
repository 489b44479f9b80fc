// Package session holds the authoritative registry of terminal sessions.
//
// A session is the pairing of a client-facing id with its exclusively-owned
// process handle, metadata, and the bounded output buffer used by the
// polling transport. The registry linearizes mutations per id through a
// per-session lock; the registry-level lock only guards the map, so
// unrelated sessions never contend.
package session
