// Package session defines the session record and the [Store] contract the
// orchestrator relies on, plus a Redis-backed implementation.
//
// # Read-time expiry
//
// FindActive never returns a session whose active flag is false or whose
// absolute expiry has passed. Expiry is evaluated on every read, so
// correctness does not depend on key eviction or any background sweep.
//
// # Architecture boundaries
//
// This package owns persistence of [Session] values only. It does NOT parse
// tokens or decide who may create or revoke sessions; those decisions belong
// to the Engine.
package session
