// Package memory provides in-process implementations of the authcore
// UserStore, AuditStore and session.Store contracts.
//
// They are safe for concurrent use and intended for tests and the
// development server. Nothing survives a restart.
package memory
