// Package audit holds the audit event model and its delivery plumbing.
//
// The Engine appends every event synchronously to its AuditStore and then
// hands a copy to a [Dispatcher], which relays it asynchronously to one
// [Sink] (slog, JSON lines, Kafka, or a fan-out of several). Sinks never
// return errors to the caller: a delivery failure is logged and dropped.
//
// This package does not decide which events exist or how they are scored.
package audit
