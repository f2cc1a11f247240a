// Package prometheus exposes authcore Engine counters through
// prometheus/client_golang.
//
// [Collector] reads [authcore.Engine.MetricsSnapshot] on every scrape and
// emits const metrics, so the Engine keeps its lock-free counters and never
// touches a registry. [Handler] serves a private registry holding the
// collector plus any extra collectors the caller passes.
package prometheus
