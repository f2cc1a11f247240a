// Package flows holds the state-machine core of the Engine operations.
//
// Each Run* function takes a dependency struct of narrow function values
// and returns an outcome describing exactly which branch was taken. The
// Engine translates outcomes into public errors, audit events and metrics,
// so every branch here is testable without the root package.
//
// Flows hold no state between calls and never import the root package.
package flows
