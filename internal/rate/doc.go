// Package rate implements Redis fixed-window counters for throttling
// credential endpoints per client IP.
//
// # Window semantics
//
// INCR followed by EXPIRE on the first hit of a window. The counter key is
//
//	<prefix>:<rule>:<ip>
//
// so every server instance sharing the Redis deployment shares the budget.
//
// The engine never throttles; this package is consumed by HTTP middleware
// only.
package rate
