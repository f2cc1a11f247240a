// Package middleware adapts an authcore.Engine to net/http.
//
// # Handlers
//
//   - [Guard] validates the bearer access token and stores the Principal in
//     the request context.
//   - [ClientContext] copies the client IP, User-Agent and device id into the
//     context helpers the Engine reads for sessions, audit and risk scoring.
//   - [RateLimit] applies a shared Redis fixed-window rule per client IP.
//   - [Throttle] applies a coarse in-process token bucket per client IP.
//
// Credential decisions are made by the Engine. This package only translates
// between HTTP and Engine calls, and writes failures as a JSON body carrying
// the stable error kind.
package middleware
