// Package internal holds helpers private to authcore: random session ids,
// CSRF tokens, record ids and email normalization.
//
// # Sub-packages
//
//   - audit: audit event model, sinks and the asynchronous dispatcher
//   - config: environment loader for the binaries
//   - flows: login, two-factor, refresh and logout runners over function deps
//   - rate: Redis fixed-window throttles for credential endpoints
//   - security: configuration posture report
package internal
