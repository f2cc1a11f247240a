// Package authcore is a credential and session lifecycle engine: registration,
// password and federated login with lockout, two-factor bridging, access and
// refresh tokens bound to server-side sessions, password reset, email
// verification and a risk-scored audit trail.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build]. The Engine keeps no
// per-request state; users, sessions and revoked token ids live in collaborators shared by
// every instance.
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config], the collaborator
// interfaces ([UserStore], [AuditStore], [Notifier], [FederatedVerifier], [GeoLocator]) and
// value types. Flow orchestration and audit dispatch live under internal/.
//
// # Errors
//
// Every failure carries one of a closed set of kinds. Use [KindOf] to branch and [StatusFor]
// to pick a transport status:
//
//	res, err := engine.Login(ctx, email, password)
//	switch authcore.KindOf(err) {
//	case "":
//	case authcore.KindAccountLocked:
//	    // retry after the lock elapses
//	}
//
// Outages of critical collaborators surface as DEPENDENCY_UNAVAILABLE and are never folded
// into INVALID_CREDENTIALS. Audit, notification and geo failures never fail an operation.
package authcore
