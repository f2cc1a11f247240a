// Package security derives a read-only posture summary from Engine
// configuration. It holds no secrets: key material is reduced to its
// length.
package security
