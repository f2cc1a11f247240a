// Package lockout implements the per-account failed-login state machine.
//
// The state lives on the user record and is advanced by the user store in a
// single atomic write; this package only defines the transitions so every
// store applies the same rules.
package lockout

import (
	"errors"
	"time"
)

const (
	DefaultMaxAttempts = 5
	DefaultDuration    = 30 * time.Minute
)

// Status is the externally visible lockout state.
type Status uint8

const (
	// Open accepts login attempts.
	Open Status = iota
	// Locked rejects login attempts until LockedUntil.
	Locked
)

func (s Status) String() string {
	if s == Locked {
		return "locked"
	}
	return "open"
}

// State is the lockout view over a user record.
type State struct {
	FailedAttempts int
	LockedUntil    time.Time
}

// Policy holds the threshold and lock duration.
type Policy struct {
	MaxAttempts int
	Duration    time.Duration
}

// DefaultPolicy returns 5 attempts and a 30 minute lock.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, Duration: DefaultDuration}
}

// Validate rejects policies that could never lock or never unlock.
func (p Policy) Validate() error {
	if p.MaxAttempts <= 0 {
		return errors.New("lockout MaxAttempts must be > 0")
	}
	if p.Duration <= 0 {
		return errors.New("lockout Duration must be > 0")
	}
	return nil
}

// Status evaluates s at now. An elapsed lock is Open.
func (p Policy) Status(s State, now time.Time) Status {
	if !s.LockedUntil.IsZero() && now.Before(s.LockedUntil) {
		return Locked
	}
	return Open
}

// Fail applies one failed password validation. A lock that has already
// elapsed is cleared first, so the attempt counts from zero again. Reaching
// MaxAttempts sets LockedUntil to now+Duration.
func (p Policy) Fail(s State, now time.Time) State {
	if !s.LockedUntil.IsZero() && !now.Before(s.LockedUntil) {
		s = State{}
	}
	s.FailedAttempts++
	if s.FailedAttempts >= p.MaxAttempts && s.LockedUntil.IsZero() {
		s.LockedUntil = now.Add(p.Duration)
	}
	return s
}

// JustLocked reports whether the transition from before to after crossed the
// threshold.
func JustLocked(before, after State) bool {
	return !after.LockedUntil.IsZero() && !after.LockedUntil.Equal(before.LockedUntil)
}

// Clean reports whether s carries no failure history to reset.
func (s State) Clean() bool {
	return s.FailedAttempts == 0 && s.LockedUntil.IsZero()
}
