package memory

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/lockout"
)

// Users is an in-memory authcore.UserStore. Every mutation holds the store
// lock for the whole read-modify-write, which makes RecordLoginFailure
// atomic.
type Users struct {
	mu      sync.RWMutex
	byID    map[string]*authcore.User
	byEmail map[string]string
	now     func() time.Time
}

// NewUsers returns an empty store.
func NewUsers() *Users {
	return &Users{
		byID:    make(map[string]*authcore.User),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

// WithClock overrides the clock used for UpdatedAt stamps.
func (s *Users) WithClock(now func() time.Time) *Users {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Users) Create(_ context.Context, user *authcore.User) error {
	if user == nil || user.ID == "" || user.Email == "" {
		return authcore.ErrValidation
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[user.Email]; ok {
		return authcore.ErrEmailTaken
	}
	if _, ok := s.byID[user.ID]; ok {
		return authcore.ErrEmailTaken
	}
	u := user.Clone()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	u.UpdatedAt = u.CreatedAt
	s.byID[u.ID] = u
	s.byEmail[u.Email] = u.ID
	return nil
}

func (s *Users) GetByID(_ context.Context, userID string) (*authcore.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[userID]
	if !ok {
		return nil, authcore.ErrUserNotFound
	}
	return u.Clone(), nil
}

func (s *Users) GetByEmail(_ context.Context, email string) (*authcore.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, authcore.ErrUserNotFound
	}
	return s.byID[id].Clone(), nil
}

func (s *Users) GetByProvider(_ context.Context, provider, providerID string) (*authcore.User, error) {
	if provider == "" || providerID == "" {
		return nil, authcore.ErrUserNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.byID {
		if u.Provider == provider && u.ProviderID == providerID {
			return u.Clone(), nil
		}
	}
	return nil, authcore.ErrUserNotFound
}

func (s *Users) LinkProvider(_ context.Context, userID, provider, providerID string) error {
	return s.update(userID, func(u *authcore.User) {
		u.Provider, u.ProviderID = provider, providerID
	})
}

func (s *Users) RecordLoginFailure(_ context.Context, userID string, policy lockout.Policy, now time.Time) (lockout.State, error) {
	var after lockout.State
	err := s.update(userID, func(u *authcore.User) {
		after = policy.Fail(u.Lockout(), now)
		u.FailedLoginAttempts, u.LockedUntil = after.FailedAttempts, after.LockedUntil
	})
	return after, err
}

func (s *Users) ResetLoginFailures(_ context.Context, userID string) error {
	return s.update(userID, func(u *authcore.User) {
		u.FailedLoginAttempts, u.LockedUntil = 0, time.Time{}
	})
}

func (s *Users) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	return s.update(userID, func(u *authcore.User) {
		u.PasswordHash = passwordHash
		u.FailedLoginAttempts, u.LockedUntil = 0, time.Time{}
	})
}

func (s *Users) MarkEmailVerified(_ context.Context, userID string) error {
	return s.update(userID, func(u *authcore.User) { u.EmailVerified = true })
}

func (s *Users) SetTwoFactor(_ context.Context, userID, secret string, enabled bool) error {
	return s.update(userID, func(u *authcore.User) {
		u.TwoFactorSecret, u.TwoFactorEnabled = secret, enabled
	})
}

func (s *Users) RecordLogin(_ context.Context, userID, ip string, at time.Time) error {
	return s.update(userID, func(u *authcore.User) {
		u.LastLoginAt, u.LastLoginIP = at, ip
	})
}

func (s *Users) Deactivate(_ context.Context, userID string) error {
	return s.update(userID, func(u *authcore.User) { u.Active = false })
}

func (s *Users) Anonymize(_ context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[userID]
	if !ok {
		return authcore.ErrUserNotFound
	}
	delete(s.byEmail, u.Email)

	u.Email = AnonymizedEmail(u.ID)
	u.DisplayName = ""
	u.PasswordHash = ""
	u.TwoFactorSecret, u.TwoFactorEnabled = "", false
	u.Provider, u.ProviderID = "", ""
	u.LastLoginIP = ""
	u.Active = false
	u.DeletedAt = at
	u.UpdatedAt = at
	s.byEmail[u.Email] = u.ID
	return nil
}

// AnonymizedEmail is the placeholder address written over a deleted
// account. It is unique per user and can never be delivered to.
func AnonymizedEmail(userID string) string {
	return "deleted+" + userID + "@invalid"
}

func (s *Users) update(userID string, fn func(*authcore.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[userID]
	if !ok {
		return authcore.ErrUserNotFound
	}
	fn(u)
	u.UpdatedAt = s.now()
	return nil
}

var _ authcore.UserStore = (*Users)(nil)
