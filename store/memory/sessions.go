package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MrEthical07/authcore/session"
)

// Sessions is an in-memory session.Store. Revoked sessions are kept until
// they expire so refresh can tell them apart from unknown tokens.
type Sessions struct {
	mu        sync.Mutex
	sessions  map[string]*session.Session
	byRefresh map[string]string
	now       func() time.Time
}

// NewSessions returns an empty store.
func NewSessions() *Sessions {
	return &Sessions{
		sessions:  make(map[string]*session.Session),
		byRefresh: make(map[string]string),
		now:       time.Now,
	}
}

// WithClock overrides the clock used for expiry decisions.
func (s *Sessions) WithClock(now func() time.Time) *Sessions {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Sessions) Create(_ context.Context, sess *session.Session) (*session.Session, error) {
	if err := session.Validate(sess); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gcLocked()

	if !s.now().Before(sess.ExpiresAt) {
		return nil, session.ErrInvalid
	}
	if _, exists := s.sessions[sess.ID]; exists {
		return nil, session.ErrInvalid
	}
	s.sessions[sess.ID] = sess.Clone()
	if sess.RefreshTokenID != "" {
		s.byRefresh[sess.RefreshTokenID] = sess.ID
	}
	return sess.Clone(), nil
}

func (s *Sessions) FindActive(_ context.Context, sessionID string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok || !sess.Live(s.now()) {
		return nil, session.ErrNotFound
	}
	return sess.Clone(), nil
}

func (s *Sessions) FindByRefreshTokenID(_ context.Context, jti string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byRefresh[jti]
	if !ok {
		return nil, session.ErrNotFound
	}
	sess, ok := s.sessions[id]
	if !ok || !s.now().Before(sess.ExpiresAt) {
		return nil, session.ErrNotFound
	}
	return sess.Clone(), nil
}

func (s *Sessions) Touch(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	now := s.now()
	if !ok || !sess.Live(now) {
		return session.ErrNotFound
	}
	sess.LastActivityAt = now
	return nil
}

func (s *Sessions) Revoke(_ context.Context, sessionID, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revokeLocked(sessionID, reason), nil
}

func (s *Sessions) RevokeAll(_ context.Context, userID, exceptID, reason string) (int, error) {
	if userID == "" {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for id, sess := range s.sessions {
		if sess.UserID != userID || id == exceptID || !sess.Live(now) {
			continue
		}
		if s.revokeLocked(id, reason) {
			n++
		}
	}
	return n, nil
}

func (s *Sessions) ListActive(_ context.Context, userID string) ([]*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var out []*session.Session
	for _, sess := range s.sessions {
		if userID != "" && sess.UserID == userID && sess.Live(now) {
			out = append(out, sess.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Sessions) revokeLocked(sessionID, reason string) bool {
	sess, ok := s.sessions[sessionID]
	if !ok || !sess.Active {
		return false
	}
	sess.Active = false
	sess.RevokedReason = reason
	return true
}

// gcLocked drops sessions past their absolute expiry.
func (s *Sessions) gcLocked() {
	now := s.now()
	for id, sess := range s.sessions {
		if now.Before(sess.ExpiresAt) {
			continue
		}
		delete(s.sessions, id)
		if sess.RefreshTokenID != "" {
			delete(s.byRefresh, sess.RefreshTokenID)
		}
	}
}

var _ session.Store = (*Sessions)(nil)
