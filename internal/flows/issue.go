package flows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/session"
	"github.com/MrEthical07/authcore/token"
)

// IssueRequest describes the session to create.
type IssueRequest struct {
	Subject   token.Subject
	Guest     bool
	DeviceID  string
	IP        string
	UserAgent string
}

// IssuedSession is a persisted session and the tokens bound to it. Refresh
// is zero for guest sessions.
type IssuedSession struct {
	Session *session.Session
	Access  token.Issued
	Refresh token.Issued
}

// IssueDeps captures session issuance dependencies.
type IssueDeps struct {
	Now           func() time.Time
	Lifetime      time.Duration
	GuestLifetime time.Duration

	NewSessionID   func() (string, error)
	NewCSRFToken   func() (string, error)
	NewDeviceID    func() string
	DescribeDevice func(userAgent string) string

	IssueAccess  func(sub token.Subject, sessionID, deviceID string) (token.Issued, error)
	IssueRefresh func(sub token.Subject, sessionID, deviceID string) (token.Issued, error)
	IssueGuest   func(sessionID string) (token.Issued, error)

	CreateSession func(ctx context.Context, sess *session.Session) (*session.Session, error)
}

// ErrIssue wraps failures to mint identifiers or sign tokens.
var ErrIssue = errors.New("session issuance failed")

// RunIssueSession creates a session and signs its tokens. Tokens are signed
// before the session is written so a signing failure leaves no orphan
// session behind.
func RunIssueSession(ctx context.Context, req IssueRequest, deps IssueDeps) (*IssuedSession, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	now := deps.Now()

	sessionID, err := deps.NewSessionID()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIssue, err)
	}
	csrf, err := deps.NewCSRFToken()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIssue, err)
	}
	deviceID := req.DeviceID
	if deviceID == "" && deps.NewDeviceID != nil {
		deviceID = deps.NewDeviceID()
	}
	descriptor := req.UserAgent
	if deps.DescribeDevice != nil {
		descriptor = deps.DescribeDevice(req.UserAgent)
	}

	sess := &session.Session{
		ID:             sessionID,
		DeviceID:       deviceID,
		Device:         descriptor,
		IP:             req.IP,
		UserAgent:      req.UserAgent,
		CreatedAt:      now,
		LastActivityAt: now,
		Active:         true,
		CSRFToken:      csrf,
	}

	out := &IssuedSession{Session: sess}
	if req.Guest {
		sess.Type = session.TypeGuest
		sess.ExpiresAt = now.Add(deps.GuestLifetime)
		if out.Access, err = deps.IssueGuest(sessionID); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIssue, err)
		}
	} else {
		sess.Type = session.TypeAuthenticated
		sess.UserID = req.Subject.UserID
		sess.ExpiresAt = now.Add(deps.Lifetime)
		if out.Access, err = deps.IssueAccess(req.Subject, sessionID, deviceID); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIssue, err)
		}
		if out.Refresh, err = deps.IssueRefresh(req.Subject, sessionID, deviceID); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIssue, err)
		}
		sess.RefreshTokenID = out.Refresh.ID
	}

	created, err := deps.CreateSession(ctx, sess)
	if err != nil {
		return nil, err
	}
	out.Session = created
	return out, nil
}
