package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrEthical07/authcore/session"
)

// Sessions is a PostgreSQL session.Store. Rows outlive revocation until
// PurgeExpired removes them.
type Sessions struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewSessions returns a store over pool.
func NewSessions(pool *pgxpool.Pool) *Sessions {
	return &Sessions{pool: pool, now: time.Now}
}

const sessionColumns = `id, user_id, type, device_id, device, ip, user_agent,
	created_at, last_activity_at, expires_at, active, revoked_reason,
	refresh_token_id, csrf_token`

func (s *Sessions) Create(ctx context.Context, sess *session.Session) (*session.Session, error) {
	if err := session.Validate(sess); err != nil {
		return nil, err
	}
	if !s.now().Before(sess.ExpiresAt) {
		return nil, session.ErrInvalid
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		sess.ID, nullString(sess.UserID), string(sess.Type), sess.DeviceID, sess.Device, sess.IP, sess.UserAgent,
		sess.CreatedAt.UTC(), sess.LastActivityAt.UTC(), sess.ExpiresAt.UTC(), sess.Active, sess.RevokedReason,
		nullString(sess.RefreshTokenID), sess.CSRFToken,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, session.ErrInvalid
		}
		return nil, unavailable(err)
	}
	return sess.Clone(), nil
}

func (s *Sessions) FindActive(ctx context.Context, sessionID string) (*session.Session, error) {
	return s.getOne(ctx, `SELECT `+sessionColumns+` FROM sessions
		WHERE id = $1 AND active AND expires_at > $2`, sessionID, s.now().UTC())
}

func (s *Sessions) FindByRefreshTokenID(ctx context.Context, jti string) (*session.Session, error) {
	if jti == "" {
		return nil, session.ErrNotFound
	}
	return s.getOne(ctx, `SELECT `+sessionColumns+` FROM sessions
		WHERE refresh_token_id = $1 AND expires_at > $2`, jti, s.now().UTC())
}

func (s *Sessions) Touch(ctx context.Context, sessionID string) error {
	now := s.now().UTC()
	tag, err := s.pool.Exec(ctx, `UPDATE sessions SET last_activity_at = $2
		WHERE id = $1 AND active AND expires_at > $2`, sessionID, now)
	if err != nil {
		return unavailable(err)
	}
	if tag.RowsAffected() == 0 {
		return session.ErrNotFound
	}
	return nil
}

// Revoke flips active with a conditional update so exactly one concurrent
// caller observes the change.
func (s *Sessions) Revoke(ctx context.Context, sessionID, reason string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE sessions SET active = FALSE, revoked_reason = $2
		WHERE id = $1 AND active`, sessionID, reason)
	if err != nil {
		return false, unavailable(err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Sessions) RevokeAll(ctx context.Context, userID, exceptID, reason string) (int, error) {
	if userID == "" {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `UPDATE sessions SET active = FALSE, revoked_reason = $3
		WHERE user_id = $1 AND id <> $2 AND active AND expires_at > $4`,
		userID, exceptID, reason, s.now().UTC())
	if err != nil {
		return 0, unavailable(err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Sessions) ListActive(ctx context.Context, userID string) ([]*session.Session, error) {
	if userID == "" {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT `+sessionColumns+` FROM sessions
		WHERE user_id = $1 AND active AND expires_at > $2
		ORDER BY created_at`, userID, s.now().UTC())
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	var out []*session.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, unavailable(err)
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

// PurgeExpired deletes sessions whose absolute expiry passed before now and
// returns how many rows were removed.
func (s *Sessions) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, s.now().UTC())
	if err != nil {
		return 0, unavailable(err)
	}
	return tag.RowsAffected(), nil
}

func (s *Sessions) getOne(ctx context.Context, query string, args ...any) (*session.Session, error) {
	sess, err := scanSession(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return sess, nil
}

func scanSession(row pgx.Row) (*session.Session, error) {
	var (
		sess                   session.Session
		typ                    string
		userID, refreshTokenID *string
	)
	err := row.Scan(
		&sess.ID, &userID, &typ, &sess.DeviceID, &sess.Device, &sess.IP, &sess.UserAgent,
		&sess.CreatedAt, &sess.LastActivityAt, &sess.ExpiresAt, &sess.Active, &sess.RevokedReason,
		&refreshTokenID, &sess.CSRFToken,
	)
	if err != nil {
		return nil, err
	}
	sess.Type = session.Type(typ)
	if userID != nil {
		sess.UserID = *userID
	}
	if refreshTokenID != nil {
		sess.RefreshTokenID = *refreshTokenID
	}
	sess.CreatedAt = sess.CreatedAt.UTC()
	sess.LastActivityAt = sess.LastActivityAt.UTC()
	sess.ExpiresAt = sess.ExpiresAt.UTC()
	return &sess, nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", session.ErrUnavailable, err)
}

var _ session.Store = (*Sessions)(nil)
