package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/lockout"
)

// Users is a PostgreSQL authcore.UserStore.
type Users struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewUsers returns a store over pool.
func NewUsers(pool *pgxpool.Pool) *Users {
	return &Users{pool: pool, now: time.Now}
}

const userColumns = `id, email, display_name, password_hash, role, tier,
	email_verified, two_factor_secret, two_factor_enabled,
	failed_login_attempts, locked_until, last_login_at, last_login_ip,
	provider, provider_id, active, created_at, updated_at, deleted_at`

func (s *Users) Create(ctx context.Context, u *authcore.User) error {
	if u == nil || u.ID == "" || u.Email == "" {
		return authcore.ErrValidation
	}
	created := u.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $17, $18)`,
		u.ID, u.Email, u.DisplayName, u.PasswordHash, string(u.Role), u.Tier,
		u.EmailVerified, u.TwoFactorSecret, u.TwoFactorEnabled,
		u.FailedLoginAttempts, nullTime(u.LockedUntil), nullTime(u.LastLoginAt), u.LastLoginIP,
		u.Provider, u.ProviderID, u.Active, created.UTC(), nullTime(u.DeletedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return authcore.ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Users) GetByID(ctx context.Context, userID string) (*authcore.User, error) {
	return s.getOne(ctx, s.pool, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
}

func (s *Users) GetByEmail(ctx context.Context, email string) (*authcore.User, error) {
	return s.getOne(ctx, s.pool, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (s *Users) GetByProvider(ctx context.Context, provider, providerID string) (*authcore.User, error) {
	if provider == "" || providerID == "" {
		return nil, authcore.ErrUserNotFound
	}
	return s.getOne(ctx, s.pool,
		`SELECT `+userColumns+` FROM users WHERE provider = $1 AND provider_id = $2`, provider, providerID)
}

func (s *Users) LinkProvider(ctx context.Context, userID, provider, providerID string) error {
	return s.exec(ctx, "link provider",
		`UPDATE users SET provider = $2, provider_id = $3, updated_at = $4 WHERE id = $1`,
		userID, provider, providerID, s.now().UTC())
}

// RecordLoginFailure locks the row for the read-modify-write so concurrent
// failures serialize on it.
func (s *Users) RecordLoginFailure(ctx context.Context, userID string, policy lockout.Policy, now time.Time) (lockout.State, error) {
	var after lockout.State
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var (
			before      lockout.State
			lockedUntil *time.Time
		)
		err := tx.QueryRow(ctx,
			`SELECT failed_login_attempts, locked_until FROM users WHERE id = $1 FOR UPDATE`, userID,
		).Scan(&before.FailedAttempts, &lockedUntil)
		if errors.Is(err, pgx.ErrNoRows) {
			return authcore.ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("select lockout: %w", err)
		}
		before.LockedUntil = fromNullTime(lockedUntil)

		after = policy.Fail(before, now)
		_, err = tx.Exec(ctx,
			`UPDATE users SET failed_login_attempts = $2, locked_until = $3, updated_at = $4 WHERE id = $1`,
			userID, after.FailedAttempts, nullTime(after.LockedUntil), s.now().UTC())
		if err != nil {
			return fmt.Errorf("update lockout: %w", err)
		}
		return nil
	})
	if err != nil {
		return lockout.State{}, err
	}
	return after, nil
}

func (s *Users) ResetLoginFailures(ctx context.Context, userID string) error {
	return s.exec(ctx, "reset lockout",
		`UPDATE users SET failed_login_attempts = 0, locked_until = NULL, updated_at = $2 WHERE id = $1`,
		userID, s.now().UTC())
}

func (s *Users) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	return s.exec(ctx, "update password",
		`UPDATE users SET password_hash = $2, failed_login_attempts = 0, locked_until = NULL, updated_at = $3
		 WHERE id = $1`,
		userID, passwordHash, s.now().UTC())
}

func (s *Users) MarkEmailVerified(ctx context.Context, userID string) error {
	return s.exec(ctx, "verify email",
		`UPDATE users SET email_verified = TRUE, updated_at = $2 WHERE id = $1`, userID, s.now().UTC())
}

func (s *Users) SetTwoFactor(ctx context.Context, userID, secret string, enabled bool) error {
	return s.exec(ctx, "set two-factor",
		`UPDATE users SET two_factor_secret = $2, two_factor_enabled = $3, updated_at = $4 WHERE id = $1`,
		userID, secret, enabled, s.now().UTC())
}

func (s *Users) RecordLogin(ctx context.Context, userID, ip string, at time.Time) error {
	return s.exec(ctx, "record login",
		`UPDATE users SET last_login_at = $2, last_login_ip = $3, updated_at = $2 WHERE id = $1`,
		userID, at.UTC(), ip)
}

func (s *Users) Deactivate(ctx context.Context, userID string) error {
	return s.exec(ctx, "deactivate",
		`UPDATE users SET active = FALSE, updated_at = $2 WHERE id = $1`, userID, s.now().UTC())
}

func (s *Users) Anonymize(ctx context.Context, userID string, at time.Time) error {
	return s.exec(ctx, "anonymize", `
		UPDATE users SET
			email = 'deleted+' || id || '@invalid',
			display_name = '',
			password_hash = '',
			two_factor_secret = '',
			two_factor_enabled = FALSE,
			provider = '',
			provider_id = '',
			last_login_ip = '',
			active = FALSE,
			deleted_at = $2,
			updated_at = $2
		WHERE id = $1`,
		userID, at.UTC())
}

func (s *Users) exec(ctx context.Context, op, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return authcore.ErrUserNotFound
	}
	return nil
}

func (s *Users) getOne(ctx context.Context, q querier, query string, args ...any) (*authcore.User, error) {
	u, err := scanUser(q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, authcore.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	return u, nil
}

func scanUser(row pgx.Row) (*authcore.User, error) {
	var (
		u                                 authcore.User
		role                              string
		lockedUntil, lastLogin, deletedAt *time.Time
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &role, &u.Tier,
		&u.EmailVerified, &u.TwoFactorSecret, &u.TwoFactorEnabled,
		&u.FailedLoginAttempts, &lockedUntil, &lastLogin, &u.LastLoginIP,
		&u.Provider, &u.ProviderID, &u.Active, &u.CreatedAt, &u.UpdatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Role = authcore.Role(role)
	u.LockedUntil = fromNullTime(lockedUntil)
	u.LastLoginAt = fromNullTime(lastLogin)
	u.DeletedAt = fromNullTime(deletedAt)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

var _ authcore.UserStore = (*Users)(nil)
