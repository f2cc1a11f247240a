package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const maxTxRetries = 3

// RedisStore keeps each session as a JSON value whose key expires at the
// session's absolute expiry. Revoked sessions stay readable until then so a
// refresh with a revoked session is distinguishable from an unknown token.
//
// Key layout:
//
//	<prefix>:s:<sessionID>  session JSON
//	<prefix>:r:<jti>        session id owning a refresh token
//	<prefix>:u:<userID>     sorted set of session ids of a user, scored by expiry
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithClock overrides the clock used for expiry decisions.
func WithClock(now func() time.Time) RedisOption {
	return func(s *RedisStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewRedisStore returns a store using prefix for all keys (default "as").
func NewRedisStore(client redis.UniversalClient, prefix string, opts ...RedisOption) *RedisStore {
	if prefix == "" {
		prefix = "as"
	}
	s := &RedisStore{redis: client, prefix: prefix, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *RedisStore) key(sessionID string) string  { return s.prefix + ":s:" + sessionID }
func (s *RedisStore) refreshKey(jti string) string { return s.prefix + ":r:" + jti }
func (s *RedisStore) userKey(userID string) string { return s.prefix + ":u:" + userID }

func (s *RedisStore) Create(ctx context.Context, sess *Session) (*Session, error) {
	if err := Validate(sess); err != nil {
		return nil, err
	}
	ttl := sess.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil, ErrInvalid
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return nil, err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(sess.ID), data, ttl)
		if sess.RefreshTokenID != "" {
			pipe.Set(ctx, s.refreshKey(sess.RefreshTokenID), sess.ID, ttl)
		}
		if sess.UserID != "" {
			userKey := s.userKey(sess.UserID)
			pipe.ZAdd(ctx, userKey, redis.Z{Score: float64(sess.ExpiresAt.Unix()), Member: sess.ID})
			// Authenticated sessions share one absolute lifetime, so the newest
			// member always expires last.
			pipe.Expire(ctx, userKey, ttl)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return sess.Clone(), nil
}

func (s *RedisStore) FindActive(ctx context.Context, sessionID string) (*Session, error) {
	sess, err := s.get(ctx, s.redis, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Live(s.now()) {
		return nil, ErrNotFound
	}
	return sess, nil
}

func (s *RedisStore) FindByRefreshTokenID(ctx context.Context, jti string) (*Session, error) {
	if jti == "" {
		return nil, ErrNotFound
	}
	sessionID, err := s.redis.Get(ctx, s.refreshKey(jti)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return s.get(ctx, s.redis, sessionID)
}

func (s *RedisStore) Touch(ctx context.Context, sessionID string) error {
	var found bool
	err := s.update(ctx, sessionID, func(sess *Session) bool {
		found = false
		now := s.now()
		if !sess.Live(now) {
			return false
		}
		found = true
		sess.LastActivityAt = now
		return true
	})
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) Revoke(ctx context.Context, sessionID, reason string) (bool, error) {
	var (
		changed bool
		userID  string
	)
	err := s.update(ctx, sessionID, func(sess *Session) bool {
		changed = false
		userID = sess.UserID
		if !sess.Active {
			return false
		}
		sess.Active = false
		sess.RevokedReason = reason
		changed = true
		return true
	})
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if userID != "" {
		if err := s.redis.ZRem(ctx, s.userKey(userID), sessionID).Err(); err != nil {
			return changed, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return changed, nil
}

func (s *RedisStore) RevokeAll(ctx context.Context, userID, exceptID, reason string) (int, error) {
	if userID == "" {
		return 0, nil
	}
	ids, err := s.memberIDs(ctx, userID)
	if err != nil {
		return 0, err
	}

	// Sessions created after the member read are not covered.
	revoked := 0
	for _, id := range ids {
		if id == exceptID {
			continue
		}
		changed, err := s.Revoke(ctx, id, reason)
		if err != nil {
			return revoked, err
		}
		if changed {
			revoked++
		}
	}
	return revoked, nil
}

func (s *RedisStore) ListActive(ctx context.Context, userID string) ([]*Session, error) {
	ids, err := s.memberIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]*Session, 0, len(ids))
	for _, id := range ids {
		sess, err := s.FindActive(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, nil
}

// memberIDs prunes expired members and returns the rest.
func (s *RedisStore) memberIDs(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		return nil, nil
	}
	userKey := s.userKey(userID)
	cutoff := fmt.Sprintf("%d", s.now().Unix())

	if err := s.redis.ZRemRangeByScore(ctx, userKey, "-inf", cutoff).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	ids, err := s.redis.ZRange(ctx, userKey, 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return ids, nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) get(ctx context.Context, c getter, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, ErrNotFound
	}
	data, err := c.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return &sess, nil
}

// update applies mutate under WATCH so concurrent writers never lose each
// other's changes. mutate returns false to skip the write.
func (s *RedisStore) update(ctx context.Context, sessionID string, mutate func(*Session) bool) error {
	key := s.key(sessionID)

	txf := func(tx *redis.Tx) error {
		sess, err := s.get(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if !mutate(sess) {
			return nil
		}

		ttl := sess.ExpiresAt.Sub(s.now())
		data, err := json.Marshal(sess)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if ttl <= 0 {
				pipe.Del(ctx, key)
				return nil
			}
			pipe.Set(ctx, key, data, ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.redis.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return fmt.Errorf("%w: concurrent update of session %s", ErrUnavailable, sessionID)
}
