package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store using Redis as the backing store.
// Keys:
//
//	<prefix><sid>            session JSON, TTL = expiresAt - now
//	<prefix><sid>:revoked    revocation timestamp, created with SETNX
//	<prefix>identity:<id>    set of the identity's session ids
type RedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisStore creates a Redis-based session store. Prefix may be empty.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "refresh:"
	}
	return &RedisStore{client: client, prefix: prefix, now: func() time.Time { return time.Now().UTC() }}
}

func (r *RedisStore) key(sid string) string { return r.prefix + sid }
func (r *RedisStore) revokedKey(sid string) string { return r.prefix + sid + ":revoked" }
func (r *RedisStore) identityKey(id string) string { return r.prefix + "identity:" + id }

func (r *RedisStore) ttl(expiresAt time.Time) time.Duration {
	exp := expiresAt.Sub(r.now())
	if exp <= 0 {
		// ensure a minimal TTL so Redis won't store expired sessions forever
		exp = time.Second
	}
	return exp
}

func (r *RedisStore) Create(ctx context.Context, s *RefreshSession) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = r.now()
	}
	s.RevokedAt = nil
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	exp := r.ttl(s.ExpiresAt)
	ok, err := r.client.SetNX(ctx, r.key(s.SessionID), b, exp).Result()
	if err != nil {
		return fmt.Errorf("store refresh session: %w", err)
	}
	if !ok {
		return ErrConflict
	}
	idKey := r.identityKey(s.Identity)
	if err := r.client.SAdd(ctx, idKey, s.SessionID).Err(); err != nil {
		return fmt.Errorf("index refresh session: %w", err)
	}
	return r.client.Expire(ctx, idKey, exp).Err()
}

func (r *RedisStore) load(ctx context.Context, sid string) (*RefreshSession, error) {
	b, err := r.client.Get(ctx, r.key(sid)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load refresh session: %w", err)
	}
	var s RefreshSession
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode refresh session: %w", err)
	}
	revoked, err := r.client.Get(ctx, r.revokedKey(sid)).Result()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return nil, fmt.Errorf("load revocation: %w", err)
	default:
		at, perr := time.Parse(time.RFC3339Nano, revoked)
		if perr != nil {
			at = r.now()
		}
		s.RevokedAt = &at
	}
	return &s, nil
}

func (r *RedisStore) FindActive(ctx context.Context, sessionID, identity string) (*RefreshSession, error) {
	s, err := r.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Identity != identity {
		return nil, ErrNotFound
	}
	return s, nil
}

func (r *RedisStore) Revoke(ctx context.Context, sessionID string) (bool, error) {
	s, err := r.load(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	ok, err := r.client.SetNX(ctx, r.revokedKey(sessionID), r.now().Format(time.RFC3339Nano), r.ttl(s.ExpiresAt)).Result()
	if err != nil {
		return false, fmt.Errorf("revoke refresh session: %w", err)
	}
	return ok, nil
}

func (r *RedisStore) RevokeAllForIdentity(ctx context.Context, identity string) (int64, error) {
	ids, err := r.client.SMembers(ctx, r.identityKey(identity)).Result()
	if err != nil {
		return 0, fmt.Errorf("list identity sessions: %w", err)
	}
	var n int64
	for _, sid := range ids {
		ok, err := r.Revoke(ctx, sid)
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}
