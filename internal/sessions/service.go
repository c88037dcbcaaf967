package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/socialhub/socialhub/backend/go-services/internal/tokens"
	"github.com/socialhub/socialhub/backend/go-services/pkg/logger"
	"github.com/socialhub/socialhub/backend/go-services/pkg/metrics"
)

// ErrAuthFailed is returned for every refresh rejection: bad signature,
// expiry, unknown session, revoked session or a lost rotation race.
var ErrAuthFailed = errors.New("authentication failed")

// fallbackSessionTTL applies when a freshly signed refresh token carries no
// decodable exp claim.
const fallbackSessionTTL = 30 * 24 * time.Hour

// Service is the only place where token pairs are minted and refresh
// sessions are rotated or revoked.
type Service struct {
	store Store
	codec *tokens.Codec
	now   func() time.Time
	newID func() string
	log   *logger.Scoped
}

func NewService(store Store, codec *tokens.Codec) *Service {
	return &Service{
		store: store,
		codec: codec,
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.NewString() },
		log:   logger.Named("sessions", false),
	}
}

// Issue mints an access/refresh pair for identity and persists the new session.
func (s *Service) Issue(ctx context.Context, identity string) (*TokenPair, error) {
	if identity == "" {
		return nil, errors.New("cannot issue tokens without identity")
	}
	sid := s.newID()
	access, err := s.codec.SignAccess(identity)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := s.codec.SignRefresh(identity, sid)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}
	expiresAt, ok := tokens.PeekExpiry(refresh)
	if !ok {
		expiresAt = s.now().Add(fallbackSessionTTL)
	}
	sess := &RefreshSession{
		SessionID: sid,
		Identity:  identity,
		CreatedAt: s.now(),
		ExpiresAt: expiresAt.UTC(),
	}
	if err := s.store.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("persist refresh session: %w", err)
	}
	metrics.SessionsIssued.Inc()
	s.log.Debugf("issued session %s for %s", sid, identity)
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		SessionID:        sid,
		RefreshExpiresAt: sess.ExpiresAt,
	}, nil
}

// Rotate retires oldSessionID and issues a fresh pair. A refresh token is
// single-use: replaying it after a rotation fails with ErrAuthFailed.
func (s *Service) Rotate(ctx context.Context, oldSessionID, identity string) (*TokenPair, error) {
	if oldSessionID == "" || identity == "" {
		return nil, s.reject("payload", fmt.Errorf("%w: missing session or identity", ErrAuthFailed))
	}
	sess, err := s.store.FindActive(ctx, oldSessionID, identity)
	if errors.Is(err, ErrNotFound) {
		return nil, s.reject("unknown", fmt.Errorf("%w: session not registered", ErrAuthFailed))
	}
	if err != nil {
		return nil, err
	}
	if sess.Revoked() {
		return nil, s.reject("revoked", fmt.Errorf("%w: session revoked", ErrAuthFailed))
	}
	if sess.Expired(s.now()) {
		return nil, s.reject("expired", fmt.Errorf("%w: session expired", ErrAuthFailed))
	}
	won, err := s.store.Revoke(ctx, oldSessionID)
	if err != nil {
		return nil, err
	}
	if !won {
		// a concurrent rotation revoked it between the read and the write
		return nil, s.reject("race", fmt.Errorf("%w: session revoked concurrently", ErrAuthFailed))
	}
	pair, err := s.Issue(ctx, identity)
	if err != nil {
		return nil, err
	}
	metrics.SessionsRotated.Inc()
	s.log.Debugf("rotated session %s -> %s", oldSessionID, pair.SessionID)
	return pair, nil
}

// Refresh verifies a raw refresh token and rotates its session.
func (s *Service) Refresh(ctx context.Context, rawRefresh string) (*TokenPair, error) {
	rc, err := s.codec.VerifyRefresh(rawRefresh)
	if err != nil {
		return nil, s.reject("token", fmt.Errorf("%w: %v", ErrAuthFailed, err))
	}
	return s.Rotate(ctx, rc.SessionID, rc.Identity)
}

// IdentityFromRefresh returns the identity of a signature-valid, unexpired
// refresh token without consulting the store.
func (s *Service) IdentityFromRefresh(rawRefresh string) (string, error) {
	rc, err := s.codec.VerifyRefresh(rawRefresh)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	return rc.Identity, nil
}

// RevokeAll revokes every active session of identity (logout, password
// reset, account deletion).
func (s *Service) RevokeAll(ctx context.Context, identity string) error {
	if identity == "" {
		return nil
	}
	n, err := s.store.RevokeAllForIdentity(ctx, identity)
	if err != nil {
		return fmt.Errorf("revoke all sessions: %w", err)
	}
	metrics.SessionsRevoked.Add(float64(n))
	s.log.Debugf("revoked %d session(s) for %s", n, identity)
	return nil
}

func (s *Service) reject(reason string, err error) error {
	metrics.SessionsRejected.WithLabelValues(reason).Inc()
	s.log.Debugf("refresh rejected (%s): %v", reason, err)
	return err
}
