package sessions

import "time"

// RefreshSession is the persisted record behind one refresh token. A session
// is never deleted in normal flow; it is retired by setting RevokedAt.
type RefreshSession struct {
	SessionID string     `bson:"sessionId" json:"sessionId"`
	Identity  string     `bson:"identity" json:"identity"`
	CreatedAt time.Time  `bson:"createdAt" json:"createdAt"`
	RevokedAt *time.Time `bson:"revokedAt" json:"revokedAt"`
	ExpiresAt time.Time  `bson:"expiresAt" json:"expiresAt"`
}

// Revoked reports whether the session has been revoked.
func (s *RefreshSession) Revoked() bool {
	return s.RevokedAt != nil
}

// Expired reports whether the session is past its expiry at now.
func (s *RefreshSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// TokenPair is what the service hands back on issue and rotation.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	SessionID        string
	RefreshExpiresAt time.Time
}
