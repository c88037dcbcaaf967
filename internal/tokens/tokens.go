package tokens

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/socialhub/socialhub/backend/go-services/internal/config"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpired       = errors.New("token expired")
	ErrMissingSecret = errors.New("token secret not configured")
)

// identityClaims lists the claim names an identity may be stored under, in
// priority order. Older tokens used "id", "_id", "userId" or "uid".
var identityClaims = []string{"id", "_id", "userId", "uid", "sub"}

// Token class markers carried in the "typ" claim. They keep the classes
// apart when both share one secret.
const (
	typeClaim   = "typ"
	typeAccess  = "access"
	typeRefresh = "refresh"
)

// RefreshClaims is the verified content of a refresh token.
type RefreshClaims struct {
	Identity  string
	SessionID string
	ExpiresAt time.Time
}

// Codec signs and verifies access and refresh tokens. Both token classes use
// HS256 with independent secrets and lifetimes.
type Codec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewCodec builds a codec from JWT configuration. An empty refresh secret
// falls back to the access secret.
func NewCodec(cfg config.JWTConfig) (*Codec, error) {
	if cfg.Secret == "" {
		return nil, ErrMissingSecret
	}
	refresh := cfg.RefreshSecret
	if refresh == "" {
		refresh = cfg.Secret
	}
	c := &Codec{
		accessSecret:  []byte(cfg.Secret),
		refreshSecret: []byte(refresh),
		accessTTL:     cfg.AccessTokenTTL,
		refreshTTL:    cfg.RefreshTokenTTL,
		now:           time.Now,
	}
	if c.accessTTL <= 0 {
		c.accessTTL = 15 * time.Minute
	}
	if c.refreshTTL <= 0 {
		c.refreshTTL = 30 * 24 * time.Hour
	}
	return c, nil
}

// WithClock replaces the codec clock. Used by tests.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	c.now = now
	return c
}

func (c *Codec) AccessTTL() time.Duration { return c.accessTTL }
func (c *Codec) RefreshTTL() time.Duration { return c.refreshTTL }

// SignAccess creates a signed access token for identity. The identity is
// written both as "sub" and as "id".
func (c *Codec) SignAccess(identity string) (string, error) {
	if identity == "" {
		return "", fmt.Errorf("sign access: empty identity")
	}
	now := c.now()
	claims := jwt.MapClaims{
		"sub":     identity,
		"id":      identity,
		typeClaim: typeAccess,
		"iat":     now.Unix(),
		"exp":     now.Add(c.accessTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.accessSecret)
}

// VerifyAccess checks signature and expiry and returns the identity.
func (c *Codec) VerifyAccess(raw string) (string, error) {
	claims, err := c.parse(raw, c.accessSecret, typeAccess)
	if err != nil {
		return "", err
	}
	id := ExtractIdentity(claims)
	if id == "" {
		return "", fmt.Errorf("%w: no identity claim", ErrInvalidToken)
	}
	return id, nil
}

// SignRefresh creates a signed refresh token bound to sessionID.
func (c *Codec) SignRefresh(identity, sessionID string) (string, error) {
	if identity == "" || sessionID == "" {
		return "", fmt.Errorf("sign refresh: identity and session id required")
	}
	now := c.now()
	claims := jwt.MapClaims{
		"sub":     identity,
		"jti":     sessionID,
		typeClaim: typeRefresh,
		"iat":     now.Unix(),
		"exp":     now.Add(c.refreshTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.refreshSecret)
}

// VerifyRefresh checks signature and expiry and returns identity and session id.
func (c *Codec) VerifyRefresh(raw string) (*RefreshClaims, error) {
	claims, err := c.parse(raw, c.refreshSecret, typeRefresh)
	if err != nil {
		return nil, err
	}
	id := ExtractIdentity(claims)
	jti, _ := claims["jti"].(string)
	if id == "" || jti == "" {
		return nil, fmt.Errorf("%w: refresh payload incomplete", ErrInvalidToken)
	}
	rc := &RefreshClaims{Identity: id, SessionID: jti}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		rc.ExpiresAt = exp.Time
	}
	return rc, nil
}

// parse verifies signature, algorithm and expiry, then requires the typ
// claim to name the expected token class.
func (c *Codec) parse(raw string, secret []byte, class string) (jwt.MapClaims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidToken
	}
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if typ, _ := claims[typeClaim].(string); typ != class {
		return nil, fmt.Errorf("%w: want %s token, got typ %q", ErrInvalidToken, class, typ)
	}
	return claims, nil
}

// ExtractIdentity returns the identity from the first present claim of
// id, _id, userId, uid, sub. Numbers are formatted without decimals. It
// returns "" when none is present.
func ExtractIdentity(claims map[string]interface{}) string {
	for _, name := range identityClaims {
		v, ok := claims[name]
		if !ok || v == nil {
			continue
		}
		switch vv := v.(type) {
		case string:
			return strings.TrimSpace(vv)
		case float64:
			return strings.TrimSpace(fmt.Sprintf("%.0f", vv))
		default:
			return strings.TrimSpace(fmt.Sprint(vv))
		}
	}
	return ""
}

// PeekExpiry decodes the exp claim without verifying the signature. It must
// never be used for authorization decisions.
func PeekExpiry(raw string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// PeekClaims decodes the payload without verifying the signature.
func PeekClaims(raw string) (map[string]interface{}, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}
