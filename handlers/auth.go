package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/socialhub/socialhub/backend/go-services/internal/config"
	"github.com/socialhub/socialhub/backend/go-services/internal/sessions"
	"github.com/socialhub/socialhub/backend/go-services/internal/users"
	"github.com/socialhub/socialhub/backend/go-services/pkg/logger"
	"github.com/socialhub/socialhub/backend/go-services/pkg/middleware"
)

const (
	refreshCookieName = "refreshToken"
	refreshCookiePath = "/api/auth"
)

var (
	loginLimit    = middleware.Limit{Scope: "login", Max: 10, Window: 15 * time.Minute, Message: "Too many login attempts, try again later"}
	registerLimit = middleware.Limit{Scope: "register", Max: 20, Window: time.Hour, Message: "Too many registrations, try again later"}
	refreshLimit  = middleware.Limit{Scope: "refresh", Max: 20, Window: time.Minute, Message: "Too many refresh requests"}
)

// LoginRequest is the password login payload. Identifier is an email or a
// username.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// AuthHandler holds dependencies
type AuthHandler struct {
	cfg         *config.Config
	usersSvc    *users.Service
	sessionsSvc *sessions.Service
	verifier    middleware.AccessVerifier
	redis       *redis.Client
}

// NewAuthHandler wires the auth endpoints. rdb may be nil; limiters then
// stay in memory.
func NewAuthHandler(cfg *config.Config, u *users.Service, s *sessions.Service, v middleware.AccessVerifier, rdb *redis.Client) *AuthHandler {
	return &AuthHandler{cfg: cfg, usersSvc: u, sessionsSvc: s, verifier: v, redis: rdb}
}

// Register routes under /auth
func (h *AuthHandler) Register(rg *gin.RouterGroup) {
	a := rg.Group("/auth")
	a.POST("/register", h.limit(registerLimit), h.SignUp)
	a.POST("/login", h.limit(loginLimit), h.Login)
	a.POST("/refresh", h.limit(refreshLimit), h.Refresh)
	a.POST("/logout", h.Logout)
	a.GET("/me", middleware.RequireAuth(h.verifier, h.cfg.Log.AuthDebug), h.Me)
}

func (h *AuthHandler) limit(l middleware.Limit) gin.HandlerFunc {
	if !h.cfg.RateLimit.Enabled {
		return func(c *gin.Context) { c.Next() }
	}
	if h.cfg.RateLimit.UseRedis && h.redis != nil {
		return middleware.RedisRateLimitMiddleware(h.redis, l)
	}
	return middleware.RateLimitMiddleware(l)
}

// SignUp creates an account and starts a session.
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req users.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	u, err := h.usersSvc.Register(c.Request.Context(), req)
	if err != nil {
		var verr *users.ValidationError
		switch {
		case errors.As(err, &verr):
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Msg})
		case errors.Is(err, users.ErrExists):
			c.JSON(http.StatusConflict, gin.H{"error": "Email or username already in use"})
		default:
			logger.Errorf("register: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		}
		return
	}
	pair, ok := h.issue(c, u.ID)
	if !ok {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": u.Profile(), "accessToken": pair.AccessToken})
}

// Login checks credentials and starts a session.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	u, err := h.usersSvc.Authenticate(c.Request.Context(), req.Identifier, req.Password)
	if err != nil {
		var verr *users.ValidationError
		switch {
		case errors.As(err, &verr):
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Msg})
		case errors.Is(err, users.ErrInvalidCredentials):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid credentials"})
		default:
			logger.Errorf("login: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		}
		return
	}
	pair, ok := h.issue(c, u.ID)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u.Profile(), "accessToken": pair.AccessToken})
}

// issue mints a pair and sets the refresh cookie. It writes the error
// response itself and reports false on failure.
func (h *AuthHandler) issue(c *gin.Context, identity string) (*sessions.TokenPair, bool) {
	pair, err := h.sessionsSvc.Issue(c.Request.Context(), identity)
	if err != nil {
		logger.Errorf("issue session for %s: %v", identity, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return nil, false
	}
	h.setRefreshCookie(c, pair.RefreshToken)
	return pair, true
}

// Refresh exchanges the refresh cookie for a new pair. The presented
// refresh token is spent.
func (h *AuthHandler) Refresh(c *gin.Context) {
	raw, err := c.Cookie(refreshCookieName)
	if err != nil || raw == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No refresh token"})
		return
	}
	pair, err := h.sessionsSvc.Refresh(c.Request.Context(), raw)
	if err != nil {
		if errors.Is(err, sessions.ErrAuthFailed) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid refresh token"})
			return
		}
		logger.Errorf("refresh: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "refresh failed"})
		return
	}
	h.setRefreshCookie(c, pair.RefreshToken)
	c.JSON(http.StatusOK, gin.H{"accessToken": pair.AccessToken})
}

// Logout clears the cookie and revokes every session of the identity the
// cookie resolves to. It never fails.
func (h *AuthHandler) Logout(c *gin.Context) {
	if raw, err := c.Cookie(refreshCookieName); err == nil && raw != "" {
		if identity, err := h.sessionsSvc.IdentityFromRefresh(raw); err == nil {
			if err := h.sessionsSvc.RevokeAll(c.Request.Context(), identity); err != nil {
				logger.Warnf("logout: revoke sessions for %s: %v", identity, err)
			}
		}
	}
	h.clearRefreshCookie(c)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Me returns the profile of the authenticated identity.
func (h *AuthHandler) Me(c *gin.Context) {
	id, _ := middleware.Identity(c)
	u, err := h.usersSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		logger.Errorf("me: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u.Profile()})
}

func (h *AuthHandler) secureCookie(c *gin.Context) bool {
	return c.Request.TLS != nil || h.cfg.Server.Production()
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, token string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     refreshCookiePath,
		MaxAge:   int(h.cfg.JWT.RefreshTokenTTL / time.Second),
		HttpOnly: true,
		Secure:   h.secureCookie(c),
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearRefreshCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie(c),
		SameSite: http.SameSiteLaxMode,
	})
}
