package main

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/socialhub/socialhub/backend/go-services/internal/config"
	"github.com/socialhub/socialhub/backend/go-services/internal/sessions"
	"github.com/socialhub/socialhub/backend/go-services/internal/tokens"
	"github.com/stretchr/testify/require"
)

// setupEnv points the commands at a miniredis session store.
func setupEnv(t *testing.T) (*sessions.Service, *sessions.RedisStore) {
	t.Helper()
	m, err := mr.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)
	host, port, err := net.SplitHostPort(m.Addr())
	require.NoError(t, err)

	t.Setenv("JWT_SECRET", "cli-secret")
	t.Setenv("REFRESH_JWT_SECRET", "cli-refresh-secret")
	t.Setenv("SESSION_STORE", "redis")
	t.Setenv("REDIS_HOST", host)
	t.Setenv("REDIS_PORT", port)
	t.Setenv("MONGODB_URI", "")

	codec, err := tokens.NewCodec(config.JWTConfig{
		Secret:          "cli-secret",
		RefreshSecret:   "cli-refresh-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: time.Hour,
	})
	require.NoError(t, err)
	store := sessions.NewRedisStore(redis.NewClient(&redis.Options{Addr: m.Addr()}), "")
	return sessions.NewService(store, codec), store
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRevokeAll(t *testing.T) {
	svc, store := setupEnv(t)
	ctx := context.Background()
	pair, err := svc.Issue(ctx, "user-7")
	require.NoError(t, err)

	out, err := run(t, "revoke-all", "user-7")
	require.NoError(t, err)
	require.Contains(t, out, "revoked 1 session(s) for user-7")

	sess, err := store.FindActive(ctx, pair.SessionID, "user-7")
	require.NoError(t, err)
	require.True(t, sess.Revoked())
}

func TestInspect(t *testing.T) {
	svc, _ := setupEnv(t)
	ctx := context.Background()
	pair, err := svc.Issue(ctx, "user-7")
	require.NoError(t, err)

	out, err := run(t, "inspect", pair.AccessToken)
	require.NoError(t, err)
	require.Contains(t, out, "verified: access token for user-7")

	out, err = run(t, "inspect", pair.RefreshToken)
	require.NoError(t, err)
	require.Contains(t, out, "refresh token for user-7, session "+pair.SessionID)
	require.Contains(t, out, "session: active until")

	require.NoError(t, svc.RevokeAll(ctx, "user-7"))
	out, err = run(t, "inspect", pair.RefreshToken)
	require.NoError(t, err)
	require.Contains(t, out, "session: revoked at")

	out, err = run(t, "inspect", "--offline", pair.RefreshToken)
	require.NoError(t, err)
	require.NotContains(t, out, "session:")
}

func TestInspect_Garbage(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "inspect", "not-a-token")
	require.Error(t, err)

	_, err = run(t, "revoke-all")
	require.Error(t, err)
}

func TestInspect_SharedSecretLabelsRefresh(t *testing.T) {
	setupEnv(t)
	t.Setenv("REFRESH_JWT_SECRET", "")
	codec, err := tokens.NewCodec(config.JWTConfig{Secret: "cli-secret"})
	require.NoError(t, err)
	rt, err := codec.SignRefresh("user-8", "sid-8")
	require.NoError(t, err)

	out, err := run(t, "inspect", "--offline", rt)
	require.NoError(t, err)
	require.NotContains(t, out, "access token")
	require.Contains(t, out, "verified: refresh token for user-8, session sid-8")
}
