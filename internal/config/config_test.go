package config

import (
	"errors"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017/testdb")
	t.Setenv("MONGODB_DATABASE", "socialhub_test")
	t.Setenv("REDIS_HOST", "localhost")
	t.Setenv("JWT_SECRET", "testsecret123456789012345678901234")
	t.Setenv("REFRESH_JWT_SECRET", "")
	t.Setenv("CORS_ORIGIN", "http://a.example, http://b.example,,")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.MongoDB.URI == "" || cfg.Redis.Addr() != "localhost:6379" {
		t.Fatalf("unexpected config values: %+v", cfg)
	}
	if cfg.JWT.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("access ttl = %v, want 15m", cfg.JWT.AccessTokenTTL)
	}
	if cfg.JWT.RefreshTokenTTL != 30*24*time.Hour {
		t.Fatalf("refresh ttl = %v, want 30d", cfg.JWT.RefreshTokenTTL)
	}
	if cfg.JWT.RefreshSecret != cfg.JWT.Secret {
		t.Fatalf("refresh secret should fall back to access secret")
	}
	if len(cfg.Realtime.AllowedOrigins) != 2 {
		t.Fatalf("origins = %v", cfg.Realtime.AllowedOrigins)
	}
	if cfg.Realtime.Path != "/socket.io" || cfg.Realtime.AuthDisabled {
		t.Fatalf("unexpected realtime config: %+v", cfg.Realtime)
	}
}

func TestLoadConfig_MissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := LoadConfig()
	if !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
}

func TestLoadConfig_RejectsUnknownStore(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("SESSION_STORE", "postgres")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for unknown session store")
	}
}

func TestParseTTL(t *testing.T) {
	cases := map[string]time.Duration{
		"15m":  15 * time.Minute,
		"30d":  30 * 24 * time.Hour,
		"1h5s": time.Hour + 5*time.Second,
	}
	for in, want := range cases {
		got, err := ParseTTL(in)
		if err != nil || got != want {
			t.Fatalf("ParseTTL(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	for _, bad := range []string{"", "xd", "-1d", "0s", "abc"} {
		if _, err := ParseTTL(bad); err == nil {
			t.Fatalf("ParseTTL(%q) should fail", bad)
		}
	}
}
