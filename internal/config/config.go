package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingSecret is returned when JWT_SECRET is not configured.
var ErrMissingSecret = errors.New("JWT_SECRET is required")

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Sessions  SessionsConfig
	Realtime  RealtimeConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Production reports whether the service runs with production defaults
// (secure cookies).
func (s ServerConfig) Production() bool {
	return strings.EqualFold(s.Environment, "production")
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr returns host:port, or "" when Redis is not configured.
func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return r.Host + ":" + r.Port
}

type JWTConfig struct {
	Secret          string
	RefreshSecret   string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type SessionsConfig struct {
	// Store selects the refresh session backend: "mongo" or "redis".
	Store string
}

type RealtimeConfig struct {
	Path           string
	AllowedOrigins []string
	AuthDisabled   bool
	Debug          bool
}

type RateLimitConfig struct {
	Enabled  bool
	UseRedis bool
}

type LogConfig struct {
	Level     string
	AuthDebug bool
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env")

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "4000")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("MONGODB_DATABASE", "socialhub")
	viper.SetDefault("MONGODB_TIMEOUT", 10)
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("ACCESS_JWT_EXPIRES_IN", "15m")
	viper.SetDefault("REFRESH_JWT_EXPIRES_IN", "30d")
	viper.SetDefault("SESSION_STORE", "mongo")
	viper.SetDefault("RATE_LIMIT_ENABLED", true)
	viper.SetDefault("WS_PATH", "/socket.io")
	viper.SetDefault("CORS_ORIGIN", "http://localhost:5173")
	viper.SetDefault("LOG_LEVEL", "info")

	accessTTL, err := ParseTTL(viper.GetString("ACCESS_JWT_EXPIRES_IN"))
	if err != nil {
		return nil, fmt.Errorf("ACCESS_JWT_EXPIRES_IN: %w", err)
	}
	refreshTTL, err := ParseTTL(viper.GetString("REFRESH_JWT_EXPIRES_IN"))
	if err != nil {
		return nil, fmt.Errorf("REFRESH_JWT_EXPIRES_IN: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			Environment:  viper.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		MongoDB: MongoDBConfig{
			URI:      viper.GetString("MONGODB_URI"),
			Database: viper.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(viper.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:          viper.GetString("JWT_SECRET"),
			RefreshSecret:   viper.GetString("REFRESH_JWT_SECRET"),
			AccessTokenTTL:  accessTTL,
			RefreshTokenTTL: refreshTTL,
		},
		Sessions: SessionsConfig{
			Store: strings.ToLower(strings.TrimSpace(viper.GetString("SESSION_STORE"))),
		},
		Realtime: RealtimeConfig{
			Path:           viper.GetString("WS_PATH"),
			AllowedOrigins: SplitList(viper.GetString("CORS_ORIGIN")),
			AuthDisabled:   viper.GetBool("SOCKET_AUTH_OFF"),
			Debug:          viper.GetBool("SOCKET_DEBUG"),
		},
		RateLimit: RateLimitConfig{
			Enabled:  viper.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis: viper.GetBool("RATE_LIMIT_USE_REDIS"),
		},
		Log: LogConfig{
			Level:     viper.GetString("LOG_LEVEL"),
			AuthDebug: viper.GetBool("AUTH_MIDDLEWARE_DEBUG"),
		},
	}

	if cfg.JWT.Secret == "" {
		return nil, ErrMissingSecret
	}
	if cfg.JWT.RefreshSecret == "" {
		cfg.JWT.RefreshSecret = cfg.JWT.Secret
	}
	if cfg.Sessions.Store != "mongo" && cfg.Sessions.Store != "redis" {
		return nil, fmt.Errorf("SESSION_STORE must be mongo or redis, got %q", cfg.Sessions.Store)
	}

	return cfg, nil
}

// ParseTTL accepts Go durations ("15m", "1h30m") plus a day suffix ("30d").
func ParseTTL(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty duration")
	}
	if strings.HasSuffix(s, "d") {
		n, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return 0, fmt.Errorf("invalid day duration %q", s)
		}
		if n <= 0 {
			return 0, fmt.Errorf("duration must be positive: %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive: %q", s)
	}
	return d, nil
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
