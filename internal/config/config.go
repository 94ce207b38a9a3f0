// Package config loads server configuration from the environment.
//
// A .env file in the working directory is read first (godotenv) so local
// development doesn't need exported variables; real environment variables
// always win because godotenv.Load never overrides an existing key.
// go-envconfig then fills the typed Config struct from struct tags.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Auth modes.
const (
	AuthModeOAuth = "oauth"
	AuthModeLocal = "local"
)

// Config holds every setting the server reads at startup.
type Config struct {
	Port      int    `env:"PORT, default=3000"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`
	DBPath    string `env:"DB_PATH, default=data/indie_arcade.db"`
	AvatarDir string `env:"AVATAR_DIR, default=public/avatars"`
	StaticDir string `env:"STATIC_DIR, default=public"`

	// JWTSecret signs session cookies. When empty, main generates a
	// per-process secret and sessions do not survive a restart.
	JWTSecret string `env:"JWT_SECRET"`

	// AuthMode is "oauth" or "local". Empty picks oauth when Google
	// credentials are present and local otherwise.
	AuthMode string `env:"AUTH_MODE"`

	Google GoogleConfig
	Emoji  EmojiConfig
	Limit  RateLimitConfig
}

// GoogleConfig holds the OAuth client registration.
type GoogleConfig struct {
	ClientID     string `env:"GOOGLE_CLIENT_ID"`
	ClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	CallbackURL  string `env:"GOOGLE_CALLBACK_URL"`
}

// Configured reports whether both client credentials are set.
func (g GoogleConfig) Configured() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

// EmojiConfig configures the /emojis proxy. An empty APIKey disables it.
type EmojiConfig struct {
	APIKey string `env:"EMOJI_API_KEY"`
	APIURL string `env:"EMOJI_API_URL, default=https://emoji-api.com/emojis"`
}

// RateLimitConfig configures the per-actor limiter on write routes.
type RateLimitConfig struct {
	RPS   float64 `env:"RATE_LIMIT_RPS, default=5"`
	Burst int     `env:"RATE_LIMIT_BURST, default=10"`
}

// Load reads .env (if present) and the process environment.
func Load(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: reading .env: %w", err)
	}
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom fills a Config from an arbitrary lookuper. Tests pass an
// envconfig.MapLookuper.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: l,
	}); err != nil {
		return nil, fmt.Errorf("config: processing environment: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: PORT out of range: %d", c.Port)
	}

	c.AuthMode = strings.ToLower(strings.TrimSpace(c.AuthMode))
	switch c.AuthMode {
	case "":
		c.AuthMode = AuthModeLocal
		if c.Google.Configured() {
			c.AuthMode = AuthModeOAuth
		}
	case AuthModeLocal:
	case AuthModeOAuth:
		if !c.Google.Configured() {
			return errors.New("config: AUTH_MODE=oauth needs GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET")
		}
	default:
		return fmt.Errorf("config: unknown AUTH_MODE %q", c.AuthMode)
	}

	if c.Google.CallbackURL == "" {
		c.Google.CallbackURL = fmt.Sprintf("http://localhost:%d/auth/google/callback", c.Port)
	}

	if c.Limit.RPS <= 0 || c.Limit.Burst <= 0 {
		return fmt.Errorf("config: rate limit must be positive (rps=%v burst=%d)", c.Limit.RPS, c.Limit.Burst)
	}

	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses LogLevel ("debug", "info", "warn", "error").
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("config: invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return level, nil
}
