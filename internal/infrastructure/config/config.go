package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port          string `env:"PORT,           default=8080"`
	Env           string `env:"ENV,            default=development"`
	JWTSecret     string `env:"JWT_SECRET"`
	LogLevel      string `env:"LOG_LEVEL,      default=info"`
	ClientVersion string `env:"CLIENT_VERSION, default=1.0.0"`

	Auth      AuthConfig
	RateLimit RateLimitConfig
	Chat      ChatAPIConfig
	Cognito   CognitoConfig
	Redis     RedisConfig
	Session   SessionConfig
}

type AuthConfig struct {
	// RefreshMargin is how close to expiry an access token may get before a
	// submit proactively refreshes it.
	RefreshMargin time.Duration `env:"AUTH_REFRESH_MARGIN, default=60s"`
}

type RateLimitConfig struct {
	// Backend selects the quota window store: "memory" (single process) or
	// "redis" (shared across processes and tabs).
	Backend            string        `env:"RATE_LIMIT_BACKEND,       default=memory"`
	GuestLimit         int           `env:"RATE_LIMIT_GUEST,         default=10"`
	AuthenticatedLimit int           `env:"RATE_LIMIT_AUTHENTICATED, default=50"`
	Window             time.Duration `env:"RATE_LIMIT_WINDOW,        default=1h"`
}

type ChatAPIConfig struct {
	BaseURL          string        `env:"CHAT_API_URL,       default=http://localhost:9000"`
	Timeout          time.Duration `env:"CHAT_API_TIMEOUT,   default=30s"`
	MaxMessageLength int           `env:"MAX_MESSAGE_LENGTH, default=2000"`
}

type CognitoConfig struct {
	Region     string        `env:"AWS_REGION,           default=us-east-1"`
	ClientID   string        `env:"COGNITO_CLIENT_ID"`
	UserPoolID string        `env:"COGNITO_USER_POOL_ID"`
	Timeout    time.Duration `env:"COGNITO_TIMEOUT,      default=10s"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR, default=localhost:6379"`
	DB   int    `env:"REDIS_DB,   default=0"`
}

type SessionConfig struct {
	// TTL bounds how long an idle session context (and its token) stays valid.
	TTL time.Duration `env:"SESSION_TTL, default=12h"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	if err := cfg.validate(); err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return &cfg
}

func (c *Config) validate() error {
	// An empty secret would quietly sign every session token with an empty
	// HS256 key.
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	switch c.RateLimit.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("RATE_LIMIT_BACKEND must be %q or %q, got %q", "memory", "redis", c.RateLimit.Backend)
	}
	return nil
}
