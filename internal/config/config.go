// Package config loads process configuration from the environment.
package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"

	"github.com/threadsclone/backend/internal/errors"
)

// Config is shared by every service and the gateway.
type Config struct {
	Service string

	Port        int    `env:"PORT"`
	Environment string `env:"APP_ENV,default=development"`
	CORSOrigin  string `env:"CORS_ORIGIN,default=http://localhost:3000"`
	FrontendURL string `env:"FRONTEND_URL,default=http://localhost:3000"`

	JWTSecret    string        `env:"JWT_SECRET"`
	JWTExpiresIn time.Duration `env:"JWT_EXPIRES_IN,default=168h"`

	DatabaseURL    string `env:"DATABASE_URL"`
	DBMaxOpenConns int    `env:"DB_MAX_OPEN_CONNS,default=10"`
	DBMaxIdleConns int    `env:"DB_MAX_IDLE_CONNS,default=5"`

	RedisURL string `env:"REDIS_URL"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=text"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT,default=587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASS"`
	MailFrom     string `env:"MAIL_FROM,default=noreply@threads-clone.local"`

	RateLimitWindow    time.Duration `env:"RATE_LIMIT_WINDOW,default=15m"`
	RateLimitMax       int           `env:"RATE_LIMIT_MAX,default=100"`
	AuthRateLimitMax   int           `env:"AUTH_RATE_LIMIT_MAX,default=5"`
	ResetRateLimitMax  int           `env:"RESET_RATE_LIMIT_MAX,default=3"`
	SubscriptionBuffer int           `env:"SUBSCRIPTION_BUFFER,default=64"`

	ServicesConfigPath string `env:"SERVICES_CONFIG,default=config/services.yaml"`
}

// Load reads an optional .env file and decodes the environment. JWT_SECRET
// and DATABASE_URL are mandatory; their absence is a ConfigError.
func Load(service string, defaultPort int) (*Config, error) {
	if err := godotenv.Load(); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return nil, errors.Config(fmt.Sprintf("load .env: %v", err))
	}
	return FromEnv(service, defaultPort)
}

// FromEnv decodes the current environment without touching .env files.
func FromEnv(service string, defaultPort int) (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !stderrors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, errors.Config(fmt.Sprintf("decode environment: %v", err))
	}
	cfg.Service = service
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first missing mandatory setting.
func (c *Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.JWTSecret) == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if strings.TrimSpace(c.DatabaseURL) == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if len(missing) > 0 {
		return errors.Config("missing required environment: " + strings.Join(missing, ", "))
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.Config(fmt.Sprintf("invalid PORT %d", c.Port))
	}
	return nil
}

// IsProduction selects JSON logs and hides playground tooling.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// LogFormatOrDefault forces JSON logs in production.
func (c *Config) LogFormatOrDefault() string {
	if c.IsProduction() {
		return "json"
	}
	return c.LogFormat
}
