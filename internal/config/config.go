// Package config reads the service configuration from the environment once
// at startup and hands it out behind per-concern interfaces.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
)

type Config interface {
	EnvConfig
	CorsConfig
	OAuthConfig
	SessionConfig
	SMTPConfig
	TelemetryConfig
}

// envValues is the flat environment schema. Everything has a development
// default except the secrets, which default to empty and are checked where
// they are used.
type envValues struct {
	Port          string `env:"PORT" envDefault:"8080"`
	AppName       string `env:"APP_NAME" envDefault:"Go Ident Server"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
	DatabasePath  string `env:"DATABASE_PATH" envDefault:"./data/ident.db"`
	Environment   string `env:"ENV" envDefault:"DEV"`

	// Optional JSON documents loaded at startup.
	KeysDocumentPath string `env:"KEYS_DOCUMENT_PATH"`
	ClientsSeedPath  string `env:"CLIENTS_SEED_PATH"`

	AuthCodeTimeout    time.Duration `env:"AUTH_CODE_TIMEOUT" envDefault:"15m"`
	TokenLength        int           `env:"TOKEN_LENGTH" envDefault:"32"`
	AccessTokenExpiry  time.Duration `env:"ACCESS_TOKEN_EXPIRY" envDefault:"1h"`
	RefreshTokenExpiry time.Duration `env:"REFRESH_TOKEN_EXPIRY" envDefault:"168h"`
	CompatTokenExpiry  time.Duration `env:"COMPAT_TOKEN_EXPIRY" envDefault:"720h"`

	SessionSecret            string        `env:"SESSION_SECRET"`
	PasswordChangeMaxAge     time.Duration `env:"SESSION_PASSWORD_CHANGE_MAX_AGE" envDefault:"5m"`
	ConsentMaxAge            time.Duration `env:"SESSION_CONSENT_MAX_AGE" envDefault:"1h"`
	FinishedSessionRetention time.Duration `env:"SESSION_FINISHED_RETENTION" envDefault:"72h"`

	SMTPHost        string        `env:"SMTP_HOST" envDefault:"localhost"`
	SMTPPort        int           `env:"SMTP_PORT" envDefault:"587"`
	SMTPAccount     string        `env:"SMTP_ACCOUNT"`
	SMTPPassword    string        `env:"SMTP_PASSWORD"`
	SMTPFrom        string        `env:"SMTP_FROM" envDefault:"no-reply@localhost"`
	VerificationTTL time.Duration `env:"EMAIL_VERIFICATION_TTL" envDefault:"24h"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	AllowedMethods string   `env:"CORS_ALLOWED_METHODS" envDefault:"GET, POST, PUT, PATCH, DELETE"`
	AllowedHeaders string   `env:"CORS_ALLOWED_HEADERS" envDefault:"Content-Type, Authorization"`
}

type mainConfig struct {
	vars envValues
}

// New parses the environment. Unset variables fall back to their defaults;
// tests override via t.Setenv before calling.
func New() (Config, error) {
	var vars envValues
	if err := env.Parse(&vars); err != nil {
		return nil, errors.Wrap(err, "[config.New] parsing environment")
	}
	return &mainConfig{vars: vars}, nil
}
