package config

import (
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the application's configuration values.
// Tags like `envconfig:"PORT"` specify the environment variable name.
// `required:"true"` makes an environment variable mandatory.
type Config struct {
	AppEnv     string `envconfig:"APP_ENV" default:"development"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat  string `envconfig:"LOG_FORMAT" default:"json"`
	HttpServer ServerConfig
	GrpcServer GrpcServerConfig
	Postgres   PostgresConfig
	Mail       MailConfig
	CORS       CORSConfig
}

// ServerConfig holds HTTP server-specific configurations.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"3001"`
	TimeoutRead     time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_READ" default:"15s"`
	TimeoutWrite    time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_WRITE" default:"30s"`
	TimeoutIdle     time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_IDLE" default:"60s"`
	RequestTimeout  time.Duration `envconfig:"HTTP_REQUEST_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	// MaxUploadBytes bounds multipart bodies on /api/sendEmail.
	MaxUploadBytes int64 `envconfig:"HTTP_MAX_UPLOAD_BYTES" default:"26214400"`
}

// GrpcServerConfig holds the gRPC health server settings.
type GrpcServerConfig struct {
	Port    string `envconfig:"GRPC_SERVER_PORT" default:"9090"`
	Enabled bool   `envconfig:"GRPC_SERVER_ENABLED" default:"true"`
}

// PostgresConfig holds PostgreSQL database connection details.
// The five connection variables are mandatory; the service refuses to start without them.
type PostgresConfig struct {
	User     string `envconfig:"DB_USER" required:"true"`
	Host     string `envconfig:"DB_HOST" required:"true"`
	Database string `envconfig:"DB_DATABASE" required:"true"`
	Password string `envconfig:"DB_PASSWORD" required:"true"`
	Port     string `envconfig:"DB_PORT" required:"true"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"30m"`

	ReconnectDelay time.Duration `envconfig:"DB_RECONNECT_DELAY" default:"5s"`
	PingInterval   time.Duration `envconfig:"DB_PING_INTERVAL" default:"15s"`
	AutoMigrate    bool          `envconfig:"DB_AUTO_MIGRATE" default:"false"`
}

// DSN constructs the connection URL for lib/pq.
func (pc *PostgresConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(pc.User, pc.Password),
		Host:     net.JoinHostPort(pc.Host, pc.Port),
		Path:     pc.Database,
		RawQuery: url.Values{"sslmode": []string{pc.SSLMode}}.Encode(),
	}
	return u.String()
}

// Missing lists the required connection settings that are empty.
func (pc *PostgresConfig) Missing() []string {
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"DB_USER", pc.User},
		{"DB_HOST", pc.Host},
		{"DB_DATABASE", pc.Database},
		{"DB_PASSWORD", pc.Password},
		{"DB_PORT", pc.Port},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// MailConfig holds SMTP settings for the contact and calculator endpoints.
type MailConfig struct {
	Host     string `envconfig:"SMTP_HOST" default:"localhost"`
	Port     int    `envconfig:"SMTP_PORT" default:"587"`
	User     string `envconfig:"SMTP_USER"`
	Password string `envconfig:"SMTP_PASSWORD"`
	UseTLS   bool   `envconfig:"SMTP_TLS" default:"true"`
	From     string `envconfig:"MAIL_FROM" default:"info@kraabmod.fi"`
	To       string `envconfig:"MAIL_TO" default:"info@kraabmod.fi"`

	Timeout time.Duration `envconfig:"SMTP_TIMEOUT" default:"30s"`

	// RateLimit is the number of email requests accepted per client IP per minute.
	RateLimit int `envconfig:"MAIL_RATE_LIMIT" default:"10"`

	// After BreakerMaxFailures consecutive relay failures, sends fail fast for BreakerTimeout.
	BreakerMaxFailures uint32        `envconfig:"SMTP_BREAKER_MAX_FAILURES" default:"5"`
	BreakerTimeout     time.Duration `envconfig:"SMTP_BREAKER_TIMEOUT" default:"60s"`
}

// CORSConfig holds the allowed origins for browser clients.
type CORSConfig struct {
	AllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// Load initializes the configuration from environment variables.
// It should be called once during application startup; a missing DB_* variable is an error.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process configuration: %w", err)
	}
	if missing := cfg.Postgres.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %v", missing)
	}
	return &cfg, nil
}
