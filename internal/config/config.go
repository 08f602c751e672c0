// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

var configFile = altsrc.StringSourcer("config.toml")

// Notification sink names accepted by --notify-sinks.
const (
	SinkLog   = "log"
	SinkMail  = "mail"
	SinkRedis = "redis"
)

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Server   ServerConfig
	Log      LogConfig
	Database DatabaseConfig
	TLS      TLSConfig
	Session  SessionConfig
	SMTP     SMTPConfig
	Notify   NotifyConfig
	Tokens   TokensConfig
	CORS     CORSConfig
	Admin    AdminConfig
}

type TLSConfig struct {
	Mode     string // auto, acme, selfsigned, manual, off
	CertDir  string // Directory for auto-generated certificates
	Email    string // ACME email for Let's Encrypt
	CertFile string // Path to certificate file (manual mode)
	KeyFile  string // Path to private key file (manual mode)
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host        string
	Port        int
	BaseURL     string
	MaxBodySize int // in MB
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type DatabaseConfig struct {
	DSN string // file path or :memory: for SQLite, postgres:// URL for PostgreSQL
}

type SessionConfig struct { //nolint:govet // fieldalignment not critical
	CookieName string // Session cookie name
	MaxAge     int    // Session max age in seconds
	HashKey    string // 32-byte hex string for HMAC signing
	BlockKey   string // 32-byte hex string for AES encryption (optional)
}

type SMTPConfig struct { //nolint:govet // fieldalignment not critical
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	TLS      bool
}

type NotifyConfig struct { //nolint:govet // fieldalignment not critical
	Sinks         []string // log, mail, redis
	QueueSize     int
	FrontendURL   string // base for links sent to users
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisChannel  string
}

type TokensConfig struct {
	RegistrationTTL  time.Duration
	PasswordResetTTL time.Duration
	SweepInterval    time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

// AdminConfig describes an administrator created on startup when Login is set.
type AdminConfig struct {
	Login    string
	Email    string
	Password string
}

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:        cmd.String("host"),
			Port:        int(cmd.Int("port")),
			BaseURL:     cmd.String("base-url"),
			MaxBodySize: int(cmd.Int("max-body-size")),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Database: DatabaseConfig{
			DSN: cmd.String("database-dsn"),
		},
		TLS: TLSConfig{
			Mode:     cmd.String("tls-mode"),
			CertDir:  cmd.String("tls-cert-dir"),
			Email:    cmd.String("tls-email"),
			CertFile: cmd.String("tls-cert-file"),
			KeyFile:  cmd.String("tls-key-file"),
		},
		Session: SessionConfig{
			CookieName: cmd.String("session-cookie-name"),
			MaxAge:     int(cmd.Int("session-max-age")),
			HashKey:    cmd.String("session-hash-key"),
			BlockKey:   cmd.String("session-block-key"),
		},
		SMTP: SMTPConfig{
			Host:     cmd.String("smtp-host"),
			Port:     int(cmd.Int("smtp-port")),
			Username: cmd.String("smtp-username"),
			Password: cmd.String("smtp-password"),
			From:     cmd.String("smtp-from"),
			FromName: cmd.String("smtp-from-name"),
			TLS:      cmd.Bool("smtp-tls"),
		},
		Notify: NotifyConfig{
			Sinks:         splitList(cmd.StringSlice("notify-sinks")),
			QueueSize:     int(cmd.Int("notify-queue-size")),
			FrontendURL:   cmd.String("frontend-url"),
			RedisAddr:     cmd.String("redis-addr"),
			RedisPassword: cmd.String("redis-password"),
			RedisDB:       int(cmd.Int("redis-db")),
			RedisChannel:  cmd.String("redis-channel"),
		},
		Tokens: TokensConfig{
			RegistrationTTL:  cmd.Duration("registration-token-ttl"),
			PasswordResetTTL: cmd.Duration("reset-token-ttl"),
			SweepInterval:    cmd.Duration("token-sweep-interval"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(cmd.StringSlice("cors-allowed-origins")),
		},
		Admin: AdminConfig{
			Login:    cmd.String("admin-login"),
			Email:    cmd.String("admin-email"),
			Password: cmd.String("admin-password"),
		},
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = buildBaseURL(cfg)
	}
	if cfg.Notify.FrontendURL == "" {
		cfg.Notify.FrontendURL = cfg.Server.BaseURL
	}

	return cfg
}

// Validate reports configuration combinations the server cannot run with.
func (c *Config) Validate() error {
	var errs []error

	for _, sink := range c.Notify.Sinks {
		switch sink {
		case SinkLog, SinkRedis:
		case SinkMail:
			if c.SMTP.Host == "" || c.SMTP.From == "" {
				errs = append(errs, errors.New("mail sink requires smtp-host and smtp-from"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown notification sink %q", sink))
		}
	}

	if c.Tokens.RegistrationTTL <= 0 {
		errs = append(errs, errors.New("registration token ttl must be positive"))
	}
	if c.Tokens.PasswordResetTTL <= 0 {
		errs = append(errs, errors.New("reset token ttl must be positive"))
	}
	if c.Tokens.SweepInterval <= 0 {
		errs = append(errs, errors.New("token sweep interval must be positive"))
	}

	return errors.Join(errs...)
}

// HasSink reports whether the named notification sink is enabled.
func (c *Config) HasSink(name string) bool {
	return slices.Contains(c.Notify.Sinks, name)
}

// splitList flattens comma separated entries, which is how list values
// arrive from environment variables.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func buildBaseURL(cfg *Config) string {
	host := cfg.Server.Host
	port := cfg.Server.Port
	mode := strings.ToLower(cfg.TLS.Mode)

	scheme := "http"
	if shouldUseTLS(mode, host) {
		scheme = "https"
	}

	// ACME always serves on 443
	if mode == "acme" {
		return fmt.Sprintf("https://%s", host)
	}

	if (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
		return fmt.Sprintf("%s://%s", scheme, host)
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, port)
}

func shouldUseTLS(mode, host string) bool {
	switch mode {
	case "off":
		return false
	case "acme", "selfsigned", "manual":
		return true
	default: // "auto" or empty
		return !IsLocalhost(host)
	}
}

// IsLocalhost checks if the host is a localhost address.
func IsLocalhost(host string) bool {
	switch host {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	}
	return strings.HasSuffix(host, ".localhost")
}

func source(env, key string) cli.ValueSourceChain {
	return cli.NewValueSourceChain(cli.EnvVar(env), toml.TOML(key, configFile))
}

func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "Host to bind to",
			Sources: source("HOST", "server.host"),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   8080,
			Usage:   "Port to listen on",
			Sources: source("PORT", "server.port"),
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Base URL for the API",
			Sources: source("BASE_URL", "server.base_url"),
		},
		&cli.IntFlag{
			Name:    "max-body-size",
			Value:   1,
			Usage:   "Maximum request body size in MB",
			Sources: source("MAX_BODY_SIZE", "server.max_body_size"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: source("LOG_LEVEL", "log.level"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: source("LOG_FORMAT", "log.format"),
		},
		&cli.StringFlag{
			Name:    "database-dsn",
			Value:   "./data/serpback.db",
			Usage:   "Database DSN (SQLite path or postgres:// URL)",
			Sources: source("DATABASE_DSN", "database.dsn"),
		},
		&cli.StringFlag{
			Name:    "tls-mode",
			Value:   "auto",
			Usage:   "TLS mode (auto, acme, selfsigned, manual, off)",
			Sources: source("TLS_MODE", "tls.mode"),
		},
		&cli.StringFlag{
			Name:    "tls-cert-dir",
			Value:   "./data/certs",
			Usage:   "Directory for auto-generated certificates",
			Sources: source("TLS_CERT_DIR", "tls.cert_dir"),
		},
		&cli.StringFlag{
			Name:    "tls-email",
			Usage:   "Email for ACME/Let's Encrypt registration",
			Sources: source("TLS_EMAIL", "tls.email"),
		},
		&cli.StringFlag{
			Name:    "tls-cert-file",
			Usage:   "Path to TLS certificate file (manual mode)",
			Sources: source("TLS_CERT_FILE", "tls.cert_file"),
		},
		&cli.StringFlag{
			Name:    "tls-key-file",
			Usage:   "Path to TLS private key file (manual mode)",
			Sources: source("TLS_KEY_FILE", "tls.key_file"),
		},
		// Session flags
		&cli.StringFlag{
			Name:    "session-cookie-name",
			Value:   "_serpback_session",
			Usage:   "Session cookie name",
			Sources: source("SESSION_COOKIE_NAME", "session.cookie_name"),
		},
		&cli.IntFlag{
			Name:    "session-max-age",
			Value:   604800, // 7 days in seconds
			Usage:   "Session max age in seconds",
			Sources: source("SESSION_MAX_AGE", "session.max_age"),
		},
		&cli.StringFlag{
			Name:    "session-hash-key",
			Usage:   "Session hash key (32-byte hex, auto-generated if empty in dev)",
			Sources: source("SESSION_HASH_KEY", "session.hash_key"),
		},
		&cli.StringFlag{
			Name:    "session-block-key",
			Usage:   "Session block key for encryption (32-byte hex, optional)",
			Sources: source("SESSION_BLOCK_KEY", "session.block_key"),
		},
		// SMTP flags
		&cli.StringFlag{
			Name:    "smtp-host",
			Usage:   "SMTP server host",
			Sources: source("SMTP_HOST", "smtp.host"),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   587,
			Usage:   "SMTP server port",
			Sources: source("SMTP_PORT", "smtp.port"),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Usage:   "SMTP username",
			Sources: source("SMTP_USERNAME", "smtp.username"),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Usage:   "SMTP password",
			Sources: source("SMTP_PASSWORD", "smtp.password"),
		},
		&cli.StringFlag{
			Name:    "smtp-from",
			Usage:   "Sender address for notification mails",
			Sources: source("SMTP_FROM", "smtp.from"),
		},
		&cli.StringFlag{
			Name:    "smtp-from-name",
			Value:   "Serpback",
			Usage:   "Sender display name",
			Sources: source("SMTP_FROM_NAME", "smtp.from_name"),
		},
		&cli.BoolFlag{
			Name:    "smtp-tls",
			Value:   true,
			Usage:   "Require TLS for SMTP (implicit TLS on port 465)",
			Sources: source("SMTP_TLS", "smtp.tls"),
		},
		// Notification flags
		&cli.StringSliceFlag{
			Name:    "notify-sinks",
			Value:   []string{SinkLog},
			Usage:   "Notification sinks for account tokens (log, mail, redis)",
			Sources: source("NOTIFY_SINKS", "notify.sinks"),
		},
		&cli.IntFlag{
			Name:    "notify-queue-size",
			Value:   128,
			Usage:   "Buffered notifications before new ones are dropped",
			Sources: source("NOTIFY_QUEUE_SIZE", "notify.queue_size"),
		},
		&cli.StringFlag{
			Name:    "frontend-url",
			Usage:   "Base URL of the web client used in notification links (defaults to base_url)",
			Sources: source("FRONTEND_URL", "notify.frontend_url"),
		},
		&cli.StringFlag{
			Name:    "redis-addr",
			Value:   "localhost:6379",
			Usage:   "Redis address for the redis sink",
			Sources: source("REDIS_ADDR", "notify.redis_addr"),
		},
		&cli.StringFlag{
			Name:    "redis-password",
			Usage:   "Redis password",
			Sources: source("REDIS_PASSWORD", "notify.redis_password"),
		},
		&cli.IntFlag{
			Name:    "redis-db",
			Usage:   "Redis database number",
			Sources: source("REDIS_DB", "notify.redis_db"),
		},
		&cli.StringFlag{
			Name:    "redis-channel",
			Value:   "serpback.account",
			Usage:   "Redis Pub/Sub channel for account events",
			Sources: source("REDIS_CHANNEL", "notify.redis_channel"),
		},
		// Token flags
		&cli.DurationFlag{
			Name:    "registration-token-ttl",
			Value:   24 * time.Hour,
			Usage:   "Lifetime of registration confirmation tokens",
			Sources: source("REGISTRATION_TOKEN_TTL", "tokens.registration_ttl"),
		},
		&cli.DurationFlag{
			Name:    "reset-token-ttl",
			Value:   120 * time.Minute,
			Usage:   "Lifetime of password reset tokens",
			Sources: source("RESET_TOKEN_TTL", "tokens.password_reset_ttl"),
		},
		&cli.DurationFlag{
			Name:    "token-sweep-interval",
			Value:   time.Hour,
			Usage:   "Interval between expired token sweeps",
			Sources: source("TOKEN_SWEEP_INTERVAL", "tokens.sweep_interval"),
		},
		// CORS
		&cli.StringSliceFlag{
			Name:    "cors-allowed-origins",
			Usage:   "Origins allowed to call the API with credentials",
			Sources: source("CORS_ALLOWED_ORIGINS", "cors.allowed_origins"),
		},
		// Admin bootstrap
		&cli.StringFlag{
			Name:    "admin-login",
			Usage:   "Login of an administrator to create on startup",
			Sources: source("ADMIN_LOGIN", "admin.login"),
		},
		&cli.StringFlag{
			Name:    "admin-email",
			Usage:   "Email of the bootstrap administrator",
			Sources: source("ADMIN_EMAIL", "admin.email"),
		},
		&cli.StringFlag{
			Name:    "admin-password",
			Usage:   "Password of the bootstrap administrator",
			Sources: source("ADMIN_PASSWORD", "admin.password"),
		},
	}
}
