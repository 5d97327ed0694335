// Package config handles application configuration and environment loading.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
)

// DirectoryConfig holds directory connection settings. Controllers lists
// the individual domain controllers; when empty, the directory is reached
// through the domain address.
type DirectoryConfig struct {
	Controllers  []string
	Domain       string
	BaseDN       string
	BindUsername string
	BindPassword string

	TimeoutSeconds int  `default:"30"`
	UseTLS         bool `default:"true"`
	SkipTLS        bool `default:"false"`

	KerberosRealm  string
	KerberosKeytab string
	KerberosConfig string
}

// Timeout returns the per-session network timeout.
func (d *DirectoryConfig) Timeout() time.Duration {
	return time.Duration(d.TimeoutSeconds) * time.Second
}

// RetryConfig bounds directory retry behavior.
type RetryConfig struct {
	MaxAttempts      int `default:"3"`
	BaseDelaySeconds int `default:"2"`
	MaxDelaySeconds  int `default:"30"`
}

// BaseDelay returns the backoff unit.
func (r *RetryConfig) BaseDelay() time.Duration {
	return time.Duration(r.BaseDelaySeconds) * time.Second
}

// MaxDelay returns the backoff ceiling.
func (r *RetryConfig) MaxDelay() time.Duration {
	return time.Duration(r.MaxDelaySeconds) * time.Second
}

// JWTConfig holds token issuance settings. Secret has no default: a
// deployment without one must not start.
type JWTConfig struct {
	Secret   string
	Issuer   string `default:"portcullis"`
	Audience string `default:"portal"`
	TTLHours int    `default:"24"`
}

// TTL returns the token lifetime.
func (j *JWTConfig) TTL() time.Duration {
	return time.Duration(j.TTLHours) * time.Hour
}

// RateLimitConfig bounds per-client login attempts.
type RateLimitConfig struct {
	RPS   float64 `default:"5"`
	Burst int     `default:"10"`
}

// Config is the full application configuration.
type Config struct {
	ListenAddr string `default:":8080"`
	LogLevel   string `default:"info"`
	Env        string `default:"development"`

	CORSAllowedOrigins []string

	Directory DirectoryConfig
	Retry     RetryConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Validate checks that the configuration can actually run. Errors here are
// fatal at startup.
func (c *Config) Validate() error {
	if len(c.Directory.Controllers) == 0 && c.Directory.Domain == "" {
		return fmt.Errorf("either PORTCULLIS_DIRECTORY_CONTROLLERS or PORTCULLIS_DIRECTORY_DOMAIN must be set")
	}
	if c.Directory.BaseDN == "" {
		return fmt.Errorf("PORTCULLIS_DIRECTORY_BASE_DN must be set")
	}
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return fmt.Errorf("PORTCULLIS_JWT_SECRET must be set")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("PORTCULLIS_RETRY_MAX_ATTEMPTS must be at least 1")
	}
	return nil
}

// LoadFromEnv builds the configuration from defaults overridden by
// PORTCULLIS_* environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	setString(&cfg.ListenAddr, "PORTCULLIS_LISTEN_ADDR")
	setString(&cfg.LogLevel, "PORTCULLIS_LOG_LEVEL")
	setString(&cfg.Env, "PORTCULLIS_ENV")
	setList(&cfg.CORSAllowedOrigins, "PORTCULLIS_CORS_ALLOWED_ORIGINS")

	setList(&cfg.Directory.Controllers, "PORTCULLIS_DIRECTORY_CONTROLLERS")
	setString(&cfg.Directory.Domain, "PORTCULLIS_DIRECTORY_DOMAIN")
	setString(&cfg.Directory.BaseDN, "PORTCULLIS_DIRECTORY_BASE_DN")
	setString(&cfg.Directory.BindUsername, "PORTCULLIS_DIRECTORY_BIND_USERNAME")
	setString(&cfg.Directory.BindPassword, "PORTCULLIS_DIRECTORY_BIND_PASSWORD")
	setInt(&cfg.Directory.TimeoutSeconds, "PORTCULLIS_DIRECTORY_TIMEOUT_SECONDS")
	setBool(&cfg.Directory.UseTLS, "PORTCULLIS_DIRECTORY_USE_TLS")
	setBool(&cfg.Directory.SkipTLS, "PORTCULLIS_DIRECTORY_SKIP_TLS")
	setString(&cfg.Directory.KerberosRealm, "PORTCULLIS_KERBEROS_REALM")
	setString(&cfg.Directory.KerberosKeytab, "PORTCULLIS_KERBEROS_KEYTAB")
	setString(&cfg.Directory.KerberosConfig, "PORTCULLIS_KERBEROS_CONFIG")

	setInt(&cfg.Retry.MaxAttempts, "PORTCULLIS_RETRY_MAX_ATTEMPTS")
	setInt(&cfg.Retry.BaseDelaySeconds, "PORTCULLIS_RETRY_BASE_DELAY_SECONDS")
	setInt(&cfg.Retry.MaxDelaySeconds, "PORTCULLIS_RETRY_MAX_DELAY_SECONDS")

	setString(&cfg.JWT.Secret, "PORTCULLIS_JWT_SECRET")
	setString(&cfg.JWT.Issuer, "PORTCULLIS_JWT_ISSUER")
	setString(&cfg.JWT.Audience, "PORTCULLIS_JWT_AUDIENCE")
	setInt(&cfg.JWT.TTLHours, "PORTCULLIS_JWT_TTL_HOURS")

	setFloat(&cfg.RateLimit.RPS, "PORTCULLIS_RATE_LIMIT_RPS")
	setInt(&cfg.RateLimit.Burst, "PORTCULLIS_RATE_LIMIT_BURST")

	return cfg, nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setList(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	parts := strings.Split(v, ",")
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) > 0 {
		*dst = out
	}
}
