package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration required by the API process and the CLI.
// All values must come from env (or a .env file in the working directory).
// No business logic should depend on raw environment variables.
type Config struct {
	App   AppConfig
	DB    DBConfig
	Redis RedisConfig
	Auth  AuthConfig
	Audit AuditConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	// URL selects the engine: postgres://... or sqlite://path.
	URL          string
	MaxOpenConns int
}

// RedisConfig is optional. Without Addr, blocked-sender notifications
// are dropped and retention runs without a cross-replica lock.
type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	NotifyChannel string
}

type AuthConfig struct {
	// APIToken is a static admin bearer token.
	APIToken       string
	JWTSecret      string
	JWTIssuer      string
	JWTAudience    string
	AccessTokenTTL time.Duration
}

type AuditConfig struct {
	RetentionDays   int
	CleanupInterval time.Duration
}

const (
	defaultPort          = 8000
	defaultSQLiteURL     = "sqlite://waasp.db"
	defaultNotifyChannel = "waasp:blocked"
	defaultRetentionDays = 90
)

// Load reads .env (if present) and the environment, then validates.
// Variables already set in the environment win over .env.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	c.App.Port, parseErrs = optInt(parseErrs, "APP_PORT")

	c.DB.URL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	c.DB.MaxOpenConns, parseErrs = optInt(parseErrs, "DB_MAX_OPEN_CONNS")

	c.Redis.Addr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	c.Redis.Password = os.Getenv("REDIS_PASSWORD")
	c.Redis.DB, parseErrs = optInt(parseErrs, "REDIS_DB")
	c.Redis.NotifyChannel = strings.TrimSpace(os.Getenv("NOTIFY_CHANNEL"))

	c.Auth.APIToken = os.Getenv("API_TOKEN")
	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate() based on env.
	c.Auth.AccessTokenTTL, parseErrs = optDuration(parseErrs, "JWT_ACCESS_TTL")

	c.Audit.RetentionDays, parseErrs = optInt(parseErrs, "AUDIT_RETENTION_DAYS")
	c.Audit.CleanupInterval, parseErrs = optDuration(parseErrs, "AUDIT_CLEANUP_INTERVAL")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate applies defaults and reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		c.App.Env = "local"
	}
	if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port == 0 {
		c.App.Port = defaultPort
	}
	if c.App.Port < 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.URL == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DATABASE_URL is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.URL = defaultSQLiteURL
		}
	}
	if c.DB.MaxOpenConns < 0 {
		errs = append(errs, fmt.Errorf("DB_MAX_OPEN_CONNS must be >= 0, got %d", c.DB.MaxOpenConns))
	}

	if c.Redis.NotifyChannel == "" {
		c.Redis.NotifyChannel = defaultNotifyChannel
	}
	if c.Redis.DB < 0 {
		errs = append(errs, fmt.Errorf("REDIS_DB must be >= 0, got %d", c.Redis.DB))
	}

	if c.IsProduction() {
		if c.Auth.APIToken == "" && c.Auth.JWTSecret == "" {
			errs = append(errs, errors.New("API_TOKEN or JWT_SECRET is required in production"))
		}
		if c.Auth.APIToken != "" && len(c.Auth.APIToken) < 16 {
			errs = append(errs, errors.New("API_TOKEN must be at least 16 characters in production"))
		}
		if c.Auth.JWTSecret != "" {
			if c.Auth.JWTIssuer == "" {
				errs = append(errs, errors.New("JWT_ISSUER is required in production"))
			}
			if c.Auth.JWTAudience == "" {
				errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
			}
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		// Default: admin sessions last a working day.
		c.Auth.AccessTokenTTL = 8 * time.Hour
	}

	if c.Audit.RetentionDays == 0 {
		c.Audit.RetentionDays = defaultRetentionDays
	}
	if c.Audit.RetentionDays < 0 {
		errs = append(errs, fmt.Errorf("AUDIT_RETENTION_DAYS must be > 0, got %d", c.Audit.RetentionDays))
	}
	if c.Audit.CleanupInterval <= 0 {
		c.Audit.CleanupInterval = 24 * time.Hour
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

// AdminAuthConfigured reports whether any admin credential is set.
// Without one, admin routes are only reachable outside production.
func (c Config) AdminAuthConfigured() bool {
	return c.Auth.APIToken != "" || c.Auth.JWTSecret != ""
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) Retention() time.Duration {
	return time.Duration(c.Audit.RetentionDays) * 24 * time.Hour
}

func optInt(errs []error, key string) (int, []error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, errs
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, append(errs, fmt.Errorf("%s must be an integer, got %q", key, v))
	}
	return n, errs
}

func optDuration(errs []error, key string) (time.Duration, []error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, errs
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, append(errs, fmt.Errorf("%s must be a duration, got %q", key, v))
	}
	return d, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
