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

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Config holds the application configuration.
type Config struct {
	Environment    string
	DatabaseDriver string
	DatabaseURL    string

	HTTPAddr string
	GRPCAddr string

	RedisAddr     string
	RedisPassword string

	JWTSecret string
	JWTIssuer string

	TLSCertFile     string
	TLSKeyFile      string
	TLSClientCAFile string
	AllowedCIDRs    string

	// AuditLogPath is the JSON-lines file the transfer audit trail is appended to.
	AuditLogPath string

	BaselineWindow     time.Duration
	TransferThreshold  int64
	RateLimitPerMinute int
	MaxBodyBytes       int64
}

// Load reads the optional env files (".env" when none are named), then the
// process environment, and validates the result. Variables already present in
// the environment win over the files.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a Config from environment variables without validating it.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Environment:     os.Getenv("APP_ENV"),
		DatabaseDriver:  getEnv("DATABASE_DRIVER", DriverPostgres),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		GRPCAddr:        getEnv("GRPC_ADDR", ":50051"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		JWTIssuer:       getEnv("JWT_ISSUER", "account-ledger"),
		TLSCertFile:     os.Getenv("TLS_CERT_FILE"),
		TLSKeyFile:      os.Getenv("TLS_KEY_FILE"),
		TLSClientCAFile: os.Getenv("TLS_CLIENT_CA_FILE"),
		AllowedCIDRs:    os.Getenv("ALLOWED_CIDRS"),
		AuditLogPath:    getEnv("AUDIT_LOG_PATH", "audit.log"),
	}

	var errs []error
	var err error
	if cfg.BaselineWindow, err = getDuration("BASELINE_WINDOW", 240*time.Hour); err != nil {
		errs = append(errs, err)
	}
	if cfg.TransferThreshold, err = getInt64("TRANSFER_THRESHOLD", 1_000_000); err != nil {
		errs = append(errs, err)
	}
	var perMinute int64
	if perMinute, err = getInt64("RATE_LIMIT_PER_MINUTE", 0); err != nil {
		errs = append(errs, err)
	}
	cfg.RateLimitPerMinute = int(perMinute)
	if cfg.MaxBodyBytes, err = getInt64("MAX_BODY_BYTES", 1<<20); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var missing []string

	if c.Environment == "" {
		missing = append(missing, "APP_ENV")
	}
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return errors.New("missing required environment variables: " + strings.Join(missing, ", "))
	}

	switch c.DatabaseDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q (want %s or %s)", c.DatabaseDriver, DriverPostgres, DriverSQLite)
	}

	if c.BaselineWindow <= 0 {
		return errors.New("BASELINE_WINDOW must be positive")
	}
	if c.TransferThreshold <= 0 {
		return errors.New("TRANSFER_THRESHOLD must be positive")
	}
	if c.RateLimitPerMinute < 0 {
		return errors.New("RATE_LIMIT_PER_MINUTE must not be negative")
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return errors.New("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}

	if c.IsProduction() {
		if c.JWTSecret == "" {
			missing = append(missing, "JWT_SECRET")
		}
		if c.RedisAddr == "" {
			missing = append(missing, "REDIS_ADDR")
		}
		if len(missing) > 0 {
			return errors.New("missing required environment variables for " + c.Environment + ": " + strings.Join(missing, ", "))
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 bytes in " + c.Environment)
		}
	}

	return nil
}

// IsProduction reports whether the environment needs the hardened settings.
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "staging"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getInt64(key string, fallback int64) (int64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
