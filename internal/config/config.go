package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppName          = "SecureAuth"
	defaultAppEnv           = "development"
	defaultPort             = "5000"
	defaultLogLevel         = "info"
	defaultRedisURL         = "redis://localhost:6379/0"
	defaultShutdownDelay    = 10 * time.Second
	defaultIdempotencyTTL   = 24 * time.Hour
	defaultTokenTTL         = time.Hour
	defaultRateLimit        = 10
	defaultRateLimitWindow  = time.Minute
	defaultLockoutThreshold = 5
	defaultLockoutWindow    = 60 * time.Second
	defaultBcryptCost       = 12
	defaultCORSOrigins      = "*"
	defaultRateLimits       = "200 per day, 50 per hour"
	idemTTLSecondsEnvVar    = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar        = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar   = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar  = "SHUTDOWN_TIMEOUT"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	JWTSecret      string
	TokenTTL       time.Duration
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	RegisterRateLimit int
	LoginRateLimit    int
	RateLimitWindow   time.Duration
	// DefaultRateLimits apply per client to every route except health and metrics.
	DefaultRateLimits []RateLimit

	LockoutThreshold int
	LockoutWindow    time.Duration

	BcryptCost              int
	AllowPrehashedPasswords bool
	CORSAllowedOrigins      string
}

// RateLimit allows Limit requests per Window.
type RateLimit struct {
	Limit  int
	Window time.Duration
}

// Load reads a .env file when present, then populates a Config from the
// environment. Variables already set in the environment win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv populates a Config from the process environment only.
func FromEnv() (Config, error) {
	cfg := Config{
		AppName:            getEnv("APP_NAME", defaultAppName),
		AppEnv:             getEnv("APP_ENV", defaultAppEnv),
		Port:               getEnv("PORT", defaultPort),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisURL:           getEnv("REDIS_URL", defaultRedisURL),
		JWTSecret:          os.Getenv("JWT_SECRET_KEY"),
		ShutdownPeriod:     defaultShutdownDelay,
		IdempotencyTTL:     defaultIdempotencyTTL,
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", defaultCORSOrigins),
	}

	var err error
	if cfg.ShutdownPeriod, err = secondsOrDuration(shutdownSecondsEnvVar, shutdownDurationEnvVar, defaultShutdownDelay); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = secondsOrDuration(idemTTLSecondsEnvVar, idemTTLDurEnvVar, defaultIdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.TokenTTL, err = getDuration("TOKEN_TTL", defaultTokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitWindow, err = getDuration("RATE_LIMIT_WINDOW", defaultRateLimitWindow); err != nil {
		return Config{}, err
	}
	if cfg.LockoutWindow, err = getDuration("LOCKOUT_WINDOW", defaultLockoutWindow); err != nil {
		return Config{}, err
	}
	if cfg.RegisterRateLimit, err = getInt("REGISTER_RATE_LIMIT", defaultRateLimit); err != nil {
		return Config{}, err
	}
	if cfg.LoginRateLimit, err = getInt("LOGIN_RATE_LIMIT", defaultRateLimit); err != nil {
		return Config{}, err
	}
	if cfg.LockoutThreshold, err = getInt("LOCKOUT_THRESHOLD", defaultLockoutThreshold); err != nil {
		return Config{}, err
	}
	if cfg.BcryptCost, err = getInt("BCRYPT_COST", defaultBcryptCost); err != nil {
		return Config{}, err
	}
	if cfg.DefaultRateLimits, err = ParseRateLimits(getEnv("DEFAULT_RATE_LIMITS", defaultRateLimits)); err != nil {
		return Config{}, fmt.Errorf("invalid DEFAULT_RATE_LIMITS: %w", err)
	}
	if v := os.Getenv("ALLOW_PREHASHED_PASSWORDS"); v != "" {
		allow, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ALLOW_PREHASHED_PASSWORDS: %w", err)
		}
		cfg.AllowPrehashedPasswords = allow
	}

	// Development falls back to the in-memory account store.
	if cfg.DatabaseURL == "" && !cfg.IsDev() {
		return Config{}, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", cfg.AppEnv)
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET_KEY must be set")
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the app runs in a local development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}

// ParseRateLimits reads a comma separated list of limits. Each entry is
// either "<n> per <unit>" (second, minute, hour, day) or "<n>/<duration>"
// with a Go duration, e.g. "200 per day, 50 per hour" or "50/1h".
// "none" and "off" disable the limits.
func ParseRateLimits(v string) ([]RateLimit, error) {
	v = strings.TrimSpace(strings.ToLower(v))
	if v == "none" || v == "off" {
		return nil, nil
	}
	var limits []RateLimit
	for _, entry := range strings.Split(v, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		limit, err := parseRateLimit(entry)
		if err != nil {
			return nil, err
		}
		limits = append(limits, limit)
	}
	if len(limits) == 0 {
		return nil, fmt.Errorf("no limits in %q", v)
	}
	return limits, nil
}

func parseRateLimit(entry string) (RateLimit, error) {
	count, period, ok := strings.Cut(entry, "/")
	if ok {
		d, err := time.ParseDuration(strings.TrimSpace(period))
		if err != nil {
			return RateLimit{}, fmt.Errorf("limit %q: %w", entry, err)
		}
		return newRateLimit(entry, strings.TrimSpace(count), d)
	}

	fields := strings.Fields(entry)
	if len(fields) != 3 || fields[1] != "per" {
		return RateLimit{}, fmt.Errorf("limit %q: want \"<n> per <unit>\"", entry)
	}
	var d time.Duration
	switch strings.TrimSuffix(fields[2], "s") {
	case "second":
		d = time.Second
	case "minute":
		d = time.Minute
	case "hour":
		d = time.Hour
	case "day":
		d = 24 * time.Hour
	default:
		return RateLimit{}, fmt.Errorf("limit %q: unknown unit %q", entry, fields[2])
	}
	return newRateLimit(entry, fields[0], d)
}

func newRateLimit(entry, count string, window time.Duration) (RateLimit, error) {
	n, err := strconv.Atoi(count)
	if err != nil || n <= 0 {
		return RateLimit{}, fmt.Errorf("limit %q: count must be a positive integer", entry)
	}
	if window <= 0 {
		return RateLimit{}, fmt.Errorf("limit %q: window must be positive", entry)
	}
	return RateLimit{Limit: n, Window: window}, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// secondsOrDuration prefers an integer seconds variable over a Go duration one.
func secondsOrDuration(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(secondsKey); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	return getDuration(durationKey, fallback)
}
