// Package config builds the server configuration from defaults, an optional
// .env file, environment variables and command-line flags, in that order of
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const DefaultEnvFile = ".env"

var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds runtime settings for the bantay server.
//
// Backends are picked by name:
//   - Storage: "memory" or "postgres" (needs DatabaseURL).
//   - SessionStore: "storage" keeps sessions next to users, "redis" moves them to Redis.
//   - ThrottleStore: "memory" or "redis".
//   - UploadBackend: "disk" (served under UploadURLPrefix) or "s3".
type Config struct {
	Addr string

	Storage     string
	DatabaseURL string

	SessionStore  string
	ThrottleStore string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SessionMaxAge        time.Duration
	SessionSweepInterval time.Duration
	SessionCacheTTL      time.Duration
	SessionCacheSize     int

	ThrottleMaxFailures   int
	ThrottleBlockDuration time.Duration
	ThrottleEntryTTL      time.Duration

	PasswordHasher string
	BcryptCost     int

	UploadBackend   string
	UploadDir       string
	UploadURLPrefix string

	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3PublicURL string

	CookieSecure bool

	LogLevel  string
	LogFormat string
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.Addr = ":3000"
	c.Storage = "memory"
	c.SessionStore = "storage"
	c.ThrottleStore = "memory"
	c.RedisAddr = "localhost:6379"
	c.SessionMaxAge = 24 * time.Hour
	c.SessionSweepInterval = 10 * time.Minute
	c.SessionCacheTTL = 5 * time.Minute
	c.SessionCacheSize = 500
	c.ThrottleMaxFailures = 5
	c.ThrottleBlockDuration = 15 * time.Minute
	c.PasswordHasher = "bcrypt"
	c.BcryptCost = 10
	c.UploadBackend = "disk"
	c.UploadDir = "public/uploads"
	c.UploadURLPrefix = "/uploads"
	c.S3Region = "us-east-1"
	c.LogLevel = "info"
	c.LogFormat = "text"
}

// Load builds and validates a Config. args are the command-line arguments
// without the program name.
func Load(args []string) (*Config, error) {
	return load(args, DefaultEnvFile, os.LookupEnv)
}

func load(args []string, envFile string, lookupEnv func(string) (string, bool)) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	dotenv, err := readEnvFile(envFile)
	if err != nil {
		return nil, err
	}

	// the process environment wins over the file
	lookup := func(key string) (string, bool) {
		if v, ok := lookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}

	if err := cfg.parseEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.parseFlags(args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readEnvFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return values, nil
}

// Validate checks backend names and the settings each backend needs.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Addr != "", "listen address is required")
	check(oneOf(c.Storage, "memory", "postgres"), "STORAGE must be memory or postgres, got %q", c.Storage)
	check(c.Storage != "postgres" || c.DatabaseURL != "", "DATABASE_URL is required for postgres storage")
	check(oneOf(c.SessionStore, "storage", "redis"), "SESSION_STORE must be storage or redis, got %q", c.SessionStore)
	check(oneOf(c.ThrottleStore, "memory", "redis"), "THROTTLE_STORE must be memory or redis, got %q", c.ThrottleStore)
	check(!c.UsesRedis() || c.RedisAddr != "", "REDIS_ADDR is required")
	check(c.SessionMaxAge > 0, "SESSION_MAX_AGE must be positive")
	check(c.SessionSweepInterval >= 0, "SESSION_SWEEP_INTERVAL must not be negative")
	check(c.SessionCacheTTL >= 0, "SESSION_CACHE_TTL must not be negative")
	check(c.SessionCacheSize >= 0, "SESSION_CACHE_SIZE must not be negative")
	check(c.ThrottleMaxFailures > 0, "THROTTLE_MAX_FAILURES must be positive")
	check(c.ThrottleBlockDuration > 0, "THROTTLE_BLOCK_DURATION must be positive")
	check(c.ThrottleEntryTTL >= 0, "THROTTLE_ENTRY_TTL must not be negative")
	check(oneOf(c.PasswordHasher, "bcrypt", "argon2"), "PASSWORD_HASHER must be bcrypt or argon2, got %q", c.PasswordHasher)
	check(oneOf(c.UploadBackend, "disk", "s3"), "UPLOAD_BACKEND must be disk or s3, got %q", c.UploadBackend)
	check(c.UploadBackend != "disk" || c.UploadDir != "", "UPLOAD_DIR is required for disk uploads")
	check(c.UploadBackend != "s3" || c.S3Bucket != "", "S3_BUCKET is required for s3 uploads")
	check(oneOf(strings.ToLower(c.LogFormat), "text", "json"), "LOG_FORMAT must be text or json, got %q", c.LogFormat)

	var lvl slog.Level
	check(lvl.UnmarshalText([]byte(c.LogLevel)) == nil, "LOG_LEVEL %q is not a log level", c.LogLevel)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// UsesRedis reports whether any backend lives in Redis.
func (c *Config) UsesRedis() bool {
	return c.SessionStore == "redis" || c.ThrottleStore == "redis"
}

// CacheDisabled reports whether the in-process session cache is off.
func (c *Config) CacheDisabled() bool {
	return c.SessionCacheSize == 0 || c.SessionCacheTTL == 0
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}

// env reads typed values and remembers the first parse failure.
type env struct {
	lookup func(string) (string, bool)
	err    error
}

func (e *env) str(key string, dst *string) {
	if v, ok := e.lookup(key); ok {
		*dst = v
	}
}

func (e *env) integer(key string, dst *int) {
	v, ok := e.lookup(key)
	if !ok || e.err != nil {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		e.err = fmt.Errorf("%w: %s: %w", ErrInvalidConfig, key, err)
		return
	}
	*dst = n
}

func (e *env) boolean(key string, dst *bool) {
	v, ok := e.lookup(key)
	if !ok || e.err != nil {
		return
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		e.err = fmt.Errorf("%w: %s: %w", ErrInvalidConfig, key, err)
		return
	}
	*dst = b
}

func (e *env) duration(key string, dst *time.Duration) {
	v, ok := e.lookup(key)
	if !ok || e.err != nil {
		return
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		e.err = fmt.Errorf("%w: %s: %w", ErrInvalidConfig, key, err)
		return
	}
	*dst = d
}

func (c *Config) parseEnv(lookup func(string) (string, bool)) error {
	e := &env{lookup: lookup}

	if port, ok := lookup("PORT"); ok && port != "" {
		c.Addr = ":" + port
	}
	e.str("ADDR", &c.Addr)

	e.str("STORAGE", &c.Storage)
	e.str("DATABASE_URL", &c.DatabaseURL)
	e.str("SESSION_STORE", &c.SessionStore)
	e.str("THROTTLE_STORE", &c.ThrottleStore)

	e.str("REDIS_ADDR", &c.RedisAddr)
	e.str("REDIS_PASSWORD", &c.RedisPassword)
	e.integer("REDIS_DB", &c.RedisDB)

	e.duration("SESSION_MAX_AGE", &c.SessionMaxAge)
	e.duration("SESSION_SWEEP_INTERVAL", &c.SessionSweepInterval)
	e.duration("SESSION_CACHE_TTL", &c.SessionCacheTTL)
	e.integer("SESSION_CACHE_SIZE", &c.SessionCacheSize)

	e.integer("THROTTLE_MAX_FAILURES", &c.ThrottleMaxFailures)
	e.duration("THROTTLE_BLOCK_DURATION", &c.ThrottleBlockDuration)
	e.duration("THROTTLE_ENTRY_TTL", &c.ThrottleEntryTTL)

	e.str("PASSWORD_HASHER", &c.PasswordHasher)
	e.integer("BCRYPT_COST", &c.BcryptCost)

	e.str("UPLOAD_BACKEND", &c.UploadBackend)
	e.str("UPLOAD_DIR", &c.UploadDir)
	e.str("UPLOAD_URL_PREFIX", &c.UploadURLPrefix)

	e.str("S3_BUCKET", &c.S3Bucket)
	e.str("S3_REGION", &c.S3Region)
	e.str("S3_ENDPOINT", &c.S3Endpoint)
	e.str("S3_ACCESS_KEY", &c.S3AccessKey)
	e.str("S3_SECRET_KEY", &c.S3SecretKey)
	e.str("S3_PUBLIC_URL", &c.S3PublicURL)

	e.boolean("COOKIE_SECURE", &c.CookieSecure)

	e.str("LOG_LEVEL", &c.LogLevel)
	e.str("LOG_FORMAT", &c.LogFormat)

	return e.err
}
