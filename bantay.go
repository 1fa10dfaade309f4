// Package bantay wires the account services together: registration, login
// with failed-attempt throttling, cookie sessions and profile management.
package bantay

import (
	"context"
	"time"

	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/internal/logging"
	"github.com/lborres/bantay/pkg/cache"
	"github.com/lborres/bantay/pkg/crypto"
	"github.com/lborres/bantay/pkg/throttle"
	"github.com/lborres/bantay/services"
)

// interfaces
type (
	AuthStorage   = core.AuthStorage
	ThrottleStore = core.ThrottleStore
	Uploader      = core.Uploader
	Cache         = core.Cache
	HTTPAdapter   = core.HTTPAdapter

	PasswordHandler = crypto.PasswordHandler
)

// structs
type (
	SessionConfig  = core.SessionConfig
	ThrottleConfig = core.ThrottleConfig
	CacheConfig    = core.CacheConfig

	User        = core.User
	PublicUser  = core.PublicUser
	Session     = core.Session
	SessionData = core.SessionData
)

// Constructors & helpers (convenience re-exports)
var (
	NewSessionCache       = cache.NewSessionCache
	NewBcrypt             = crypto.NewBcrypt
	NewArgon2             = crypto.NewArgon2
	DefaultSessionConfig  = core.DefaultSessionConfig
	DefaultThrottleConfig = core.DefaultThrottleConfig
)

var (
	ErrUserExists         = core.ErrUserExists
	ErrUserNotFound       = core.ErrUserNotFound
	ErrInvalidCredentials = core.ErrInvalidCredentials
	ErrRateLimited        = core.ErrRateLimited
	ErrUnauthorized       = core.ErrUnauthorized
	ErrValidation         = core.ErrValidation
	ErrInternal           = core.ErrInternal
)

var (
	ErrStorageRequired     = core.ErrStorageRequired
	ErrHTTPAdapterRequired = core.ErrHTTPAdapterRequired
	ErrUploaderRequired    = core.ErrUploaderRequired
)

type Config struct {
	Storage  AuthStorage
	HTTP     HTTPAdapter
	Uploader Uploader

	// ThrottleStore defaults to an in-process store.
	ThrottleStore ThrottleStore

	CacheAdapter Cache
	DisableCache bool

	SessionConfig  *SessionConfig
	ThrottleConfig *ThrottleConfig

	// PasswordHasher defaults to bcrypt at DefaultBcryptCost.
	PasswordHasher PasswordHandler

	Logger logging.Logger
}

// Bantay holds the wired services. Routes are registered on the HTTP adapter
// by New.
type Bantay struct {
	Auth     *services.AuthService
	Profiles *services.ProfileService
	Sessions *services.SessionManager
	Throttle *services.AttemptThrottle
	Cache    Cache

	log logging.Logger
}

func New(config Config) (*Bantay, error) {
	if config.Storage == nil {
		return nil, ErrStorageRequired
	}
	if config.HTTP == nil {
		return nil, ErrHTTPAdapterRequired
	}
	if config.Uploader == nil {
		return nil, ErrUploaderRequired
	}

	// Set Defaults

	log := config.Logger
	if log == nil {
		log = logging.Nop()
	}

	cacheAdapter := config.CacheAdapter
	if cacheAdapter == nil && !config.DisableCache {
		cacheAdapter = NewSessionCache(CacheConfig{
			TTL:     cache.DefaultTTL,
			MaxSize: cache.DefaultMaxSize,
		})
	}
	if config.DisableCache {
		cacheAdapter = nil
	}

	sessionConfig := DefaultSessionConfig()
	if config.SessionConfig != nil {
		sessionConfig = *config.SessionConfig
	}

	throttleConfig := DefaultThrottleConfig()
	if config.ThrottleConfig != nil {
		throttleConfig = *config.ThrottleConfig
	}

	throttleStore := config.ThrottleStore
	if throttleStore == nil {
		throttleStore = throttle.NewMemoryStore()
	}

	passwordHasher := config.PasswordHasher
	if passwordHasher == nil {
		passwordHasher = NewBcrypt()
	}

	sessionManager := services.NewSessionManager(sessionConfig, config.Storage, cacheAdapter)
	attempts := services.NewAttemptThrottle(throttleStore, throttleConfig)

	b := &Bantay{
		Auth:     services.NewAuthService(config.Storage, sessionManager, attempts, passwordHasher, config.Uploader, log),
		Profiles: services.NewProfileService(config.Storage, sessionManager, config.Uploader, log),
		Sessions: sessionManager,
		Throttle: attempts,
		Cache:    cacheAdapter,
		log:      log,
	}

	if err := config.HTTP.RegisterRoutes(b.Auth, b.Profiles); err != nil {
		return nil, err
	}

	return b, nil
}

// RunSessionSweeper purges expired sessions every interval until ctx is done.
func (b *Bantay) RunSessionSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := b.Auth.PurgeExpiredSessions(ctx); err != nil && ctx.Err() == nil {
				b.log.Error(ctx, "session sweep failed", "err", err)
			}
		}
	}
}
