package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/pkg/crypto"
)

// IssuedSession is a freshly created session and the raw token for the cookie.
// The token is never stored; only its hash is.
type IssuedSession struct {
	Session *core.Session
	Token   string
}

// userCache is implemented by caches that can drop one user's sessions
// without clearing everything.
type userCache interface {
	DeleteUser(userID string) int
}

type SessionManager struct {
	config  core.SessionConfig
	storage core.SessionStorage
	cache   core.Cache // optional, can be nil if caching is disabled
	now     func() time.Time
}

func NewSessionManager(config core.SessionConfig, storage core.SessionStorage, cache core.Cache) *SessionManager {
	if config.MaxAge <= 0 {
		config.MaxAge = core.DefaultSessionConfig().MaxAge
	}
	return &SessionManager{config: config, storage: storage, cache: cache, now: time.Now}
}

func (sm *SessionManager) MaxAge() time.Duration {
	return sm.config.MaxAge
}

// Create persists a new session bound to user's public view.
func (sm *SessionManager) Create(ctx context.Context, user *core.PublicUser, ip, userAgent string) (*IssuedSession, error) {
	pair, err := crypto.GenerateSessionToken(crypto.DefaultTokenLength)
	if err != nil {
		return nil, err
	}

	now := sm.now()
	session := &core.Session{
		ID:             uuid.NewString(),
		UserID:         user.ID,
		TokenHash:      pair.Hash,
		Username:       user.Username,
		Email:          user.Email,
		ProfilePicture: user.ProfilePicture,
		IPAddress:      ip,
		UserAgent:      userAgent,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(sm.config.MaxAge),
	}

	if err := sm.storage.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	if sm.cache != nil {
		// a cache failure never fails the request
		_ = sm.cache.Set(pair.Hash, session)
	}

	return &IssuedSession{Session: session, Token: pair.Token}, nil
}

// Verify resolves a raw token to its live session. Expired sessions are
// removed as they are found.
func (sm *SessionManager) Verify(ctx context.Context, token string) (*core.Session, error) {
	if token == "" {
		return nil, core.ErrInvalidToken
	}

	tokenHash := crypto.HashToken(token)

	if sm.cache != nil {
		if session, err := sm.cache.Get(tokenHash); err == nil {
			if !sm.now().Before(session.ExpiresAt) {
				sm.expire(ctx, tokenHash)
				return nil, core.ErrSessionExpired
			}
			return session, nil
		}
	}

	session, err := sm.storage.GetSessionByHash(ctx, tokenHash)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, core.ErrSessionNotFound
	}

	if !sm.now().Before(session.ExpiresAt) {
		sm.expire(ctx, tokenHash)
		return nil, core.ErrSessionExpired
	}

	if sm.cache != nil {
		_ = sm.cache.Set(tokenHash, session)
	}

	return session, nil
}

// Refresh copies user's public view into the session and persists it.
func (sm *SessionManager) Refresh(ctx context.Context, session *core.Session, user *core.PublicUser) (*core.Session, error) {
	updated := *session
	updated.Username = user.Username
	updated.Email = user.Email
	updated.ProfilePicture = user.ProfilePicture
	updated.UpdatedAt = sm.now()

	if err := sm.storage.UpdateSession(ctx, &updated); err != nil {
		return nil, err
	}

	if sm.cache != nil {
		_ = sm.cache.Set(updated.TokenHash, &updated)
	}

	return &updated, nil
}

// Destroy deletes the session for token. Destroying a session that no longer
// exists is not an error.
func (sm *SessionManager) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return core.ErrInvalidToken
	}

	tokenHash := crypto.HashToken(token)

	if sm.cache != nil {
		_ = sm.cache.Delete(tokenHash)
	}

	err := sm.storage.DeleteSessionByHash(ctx, tokenHash)
	if err != nil && !errors.Is(err, core.ErrSessionNotFound) {
		return err
	}
	return nil
}

func (sm *SessionManager) DestroyAllUserSessions(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, core.ErrUserNotFound
	}

	count, err := sm.storage.DeleteUserSessions(ctx, userID)
	if err != nil {
		return 0, err
	}

	if sm.cache != nil {
		if uc, ok := sm.cache.(userCache); ok {
			uc.DeleteUser(userID)
		} else if count > 0 {
			_ = sm.cache.Clear()
		}
	}

	return count, nil
}

// PurgeExpired removes every expired session from storage.
func (sm *SessionManager) PurgeExpired(ctx context.Context) (int, error) {
	return sm.storage.DeleteExpiredSessions(ctx)
}

func (sm *SessionManager) expire(ctx context.Context, tokenHash string) {
	if sm.cache != nil {
		_ = sm.cache.Delete(tokenHash)
	}
	_ = sm.storage.DeleteSessionByHash(ctx, tokenHash)
}
