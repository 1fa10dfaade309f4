package core

import (
	"context"
	"mime/multipart"
)

// Ports define interfaces for external dependencies

// ============================================
// STORAGE PORTS (Database operations)
// ============================================

// UserStorage defines user-related database operations.
//
// Lookups return ErrUserNotFound when nothing matches; CreateUser and
// UpdateUser return ErrUserExists when the email is already taken.
type UserStorage interface {
	CreateUser(ctx context.Context, u *User) error

	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	UpdateUser(ctx context.Context, id string, patch UserPatch) (*User, error)

	DeleteUser(ctx context.Context, id string) error
}

// SessionStorage defines session-related database operations
type SessionStorage interface {
	CreateSession(ctx context.Context, session *Session) error

	// GetSessionByHash returns ErrSessionNotFound when no session matches.
	GetSessionByHash(ctx context.Context, tokenHash string) (*Session, error)

	UpdateSession(ctx context.Context, session *Session) error

	DeleteSessionByHash(ctx context.Context, tokenHash string) error
	DeleteUserSessions(ctx context.Context, userID string) (int, error)

	// Cleanup
	DeleteExpiredSessions(ctx context.Context) (int, error)
}

type AuthStorage interface {
	UserStorage
	SessionStorage
}

// ============================================
// THROTTLE PORT
// ============================================

// ThrottleStore holds ThrottleEntry values keyed by throttle key.
// Get returns nil, nil for an unknown key.
type ThrottleStore interface {
	Get(ctx context.Context, key string) (*ThrottleEntry, error)
	Put(ctx context.Context, key string, entry ThrottleEntry) error
	Delete(ctx context.Context, key string) error
}

// ============================================
// UPLOAD PORT
// ============================================

// Uploader stores an uploaded file and returns a stable reference to it,
// e.g. a path relative to the site root or a public URL.
type Uploader interface {
	Save(ctx context.Context, file *multipart.FileHeader) (string, error)
}

// ============================================
// CACHE PORT
// ============================================

// Cache defines session caching operations
type Cache interface {
	Get(tokenHash string) (*Session, error)
	Set(tokenHash string, session *Session) error
	Delete(tokenHash string) error
	Clear() error
}

// CombineStorage serves users and sessions from different backends, e.g.
// users in Postgres and sessions in Redis.
func CombineStorage(users UserStorage, sessions SessionStorage) AuthStorage {
	return &combinedStorage{UserStorage: users, SessionStorage: sessions}
}

type combinedStorage struct {
	UserStorage
	SessionStorage
}
