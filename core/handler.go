package core

import (
	"context"
	"mime/multipart"
)

// RegisterInput contains the data needed to create an account
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Picture  *multipart.FileHeader // optional
}

// LoginInput contains the credentials for authentication
type LoginInput struct {
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

// LoginResult contains the authenticated user and their session
type LoginResult struct {
	User    *PublicUser `json:"user"`
	Session *Session    `json:"session"`
	Token   string      `json:"-"` // The raw token (not the hash), sent as a cookie
}

// UpdateProfileInput carries a partial profile update. Empty strings and a
// nil Picture mean "leave unchanged".
type UpdateProfileInput struct {
	Username string
	Email    string
	Picture  *multipart.FileHeader
}

// ============================================
// HANDLER PORTS (for HTTP adapters)
// ============================================

// AuthProvider provides authentication operations for HTTP adapters
type AuthProvider interface {
	Register(ctx context.Context, input RegisterInput) (*PublicUser, error)
	Login(ctx context.Context, input LoginInput) (*LoginResult, error)
	Logout(ctx context.Context, token string) error
	GetSession(ctx context.Context, token string) (*SessionData, error)
}

// ProfileProvider provides profile operations for the owner of a session.
// A nil session yields ErrUnauthorized.
type ProfileProvider interface {
	GetProfile(ctx context.Context, sess *SessionData) (*PublicUser, error)
	UpdateProfile(ctx context.Context, sess *SessionData, input UpdateProfileInput) (*PublicUser, error)
	ReplacePicture(ctx context.Context, sess *SessionData, file *multipart.FileHeader) (*PublicUser, error)
	DeleteProfile(ctx context.Context, sess *SessionData) error
}

// ============================================
// HTTP PORT
// ============================================

type HTTPAdapter interface {
	RegisterRoutes(auth AuthProvider, profiles ProfileProvider) error
}
