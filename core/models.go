package core

import "time"

// DefaultProfilePicture is used when a user registers without uploading a picture.
const DefaultProfilePicture = "/uploads/profile.jpg"

// User represents a registered account
//
// This is both the "identity" and the "credential": who someone is and how
// they prove it
type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"` // Never expose in JSON
	ProfilePicture string    `json:"profilePicture"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Public returns the view of the user that is safe to hand to templates,
// sessions and clients.
func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:             u.ID,
		Username:       u.Username,
		Email:          u.Email,
		ProfilePicture: u.ProfilePicture,
	}
}

// PublicUser is a User without its credential
type PublicUser struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	ProfilePicture string `json:"profilePicture"`
}

// UserPatch describes a partial update. Nil fields are left untouched.
type UserPatch struct {
	Username       *string
	Email          *string
	ProfilePicture *string
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
	return p.Username == nil && p.Email == nil && p.ProfilePicture == nil
}

// Session represents an active login session
type Session struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	TokenHash string `json:"-"` // Never expose in JSON (security!)

	// public view of the user, mirrored on profile changes
	Username       string `json:"username"`
	Email          string `json:"email"`
	ProfilePicture string `json:"profilePicture"`

	IPAddress string    `json:"ipAddress"`
	UserAgent string    `json:"userAgent"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PublicUser returns the user view carried by the session.
func (s *Session) PublicUser() *PublicUser {
	return &PublicUser{
		ID:             s.UserID,
		Username:       s.Username,
		Email:          s.Email,
		ProfilePicture: s.ProfilePicture,
	}
}

// SessionData combines user and session info
// The model handed to request handlers
type SessionData struct {
	User    *PublicUser `json:"user"`
	Session *Session    `json:"session"`
}

// ThrottleEntry is the failed-login state of a single throttle key.
// A zero BlockedUntil means the key is not blocked.
type ThrottleEntry struct {
	FailureCount int       `json:"failureCount"`
	BlockedUntil time.Time `json:"blockedUntil"`
}

// Blocked reports whether the entry rejects attempts at the given instant.
func (e *ThrottleEntry) Blocked(now time.Time) bool {
	return e != nil && !e.BlockedUntil.IsZero() && now.Before(e.BlockedUntil)
}
