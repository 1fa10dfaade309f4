package core

import "errors"

// ValidationError is a client input error whose message is safe to show as is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Unwrap makes every ValidationError match ErrValidation.
func (e *ValidationError) Unwrap() error { return ErrValidation }

// Validation errors (client input)
var (
	ErrValidation = errors.New("validation failed") // 200 re-render / 400

	ErrFieldsRequired  = &ValidationError{Message: "All fields are required"}
	ErrPasswordPolicy  = &ValidationError{Message: PasswordRule}
	ErrPictureRequired = &ValidationError{Message: "A profile picture is required"}
	ErrPasswordTooLong = &ValidationError{Message: "Password must be at most 72 bytes long"}
)

// Authentication Related Errors
var (
	// User errors
	ErrUserExists         = errors.New("User already exists") // 409 Conflict
	ErrUserNotFound       = errors.New("User not found")      // 404 Not Found
	ErrInvalidCredentials = errors.New("Invalid credentials") // 200 re-render

	// deliberately discloses throttling state
	ErrRateLimited  = errors.New("Too many failed attempts. Try again later.") // 200 re-render
	ErrUnauthorized = errors.New("Unauthorized")                               // 401
)

// Session errors
var (
	ErrInvalidToken    = errors.New("invalid session token")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrCacheNotFound   = errors.New("session not found in cache")
)

// ErrInternal marks a lower-level fault. The wrapped detail is for logs only.
var ErrInternal = errors.New("internal error") // 500

// Config errors (server-side configuration)
var (
	ErrStorageRequired     = errors.New("storage adapter is required")
	ErrHTTPAdapterRequired = errors.New("http adapter is required")
	ErrUploaderRequired    = errors.New("uploader is required")
)
