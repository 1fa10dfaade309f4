package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/internal/logging"
	"github.com/lborres/bantay/pkg/crypto"
)

type AuthService struct {
	users          core.UserStorage
	sessionManager *SessionManager
	throttle       *AttemptThrottle
	passwordHasher crypto.PasswordHandler
	uploader       core.Uploader
	log            logging.Logger
	now            func() time.Time
}

// Ensure AuthService implements AuthProvider
var _ core.AuthProvider = (*AuthService)(nil)

func NewAuthService(
	users core.UserStorage,
	sessionManager *SessionManager,
	throttle *AttemptThrottle,
	passwordHasher crypto.PasswordHandler,
	uploader core.Uploader,
	log logging.Logger,
) *AuthService {
	if log == nil {
		log = logging.Nop()
	}
	return &AuthService{
		users:          users,
		sessionManager: sessionManager,
		throttle:       throttle,
		passwordHasher: passwordHasher,
		uploader:       uploader,
		log:            log.With("component", "auth"),
		now:            time.Now,
	}
}

// Register creates an account. It does not log the user in.
func (s *AuthService) Register(ctx context.Context, input core.RegisterInput) (*core.PublicUser, error) {
	if input.Username == "" || input.Email == "" || input.Password == "" {
		return nil, core.ErrFieldsRequired
	}

	if err := core.ValidatePassword(input.Password); err != nil {
		return nil, err
	}

	existing, err := s.users.GetUserByEmail(ctx, input.Email)
	if err != nil && !errors.Is(err, core.ErrUserNotFound) {
		return nil, fmt.Errorf("%w: failed to check existing user: %w", core.ErrInternal, err)
	}
	if existing != nil {
		return nil, core.ErrUserExists
	}

	hash, err := s.passwordHasher.Hash(input.Password)
	if err != nil {
		if errors.Is(err, crypto.ErrPasswordTooLong) {
			return nil, core.ErrPasswordTooLong
		}
		return nil, fmt.Errorf("%w: failed to hash password: %w", core.ErrInternal, err)
	}

	picture := core.DefaultProfilePicture
	if input.Picture != nil {
		picture, err = saveUpload(ctx, s.uploader, input.Picture)
		if err != nil {
			return nil, err
		}
	}

	now := s.now()
	user := &core.User{
		ID:             uuid.NewString(),
		Username:       input.Username,
		Email:          input.Email,
		PasswordHash:   hash,
		ProfilePicture: picture,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		// lost a race with a concurrent registration
		if errors.Is(err, core.ErrUserExists) {
			return nil, core.ErrUserExists
		}
		return nil, fmt.Errorf("%w: failed to create user: %w", core.ErrInternal, err)
	}

	s.log.Info(ctx, "account created", "user_id", user.ID)
	return user.Public(), nil
}

// Login checks the throttle, verifies the credentials and issues a session.
//
// Unknown emails and wrong passwords return the same ErrInvalidCredentials.
// Only wrong passwords for existing accounts count towards a block.
func (s *AuthService) Login(ctx context.Context, input core.LoginInput) (*core.LoginResult, error) {
	if input.Email == "" || input.Password == "" {
		return nil, core.ErrFieldsRequired
	}

	blocked, err := s.throttle.IsBlocked(ctx, input.Email)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrInternal, err)
	}
	if blocked {
		s.log.Warn(ctx, "login rejected while blocked", "email", input.Email)
		return nil, core.ErrRateLimited
	}

	user, err := s.users.GetUserByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			return nil, core.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: failed to find user: %w", core.ErrInternal, err)
	}

	valid, err := s.passwordHasher.Verify(input.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to verify password: %w", core.ErrInternal, err)
	}

	if !valid {
		entry, err := s.throttle.RecordFailure(ctx, input.Email)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", core.ErrInternal, err)
		}
		if entry.Blocked(s.now()) {
			s.log.Warn(ctx, "login blocked", "email", input.Email,
				"failures", entry.FailureCount, "blocked_until", entry.BlockedUntil)
		} else {
			s.log.Info(ctx, "login failed", "email", input.Email, "failures", entry.FailureCount)
		}
		return nil, core.ErrInvalidCredentials
	}

	if err := s.throttle.Clear(ctx, input.Email); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrInternal, err)
	}

	issued, err := s.sessionManager.Create(ctx, user.Public(), input.IPAddress, input.UserAgent)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create session: %w", core.ErrInternal, err)
	}

	s.log.Info(ctx, "login succeeded", "user_id", user.ID, "session_id", issued.Session.ID)
	return &core.LoginResult{
		User:    user.Public(),
		Session: issued.Session,
		Token:   issued.Token,
	}, nil
}

// Logout destroys the session for token. An empty or unknown token is a no-op.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessionManager.Destroy(ctx, token); err != nil {
		return fmt.Errorf("%w: failed to delete session: %w", core.ErrInternal, err)
	}
	return nil
}

// GetSession resolves a raw token to its session data. Missing, unknown and
// expired tokens yield the session sentinels, which callers treat as anonymous.
func (s *AuthService) GetSession(ctx context.Context, token string) (*core.SessionData, error) {
	session, err := s.sessionManager.Verify(ctx, token)
	if err != nil {
		if isSessionMiss(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: failed to get session: %w", core.ErrInternal, err)
	}

	return &core.SessionData{
		User:    session.PublicUser(),
		Session: session,
	}, nil
}

// PurgeExpiredSessions is run periodically by the server.
func (s *AuthService) PurgeExpiredSessions(ctx context.Context) (int, error) {
	n, err := s.sessionManager.PurgeExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to purge sessions: %w", core.ErrInternal, err)
	}
	if n > 0 {
		s.log.Debug(ctx, "expired sessions purged", "count", n)
	}
	return n, nil
}

func isSessionMiss(err error) bool {
	return errors.Is(err, core.ErrInvalidToken) ||
		errors.Is(err, core.ErrSessionNotFound) ||
		errors.Is(err, core.ErrSessionExpired)
}
