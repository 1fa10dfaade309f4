package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"

	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/internal/logging"
)

// ProfileService manages the account behind a session. Every change is
// mirrored into the caller's session so later requests see it.
type ProfileService struct {
	users          core.UserStorage
	sessionManager *SessionManager
	uploader       core.Uploader
	log            logging.Logger
}

var _ core.ProfileProvider = (*ProfileService)(nil)

func NewProfileService(users core.UserStorage, sessionManager *SessionManager, uploader core.Uploader, log logging.Logger) *ProfileService {
	if log == nil {
		log = logging.Nop()
	}
	return &ProfileService{
		users:          users,
		sessionManager: sessionManager,
		uploader:       uploader,
		log:            log.With("component", "profile"),
	}
}

func (s *ProfileService) GetProfile(ctx context.Context, sess *core.SessionData) (*core.PublicUser, error) {
	if !hasSession(sess) {
		return nil, core.ErrUnauthorized
	}

	user, err := s.users.GetUserByID(ctx, sess.Session.UserID)
	if err != nil {
		return nil, storeErr("failed to get user", err)
	}
	return user.Public(), nil
}

// UpdateProfile applies the non-empty fields of input.
func (s *ProfileService) UpdateProfile(ctx context.Context, sess *core.SessionData, input core.UpdateProfileInput) (*core.PublicUser, error) {
	if !hasSession(sess) {
		return nil, core.ErrUnauthorized
	}
	userID := sess.Session.UserID

	var patch core.UserPatch
	if input.Username != "" {
		patch.Username = &input.Username
	}
	if input.Email != "" {
		other, err := s.users.GetUserByEmail(ctx, input.Email)
		if err != nil && !errors.Is(err, core.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: failed to check email: %w", core.ErrInternal, err)
		}
		if other != nil && other.ID != userID {
			return nil, core.ErrUserExists
		}
		patch.Email = &input.Email
	}
	if input.Picture != nil {
		ref, err := saveUpload(ctx, s.uploader, input.Picture)
		if err != nil {
			return nil, err
		}
		patch.ProfilePicture = &ref
	}

	if patch.Empty() {
		return s.GetProfile(ctx, sess)
	}
	return s.apply(ctx, sess, patch)
}

func (s *ProfileService) ReplacePicture(ctx context.Context, sess *core.SessionData, file *multipart.FileHeader) (*core.PublicUser, error) {
	if !hasSession(sess) {
		return nil, core.ErrUnauthorized
	}
	if file == nil {
		return nil, core.ErrPictureRequired
	}

	ref, err := saveUpload(ctx, s.uploader, file)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, sess, core.UserPatch{ProfilePicture: &ref})
}

// DeleteProfile removes the account and every session it owns, the
// caller's included.
func (s *ProfileService) DeleteProfile(ctx context.Context, sess *core.SessionData) error {
	if !hasSession(sess) {
		return core.ErrUnauthorized
	}
	userID := sess.Session.UserID

	if err := s.users.DeleteUser(ctx, userID); err != nil && !errors.Is(err, core.ErrUserNotFound) {
		return fmt.Errorf("%w: failed to delete user: %w", core.ErrInternal, err)
	}

	n, err := s.sessionManager.DestroyAllUserSessions(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: failed to delete sessions: %w", core.ErrInternal, err)
	}

	s.log.Info(ctx, "account deleted", "user_id", userID, "sessions", n)
	return nil
}

func (s *ProfileService) apply(ctx context.Context, sess *core.SessionData, patch core.UserPatch) (*core.PublicUser, error) {
	user, err := s.users.UpdateUser(ctx, sess.Session.UserID, patch)
	if err != nil {
		return nil, storeErr("failed to update user", err)
	}
	pub := user.Public()

	refreshed, err := s.sessionManager.Refresh(ctx, sess.Session, pub)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to refresh session: %w", core.ErrInternal, err)
	}
	sess.Session = refreshed
	sess.User = pub

	return pub, nil
}

func hasSession(sess *core.SessionData) bool {
	return sess != nil && sess.Session != nil
}

// storeErr passes domain sentinels through and marks everything else internal.
func storeErr(op string, err error) error {
	if errors.Is(err, core.ErrUserNotFound) || errors.Is(err, core.ErrUserExists) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", core.ErrInternal, op, err)
}

func saveUpload(ctx context.Context, uploader core.Uploader, file *multipart.FileHeader) (string, error) {
	if uploader == nil {
		return "", fmt.Errorf("%w: %w", core.ErrInternal, core.ErrUploaderRequired)
	}
	ref, err := uploader.Save(ctx, file)
	if err != nil {
		return "", fmt.Errorf("%w: failed to store upload: %w", core.ErrInternal, err)
	}
	return ref, nil
}
