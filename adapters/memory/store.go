// Package memory is an in-process core.AuthStorage for development and tests.
// Data lives for the life of the process.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/lborres/bantay/core"
)

var _ core.AuthStorage = (*Store)(nil)

// Store keeps users and sessions in maps. Values are copied in and out so
// callers never share memory with the store.
type Store struct {
	mu       sync.RWMutex
	users    map[string]core.User // by ID
	byEmail  map[string]string    // email -> ID
	sessions map[string]core.Session
	now      func() time.Time
}

func New() *Store {
	return &Store{
		users:    make(map[string]core.User),
		byEmail:  make(map[string]string),
		sessions: make(map[string]core.Session),
		now:      time.Now,
	}
}

func (s *Store) CreateUser(_ context.Context, u *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[u.Email]; taken {
		return core.ErrUserExists
	}
	if _, taken := s.users[u.ID]; taken {
		return core.ErrUserExists
	}

	s.users[u.ID] = *u
	s.byEmail[u.Email] = u.ID
	return nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, core.ErrUserNotFound
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, core.ErrUserNotFound
	}
	u := s.users[id]
	return &u, nil
}

func (s *Store) UpdateUser(_ context.Context, id string, patch core.UserPatch) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, core.ErrUserNotFound
	}

	if patch.Email != nil && *patch.Email != u.Email {
		if owner, taken := s.byEmail[*patch.Email]; taken && owner != id {
			return nil, core.ErrUserExists
		}
		delete(s.byEmail, u.Email)
		u.Email = *patch.Email
		s.byEmail[u.Email] = id
	}
	if patch.Username != nil {
		u.Username = *patch.Username
	}
	if patch.ProfilePicture != nil {
		u.ProfilePicture = *patch.ProfilePicture
	}
	if !patch.Empty() {
		u.UpdatedAt = s.now()
	}

	s.users[id] = u
	return &u, nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return core.ErrUserNotFound
	}
	delete(s.byEmail, u.Email)
	delete(s.users, id)
	return nil
}

func (s *Store) CreateSession(_ context.Context, session *core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.TokenHash] = *session
	return nil
}

func (s *Store) GetSessionByHash(_ context.Context, tokenHash string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[tokenHash]
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	return &sess, nil
}

func (s *Store) UpdateSession(_ context.Context, session *core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.TokenHash]; !ok {
		return core.ErrSessionNotFound
	}
	s.sessions[session.TokenHash] = *session
	return nil
}

func (s *Store) DeleteSessionByHash(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[tokenHash]; !ok {
		return core.ErrSessionNotFound
	}
	delete(s.sessions, tokenHash)
	return nil
}

func (s *Store) DeleteUserSessions(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k, sess := range s.sessions {
		if sess.UserID == userID {
			delete(s.sessions, k)
			n++
		}
	}
	return n, nil
}

func (s *Store) DeleteExpiredSessions(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for k, sess := range s.sessions {
		if !now.Before(sess.ExpiresAt) {
			delete(s.sessions, k)
			n++
		}
	}
	return n, nil
}

// SessionCount returns the number of stored sessions, expired ones included.
func (s *Store) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// UserCount returns the number of stored users.
func (s *Store) UserCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}
