package pgx

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/lborres/bantay/core"
)

const sessionColumns = `id, user_id, token_hash, username, email, profile_picture,
	ip_address, user_agent, expires_at, created_at, updated_at`

func (a *Adapter) CreateSession(ctx context.Context, s *core.Session) error {
	q := `INSERT INTO sessions (` + sessionColumns + `)
	      VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := a.pool.Exec(ctx, q,
		s.ID, s.UserID, s.TokenHash, s.Username, s.Email, s.ProfilePicture,
		s.IPAddress, s.UserAgent, s.ExpiresAt, s.CreatedAt, s.UpdatedAt)
	return err
}

func (a *Adapter) GetSessionByHash(ctx context.Context, tokenHash string) (*core.Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM sessions WHERE token_hash = $1`

	s := &core.Session{}
	err := a.pool.QueryRow(ctx, q, tokenHash).Scan(
		&s.ID, &s.UserID, &s.TokenHash, &s.Username, &s.Email, &s.ProfilePicture,
		&s.IPAddress, &s.UserAgent, &s.ExpiresAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrSessionNotFound
		}
		return nil, err
	}
	return s, nil
}

// UpdateSession rewrites the mutable view of a session. Identity, owner and
// expiry never change.
func (a *Adapter) UpdateSession(ctx context.Context, s *core.Session) error {
	q := `UPDATE sessions
	      SET username = $1, email = $2, profile_picture = $3, updated_at = $4
	      WHERE token_hash = $5`

	tag, err := a.pool.Exec(ctx, q, s.Username, s.Email, s.ProfilePicture, s.UpdatedAt, s.TokenHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrSessionNotFound
	}
	return nil
}

func (a *Adapter) DeleteSessionByHash(ctx context.Context, tokenHash string) error {
	tag, err := a.pool.Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrSessionNotFound
	}
	return nil
}

func (a *Adapter) DeleteUserSessions(ctx context.Context, userID string) (int, error) {
	tag, err := a.pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (a *Adapter) DeleteExpiredSessions(ctx context.Context) (int, error) {
	tag, err := a.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
