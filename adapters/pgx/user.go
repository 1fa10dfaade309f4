package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/lborres/bantay/core"
)

const userColumns = `id, username, email, password_hash, profile_picture, created_at, updated_at`

func scanUser(row pgx.Row) (*core.User, error) {
	u := &core.User{}
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.ProfilePicture, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func (a *Adapter) CreateUser(ctx context.Context, user *core.User) error {
	q := `INSERT INTO users (id, username, email, password_hash, profile_picture)
	      VALUES ($1, $2, $3, $4, $5) RETURNING created_at, updated_at`

	err := a.pool.QueryRow(ctx, q, user.ID, user.Username, user.Email, user.PasswordHash, user.ProfilePicture).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return core.ErrUserExists
		}
		return err
	}
	return nil
}

func (a *Adapter) GetUserByID(ctx context.Context, id string) (*core.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(a.pool.QueryRow(ctx, q, id))
}

func (a *Adapter) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(a.pool.QueryRow(ctx, q, email))
}

// buildUserUpdate turns a patch into an UPDATE that returns the full row.
// Only the supplied columns are set.
func buildUserUpdate(id string, patch core.UserPatch) (string, []any, error) {
	set := squirrel.Eq{}
	if patch.Username != nil {
		set["username"] = *patch.Username
	}
	if patch.Email != nil {
		set["email"] = *patch.Email
	}
	if patch.ProfilePicture != nil {
		set["profile_picture"] = *patch.ProfilePicture
	}
	set["updated_at"] = squirrel.Expr("now()")

	return psql.Update("users").
		SetMap(set).
		Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING " + userColumns).
		ToSql()
}

func (a *Adapter) UpdateUser(ctx context.Context, id string, patch core.UserPatch) (*core.User, error) {
	if patch.Empty() {
		return a.GetUserByID(ctx, id)
	}

	q, args, err := buildUserUpdate(id, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to build update: %w", err)
	}

	u, err := scanUser(a.pool.QueryRow(ctx, q, args...))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, core.ErrUserExists
		}
		return nil, err
	}
	return u, nil
}

func (a *Adapter) DeleteUser(ctx context.Context, id string) error {
	tag, err := a.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrUserNotFound
	}
	return nil
}
