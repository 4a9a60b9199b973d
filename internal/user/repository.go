// AngelaMos | 2026
// repository.go

package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vodkaclient/keyserver/internal/core"
)

type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, uid int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context) ([]User, error)
	Delete(ctx context.Context, uid int64) error
	BindHWID(ctx context.Context, uid int64, hwid string) (bool, error)
	ResetHWID(ctx context.Context, uid int64) error
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (username, password_hash)
		VALUES ($1, $2)
		RETURNING uid, created_at`

	err := r.db.GetContext(ctx, user, query,
		user.Username,
		user.PasswordHash,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("create user: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, uid int64) (*User, error) {
	query := `
		SELECT uid, username, password_hash, hwid, hwid_set_at,
		       subscription_type, subscription_expires, created_at
		FROM users
		WHERE uid = $1`

	var user User
	err := r.db.GetContext(ctx, &user, query, uid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &user, nil
}

func (r *repository) GetByUsername(
	ctx context.Context,
	username string,
) (*User, error) {
	query := `
		SELECT uid, username, password_hash, hwid, hwid_set_at,
		       subscription_type, subscription_expires, created_at
		FROM users
		WHERE username = $1`

	var user User
	err := r.db.GetContext(ctx, &user, query, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user by username: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", err)
	}

	return &user, nil
}

func (r *repository) List(ctx context.Context) ([]User, error) {
	query := `
		SELECT uid, username, password_hash, hwid, hwid_set_at,
		       subscription_type, subscription_expires, created_at
		FROM users
		ORDER BY uid`

	var users []User
	if err := r.db.SelectContext(ctx, &users, query); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	return users, nil
}

func (r *repository) Delete(ctx context.Context, uid int64) error {
	query := `DELETE FROM users WHERE uid = $1`

	result, err := r.db.ExecContext(ctx, query, uid)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("delete user: %w", core.ErrNotFound)
	}

	return nil
}

// BindHWID is a first-write-wins lock: the hwid IS NULL guard makes
// concurrent first binds resolve to exactly one persisted value. Returns
// whether this call won the write.
func (r *repository) BindHWID(
	ctx context.Context,
	uid int64,
	hwid string,
) (bool, error) {
	query := `
		UPDATE users
		SET hwid = $2, hwid_set_at = NOW()
		WHERE uid = $1 AND hwid IS NULL`

	result, err := r.db.ExecContext(ctx, query, uid, hwid)
	if err != nil {
		return false, fmt.Errorf("bind hwid: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("bind hwid: %w", err)
	}

	return rows > 0, nil
}

func (r *repository) ResetHWID(ctx context.Context, uid int64) error {
	query := `
		UPDATE users
		SET hwid = NULL, hwid_set_at = NULL
		WHERE uid = $1`

	result, err := r.db.ExecContext(ctx, query, uid)
	if err != nil {
		return fmt.Errorf("reset hwid: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reset hwid: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("reset hwid: %w", core.ErrNotFound)
	}

	return nil
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
