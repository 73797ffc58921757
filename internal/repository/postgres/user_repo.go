package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/zidek-labs/bellrock/internal/errs"
	"github.com/zidek-labs/bellrock/internal/model"
)

// UserRepo implements repository.UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

// Create inserts a new user row.
func (r *UserRepo) Create(ctx context.Context, uid model.UID) error {
	const q = `INSERT INTO users (uid, created_at) VALUES ($1, now())`
	_, err := r.db.Pool.Exec(ctx, q, uid[:])
	if isUniqueViolation(err) {
		return errs.ErrDuplicate
	}
	if err != nil {
		return errs.NewStorageError("user.create", err)
	}
	return nil
}

// Exists reports whether uid is registered. Uses a portable COUNT(*) form
// rather than a dialect-specific EXISTS() shorthand (spec §9 open question).
func (r *UserRepo) Exists(ctx context.Context, uid model.UID) (bool, error) {
	const q = `SELECT COUNT(*) FROM users WHERE uid=$1`
	var n int
	if err := r.db.Pool.QueryRow(ctx, q, uid[:]).Scan(&n); err != nil {
		return false, errs.NewStorageError("user.exists", err)
	}
	return n > 0, nil
}

// Get returns the user row for uid.
func (r *UserRepo) Get(ctx context.Context, uid model.UID) (*model.User, error) {
	const q = `SELECT uid, created_at FROM users WHERE uid=$1`
	row := r.db.Pool.QueryRow(ctx, q, uid[:])
	var rawUID []byte
	var u model.User
	if err := row.Scan(&rawUID, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, errs.NewStorageError("user.get", err)
	}
	copy(u.UID[:], rawUID)
	return &u, nil
}

// Delete removes the user row.
func (r *UserRepo) Delete(ctx context.Context, uid model.UID) error {
	const q = `DELETE FROM users WHERE uid=$1`
	_, err := r.db.Pool.Exec(ctx, q, uid[:])
	if err != nil {
		return errs.NewStorageError("user.delete", err)
	}
	return nil
}

// Count returns the number of registered users.
func (r *UserRepo) Count(ctx context.Context) (int, error) {
	const q = `SELECT COUNT(*) FROM users`
	var n int
	if err := r.db.Pool.QueryRow(ctx, q).Scan(&n); err != nil {
		return 0, errs.NewStorageError("user.count", err)
	}
	return n, nil
}

// Clear truncates the table.
func (r *UserRepo) Clear(ctx context.Context) error {
	const q = `TRUNCATE TABLE users`
	_, err := r.db.Pool.Exec(ctx, q)
	if err != nil {
		return errs.NewStorageError("user.clear", err)
	}
	return nil
}
