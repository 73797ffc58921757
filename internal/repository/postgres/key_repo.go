package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/zidek-labs/bellrock/internal/errs"
	"github.com/zidek-labs/bellrock/internal/model"
)

// KeyRepo implements repository.KeyRepository against the segregated
// key-store pool. Key material handed to it is already wrapped by
// internal/keyvault; this repository never sees plaintext.
type KeyRepo struct{ db *DB }

// NewKeyRepo constructs a key repository bound to the key-store pool.
func NewKeyRepo(db *DB) *KeyRepo { return &KeyRepo{db: db} }

// Put stores (or replaces, on renewal) the wrapped key for uid.
func (r *KeyRepo) Put(ctx context.Context, uid model.UID, wrapped []byte) error {
	const q = `
INSERT INTO keys (uid, wrapped_key) VALUES ($1, $2)
ON CONFLICT (uid) DO UPDATE SET wrapped_key = EXCLUDED.wrapped_key`
	_, err := r.db.Pool.Exec(ctx, q, uid[:], wrapped)
	if err != nil {
		return errs.NewStorageError("key.put", err)
	}
	return nil
}

// Get returns the wrapped key for uid.
func (r *KeyRepo) Get(ctx context.Context, uid model.UID) ([]byte, error) {
	const q = `SELECT wrapped_key FROM keys WHERE uid=$1`
	var wrapped []byte
	if err := r.db.Pool.QueryRow(ctx, q, uid[:]).Scan(&wrapped); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, errs.NewStorageError("key.get", err)
	}
	return wrapped, nil
}

// Delete removes the wrapped key for uid.
func (r *KeyRepo) Delete(ctx context.Context, uid model.UID) error {
	const q = `DELETE FROM keys WHERE uid=$1`
	_, err := r.db.Pool.Exec(ctx, q, uid[:])
	if err != nil {
		return errs.NewStorageError("key.delete", err)
	}
	return nil
}

// GetAll returns every (uid, wrapped key) pair.
func (r *KeyRepo) GetAll(ctx context.Context) (map[model.UID][]byte, error) {
	const q = `SELECT uid, wrapped_key FROM keys`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, errs.NewStorageError("key.getall", err)
	}
	defer rows.Close()

	out := make(map[model.UID][]byte)
	for rows.Next() {
		var rawUID, wrapped []byte
		if err := rows.Scan(&rawUID, &wrapped); err != nil {
			return nil, errs.NewStorageError("key.getall", err)
		}
		var uid model.UID
		copy(uid[:], rawUID)
		out[uid] = wrapped
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewStorageError("key.getall", err)
	}
	return out, nil
}

// Clear truncates the table.
func (r *KeyRepo) Clear(ctx context.Context) error {
	const q = `TRUNCATE TABLE keys`
	_, err := r.db.Pool.Exec(ctx, q)
	if err != nil {
		return errs.NewStorageError("key.clear", err)
	}
	return nil
}
