package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/zidek-labs/bellrock/internal/errs"
	"github.com/zidek-labs/bellrock/internal/model"
)

// PeerRepo implements repository.PeerRepository, storing two rows per
// logical edge so lookup by either endpoint is a single-column scan
// (spec §4.4).
type PeerRepo struct{ db *DB }

// NewPeerRepo constructs a peer repository.
func NewPeerRepo(db *DB) *PeerRepo { return &PeerRepo{db: db} }

// Add registers a symmetric edge between a and b, writing both directions.
func (r *PeerRepo) Add(ctx context.Context, a, b model.UID) error {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errs.NewStorageError("peer.add", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const q = `INSERT INTO peers (uid, peer) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if _, err := tx.Exec(ctx, q, a[:], b[:]); err != nil {
		return errs.NewStorageError("peer.add", err)
	}
	if _, err := tx.Exec(ctx, q, b[:], a[:]); err != nil {
		return errs.NewStorageError("peer.add", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return errs.NewStorageError("peer.add", err)
	}
	return nil
}

// Delete removes a symmetric edge between a and b, both directions.
func (r *PeerRepo) Delete(ctx context.Context, a, b model.UID) error {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errs.NewStorageError("peer.delete", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const q = `DELETE FROM peers WHERE uid=$1 AND peer=$2`
	if _, err := tx.Exec(ctx, q, a[:], b[:]); err != nil {
		return errs.NewStorageError("peer.delete", err)
	}
	if _, err := tx.Exec(ctx, q, b[:], a[:]); err != nil {
		return errs.NewStorageError("peer.delete", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return errs.NewStorageError("peer.delete", err)
	}
	return nil
}

// Peers returns the peer set of uid in stored order.
func (r *PeerRepo) Peers(ctx context.Context, uid model.UID) ([]model.UID, error) {
	const q = `SELECT peer FROM peers WHERE uid=$1 ORDER BY peer`
	rows, err := r.db.Pool.Query(ctx, q, uid[:])
	if err != nil {
		return nil, errs.NewStorageError("peer.peers", err)
	}
	defer rows.Close()

	var out []model.UID
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, errs.NewStorageError("peer.peers", err)
		}
		var p model.UID
		copy(p[:], raw)
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteAllFor removes every edge mentioning uid in either column.
func (r *PeerRepo) DeleteAllFor(ctx context.Context, uid model.UID) error {
	const q = `DELETE FROM peers WHERE uid=$1 OR peer=$1`
	_, err := r.db.Pool.Exec(ctx, q, uid[:])
	if err != nil {
		return errs.NewStorageError("peer.deleteallfor", err)
	}
	return nil
}

// Clear truncates the table.
func (r *PeerRepo) Clear(ctx context.Context) error {
	const q = `TRUNCATE TABLE peers`
	_, err := r.db.Pool.Exec(ctx, q)
	if err != nil {
		return errs.NewStorageError("peer.clear", err)
	}
	return nil
}
