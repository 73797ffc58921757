package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/zidek-labs/bellrock/internal/errs"
	"github.com/zidek-labs/bellrock/internal/model"
)

// LocationRepo implements repository.LocationRepository.
type LocationRepo struct{ db *DB }

// NewLocationRepo constructs a location repository.
func NewLocationRepo(db *DB) *LocationRepo { return &LocationRepo{db: db} }

// Add inserts a single location interval, committing immediately.
func (r *LocationRepo) Add(ctx context.Context, loc model.UserLocation) error {
	const q = `
INSERT INTO locations (uid, start_ts, end_ts, coarse_lat, coarse_lon, cell_tower_packed)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.Pool.Exec(ctx, q, loc.UID[:], loc.Start, loc.End, loc.Coarse.Lat, loc.Coarse.Lon, int64(loc.CellTower))
	if err != nil {
		return errs.NewStorageError("location.add", err)
	}
	return nil
}

// AddBatch inserts a batch in a single transaction, committing once at the end.
func (r *LocationRepo) AddBatch(ctx context.Context, batch []model.UserLocation) error {
	if len(batch) == 0 {
		return nil
	}
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errs.NewStorageError("location.addbatch", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const stmt = `
INSERT INTO locations (uid, start_ts, end_ts, coarse_lat, coarse_lon, cell_tower_packed)
VALUES ($1, $2, $3, $4, $5, $6)`
	for _, loc := range batch {
		if _, err := tx.Exec(ctx, stmt, loc.UID[:], loc.Start, loc.End, loc.Coarse.Lat, loc.Coarse.Lon, int64(loc.CellTower)); err != nil {
			return errs.NewStorageError("location.addbatch", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return errs.NewStorageError("location.addbatch", err)
	}
	return nil
}

// For returns every stored interval for uid, optionally restricted to [s,e]
// by overlap (not containment). A zero s and e means unrestricted.
func (r *LocationRepo) For(ctx context.Context, uid model.UID, s, e time.Time) ([]model.UserLocation, error) {
	var rows pgx.Rows
	var err error
	if s.IsZero() && e.IsZero() {
		const q = `SELECT uid, start_ts, end_ts, coarse_lat, coarse_lon, cell_tower_packed FROM locations WHERE uid=$1 ORDER BY start_ts`
		rows, err = r.db.Pool.Query(ctx, q, uid[:])
	} else {
		// Overlap, not containment: NOT (end < s OR start > e).
		const q = `
SELECT uid, start_ts, end_ts, coarse_lat, coarse_lon, cell_tower_packed
FROM locations
WHERE uid=$1 AND NOT (end_ts < $2 OR start_ts > $3)
ORDER BY start_ts`
		rows, err = r.db.Pool.Query(ctx, q, uid[:], s, e)
	}
	if err != nil {
		return nil, errs.NewStorageError("location.for", err)
	}
	defer rows.Close()
	return scanLocations(rows)
}

// UsersAt returns every UID whose stored interval covers instant at coarse
// location loc (the single-instant overload; spec §4.2 looks this up per
// observation, SPEC_FULL.md §C.2).
func (r *LocationRepo) UsersAt(ctx context.Context, loc model.CoarseLocation, instant time.Time) ([]model.UID, error) {
	const q = `
SELECT DISTINCT uid FROM locations
WHERE coarse_lat=$1 AND coarse_lon=$2 AND start_ts <= $3 AND end_ts >= $3`
	rows, err := r.db.Pool.Query(ctx, q, loc.Lat, loc.Lon, instant)
	if err != nil {
		return nil, errs.NewStorageError("location.usersat", err)
	}
	defer rows.Close()
	return scanUIDs(rows)
}

// UsersAtInterval returns every UID whose stored interval overlaps [s,e] at
// coarse location loc. Used once per batch to prefetch the co-located
// candidate source (spec §4.2).
func (r *LocationRepo) UsersAtInterval(ctx context.Context, loc model.CoarseLocation, s, e time.Time) ([]model.UID, error) {
	const q = `
SELECT DISTINCT uid FROM locations
WHERE coarse_lat=$1 AND coarse_lon=$2 AND NOT (end_ts < $3 OR start_ts > $4)`
	rows, err := r.db.Pool.Query(ctx, q, loc.Lat, loc.Lon, s, e)
	if err != nil {
		return nil, errs.NewStorageError("location.usersatinterval", err)
	}
	defer rows.Close()
	return scanUIDs(rows)
}

// DeleteAllFor removes every location row for uid.
func (r *LocationRepo) DeleteAllFor(ctx context.Context, uid model.UID) error {
	const q = `DELETE FROM locations WHERE uid=$1`
	_, err := r.db.Pool.Exec(ctx, q, uid[:])
	if err != nil {
		return errs.NewStorageError("location.deleteallfor", err)
	}
	return nil
}

// PruneBefore deletes every location interval that ended before cutoff.
func (r *LocationRepo) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `DELETE FROM locations WHERE end_ts < $1`
	tag, err := r.db.Pool.Exec(ctx, q, cutoff)
	if err != nil {
		return 0, errs.NewStorageError("location.prunebefore", err)
	}
	return tag.RowsAffected(), nil
}

// Clear truncates the table.
func (r *LocationRepo) Clear(ctx context.Context) error {
	const q = `TRUNCATE TABLE locations`
	_, err := r.db.Pool.Exec(ctx, q)
	if err != nil {
		return errs.NewStorageError("location.clear", err)
	}
	return nil
}

// Flush is a no-op for the direct repository; buffering, when used, is the
// caller's responsibility via BufferedLocationWriter.
func (r *LocationRepo) Flush(ctx context.Context) error { return nil }

func scanLocations(rows pgx.Rows) ([]model.UserLocation, error) {
	var out []model.UserLocation
	for rows.Next() {
		var raw []byte
		var loc model.UserLocation
		var packed int64
		if err := rows.Scan(&raw, &loc.Start, &loc.End, &loc.Coarse.Lat, &loc.Coarse.Lon, &packed); err != nil {
			return nil, errs.NewStorageError("location.scan", err)
		}
		copy(loc.UID[:], raw)
		loc.CellTower = model.CellTowerID(packed)
		out = append(out, loc)
	}
	return out, rows.Err()
}

func scanUIDs(rows pgx.Rows) ([]model.UID, error) {
	var out []model.UID
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, errs.NewStorageError("location.scanuids", err)
		}
		var u model.UID
		copy(u[:], raw)
		out = append(out, u)
	}
	return out, rows.Err()
}
