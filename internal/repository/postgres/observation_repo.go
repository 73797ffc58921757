package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/zidek-labs/bellrock/internal/errs"
	"github.com/zidek-labs/bellrock/internal/model"
)

// ObservationRepo implements repository.ObservationRepository.
type ObservationRepo struct{ db *DB }

// NewObservationRepo constructs an observation repository.
func NewObservationRepo(db *DB) *ObservationRepo { return &ObservationRepo{db: db} }

// Add inserts a single observation, committing immediately.
func (r *ObservationRepo) Add(ctx context.Context, obs model.Observation) error {
	const q = `
INSERT INTO observations (observer_uid, aid, resolved_uid, ts, lat, lon, location_name)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	var resolved []byte
	if obs.ResolvedUID != nil {
		resolved = obs.ResolvedUID[:]
	}
	_, err := r.db.Pool.Exec(ctx, q,
		obs.Observer[:], obs.AID[:], resolved, obs.Time, obs.Location.Lat, obs.Location.Lon, obs.LocationName)
	if err != nil {
		return errs.NewStorageError("observation.add", err)
	}
	return nil
}

// AddBatch inserts a batch in a single transaction, committing once at the end.
func (r *ObservationRepo) AddBatch(ctx context.Context, batch []model.Observation) error {
	if len(batch) == 0 {
		return nil
	}
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errs.NewStorageError("observation.addbatch", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const stmt = `
INSERT INTO observations (observer_uid, aid, resolved_uid, ts, lat, lon, location_name)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for _, obs := range batch {
		var resolved []byte
		if obs.ResolvedUID != nil {
			resolved = obs.ResolvedUID[:]
		}
		if _, err := tx.Exec(ctx, stmt,
			obs.Observer[:], obs.AID[:], resolved, obs.Time, obs.Location.Lat, obs.Location.Lon, obs.LocationName); err != nil {
			return errs.NewStorageError("observation.addbatch", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return errs.NewStorageError("observation.addbatch", err)
	}
	return nil
}

// Delete removes a single observation by observer+AID+time.
func (r *ObservationRepo) Delete(ctx context.Context, observer model.UID, aid model.AID, ts time.Time) error {
	const q = `DELETE FROM observations WHERE observer_uid=$1 AND aid=$2 AND ts=$3`
	_, err := r.db.Pool.Exec(ctx, q, observer[:], aid[:], ts)
	if err != nil {
		return errs.NewStorageError("observation.delete", err)
	}
	return nil
}

// ByObserver returns every observation recorded by observer.
func (r *ObservationRepo) ByObserver(ctx context.Context, observer model.UID) ([]model.Observation, error) {
	const q = `
SELECT observer_uid, aid, resolved_uid, ts, lat, lon, location_name
FROM observations WHERE observer_uid=$1 ORDER BY ts`
	rows, err := r.db.Pool.Query(ctx, q, observer[:])
	if err != nil {
		return nil, errs.NewStorageError("observation.byobserver", err)
	}
	defer rows.Close()

	var out []model.Observation
	for rows.Next() {
		var observerRaw, aidRaw, resolvedRaw []byte
		var o model.Observation
		if err := rows.Scan(&observerRaw, &aidRaw, &resolvedRaw, &o.Time, &o.Location.Lat, &o.Location.Lon, &o.LocationName); err != nil {
			return nil, errs.NewStorageError("observation.byobserver", err)
		}
		copy(o.Observer[:], observerRaw)
		copy(o.AID[:], aidRaw)
		if len(resolvedRaw) == model.UIDLen {
			var ru model.UID
			copy(ru[:], resolvedRaw)
			o.ResolvedUID = &ru
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// DeleteAllFor removes every observation mentioning uid as observer or as
// the resolved subject (cascade on user deletion, spec invariant 4).
func (r *ObservationRepo) DeleteAllFor(ctx context.Context, uid model.UID) error {
	const q = `DELETE FROM observations WHERE observer_uid=$1 OR resolved_uid=$1`
	_, err := r.db.Pool.Exec(ctx, q, uid[:])
	if err != nil {
		return errs.NewStorageError("observation.deleteallfor", err)
	}
	return nil
}

// Clear truncates the table.
func (r *ObservationRepo) Clear(ctx context.Context) error {
	const q = `TRUNCATE TABLE observations`
	_, err := r.db.Pool.Exec(ctx, q)
	if err != nil {
		return errs.NewStorageError("observation.clear", err)
	}
	return nil
}
