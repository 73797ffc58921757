// Package repository defines storage interfaces implemented by concrete
// backends (spec §4.4). The resolver and the ingest service depend only on
// these interfaces, never on a concrete driver.
package repository

import (
	"context"
	"time"

	"github.com/zidek-labs/bellrock/internal/model"
)

// UserRepository persists the Users table.
type UserRepository interface {
	// Create inserts a new user row. Returns errs.ErrDuplicate if uid exists.
	Create(ctx context.Context, uid model.UID) error
	// Exists reports whether uid is registered, using a portable formulation
	// of "contains" (spec §9 open question): returns a count, not a
	// dialect-specific EXISTS() trick.
	Exists(ctx context.Context, uid model.UID) (bool, error)
	// Get returns the user row for uid.
	Get(ctx context.Context, uid model.UID) (*model.User, error)
	// Delete removes the user row. Cascading to other tables is the
	// caller's (store-level) responsibility, not this repository's.
	Delete(ctx context.Context, uid model.UID) error
	// Count returns the number of registered users.
	Count(ctx context.Context) (int, error)
	// Clear truncates the table.
	Clear(ctx context.Context) error
}

// KeyRepository persists the segregated, encrypted-at-rest Keys table.
type KeyRepository interface {
	// Put stores (or replaces, on renewal) the wrapped key material for uid.
	Put(ctx context.Context, uid model.UID, wrapped []byte) error
	// Get returns the wrapped key material for uid.
	Get(ctx context.Context, uid model.UID) ([]byte, error)
	// Delete removes the wrapped key for uid.
	Delete(ctx context.Context, uid model.UID) error
	// GetAll returns every (uid, wrapped key) pair, used to warm the
	// resolver's per-user key cache at startup.
	GetAll(ctx context.Context) (map[model.UID][]byte, error)
	// Clear truncates the table.
	Clear(ctx context.Context) error
}

// PeerRepository persists the Peers table as two rows per logical edge.
type PeerRepository interface {
	// Add registers a symmetric edge between a and b.
	Add(ctx context.Context, a, b model.UID) error
	// Delete removes a symmetric edge between a and b.
	Delete(ctx context.Context, a, b model.UID) error
	// Peers returns the peer set of uid in stored order.
	Peers(ctx context.Context, uid model.UID) ([]model.UID, error)
	// DeleteAllFor removes every edge mentioning uid in either column.
	DeleteAllFor(ctx context.Context, uid model.UID) error
	// Clear truncates the table.
	Clear(ctx context.Context) error
}

// ObservationRepository persists the Observations table.
type ObservationRepository interface {
	// Add inserts a single observation, committing immediately.
	Add(ctx context.Context, obs model.Observation) error
	// AddBatch inserts a batch, committing once at the end.
	AddBatch(ctx context.Context, batch []model.Observation) error
	// Delete removes a single observation by observer+AID+time.
	Delete(ctx context.Context, observer model.UID, aid model.AID, ts time.Time) error
	// ByObserver returns every observation recorded by observer.
	ByObserver(ctx context.Context, observer model.UID) ([]model.Observation, error)
	// DeleteAllFor removes every observation mentioning uid as observer or
	// as the resolved subject.
	DeleteAllFor(ctx context.Context, uid model.UID) error
	// Clear truncates the table.
	Clear(ctx context.Context) error
}

// LocationRepository persists the Locations table.
type LocationRepository interface {
	// Add inserts a single location interval, committing immediately.
	Add(ctx context.Context, loc model.UserLocation) error
	// AddBatch inserts a batch, committing once at the end. Used by the
	// buffered write path; implementations may instead stage rows in memory
	// and rely on the background ticker/threshold to flush (spec §4.4).
	AddBatch(ctx context.Context, batch []model.UserLocation) error
	// For returns every stored interval for uid, optionally restricted to
	// [s,e] by overlap (not containment). A zero s and e means unrestricted.
	For(ctx context.Context, uid model.UID, s, e time.Time) ([]model.UserLocation, error)
	// UsersAt returns every UID whose stored interval covers instant at
	// coarse location loc.
	UsersAt(ctx context.Context, loc model.CoarseLocation, instant time.Time) ([]model.UID, error)
	// UsersAtInterval returns every UID whose stored interval overlaps
	// [s,e] at coarse location loc.
	UsersAtInterval(ctx context.Context, loc model.CoarseLocation, s, e time.Time) ([]model.UID, error)
	// DeleteAllFor removes every location row for uid.
	DeleteAllFor(ctx context.Context, uid model.UID) error
	// PruneBefore deletes every location interval that ended before cutoff,
	// across all users (retention sweep, see SPEC_FULL.md §C.1).
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
	// Clear truncates the table.
	Clear(ctx context.Context) error
	// Flush forces any buffered rows to commit now.
	Flush(ctx context.Context) error
}

// Store aggregates the five repositories plus the cross-table operations the
// resolver and the ingest service depend on that don't belong to a single
// table (cascading delete, global clear, close).
type Store interface {
	Users() UserRepository
	Keys() KeyRepository
	Peers() PeerRepository
	Observations() ObservationRepository
	Locations() LocationRepository

	// DeleteUser cascades a user deletion across Users, Keys, Peers,
	// Observations and Locations (spec §4.4, invariant 4).
	DeleteUser(ctx context.Context, uid model.UID) error
	// Clear truncates every table in both the main store and the key store.
	Clear(ctx context.Context) error
	// Close flushes any buffered rows and releases both connection pools.
	Close(ctx context.Context) error
}
