// Package ingest implements the transport-neutral Ingest API (spec §6):
// user and key lifecycle, peer and location bookkeeping, and observation
// submission. internal/httpapi is a thin wire façade over this package;
// nothing here knows about HTTP.
package ingest

import (
	"context"
	"crypto/rand"
	"time"

	"go.uber.org/zap"

	"github.com/zidek-labs/bellrock/internal/keyregistry"
	"github.com/zidek-labs/bellrock/internal/model"
	"github.com/zidek-labs/bellrock/internal/repository"
	"github.com/zidek-labs/bellrock/internal/resolver"
)

// LocationBuffer is the opt-in buffered write path for AddLocation (spec
// §4.4): stage the row and let a background ticker/threshold commit it,
// rather than committing immediately. internal/repository/postgres's
// BufferedLocationWriter satisfies this.
type LocationBuffer interface {
	Enqueue(ctx context.Context, loc model.UserLocation) error
}

// CellTowers resolves a packed cell-tower identifier to the coarse location
// it is known to sit at (spec §4.5). internal/celltower.Map satisfies this.
type CellTowers interface {
	Get(packed model.CellTowerID) (model.CoarseLocation, bool)
}

// Service implements the Ingest API table from spec §6 against a Store, a
// warmed key registry and a resolver, none of which it owns: all three are
// constructed and wired by cmd/server.
type Service struct {
	store  repository.Store
	keys   *keyregistry.Registry
	res    *resolver.Resolver
	log    *zap.Logger
	locBuf LocationBuffer
	towers CellTowers
}

// New constructs a Service. keys must already be warmed (see keyregistry.Warm).
func New(store repository.Store, keys *keyregistry.Registry, res *resolver.Resolver, log *zap.Logger) *Service {
	return &Service{store: store, keys: keys, res: res, log: log}
}

// WithLocationBuffer routes AddLocation through buf instead of committing
// immediately. AddLocations (the explicit batch call) always commits
// immediately regardless of this setting — it is already a bulk write.
func (s *Service) WithLocationBuffer(buf LocationBuffer) *Service {
	s.locBuf = buf
	return s
}

// WithCellTowers enables deriving a location's coarse position from its
// cell-tower identifier rather than trusting the client-reported lat/lon
// directly (spec §3: "coarse location derivable from cell-tower identifier").
func (s *Service) WithCellTowers(towers CellTowers) *Service {
	s.towers = towers
	return s
}

// resolveCoarse overrides loc.Coarse from the cell-tower map when the
// location carries a known cell-tower identifier. A location with no
// cell-tower identifier, or one the map has no entry for (coverage is never
// total — §4.5 expects ~10⁷ entries, not every cell that exists), keeps the
// coarse location the client supplied.
func (s *Service) resolveCoarse(loc *model.UserLocation) {
	if s.towers == nil || loc.CellTower == 0 {
		return
	}
	if coarse, ok := s.towers.Get(loc.CellTower); ok {
		loc.Coarse = coarse
	}
}

func newUID() (model.UID, error) {
	var uid model.UID
	if _, err := rand.Read(uid[:]); err != nil {
		return model.UID{}, err
	}
	return uid, nil
}

func newKey() (model.Key, error) {
	var key model.Key
	if _, err := rand.Read(key[:]); err != nil {
		return model.Key{}, err
	}
	return key, nil
}

// RegisterUser creates one new user and secret key, per spec §6.
func (s *Service) RegisterUser(ctx context.Context) (model.UID, model.Key, error) {
	uid, err := newUID()
	if err != nil {
		return model.UID{}, model.Key{}, err
	}
	key, err := newKey()
	if err != nil {
		return model.UID{}, model.Key{}, err
	}
	if err := s.store.Users().Create(ctx, uid); err != nil {
		return model.UID{}, model.Key{}, err
	}
	if err := s.keys.Put(ctx, uid, key); err != nil {
		return model.UID{}, model.Key{}, err
	}
	return uid, key, nil
}

// RegisterUsers creates n new users in one call, per spec §6.
func (s *Service) RegisterUsers(ctx context.Context, n int) ([]model.UID, []model.Key, error) {
	uids := make([]model.UID, 0, n)
	keys := make([]model.Key, 0, n)
	for i := 0; i < n; i++ {
		uid, key, err := s.RegisterUser(ctx)
		if err != nil {
			return uids, keys, err
		}
		uids = append(uids, uid)
		keys = append(keys, key)
	}
	return uids, keys, nil
}

// RenewKey replaces uid's secret key and reports the new one.
func (s *Service) RenewKey(ctx context.Context, uid model.UID) (model.Key, error) {
	if _, err := s.store.Users().Get(ctx, uid); err != nil {
		return model.Key{}, err
	}
	key, err := newKey()
	if err != nil {
		return model.Key{}, err
	}
	if err := s.keys.Put(ctx, uid, key); err != nil {
		return model.Key{}, err
	}
	return key, nil
}

// DeleteUser removes uid and cascades across peers, keys, observations and
// locations (spec §4.4 invariant 4).
func (s *Service) DeleteUser(ctx context.Context, uid model.UID) error {
	if err := s.store.DeleteUser(ctx, uid); err != nil {
		return err
	}
	return s.keys.Delete(ctx, uid)
}

// AddPeer records a symmetric social edge.
func (s *Service) AddPeer(ctx context.Context, a, b model.UID) error {
	return s.store.Peers().Add(ctx, a, b)
}

// DeletePeer removes a symmetric social edge.
func (s *Service) DeletePeer(ctx context.Context, a, b model.UID) error {
	return s.store.Peers().Delete(ctx, a, b)
}

// AddLocation records a single location interval for uid, via the buffered
// path if one was configured with WithLocationBuffer, committing
// immediately otherwise.
func (s *Service) AddLocation(ctx context.Context, loc model.UserLocation) error {
	s.resolveCoarse(&loc)
	if s.locBuf != nil {
		return s.locBuf.Enqueue(ctx, loc)
	}
	return s.store.Locations().Add(ctx, loc)
}

// AddLocations records a batch of location intervals in one commit.
func (s *Service) AddLocations(ctx context.Context, locs []model.UserLocation) error {
	for i := range locs {
		s.resolveCoarse(&locs[i])
	}
	return s.store.Locations().AddBatch(ctx, locs)
}

// PruneLocations deletes every stored location interval that ended before
// cutoff, the operator-triggered retention sweep named in spec §3's
// "pruned on UID deletion or retention sweep" (original_source's
// BellrockUser.purgeOldLocations). It reports how many rows were removed.
func (s *Service) PruneLocations(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.store.Locations().PruneBefore(ctx, cutoff)
}

// SubmitObservations hands a chronological batch of observations to the
// resolver and reports the number resolved (spec §6).
func (s *Service) SubmitObservations(ctx context.Context, batch *model.Observations) (int, error) {
	return s.res.Resolve(ctx, batch)
}
