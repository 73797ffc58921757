// Package candidates builds the ordered candidate set the resolver searches
// for each observation (spec §4.2): recent acquaintances, then declared
// peers, then co-located users, short-circuiting on first match.
package candidates

import (
	"context"
	"time"

	"github.com/zidek-labs/bellrock/internal/lru"
	"github.com/zidek-labs/bellrock/internal/model"
	"github.com/zidek-labs/bellrock/internal/repository"
)

// CoLocatedCache is the batch-scoped prefetch described in §4.2: computed
// once per batch of observations from one observer, keyed by the coarse
// location of each of the observer's own location intervals overlapping
// the batch's time range, never recomputed per observation.
type CoLocatedCache struct {
	byLocation map[model.CoarseLocation][]model.UID
}

// PrefetchCoLocated builds the cache for one batch: for each of the
// observer's own location intervals in [batchStart,batchEnd], it queries
// the store for every UID whose interval overlaps that window at that
// coarse location. Mirrors BellrockServer.addObservations' usersMetAtLocations map.
func PrefetchCoLocated(
	ctx context.Context,
	locations repository.LocationRepository,
	observer model.UID,
	batchStart, batchEnd time.Time,
) (*CoLocatedCache, error) {
	observerLocs, err := locations.For(ctx, observer, batchStart, batchEnd)
	if err != nil {
		return nil, err
	}

	cache := &CoLocatedCache{byLocation: make(map[model.CoarseLocation][]model.UID)}
	for _, loc := range observerLocs {
		users, err := locations.UsersAtInterval(ctx, loc.Coarse, loc.Start, loc.End)
		if err != nil {
			return nil, err
		}
		cache.byLocation[loc.Coarse] = append(cache.byLocation[loc.Coarse], users...)
	}
	return cache, nil
}

// For returns the co-located candidates for the coarse projection of a
// single observation's precise location. An observation whose precise
// location does not project to any known coarse cell, or a batch from an
// observer with no stored locations, legally yields an empty slice.
func (c *CoLocatedCache) For(loc model.CoarseLocation) []model.UID {
	return c.byLocation[loc]
}

// Set returns, in priority order, recent acquaintances, declared peers,
// then co-located users for the observation's coarse location. Duplicates
// between sources are permitted; callers are not required to deduplicate.
// Peers is the observer's peer set, fetched once per batch by the caller
// (the peer set cannot change mid-batch).
func Set(recent *lru.Cache, peers []model.UID, coLocated *CoLocatedCache, obsLoc model.CoarseLocation) []model.UID {
	var out []model.UID
	if recent != nil {
		out = append(out, recent.Items()...)
	}
	out = append(out, peers...)
	if coLocated != nil {
		out = append(out, coLocated.For(obsLoc)...)
	}
	return out
}
