// Package resolver implements AID resolution (spec §4.3): given a
// chronologically-sorted batch of observations from one observer, recover
// the UID behind each AID using the candidate set built by
// internal/candidates, trial-decrypting with internal/aidcodec.
package resolver

import (
	"context"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/zidek-labs/bellrock/internal/aidcodec"
	"github.com/zidek-labs/bellrock/internal/candidates"
	"github.com/zidek-labs/bellrock/internal/keyregistry"
	"github.com/zidek-labs/bellrock/internal/lru"
	"github.com/zidek-labs/bellrock/internal/model"
	"github.com/zidek-labs/bellrock/internal/repository"
)

// DefaultParallelThreshold is the reference threshold from §4.3: above this
// many candidates, trial decryption fans out across the worker pool.
const DefaultParallelThreshold = 64

// DefaultLRUCapacity is the reference recent-acquaintances window size (K).
const DefaultLRUCapacity = 1000

// DefaultWorkers bounds the parallel search executor's worker pool.
const DefaultWorkers = 8

// observerState holds one observer's recent-acquaintances window plus the
// mutex that serializes concurrent batches for that observer, since the
// window is owned by that observer's in-memory object (spec §5).
type observerState struct {
	mu     sync.Mutex
	recent *lru.Cache
}

// Resolver performs AID resolution against a persistent store and an
// in-memory key registry, threaded through explicitly rather than held as
// ambient globals (spec §9).
type Resolver struct {
	codec *aidcodec.Codec
	keys  *keyregistry.Registry

	peers        repository.PeerRepository
	locations    repository.LocationRepository
	observations repository.ObservationRepository

	observersMu sync.Mutex
	observers   map[model.UID]*observerState
	lruCapacity int

	parallelThreshold int
	workers           int

	log *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithParallelThreshold overrides DefaultParallelThreshold.
func WithParallelThreshold(n int) Option {
	return func(r *Resolver) { r.parallelThreshold = n }
}

// WithWorkers overrides DefaultWorkers.
func WithWorkers(n int) Option {
	return func(r *Resolver) { r.workers = n }
}

// WithLRUCapacity overrides DefaultLRUCapacity.
func WithLRUCapacity(n int) Option {
	return func(r *Resolver) { r.lruCapacity = n }
}

// New constructs a Resolver around the given codec, key registry and the
// three repositories it needs (peers, locations, observations).
func New(
	codec *aidcodec.Codec,
	keys *keyregistry.Registry,
	peers repository.PeerRepository,
	locations repository.LocationRepository,
	observations repository.ObservationRepository,
	log *zap.Logger,
	opts ...Option,
) *Resolver {
	r := &Resolver{
		codec:             codec,
		keys:              keys,
		peers:             peers,
		locations:         locations,
		observations:      observations,
		observers:         make(map[model.UID]*observerState),
		lruCapacity:       DefaultLRUCapacity,
		parallelThreshold: DefaultParallelThreshold,
		workers:           DefaultWorkers,
		log:               log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) stateFor(observer model.UID) *observerState {
	r.observersMu.Lock()
	defer r.observersMu.Unlock()
	st, ok := r.observers[observer]
	if !ok {
		st = &observerState{recent: lru.New(r.lruCapacity)}
		r.observers[observer] = st
	}
	return st
}

// Resolve attempts to identify the sender of every observation in the
// batch, then persists the whole batch (resolved and unresolved) in one
// bulk write. It returns the number of successful resolutions.
//
// Updates from concurrent batches for the same observer are serialized by
// locking that observer's state for the duration of the call (spec §5).
func (r *Resolver) Resolve(ctx context.Context, batch *model.Observations) (int, error) {
	if len(batch.List) == 0 {
		return 0, nil
	}

	state := r.stateFor(batch.Observer)
	state.mu.Lock()
	defer state.mu.Unlock()

	start := time.Now()
	corrID, err := uuid.NewV4()
	if err != nil {
		return 0, err
	}

	peers, err := r.peers.Peers(ctx, batch.Observer)
	if err != nil {
		return 0, err
	}

	// Co-located candidates require a location-history lookup (spec §4.2),
	// so the cache is built lazily on first need rather than unconditionally:
	// a batch that resolves entirely from recent acquaintances and peers
	// never touches location storage at all (spec §8, scenario 3).
	var coCache *candidates.CoLocatedCache
	var coCacheBuilt bool
	coLocated := func() (*candidates.CoLocatedCache, error) {
		if coCacheBuilt {
			return coCache, nil
		}
		coCacheBuilt = true
		var err error
		coCache, err = candidates.PrefetchCoLocated(ctx, r.locations, batch.Observer, batch.First().Time, batch.Last().Time)
		return coCache, err
	}

	resolvedCount := 0
	for i := range batch.List {
		obs := &batch.List[i]

		coarse := obs.Location.ToCoarse()
		cset := candidates.Set(state.recent, peers, nil, coarse)
		uid, found := r.search(ctx, obs.AID, cset)
		if !found {
			cc, err := coLocated()
			if err != nil {
				return resolvedCount, err
			}
			cset = candidates.Set(nil, nil, cc, coarse)
			if len(cset) == 0 {
				// The batch-level interval prefetch covers only the
				// observer's own location history; an observation at a
				// coarse cell the observer was never recorded at falls
				// back to a direct per-observation instant lookup (spec
				// §4.2's "look up by the coarse projection of the
				// observation's precise location").
				cset, err = r.locations.UsersAt(ctx, coarse, obs.Time)
				if err != nil {
					return resolvedCount, err
				}
			}
			uid, found = r.search(ctx, obs.AID, cset)
		}
		if !found {
			continue
		}
		obs.ResolvedUID = &uid
		state.recent.Touch(uid)
		resolvedCount++
	}

	if err := r.observations.AddBatch(ctx, batch.List); err != nil {
		return resolvedCount, err
	}

	if r.log != nil {
		r.log.Info("resolved batch",
			zap.String("correlation_id", corrID.String()),
			zap.Int("batch_size", len(batch.List)),
			zap.Int("resolved", resolvedCount),
			zap.Duration("dur", time.Since(start)),
		)
	}
	return resolvedCount, nil
}

// search trial-decrypts aid against each candidate in order, sequentially
// below the parallel threshold (source 1/2 are tiny and usually hit within
// the first few attempts) and via the worker pool above it.
func (r *Resolver) search(ctx context.Context, aid model.AID, cands []model.UID) (model.UID, bool) {
	if len(cands) == 0 {
		return model.UID{}, false
	}
	if len(cands) <= r.parallelThreshold {
		return r.searchSequential(aid, cands)
	}
	return r.searchParallel(ctx, aid, cands)
}

func (r *Resolver) searchSequential(aid model.AID, cands []model.UID) (model.UID, bool) {
	for _, uid := range cands {
		key, ok := r.keys.Get(uid)
		if !ok {
			continue
		}
		if r.codec.TryMatch(aid, uid, key) {
			return uid, true
		}
	}
	return model.UID{}, false
}
