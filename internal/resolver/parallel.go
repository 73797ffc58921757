package resolver

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/zidek-labs/bellrock/internal/model"
)

// searchParallel distributes trial-decryption attempts across the worker
// pool and cancels remaining work as soon as one worker reports a match
// (spec §4.3). Trial decryption is CPU-bound and never suspends; the only
// thing that can make one candidate's attempt outlast another's is the
// scheduler, so cancellation here is cooperative rather than preemptive.
func (r *Resolver) searchParallel(ctx context.Context, aid model.AID, cands []model.UID) (model.UID, bool) {
	searchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(searchCtx)
	g.SetLimit(r.workers)

	var found atomic.Bool
	var mu sync.Mutex
	var winner model.UID

	for _, uid := range cands {
		uid := uid
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return nil
			default:
			}

			key, ok := r.keys.Get(uid)
			if !ok {
				return nil
			}
			if !r.codec.TryMatch(aid, uid, key) {
				return nil
			}

			mu.Lock()
			if !found.Load() {
				winner = uid
				found.Store(true)
			}
			mu.Unlock()
			cancel()
			return nil
		})
	}
	_ = g.Wait()

	if found.Load() {
		return winner, true
	}
	return model.UID{}, false
}
