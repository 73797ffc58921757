package resolver

import (
	"context"

	"github.com/zidek-labs/bellrock/internal/model"
)

// BenchmarkOnly gates ExhaustiveSearch. The zero value is usable; its only
// purpose is to make the exhaustive path impossible to reach by accident —
// callers must construct one explicitly (resolver.BenchmarkOnly{}) to prove
// they mean it. Production resolution always goes through Resolve.
type BenchmarkOnly struct{}

// ExhaustiveSearch trial-decrypts aid against every key in the registry,
// ignoring the candidate-set heuristics entirely. This measures the cost
// the candidate set exists to avoid (spec §9) and has no place on the
// request path: a registry of any real size makes it prohibitively slow.
func (r *Resolver) ExhaustiveSearch(ctx context.Context, _ BenchmarkOnly, aid model.AID) (model.UID, bool) {
	all := r.keys.All()
	cands := make([]model.UID, 0, len(all))
	for uid := range all {
		cands = append(cands, uid)
	}
	return r.searchParallel(ctx, aid, cands)
}
