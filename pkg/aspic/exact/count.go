package exact

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cognicore/aspic/pkg/aspic/choice"
	"github.com/cognicore/aspic/pkg/aspic/ground"
	"github.com/cognicore/aspic/pkg/aspic/program"
	"github.com/cognicore/aspic/pkg/aspic/solver"
	"github.com/cognicore/aspic/pkg/aspic/storage"
)

// CountModels counts, for every learnable probabilistic fact and
// annotated disjunction, how many stable models fall into each of its
// value buckets across the whole choice space. For every learnable
// fact, F[0]+F[1] equals the total model count: each model lands in
// exactly one truth bucket per fact. Zero-model choices contribute
// nothing but are still enumerated.
func CountModels(ctx context.Context, p *program.Program, opts Options) (*storage.CountStorage, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	space, err := choice.NewSpace(p)
	if err != nil {
		return nil, err
	}

	owner := storage.NewCountStorage(p)
	ranges := choice.Partition(space.Count(), opts.Workers)
	parts := make([]*storage.CountStorage, len(ranges))
	for w := range parts {
		parts[w] = owner.Borrow()
	}

	var hash string
	if opts.CountCache != nil {
		hash = p.Hash()
	}
	mode := solver.Mode{LStable: opts.LStable}

	g, gctx := errgroup.WithContext(ctx)
	for wi, r := range ranges {
		wi, r := wi, r
		g.Go(func() error {
			gr, err := ground.New(p, space, opts.Solver, opts.GroundCacheSize)
			if err != nil {
				return err
			}
			part := parts[wi]
			it := space.Range(r[0], r[1])
			for t, idx, ok := it.Next(); ok; t, idx, ok = it.Next() {
				m, hit, err := cachedCount(gctx, opts, hash, idx)
				if err != nil {
					return err
				}
				if !hit {
					gp, err := gr.PerTotalChoice(gctx, t)
					if err != nil {
						return err
					}
					res, err := opts.Solver.Solve(gctx, gp, mode)
					if err != nil {
						return err
					}
					m = res.Count
					if opts.CountCache != nil {
						if err := opts.CountCache.PutCount(gctx, hash, idx, m); err != nil {
							return err
						}
					}
				}
				if m == 0 {
					continue
				}
				for j, gi := range part.IF {
					v := 0
					if t.Fact(gi) {
						v = 1
					}
					part.F[j][v] += m
				}
				for j, gi := range part.IA {
					part.A[j][t.Value(gi)] += m
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge in worker order so repeated runs are bit-identical.
	for _, part := range parts {
		if err := owner.Merge(part); err != nil {
			return nil, err
		}
	}
	opts.Logger.Debug("model counting done",
		zap.Uint64("total_choices", space.Count()),
		zap.Int("learnable_facts", len(owner.IF)),
		zap.Int("learnable_ads", len(owner.IA)))
	return owner, nil
}

func cachedCount(ctx context.Context, opts Options, hash string, idx uint64) (uint64, bool, error) {
	if opts.CountCache == nil {
		return 0, false, nil
	}
	return opts.CountCache.GetCount(ctx, hash, idx)
}
