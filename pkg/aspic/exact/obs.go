package exact

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/cognicore/aspic/pkg/aspic/choice"
	"github.com/cognicore/aspic/pkg/aspic/ground"
	"github.com/cognicore/aspic/pkg/aspic/internalerr"
	"github.com/cognicore/aspic/pkg/aspic/observe"
	"github.com/cognicore/aspic/pkg/aspic/program"
	"github.com/cognicore/aspic/pkg/aspic/solver"
	"github.com/cognicore/aspic/pkg/aspic/storage"
)

// ProbObs accumulates, for every observation, its joint probability
// mass and consistent-model count over the full choice space. With
// derive set, it also fills the per-parameter probability tables that a
// learner needs for gradients. Masses are unnormalized: under max
// entropy they are divided by the model counts from CountModels.
func ProbObs(ctx context.Context, p *program.Program, obs []observe.Observation, derive bool, opts Options) (*storage.ProbStorage, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	seq := storage.NewProbStorageSeq(p, len(obs), opts.Workers)
	return probObsOn(ctx, p, obs, derive, opts, seq)
}

// ProbObsReuse is ProbObs with caller-supplied worker storages, reused
// across repeated calls with the same program shape (one training
// iteration per call). The merged result lands in seq[0], which is also
// the returned storage; the caller must not run two overlapping calls
// over the same seq.
func ProbObsReuse(ctx context.Context, p *program.Program, obs []observe.Observation, derive bool, opts Options, seq []storage.ProbStorage) (*storage.ProbStorage, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	if len(seq) == 0 {
		return nil, fmt.Errorf("%w: empty storage sequence", internalerr.ErrStorageShape)
	}
	opts.Workers = len(seq)
	for w := range seq {
		if len(seq[w].Obs) != len(obs) {
			return nil, fmt.Errorf("%w: storage %d sized for %d observations, got %d",
				internalerr.ErrStorageShape, w, len(seq[w].Obs), len(obs))
		}
		seq[w].Reset()
	}
	return probObsOn(ctx, p, obs, derive, opts, seq)
}

func probObsOn(ctx context.Context, p *program.Program, obs []observe.Observation, derive bool, opts Options, seq []storage.ProbStorage) (*storage.ProbStorage, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(p.CF) > 0 {
		return nil, fmt.Errorf("%w: credal facts have no point observation mass", internalerr.ErrMalformedProgram)
	}
	space, err := choice.NewSpace(p)
	if err != nil {
		return nil, err
	}
	weights, err := newWeigher(p, opts.Neural)
	if err != nil {
		return nil, err
	}

	ranges := choice.Partition(space.Count(), opts.Workers)
	mode := solver.Mode{Enumerate: true, LStable: opts.LStable}

	g, gctx := errgroup.WithContext(ctx)
	for wi, r := range ranges {
		wi, r := wi, r
		g.Go(func() error {
			gr, err := ground.New(p, space, opts.Solver, opts.GroundCacheSize)
			if err != nil {
				return err
			}
			st := &seq[wi]
			it := space.Range(r[0], r[1])
			for t, _, ok := it.Next(); ok; t, _, ok = it.Next() {
				gp, err := gr.PerTotalChoice(gctx, t)
				if err != nil {
					return err
				}
				res, err := opts.Solver.Solve(gctx, gp, mode)
				if err != nil {
					return err
				}
				if res.Count == 0 {
					continue
				}
				wLo, _ := weights.weight(t)
				for k := range obs {
					cnt := 0
					for _, model := range res.Models {
						if obs[k].SatisfiedBy(model) {
							cnt++
						}
					}
					if cnt == 0 {
						continue
					}
					mass := wLo * float64(cnt)
					op := &st.Obs[k]
					op.N += uint64(cnt)
					op.P += mass
					if derive {
						accumulateDerive(st, op, t, mass)
					}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for w := 1; w < len(seq); w++ {
		if err := seq[0].Merge(&seq[w]); err != nil {
			return nil, err
		}
	}
	return &seq[0], nil
}

// accumulateDerive adds one consistent choice's mass into the
// per-parameter tables, bucketed by the value each learnable parameter
// took in the choice.
func accumulateDerive(st *storage.ProbStorage, op *storage.ObservationProb, t *choice.Total, mass float64) {
	for j, gi := range st.IF {
		v := 0
		if t.Fact(gi) {
			v = 1
		}
		op.F[j][v] += mass
	}
	for j, gi := range st.IA {
		op.A[j][t.Value(gi)] += mass
	}
	for j := range st.INR {
		v := 0
		if t.Fact(st.ONR[j]) {
			v = 1
		}
		op.NR[j][v] += mass
	}
	for j := range st.INA {
		op.NA[j][t.Value(st.ONA[j])] += mass
	}
}
