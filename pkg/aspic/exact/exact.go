// Package exact implements exact inference over probabilistic logic
// programs: every total choice is enumerated, each resolved program is
// grounded and handed to the solver, and the resulting stable-model
// counts are weighted and accumulated into query probabilities,
// per-parameter model counts and observation masses. The choice space
// is split into contiguous index ranges across a fixed pool of workers;
// partial results merge by element-wise sum, so the final answer is
// independent of worker count.
package exact

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cognicore/aspic/pkg/aspic/choice"
	"github.com/cognicore/aspic/pkg/aspic/ground"
	"github.com/cognicore/aspic/pkg/aspic/internalerr"
	"github.com/cognicore/aspic/pkg/aspic/program"
	"github.com/cognicore/aspic/pkg/aspic/solver"
	"github.com/cognicore/aspic/pkg/aspic/store"
)

// Interval is a probability interval. Under point semantics Lo == Hi.
type Interval struct {
	Lo float64
	Hi float64
}

// Options configures one inference call.
type Options struct {
	// Solver answers the ground/solve contract. Required.
	Solver solver.Interface
	// Semantics selects the probability normalization.
	Semantics Semantics
	// LStable restricts inconsistent total choices to their
	// least-stable models instead of dropping them.
	LStable bool
	// Workers is the size of the worker pool; each worker enumerates
	// one contiguous sub-range of the choice space. Defaults to 1.
	Workers int
	// GroundCacheSize bounds the per-worker grounding reuse cache.
	// Zero disables reuse.
	GroundCacheSize int
	// Neural supplies call-time probabilities for neural components.
	Neural *NeuralProbs
	// CountCache, when set, memoizes per-choice model counts across
	// calls with the same program (CountModels only).
	CountCache store.Store
	// Logger defaults to a nop logger.
	Logger *zap.Logger
}

func (o Options) withDefaults() (Options, error) {
	if o.Solver == nil {
		return o, fmt.Errorf("%w: a solver is required", internalerr.ErrInvalidConfig)
	}
	if o.Workers < 1 {
		o.Workers = 1
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o, nil
}

// Answer is the result of Enum: one probability (interval) per query,
// plus the raw aggregates a caller needs to re-normalize Stable
// results (divide by TotalMass) or audit the run.
type Answer struct {
	Probs []Interval
	// TotalMass is the weighted model count over every total choice.
	TotalMass float64
	// ModelCount is the unweighted stable-model count over every total
	// choice.
	ModelCount uint64
}

// queryAcc accumulates, for one query, the four credal conditions under
// the low and high weightings plus the max-entropy masses.
type queryAcc struct {
	aLo, bLo, cLo, dLo float64
	aHi, bHi, cHi, dHi float64
	qe, e              float64
}

type enumAcc struct {
	q      []queryAcc
	mass   float64
	models uint64
}

func (a *enumAcc) merge(o *enumAcc) {
	a.mass += o.mass
	a.models += o.models
	for i := range a.q {
		d, s := &a.q[i], &o.q[i]
		d.aLo += s.aLo
		d.bLo += s.bLo
		d.cLo += s.cLo
		d.dLo += s.dLo
		d.aHi += s.aHi
		d.bHi += s.bHi
		d.cHi += s.cHi
		d.dHi += s.dHi
		d.qe += s.qe
		d.e += s.e
	}
}

// Enum computes the probability of every query in p by exhaustive total
// choice enumeration. A grounding or solving failure on any choice
// aborts the whole call; no partial answer is returned.
func Enum(ctx context.Context, p *program.Program, opts Options) (*Answer, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(p.CF) > 0 && opts.Semantics != Credal {
		return nil, fmt.Errorf("%w: credal facts require credal semantics", internalerr.ErrMalformedProgram)
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
	accs := make([]enumAcc, len(ranges))
	mode := solver.Mode{Enumerate: true, LStable: opts.LStable}

	g, gctx := errgroup.WithContext(ctx)
	for wi, r := range ranges {
		wi, r := wi, r
		g.Go(func() error {
			gr, err := ground.New(p, space, opts.Solver, opts.GroundCacheSize)
			if err != nil {
				return err
			}
			acc := &accs[wi]
			acc.q = make([]queryAcc, len(p.Queries))
			opts.Logger.Debug("worker range start",
				zap.Int("worker", wi), zap.Uint64("lo", r[0]), zap.Uint64("hi", r[1]))

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
				wLo, wHi := weights.weight(t)
				acc.mass += wLo * float64(res.Count)
				acc.models += res.Count
				if res.Count == 0 {
					// Inconsistent choice: contributes nothing, but
					// was still enumerated.
					continue
				}
				scoreChoice(p, res, wLo, wHi, acc.q)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := &accs[0]
	for i := 1; i < len(accs); i++ {
		total.merge(&accs[i])
	}
	opts.Logger.Info("exact enumeration done",
		zap.Uint64("total_choices", space.Count()),
		zap.Int("workers", len(ranges)),
		zap.Uint64("models", total.models),
		zap.String("semantics", opts.Semantics.String()))

	return assemble(p, opts, total), nil
}

// scoreChoice folds one total choice's models into the query
// accumulators. Condition numbering follows Cozman and Maua: (1) every
// model satisfies Q and E, (2) some model does, (3) every model
// satisfies E but fails Q, (4) some model satisfies E and fails Q.
func scoreChoice(p *program.Program, res solver.Result, wLo, wHi float64, accs []queryAcc) {
	m := int(res.Count)
	for qi := range p.Queries {
		query := &p.Queries[qi]
		countE, countQE, countPart := 0, 0, 0
		for _, model := range res.Models {
			if !model.Satisfies(query.E) {
				continue
			}
			countE++
			if model.Satisfies(query.Q) {
				countQE++
			} else {
				countPart++
			}
		}
		cond1, cond3 := false, false
		if countE == m || len(query.E) == 0 {
			cond1 = countQE == m
			cond3 = countPart == m
		}
		qa := &accs[qi]
		if cond1 {
			qa.aLo += wLo
			qa.aHi += wHi
		}
		if countQE > 0 {
			qa.bLo += wLo
			qa.bHi += wHi
		}
		if cond3 {
			qa.cLo += wLo
			qa.cHi += wHi
		}
		if countPart > 0 {
			qa.dLo += wLo
			qa.dHi += wHi
		}
		qa.qe += wLo * float64(countQE)
		qa.e += wLo * float64(countE)
	}
}

func assemble(p *program.Program, opts Options, total *enumAcc) *Answer {
	ans := &Answer{
		Probs:      make([]Interval, len(p.Queries)),
		TotalMass:  total.mass,
		ModelCount: total.models,
	}
	for qi := range p.Queries {
		qa := &total.q[qi]
		hasE := len(p.Queries[qi].E) > 0
		switch opts.Semantics {
		case Credal:
			low := credalInterval(qa.aLo, qa.bLo, qa.cLo, qa.dLo, hasE)
			high := credalInterval(qa.aHi, qa.bHi, qa.cHi, qa.dHi, hasE)
			ans.Probs[qi] = Interval{Lo: low.Lo, Hi: high.Hi}
			if math.IsInf(low.Lo, -1) || math.IsInf(high.Hi, 1) {
				opts.Logger.Warn("evidence has zero probability", zap.Int("query", qi))
			}
		case MaxEnt:
			if qa.e == 0 {
				opts.Logger.Warn("evidence has zero probability", zap.Int("query", qi))
				ans.Probs[qi] = Interval{Lo: math.Inf(-1), Hi: math.Inf(1)}
				break
			}
			pr := qa.qe / qa.e
			ans.Probs[qi] = Interval{Lo: pr, Hi: pr}
		case Stable:
			ans.Probs[qi] = Interval{Lo: qa.qe, Hi: qa.qe}
		}
	}
	return ans
}

// credalInterval turns the four condition masses of one weighting into
// the P(Q|E) interval, with the degenerate cases handled the way the
// enumeration semantics dictates.
func credalInterval(a, b, c, d float64, hasE bool) Interval {
	if !hasE {
		return Interval{Lo: a, Hi: b}
	}
	switch {
	case b+d == 0:
		return Interval{Lo: math.Inf(-1), Hi: math.Inf(1)}
	case b+c == 0 && d > 0:
		return Interval{}
	case a+d == 0 && b > 0:
		return Interval{Lo: 1, Hi: 1}
	}
	return Interval{Lo: a / (a + d), Hi: b / (b + c)}
}
