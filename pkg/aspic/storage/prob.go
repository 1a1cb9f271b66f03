package storage

import (
	"fmt"

	"github.com/cognicore/aspic/pkg/aspic/internalerr"
	"github.com/cognicore/aspic/pkg/aspic/program"
)

// ObservationProb accumulates, for one observation, the probability
// tables restricted to total choices whose models are consistent with
// it, plus the observation's own mass and consistent-model count. The
// per-parameter tables are the partial sums a gradient-based learner
// needs to recover dP(O)/dtheta without re-enumerating.
type ObservationProb struct {
	F  [][2]float64
	A  [][]float64
	NR [][2]float64
	NA [][]float64
	// N is the number of models consistent with the observation.
	N uint64
	// P is the observation's accumulated (unnormalized) probability.
	P float64
}

// ProbStorage is one worker's probability accumulator across all
// observations of a call. Index arrays (IF, IA, INR, INA) and the
// choice-offset arrays (ONR, ONA) depend only on the program and are
// shared across the worker group; ownsIndex marks the single owner.
type ProbStorage struct {
	Obs []ObservationProb

	IF  []int
	IA  []int
	INR []int
	INA []int
	// ONR[j] is the boolean choice dimension of learnable neural rule
	// INR[j]; ONA[j] is the group dimension of learnable neural AD
	// INA[j].
	ONR []int
	ONA []int

	ownsIndex bool
}

// NewProbStorage builds an owning storage for p with nobs observations.
func NewProbStorage(p *program.Program, nobs int) *ProbStorage {
	q := &ProbStorage{
		IF:        p.LearnableFacts(),
		IA:        p.LearnableADs(),
		INR:       p.LearnableNRs(),
		INA:       p.LearnableNAs(),
		ownsIndex: true,
	}
	boolNR := len(p.PF) + len(p.CF)
	q.ONR = make([]int, len(q.INR))
	for j, gi := range q.INR {
		q.ONR[j] = boolNR + gi
	}
	q.ONA = make([]int, len(q.INA))
	for j, gi := range q.INA {
		q.ONA[j] = len(p.AD) + gi
	}
	q.Obs = make([]ObservationProb, nobs)
	for o := range q.Obs {
		q.Obs[o] = newObservationProb(p, q)
	}
	return q
}

func newObservationProb(p *program.Program, q *ProbStorage) ObservationProb {
	op := ObservationProb{
		F:  make([][2]float64, len(q.IF)),
		NR: make([][2]float64, len(q.INR)),
		A:  make([][]float64, len(q.IA)),
		NA: make([][]float64, len(q.INA)),
	}
	for j, gi := range q.IA {
		op.A[j] = make([]float64, len(p.AD[gi].P))
	}
	for j, gi := range q.INA {
		op.NA[j] = make([]float64, len(p.NA[gi].Names))
	}
	return op
}

// NewProbStorageSeq allocates one storage per worker. The index and
// offset arrays are computed once, on the first storage, and borrowed
// by reference by the rest; the first storage is the designated owner.
func NewProbStorageSeq(p *program.Program, nobs, workers int) []ProbStorage {
	if workers < 1 {
		workers = 1
	}
	seq := make([]ProbStorage, workers)
	owner := NewProbStorage(p, nobs)
	seq[0] = *owner
	for w := 1; w < workers; w++ {
		seq[w] = ProbStorage{
			IF:  owner.IF,
			IA:  owner.IA,
			INR: owner.INR,
			INA: owner.INA,
			ONR: owner.ONR,
			ONA: owner.ONA,
		}
		seq[w].Obs = make([]ObservationProb, nobs)
		for o := range seq[w].Obs {
			seq[w].Obs[o] = newObservationProb(p, owner)
		}
	}
	return seq
}

// OwnsIndex reports whether this storage owns the shared index arrays.
func (q *ProbStorage) OwnsIndex() bool { return q.ownsIndex }

// Reset zeroes accumulated masses and counts, keeping allocations for
// reuse across repeated calls with the same program shape.
func (q *ProbStorage) Reset() {
	for o := range q.Obs {
		op := &q.Obs[o]
		op.N = 0
		op.P = 0
		for i := range op.F {
			op.F[i] = [2]float64{}
		}
		for i := range op.NR {
			op.NR[i] = [2]float64{}
		}
		for j := range op.A {
			for v := range op.A[j] {
				op.A[j][v] = 0
			}
		}
		for j := range op.NA {
			for v := range op.NA[j] {
				op.NA[j][v] = 0
			}
		}
	}
}

// Merge adds o's masses and counts into q element-wise.
func (q *ProbStorage) Merge(o *ProbStorage) error {
	if len(q.Obs) != len(o.Obs) {
		return fmt.Errorf("%w: %d vs %d observations", internalerr.ErrStorageShape, len(q.Obs), len(o.Obs))
	}
	for k := range q.Obs {
		dst, src := &q.Obs[k], &o.Obs[k]
		if len(dst.F) != len(src.F) || len(dst.A) != len(src.A) ||
			len(dst.NR) != len(src.NR) || len(dst.NA) != len(src.NA) {
			return fmt.Errorf("%w: observation %d tables differ", internalerr.ErrStorageShape, k)
		}
		dst.N += src.N
		dst.P += src.P
		for i := range dst.F {
			dst.F[i][0] += src.F[i][0]
			dst.F[i][1] += src.F[i][1]
		}
		for i := range dst.NR {
			dst.NR[i][0] += src.NR[i][0]
			dst.NR[i][1] += src.NR[i][1]
		}
		for j := range dst.A {
			for v := range dst.A[j] {
				dst.A[j][v] += src.A[j][v]
			}
		}
		for j := range dst.NA {
			for v := range dst.NA[j] {
				dst.NA[j][v] += src.NA[j][v]
			}
		}
	}
	return nil
}

// Release drops contents; shared index arrays are cleared only by
// their owner.
func (q *ProbStorage) Release() {
	q.Obs = nil
	if q.ownsIndex {
		q.IF, q.IA, q.INR, q.INA = nil, nil, nil, nil
		q.ONR, q.ONA = nil, nil
	}
}
