package exact

import (
	"fmt"

	"github.com/cognicore/aspic/pkg/aspic/choice"
	"github.com/cognicore/aspic/pkg/aspic/internalerr"
	"github.com/cognicore/aspic/pkg/aspic/program"
)

// NeuralProbs carries the call-time probabilities of neural components:
// one truth probability per neural rule and one distribution per neural
// AD, indexed by their positions in the program arrays.
type NeuralProbs struct {
	NR []float64
	NA [][]float64
}

// weigher evaluates the probability mass of a total choice as the
// product of the chosen-value probabilities. Credal facts make the low
// and high evaluations differ: per dimension, low takes the smaller end
// of the interval consistent with the chosen truth value and high the
// larger, so wLo <= wHi for every choice. Without credal facts both
// coincide.
type weigher struct {
	pLow  []float64
	pHigh []float64
	group [][]float64
}

func newWeigher(p *program.Program, neural *NeuralProbs) (*weigher, error) {
	nb := len(p.PF) + len(p.CF) + len(p.NR)
	w := &weigher{
		pLow:  make([]float64, nb),
		pHigh: make([]float64, nb),
	}
	d := 0
	for _, pf := range p.PF {
		w.pLow[d], w.pHigh[d] = pf.P, pf.P
		d++
	}
	for _, cf := range p.CF {
		w.pLow[d], w.pHigh[d] = cf.L, cf.U
		d++
	}
	if len(p.NR) > 0 || len(p.NA) > 0 {
		if neural == nil {
			return nil, fmt.Errorf("%w: program has neural components but no probabilities were supplied",
				internalerr.ErrMalformedProgram)
		}
		if len(neural.NR) != len(p.NR) || len(neural.NA) != len(p.NA) {
			return nil, fmt.Errorf("%w: neural table shape %dx%d, program wants %dx%d",
				internalerr.ErrMalformedProgram, len(neural.NR), len(neural.NA), len(p.NR), len(p.NA))
		}
	}
	for i := range p.NR {
		w.pLow[d], w.pHigh[d] = neural.NR[i], neural.NR[i]
		d++
	}
	for _, ad := range p.AD {
		w.group = append(w.group, ad.P)
	}
	for i, na := range p.NA {
		dist := neural.NA[i]
		if len(dist) != len(na.Names) {
			return nil, fmt.Errorf("%w: neural AD %d has %d probabilities for %d heads",
				internalerr.ErrMalformedProgram, i, len(dist), len(na.Names))
		}
		w.group = append(w.group, dist)
	}
	return w, nil
}

// weight returns the low and high probability mass of t. The low mass is
// the minimum over the credal intervals, so a false credal fact
// contributes the complement of its upper bound.
func (w *weigher) weight(t *choice.Total) (lo, hi float64) {
	lo, hi = 1, 1
	for d := range w.pLow {
		if t.Fact(d) {
			lo *= w.pLow[d]
			hi *= w.pHigh[d]
		} else {
			lo *= 1 - w.pHigh[d]
			hi *= 1 - w.pLow[d]
		}
	}
	for g := range w.group {
		pr := w.group[g][t.Value(g)]
		lo *= pr
		hi *= pr
	}
	return lo, hi
}
