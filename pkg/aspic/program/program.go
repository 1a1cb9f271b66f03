package program

import (
	"fmt"
	"math"

	"github.com/cognicore/aspic/pkg/aspic/internalerr"
)

// Symbol is an opaque solver-assigned identifier for a ground atom.
// The core never interprets it beyond equality; the solver backend that
// minted it is responsible for mapping it back to a name.
type Symbol uint64

// ProbFact is an independent probabilistic fact: its atom holds with
// probability P in any total choice that selects it.
type ProbFact struct {
	P         float64
	Name      string
	Sym       Symbol
	Learnable bool
}

// CredalFact is a fact whose probability is only known to lie in [L, U].
// Credal facts contribute a boolean choice dimension like probabilistic
// facts, but their mass is evaluated twice (at L and at U) to produce
// probability bounds.
type CredalFact struct {
	L    float64
	U    float64
	Name string
	Sym  Symbol
}

// AnnotatedDisjunction is a joint distribution over k mutually exclusive
// head atoms. Exactly one head is selected per total choice.
type AnnotatedDisjunction struct {
	P         []float64
	Names     []string
	Syms      []Symbol
	Learnable bool
}

// NeuralRule is a probabilistic fact whose probability is supplied
// externally at inference time, indexed by its position in the NR array.
type NeuralRule struct {
	Name      string
	Sym       Symbol
	Learnable bool
}

// NeuralAD is an annotated disjunction whose distribution is supplied
// externally at inference time, indexed by its position in the NA array.
type NeuralAD struct {
	Names     []string
	Syms      []Symbol
	Learnable bool
}

// Literal is a signed atom reference inside a query or observation.
type Literal struct {
	Name     string
	Sym      Symbol
	Positive bool
}

// Query asks for the probability of the literals in Q conditioned on the
// evidence literals in E. E may be empty.
type Query struct {
	Q []Literal
	E []Literal
}

// Program is the immutable description of one inference problem: the raw
// rule text plus every probabilistic choice point and query. It must not
// be mutated while an inference call is running.
type Program struct {
	Rules   string
	PF      []ProbFact
	CF      []CredalFact
	AD      []AnnotatedDisjunction
	NR      []NeuralRule
	NA      []NeuralAD
	Queries []Query
}

const probEps = 1e-9

// Validate rejects programs that violate shape invariants before any
// enumeration starts. Errors wrap internalerr.ErrMalformedProgram.
func (p *Program) Validate() error {
	for i, pf := range p.PF {
		if pf.P < 0 || pf.P > 1 || math.IsNaN(pf.P) {
			return fmt.Errorf("%w: probabilistic fact %d (%s): probability %v outside [0,1]",
				internalerr.ErrMalformedProgram, i, pf.Name, pf.P)
		}
	}
	for i, cf := range p.CF {
		if cf.L < 0 || cf.U > 1 || cf.L > cf.U || math.IsNaN(cf.L) || math.IsNaN(cf.U) {
			return fmt.Errorf("%w: credal fact %d (%s): bounds [%v, %v] invalid",
				internalerr.ErrMalformedProgram, i, cf.Name, cf.L, cf.U)
		}
	}
	for i, ad := range p.AD {
		if err := validateAD(ad.P, ad.Names, ad.Syms, true); err != nil {
			return fmt.Errorf("%w: annotated disjunction %d: %v", internalerr.ErrMalformedProgram, i, err)
		}
	}
	for i, na := range p.NA {
		if len(na.Names) < 2 || len(na.Names) != len(na.Syms) {
			return fmt.Errorf("%w: neural AD %d: %d names for %d symbols",
				internalerr.ErrMalformedProgram, i, len(na.Names), len(na.Syms))
		}
	}
	for i, q := range p.Queries {
		if len(q.Q) == 0 {
			return fmt.Errorf("%w: query %d has no queried literals", internalerr.ErrMalformedProgram, i)
		}
	}
	return nil
}

func validateAD(probs []float64, names []string, syms []Symbol, fixed bool) error {
	if len(names) < 2 {
		return fmt.Errorf("needs at least 2 heads, got %d", len(names))
	}
	if len(names) != len(syms) {
		return fmt.Errorf("%d names for %d symbols", len(names), len(syms))
	}
	if !fixed {
		return nil
	}
	if len(probs) != len(names) {
		return fmt.Errorf("%d probabilities for %d heads", len(probs), len(names))
	}
	sum := 0.0
	for _, pr := range probs {
		if pr < 0 || pr > 1 || math.IsNaN(pr) {
			return fmt.Errorf("probability %v outside [0,1]", pr)
		}
		sum += pr
	}
	if math.Abs(sum-1) > probEps {
		return fmt.Errorf("probabilities sum to %v, want 1", sum)
	}
	return nil
}

// LearnableFacts returns the global indices of learnable probabilistic
// facts. The learnable subset is sparse, so storages address parameters
// through these lists rather than by position.
func (p *Program) LearnableFacts() []int {
	return learnableIdx(len(p.PF), func(i int) bool { return p.PF[i].Learnable })
}

// LearnableADs returns the global indices of learnable annotated disjunctions.
func (p *Program) LearnableADs() []int {
	return learnableIdx(len(p.AD), func(i int) bool { return p.AD[i].Learnable })
}

// LearnableNRs returns the global indices of learnable neural rules.
func (p *Program) LearnableNRs() []int {
	return learnableIdx(len(p.NR), func(i int) bool { return p.NR[i].Learnable })
}

// LearnableNAs returns the global indices of learnable neural ADs.
func (p *Program) LearnableNAs() []int {
	return learnableIdx(len(p.NA), func(i int) bool { return p.NA[i].Learnable })
}

func learnableIdx(n int, pred func(int) bool) []int {
	var out []int
	for i := 0; i < n; i++ {
		if pred(i) {
			out = append(out, i)
		}
	}
	return out
}
