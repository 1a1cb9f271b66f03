// Package observe parses observation expressions: plain conjunctions of
// signed literals like "wins(a), not wins(b)". The engine only consumes
// the parsed literal form; the text syntax lives entirely here.
package observe

import (
	"fmt"
	"strings"

	"github.com/cognicore/aspic/pkg/aspic/internalerr"
	"github.com/cognicore/aspic/pkg/aspic/program"
	"github.com/cognicore/aspic/pkg/aspic/solver"
)

// Resolver interns an atom name into a symbol. The solver backend's
// symbol table satisfies this.
type Resolver func(name string) program.Symbol

// Observation is a conjunction of signed literals over ground atoms.
type Observation struct {
	Text string
	Lits []program.Literal
}

// Parse parses a single observation expression.
func Parse(expr string, resolve Resolver) (Observation, error) {
	obs := Observation{Text: expr}
	depth := 0
	start := 0
	var parts []string
	for i := 0; i < len(expr); i++ {
		switch expr[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, expr[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, expr[start:])

	for _, part := range parts {
		lit := strings.TrimSpace(part)
		if lit == "" {
			return Observation{}, fmt.Errorf("%w: empty literal in %q", internalerr.ErrObservationSyntax, expr)
		}
		positive := true
		if rest, ok := strings.CutPrefix(lit, "not "); ok {
			positive = false
			lit = strings.TrimSpace(rest)
		}
		obs.Lits = append(obs.Lits, program.Literal{
			Name:     lit,
			Sym:      resolve(lit),
			Positive: positive,
		})
	}
	return obs, nil
}

// ParseAll parses a batch of observation expressions.
func ParseAll(exprs []string, resolve Resolver) ([]Observation, error) {
	out := make([]Observation, 0, len(exprs))
	for _, expr := range exprs {
		obs, err := Parse(expr, resolve)
		if err != nil {
			return nil, err
		}
		out = append(out, obs)
	}
	return out, nil
}

// SatisfiedBy reports whether every literal of the observation holds in
// the model.
func (o Observation) SatisfiedBy(m solver.Model) bool {
	return m.Satisfies(o.Lits)
}
