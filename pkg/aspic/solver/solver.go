// Package solver defines the contract between the inference core and an
// external stable-model solver. The core treats the solver as an opaque
// oracle: any backend (in-process library, subprocess, network service)
// that can ground a program text and count or enumerate its stable
// models satisfies the interface.
package solver

import (
	"context"

	"github.com/cognicore/aspic/pkg/aspic/program"
)

// Mode selects what a Solve call must produce.
type Mode struct {
	// Enumerate requests the satisfying models themselves, not only
	// their count. The observation-restricted path needs the models.
	Enumerate bool
	// LStable enables the least-stable fallback: when the resolved
	// program has no stable model, the backend answers with its minimal
	// classical models instead.
	LStable bool
}

// Model is the set of atoms true in one stable model. Atoms absent from
// the map are false.
type Model map[program.Symbol]bool

// Satisfies reports whether every literal holds in the model.
func (m Model) Satisfies(lits []program.Literal) bool {
	for _, l := range lits {
		if m[l.Sym] != l.Positive {
			return false
		}
	}
	return true
}

// Result carries a Solve answer. Models is nil unless Mode.Enumerate was
// set.
type Result struct {
	Count  uint64
	Models []Model
}

// GroundProgram is an opaque handle to a grounded program, produced by
// Ground and consumed by Solve of the same backend.
type GroundProgram interface {
	// NumAtoms reports how many distinct ground atoms the program
	// mentions.
	NumAtoms() int
}

// Interface is the two-operation solver contract. Ground failures and
// Solve failures both abort the inference call that issued them; the
// core never retries.
type Interface interface {
	Ground(ctx context.Context, text string) (GroundProgram, error)
	Solve(ctx context.Context, g GroundProgram, mode Mode) (Result, error)
}
