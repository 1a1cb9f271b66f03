// Package sat is an in-process solver backend for ground normal logic
// programs. Classical models of the program's clauses are enumerated
// with gophersat and filtered down to stable models by the reduct
// (least-model) check; every stable model is a classical model, so the
// filter is exact. The backend also owns the symbol table: hosts intern
// atom names through it when marshaling programs.
package sat

import (
	"context"
	"fmt"
	"strings"
	"sync"

	gophersat "github.com/crillab/gophersat/solver"

	"github.com/cognicore/aspic/pkg/aspic/internalerr"
	"github.com/cognicore/aspic/pkg/aspic/program"
	"github.com/cognicore/aspic/pkg/aspic/solver"
)

// Solver grounds and solves ground normal programs. It is safe for
// concurrent use: grounding and solving share only the symbol table,
// which is guarded by a mutex and append-only.
type Solver struct {
	mu    sync.Mutex
	syms  map[string]program.Symbol
	names []string
}

// New creates an empty backend.
func New() *Solver {
	return &Solver{syms: make(map[string]program.Symbol)}
}

// Symbol interns an atom name and returns its handle. Symbols are
// 1-based; 0 is never a valid symbol.
func (s *Solver) Symbol(name string) program.Symbol {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sym, ok := s.syms[name]; ok {
		return sym
	}
	s.names = append(s.names, name)
	sym := program.Symbol(len(s.names))
	s.syms[name] = sym
	return sym
}

// Name returns the atom name behind a handle minted by this backend.
func (s *Solver) Name(sym program.Symbol) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sym == 0 || int(sym) > len(s.names) {
		return "", false
	}
	return s.names[sym-1], true
}

// rule is a ground normal rule head :- pos, not neg. head == 0 encodes
// an integrity constraint.
type rule struct {
	head program.Symbol
	pos  []program.Symbol
	neg  []program.Symbol
}

type groundProgram struct {
	// atoms lists every symbol the program mentions; position+1 is the
	// SAT variable of the atom.
	atoms []program.Symbol
	vars  map[program.Symbol]int
	rules []rule
}

// NumAtoms implements solver.GroundProgram.
func (g *groundProgram) NumAtoms() int { return len(g.atoms) }

// Ground parses a resolved ground program text into a solver handle.
// Statements are '.'-terminated rules `head :- lit, ..., lit` with `not`
// for default negation; a missing head is an integrity constraint and a
// missing body a fact. '%' starts a line comment.
func (s *Solver) Ground(ctx context.Context, text string) (solver.GroundProgram, error) {
	g := &groundProgram{vars: make(map[program.Symbol]int)}
	for _, stmt := range splitStatements(text) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := s.parseRule(stmt)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", internalerr.ErrGroundFailure, err)
		}
		if r.head != 0 {
			g.intern(r.head)
		}
		for _, a := range r.pos {
			g.intern(a)
		}
		for _, a := range r.neg {
			g.intern(a)
		}
		g.rules = append(g.rules, r)
	}
	return g, nil
}

func (g *groundProgram) intern(sym program.Symbol) int {
	if v, ok := g.vars[sym]; ok {
		return v
	}
	g.atoms = append(g.atoms, sym)
	v := len(g.atoms)
	g.vars[sym] = v
	return v
}

func splitStatements(text string) []string {
	var stmts []string
	for _, line := range strings.Split(text, "\n") {
		if i := strings.Index(line, "%"); i >= 0 {
			line = line[:i]
		}
		stmts = append(stmts, line)
	}
	joined := strings.Join(stmts, "\n")
	var out []string
	depth := 0
	start := 0
	for i := 0; i < len(joined); i++ {
		switch joined[i] {
		case '(':
			depth++
		case ')':
			depth--
		case '.':
			if depth == 0 {
				if stmt := strings.TrimSpace(joined[start:i]); stmt != "" {
					out = append(out, stmt)
				}
				start = i + 1
			}
		}
	}
	if tail := strings.TrimSpace(joined[start:]); tail != "" {
		out = append(out, tail)
	}
	return out
}

func (s *Solver) parseRule(stmt string) (rule, error) {
	var r rule
	head := stmt
	body := ""
	if i := strings.Index(stmt, ":-"); i >= 0 {
		head = strings.TrimSpace(stmt[:i])
		body = strings.TrimSpace(stmt[i+2:])
	}
	if head != "" {
		if strings.HasPrefix(head, "not ") {
			return r, fmt.Errorf("negated head in %q", stmt)
		}
		r.head = s.Symbol(head)
	} else if body == "" {
		return r, fmt.Errorf("empty statement %q", stmt)
	}
	if body == "" {
		return r, nil
	}
	for _, lit := range splitLiterals(body) {
		lit = strings.TrimSpace(lit)
		if lit == "" {
			return r, fmt.Errorf("empty literal in %q", stmt)
		}
		if rest, ok := strings.CutPrefix(lit, "not "); ok {
			r.neg = append(r.neg, s.Symbol(strings.TrimSpace(rest)))
		} else {
			r.pos = append(r.pos, s.Symbol(lit))
		}
	}
	return r, nil
}

func splitLiterals(body string) []string {
	var out []string
	depth := 0
	start := 0
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, body[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, body[start:])
	return out
}

// Solve enumerates the stable models of a handle produced by Ground.
// Under Mode.LStable, a program without stable models answers with its
// minimum-cardinality classical models instead (documented tie-break:
// all minimal-cardinality models are kept).
func (s *Solver) Solve(ctx context.Context, gp solver.GroundProgram, mode solver.Mode) (solver.Result, error) {
	g, ok := gp.(*groundProgram)
	if !ok {
		return solver.Result{}, fmt.Errorf("%w: foreign ground handle %T", internalerr.ErrSolverFailure, gp)
	}
	if len(g.atoms) == 0 {
		// No atoms at all: the empty model, unless a degenerate
		// constraint rules it out.
		for _, r := range g.rules {
			if r.head == 0 && len(r.pos) == 0 && len(r.neg) == 0 {
				return solver.Result{}, nil
			}
		}
		res := solver.Result{Count: 1}
		if mode.Enumerate {
			res.Models = []solver.Model{{}}
		}
		return res, nil
	}

	classical, err := s.enumerateClassical(ctx, g)
	if err != nil {
		return solver.Result{}, err
	}

	var kept [][]bool
	for _, m := range classical {
		if g.isStable(m) {
			kept = append(kept, m)
		}
	}
	if len(kept) == 0 && mode.LStable {
		kept = minCardinality(classical)
	}

	res := solver.Result{Count: uint64(len(kept))}
	if mode.Enumerate {
		res.Models = make([]solver.Model, len(kept))
		for i, m := range kept {
			model := make(solver.Model)
			for v, tv := range m {
				if tv {
					model[g.atoms[v]] = true
				}
			}
			res.Models[i] = model
		}
	}
	return res, nil
}

// enumerateClassical returns every classical model of the program's
// clauses, blocking each found model and re-solving.
func (s *Solver) enumerateClassical(ctx context.Context, g *groundProgram) ([][]bool, error) {
	clauses := make([][]int, 0, len(g.rules))
	for _, r := range g.rules {
		clause := make([]int, 0, 1+len(r.pos)+len(r.neg))
		if r.head != 0 {
			clause = append(clause, g.vars[r.head])
		}
		for _, a := range r.pos {
			clause = append(clause, -g.vars[a])
		}
		for _, a := range r.neg {
			clause = append(clause, g.vars[a])
		}
		if len(clause) == 0 {
			// Constraint with empty body: unsatisfiable program.
			return nil, nil
		}
		clauses = append(clauses, clause)
	}

	engine := gophersat.New(gophersat.ParseSlice(clauses))

	var models [][]bool
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if engine.Solve() != gophersat.Sat {
			return models, nil
		}
		m := engine.Model()
		if len(m) > len(g.atoms) {
			m = m[:len(g.atoms)]
		}
		models = append(models, append([]bool(nil), m...))

		blocking := make([]gophersat.Lit, len(m))
		for v, tv := range m {
			lit := gophersat.IntToLit(int32(v + 1))
			if tv {
				lit = lit.Negation()
			}
			blocking[v] = lit
		}
		engine.AppendClause(gophersat.NewClause(blocking))
	}
}

// isStable checks m against the Gelfond-Lifschitz reduct: m is stable
// iff it equals the least model of the reduct's positive rules.
func (g *groundProgram) isStable(m []bool) bool {
	derived := make([]bool, len(m))
	for changed := true; changed; {
		changed = false
		for _, r := range g.rules {
			if r.head == 0 {
				continue
			}
			h := g.vars[r.head] - 1
			if derived[h] {
				continue
			}
			if !negExcluded(g, r, m) {
				continue
			}
			sat := true
			for _, a := range r.pos {
				if !derived[g.vars[a]-1] {
					sat = false
					break
				}
			}
			if sat {
				derived[h] = true
				changed = true
			}
		}
	}
	for v := range m {
		if m[v] != derived[v] {
			return false
		}
	}
	return true
}

func negExcluded(g *groundProgram, r rule, m []bool) bool {
	for _, a := range r.neg {
		if m[g.vars[a]-1] {
			return false
		}
	}
	return true
}

// minCardinality keeps the models with the fewest true atoms.
func minCardinality(models [][]bool) [][]bool {
	best := -1
	var kept [][]bool
	for _, m := range models {
		n := 0
		for _, tv := range m {
			if tv {
				n++
			}
		}
		switch {
		case best < 0 || n < best:
			best = n
			kept = [][]bool{m}
		case n == best:
			kept = append(kept, m)
		}
	}
	return kept
}
