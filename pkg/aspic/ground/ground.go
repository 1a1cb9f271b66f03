// Package ground resolves a program plus one total choice into a
// concrete ground program handle. Resolution fixes every chosen atom as
// a fact and omits the rest; the backend does the actual grounding.
// Handles are cached per choice signature so that repeated choices (and
// the reusable-storage training loop) skip re-grounding. The cache is an
// optimization only: grounding from scratch every time is equally
// correct.
package ground

import (
	"context"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cognicore/aspic/pkg/aspic/choice"
	"github.com/cognicore/aspic/pkg/aspic/program"
	"github.com/cognicore/aspic/pkg/aspic/solver"
)

// Grounder builds ground program handles for total choices of one
// program. A Grounder is not safe for concurrent use; workers each own
// one.
type Grounder struct {
	p       *program.Program
	space   choice.Space
	backend solver.Interface
	cache   *lru.Cache[string, solver.GroundProgram]

	offCF int // first credal bool dimension
	offNR int // first neural-rule bool dimension
	offNA int // first neural-AD group dimension
}

// New creates a grounder. cacheSize <= 0 disables handle reuse.
func New(p *program.Program, space choice.Space, backend solver.Interface, cacheSize int) (*Grounder, error) {
	g := &Grounder{
		p:       p,
		space:   space,
		backend: backend,
		offCF:   len(p.PF),
		offNR:   len(p.PF) + len(p.CF),
		offNA:   len(p.AD),
	}
	if cacheSize > 0 {
		cache, err := lru.New[string, solver.GroundProgram](cacheSize)
		if err != nil {
			return nil, err
		}
		g.cache = cache
	}
	return g, nil
}

// Resolve renders the program text for one total choice: the base rules
// followed by one fact per chosen atom.
func (g *Grounder) Resolve(t *choice.Total) string {
	var b strings.Builder
	b.WriteString(g.p.Rules)
	if !strings.HasSuffix(g.p.Rules, "\n") && g.p.Rules != "" {
		b.WriteByte('\n')
	}
	for i := range g.p.PF {
		if t.Fact(i) {
			writeFact(&b, g.p.PF[i].Name)
		}
	}
	for i := range g.p.CF {
		if t.Fact(g.offCF + i) {
			writeFact(&b, g.p.CF[i].Name)
		}
	}
	for i := range g.p.NR {
		if t.Fact(g.offNR + i) {
			writeFact(&b, g.p.NR[i].Name)
		}
	}
	for i := range g.p.AD {
		writeFact(&b, g.p.AD[i].Names[t.Value(i)])
	}
	for i := range g.p.NA {
		writeFact(&b, g.p.NA[i].Names[t.Value(g.offNA+i)])
	}
	return b.String()
}

func writeFact(b *strings.Builder, name string) {
	b.WriteString(name)
	b.WriteString(".\n")
}

// PerTotalChoice returns the ground handle for one total choice,
// reusing a cached handle when the same choice signature was grounded
// before. A grounding failure is final for the whole inference call.
func (g *Grounder) PerTotalChoice(ctx context.Context, t *choice.Total) (solver.GroundProgram, error) {
	var key string
	if g.cache != nil {
		key = t.Key()
		if gp, ok := g.cache.Get(key); ok {
			return gp, nil
		}
	}
	gp, err := g.backend.Ground(ctx, g.Resolve(t))
	if err != nil {
		return nil, err
	}
	if g.cache != nil {
		g.cache.Add(key, gp)
	}
	return gp, nil
}
