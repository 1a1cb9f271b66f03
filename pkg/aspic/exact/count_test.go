package exact

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/aspic/pkg/aspic/program"
	"github.com/cognicore/aspic/pkg/aspic/solver"
	"github.com/cognicore/aspic/pkg/aspic/solver/sat"
	"github.com/cognicore/aspic/pkg/aspic/store/memstore"
)

// countingSolver wraps a backend and counts Solve calls; used to show
// that the count cache short-circuits solving.
type countingSolver struct {
	*sat.Solver
	solves int
}

func (c *countingSolver) Solve(ctx context.Context, g solver.GroundProgram, mode solver.Mode) (solver.Result, error) {
	c.solves++
	return c.Solver.Solve(ctx, g, mode)
}

func TestCountModelsFactBuckets(t *testing.T) {
	s := sat.New()
	p := &program.Program{
		Rules: "c :- a, not b.",
		PF: []program.ProbFact{
			pfact(s, 0.3, "a", true),
			pfact(s, 0.5, "b", true),
		},
	}
	cs, err := CountModels(context.Background(), p, opts(s, MaxEnt))
	require.NoError(t, err)

	// Every choice has exactly one stable model, so each fact splits the
	// four models evenly between its buckets.
	require.Len(t, cs.F, 2)
	assert.Equal(t, [2]uint64{2, 2}, cs.F[0])
	assert.Equal(t, [2]uint64{2, 2}, cs.F[1])
}

func TestCountModelsConservation(t *testing.T) {
	s := sat.New()
	// The even loop gives two stable models whenever a holds.
	p := &program.Program{
		Rules: "x :- a, not y.\ny :- a, not x.",
		PF: []program.ProbFact{
			pfact(s, 0.3, "a", true),
			pfact(s, 0.5, "b", true),
		},
		Queries: []program.Query{{Q: []program.Literal{lit(s, "a", true)}}},
	}

	ans, err := Enum(context.Background(), p, opts(s, MaxEnt))
	require.NoError(t, err)
	cs, err := CountModels(context.Background(), p, opts(s, MaxEnt))
	require.NoError(t, err)

	for j := range cs.F {
		assert.Equal(t, ans.ModelCount, cs.F[j][0]+cs.F[j][1],
			"fact %d buckets must partition the model count", j)
	}
}

func TestCountModelsADBuckets(t *testing.T) {
	s := sat.New()
	p := &program.Program{
		AD: []program.AnnotatedDisjunction{{
			P:         []float64{0.4, 0.6},
			Names:     []string{"b0", "b1"},
			Syms:      []program.Symbol{s.Symbol("b0"), s.Symbol("b1")},
			Learnable: true,
		}},
	}
	cs, err := CountModels(context.Background(), p, opts(s, MaxEnt))
	require.NoError(t, err)
	require.Len(t, cs.A, 1)
	assert.Equal(t, []uint64{1, 1}, cs.A[0])
	assert.Empty(t, cs.F)
}

func TestCountModelsWorkerInvariance(t *testing.T) {
	s := sat.New()
	p := &program.Program{
		Rules: "c :- a, not b.",
		PF: []program.ProbFact{
			pfact(s, 0.3, "a", true),
			pfact(s, 0.5, "b", true),
			pfact(s, 0.5, "d", true),
		},
	}
	base, err := CountModels(context.Background(), p, opts(s, MaxEnt))
	require.NoError(t, err)
	for _, workers := range []int{2, 3, 5} {
		o := opts(s, MaxEnt)
		o.Workers = workers
		cs, err := CountModels(context.Background(), p, o)
		require.NoError(t, err)
		assert.Equal(t, base.F, cs.F, "workers=%d", workers)
		assert.Equal(t, base.A, cs.A, "workers=%d", workers)
	}
}

func TestCountModelsCache(t *testing.T) {
	backend := &countingSolver{Solver: sat.New()}
	p := &program.Program{
		PF: []program.ProbFact{
			pfact(backend.Solver, 0.3, "a", true),
			pfact(backend.Solver, 0.5, "b", true),
		},
	}
	cache := memstore.New()
	o := opts(backend.Solver, MaxEnt)
	o.Solver = backend
	o.CountCache = cache

	first, err := CountModels(context.Background(), p, o)
	require.NoError(t, err)
	solvesAfterFirst := backend.solves
	assert.Equal(t, 4, solvesAfterFirst)

	second, err := CountModels(context.Background(), p, o)
	require.NoError(t, err)
	assert.Equal(t, solvesAfterFirst, backend.solves, "second run must be served from the cache")
	assert.Equal(t, first.F, second.F)
}

func TestCountModelsCacheKeyedByProgram(t *testing.T) {
	backend := &countingSolver{Solver: sat.New()}
	cache := memstore.New()
	o := opts(backend.Solver, MaxEnt)
	o.Solver = backend
	o.CountCache = cache

	p := &program.Program{PF: []program.ProbFact{pfact(backend.Solver, 0.3, "a", true)}}
	_, err := CountModels(context.Background(), p, o)
	require.NoError(t, err)
	before := backend.solves

	// A different program must not reuse the cached counts.
	q := &program.Program{
		Rules: ":- a.",
		PF:    []program.ProbFact{pfact(backend.Solver, 0.3, "a", true)},
	}
	cs, err := CountModels(context.Background(), q, o)
	require.NoError(t, err)
	assert.Greater(t, backend.solves, before)
	assert.Equal(t, [2]uint64{1, 0}, cs.F[0])
}
