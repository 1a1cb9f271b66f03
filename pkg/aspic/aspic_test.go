package aspic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/aspic/internal/progfile"
	"github.com/cognicore/aspic/pkg/aspic/config"
	"github.com/cognicore/aspic/pkg/aspic/exact"
	"github.com/cognicore/aspic/pkg/aspic/internalerr"
	"github.com/cognicore/aspic/pkg/aspic/observe"
	"github.com/cognicore/aspic/pkg/aspic/program"
	"github.com/cognicore/aspic/pkg/aspic/solver/sat"
	"github.com/cognicore/aspic/pkg/aspic/storage"
	"github.com/cognicore/aspic/pkg/aspic/store/memstore"
)

const coinSource = `
0.3::heads.
win :- heads.
#query(win).
`

func newTestEngine(t *testing.T, cfg config.Config) (*Engine, *sat.Solver, *memstore.Store) {
	t.Helper()
	backend := sat.New()
	st := memstore.New()
	engine, err := New(Options{Solver: backend, Store: st, Config: cfg})
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })
	return engine, backend, st
}

func TestExactRecordsRun(t *testing.T) {
	engine, backend, st := newTestEngine(t, config.Config{})
	p, err := progfile.Parse(coinSource, backend.Symbol)
	require.NoError(t, err)

	ans, err := engine.Exact(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, ans.Probs, 1)
	assert.InDelta(t, 0.3, ans.Probs[0].Lo, 1e-12)
	assert.InDelta(t, 0.3, ans.Probs[0].Hi, 1e-12)

	runs, err := st.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, p.Hash(), runs[0].ProgramHash)
	assert.Equal(t, "credal", runs[0].Semantics)
	assert.NotEmpty(t, runs[0].ID)
	assert.Contains(t, runs[0].ResultJSON, "0.3")
}

func TestExactWithoutStore(t *testing.T) {
	backend := sat.New()
	engine, err := New(Options{Solver: backend})
	require.NoError(t, err)
	defer engine.Close()

	p, err := progfile.Parse(coinSource, backend.Symbol)
	require.NoError(t, err)
	ans, err := engine.Exact(context.Background(), p)
	require.NoError(t, err)
	assert.InDelta(t, 0.3, ans.Probs[0].Lo, 1e-12)
}

func TestSemanticsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Semantics = "maxent"
	engine, backend, _ := newTestEngine(t, cfg)

	p, err := progfile.Parse(coinSource, backend.Symbol)
	require.NoError(t, err)
	ans, err := engine.Exact(context.Background(), p)
	require.NoError(t, err)
	assert.InDelta(t, 0.3, ans.Probs[0].Lo, 1e-12)
	assert.Equal(t, ans.Probs[0].Lo, ans.Probs[0].Hi)
}

func TestCountModels(t *testing.T) {
	engine, backend, _ := newTestEngine(t, config.Config{})
	p, err := progfile.Parse("0.3?::a.\n0.5?::b.\n", backend.Symbol)
	require.NoError(t, err)

	cs, err := engine.CountModels(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, cs.F, 2)
	assert.Equal(t, [2]uint64{2, 2}, cs.F[0])
}

func TestProbObs(t *testing.T) {
	engine, backend, _ := newTestEngine(t, config.Config{})
	p, err := progfile.Parse("0.3?::a.\n", backend.Symbol)
	require.NoError(t, err)
	obs, err := observe.ParseAll([]string{"a", "not a"}, backend.Symbol)
	require.NoError(t, err)

	ps, err := engine.ProbObs(context.Background(), p, obs, false)
	require.NoError(t, err)
	require.Len(t, ps.Obs, 2)
	assert.InDelta(t, 0.3, ps.Obs[0].P, 1e-12)
	assert.InDelta(t, 0.7, ps.Obs[1].P, 1e-12)
}

func TestProbObsReuse(t *testing.T) {
	engine, backend, _ := newTestEngine(t, config.Config{})
	p, err := progfile.Parse("0.3?::a.\n", backend.Symbol)
	require.NoError(t, err)
	obs, err := observe.ParseAll([]string{"a"}, backend.Symbol)
	require.NoError(t, err)

	seq := storage.NewProbStorageSeq(p, len(obs), 2)
	for i := 0; i < 2; i++ {
		ps, err := engine.ProbObsReuse(context.Background(), p, obs, true, seq)
		require.NoError(t, err)
		assert.InDelta(t, 0.3, ps.Obs[0].P, 1e-12, "iteration %d", i)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(Options{Solver: sat.New(), Config: config.Config{Workers: -1}})
	require.ErrorIs(t, err, internalerr.ErrInvalidConfig)
}

func TestEngineNeural(t *testing.T) {
	engine, backend, _ := newTestEngine(t, config.Config{})
	p := &program.Program{
		NR: []program.NeuralRule{{Name: "n", Sym: backend.Symbol("n")}},
		Queries: []program.Query{{Q: []program.Literal{{
			Name: "n", Sym: backend.Symbol("n"), Positive: true,
		}}}},
	}

	ans, err := engine.ExactNeural(context.Background(), p, &exact.NeuralProbs{NR: []float64{0.25}})
	require.NoError(t, err)
	assert.InDelta(t, 0.25, ans.Probs[0].Lo, 1e-12)
}
