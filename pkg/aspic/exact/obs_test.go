package exact

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/aspic/pkg/aspic/internalerr"
	"github.com/cognicore/aspic/pkg/aspic/observe"
	"github.com/cognicore/aspic/pkg/aspic/program"
	"github.com/cognicore/aspic/pkg/aspic/solver/sat"
	"github.com/cognicore/aspic/pkg/aspic/storage"
)

func parseObs(t *testing.T, s *sat.Solver, exprs ...string) []observe.Observation {
	t.Helper()
	obs, err := observe.ParseAll(exprs, s.Symbol)
	require.NoError(t, err)
	return obs
}

func TestProbObsSingleFact(t *testing.T) {
	s := sat.New()
	p := &program.Program{PF: []program.ProbFact{pfact(s, 0.3, "a", true)}}
	obs := parseObs(t, s, "a", "not a")

	ps, err := ProbObs(context.Background(), p, obs, false, opts(s, MaxEnt))
	require.NoError(t, err)
	require.Len(t, ps.Obs, 2)

	assert.InDelta(t, 0.3, ps.Obs[0].P, 1e-12)
	assert.Equal(t, uint64(1), ps.Obs[0].N)
	assert.InDelta(t, 0.7, ps.Obs[1].P, 1e-12)
	assert.Equal(t, uint64(1), ps.Obs[1].N)
}

func TestProbObsDerive(t *testing.T) {
	s := sat.New()
	p := &program.Program{PF: []program.ProbFact{pfact(s, 0.3, "a", true)}}
	obs := parseObs(t, s, "a", "not a")

	ps, err := ProbObs(context.Background(), p, obs, true, opts(s, MaxEnt))
	require.NoError(t, err)

	// All of the first observation's mass comes from choices with a
	// true, all of the second's from choices with a false.
	require.Len(t, ps.Obs[0].F, 1)
	assert.InDelta(t, 0.0, ps.Obs[0].F[0][0], 1e-12)
	assert.InDelta(t, 0.3, ps.Obs[0].F[0][1], 1e-12)
	assert.InDelta(t, 0.7, ps.Obs[1].F[0][0], 1e-12)
	assert.InDelta(t, 0.0, ps.Obs[1].F[0][1], 1e-12)
}

func TestProbObsRuleMass(t *testing.T) {
	s := sat.New()
	p := &program.Program{
		Rules: "win :- a, b.",
		PF: []program.ProbFact{
			pfact(s, 0.5, "a", false),
			pfact(s, 0.25, "b", false),
		},
	}
	obs := parseObs(t, s, "win", "not win")

	ps, err := ProbObs(context.Background(), p, obs, false, opts(s, MaxEnt))
	require.NoError(t, err)
	assert.InDelta(t, 0.125, ps.Obs[0].P, 1e-12)
	assert.InDelta(t, 0.875, ps.Obs[1].P, 1e-12)
}

func TestProbObsWorkerInvariance(t *testing.T) {
	s := sat.New()
	p := &program.Program{
		Rules: "win :- a, b.",
		PF: []program.ProbFact{
			pfact(s, 0.5, "a", true),
			pfact(s, 0.5, "b", true),
			pfact(s, 0.25, "c", true),
		},
	}
	obs := parseObs(t, s, "win, not c")

	base, err := ProbObs(context.Background(), p, obs, true, opts(s, MaxEnt))
	require.NoError(t, err)
	for _, workers := range []int{2, 3, 5} {
		o := opts(s, MaxEnt)
		o.Workers = workers
		ps, err := ProbObs(context.Background(), p, obs, true, o)
		require.NoError(t, err)
		assert.Equal(t, base.Obs, ps.Obs, "workers=%d", workers)
	}
}

func TestProbObsReuse(t *testing.T) {
	s := sat.New()
	p := &program.Program{PF: []program.ProbFact{pfact(s, 0.3, "a", true)}}
	obs := parseObs(t, s, "a")

	seq := storage.NewProbStorageSeq(p, len(obs), 2)
	first, err := ProbObsReuse(context.Background(), p, obs, true, opts(s, MaxEnt), seq)
	require.NoError(t, err)
	assert.Same(t, &seq[0], first)
	assert.InDelta(t, 0.3, first.Obs[0].P, 1e-12)

	// A second pass over the same storages starts from zero, not from
	// the previous accumulation.
	second, err := ProbObsReuse(context.Background(), p, obs, true, opts(s, MaxEnt), seq)
	require.NoError(t, err)
	assert.InDelta(t, 0.3, second.Obs[0].P, 1e-12)
	assert.Equal(t, uint64(1), second.Obs[0].N)
}

func TestProbObsReuseShapeChecks(t *testing.T) {
	s := sat.New()
	p := &program.Program{PF: []program.ProbFact{pfact(s, 0.3, "a", true)}}
	obs := parseObs(t, s, "a", "not a")

	_, err := ProbObsReuse(context.Background(), p, obs, false, opts(s, MaxEnt), nil)
	require.ErrorIs(t, err, internalerr.ErrStorageShape)

	seq := storage.NewProbStorageSeq(p, 1, 2)
	_, err = ProbObsReuse(context.Background(), p, obs, false, opts(s, MaxEnt), seq)
	require.ErrorIs(t, err, internalerr.ErrStorageShape)
}

func TestProbObsRejectsCredalFacts(t *testing.T) {
	s := sat.New()
	p := &program.Program{
		CF: []program.CredalFact{{L: 0.2, U: 0.7, Name: "c", Sym: s.Symbol("c")}},
	}
	obs := parseObs(t, s, "c")

	_, err := ProbObs(context.Background(), p, obs, false, opts(s, MaxEnt))
	require.ErrorIs(t, err, internalerr.ErrMalformedProgram)

	seq := storage.NewProbStorageSeq(p, len(obs), 1)
	_, err = ProbObsReuse(context.Background(), p, obs, false, opts(s, MaxEnt), seq)
	require.ErrorIs(t, err, internalerr.ErrMalformedProgram)
}

func TestProbObsInconsistentObservation(t *testing.T) {
	s := sat.New()
	p := &program.Program{
		Rules: ":- a.",
		PF:    []program.ProbFact{pfact(s, 0.5, "a", true)},
	}
	obs := parseObs(t, s, "a")

	ps, err := ProbObs(context.Background(), p, obs, false, opts(s, MaxEnt))
	require.NoError(t, err)
	assert.Zero(t, ps.Obs[0].P)
	assert.Zero(t, ps.Obs[0].N)
}
