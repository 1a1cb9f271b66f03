// Package aspic is the facade of the exact probabilistic answer-set
// inference engine. It wires a solver backend, the enumeration core and
// an optional persistent store into one handle.
package aspic

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/cognicore/aspic/pkg/aspic/config"
	"github.com/cognicore/aspic/pkg/aspic/exact"
	"github.com/cognicore/aspic/pkg/aspic/observe"
	"github.com/cognicore/aspic/pkg/aspic/program"
	"github.com/cognicore/aspic/pkg/aspic/solver"
	"github.com/cognicore/aspic/pkg/aspic/storage"
	"github.com/cognicore/aspic/pkg/aspic/store"
)

// Engine is the main inference facade.
type Engine struct {
	solver    solver.Interface
	store     store.Store
	cfg       config.Config
	semantics exact.Semantics
	logger    *zap.Logger
	entropy   *ulid.MonotonicEntropy
}

// Options configures an Engine instance.
type Options struct {
	// Solver is the stable-model backend. Required.
	Solver solver.Interface
	// Store persists count caches and run records. Optional.
	Store store.Store
	// Config carries worker count, semantics and cache settings; zero
	// value means config.Default().
	Config config.Config
	// Logger defaults to a nop logger.
	Logger *zap.Logger
}

// New creates an Engine with the given dependencies.
func New(opts Options) (*Engine, error) {
	cfg := opts.Config
	if cfg == (config.Config{}) {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sem, err := exact.ParseSemantics(cfg.Semantics)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		solver:    opts.Solver,
		store:     opts.Store,
		cfg:       cfg,
		semantics: sem,
		logger:    logger,
		entropy:   ulid.Monotonic(rand.Reader, 0),
	}, nil
}

// Close cleanly shuts down the engine.
func (e *Engine) Close() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}

func (e *Engine) options(neural *exact.NeuralProbs) exact.Options {
	return exact.Options{
		Solver:          e.solver,
		Semantics:       e.semantics,
		LStable:         e.cfg.LStable(),
		Workers:         e.cfg.Workers,
		GroundCacheSize: e.cfg.GroundCacheSize,
		Neural:          neural,
		CountCache:      e.store,
		Logger:          e.logger,
	}
}

// Exact answers every query of p and records the run when a store is
// configured.
func (e *Engine) Exact(ctx context.Context, p *program.Program) (*exact.Answer, error) {
	return e.ExactNeural(ctx, p, nil)
}

// ExactNeural is Exact with call-time neural probabilities.
func (e *Engine) ExactNeural(ctx context.Context, p *program.Program, neural *exact.NeuralProbs) (*exact.Answer, error) {
	ans, err := exact.Enum(ctx, p, e.options(neural))
	if err != nil {
		return nil, err
	}
	if e.store != nil {
		if err := e.recordRun(ctx, p, ans); err != nil {
			return nil, err
		}
	}
	return ans, nil
}

// CountModels counts stable models per learnable parameter value.
func (e *Engine) CountModels(ctx context.Context, p *program.Program) (*storage.CountStorage, error) {
	return exact.CountModels(ctx, p, e.options(nil))
}

// ProbObs computes joint observation probabilities; derive also fills
// the per-parameter partial sums for learning.
func (e *Engine) ProbObs(ctx context.Context, p *program.Program, obs []observe.Observation, derive bool) (*storage.ProbStorage, error) {
	return exact.ProbObs(ctx, p, obs, derive, e.options(nil))
}

// ProbObsReuse is ProbObs over caller-owned worker storages; the worker
// count is the storage count.
func (e *Engine) ProbObsReuse(ctx context.Context, p *program.Program, obs []observe.Observation, derive bool, seq []storage.ProbStorage) (*storage.ProbStorage, error) {
	return exact.ProbObsReuse(ctx, p, obs, derive, e.options(nil), seq)
}

func (e *Engine) recordRun(ctx context.Context, p *program.Program, ans *exact.Answer) error {
	result, err := json.Marshal(ans.Probs)
	if err != nil {
		return err
	}
	now := time.Now()
	run := store.Run{
		ID:          ulid.MustNew(ulid.Timestamp(now), e.entropy).String(),
		CreatedAt:   now,
		ProgramHash: p.Hash(),
		Semantics:   e.cfg.Semantics,
		Workers:     e.cfg.Workers,
		ResultJSON:  string(result),
	}
	return e.store.PutRun(ctx, run)
}
