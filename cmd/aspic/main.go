package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"

	"go.uber.org/zap"

	"github.com/cognicore/aspic/internal/progfile"
	"github.com/cognicore/aspic/pkg/aspic"
	"github.com/cognicore/aspic/pkg/aspic/config"
	"github.com/cognicore/aspic/pkg/aspic/observe"
	"github.com/cognicore/aspic/pkg/aspic/solver/sat"
	"github.com/cognicore/aspic/pkg/aspic/store"
	"github.com/cognicore/aspic/pkg/aspic/store/memstore"
	"github.com/cognicore/aspic/pkg/aspic/store/sqlite"
)

func main() {
	var (
		programPath = flag.String("program", "", "Program file (required)")
		configPath  = flag.String("config", "", "YAML config file (optional)")
		workers     = flag.Int("workers", 0, "Override worker count")
		semantics   = flag.String("semantics", "", "Override semantics (credal, maxent, stable)")
		obsExpr     = flag.String("observe", "", "Observation expression, e.g. 'a, not b'")
		asJSON      = flag.Bool("json", false, "Emit results as JSON")
	)
	flag.Parse()

	if *programPath == "" {
		log.Fatal("--program required")
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatal(err)
		}
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}
	if *semantics != "" {
		cfg.Semantics = *semantics
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx := context.Background()

	var st store.Store
	if cfg.CachePath != "" {
		st, err = sqlite.Open(ctx, cfg.CachePath)
		if err != nil {
			log.Fatal(err)
		}
	} else {
		st = memstore.New()
	}

	backend := sat.New()
	engine, err := aspic.New(aspic.Options{
		Solver: backend,
		Store:  st,
		Config: cfg,
		Logger: logger,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer engine.Close()

	source, err := os.ReadFile(*programPath)
	if err != nil {
		log.Fatal(err)
	}
	prog, err := progfile.Parse(string(source), backend.Symbol)
	if err != nil {
		log.Fatal(err)
	}

	if *obsExpr != "" {
		obs, err := observe.Parse(*obsExpr, backend.Symbol)
		if err != nil {
			log.Fatal(err)
		}
		result, err := engine.ProbObs(ctx, prog, []observe.Observation{obs}, false)
		if err != nil {
			log.Fatal(err)
		}
		rec := result.Obs[0]
		if *asJSON {
			emitJSON(map[string]any{"observation": *obsExpr, "probability": rec.P, "models": rec.N})
		} else {
			fmt.Printf("P(%s) = %.6f (%d consistent models)\n", *obsExpr, rec.P, rec.N)
		}
		return
	}

	answer, err := engine.Exact(ctx, prog)
	if err != nil {
		log.Fatal(err)
	}
	if *asJSON {
		emitJSON(answer.Probs)
		return
	}
	for i, pr := range answer.Probs {
		if pr.Lo == pr.Hi {
			fmt.Printf("query %d: %.6f\n", i, pr.Lo)
		} else if math.IsInf(pr.Lo, -1) {
			fmt.Printf("query %d: undefined (evidence has zero probability)\n", i)
		} else {
			fmt.Printf("query %d: [%.6f, %.6f]\n", i, pr.Lo, pr.Hi)
		}
	}
}

func buildLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func emitJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatal(err)
	}
}
