package main

import (
	"fmt"
	"os"

	"github.com/KadirKcbs/cobratoolbox/internal/checkpoint"
	"github.com/KadirKcbs/cobratoolbox/internal/config"
	"github.com/KadirKcbs/cobratoolbox/internal/diet"
	"github.com/KadirKcbs/cobratoolbox/internal/logging"
	"github.com/KadirKcbs/cobratoolbox/internal/simulate"
	"github.com/KadirKcbs/cobratoolbox/internal/solver"
	"github.com/KadirKcbs/cobratoolbox/internal/store"
	"github.com/spf13/cobra"
)

// loadConfig resolves the effective configuration for a command from the
// --config flag, defaults, and environment overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openModelStore constructs the configured model persistence backend.
func openModelStore(cfg *config.Config) (store.ModelStore, error) {
	switch cfg.ModelStore {
	case "", "file":
		return store.NewFileModelStore(cfg.ModelDir)
	case "sqlite":
		return store.NewSQLiteModelStore(cfg.ModelDir)
	default:
		return nil, fmt.Errorf("unknown model store backend %q", cfg.ModelStore)
	}
}

// newSolver constructs the configured optimization backend.
func newSolver(cfg *config.Config) (solver.Solver, error) {
	switch cfg.Solver.Backend {
	case "", "glpk":
		return solver.NewGLPKSolver(cfg.Solver.Path), nil
	case "stub":
		return &solver.StubSolver{}, nil
	default:
		return nil, fmt.Errorf("unknown solver backend %q", cfg.Solver.Backend)
	}
}

// loadDietTable reads the configured diet table, if any.
func loadDietTable(cfg *config.Config) (*diet.Table, error) {
	if cfg.DietFile == "" {
		return nil, nil
	}
	return diet.LoadTable(cfg.DietFile)
}

// loadAbundances reads the configured abundance table, if any.
func loadAbundances(cfg *config.Config) (simulate.AbundanceTable, error) {
	if cfg.AbundanceFile == "" {
		return nil, nil
	}
	return simulate.LoadAbundanceTable(cfg.AbundanceFile)
}

// newDriver wires the full simulation stack from the configuration.
func newDriver(cfg *config.Config) (*simulate.Driver, func(), error) {
	models, err := openModelStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	slv, err := newSolver(cfg)
	if err != nil {
		models.Close()
		return nil, nil, err
	}
	dietTable, err := loadDietTable(cfg)
	if err != nil {
		models.Close()
		return nil, nil, err
	}
	abundances, err := loadAbundances(cfg)
	if err != nil {
		models.Close()
		return nil, nil, err
	}
	ckpt, err := checkpoint.NewStore(cfg.ResultDir)
	if err != nil {
		models.Close()
		return nil, nil, err
	}

	log := logging.NewLogger(cfg.Logging.Level, os.Stderr)
	trace := logging.NewSolveTraceLogger(cfg.ResultDir, cfg.Logging.Level)

	driver, err := simulate.NewDriver(simulate.DriverOptions{
		Config:      cfg,
		Models:      models,
		Solver:      slv,
		Checkpoints: ckpt,
		Diet:        dietTable,
		Abundances:  abundances,
		Logger:      log,
		Trace:       trace,
	})
	if err != nil {
		trace.Close()
		models.Close()
		return nil, nil, err
	}
	cleanup := func() {
		trace.Close()
		models.Close()
	}
	return driver, cleanup, nil
}
