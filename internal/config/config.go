// Package config provides unified configuration loading for the pipeline.
// It supports loading from YAML files and environment variables. There is
// no implicit process-wide state: the loaded Config is passed explicitly
// into the driver at construction.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config contains all pipeline settings.
type Config struct {
	// ResultDir receives checkpoints and final result snapshots.
	ResultDir string `yaml:"result_dir"`

	// ModelDir is the model store root (organism and community models).
	ModelDir string `yaml:"model_dir"`

	// ModelStore selects the persistence backend: "file" (default) or
	// "sqlite".
	ModelStore string `yaml:"model_store"`

	// Samples lists the sample identifiers to simulate, in order.
	Samples []string `yaml:"samples"`

	// DietFile is the tab-separated diet definition.
	DietFile string `yaml:"diet_file"`

	// AbundanceFile is the tab-separated organism x sample abundance table
	// used to weight the community biomass equation.
	AbundanceFile string `yaml:"abundance_file"`

	// Host configures optional host coupling.
	Host HostConfig `yaml:"host"`

	// Workers bounds solver-side and merge-level parallelism.
	Workers int `yaml:"workers"`

	// Scenario toggles.
	RichDiet         bool `yaml:"rich_diet"`
	PersonalizedDiet bool `yaml:"personalized_diet"`
	SaveIntermediate bool `yaml:"save_intermediate_models"`
	FluxProfiles     bool `yaml:"compute_flux_profiles"`
	IncludeHumanMets bool `yaml:"include_human_metabolites"`

	// CommunityBiomassLower bounds the community growth flux from below.
	CommunityBiomassLower float64 `yaml:"community_biomass_lower"`

	// ForceRepeat redoes samples that already carry a completion marker.
	ForceRepeat bool `yaml:"force_repeat"`

	// SequentialMergeThreshold is the organism count above which the merge
	// tree degrades to a sequential fold.
	SequentialMergeThreshold int `yaml:"sequential_merge_threshold"`

	// Solver configures the optimization backend.
	Solver SolverConfig `yaml:"solver"`

	// Logging configures operational and solve-trace output.
	Logging LoggingConfig `yaml:"logging"`
}

// HostConfig configures host-model coupling.
type HostConfig struct {
	// ModelPath is the host model name in the organism store. Empty
	// disables host coupling.
	ModelPath string `yaml:"model_path"`

	// BiomassReaction is the host biomass reaction id before adaptation
	// (the Host_ prefix is applied by the adapter).
	BiomassReaction string `yaml:"biomass_reaction"`

	// FluxCap bounds the host biomass flux from above.
	FluxCap float64 `yaml:"flux_cap"`
}

// Present reports whether host coupling is configured.
func (h HostConfig) Present() bool { return h.ModelPath != "" }

// SolverConfig configures the optimization backend.
type SolverConfig struct {
	// Backend identifies the solver: "glpk" (default) or "stub".
	Backend string `yaml:"backend"`

	// Path is the solver executable for CLI-backed backends.
	Path string `yaml:"path,omitempty"`

	// OptFraction is the near-optimal objective fraction held during flux
	// variability analysis.
	OptFraction float64 `yaml:"opt_fraction"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables solve tracing to <result_dir>/solves.jsonl.
	Level string `yaml:"level"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		ResultDir:                "results",
		ModelDir:                 "models",
		ModelStore:               "file",
		Workers:                  1,
		CommunityBiomassLower:    0.4,
		SequentialMergeThreshold: 500,
		Solver: SolverConfig{
			Backend:     "glpk",
			OptFraction: 0.9999,
		},
		Host: HostConfig{
			FluxCap: 1,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromFile loads configuration from a YAML file on top of the defaults
// and applies environment variable overrides.
func LoadFromFile(path string) (*Config, error) {
	config := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}
	applyEnvOverrides(config)
	return config, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.ResultDir == "" {
		return fmt.Errorf("result_dir is required")
	}
	if c.ModelDir == "" {
		return fmt.Errorf("model_dir is required")
	}
	if c.CommunityBiomassLower <= 0 || c.CommunityBiomassLower > 1 {
		return fmt.Errorf("community_biomass_lower must be in (0, 1], got %g", c.CommunityBiomassLower)
	}
	if c.Solver.OptFraction <= 0 || c.Solver.OptFraction > 1 {
		return fmt.Errorf("solver.opt_fraction must be in (0, 1], got %g", c.Solver.OptFraction)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", c.Workers)
	}

	validStores := map[string]bool{"": true, "file": true, "sqlite": true}
	if !validStores[c.ModelStore] {
		return fmt.Errorf("invalid model_store: %s (valid: file, sqlite)", c.ModelStore)
	}

	validBackends := map[string]bool{"": true, "glpk": true, "stub": true}
	if !validBackends[c.Solver.Backend] {
		return fmt.Errorf("invalid solver backend: %s (valid: glpk, stub)", c.Solver.Backend)
	}

	validLevels := map[string]bool{"": true, "info": true, "debug": true, "trace": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	if c.Host.Present() && c.Host.BiomassReaction == "" {
		return fmt.Errorf("host.biomass_reaction is required when a host model is configured")
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("MGPIPE_RESULT_DIR"); v != "" {
		config.ResultDir = v
	}
	if v := os.Getenv("MGPIPE_MODEL_DIR"); v != "" {
		config.ModelDir = v
	}
	if v := os.Getenv("MGPIPE_DIET_FILE"); v != "" {
		config.DietFile = v
	}
	if v := os.Getenv("MGPIPE_SOLVER"); v != "" {
		config.Solver.Backend = v
	}
	if v := os.Getenv("MGPIPE_SOLVER_PATH"); v != "" {
		config.Solver.Path = v
	}
	if v := os.Getenv("MGPIPE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Workers = n
		}
	}
	if v := os.Getenv("MGPIPE_FORCE_REPEAT"); v != "" {
		config.ForceRepeat = v == "true" || v == "1"
	}
	if v := os.Getenv("MGPIPE_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}
