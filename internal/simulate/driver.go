package simulate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/KadirKcbs/cobratoolbox/internal/checkpoint"
	"github.com/KadirKcbs/cobratoolbox/internal/compartment"
	"github.com/KadirKcbs/cobratoolbox/internal/config"
	"github.com/KadirKcbs/cobratoolbox/internal/constraint"
	"github.com/KadirKcbs/cobratoolbox/internal/diet"
	"github.com/KadirKcbs/cobratoolbox/internal/logging"
	"github.com/KadirKcbs/cobratoolbox/internal/model"
	"github.com/KadirKcbs/cobratoolbox/internal/solver"
	"github.com/KadirKcbs/cobratoolbox/internal/store"
)

// Driver runs the batch simulation loop: for every sample it assembles or
// reloads the community model, applies each dietary scenario's constraint
// policy, solves, records infeasibility, optionally profiles exchange
// fluxes, and checkpoints after the sample completes. A rerun resumes from
// the checkpoint, skipping samples bearing the completion marker.
type Driver struct {
	cfg        *config.Config
	models     store.ModelStore
	assembler  *Assembler
	policy     *constraint.Policy
	solver     solver.Solver
	fva        solver.VariabilityAnalyzer
	ckpt       *checkpoint.Store
	dietTable  *diet.Table
	abundances AbundanceTable
	log        *slog.Logger
	trace      *logging.SolveTraceLogger
}

// DriverOptions carries the driver's dependencies. Config, Models, Solver,
// and Checkpoints are required; the rest default sensibly.
type DriverOptions struct {
	Config      *config.Config
	Models      store.ModelStore
	Solver      solver.Solver
	Analyzer    solver.VariabilityAnalyzer
	Checkpoints *checkpoint.Store
	Diet        *diet.Table
	Abundances  AbundanceTable
	Logger      *slog.Logger
	Trace       *logging.SolveTraceLogger
}

// NewDriver wires a simulation driver from its dependencies.
func NewDriver(opts DriverOptions) (*Driver, error) {
	switch {
	case opts.Config == nil:
		return nil, fmt.Errorf("driver: config is required")
	case opts.Models == nil:
		return nil, fmt.Errorf("driver: model store is required")
	case opts.Solver == nil:
		return nil, fmt.Errorf("driver: solver is required")
	case opts.Checkpoints == nil:
		return nil, fmt.Errorf("driver: checkpoint store is required")
	}
	cfg := opts.Config
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	fva := opts.Analyzer
	if fva == nil && cfg.FluxProfiles {
		fva = solver.NewAnalyzer(opts.Solver, cfg.Workers)
	}
	assembler := NewAssembler(opts.Models, AssemblerOptions{
		HostModel:           cfg.Host.ModelPath,
		Workers:             cfg.Workers,
		SequentialThreshold: cfg.SequentialMergeThreshold,
		Logger:              log,
	})
	policy := constraint.NewPolicy(constraint.Params{
		CommunityBiomassLower: cfg.CommunityBiomassLower,
		HostPresent:           cfg.Host.Present(),
		HostBiomassReaction:   compartment.HostPrefix + cfg.Host.BiomassReaction,
		HostBiomassMax:        cfg.Host.FluxCap,
		Logger:                log,
	})
	return &Driver{
		cfg:        cfg,
		models:     opts.Models,
		assembler:  assembler,
		policy:     policy,
		solver:     opts.Solver,
		fva:        fva,
		ckpt:       opts.Checkpoints,
		dietTable:  opts.Diet,
		abundances: opts.Abundances,
		log:        log,
		trace:      opts.Trace,
	}, nil
}

// Run executes the batch. It returns the first structural error after
// flushing the checkpoint, so a corrected rerun resumes where this one
// stopped. Solver infeasibility is not an error: it is recorded in the
// checkpoint's infeasibility registry and the batch continues.
func (d *Driver) Run(ctx context.Context) error {
	state, err := d.ckpt.Load()
	if err != nil {
		return err
	}
	scenarios := d.scenarios()
	d.log.Info("simulation batch starting",
		"samples", len(d.cfg.Samples),
		"scenarios", len(scenarios),
		"resumeFrom", state.LastCompletedSampleIndex+1)

	for i, sampleID := range d.cfg.Samples {
		if err := ctx.Err(); err != nil {
			d.flush(state)
			return fmt.Errorf("simulation interrupted at sample %s: %w", sampleID, err)
		}

		sr := state.Sample(sampleID)
		if !d.cfg.ForceRepeat {
			trusted, suspect := checkpoint.Validate(sr, d.cfg.FluxProfiles)
			if trusted {
				if suspect {
					d.log.Warn("resuming past sample with near-zero flux profile", "sample", sampleID)
				}
				d.log.Info("sample already complete, skipping", "sample", sampleID)
				if i > state.LastCompletedSampleIndex {
					state.LastCompletedSampleIndex = i
				}
				continue
			}
		}

		if err := d.runSample(ctx, sampleID, sr, scenarios, state); err != nil {
			d.flush(state)
			return fmt.Errorf("sample %s: %w", sampleID, err)
		}

		sr.Complete = true
		if i > state.LastCompletedSampleIndex {
			state.LastCompletedSampleIndex = i
		}
		if err := d.ckpt.Save(state); err != nil {
			return err
		}
		d.log.Info("sample checkpointed", "sample", sampleID, "index", i)
	}

	if err := d.ckpt.Save(state); err != nil {
		return err
	}
	if err := d.ckpt.SaveFinal(state); err != nil {
		return err
	}
	d.log.Info("simulation batch complete",
		"samples", len(d.cfg.Samples),
		"infeasible", len(state.Infeasible))
	return nil
}

// scenarios returns the scenario sequence for every sample. The standard
// diet always runs; rich and personalized are opt-in.
func (d *Driver) scenarios() []diet.Kind {
	var kinds []diet.Kind
	if d.cfg.RichDiet {
		kinds = append(kinds, diet.Rich)
	}
	kinds = append(kinds, diet.Standard)
	if d.cfg.PersonalizedDiet {
		kinds = append(kinds, diet.Personalized)
	}
	return kinds
}

// runSample simulates every scenario for one sample. Returned errors are
// structural (bad model, missing required reaction, solver invocation
// failure) and abort the batch.
func (d *Driver) runSample(ctx context.Context, sampleID string, sr *checkpoint.SampleResult, scenarios []diet.Kind, state *checkpoint.State) error {
	community, err := d.communityModel(ctx, sampleID)
	if err != nil {
		return err
	}
	if !community.HasReaction(constraint.CommunityBiomassReaction) {
		return fmt.Errorf("community model lacks %s", constraint.CommunityBiomassReaction)
	}

	for _, kind := range scenarios {
		sc := diet.Scenario{
			Kind:             kind,
			Table:            d.dietTable,
			SampleID:         sampleID,
			IncludeHumanMets: d.cfg.IncludeHumanMets,
		}
		res, err := d.runScenario(ctx, sampleID, community, sc)
		if err != nil {
			return err
		}
		sr.Scenarios[kind.Name()] = res
		if !res.Feasible {
			state.RecordInfeasible(sampleID, kind.Name())
			d.log.Warn("scenario infeasible", "sample", sampleID, "scenario", kind.Name())
		}
	}
	return nil
}

// communityModel reloads a persisted community model or assembles a fresh
// one. Assembled models are persisted when intermediate saving is enabled.
func (d *Driver) communityModel(ctx context.Context, sampleID string) (*model.Model, error) {
	hostCoupled := d.cfg.Host.Present()
	if !d.cfg.ForceRepeat {
		ok, err := d.models.HasCommunity(ctx, sampleID, hostCoupled)
		if err != nil {
			return nil, err
		}
		if ok {
			d.log.Debug("reusing persisted community model", "sample", sampleID)
			return d.models.LoadCommunity(ctx, sampleID, hostCoupled)
		}
	}

	organisms, abundances, err := d.sampleOrganisms(sampleID)
	if err != nil {
		return nil, err
	}
	community, err := d.assembler.Community(ctx, sampleID, organisms, abundances)
	if err != nil {
		return nil, err
	}
	if d.cfg.SaveIntermediate {
		if err := d.models.SaveCommunity(ctx, sampleID, community, hostCoupled); err != nil {
			return nil, err
		}
	}
	return community, nil
}

// sampleOrganisms resolves the sample's organism list and abundance weights
// from the abundance table.
func (d *Driver) sampleOrganisms(sampleID string) ([]string, map[string]float64, error) {
	if d.abundances == nil {
		return nil, nil, fmt.Errorf("no abundance table loaded")
	}
	organisms, err := d.abundances.Organisms(sampleID)
	if err != nil {
		return nil, nil, err
	}
	return organisms, d.abundances[sampleID], nil
}

// runScenario constrains, solves, and optionally profiles one scenario.
func (d *Driver) runScenario(ctx context.Context, sampleID string, community *model.Model, sc diet.Scenario) (*checkpoint.ScenarioResult, error) {
	constrained, err := d.policy.Apply(community, sc)
	if err != nil {
		return nil, err
	}

	sol, err := d.solver.Solve(ctx, constrained)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Kind.Name(), err)
	}
	d.trace.Log(map[string]any{
		"sample":   sampleID,
		"scenario": sc.Kind.Name(),
		"status":   sol.Status.String(),
		"objective": func() any {
			if sol.Feasible() {
				return sol.Objective
			}
			return nil
		}(),
	})

	res := &checkpoint.ScenarioResult{Feasible: sol.Feasible()}
	if !sol.Feasible() {
		return res, nil
	}
	obj := sol.Objective
	res.Objective = &obj
	d.log.Debug("scenario solved",
		"sample", sampleID,
		"scenario", sc.Kind.Name(),
		"objective", sol.Objective)

	if d.cfg.FluxProfiles && d.fva != nil {
		if err := d.profileFluxes(ctx, constrained, res); err != nil {
			return nil, fmt.Errorf("scenario %s: %w", sc.Kind.Name(), err)
		}
	}
	return res, nil
}

// profileFluxes runs flux variability analysis over the paired diet and
// fecal exchanges and stores the net production and uptake pairs.
func (d *Driver) profileFluxes(ctx context.Context, constrained *model.Model, res *checkpoint.ScenarioResult) error {
	dietRxns, fecalRxns := exchangePairs(constrained)
	if len(fecalRxns) == 0 {
		return nil
	}
	all := append(append([]string{}, dietRxns...), fecalRxns...)
	sort.Strings(all)

	ranges, err := d.fva.FluxVariability(ctx, constrained, all, d.cfg.Solver.OptFraction)
	if err != nil {
		return err
	}
	dietRanges := make(map[string]solver.FluxRange, len(dietRxns))
	fecalRanges := make(map[string]solver.FluxRange, len(fecalRxns))
	for id, r := range ranges {
		if strings.HasPrefix(id, "Diet_EX_") {
			dietRanges[id] = r
		} else {
			fecalRanges[id] = r
		}
	}
	res.NetProduction, res.NetUptake = checkpoint.RangesToPairs(dietRanges, fecalRanges, pairByBaseMetabolite)
	return nil
}

// exchangePairs collects the constrained model's diet and fecal exchange
// reactions. The community biomass exchange is excluded: its flux is pinned
// by the variability analysis itself.
func exchangePairs(m *model.Model) (dietRxns, fecalRxns []string) {
	for _, r := range m.Reactions {
		if r.Role != model.RoleExchange {
			continue
		}
		switch {
		case strings.HasPrefix(r.ID, "Diet_EX_") && strings.HasSuffix(r.ID, "[d]"):
			dietRxns = append(dietRxns, r.ID)
		case strings.HasPrefix(r.ID, "EX_") && strings.HasSuffix(r.ID, "[fe]") && r.ID != constraint.FecalBiomassExchange:
			fecalRxns = append(fecalRxns, r.ID)
		}
	}
	return dietRxns, fecalRxns
}

// pairByBaseMetabolite maps a fecal exchange EX_<base>[fe] to its diet
// counterpart Diet_EX_<base>[d], keyed by the base metabolite name.
func pairByBaseMetabolite(fecalRxn string) (dietRxn, key string) {
	base := strings.TrimSuffix(strings.TrimPrefix(fecalRxn, "EX_"), "[fe]")
	return "Diet_EX_" + base + "[d]", base
}

// flush best-effort saves the checkpoint before an abort so the rerun can
// resume; the original error always takes precedence.
func (d *Driver) flush(state *checkpoint.State) {
	if err := d.ckpt.Save(state); err != nil {
		d.log.Error("checkpoint flush failed", "error", err)
	}
}
