package simulate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/KadirKcbs/cobratoolbox/internal/checkpoint"
	"github.com/KadirKcbs/cobratoolbox/internal/config"
	"github.com/KadirKcbs/cobratoolbox/internal/constraint"
	"github.com/KadirKcbs/cobratoolbox/internal/model"
	"github.com/KadirKcbs/cobratoolbox/internal/solver"
	"github.com/KadirKcbs/cobratoolbox/internal/store"
)

// organismModel fabricates a small organism reconstruction: glucose uptake
// from its extracellular pool feeding a biomass reaction.
func organismModel(t *testing.T, name string) *model.Model {
	t.Helper()
	m := model.New(name)
	m.AddMetabolite("glc[e]")
	m.AddMetabolite("glc[c]")
	m.AddMetabolite("biomass[c]")
	add := func(rxn model.Reaction, stoich map[string]float64) {
		t.Helper()
		if err := m.AddReaction(rxn, stoich); err != nil {
			t.Fatal(err)
		}
	}
	add(model.Reaction{ID: "EX_glc(e)", Lower: -10, Upper: 1000},
		map[string]float64{"glc[e]": -1})
	add(model.Reaction{ID: "GLCt", Lower: 0, Upper: 1000},
		map[string]float64{"glc[e]": -1, "glc[c]": 1})
	add(model.Reaction{ID: "biomass525", Lower: 0, Upper: 1000},
		map[string]float64{"glc[c]": -1, "biomass[c]": 1})
	return m
}

func organismStore(t *testing.T, names ...string) store.ModelStore {
	t.Helper()
	s, err := store.NewFileModelStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	for _, name := range names {
		if err := s.SaveOrganism(context.Background(), name, organismModel(t, name)); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func TestAssembler_Community(t *testing.T) {
	ms := organismStore(t, "orgA", "orgB")
	a := NewAssembler(ms, AssemblerOptions{})

	community, err := a.Community(context.Background(), "S1", []string{"orgA", "orgB"},
		map[string]float64{"orgA": 0.7, "orgB": 0.3})
	if err != nil {
		t.Fatal(err)
	}

	if community.Name != "S1" {
		t.Errorf("community name = %q, want S1", community.Name)
	}
	if err := community.Validate(); err != nil {
		t.Fatalf("community invalid: %v", err)
	}

	// Both organisms share one lumen row reachable through their connectors.
	if !community.HasMetabolite("glc[u]") {
		t.Fatal("shared lumen metabolite missing")
	}
	for _, id := range []string{"orgA_IEX_glc[u]tr", "orgB_IEX_glc[u]tr"} {
		if !community.HasReaction(id) {
			t.Errorf("lumen connector %s missing", id)
		}
	}

	// Diet/fecal chain for the lumen metabolite.
	for _, id := range []string{"EX_glc[d]", "DUt_glc", "UFEt_glc", "EX_glc[fe]"} {
		if !community.HasReaction(id) {
			t.Errorf("compartment reaction %s missing", id)
		}
	}

	// Community biomass weighted by abundance.
	cb := community.ReactionColumn(constraint.CommunityBiomassReaction)
	if cb == nil {
		t.Fatal("community biomass reaction missing")
	}
	if got := cb["orgA_biomass[c]"]; got != -0.7 {
		t.Errorf("orgA biomass coefficient = %g, want -0.7", got)
	}
	if got := cb["orgB_biomass[c]"]; got != -0.3 {
		t.Errorf("orgB biomass coefficient = %g, want -0.3", got)
	}
	if got := cb["microbeBiomass[u]"]; got != 1 {
		t.Errorf("community biomass product coefficient = %g, want 1", got)
	}
	if !community.HasReaction(constraint.FecalBiomassExchange) {
		t.Error("fecal biomass exchange missing")
	}

	// No raw organism boundary exchange survives.
	if community.HasReaction("orgA_EX_glc(e)") {
		t.Error("raw organism exchange should have been rewired")
	}
}

func TestAssembler_UniformWeightsWhenAbundanceMissing(t *testing.T) {
	ms := organismStore(t, "orgA", "orgB")
	a := NewAssembler(ms, AssemblerOptions{})

	community, err := a.Community(context.Background(), "S1", []string{"orgA", "orgB"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	cb := community.ReactionColumn(constraint.CommunityBiomassReaction)
	if got := cb["orgA_biomass[c]"]; got != -0.5 {
		t.Errorf("uniform weight = %g, want -0.5", got)
	}
}

func TestLoadAbundanceTable(t *testing.T) {
	content := "organism\tS1\tS2\norgA\t0.7\t0\norgB\t0.3\t1\n"
	path := filepath.Join(t.TempDir(), "abundance.tsv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	table, err := LoadAbundanceTable(path)
	if err != nil {
		t.Fatal(err)
	}

	s1, err := table.Organisms("S1")
	if err != nil {
		t.Fatal(err)
	}
	if len(s1) != 2 || s1[0] != "orgA" || s1[1] != "orgB" {
		t.Errorf("S1 organisms = %v", s1)
	}

	// Zero abundance excludes the organism from the sample.
	s2, err := table.Organisms("S2")
	if err != nil {
		t.Fatal(err)
	}
	if len(s2) != 1 || s2[0] != "orgB" {
		t.Errorf("S2 organisms = %v", s2)
	}

	if _, err := table.Organisms("S9"); err == nil {
		t.Error("expected error for unknown sample")
	}
}

func testConfig(t *testing.T, samples ...string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.ResultDir = t.TempDir()
	cfg.ModelDir = t.TempDir()
	cfg.Samples = samples
	cfg.Solver.Backend = "stub"
	return cfg
}

func testAbundances(samples ...string) AbundanceTable {
	table := make(AbundanceTable)
	for _, s := range samples {
		table[s] = map[string]float64{"orgA": 0.7, "orgB": 0.3}
	}
	return table
}

func newTestDriver(t *testing.T, cfg *config.Config, slv solver.Solver) (*Driver, *checkpoint.Store) {
	t.Helper()
	ms := organismStore(t, "orgA", "orgB")
	ckpt, err := checkpoint.NewStore(cfg.ResultDir)
	if err != nil {
		t.Fatal(err)
	}
	d, err := NewDriver(DriverOptions{
		Config:      cfg,
		Models:      ms,
		Solver:      slv,
		Checkpoints: ckpt,
		Abundances:  testAbundances(cfg.Samples...),
	})
	if err != nil {
		t.Fatal(err)
	}
	return d, ckpt
}

func TestDriver_Run_RecordsResults(t *testing.T) {
	cfg := testConfig(t, "S1", "S2")
	cfg.RichDiet = true
	d, ckpt := newTestDriver(t, cfg, &solver.StubSolver{})

	if err := d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	state, err := ckpt.Load()
	if err != nil {
		t.Fatal(err)
	}
	if state.LastCompletedSampleIndex != 1 {
		t.Errorf("last completed index = %d, want 1", state.LastCompletedSampleIndex)
	}
	for _, id := range []string{"S1", "S2"} {
		sr := state.Samples[id]
		if sr == nil || !sr.Complete {
			t.Fatalf("sample %s missing or incomplete", id)
		}
		for _, scenario := range []string{"rich", "standard"} {
			res := sr.Scenarios[scenario]
			if res == nil || !res.Feasible || res.Objective == nil {
				t.Errorf("sample %s scenario %s missing a feasible objective", id, scenario)
			}
		}
	}

	// The final snapshot exists.
	if _, err := os.Stat(filepath.Join(cfg.ResultDir, "simulation_results.json")); err != nil {
		t.Errorf("final snapshot missing: %v", err)
	}
}

func TestDriver_Run_InfeasibleSampleContinues(t *testing.T) {
	cfg := testConfig(t, "S1", "S2")
	slv := &solver.StubSolver{SolveFn: func(m *model.Model) (*solver.Solution, error) {
		if m.Name == "S1" {
			return &solver.Solution{Status: solver.StatusInfeasible}, nil
		}
		return &solver.Solution{Status: solver.StatusOptimal, Objective: 0.7}, nil
	}}
	d, ckpt := newTestDriver(t, cfg, slv)

	if err := d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	state, err := ckpt.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(state.Infeasible) != 1 {
		t.Fatalf("infeasible registry = %+v, want one entry", state.Infeasible)
	}
	if state.Infeasible[0].SampleID != "S1" || state.Infeasible[0].Scenario != "standard" {
		t.Errorf("unexpected registry entry: %+v", state.Infeasible[0])
	}
	if res := state.Samples["S1"].Scenarios["standard"]; res.Feasible || res.Objective != nil {
		t.Error("infeasible scenario should record no objective")
	}
	if !state.Samples["S2"].Complete {
		t.Error("the batch must continue past an infeasible sample")
	}
}

func TestDriver_Run_ResumeSkipsCompletedSamples(t *testing.T) {
	cfg := testConfig(t, "S1", "S2")
	d, _ := newTestDriver(t, cfg, &solver.StubSolver{})
	if err := d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	// A rerun with the same result directory must not solve anything.
	second := &solver.StubSolver{}
	ckpt, err := checkpoint.NewStore(cfg.ResultDir)
	if err != nil {
		t.Fatal(err)
	}
	d2, err := NewDriver(DriverOptions{
		Config:      cfg,
		Models:      organismStore(t, "orgA", "orgB"),
		Solver:      second,
		Checkpoints: ckpt,
		Abundances:  testAbundances("S1", "S2"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := d2.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if second.Solves() != 0 {
		t.Errorf("resume ran %d solves, want 0", second.Solves())
	}
}

func TestDriver_Run_ForceRepeatRedoesSamples(t *testing.T) {
	cfg := testConfig(t, "S1")
	d, _ := newTestDriver(t, cfg, &solver.StubSolver{})
	if err := d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	cfg.ForceRepeat = true
	second := &solver.StubSolver{}
	ckpt, err := checkpoint.NewStore(cfg.ResultDir)
	if err != nil {
		t.Fatal(err)
	}
	d2, err := NewDriver(DriverOptions{
		Config:      cfg,
		Models:      organismStore(t, "orgA", "orgB"),
		Solver:      second,
		Checkpoints: ckpt,
		Abundances:  testAbundances("S1"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := d2.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if second.Solves() == 0 {
		t.Error("force repeat should re-solve completed samples")
	}
}

func TestDriver_Run_StructuralErrorAborts(t *testing.T) {
	cfg := testConfig(t, "S1", "SMissing", "S3")
	ms := organismStore(t, "orgA", "orgB")
	ckpt, err := checkpoint.NewStore(cfg.ResultDir)
	if err != nil {
		t.Fatal(err)
	}
	abund := testAbundances("S1", "S3") // SMissing absent
	d, err := NewDriver(DriverOptions{
		Config:      cfg,
		Models:      ms,
		Solver:      &solver.StubSolver{},
		Checkpoints: ckpt,
		Abundances:  abund,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := d.Run(context.Background()); err == nil {
		t.Fatal("expected structural error for sample missing from the abundance table")
	}

	// The checkpoint was flushed with the completed first sample.
	state, err := ckpt.Load()
	if err != nil {
		t.Fatal(err)
	}
	if sr := state.Samples["S1"]; sr == nil || !sr.Complete {
		t.Error("first sample should be checkpointed before the abort")
	}
	if sr := state.Samples["S3"]; sr != nil && sr.Complete {
		t.Error("later samples must not be marked complete")
	}
}

func TestDriver_Run_FluxProfiles(t *testing.T) {
	cfg := testConfig(t, "S1")
	cfg.FluxProfiles = true

	ms := organismStore(t, "orgA", "orgB")
	ckpt, err := checkpoint.NewStore(cfg.ResultDir)
	if err != nil {
		t.Fatal(err)
	}
	analyzer := &solver.StubAnalyzer{Ranges: map[string]solver.FluxRange{
		"EX_glc[fe]":     {Min: 0.5, Max: 4},
		"Diet_EX_glc[d]": {Min: -8, Max: -1},
	}}
	d, err := NewDriver(DriverOptions{
		Config:      cfg,
		Models:      ms,
		Solver:      &solver.StubSolver{},
		Analyzer:    analyzer,
		Checkpoints: ckpt,
		Abundances:  testAbundances("S1"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	state, err := ckpt.Load()
	if err != nil {
		t.Fatal(err)
	}
	res := state.Samples["S1"].Scenarios["standard"]
	if res == nil {
		t.Fatal("standard scenario missing")
	}
	if got := res.NetProduction["glc"]; got != (checkpoint.Pair{Diet: -8, Fecal: 4}) {
		t.Errorf("netProduction[glc] = %+v, want {-8 4}", got)
	}
	if got := res.NetUptake["glc"]; got != (checkpoint.Pair{Diet: -1, Fecal: 0.5}) {
		t.Errorf("netUptake[glc] = %+v, want {-1 0.5}", got)
	}
}

func TestDriver_Run_ContextCancelled(t *testing.T) {
	cfg := testConfig(t, "S1")
	d, _ := newTestDriver(t, cfg, &solver.StubSolver{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.Run(ctx); err == nil {
		t.Error("expected error from cancelled context")
	}
}
