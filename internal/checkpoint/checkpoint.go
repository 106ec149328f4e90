// Package checkpoint persists in-progress simulation results so a
// multi-hour batch survives interruption. One snapshot file is rewritten
// atomically after every sample; a final snapshot with the aggregate
// registries is written once at batch completion. Resume trusts the
// explicit per-sample completion marker, never inferred data magnitudes.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/KadirKcbs/cobratoolbox/internal/solver"
)

// Snapshot file names inside the result directory.
const (
	inProgressFile = "checkpoint.json"
	finalFile      = "simulation_results.json"
)

// Pair is the (diet, fecal) flux pair stored per exchanged metabolite:
// netProduction holds (min diet uptake, max fecal secretion), netUptake
// (max diet uptake, min fecal secretion).
type Pair struct {
	Diet  float64 `json:"diet"`
	Fecal float64 `json:"fecal"`
}

// ScenarioResult is the outcome of one dietary scenario for one sample.
type ScenarioResult struct {
	Feasible      bool            `json:"feasible"`
	Objective     *float64        `json:"objective,omitempty"`
	NetProduction map[string]Pair `json:"netProduction,omitempty"`
	NetUptake     map[string]Pair `json:"netUptake,omitempty"`
}

// SampleResult collects per-scenario results for one sample. It is created
// empty at batch start or reloaded from the snapshot, mutated once per
// scenario, and never deleted.
type SampleResult struct {
	SampleID  string                     `json:"sampleId"`
	Scenarios map[string]*ScenarioResult `json:"scenarios"`

	// Complete marks that every requested scenario for this sample
	// finished and the result was checkpointed. Resume skips only samples
	// bearing this marker.
	Complete bool `json:"complete"`
}

// InfeasibleEntry is a permanent registry record of one infeasible solve.
type InfeasibleEntry struct {
	SampleID string `json:"sampleId"`
	Scenario string `json:"scenario"`
}

// State is the full checkpoint: every sample's results so far plus the
// infeasible-sample registry.
type State struct {
	LastCompletedSampleIndex int                      `json:"lastCompletedSampleIndex"`
	Samples                  map[string]*SampleResult `json:"samples"`
	Infeasible               []InfeasibleEntry        `json:"inFesMat"`
}

// NewState creates an empty checkpoint state.
func NewState() *State {
	return &State{
		LastCompletedSampleIndex: -1,
		Samples:                  make(map[string]*SampleResult),
	}
}

// Sample returns the result record for a sample, creating it if absent.
func (st *State) Sample(id string) *SampleResult {
	if sr, ok := st.Samples[id]; ok {
		return sr
	}
	sr := &SampleResult{
		SampleID:  id,
		Scenarios: make(map[string]*ScenarioResult),
	}
	st.Samples[id] = sr
	return sr
}

// RecordInfeasible appends a registry entry unless an identical one exists.
func (st *State) RecordInfeasible(sampleID, scenario string) {
	for _, e := range st.Infeasible {
		if e.SampleID == sampleID && e.Scenario == scenario {
			return
		}
	}
	st.Infeasible = append(st.Infeasible, InfeasibleEntry{SampleID: sampleID, Scenario: scenario})
}

// Store reads and writes checkpoint snapshots in a result directory. The
// snapshot file is exclusively owned by the driver loop; no concurrent
// writer is permitted.
type Store struct {
	dir string
}

// NewStore creates a checkpoint store rooted at resultDir, creating the
// directory if needed.
func NewStore(resultDir string) (*Store, error) {
	if err := os.MkdirAll(resultDir, 0o755); err != nil {
		return nil, fmt.Errorf("checkpoint: create result directory: %w", err)
	}
	return &Store{dir: resultDir}, nil
}

// Load reads the in-progress snapshot. A missing file yields a fresh state.
func (s *Store) Load() (*State, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, inProgressFile))
	if err != nil {
		if os.IsNotExist(err) {
			return NewState(), nil
		}
		return nil, fmt.Errorf("checkpoint: read snapshot: %w", err)
	}
	st := NewState()
	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("checkpoint: parse snapshot: %w", err)
	}
	if st.Samples == nil {
		st.Samples = make(map[string]*SampleResult)
	}
	return st, nil
}

// Save atomically replaces the in-progress snapshot: the state is written
// to a temporary file in the same directory and renamed over the previous
// snapshot, so no partial or corrupt checkpoint is ever observable.
func (s *Store) Save(st *State) error {
	return s.writeAtomic(inProgressFile, st)
}

// SaveFinal writes the batch-completion snapshot with the aggregate
// registries keyed the way downstream consumers expect.
func (s *Store) SaveFinal(st *State) error {
	final := finalSnapshot{
		Presol:        make(map[string]map[string]*float64),
		NetProduction: make(map[string]map[string]map[string]Pair),
		NetUptake:     make(map[string]map[string]map[string]Pair),
		Infeasible:    st.Infeasible,
	}
	for id, sr := range st.Samples {
		for scenario, res := range sr.Scenarios {
			if final.Presol[id] == nil {
				final.Presol[id] = make(map[string]*float64)
			}
			final.Presol[id][scenario] = res.Objective
			if len(res.NetProduction) > 0 {
				if final.NetProduction[id] == nil {
					final.NetProduction[id] = make(map[string]map[string]Pair)
				}
				final.NetProduction[id][scenario] = res.NetProduction
			}
			if len(res.NetUptake) > 0 {
				if final.NetUptake[id] == nil {
					final.NetUptake[id] = make(map[string]map[string]Pair)
				}
				final.NetUptake[id][scenario] = res.NetUptake
			}
		}
	}
	return s.writeAtomic(finalFile, final)
}

// finalSnapshot is the completion artifact layout.
type finalSnapshot struct {
	Presol        map[string]map[string]*float64       `json:"presol"`
	NetProduction map[string]map[string]map[string]Pair `json:"netProduction"`
	NetUptake     map[string]map[string]map[string]Pair `json:"netUptake"`
	Infeasible    []InfeasibleEntry                     `json:"inFesMat"`
}

// writeAtomic writes v as indented JSON via a temp file and rename.
func (s *Store) writeAtomic(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("checkpoint: encode %s: %w", name, err)
	}
	tmp, err := os.CreateTemp(s.dir, name+".tmp-")
	if err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("checkpoint: write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("checkpoint: close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("checkpoint: replace %s: %w", name, err)
	}
	return nil
}

// Validate checks a reloaded sample result before resume trusts it. The
// completion marker is authoritative; when flux profiles were requested,
// an all-zero aggregate flux additionally downgrades the result to
// suspect so the caller can log it.
func Validate(sr *SampleResult, needProfiles bool) (trusted, suspect bool) {
	if sr == nil || !sr.Complete {
		return false, false
	}
	if !needProfiles {
		return true, false
	}
	for _, res := range sr.Scenarios {
		if !res.Feasible {
			continue
		}
		if len(res.NetProduction) == 0 && len(res.NetUptake) == 0 {
			return false, false
		}
		if aggregateFlux(res) < 0.1 {
			// A genuinely all-zero profile is indistinguishable from a
			// skipped computation; the marker says it completed, so it is
			// trusted but flagged.
			suspect = true
		}
	}
	return true, suspect
}

// aggregateFlux sums absolute flux extrema across a scenario's profiles.
func aggregateFlux(res *ScenarioResult) float64 {
	total := 0.0
	for _, p := range res.NetProduction {
		total += math.Abs(p.Diet) + math.Abs(p.Fecal)
	}
	for _, p := range res.NetUptake {
		total += math.Abs(p.Diet) + math.Abs(p.Fecal)
	}
	return total
}

// RangesToPairs converts solver flux ranges keyed by reaction into the
// stored pair form, matching diet and fecal exchanges of the same base
// metabolite.
func RangesToPairs(dietRanges, fecalRanges map[string]solver.FluxRange, pairKey func(fecalRxn string) (dietRxn string, key string)) (netProduction, netUptake map[string]Pair) {
	netProduction = make(map[string]Pair, len(fecalRanges))
	netUptake = make(map[string]Pair, len(fecalRanges))
	for fecalRxn, fr := range fecalRanges {
		dietRxn, key := pairKey(fecalRxn)
		dr := dietRanges[dietRxn]
		netProduction[key] = Pair{Diet: dr.Min, Fecal: fr.Max}
		netUptake[key] = Pair{Diet: dr.Max, Fecal: fr.Min}
	}
	return netProduction, netUptake
}
