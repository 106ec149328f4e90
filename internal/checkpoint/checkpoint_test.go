package checkpoint

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/KadirKcbs/cobratoolbox/internal/solver"
)

func TestStore_LoadMissingYieldsFreshState(t *testing.T) {
	st, err := newTestStore(t).Load()
	if err != nil {
		t.Fatal(err)
	}
	if st.LastCompletedSampleIndex != -1 {
		t.Errorf("fresh state index = %d, want -1", st.LastCompletedSampleIndex)
	}
	if len(st.Samples) != 0 {
		t.Errorf("fresh state has %d samples, want 0", len(st.Samples))
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)

	st := NewState()
	obj := 0.73
	sr := st.Sample("S1")
	sr.Scenarios["standard"] = &ScenarioResult{
		Feasible:      true,
		Objective:     &obj,
		NetProduction: map[string]Pair{"ac": {Diet: -1, Fecal: 4}},
		NetUptake:     map[string]Pair{"ac": {Diet: -8, Fecal: 0.5}},
	}
	sr.Complete = true
	st.LastCompletedSampleIndex = 0
	st.RecordInfeasible("S2", "rich")

	if err := s.Save(st); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(st, got); diff != "" {
		t.Errorf("state round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_SaveIsAtomic(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save(NewState()); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) != ".json" {
			t.Errorf("leftover temp file %q after save", e.Name())
		}
	}
}

func TestState_RecordInfeasible_Dedupes(t *testing.T) {
	st := NewState()
	st.RecordInfeasible("S1", "rich")
	st.RecordInfeasible("S1", "rich")
	st.RecordInfeasible("S1", "standard")
	if len(st.Infeasible) != 2 {
		t.Errorf("infeasible entries = %d, want 2", len(st.Infeasible))
	}
}

func TestStore_SaveFinal(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	st := NewState()
	obj := 0.5
	sr := st.Sample("S1")
	sr.Scenarios["standard"] = &ScenarioResult{
		Feasible:      true,
		Objective:     &obj,
		NetProduction: map[string]Pair{"ac": {Diet: -1, Fecal: 2}},
	}
	sr.Complete = true
	if err := s.SaveFinal(st); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "simulation_results.json"))
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{`"presol"`, `"netProduction"`, `"inFesMat"`} {
		if !bytes.Contains(data, []byte(key)) {
			t.Errorf("final snapshot missing %s", key)
		}
	}
}

func TestValidate(t *testing.T) {
	obj := 1.0
	complete := func(production map[string]Pair) *SampleResult {
		return &SampleResult{
			SampleID: "S1",
			Scenarios: map[string]*ScenarioResult{
				"standard": {Feasible: true, Objective: &obj, NetProduction: production},
			},
			Complete: true,
		}
	}

	if trusted, _ := Validate(nil, false); trusted {
		t.Error("nil result must not be trusted")
	}
	incomplete := complete(map[string]Pair{"ac": {Fecal: 5}})
	incomplete.Complete = false
	if trusted, _ := Validate(incomplete, false); trusted {
		t.Error("result without completion marker must not be trusted")
	}

	if trusted, suspect := Validate(complete(nil), false); !trusted || suspect {
		t.Error("complete result without requested profiles should be trusted")
	}
	if trusted, _ := Validate(complete(nil), true); trusted {
		t.Error("complete result missing requested profiles must not be trusted")
	}
	if trusted, suspect := Validate(complete(map[string]Pair{"ac": {Fecal: 5}}), true); !trusted || suspect {
		t.Error("complete result with healthy profile should be trusted and unsuspect")
	}
	if trusted, suspect := Validate(complete(map[string]Pair{"ac": {Fecal: 0.01}}), true); !trusted || !suspect {
		t.Error("near-zero profile should be trusted but flagged suspect")
	}
}

func TestRangesToPairs(t *testing.T) {
	dietRanges := map[string]solver.FluxRange{
		"Diet_EX_ac[d]": {Min: -8, Max: -1},
	}
	fecalRanges := map[string]solver.FluxRange{
		"EX_ac[fe]":  {Min: 0.5, Max: 4},
		"EX_but[fe]": {Min: 0, Max: 2},
	}
	pairKey := func(fecalRxn string) (string, string) {
		base := fecalRxn[len("EX_") : len(fecalRxn)-len("[fe]")]
		return "Diet_EX_" + base + "[d]", base
	}

	production, uptake := RangesToPairs(dietRanges, fecalRanges, pairKey)
	if got := production["ac"]; got != (Pair{Diet: -8, Fecal: 4}) {
		t.Errorf("production[ac] = %+v, want {-8 4}", got)
	}
	if got := uptake["ac"]; got != (Pair{Diet: -1, Fecal: 0.5}) {
		t.Errorf("uptake[ac] = %+v, want {-1 0.5}", got)
	}
	// A fecal exchange without a diet counterpart pairs with a zero range.
	if got := production["but"]; got != (Pair{Diet: 0, Fecal: 2}) {
		t.Errorf("production[but] = %+v, want {0 2}", got)
	}
}
