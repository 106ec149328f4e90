// Package diet loads dietary flux tables and defines the simulation
// scenarios that bound the community's diet exchanges. A diet table is a
// tab-separated file of (exchange reaction id, flux) rows; flux values are
// stored as negative uptake bounds. Additional columns, keyed by a header
// row of sample identifiers, carry per-sample coefficients for the
// personalized scenario.
package diet

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Kind identifies a dietary scenario.
type Kind int

const (
	// Rich opens every diet exchange fully.
	Rich Kind = iota
	// Standard applies the diet table's flux bounds.
	Standard
	// Personalized scales the standard bounds by per-sample coefficients.
	Personalized
)

// Name returns the scenario key used in results and checkpoints.
func (k Kind) Name() string {
	switch k {
	case Rich:
		return "rich"
	case Personalized:
		return "personalized"
	default:
		return "standard"
	}
}

// Scenario is one dietary condition applied to a sample's community model.
type Scenario struct {
	Kind             Kind
	Table            *Table
	SampleID         string // personalized scenario only
	IncludeHumanMets bool
}

// Table is a parsed diet definition: flux bounds per diet exchange reaction,
// plus optional per-sample coefficient columns.
type Table struct {
	// Fluxes maps a diet exchange reaction id (Diet_EX_ prefixed) to its
	// lower bound. Values are negative: uptake flows into the community.
	Fluxes map[string]float64

	// SampleCoefficients maps sample id -> reaction id -> coefficient for
	// the personalized scenario. Empty when the table has no sample columns.
	SampleCoefficients map[string]map[string]float64
}

// LoadTable parses a tab-separated diet file. The first column is the
// exchange reaction id, the second the flux bound. A header row whose second
// field is not numeric declares per-sample columns from the third field on.
// Positive flux values are negated: diet bounds are stored as uptake.
func LoadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("diet table: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("diet table %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("diet table %s: empty file", path)
	}

	t := &Table{
		Fluxes:             make(map[string]float64),
		SampleCoefficients: make(map[string]map[string]float64),
	}

	var sampleIDs []string
	start := 0
	if len(records[0]) >= 2 {
		if _, numErr := strconv.ParseFloat(strings.TrimSpace(records[0][1]), 64); numErr != nil {
			// Header row: sample ids from column 3 on.
			for _, id := range records[0][2:] {
				id = strings.TrimSpace(id)
				if id != "" {
					sampleIDs = append(sampleIDs, id)
					t.SampleCoefficients[id] = make(map[string]float64)
				}
			}
			start = 1
		}
	}

	for lineNo, rec := range records[start:] {
		if len(rec) < 2 || strings.TrimSpace(rec[0]) == "" {
			continue
		}
		rxnID := normalizeReactionID(strings.TrimSpace(rec[0]))
		flux, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("diet table %s line %d: bad flux %q: %w", path, start+lineNo+1, rec[1], err)
		}
		if flux > 0 {
			flux = -flux
		}
		t.Fluxes[rxnID] = flux

		for i, sampleID := range sampleIDs {
			if 2+i >= len(rec) {
				break
			}
			field := strings.TrimSpace(rec[2+i])
			if field == "" {
				continue
			}
			coef, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("diet table %s line %d: bad coefficient %q for sample %s: %w",
					path, start+lineNo+1, field, sampleID, err)
			}
			t.SampleCoefficients[sampleID][rxnID] = coef
		}
	}
	return t, nil
}

// normalizeReactionID maps a diet-file reaction id to the Diet_EX_ namespace
// the constraint policy produces, accepting both the raw EX_ form and
// already-prefixed ids, and both "(e)" and "[d]" compartment spellings.
func normalizeReactionID(id string) string {
	id = strings.ReplaceAll(id, "(e)", "[d]")
	id = strings.ReplaceAll(id, "[e]", "[d]")
	if strings.HasPrefix(id, "EX_") {
		id = "Diet_" + id
	}
	return id
}

// Bound returns the scenario's lower bound for a diet exchange reaction and
// whether the scenario defines one. For Rich, every diet exchange is opened
// to the default uptake. Personalized scales the standard bound by the
// sample's coefficient, falling back to the standard bound when the sample
// has no coefficient for the reaction.
func (s Scenario) Bound(rxnID string) (float64, bool) {
	switch s.Kind {
	case Rich:
		return -1000, true
	}
	if s.Table == nil {
		return 0, false
	}
	switch s.Kind {
	case Personalized:
		base, ok := s.Table.Fluxes[rxnID]
		if !ok {
			return 0, false
		}
		if coefs, ok := s.Table.SampleCoefficients[s.SampleID]; ok {
			if c, ok := coefs[rxnID]; ok {
				return base * c, true
			}
		}
		return base, true
	default:
		flux, ok := s.Table.Fluxes[rxnID]
		return flux, ok
	}
}
