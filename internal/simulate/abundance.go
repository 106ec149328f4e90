package simulate

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// AbundanceTable maps sample id -> organism name -> relative abundance.
// Organisms with zero abundance in a sample are absent from that sample's
// community.
type AbundanceTable map[string]map[string]float64

// LoadAbundanceTable parses a tab-separated organism x sample table: a
// header row of sample identifiers, then one row per organism with its
// abundance per sample.
func LoadAbundanceTable(path string) (AbundanceTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("abundance table: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("abundance table %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("abundance table %s: need a header row and at least one organism row", path)
	}

	header := records[0]
	if len(header) < 2 {
		return nil, fmt.Errorf("abundance table %s: header has no sample columns", path)
	}
	samples := make([]string, 0, len(header)-1)
	table := make(AbundanceTable)
	for _, id := range header[1:] {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		samples = append(samples, id)
		table[id] = make(map[string]float64)
	}

	for lineNo, rec := range records[1:] {
		if len(rec) == 0 || strings.TrimSpace(rec[0]) == "" {
			continue
		}
		organism := strings.TrimSpace(rec[0])
		for i, sampleID := range samples {
			if 1+i >= len(rec) {
				break
			}
			field := strings.TrimSpace(rec[1+i])
			if field == "" {
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("abundance table %s line %d: bad value %q: %w", path, lineNo+2, field, err)
			}
			if v > 0 {
				table[sampleID][organism] = v
			}
		}
	}
	return table, nil
}

// Organisms returns the sample's organism names in sorted order, or an
// error when the sample is missing from the table.
func (t AbundanceTable) Organisms(sampleID string) ([]string, error) {
	abund, ok := t[sampleID]
	if !ok {
		return nil, fmt.Errorf("abundance table: unknown sample %q", sampleID)
	}
	names := make([]string, 0, len(abund))
	for org := range abund {
		names = append(names, org)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("abundance table: sample %q has no organisms", sampleID)
	}
	sort.Strings(names)
	return names, nil
}
