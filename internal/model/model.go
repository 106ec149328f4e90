// Package model defines the stoichiometric network types shared by the
// assembly and simulation pipeline: metabolites tagged with compartment
// suffixes, reactions with flux bounds and objective coefficients, and a
// sparse stoichiometric matrix tying them together.
package model

import (
	"fmt"
	"strings"
)

// Default flux bounds used for exchange and transport reactions.
const (
	DefaultLowerBound = -1000.0
	DefaultUpperBound = 1000.0
)

// Metabolite is a chemical species in a specific compartment. The compartment
// is encoded as a bracketed suffix on the identifier, e.g. "glc_D[e]".
type Metabolite struct {
	ID string `json:"id"`
}

// Base returns the identifier without its compartment suffix.
func (m Metabolite) Base() string {
	if i := strings.LastIndex(m.ID, "["); i >= 0 && strings.HasSuffix(m.ID, "]") {
		return m.ID[:i]
	}
	return m.ID
}

// Compartment returns the compartment tag without brackets, or "" when the
// identifier carries no suffix.
func (m Metabolite) Compartment() string {
	if i := strings.LastIndex(m.ID, "["); i >= 0 && strings.HasSuffix(m.ID, "]") {
		return m.ID[i+1 : len(m.ID)-1]
	}
	return ""
}

// Reaction is a transformation between metabolites with flux bounds, an
// optional objective weight, an optional gene-association rule, and a
// structural role assigned at construction time.
type Reaction struct {
	ID        string  `json:"id"`
	Lower     float64 `json:"lower"`
	Upper     float64 `json:"upper"`
	Objective float64 `json:"objective,omitempty"`
	Role      Role    `json:"role,omitempty"`
	GeneRule  string  `json:"gene_rule,omitempty"`
}

// Model is a stoichiometric network: ordered metabolites, ordered reactions,
// and a sparse matrix of coefficients with one row per metabolite and one
// column per reaction. Identifiers are case-sensitive and unique within a
// model.
type Model struct {
	Name        string
	Metabolites []Metabolite
	Reactions   []Reaction
	S           *Sparse

	metIndex map[string]int
	rxnIndex map[string]int
}

// New creates an empty model.
func New(name string) *Model {
	return &Model{
		Name:     name,
		S:        NewSparse(0, 0),
		metIndex: make(map[string]int),
		rxnIndex: make(map[string]int),
	}
}

// AddMetabolite adds a metabolite if absent and returns its row index.
func (m *Model) AddMetabolite(id string) int {
	if i, ok := m.metIndex[id]; ok {
		return i
	}
	i := len(m.Metabolites)
	m.Metabolites = append(m.Metabolites, Metabolite{ID: id})
	m.metIndex[id] = i
	m.S.Grow(i+1, m.S.Cols())
	return i
}

// AddReaction appends a reaction with the given stoichiometry, keyed by
// metabolite identifier. Every referenced metabolite must already exist and
// the reaction identifier must be new.
func (m *Model) AddReaction(rxn Reaction, stoich map[string]float64) error {
	if rxn.ID == "" {
		return fmt.Errorf("reaction ID is required")
	}
	if _, ok := m.rxnIndex[rxn.ID]; ok {
		return fmt.Errorf("duplicate reaction %q", rxn.ID)
	}
	if rxn.Lower > rxn.Upper {
		return fmt.Errorf("reaction %q: lower bound %g exceeds upper bound %g", rxn.ID, rxn.Lower, rxn.Upper)
	}
	for metID := range stoich {
		if _, ok := m.metIndex[metID]; !ok {
			return fmt.Errorf("reaction %q references unknown metabolite %q", rxn.ID, metID)
		}
	}

	j := len(m.Reactions)
	m.Reactions = append(m.Reactions, rxn)
	m.rxnIndex[rxn.ID] = j
	m.S.Grow(len(m.Metabolites), j+1)
	for metID, coef := range stoich {
		m.S.Set(m.metIndex[metID], j, coef)
	}
	return nil
}

// MetaboliteIndex returns the row index for a metabolite identifier.
func (m *Model) MetaboliteIndex(id string) (int, bool) {
	i, ok := m.metIndex[id]
	return i, ok
}

// ReactionIndex returns the column index for a reaction identifier.
func (m *Model) ReactionIndex(id string) (int, bool) {
	j, ok := m.rxnIndex[id]
	return j, ok
}

// Reaction returns a pointer to the reaction with the given identifier,
// allowing in-place bound edits, or nil when absent.
func (m *Model) Reaction(id string) *Reaction {
	if j, ok := m.rxnIndex[id]; ok {
		return &m.Reactions[j]
	}
	return nil
}

// HasReaction reports whether a reaction with the given identifier exists.
func (m *Model) HasReaction(id string) bool {
	_, ok := m.rxnIndex[id]
	return ok
}

// HasMetabolite reports whether a metabolite with the given identifier exists.
func (m *Model) HasMetabolite(id string) bool {
	_, ok := m.metIndex[id]
	return ok
}

// Stoich returns the stoichiometric coefficient for (metabolite, reaction),
// or 0 when either identifier is absent.
func (m *Model) Stoich(metID, rxnID string) float64 {
	i, ok := m.metIndex[metID]
	if !ok {
		return 0
	}
	j, ok := m.rxnIndex[rxnID]
	if !ok {
		return 0
	}
	return m.S.At(i, j)
}

// ReactionColumn returns the stoichiometry of a reaction keyed by metabolite
// identifier.
func (m *Model) ReactionColumn(rxnID string) map[string]float64 {
	j, ok := m.rxnIndex[rxnID]
	if !ok {
		return nil
	}
	col := make(map[string]float64)
	for i, v := range m.S.Column(j) {
		col[m.Metabolites[i].ID] = v
	}
	return col
}

// ReactionsByRole returns the identifiers of all reactions with the given
// role, in model order.
func (m *Model) ReactionsByRole(role Role) []string {
	var ids []string
	for _, r := range m.Reactions {
		if r.Role == role {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

// SetObjective sets the objective coefficient of the named reaction to 1 and
// zeroes every other objective coefficient.
func (m *Model) SetObjective(rxnID string) error {
	j, ok := m.rxnIndex[rxnID]
	if !ok {
		return fmt.Errorf("objective reaction %q not found", rxnID)
	}
	for i := range m.Reactions {
		m.Reactions[i].Objective = 0
	}
	m.Reactions[j].Objective = 1
	return nil
}

// RenameReaction changes a reaction identifier in place.
func (m *Model) RenameReaction(oldID, newID string) error {
	j, ok := m.rxnIndex[oldID]
	if !ok {
		return fmt.Errorf("reaction %q not found", oldID)
	}
	if _, exists := m.rxnIndex[newID]; exists {
		return fmt.Errorf("reaction %q already exists", newID)
	}
	delete(m.rxnIndex, oldID)
	m.Reactions[j].ID = newID
	m.rxnIndex[newID] = j
	return nil
}

// RenameMetabolite changes a metabolite identifier in place.
func (m *Model) RenameMetabolite(oldID, newID string) error {
	i, ok := m.metIndex[oldID]
	if !ok {
		return fmt.Errorf("metabolite %q not found", oldID)
	}
	if _, exists := m.metIndex[newID]; exists {
		return fmt.Errorf("metabolite %q already exists", newID)
	}
	delete(m.metIndex, oldID)
	m.Metabolites[i].ID = newID
	m.metIndex[newID] = i
	return nil
}

// RemoveReactions deletes the named reactions and their stoichiometry
// columns. Unknown identifiers are ignored. Metabolites are never removed,
// even when orphaned.
func (m *Model) RemoveReactions(ids []string) {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	kept := make([]Reaction, 0, len(m.Reactions))
	s := NewSparse(len(m.Metabolites), 0)
	for j, r := range m.Reactions {
		if drop[r.ID] {
			continue
		}
		nj := len(kept)
		kept = append(kept, r)
		s.Grow(len(m.Metabolites), nj+1)
		for i, v := range m.S.Column(j) {
			s.Set(i, nj, v)
		}
	}

	m.Reactions = kept
	m.S = s
	m.rxnIndex = make(map[string]int, len(kept))
	for j, r := range kept {
		m.rxnIndex[r.ID] = j
	}
}

// Clone returns a deep copy of the model.
func (m *Model) Clone() *Model {
	out := &Model{
		Name:        m.Name,
		Metabolites: append([]Metabolite(nil), m.Metabolites...),
		Reactions:   append([]Reaction(nil), m.Reactions...),
		S:           m.S.Clone(),
		metIndex:    make(map[string]int, len(m.metIndex)),
		rxnIndex:    make(map[string]int, len(m.rxnIndex)),
	}
	for k, v := range m.metIndex {
		out.metIndex[k] = v
	}
	for k, v := range m.rxnIndex {
		out.rxnIndex[k] = v
	}
	return out
}

// Rebuild reconstructs the identifier indexes from the metabolite and
// reaction slices. Callers that assemble a Model directly (e.g. codecs)
// must call this before using lookups.
func (m *Model) Rebuild() error {
	m.metIndex = make(map[string]int, len(m.Metabolites))
	for i, met := range m.Metabolites {
		if _, dup := m.metIndex[met.ID]; dup {
			return fmt.Errorf("duplicate metabolite %q", met.ID)
		}
		m.metIndex[met.ID] = i
	}
	m.rxnIndex = make(map[string]int, len(m.Reactions))
	for j, r := range m.Reactions {
		if _, dup := m.rxnIndex[r.ID]; dup {
			return fmt.Errorf("duplicate reaction %q", r.ID)
		}
		m.rxnIndex[r.ID] = j
	}
	return nil
}

// Validate checks the structural invariants: matrix dimensions match the
// metabolite and reaction counts, identifiers are unique, and every bound
// pair is ordered.
func (m *Model) Validate() error {
	if m.S.Rows() != len(m.Metabolites) || m.S.Cols() != len(m.Reactions) {
		return fmt.Errorf("model %q: stoichiometry is %dx%d, want %dx%d",
			m.Name, m.S.Rows(), m.S.Cols(), len(m.Metabolites), len(m.Reactions))
	}
	if len(m.metIndex) != len(m.Metabolites) {
		return fmt.Errorf("model %q: metabolite index out of sync", m.Name)
	}
	if len(m.rxnIndex) != len(m.Reactions) {
		return fmt.Errorf("model %q: reaction index out of sync", m.Name)
	}
	for _, r := range m.Reactions {
		if r.Lower > r.Upper {
			return fmt.Errorf("model %q: reaction %q: lower bound %g exceeds upper bound %g",
				m.Name, r.ID, r.Lower, r.Upper)
		}
	}
	return nil
}

// PrefixIDs prepends prefix to every metabolite and reaction identifier,
// except metabolites for which skip returns true. A nil skip prefixes
// everything.
func (m *Model) PrefixIDs(prefix string, skip func(Metabolite) bool) {
	for i := range m.Metabolites {
		if skip != nil && skip(m.Metabolites[i]) {
			continue
		}
		m.Metabolites[i].ID = prefix + m.Metabolites[i].ID
	}
	for j := range m.Reactions {
		m.Reactions[j].ID = prefix + m.Reactions[j].ID
	}
	m.metIndex = make(map[string]int, len(m.Metabolites))
	for i, met := range m.Metabolites {
		m.metIndex[met.ID] = i
	}
	m.rxnIndex = make(map[string]int, len(m.Reactions))
	for j, r := range m.Reactions {
		m.rxnIndex[r.ID] = j
	}
}
