// Package merge combines stoichiometric models: pairwise union merges and
// the merge-tree scheduler that assembles a community model from many
// organism models without holding more than a few models in memory.
package merge

import (
	"fmt"

	"github.com/KadirKcbs/cobratoolbox/internal/model"
)

// Mode selects how metabolites appearing in both inputs are handled.
type Mode int

const (
	// ModeDisjoint requires disjoint identifier namespaces. A shared
	// metabolite or reaction identifier is a structural error, because the
	// caller is responsible for organism-name prefixing and a collision
	// means that step was skipped. The result is block-diagonal.
	ModeDisjoint Mode = iota

	// ModeGlue unifies rows for metabolites with identical identifiers, so
	// connector metabolites (shared lumen and compartment species) become a
	// single row with columns from both inputs. Reaction identifiers must
	// still be disjoint.
	ModeGlue
)

// Merge combines two models into one. Metabolite and reaction identifier
// sets of the result are the union of the inputs with no duplicates; bounds
// and objective coefficients carry through unchanged. When mergeGenes is
// false, gene-association rules are dropped from the result rather than
// merged, to avoid carrying inconsistent associations.
func Merge(a, b *model.Model, mode Mode, mergeGenes bool) (*model.Model, error) {
	out := model.New(a.Name)
	if a.Name == "" {
		out.Name = b.Name
	}

	for _, met := range a.Metabolites {
		out.AddMetabolite(met.ID)
	}
	for _, met := range b.Metabolites {
		if out.HasMetabolite(met.ID) {
			if mode == ModeDisjoint {
				return nil, fmt.Errorf("disjoint merge %q + %q: shared metabolite %q", a.Name, b.Name, met.ID)
			}
			continue
		}
		out.AddMetabolite(met.ID)
	}

	if err := appendReactions(out, a, mergeGenes); err != nil {
		return nil, fmt.Errorf("merge %q + %q: %w", a.Name, b.Name, err)
	}
	if err := appendReactions(out, b, mergeGenes); err != nil {
		return nil, fmt.Errorf("merge %q + %q: %w", a.Name, b.Name, err)
	}
	return out, nil
}

// appendReactions copies every reaction of src into dst, remapping
// stoichiometry rows through dst's metabolite index.
func appendReactions(dst, src *model.Model, mergeGenes bool) error {
	for j, rxn := range src.Reactions {
		if !mergeGenes {
			rxn.GeneRule = ""
		}
		stoich := make(map[string]float64)
		for i, v := range src.S.Column(j) {
			stoich[src.Metabolites[i].ID] = v
		}
		if err := dst.AddReaction(rxn, stoich); err != nil {
			return err
		}
	}
	return nil
}
