// Package compartment synthesizes the exchange compartments that connect a
// merged community to its environment: the diet/lumen/fecal transport chain,
// the host body-fluid and lumen interfaces, and the per-organism lumen
// connectors.
package compartment

import (
	"fmt"
	"sort"
	"strings"

	"github.com/KadirKcbs/cobratoolbox/internal/model"
)

// BiomassMetabolite is the canonical community biomass species name. It is
// excluded from diet/fecal compartment synthesis: biomass leaves the system
// only through its own fecal exchange, added during community assembly.
const BiomassMetabolite = "microbeBiomass"

// Build synthesizes the diet/lumen/fecal compartment model for a set of
// extracellular metabolite identifiers (suffix "[e]" or "[u]"), optionally
// folding in a host exchange metabolite list. For every metabolite m it
// produces four reactions and three metabolites:
//
//	EX_m[d]   : m[d] boundary exchange        [-1000, 1000]
//	DUt_m     : m[d] -> m[u] diet transporter [0, 1000]
//	UFEt_m    : m[u] -> m[fe] fecal transporter [0, 1000]
//	EX_m[fe]  : m[fe] boundary exchange       [-1000, 1000]
//
// The four reactions per metabolite are kept contiguous for readability of
// downstream output; nothing may depend on that ordering.
func Build(exMets []string, hostMets []string) (*model.Model, error) {
	bases := make(map[string]bool)
	for _, id := range append(append([]string(nil), exMets...), hostMets...) {
		base := model.Metabolite{ID: id}.Base()
		if base == "" {
			return nil, fmt.Errorf("compartment builder: empty metabolite identifier %q", id)
		}
		if isBiomassName(base) {
			continue
		}
		bases[base] = true
	}

	ordered := make([]string, 0, len(bases))
	for base := range bases {
		ordered = append(ordered, base)
	}
	sort.Strings(ordered)

	out := model.New("dietFecalCompartments")
	for _, base := range ordered {
		d := base + "[d]"
		u := base + "[u]"
		fe := base + "[fe]"
		out.AddMetabolite(d)
		out.AddMetabolite(u)
		out.AddMetabolite(fe)

		steps := []struct {
			rxn    model.Reaction
			stoich map[string]float64
		}{
			{
				rxn: model.Reaction{
					ID:    "EX_" + d,
					Lower: model.DefaultLowerBound,
					Upper: model.DefaultUpperBound,
					Role:  model.RoleExchange,
				},
				stoich: map[string]float64{d: -1},
			},
			{
				rxn: model.Reaction{
					ID:    "DUt_" + base,
					Lower: 0,
					Upper: model.DefaultUpperBound,
					Role:  model.RoleTransport,
				},
				stoich: map[string]float64{d: -1, u: 1},
			},
			{
				rxn: model.Reaction{
					ID:    "UFEt_" + base,
					Lower: 0,
					Upper: model.DefaultUpperBound,
					Role:  model.RoleTransport,
				},
				stoich: map[string]float64{u: -1, fe: 1},
			},
			{
				rxn: model.Reaction{
					ID:    "EX_" + fe,
					Lower: model.DefaultLowerBound,
					Upper: model.DefaultUpperBound,
					Role:  model.RoleExchange,
				},
				stoich: map[string]float64{fe: -1},
			},
		}
		for _, step := range steps {
			if err := out.AddReaction(step.rxn, step.stoich); err != nil {
				return nil, fmt.Errorf("compartment builder: %w", err)
			}
		}
	}
	return out, nil
}

// isBiomassName reports whether a base metabolite name is a biomass species.
func isBiomassName(base string) bool {
	return strings.Contains(strings.ToLower(base), "biomass")
}
