package compartment

import (
	"fmt"
	"strings"

	"github.com/KadirKcbs/cobratoolbox/internal/model"
)

// AdaptOrganism namespaces a single organism model for community merging and
// rewires its boundary to the shared lumen. Every metabolite and reaction is
// prefixed "<name>_"; each boundary exchange on an "[e]" metabolite is
// removed and replaced by a bidirectional "<name>_IEX_<m>[u]tr" transporter
// between the organism's own extracellular pool and the shared, unprefixed
// "m[u]" lumen metabolite. Organisms then interact only through lumen rows
// that the merge glues together, and all external supply/removal goes
// through the diet/fecal chain.
func AdaptOrganism(organism *model.Model, name string) (*model.Model, error) {
	if name == "" {
		return nil, fmt.Errorf("organism adapter: organism name is required")
	}
	m := organism.Clone()
	model.NormalizeRoles(m)

	type exchange struct {
		met string
		rxn model.Reaction
	}
	var exchanges []exchange
	var removed []string
	for _, r := range m.Reactions {
		if r.Role != model.RoleExchange {
			continue
		}
		met, ok := singleExtracellularMet(m, r.ID)
		if !ok {
			continue
		}
		exchanges = append(exchanges, exchange{met: met, rxn: r})
		removed = append(removed, r.ID)
	}
	m.RemoveReactions(removed)

	prefix := name + "_"
	m.PrefixIDs(prefix, func(met model.Metabolite) bool {
		// Shared lumen species stay unprefixed so that merges glue them.
		return met.Compartment() == "u"
	})
	m.Name = name

	for _, ex := range exchanges {
		e := prefix + ex.met + "[e]"
		u := ex.met + "[u]"
		m.AddMetabolite(u)
		rxn := model.Reaction{
			ID:    prefix + "IEX_" + ex.met + "[u]tr",
			Lower: model.DefaultLowerBound,
			Upper: model.DefaultUpperBound,
			Role:  model.RoleTransport,
		}
		if err := m.AddReaction(rxn, map[string]float64{u: -1, e: 1}); err != nil {
			return nil, fmt.Errorf("organism adapter %q: %w", name, err)
		}
	}
	return m, nil
}

// BiomassReaction returns the identifier of the organism's biomass reaction,
// or an error when none or several exist.
func BiomassReaction(m *model.Model) (string, error) {
	var found []string
	for _, r := range m.Reactions {
		if r.Role == model.RoleBiomass || strings.Contains(strings.ToLower(r.ID), "biomass") {
			found = append(found, r.ID)
		}
	}
	switch len(found) {
	case 1:
		return found[0], nil
	case 0:
		return "", fmt.Errorf("model %q has no biomass reaction", m.Name)
	default:
		return "", fmt.Errorf("model %q has %d biomass reactions", m.Name, len(found))
	}
}
