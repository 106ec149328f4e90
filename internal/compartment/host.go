package compartment

import (
	"fmt"
	"strings"

	"github.com/KadirKcbs/cobratoolbox/internal/merge"
	"github.com/KadirKcbs/cobratoolbox/internal/model"
)

// HostPrefix namespaces every host metabolite and reaction.
const HostPrefix = "Host_"

// AdaptHost rewrites a host model for community coupling. The original
// boundary exchanges on "[e]" metabolites are replaced by a body-fluid
// interface: each exchanged metabolite gains a "Host_<m>[b]" counterpart,
// reachable through a transporter carrying the original exchange's bounds
// and objective. Non-exchange sinks and demands are retained. Every
// remaining host identifier is prefixed "Host_", and each extracellular
// metabolite is additionally linked to the shared lumen through a
// bidirectional "Host_IEX_<m>[u]tr" transporter. The result exposes only
// "[b]" and "[u]" interfaces; no raw "[e]" exchange remains reachable.
func AdaptHost(host *model.Model) (*model.Model, error) {
	h := host.Clone()
	model.NormalizeRoles(h)

	// Record the boundary exchanges and the [e] metabolite each one drains
	// before removing them.
	type exchange struct {
		met string // base name of the [e] metabolite
		rxn model.Reaction
	}
	var exchanges []exchange
	var removed []string
	for _, r := range h.Reactions {
		if r.Role != model.RoleExchange {
			continue
		}
		met, ok := singleExtracellularMet(h, r.ID)
		if !ok {
			// Exchanges on non-[e] species (e.g. periplasmic demands named
			// like exchanges) are left alone.
			continue
		}
		exchanges = append(exchanges, exchange{met: met, rxn: r})
		removed = append(removed, r.ID)
	}
	h.RemoveReactions(removed)

	h.PrefixIDs(HostPrefix, nil)
	h.Name = HostPrefix + host.Name

	// Body-fluid connector: Host_m[e] <-> Host_m[b] under the original
	// exchange bounds, named like an exchange so the constraint policy can
	// gate host uptake from blood.
	body := model.New("hostBodyFluid")
	for _, ex := range exchanges {
		e := HostPrefix + ex.met + "[e]"
		b := HostPrefix + ex.met + "[b]"
		body.AddMetabolite(e)
		body.AddMetabolite(b)
		rxn := model.Reaction{
			ID:        HostPrefix + "EX_" + ex.met + "[b]",
			Lower:     ex.rxn.Lower,
			Upper:     ex.rxn.Upper,
			Objective: ex.rxn.Objective,
			Role:      model.RoleExchange,
		}
		if err := body.AddReaction(rxn, map[string]float64{e: -1, b: 1}); err != nil {
			return nil, fmt.Errorf("host adapter: body-fluid connector: %w", err)
		}
	}
	coupled, err := merge.Merge(h, body, merge.ModeGlue, true)
	if err != nil {
		return nil, fmt.Errorf("host adapter: merge body-fluid connector: %w", err)
	}

	// Lumen connector: Host_m[e] <-> m[u], shared with the community lumen.
	lumen := model.New("hostLumenLink")
	for _, ex := range exchanges {
		e := HostPrefix + ex.met + "[e]"
		u := ex.met + "[u]"
		lumen.AddMetabolite(e)
		lumen.AddMetabolite(u)
		rxn := model.Reaction{
			ID:    HostPrefix + "IEX_" + ex.met + "[u]tr",
			Lower: model.DefaultLowerBound,
			Upper: model.DefaultUpperBound,
			Role:  model.RoleTransport,
		}
		if err := lumen.AddReaction(rxn, map[string]float64{u: -1, e: 1}); err != nil {
			return nil, fmt.Errorf("host adapter: lumen connector: %w", err)
		}
	}
	coupled, err = merge.Merge(coupled, lumen, merge.ModeGlue, true)
	if err != nil {
		return nil, fmt.Errorf("host adapter: merge lumen connector: %w", err)
	}
	coupled.Name = h.Name
	return coupled, nil
}

// HostExchangeMetabolites returns the base names of the metabolites behind
// the host's body-fluid and lumen interfaces of an adapted host model. The
// compartment builder folds these into the diet/fecal chain.
func HostExchangeMetabolites(adapted *model.Model) []string {
	var mets []string
	for _, met := range adapted.Metabolites {
		if met.Compartment() == "u" {
			mets = append(mets, met.Base())
		}
	}
	return mets
}

// singleExtracellularMet returns the base name of the sole "[e]" metabolite
// in a reaction's stoichiometry column, if the column is a single-entry
// boundary reaction on an extracellular species.
func singleExtracellularMet(m *model.Model, rxnID string) (string, bool) {
	col := m.ReactionColumn(rxnID)
	if len(col) != 1 {
		return "", false
	}
	for metID := range col {
		met := model.Metabolite{ID: metID}
		if met.Compartment() == "e" && !strings.Contains(strings.ToLower(met.Base()), "biomass") {
			return met.Base(), true
		}
	}
	return "", false
}
