// Package constraint applies the pre-solve bound policy to a community
// model. Apply is a pure function of (model, scenario): it returns a
// constrained deep copy and never mutates shared state.
package constraint

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/KadirKcbs/cobratoolbox/internal/diet"
	"github.com/KadirKcbs/cobratoolbox/internal/model"
)

// Reaction identifiers with fixed roles in every assembled community model.
const (
	CommunityBiomassReaction = "communityBiomass"
	FecalBiomassExchange     = "EX_microbeBiomass[fe]"
)

// openBound is the wide-open upper bound for transport and fecal/diet
// exchanges, large enough never to be the binding constraint.
const openBound = 1e6

// Params holds the scenario-independent policy knobs.
type Params struct {
	// CommunityBiomassLower bounds the community growth flux from below.
	CommunityBiomassLower float64

	// HostPresent enables the host bound rules.
	HostPresent bool

	// HostBiomassReaction is the adapted (Host_ prefixed) host growth
	// reaction. Required when HostPresent.
	HostBiomassReaction string

	// HostBiomassMax caps host growth flux.
	HostBiomassMax float64

	// Logger receives rule diagnostics. nil disables logging.
	Logger *slog.Logger
}

// Policy produces constrained copies of a community model.
type Policy struct {
	params Params
	log    *slog.Logger
}

// NewPolicy creates a constraint policy.
func NewPolicy(params Params) *Policy {
	if params.CommunityBiomassLower <= 0 {
		params.CommunityBiomassLower = 0.4
	}
	if params.HostBiomassMax <= 0 {
		params.HostBiomassMax = 1
	}
	log := params.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Policy{params: params, log: log}
}

// Apply returns a copy of the model bounded for one dietary scenario. Rules
// run in a fixed order; a missing required reaction is a structural error.
func (p *Policy) Apply(in *model.Model, sc diet.Scenario) (*model.Model, error) {
	m := in.Clone()

	// Rule 1: no unconstrained biomass production before the objective
	// bounds are set.
	for j := range m.Reactions {
		if m.Reactions[j].Role == model.RoleBiomass && m.Reactions[j].Lower < 0 {
			m.Reactions[j].Lower = 0
		}
	}

	// Rule 2: demands relax to 0, sinks clamp to -1 for every organism in
	// the community biomass equation, so bounds inherited from
	// single-organism context cannot produce false infeasibility.
	organisms, err := communityOrganisms(m)
	if err != nil {
		return nil, err
	}
	for j := range m.Reactions {
		r := &m.Reactions[j]
		if !hasOrganismPrefix(r.ID, organisms) {
			continue
		}
		switch r.Role {
		case model.RoleDemand:
			if r.Lower > 0 {
				r.Lower = 0
			}
		case model.RoleSink:
			if r.Lower < -1 {
				r.Lower = -1
			}
		}
	}

	// Rule 3: the objective is fecal community biomass export.
	if err := m.SetObjective(FecalBiomassExchange); err != nil {
		return nil, fmt.Errorf("constraint policy: %w", err)
	}

	// Rule 4: diet-facing exchanges move into the Diet_EX_ namespace so
	// scenario bounds cannot collide with fecal or lumen exchanges.
	for _, r := range m.Reactions {
		if r.Role == model.RoleExchange && strings.HasPrefix(r.ID, "EX_") && strings.HasSuffix(r.ID, "[d]") {
			if err := m.RenameReaction(r.ID, "Diet_"+r.ID); err != nil {
				return nil, fmt.Errorf("constraint policy: %w", err)
			}
		}
	}

	// Rule 5: bound community growth.
	cb := m.Reaction(CommunityBiomassReaction)
	if cb == nil {
		return nil, fmt.Errorf("constraint policy: required reaction %q not found", CommunityBiomassReaction)
	}
	cb.Lower = p.params.CommunityBiomassLower
	cb.Upper = 1

	// Rule 6: open transport and fecal/diet exchange capacity.
	for j := range m.Reactions {
		r := &m.Reactions[j]
		switch {
		case r.Role == model.RoleTransport:
			r.Upper = openBound
		case r.Role == model.RoleExchange && strings.HasSuffix(r.ID, "[fe]"):
			r.Upper = openBound
		case r.Role == model.RoleExchange && strings.HasPrefix(r.ID, "Diet_EX_"):
			r.Upper = openBound
		}
	}

	// Rule 7: host gating.
	if p.params.HostPresent {
		if err := p.applyHostRules(m); err != nil {
			return nil, err
		}
	}

	// Rule 8: the dietary scenario.
	p.applyScenario(m, sc)

	return m, nil
}

// communityOrganisms derives the organism name prefixes from the community
// biomass equation: each consumed metabolite is one organism's biomass
// species, prefixed with the organism name.
func communityOrganisms(m *model.Model) ([]string, error) {
	col := m.ReactionColumn(CommunityBiomassReaction)
	if col == nil {
		return nil, fmt.Errorf("constraint policy: required reaction %q not found", CommunityBiomassReaction)
	}
	var organisms []string
	for metID, coef := range col {
		if coef >= 0 {
			continue
		}
		base := model.Metabolite{ID: metID}.Base()
		if i := strings.LastIndex(base, "_"); i > 0 {
			organisms = append(organisms, base[:i])
		}
	}
	return organisms, nil
}

// hasOrganismPrefix reports whether a reaction identifier belongs to one of
// the named organisms.
func hasOrganismPrefix(rxnID string, organisms []string) bool {
	for _, org := range organisms {
		if strings.HasPrefix(rxnID, org+"_") {
			return true
		}
	}
	return false
}

// applyHostRules closes host blood and lumen uptake except for the curated
// allow-lists, and bounds host growth.
func (p *Policy) applyHostRules(m *model.Model) error {
	lumenAllow := make(map[string]bool, len(diet.HostLumenAllow))
	for _, base := range diet.HostLumenAllow {
		lumenAllow[compartmentHostLumenRxn(base)] = true
	}

	for j := range m.Reactions {
		r := &m.Reactions[j]
		switch {
		case r.Role == model.RoleExchange && strings.HasPrefix(r.ID, "Host_EX_") && strings.HasSuffix(r.ID, "[b]"):
			if lb, ok := diet.HostBloodAllow[r.ID]; ok {
				r.Lower = lb
			} else if r.Lower < 0 {
				r.Lower = 0
			}
		case r.Role == model.RoleTransport && strings.HasPrefix(r.ID, "Host_IEX_"):
			if lumenAllow[r.ID] {
				r.Lower = -1000
			} else if r.Lower < 0 {
				r.Lower = 0
			}
		}
	}

	hb := m.Reaction(p.params.HostBiomassReaction)
	if hb == nil {
		return fmt.Errorf("constraint policy: host biomass reaction %q not found", p.params.HostBiomassReaction)
	}
	hb.Lower = 0.001
	hb.Upper = p.params.HostBiomassMax
	return nil
}

// compartmentHostLumenRxn maps a base metabolite name to its host lumen
// transporter identifier.
func compartmentHostLumenRxn(base string) string {
	return "Host_IEX_" + base + "[u]tr"
}

// applyScenario sets the diet exchange lower bounds from the scenario and,
// when enabled, unlocks the human-derived gut metabolites.
func (p *Policy) applyScenario(m *model.Model, sc diet.Scenario) {
	applied := 0
	for j := range m.Reactions {
		r := &m.Reactions[j]
		if r.Role != model.RoleExchange || !strings.HasPrefix(r.ID, "Diet_EX_") {
			continue
		}
		if lb, ok := sc.Bound(r.ID); ok {
			r.Lower = lb
			applied++
		} else if sc.Kind != diet.Rich {
			// Metabolites absent from the diet are unavailable.
			r.Lower = 0
		}
	}

	if sc.IncludeHumanMets {
		for base, lb := range diet.HumanMets {
			if r := m.Reaction("Diet_EX_" + base + "[d]"); r != nil && r.Lower > lb {
				r.Lower = lb
			}
		}
	}

	p.log.Debug("diet scenario applied", "scenario", sc.Kind.Name(), "bounds", applied)
}
