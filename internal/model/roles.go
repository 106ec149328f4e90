package model

import "strings"

// Role classifies a reaction's structural function. Classification from
// identifier patterns happens once, in ClassifyReaction or NormalizeRoles;
// downstream policy code switches on the typed role, never on substrings.
type Role int

const (
	// RoleInternal is an ordinary intracellular conversion.
	RoleInternal Role = iota

	// RoleBiomass is a growth reaction (organism, host, or community).
	RoleBiomass

	// RoleExchange creates or removes a metabolite at a system boundary.
	RoleExchange

	// RoleDemand is an irreversible drain reaction (DM_ prefix).
	RoleDemand

	// RoleSink is a reversible accumulation reaction (sink_ prefix).
	RoleSink

	// RoleTransport moves a metabolite between compartments.
	RoleTransport
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleBiomass:
		return "biomass"
	case RoleExchange:
		return "exchange"
	case RoleDemand:
		return "demand"
	case RoleSink:
		return "sink"
	case RoleTransport:
		return "transport"
	default:
		return "internal"
	}
}

// exchangePrefixes are the identifier prefixes that mark boundary exchange
// reactions, including host and diet namespaced variants.
var exchangePrefixes = []string{"Diet_EX_", "Host_EX_", "EX_"}

// transportPrefixes mark the synthesized compartment transporters and the
// host/organism lumen connectors.
var transportPrefixes = []string{"DUt_", "UFEt_", "Host_IEX_"}

// ClassifyReaction maps a reaction identifier to its structural role.
// Organism-prefixed identifiers (e.g. "Bacteroides_sp_DM_q8") classify the
// same as their unprefixed forms.
func ClassifyReaction(id string) Role {
	if strings.Contains(strings.ToLower(id), "biomass") {
		return RoleBiomass
	}
	for _, p := range exchangePrefixes {
		if strings.HasPrefix(id, p) {
			return RoleExchange
		}
	}
	for _, p := range transportPrefixes {
		if strings.HasPrefix(id, p) {
			return RoleTransport
		}
	}
	// Organism-namespaced lumen connectors end in "tr" and carry an IEX tag.
	if strings.Contains(id, "IEX_") && strings.HasSuffix(id, "tr") {
		return RoleTransport
	}
	// Strip a single organism prefix and re-check demand/sink/exchange tags.
	tail := id
	if i := strings.Index(id, "_"); i > 0 {
		tail = id[i+1:]
	}
	switch {
	case strings.HasPrefix(id, "DM_") || strings.HasPrefix(tail, "DM_"):
		return RoleDemand
	case strings.HasPrefix(id, "sink_") || strings.HasPrefix(tail, "sink_"):
		return RoleSink
	case strings.HasPrefix(tail, "EX_"):
		return RoleExchange
	}
	return RoleInternal
}

// NormalizeRoles assigns a role to every reaction that does not already have
// a non-internal role. Models built by this pipeline set roles explicitly;
// this is the one-time normalization step for externally loaded models.
func NormalizeRoles(m *Model) {
	for j := range m.Reactions {
		if m.Reactions[j].Role == RoleInternal {
			m.Reactions[j].Role = ClassifyReaction(m.Reactions[j].ID)
		}
	}
}
