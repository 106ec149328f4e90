package constraint

import (
	"testing"

	"github.com/KadirKcbs/cobratoolbox/internal/diet"
	"github.com/KadirKcbs/cobratoolbox/internal/model"
)

// communityFixture builds a minimal assembled community: one organism with
// biomass, demand, and sink reactions, a glc diet/fecal chain, the community
// biomass equation, and its fecal exchange.
func communityFixture(t *testing.T) *model.Model {
	t.Helper()
	m := model.New("S1")
	for _, id := range []string{
		"glc[d]", "glc[u]", "glc[fe]",
		"org1_glc[c]", "org1_atp[c]", "org1_gthrd[c]",
		"org1_biomass[c]", "microbeBiomass[u]", "microbeBiomass[fe]",
	} {
		m.AddMetabolite(id)
	}

	add := func(rxn model.Reaction, stoich map[string]float64) {
		t.Helper()
		rxn.Role = model.ClassifyReaction(rxn.ID)
		if err := m.AddReaction(rxn, stoich); err != nil {
			t.Fatal(err)
		}
	}

	add(model.Reaction{ID: "EX_glc[d]", Lower: -1000, Upper: 1000},
		map[string]float64{"glc[d]": -1})
	add(model.Reaction{ID: "DUt_glc", Lower: 0, Upper: 1000},
		map[string]float64{"glc[d]": -1, "glc[u]": 1})
	add(model.Reaction{ID: "UFEt_glc", Lower: 0, Upper: 1000},
		map[string]float64{"glc[u]": -1, "glc[fe]": 1})
	add(model.Reaction{ID: "EX_glc[fe]", Lower: -1000, Upper: 1000},
		map[string]float64{"glc[fe]": -1})

	add(model.Reaction{ID: "org1_IEX_glc[u]tr", Lower: -1000, Upper: 1000},
		map[string]float64{"glc[u]": -1, "org1_glc[c]": 1})
	add(model.Reaction{ID: "org1_biomass525", Lower: -1000, Upper: 1000},
		map[string]float64{"org1_glc[c]": -1, "org1_biomass[c]": 1})
	add(model.Reaction{ID: "org1_DM_atp[c]", Lower: 2, Upper: 1000},
		map[string]float64{"org1_atp[c]": -1})
	add(model.Reaction{ID: "org1_sink_gthrd[c]", Lower: -50, Upper: 1000},
		map[string]float64{"org1_gthrd[c]": -1})

	// The assembler sets these roles explicitly rather than by
	// classification.
	addRole := func(rxn model.Reaction, role model.Role, stoich map[string]float64) {
		t.Helper()
		rxn.Role = role
		if err := m.AddReaction(rxn, stoich); err != nil {
			t.Fatal(err)
		}
	}
	addRole(model.Reaction{ID: CommunityBiomassReaction, Lower: 0, Upper: 1000}, model.RoleBiomass,
		map[string]float64{"org1_biomass[c]": -1, "microbeBiomass[u]": 1})
	addRole(model.Reaction{ID: "UFEt_microbeBiomass", Lower: 0, Upper: 1000}, model.RoleTransport,
		map[string]float64{"microbeBiomass[u]": -1, "microbeBiomass[fe]": 1})
	addRole(model.Reaction{ID: FecalBiomassExchange, Lower: -1000, Upper: 1000}, model.RoleExchange,
		map[string]float64{"microbeBiomass[fe]": -1})
	return m
}

func standardScenario(table *diet.Table) diet.Scenario {
	return diet.Scenario{Kind: diet.Standard, Table: table}
}

func TestPolicy_Apply_CoreRules(t *testing.T) {
	m := communityFixture(t)
	table := &diet.Table{Fluxes: map[string]float64{"Diet_EX_glc[d]": -10}}
	p := NewPolicy(Params{CommunityBiomassLower: 0.4})

	out, err := p.Apply(m, standardScenario(table))
	if err != nil {
		t.Fatal(err)
	}

	// The input model must not be touched.
	if m.Reaction("org1_biomass525").Lower != -1000 {
		t.Error("Apply mutated its input")
	}
	if m.HasReaction("Diet_EX_glc[d]") {
		t.Error("Apply renamed reactions on its input")
	}

	if out.Reaction("org1_biomass525").Lower != 0 {
		t.Error("biomass lower bound should be raised to 0")
	}
	if out.Reaction("org1_DM_atp[c]").Lower != 0 {
		t.Error("organism demand lower bound should relax to 0")
	}
	if out.Reaction("org1_sink_gthrd[c]").Lower != -1 {
		t.Error("organism sink lower bound should clamp to -1")
	}

	if out.Reaction(FecalBiomassExchange).Objective != 1 {
		t.Error("objective should be the fecal biomass exchange")
	}
	cb := out.Reaction(CommunityBiomassReaction)
	if cb.Lower != 0.4 || cb.Upper != 1 {
		t.Errorf("community biomass bounds = [%g, %g], want [0.4, 1]", cb.Lower, cb.Upper)
	}

	dietEx := out.Reaction("Diet_EX_glc[d]")
	if dietEx == nil {
		t.Fatal("diet exchange should be renamed into the Diet_EX_ namespace")
	}
	if dietEx.Lower != -10 {
		t.Errorf("diet exchange lower bound = %g, want -10 from the table", dietEx.Lower)
	}
	if dietEx.Upper != 1e6 {
		t.Errorf("diet exchange upper bound = %g, want opened", dietEx.Upper)
	}
	if out.Reaction("DUt_glc").Upper != 1e6 {
		t.Error("transporter upper bound should be opened")
	}
	if out.Reaction("EX_glc[fe]").Upper != 1e6 {
		t.Error("fecal exchange upper bound should be opened")
	}
}

func TestPolicy_Apply_RichDietOpensEverything(t *testing.T) {
	m := communityFixture(t)
	p := NewPolicy(Params{})

	out, err := p.Apply(m, diet.Scenario{Kind: diet.Rich})
	if err != nil {
		t.Fatal(err)
	}
	if got := out.Reaction("Diet_EX_glc[d]").Lower; got != -1000 {
		t.Errorf("rich diet lower bound = %g, want -1000", got)
	}
}

func TestPolicy_Apply_AbsentMetaboliteClosed(t *testing.T) {
	m := communityFixture(t)
	// Empty diet: glc is absent and must be unavailable.
	table := &diet.Table{Fluxes: map[string]float64{}}
	p := NewPolicy(Params{})

	out, err := p.Apply(m, standardScenario(table))
	if err != nil {
		t.Fatal(err)
	}
	if got := out.Reaction("Diet_EX_glc[d]").Lower; got != 0 {
		t.Errorf("absent diet metabolite lower bound = %g, want 0", got)
	}
}

func TestPolicy_Apply_MissingCommunityBiomass(t *testing.T) {
	m := communityFixture(t)
	m.RemoveReactions([]string{CommunityBiomassReaction})
	p := NewPolicy(Params{})
	if _, err := p.Apply(m, diet.Scenario{Kind: diet.Rich}); err == nil {
		t.Error("expected structural error for missing community biomass reaction")
	}
}

func TestPolicy_Apply_HostRules(t *testing.T) {
	m := communityFixture(t)
	for _, id := range []string{"Host_h2o[e]", "Host_h2o[b]", "Host_pheme[e]", "Host_pheme[b]", "Host_gchola[e]", "gchola[u]", "Host_biomass[c]"} {
		m.AddMetabolite(id)
	}
	add := func(rxn model.Reaction, stoich map[string]float64) {
		t.Helper()
		rxn.Role = model.ClassifyReaction(rxn.ID)
		if err := m.AddReaction(rxn, stoich); err != nil {
			t.Fatal(err)
		}
	}
	add(model.Reaction{ID: "Host_EX_h2o[b]", Lower: -1000, Upper: 1000},
		map[string]float64{"Host_h2o[e]": -1, "Host_h2o[b]": 1})
	add(model.Reaction{ID: "Host_EX_pheme[b]", Lower: -1000, Upper: 1000},
		map[string]float64{"Host_pheme[e]": -1, "Host_pheme[b]": 1})
	add(model.Reaction{ID: "Host_IEX_gchola[u]tr", Lower: 0, Upper: 1000},
		map[string]float64{"gchola[u]": -1, "Host_gchola[e]": 1})
	add(model.Reaction{ID: "Host_biomass_reactionIEC01b", Lower: 0, Upper: 1000},
		map[string]float64{"Host_gchola[e]": -1, "Host_biomass[c]": 1})

	p := NewPolicy(Params{
		HostPresent:         true,
		HostBiomassReaction: "Host_biomass_reactionIEC01b",
		HostBiomassMax:      1,
	})
	out, err := p.Apply(m, diet.Scenario{Kind: diet.Rich})
	if err != nil {
		t.Fatal(err)
	}

	if got := out.Reaction("Host_EX_h2o[b]").Lower; got != -100 {
		t.Errorf("allow-listed blood exchange lower bound = %g, want -100", got)
	}
	if got := out.Reaction("Host_EX_pheme[b]").Lower; got != 0 {
		t.Errorf("blocked blood exchange lower bound = %g, want 0", got)
	}
	if got := out.Reaction("Host_IEX_gchola[u]tr").Lower; got != -1000 {
		t.Errorf("bile acid lumen transporter lower bound = %g, want -1000", got)
	}
	hb := out.Reaction("Host_biomass_reactionIEC01b")
	if hb.Lower != 0.001 || hb.Upper != 1 {
		t.Errorf("host biomass bounds = [%g, %g], want [0.001, 1]", hb.Lower, hb.Upper)
	}
}
