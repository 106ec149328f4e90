// Package simulate orchestrates the pipeline's outer loop: per-sample
// community assembly, scenario constraint application, solving,
// infeasibility classification, flux profiling, and checkpointing.
package simulate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/KadirKcbs/cobratoolbox/internal/compartment"
	"github.com/KadirKcbs/cobratoolbox/internal/constraint"
	"github.com/KadirKcbs/cobratoolbox/internal/merge"
	"github.com/KadirKcbs/cobratoolbox/internal/model"
	"github.com/KadirKcbs/cobratoolbox/internal/store"
)

// Assembler builds per-sample community models: organism models are
// adapted, merged through the merge tree, coupled to the host when
// configured, glued to the diet/fecal compartments, and topped with the
// community biomass equation.
type Assembler struct {
	store     store.ModelStore
	hostModel string
	workers   int
	seqLimit  int
	log       *slog.Logger
}

// AssemblerOptions configures community assembly.
type AssemblerOptions struct {
	// HostModel is the host model name in the organism store. Empty
	// disables host coupling.
	HostModel string

	// Workers bounds concurrent merges within one tree level.
	Workers int

	// SequentialThreshold switches the merge tree to a sequential fold.
	SequentialThreshold int

	// Logger receives progress events. nil disables logging.
	Logger *slog.Logger
}

// NewAssembler creates a community assembler backed by a model store.
func NewAssembler(ms store.ModelStore, opts AssemblerOptions) *Assembler {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Assembler{
		store:     ms,
		hostModel: opts.HostModel,
		workers:   opts.Workers,
		seqLimit:  opts.SequentialThreshold,
		log:       log,
	}
}

// Community assembles one sample's community model from the named organisms
// and their abundances. Abundances weight the community biomass equation; a
// nil or incomplete map defaults missing organisms to equal weight.
func (a *Assembler) Community(ctx context.Context, sampleID string, organisms []string, abundances map[string]float64) (*model.Model, error) {
	if len(organisms) == 0 {
		return nil, fmt.Errorf("assemble %s: no organisms in sample", sampleID)
	}

	loader := func(ctx context.Context, name string) (*model.Model, error) {
		m, err := a.store.LoadOrganism(ctx, name)
		if err != nil {
			return nil, err
		}
		return compartment.AdaptOrganism(m, name)
	}
	sched := merge.NewScheduler(loader, merge.Options{
		Mode:                merge.ModeGlue,
		Workers:             a.workers,
		SequentialThreshold: a.seqLimit,
		Logger:              a.log,
	})

	community, err := sched.Build(ctx, organisms)
	if err != nil {
		return nil, fmt.Errorf("assemble %s: %w", sampleID, err)
	}

	if a.hostModel != "" {
		host, err := a.store.LoadOrganism(ctx, a.hostModel)
		if err != nil {
			return nil, fmt.Errorf("assemble %s: load host: %w", sampleID, err)
		}
		adapted, err := compartment.AdaptHost(host)
		if err != nil {
			return nil, fmt.Errorf("assemble %s: %w", sampleID, err)
		}
		community, err = merge.Merge(community, adapted, merge.ModeGlue, false)
		if err != nil {
			return nil, fmt.Errorf("assemble %s: couple host: %w", sampleID, err)
		}
	}

	comp, err := compartment.Build(lumenMetabolites(community), nil)
	if err != nil {
		return nil, fmt.Errorf("assemble %s: %w", sampleID, err)
	}
	community, err = merge.Merge(community, comp, merge.ModeGlue, false)
	if err != nil {
		return nil, fmt.Errorf("assemble %s: attach compartments: %w", sampleID, err)
	}

	if err := addCommunityBiomass(community, organisms, abundances); err != nil {
		return nil, fmt.Errorf("assemble %s: %w", sampleID, err)
	}

	community.Name = sampleID
	if err := community.Validate(); err != nil {
		return nil, fmt.Errorf("assemble %s: %w", sampleID, err)
	}
	a.log.Info("community assembled",
		"sample", sampleID,
		"organisms", len(organisms),
		"metabolites", len(community.Metabolites),
		"reactions", len(community.Reactions))
	return community, nil
}

// lumenMetabolites returns the shared lumen base names present in the
// community, in sorted order.
func lumenMetabolites(m *model.Model) []string {
	var ids []string
	for _, met := range m.Metabolites {
		if met.Compartment() == "u" {
			ids = append(ids, met.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

// addCommunityBiomass appends the aggregate growth equation: each
// organism's biomass species is consumed in proportion to its abundance,
// producing the community biomass metabolite, which leaves the system
// through the lumen -> fecal chain and the fecal exchange the constraint
// policy uses as objective.
func addCommunityBiomass(m *model.Model, organisms []string, abundances map[string]float64) error {
	stoich := make(map[string]float64, len(organisms)+1)
	uniform := 1.0 / float64(len(organisms))
	for _, org := range organisms {
		metID, err := organismBiomassMet(m, org)
		if err != nil {
			return err
		}
		weight, ok := abundances[org]
		if !ok || weight <= 0 {
			weight = uniform
		}
		stoich[metID] = -weight
	}

	u := compartment.BiomassMetabolite + "[u]"
	fe := compartment.BiomassMetabolite + "[fe]"
	m.AddMetabolite(u)
	m.AddMetabolite(fe)
	stoich[u] = 1

	steps := []struct {
		rxn    model.Reaction
		stoich map[string]float64
	}{
		{
			rxn: model.Reaction{
				ID:    constraint.CommunityBiomassReaction,
				Lower: 0,
				Upper: model.DefaultUpperBound,
				Role:  model.RoleBiomass,
			},
			stoich: stoich,
		},
		{
			rxn: model.Reaction{
				ID:    "UFEt_" + compartment.BiomassMetabolite,
				Lower: 0,
				Upper: model.DefaultUpperBound,
				Role:  model.RoleTransport,
			},
			stoich: map[string]float64{u: -1, fe: 1},
		},
		{
			rxn: model.Reaction{
				ID:    constraint.FecalBiomassExchange,
				Lower: model.DefaultLowerBound,
				Upper: model.DefaultUpperBound,
				Role:  model.RoleExchange,
			},
			stoich: map[string]float64{fe: -1},
		},
	}
	for _, step := range steps {
		if err := m.AddReaction(step.rxn, step.stoich); err != nil {
			return err
		}
	}
	return nil
}

// organismBiomassMet locates the biomass species an organism's growth
// reaction produces. When the growth reaction also produces byproducts
// (ADP, phosphate), the species named like biomass wins.
func organismBiomassMet(m *model.Model, org string) (string, error) {
	for _, r := range m.Reactions {
		if r.Role != model.RoleBiomass {
			continue
		}
		if !strings.HasPrefix(r.ID, org+"_") {
			continue
		}
		fallback := ""
		for metID, coef := range m.ReactionColumn(r.ID) {
			if coef <= 0 {
				continue
			}
			if strings.Contains(strings.ToLower(metID), "biomass") {
				return metID, nil
			}
			if fallback == "" || metID < fallback {
				fallback = metID
			}
		}
		if fallback != "" {
			return fallback, nil
		}
		return "", fmt.Errorf("biomass reaction %q produces no metabolite", r.ID)
	}
	return "", fmt.Errorf("organism %q has no biomass reaction in the community", org)
}
