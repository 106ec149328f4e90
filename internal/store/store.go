// Package store provides model persistence: organism models addressed by
// name, and per-sample community models addressed by sample id with an
// optional host-coupled variant. Two implementations exist, a JSON file
// store and a SQLite store.
package store

import (
	"context"
	"errors"

	"github.com/KadirKcbs/cobratoolbox/internal/model"
)

// ErrNotFound is returned when a requested model does not exist.
var ErrNotFound = errors.New("model not found")

// ModelStore persists and loads stoichiometric models.
type ModelStore interface {
	// LoadOrganism loads a single organism model by name.
	LoadOrganism(ctx context.Context, name string) (*model.Model, error)

	// SaveOrganism persists a single organism model under its name.
	SaveOrganism(ctx context.Context, name string, m *model.Model) error

	// SaveCommunity persists a sample's assembled community model.
	SaveCommunity(ctx context.Context, sampleID string, m *model.Model, hostCoupled bool) error

	// LoadCommunity loads a sample's assembled community model.
	LoadCommunity(ctx context.Context, sampleID string, hostCoupled bool) (*model.Model, error)

	// HasCommunity reports whether a community model is already persisted.
	HasCommunity(ctx context.Context, sampleID string, hostCoupled bool) (bool, error)

	// Close releases store resources.
	Close() error
}

// modelJSON is the serialized model layout shared by both stores: entry
// triplets keep the stoichiometry sparse on disk.
type modelJSON struct {
	Name        string             `json:"name"`
	Metabolites []model.Metabolite `json:"metabolites"`
	Reactions   []model.Reaction   `json:"reactions"`
	Stoich      []stoichEntry      `json:"stoichiometry"`
}

type stoichEntry struct {
	Met  int     `json:"i"`
	Rxn  int     `json:"j"`
	Coef float64 `json:"v"`
}

// encodeModel converts a model to its serialized form.
func encodeModel(m *model.Model) modelJSON {
	enc := modelJSON{
		Name:        m.Name,
		Metabolites: m.Metabolites,
		Reactions:   m.Reactions,
		Stoich:      make([]stoichEntry, 0, m.S.NNZ()),
	}
	m.S.Each(func(i, j int, v float64) {
		enc.Stoich = append(enc.Stoich, stoichEntry{Met: i, Rxn: j, Coef: v})
	})
	return enc
}

// decodeModel rebuilds a model from its serialized form and validates the
// structural invariants.
func decodeModel(enc modelJSON) (*model.Model, error) {
	m := model.New(enc.Name)
	for _, met := range enc.Metabolites {
		m.AddMetabolite(met.ID)
	}
	m.Reactions = enc.Reactions
	m.S.Grow(len(enc.Metabolites), len(enc.Reactions))
	if err := m.Rebuild(); err != nil {
		return nil, err
	}
	for _, e := range enc.Stoich {
		m.S.Set(e.Met, e.Rxn, e.Coef)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}
