package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/KadirKcbs/cobratoolbox/internal/model"
)

func storedModel(t *testing.T) *model.Model {
	t.Helper()
	m := model.New("ecoli")
	m.AddMetabolite("glc[e]")
	m.AddMetabolite("glc[c]")
	if err := m.AddReaction(
		model.Reaction{ID: "EX_glc(e)", Lower: -10, Upper: 1000, Role: model.RoleExchange},
		map[string]float64{"glc[e]": -1},
	); err != nil {
		t.Fatal(err)
	}
	if err := m.AddReaction(
		model.Reaction{ID: "GLCt", Lower: 0, Upper: 1000, Objective: 1, GeneRule: "b1101"},
		map[string]float64{"glc[e]": -1, "glc[c]": 1},
	); err != nil {
		t.Fatal(err)
	}
	return m
}

// modelsEqual compares two models by their public content.
func modelsEqual(t *testing.T, want, got *model.Model) {
	t.Helper()
	if diff := cmp.Diff(want.Metabolites, got.Metabolites); diff != "" {
		t.Errorf("metabolites mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want.Reactions, got.Reactions, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("reactions mismatch (-want +got):\n%s", diff)
	}
	for _, r := range want.Reactions {
		for metID, coef := range want.ReactionColumn(r.ID) {
			if got.Stoich(metID, r.ID) != coef {
				t.Errorf("stoich(%s, %s) = %g, want %g", metID, r.ID, got.Stoich(metID, r.ID), coef)
			}
		}
	}
}

func eachStore(t *testing.T, fn func(t *testing.T, s ModelStore)) {
	t.Helper()
	t.Run("file", func(t *testing.T) {
		s, err := NewFileModelStore(t.TempDir())
		if err != nil {
			t.Fatal(err)
		}
		defer s.Close()
		fn(t, s)
	})
	t.Run("sqlite", func(t *testing.T) {
		s, err := NewSQLiteModelStore(t.TempDir())
		if err != nil {
			t.Fatal(err)
		}
		defer s.Close()
		fn(t, s)
	})
}

func TestModelStore_OrganismRoundTrip(t *testing.T) {
	eachStore(t, func(t *testing.T, s ModelStore) {
		ctx := context.Background()
		want := storedModel(t)
		if err := s.SaveOrganism(ctx, "ecoli", want); err != nil {
			t.Fatal(err)
		}
		got, err := s.LoadOrganism(ctx, "ecoli")
		if err != nil {
			t.Fatal(err)
		}
		modelsEqual(t, want, got)
		if err := got.Validate(); err != nil {
			t.Errorf("loaded model invalid: %v", err)
		}
	})
}

func TestModelStore_LoadMissingOrganism(t *testing.T) {
	eachStore(t, func(t *testing.T, s ModelStore) {
		_, err := s.LoadOrganism(context.Background(), "missing")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})
}

func TestModelStore_CommunityRoundTrip(t *testing.T) {
	eachStore(t, func(t *testing.T, s ModelStore) {
		ctx := context.Background()
		m := storedModel(t)

		ok, err := s.HasCommunity(ctx, "S1", false)
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			t.Error("community should not exist before save")
		}

		if err := s.SaveCommunity(ctx, "S1", m, false); err != nil {
			t.Fatal(err)
		}
		ok, err = s.HasCommunity(ctx, "S1", false)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Error("community should exist after save")
		}

		// The host-coupled variant is a separate entry.
		ok, err = s.HasCommunity(ctx, "S1", true)
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			t.Error("host-coupled community should be stored separately")
		}

		got, err := s.LoadCommunity(ctx, "S1", false)
		if err != nil {
			t.Fatal(err)
		}
		modelsEqual(t, m, got)
	})
}

func TestModelStore_SaveOverwrites(t *testing.T) {
	eachStore(t, func(t *testing.T, s ModelStore) {
		ctx := context.Background()
		m := storedModel(t)
		if err := s.SaveOrganism(ctx, "ecoli", m); err != nil {
			t.Fatal(err)
		}

		m2 := m.Clone()
		m2.Reaction("GLCt").Upper = 500
		if err := s.SaveOrganism(ctx, "ecoli", m2); err != nil {
			t.Fatal(err)
		}
		got, err := s.LoadOrganism(ctx, "ecoli")
		if err != nil {
			t.Fatal(err)
		}
		if got.Reaction("GLCt").Upper != 500 {
			t.Error("second save did not replace the first")
		}
	})
}
