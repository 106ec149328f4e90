package solver

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/KadirKcbs/cobratoolbox/internal/model"
)

// Analyzer computes flux variability with any Solver backend: the model's
// objective is first maximized, then fixed to at least optFraction of the
// optimum while each target reaction is minimized and maximized in turn.
// Per-reaction solves are independent and run under a bounded worker pool.
type Analyzer struct {
	solver  Solver
	workers int
}

// NewAnalyzer creates a flux-variability analyzer. workers < 1 means
// sequential solves.
func NewAnalyzer(s Solver, workers int) *Analyzer {
	if workers < 1 {
		workers = 1
	}
	return &Analyzer{solver: s, workers: workers}
}

// FluxVariability returns the (min, max) flux range per reaction id under a
// near-optimal objective constraint. Reactions whose sub-problem is
// infeasible report a zero range.
func (a *Analyzer) FluxVariability(ctx context.Context, m *model.Model, rxnIDs []string, optFraction float64) (map[string]FluxRange, error) {
	if optFraction <= 0 || optFraction > 1 {
		return nil, fmt.Errorf("fva: optFraction must be in (0, 1], got %g", optFraction)
	}

	base, err := a.solver.Solve(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("fva: base solve: %w", err)
	}
	if !base.Feasible() {
		return nil, fmt.Errorf("fva: base problem is infeasible")
	}

	// Pin the original objective near its optimum, then retarget the
	// objective per reaction.
	pinned := m.Clone()
	objID := ""
	for _, r := range pinned.Reactions {
		if r.Objective != 0 {
			objID = r.ID
			break
		}
	}
	if objID == "" {
		return nil, fmt.Errorf("fva: model has no objective reaction")
	}
	obj := pinned.Reaction(objID)
	floor := optFraction * base.Objective
	if base.Objective < 0 {
		floor = base.Objective / optFraction
	}
	if obj.Lower < floor {
		obj.Lower = floor
	}

	ranges := make(map[string]FluxRange, len(rxnIDs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	ids := append([]string(nil), rxnIDs...)
	sort.Strings(ids)
	for _, id := range ids {
		if !pinned.HasReaction(id) {
			return nil, fmt.Errorf("fva: reaction %q not found", id)
		}
		g.Go(func() error {
			r, err := a.rangeFor(gctx, pinned, id)
			if err != nil {
				return err
			}
			mu.Lock()
			ranges[id] = r
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ranges, nil
}

// rangeFor minimizes and maximizes one reaction's flux on a copy of the
// pinned model.
func (a *Analyzer) rangeFor(ctx context.Context, pinned *model.Model, rxnID string) (FluxRange, error) {
	maxModel := pinned.Clone()
	if err := maxModel.SetObjective(rxnID); err != nil {
		return FluxRange{}, fmt.Errorf("fva: %w", err)
	}
	maxSol, err := a.solver.Solve(ctx, maxModel)
	if err != nil {
		return FluxRange{}, fmt.Errorf("fva: maximize %s: %w", rxnID, err)
	}

	minModel := maxModel.Clone()
	minModel.Reaction(rxnID).Objective = -1
	minSol, err := a.solver.Solve(ctx, minModel)
	if err != nil {
		return FluxRange{}, fmt.Errorf("fva: minimize %s: %w", rxnID, err)
	}

	var r FluxRange
	if maxSol.Feasible() {
		r.Max = maxSol.Objective
	}
	if minSol.Feasible() {
		// The backend maximizes; a -1 objective coefficient turns the
		// reported optimum into the negated minimum.
		r.Min = -minSol.Objective
	}
	return r, nil
}
