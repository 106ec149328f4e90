package solver

import (
	"context"
	"sync"

	"github.com/KadirKcbs/cobratoolbox/internal/model"
)

// StubSolver is an injectable Solver for tests. A SolveFn, when set, fully
// controls the result; otherwise the stub reports an optimal solution whose
// objective value is the objective reaction's upper bound, with every other
// flux at zero. It records the models it was asked to solve.
type StubSolver struct {
	// SolveFn overrides the default behavior when non-nil.
	SolveFn func(m *model.Model) (*Solution, error)

	mu     sync.Mutex
	solves int
}

// Solve implements Solver.
func (s *StubSolver) Solve(ctx context.Context, m *model.Model) (*Solution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.solves++
	s.mu.Unlock()

	if s.SolveFn != nil {
		return s.SolveFn(m)
	}

	sol := &Solution{Status: StatusOptimal, Fluxes: make(map[string]float64)}
	for _, r := range m.Reactions {
		if r.Objective > 0 {
			// A positive-objective reaction pushed above its own capacity
			// makes the problem trivially infeasible.
			if r.Lower > r.Upper {
				return &Solution{Status: StatusInfeasible}, nil
			}
			sol.Objective = r.Upper
			sol.Fluxes[r.ID] = r.Upper
		}
	}
	return sol, nil
}

// Solves returns how many solves the stub has served.
func (s *StubSolver) Solves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.solves
}

// StubAnalyzer is an injectable VariabilityAnalyzer for tests.
type StubAnalyzer struct {
	// Ranges is returned for every requested reaction id that has an
	// entry; missing ids report a zero range.
	Ranges map[string]FluxRange
}

// FluxVariability implements VariabilityAnalyzer.
func (s *StubAnalyzer) FluxVariability(ctx context.Context, m *model.Model, rxnIDs []string, optFraction float64) (map[string]FluxRange, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[string]FluxRange, len(rxnIDs))
	for _, id := range rxnIDs {
		out[id] = s.Ranges[id]
	}
	return out, nil
}
