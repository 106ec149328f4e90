// Package solver defines the linear-program solve interface the simulation
// driver depends on, together with a GLPK command-line adapter, a generic
// flux-variability analyzer built on any Solver, and an injectable stub for
// tests. The optimization itself is an external collaborator: this package
// only shapes problems, invokes a backend, and interprets results.
package solver

import (
	"context"

	"github.com/KadirKcbs/cobratoolbox/internal/model"
)

// Status classifies a solve outcome. Any backend status other than a
// defined optimal solution is treated as infeasible.
type Status int

const (
	StatusOptimal Status = iota
	StatusInfeasible
)

// String returns the status name.
func (s Status) String() string {
	if s == StatusOptimal {
		return "optimal"
	}
	return "infeasible"
}

// Solution is the result of one solve.
type Solution struct {
	Status    Status
	Objective float64
	// Fluxes maps reaction id to primal flux value. Empty for infeasible
	// solves.
	Fluxes map[string]float64
}

// Feasible reports whether the solution carries a usable optimum.
func (s *Solution) Feasible() bool {
	return s != nil && s.Status == StatusOptimal
}

// Solver maximizes a model's objective subject to its stoichiometric
// steady-state constraints and flux bounds.
type Solver interface {
	Solve(ctx context.Context, m *model.Model) (*Solution, error)
}

// FluxRange is the reachable flux interval of one reaction under a
// near-optimal objective constraint.
type FluxRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// VariabilityAnalyzer computes flux ranges for a set of reactions while the
// objective is held within optFraction of its optimum.
type VariabilityAnalyzer interface {
	FluxVariability(ctx context.Context, m *model.Model, rxnIDs []string, optFraction float64) (map[string]FluxRange, error)
}
