package solver

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/KadirKcbs/cobratoolbox/internal/model"
)

// GLPKSolver solves flux-balance problems by shelling out to glpsol. The
// model is written in CPLEX LP format; the plain-text solution report is
// parsed back into reaction fluxes. Variables are emitted as x1..xn because
// LP format is stricter about identifier characters than metabolic
// reaction ids are.
type GLPKSolver struct {
	// Path is the glpsol executable. Empty means "glpsol" on PATH.
	Path string

	// TmpDir holds the per-solve LP and solution files. Empty means the
	// system temp directory.
	TmpDir string
}

// NewGLPKSolver creates a glpsol-backed solver.
func NewGLPKSolver(path string) *GLPKSolver {
	if path == "" {
		path = "glpsol"
	}
	return &GLPKSolver{Path: path}
}

// Solve writes the model as an LP, runs glpsol, and parses the report.
func (g *GLPKSolver) Solve(ctx context.Context, m *model.Model) (*Solution, error) {
	dir, err := os.MkdirTemp(g.TmpDir, "mgpipe-lp-")
	if err != nil {
		return nil, fmt.Errorf("glpk: %w", err)
	}
	defer os.RemoveAll(dir)

	lpPath := filepath.Join(dir, "model.lp")
	solPath := filepath.Join(dir, "model.sol")
	if err := writeLP(lpPath, m); err != nil {
		return nil, fmt.Errorf("glpk: %w", err)
	}

	cmd := exec.CommandContext(ctx, g.Path, "--lp", lpPath, "-o", solPath)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("glpk: glpsol: %w: %s", err, truncate(string(out)))
	}

	return parseSolution(solPath, m)
}

// writeLP emits the model in CPLEX LP format. The steady-state constraint
// S*v = 0 becomes one equality row per metabolite with at least one
// non-zero coefficient.
func writeLP(path string, m *model.Model) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	fmt.Fprintln(w, "Maximize")
	fmt.Fprint(w, " obj:")
	terms := 0
	for j, r := range m.Reactions {
		if r.Objective == 0 {
			continue
		}
		fmt.Fprintf(w, " %+g x%d", r.Objective, j+1)
		terms++
	}
	if terms == 0 {
		// LP format requires a non-empty objective.
		fmt.Fprint(w, " 0 x1")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Subject To")
	rows := make([][]string, len(m.Metabolites))
	m.S.Each(func(i, j int, v float64) {
		rows[i] = append(rows[i], fmt.Sprintf("%+g x%d", v, j+1))
	})
	for i, terms := range rows {
		if len(terms) == 0 {
			continue
		}
		fmt.Fprintf(w, " m%d: %s = 0\n", i+1, strings.Join(terms, " "))
	}

	fmt.Fprintln(w, "Bounds")
	for j, r := range m.Reactions {
		fmt.Fprintf(w, " %g <= x%d <= %g\n", r.Lower, j+1, r.Upper)
	}
	fmt.Fprintln(w, "End")
	return w.Flush()
}

// parseSolution reads a glpsol plain-text report, mapping column activities
// back to reaction ids.
func parseSolution(path string, m *model.Model) (*Solution, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("glpk: read solution: %w", err)
	}
	defer f.Close()

	sol := &Solution{
		Status: StatusInfeasible,
		Fluxes: make(map[string]float64, len(m.Reactions)),
	}

	inColumns := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "Status:"):
			if strings.Contains(line, "OPTIMAL") {
				sol.Status = StatusOptimal
			}
		case strings.HasPrefix(line, "Objective:"):
			// "Objective:  obj = 0.73 (MAXimum)"
			fields := strings.Fields(line)
			for i, field := range fields {
				if field == "=" && i+1 < len(fields) {
					if v, err := strconv.ParseFloat(fields[i+1], 64); err == nil {
						sol.Objective = v
					}
				}
			}
		case strings.Contains(line, "Column name"):
			inColumns = true
			scanner.Scan() // separator row
		case inColumns:
			if strings.TrimSpace(line) == "" {
				inColumns = false
				continue
			}
			fields := strings.Fields(line)
			// "No. Column name St Activity ..." rows; activity is the
			// fourth field when the status marker is present.
			if len(fields) < 4 || !strings.HasPrefix(fields[1], "x") {
				continue
			}
			idx, err := strconv.Atoi(strings.TrimPrefix(fields[1], "x"))
			if err != nil || idx < 1 || idx > len(m.Reactions) {
				continue
			}
			activity, err := strconv.ParseFloat(fields[3], 64)
			if err != nil {
				continue
			}
			sol.Fluxes[m.Reactions[idx-1].ID] = activity
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("glpk: read solution: %w", err)
	}
	if sol.Status != StatusOptimal {
		sol.Fluxes = nil
	}
	return sol, nil
}

// truncate limits backend output embedded in error messages.
func truncate(s string) string {
	const maxLen = 400
	s = strings.TrimSpace(s)
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
