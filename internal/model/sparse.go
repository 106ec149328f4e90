package model

// Sparse is a sparse matrix stored column-major: one map of row index to
// coefficient per column. Rows index metabolites, columns index reactions.
// Column-major storage keeps model merges linear in the number of non-zero
// entries, since a merge is column concatenation with row remapping.
// Zero entries are never stored: Set with a zero value deletes the entry.
type Sparse struct {
	rows int
	cols []map[int]float64
}

// NewSparse creates an empty rows x cols sparse matrix.
func NewSparse(rows, cols int) *Sparse {
	return &Sparse{
		rows: rows,
		cols: make([]map[int]float64, cols),
	}
}

// Rows returns the number of rows (metabolites).
func (s *Sparse) Rows() int { return s.rows }

// Cols returns the number of columns (reactions).
func (s *Sparse) Cols() int { return len(s.cols) }

// NNZ returns the number of stored (non-zero) entries.
func (s *Sparse) NNZ() int {
	n := 0
	for _, col := range s.cols {
		n += len(col)
	}
	return n
}

// At returns the coefficient at (i, j). Out-of-range indices return 0.
func (s *Sparse) At(i, j int) float64 {
	if j < 0 || j >= len(s.cols) || s.cols[j] == nil {
		return 0
	}
	return s.cols[j][i]
}

// Set stores the coefficient at (i, j). Setting 0 removes the entry.
// Indices out of range are ignored; Grow first.
func (s *Sparse) Set(i, j int, v float64) {
	if i < 0 || i >= s.rows || j < 0 || j >= len(s.cols) {
		return
	}
	if v == 0 {
		delete(s.cols[j], i)
		return
	}
	if s.cols[j] == nil {
		s.cols[j] = make(map[int]float64, 4)
	}
	s.cols[j][i] = v
}

// Grow extends the matrix dimensions. Existing entries keep their indices.
// Shrinking is not supported; smaller values are ignored.
func (s *Sparse) Grow(rows, cols int) {
	if rows > s.rows {
		s.rows = rows
	}
	for len(s.cols) < cols {
		s.cols = append(s.cols, nil)
	}
}

// Each calls fn for every stored entry. Iteration order is unspecified.
func (s *Sparse) Each(fn func(i, j int, v float64)) {
	for j, col := range s.cols {
		for i, v := range col {
			fn(i, j, v)
		}
	}
}

// Column returns the non-zero entries of column j keyed by row index.
// The returned map is a copy; mutating it does not affect the matrix.
func (s *Sparse) Column(j int) map[int]float64 {
	col := make(map[int]float64, len(s.cols[j]))
	for i, v := range s.cols[j] {
		col[i] = v
	}
	return col
}

// Clone returns a deep copy of the matrix.
func (s *Sparse) Clone() *Sparse {
	out := &Sparse{
		rows: s.rows,
		cols: make([]map[int]float64, len(s.cols)),
	}
	for j, col := range s.cols {
		if col == nil {
			continue
		}
		cp := make(map[int]float64, len(col))
		for i, v := range col {
			cp[i] = v
		}
		out.cols[j] = cp
	}
	return out
}
