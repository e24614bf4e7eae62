// Package lu maintains a sparse LU factorization of a simplex basis.
//
// The basis B is factorized as L^-1 B = U with row operations recorded as
// column etas (L) and pivot rows (U). Basis changes are applied as product
// form etas on top of the factorization until the update count or the
// growth metric asks for a fresh factorization.
package lu

import (
	"math"
	"slices"

	"q.log/milp/sparse"
)

type Options struct {
	// PivotThreshold u accepts a pivot a_ic when |a_ic| >= u * max_i |a_ic|.
	PivotThreshold float64
	// SingularTol is the smallest magnitude accepted as a pivot.
	SingularTol float64
	// DropTol removes fill-in below this magnitude.
	DropTol float64
	// MaxUpdates is the number of etas kept before a refactorization is requested.
	MaxUpdates int
	// GrowthLimit bounds max|eta| / |eta pivot| over the update sequence.
	GrowthLimit float64
}

func DefaultOptions() Options {
	return Options{
		PivotThreshold: 0.1,
		SingularTol:    1e-11,
		DropTol:        1e-14,
		MaxUpdates:     50,
		GrowthLimit:    1e10,
	}
}

// entry is one multiplier of an L eta or one off-diagonal of a U row.
type entry struct {
	i int
	v float64
}

type updateEta struct {
	p     int
	pivot float64
	alpha []entry
}

// Factor is an LU factorization of an m x m basis.
type Factor struct {
	opts Options
	m    int

	prow  []int // row pivoted at step k
	pcol  []int // basis position pivoted at step k
	lEtas [][]entry
	uDiag []float64
	uRows [][]entry // off-diagonals of U row k, indexed by basis position

	etas []updateEta

	valid     bool
	maxB      float64
	maxU      float64
	etaGrowth float64
}

func New(m int, opts Options) *Factor {
	return &Factor{opts: opts, m: m}
}

func (f *Factor) Dim() int { return f.m }

// Valid reports whether the factorization can be used for solves.
func (f *Factor) Valid() bool { return f.valid }

// Factorize computes a fresh factorization of the basis whose columns are cols.
// Each column is indexed by row. On a *SingularError the factor is invalid.
func (f *Factor) Factorize(cols []sparse.Vector) error {
	m := f.m
	f.valid = false
	f.etas = f.etas[:0]
	f.etaGrowth = 0
	if len(cols) != m {
		return ErrDimension
	}

	rows := make([]map[int]float64, m)
	colRows := make([]map[int]struct{}, m)
	for i := range rows {
		rows[i] = make(map[int]float64)
		colRows[i] = make(map[int]struct{})
	}
	f.maxB = 0
	for c, v := range cols {
		for k, i := range v.Index {
			if i < 0 || i >= m {
				return ErrDimension
			}
			x := v.Value[k]
			if x == 0 {
				continue
			}
			rows[i][c] = x
			colRows[c][i] = struct{}{}
			f.maxB = math.Max(f.maxB, math.Abs(x))
		}
	}

	f.prow = f.prow[:0]
	f.pcol = f.pcol[:0]
	f.lEtas = f.lEtas[:0]
	f.uDiag = f.uDiag[:0]
	f.uRows = f.uRows[:0]
	f.maxU = 0

	colDone := make([]bool, m)
	rowDone := make([]bool, m)
	var deficient []int

	for step := 0; step < m; step++ {
		//fewest nonzeros first, lowest position on ties
		c := -1
		for j := 0; j < m; j++ {
			if colDone[j] {
				continue
			}
			if c < 0 || len(colRows[j]) < len(colRows[c]) {
				c = j
			}
		}

		cand := sortedKeys(colRows[c])
		colMax := 0.0
		for _, i := range cand {
			colMax = math.Max(colMax, math.Abs(rows[i][c]))
		}
		if colMax <= f.opts.SingularTol {
			deficient = append(deficient, c)
			colDone[c] = true
			for _, i := range cand {
				delete(rows[i], c)
			}
			colRows[c] = nil
			continue
		}

		r := -1
		for _, i := range cand {
			a := math.Abs(rows[i][c])
			if a < f.opts.PivotThreshold*colMax {
				continue
			}
			if r < 0 || len(rows[i]) < len(rows[r]) ||
				(len(rows[i]) == len(rows[r]) && a > math.Abs(rows[r][c])) {
				r = i
			}
		}
		piv := rows[r][c]

		//pivot row becomes U row
		uRow := make([]entry, 0, len(rows[r])-1)
		for _, j := range sortedKeys(rows[r]) {
			if j == c {
				continue
			}
			uRow = append(uRow, entry{j, rows[r][j]})
			f.maxU = math.Max(f.maxU, math.Abs(rows[r][j]))
		}
		f.maxU = math.Max(f.maxU, math.Abs(piv))

		//eliminate column c below the pivot
		var lEta []entry
		for _, i := range cand {
			if i == r {
				continue
			}
			l := rows[i][c] / piv
			delete(rows[i], c)
			lEta = append(lEta, entry{i, l})
			for _, u := range uRow {
				x := rows[i][u.i] - l*u.v
				if math.Abs(x) <= f.opts.DropTol {
					delete(rows[i], u.i)
					delete(colRows[u.i], i)
					continue
				}
				rows[i][u.i] = x
				colRows[u.i][i] = struct{}{}
			}
		}

		for _, u := range uRow {
			delete(colRows[u.i], r)
		}
		colRows[c] = nil
		rows[r] = nil
		colDone[c] = true
		rowDone[r] = true

		f.prow = append(f.prow, r)
		f.pcol = append(f.pcol, c)
		f.lEtas = append(f.lEtas, lEta)
		f.uDiag = append(f.uDiag, piv)
		f.uRows = append(f.uRows, uRow)
	}

	if len(deficient) > 0 {
		var free []int
		for i, done := range rowDone {
			if !done {
				free = append(free, i)
			}
		}
		return &SingularError{Positions: deficient, Rows: free}
	}
	f.valid = true
	return nil
}

// Solve returns x with B x = rhs. rhs is indexed by row, x by basis position.
func (f *Factor) Solve(rhs []float64) ([]float64, error) {
	if !f.valid {
		return nil, ErrNotFactored
	}
	if len(rhs) != f.m {
		return nil, ErrDimension
	}
	w := slices.Clone(rhs)
	for k, r := range f.prow {
		v := w[r]
		if v == 0 {
			continue
		}
		for _, e := range f.lEtas[k] {
			w[e.i] -= e.v * v
		}
	}

	x := make([]float64, f.m)
	for k := f.m - 1; k >= 0; k-- {
		s := w[f.prow[k]]
		for _, e := range f.uRows[k] {
			s -= e.v * x[e.i]
		}
		x[f.pcol[k]] = s / f.uDiag[k]
	}

	for _, eta := range f.etas {
		xp := x[eta.p] / eta.pivot
		if xp != 0 {
			for _, e := range eta.alpha {
				x[e.i] -= e.v * xp
			}
		}
		x[eta.p] = xp
	}
	return x, nil
}

// SolveTranspose returns y with B^T y = rhs. rhs is indexed by basis position, y by row.
func (f *Factor) SolveTranspose(rhs []float64) ([]float64, error) {
	if !f.valid {
		return nil, ErrNotFactored
	}
	if len(rhs) != f.m {
		return nil, ErrDimension
	}
	t := slices.Clone(rhs)
	for k := len(f.etas) - 1; k >= 0; k-- {
		eta := f.etas[k]
		s := t[eta.p]
		for _, e := range eta.alpha {
			s -= e.v * t[e.i]
		}
		t[eta.p] = s / eta.pivot
	}

	z := make([]float64, f.m)
	for k, r := range f.prow {
		v := t[f.pcol[k]] / f.uDiag[k]
		z[r] = v
		if v == 0 {
			continue
		}
		for _, e := range f.uRows[k] {
			t[e.i] -= e.v * v
		}
	}

	for k := f.m - 1; k >= 0; k-- {
		s := 0.0
		for _, e := range f.lEtas[k] {
			s += e.v * z[e.i]
		}
		z[f.prow[k]] -= s
	}
	return z, nil
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
