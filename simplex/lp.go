package simplex

import (
	"fmt"
	"math"

	"q.log/milp/model"
	"q.log/milp/sparse"
)

// LP is the computational form of a problem:
//
//	min cost·x  subject to  rowLo <= A x <= rowHi,  colLo <= x <= colHi
//
// Rows and columns are 0-based; row i and column j map to model row i+1 and
// model column j+1. Unbounded sides are ±Inf.
type LP struct {
	m, n int
	cols []sparse.Vector

	cost     []float64
	sense    float64 // +1 minimize, -1 maximize
	constant float64

	colLo, colHi []float64
	rowLo, rowHi []float64
	integer      []bool
}

// FromProblem extracts the computational form of p. p is only read.
func FromProblem(p *model.Problem) (*LP, error) {
	m, n := p.NumRows(), p.NumCols()
	lp := &LP{
		m:       m,
		n:       n,
		cols:    make([]sparse.Vector, n),
		cost:    make([]float64, n),
		sense:   1,
		colLo:   make([]float64, n),
		colHi:   make([]float64, n),
		rowLo:   make([]float64, m),
		rowHi:   make([]float64, m),
		integer: make([]bool, n),
	}
	if p.Direction() == model.Maximize {
		lp.sense = -1
	}
	store := p.Matrix()
	lp.constant = store.At(0, 0)
	for j := 0; j < n; j++ {
		src := store.Column(j + 1)
		lp.cost[j] = lp.sense * src.At(0)
		var col sparse.Vector
		for k, i := range src.Index {
			if i == 0 {
				continue
			}
			col.Index = append(col.Index, i-1)
			col.Value = append(col.Value, src.Value[k])
		}
		lp.cols[j] = col

		lo, hi, err := p.ColumnBounds(j + 1)
		if err != nil {
			return nil, fmt.Errorf("simplex: column %d: %w", j+1, err)
		}
		lp.colLo[j], lp.colHi[j] = lo, hi
		lp.integer[j], _ = p.IsInteger(j + 1)
	}
	for i := 0; i < m; i++ {
		lo, hi, err := p.RowBounds(i + 1)
		if err != nil {
			return nil, fmt.Errorf("simplex: row %d: %w", i+1, err)
		}
		lp.rowLo[i], lp.rowHi[i] = lo, hi
	}
	return lp, nil
}

func (lp *LP) Rows() int { return lp.m }
func (lp *LP) Cols() int { return lp.n }

// IsInteger reports whether structural column j must be integral.
func (lp *LP) IsInteger(j int) bool { return lp.integer[j] }

// ColumnBounds returns the original bounds of structural column j.
func (lp *LP) ColumnBounds(j int) (float64, float64) { return lp.colLo[j], lp.colHi[j] }

// Sense is +1 for minimization and -1 for maximization.
func (lp *LP) Sense() float64 { return lp.sense }

// UserObjective converts an internal minimization value back to the
// problem's own direction, adding the objective constant.
func (lp *LP) UserObjective(v float64) float64 { return lp.sense*v + lp.constant }

// Activity returns A x for structural values x.
func (lp *LP) Activity(x []float64) []float64 {
	act := make([]float64, lp.m)
	for j, c := range lp.cols {
		if x[j] == 0 {
			continue
		}
		for k, i := range c.Index {
			act[i] += c.Value[k] * x[j]
		}
	}
	return act
}

// Objective returns cost·x in the internal minimization sense.
func (lp *LP) Objective(x []float64) float64 {
	s := 0.0
	for j, c := range lp.cost {
		s += c * x[j]
	}
	return s
}

// Feasible reports whether x satisfies every row and column bound within tol.
func (lp *LP) Feasible(x []float64, tol float64) bool {
	for j := range lp.n {
		if x[j] < lp.colLo[j]-tol || x[j] > lp.colHi[j]+tol {
			return false
		}
	}
	for i, a := range lp.Activity(x) {
		scale := tol * math.Max(1, math.Abs(a))
		if a < lp.rowLo[i]-scale || a > lp.rowHi[i]+scale {
			return false
		}
	}
	return true
}
