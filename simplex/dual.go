package simplex

import (
	"context"
	"math"
)

// makeDualFeasible moves boxed nonbasic variables to the bound their reduced
// cost asks for. It reports false when some other variable prices wrong,
// in which case the dual simplex cannot start from this basis.
func (e *Engine) makeDualFeasible() bool {
	tol := e.opts.DualTol
	moved := false
	for j := range e.total {
		if e.status[j] == Basic || e.lo[j] == e.hi[j] {
			continue
		}
		dj := e.d[j]
		switch e.status[j] {
		case AtLower:
			if dj < -tol {
				if math.IsInf(e.hi[j], 1) {
					return false
				}
				e.status[j], e.x[j], moved = AtUpper, e.hi[j], true
			}
		case AtUpper:
			if dj > tol {
				if math.IsInf(e.lo[j], -1) {
					return false
				}
				e.status[j], e.x[j], moved = AtLower, e.lo[j], true
			}
		case AtZero:
			if math.Abs(dj) > tol {
				return false
			}
		}
	}
	if moved {
		if err := e.computeX(); err != nil {
			return false
		}
		e.obj = e.phaseObjective()
	}
	return true
}

// dual iterates the bounded dual simplex from a dual feasible basis until
// the basic variables are within their bounds.
func (e *Engine) dual(ctx context.Context) State {
	e.state = Iterating
	for {
		if st, stop := e.halted(ctx); stop {
			return st
		}
		if e.f.NeedsRefactor() {
			repaired, err := e.refactor()
			if err != nil {
				return NumericalFailure
			}
			if repaired {
				if err := e.computeDuals(); err != nil || !e.makeDualFeasible() {
					e.lost = true
					return NumericalFailure
				}
			}
		}
		if err := e.computeDuals(); err != nil {
			return NumericalFailure
		}

		p, target, up := e.leaving()
		if p < 0 {
			e.obj = e.phaseObjective()
			return Optimal
		}
		unit := make([]float64, e.m)
		unit[p] = 1
		rho, err := e.f.SolveTranspose(unit)
		if err != nil {
			return NumericalFailure
		}

		q, ratio := e.entering(rho, up)
		if q < 0 {
			return Infeasible
		}
		alpha, err := e.f.Solve(e.a.Column(q).Dense(e.m))
		if err != nil {
			return NumericalFailure
		}
		if math.Abs(alpha[p]) <= e.opts.PivotTol {
			// row and column disagree on the pivot, give up on this basis
			e.lost = true
			return NumericalFailure
		}

		out := e.head[p]
		delta := (e.x[out] - target) / alpha[p]
		for k, j := range e.head {
			if alpha[k] != 0 {
				e.x[j] -= alpha[k] * delta
			}
		}
		e.x[q] += delta
		if up {
			e.status[out], e.x[out] = AtLower, target
		} else {
			e.status[out], e.x[out] = AtUpper, target
		}
		if err := e.pivot(q, p, alpha); err != nil {
			return NumericalFailure
		}
		if e.lost {
			return NumericalFailure
		}
		e.obj = e.phaseObjective()

		e.iter++
		degenerate := ratio <= e.opts.DualTol
		if degenerate {
			e.degenerate++
			e.stall++
			if e.opts.DegenerateLimit > 0 && e.stall >= e.opts.DegenerateLimit {
				e.bland = true
			}
		} else {
			e.stall, e.bland = 0, false
		}
		e.emitIteration(degenerate)
	}
}

// leaving picks the basic variable with the largest bound violation, or the
// lowest index violating one under Bland's rule. up reports whether it must
// increase to reach target.
func (e *Engine) leaving() (p int, target float64, up bool) {
	p = -1
	worst := 0.0
	for k, j := range e.head {
		v := e.x[j]
		var viol, bound float64
		var inc bool
		switch {
		case v < e.lo[j]-e.feasTol(e.lo[j]):
			viol, bound, inc = e.lo[j]-v, e.lo[j], true
		case v > e.hi[j]+e.feasTol(e.hi[j]):
			viol, bound, inc = v-e.hi[j], e.hi[j], false
		default:
			continue
		}
		if e.bland {
			if p < 0 || j < e.head[p] {
				p, target, up = k, bound, inc
			}
			continue
		}
		if viol > worst {
			worst, p, target, up = viol, k, bound, inc
		}
	}
	return p, target, up
}

// entering runs the dual ratio test on pivot row rho. A candidate must move
// the leaving variable toward its violated bound; the smallest
// |d_j / alpha_rj| wins, larger |alpha_rj| and then lower index break ties.
func (e *Engine) entering(rho []float64, up bool) (int, float64) {
	s := -1.0
	if up {
		s = 1
	}
	q, best, bestAbs := -1, math.Inf(1), 0.0
	for j := range e.total {
		if e.status[j] == Basic || e.lo[j] == e.hi[j] {
			continue
		}
		arj := e.a.Column(j).Dot(rho)
		if math.Abs(arj) <= e.opts.PivotTol {
			continue
		}
		switch e.status[j] {
		case AtLower:
			if s*arj >= 0 {
				continue
			}
		case AtUpper:
			if s*arj <= 0 {
				continue
			}
		}
		r := math.Abs(e.d[j]) / math.Abs(arj)
		switch {
		case r < best-tieTol:
			q, best, bestAbs = j, r, math.Abs(arj)
		case r <= best+tieTol && !e.bland && math.Abs(arj) > bestAbs:
			q, best, bestAbs = j, math.Min(r, best), math.Abs(arj)
		}
	}
	return q, best
}
