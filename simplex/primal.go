package simplex

import (
	"context"
	"math"
)

// tieTol separates ratios that count as equal in the ratio tests.
const tieTol = 1e-12

// primal iterates the bounded primal simplex on the current phase costs
// from a primal feasible basis.
func (e *Engine) primal(ctx context.Context) State {
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
			if repaired && !e.basicFeasible() {
				e.lost = true
				return NumericalFailure
			}
		}
		if err := e.computeDuals(); err != nil {
			return NumericalFailure
		}

		q, dir := e.price()
		if q < 0 {
			e.obj = e.phaseObjective()
			return Optimal
		}
		alpha, err := e.f.Solve(e.a.Column(q).Dense(e.m))
		if err != nil {
			return NumericalFailure
		}

		p, step := e.ratio(alpha, dir)
		flip := false
		if span := e.hi[q] - e.lo[q]; !math.IsInf(span, 0) && (p < 0 || span <= step) {
			step, flip = span, true
		}
		if p < 0 && !flip {
			return Unbounded
		}

		for k, j := range e.head {
			if alpha[k] != 0 {
				e.x[j] -= dir * step * alpha[k]
			}
		}
		e.x[q] += dir * step
		e.obj += e.d[q] * dir * step

		if flip {
			if dir > 0 {
				e.status[q], e.x[q] = AtUpper, e.hi[q]
			} else {
				e.status[q], e.x[q] = AtLower, e.lo[q]
			}
		} else {
			out := e.head[p]
			if -dir*alpha[p] < 0 {
				e.status[out], e.x[out] = AtLower, e.lo[out]
			} else {
				e.status[out], e.x[out] = AtUpper, e.hi[out]
			}
			if err := e.pivot(q, p, alpha); err != nil {
				return NumericalFailure
			}
			if e.lost {
				return NumericalFailure
			}
		}

		e.iter++
		e.emitIteration(e.trackDegeneracy(step))
	}
}

// price selects the entering variable and its direction (+1 increase, -1
// decrease): the largest reduced cost violation, or the lowest eligible
// index under Bland's rule. Ties go to the lowest index.
func (e *Engine) price() (q int, dir float64) {
	q = -1
	best := 0.0
	tol := e.opts.DualTol
	for j := range e.total {
		if e.status[j] == Basic || e.lo[j] == e.hi[j] {
			continue
		}
		dj := e.d[j]
		var viol, dd float64
		switch e.status[j] {
		case AtLower:
			if dj < -tol {
				viol, dd = -dj, 1
			}
		case AtUpper:
			if dj > tol {
				viol, dd = dj, -1
			}
		case AtZero:
			if math.Abs(dj) > tol {
				viol, dd = math.Abs(dj), -math.Copysign(1, dj)
			}
		}
		if viol == 0 {
			continue
		}
		if e.bland {
			return j, dd
		}
		if viol > best {
			best, q, dir = viol, j, dd
		}
	}
	return q, dir
}

// ratio finds the basis position whose variable first reaches a bound when
// the entering variable moves in direction dir. It returns -1 when no
// basic variable limits the step. Ties go to the lowest position, or to the
// lowest variable index under Bland's rule.
func (e *Engine) ratio(alpha []float64, dir float64) (int, float64) {
	p, best := -1, math.Inf(1)
	for k, a := range alpha {
		if math.Abs(a) <= e.opts.PivotTol {
			continue
		}
		j := e.head[k]
		rate := -dir * a
		var t float64
		if rate < 0 {
			if math.IsInf(e.lo[j], -1) {
				continue
			}
			t = (e.x[j] - e.lo[j]) / -rate
		} else {
			if math.IsInf(e.hi[j], 1) {
				continue
			}
			t = (e.hi[j] - e.x[j]) / rate
		}
		t = math.Max(t, 0)
		switch {
		case p < 0 || t < best-tieTol:
			p, best = k, t
		case e.bland && t <= best+tieTol && j < e.head[p]:
			p, best = k, math.Min(t, best)
		}
	}
	return p, best
}

// driveOutArtificials pivots structurals or logicals into the positions
// still held by artificials after phase 1. An artificial with no eligible
// replacement marks a redundant row and stays basic at zero.
func (e *Engine) driveOutArtificials() error {
	for p := range e.m {
		if !e.isArtificial(e.head[p]) {
			continue
		}
		unit := make([]float64, e.m)
		unit[p] = 1
		rho, err := e.f.SolveTranspose(unit)
		if err != nil {
			return err
		}
		q, best := -1, 1e-7
		for j := 0; j < e.n+e.m; j++ {
			if e.status[j] == Basic {
				continue
			}
			if v := math.Abs(e.a.Column(j).Dot(rho)); v > best {
				q, best = j, v
			}
		}
		if q < 0 {
			continue
		}
		alpha, err := e.f.Solve(e.a.Column(q).Dense(e.m))
		if err != nil {
			return err
		}
		if err := e.pivot(q, p, alpha); err != nil {
			return err
		}
	}
	return e.computeX()
}
