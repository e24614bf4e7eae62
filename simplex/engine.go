// Package simplex implements a bounded revised simplex method over a sparse
// LU factorization of the basis.
//
// Every row i of the problem gets a logical r_i = a_i·x carrying the row
// bounds, and an artificial used only to start phase 1:
//
//	a_i·x - r_i + sign_i·art_i = 0
//
// so the right-hand side is always zero and a basis of logicals and
// artificials is diagonal.
package simplex

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"q.log/milp/lu"
	"q.log/milp/progress"
	"q.log/milp/sparse"
)

type Options struct {
	// PrimalTol is the bound violation accepted as feasible.
	PrimalTol float64
	// DualTol is the reduced cost magnitude accepted as optimal.
	DualTol float64
	// PivotTol is the smallest pivot element considered by ratio tests.
	PivotTol float64
	// IterationLimit stops a solve call after that many iterations; zero is unlimited.
	IterationLimit int
	// DegenerateLimit consecutive degenerate pivots switch pricing to Bland's rule.
	DegenerateLimit int
	LU              lu.Options
	Sink            progress.Sink
}

func DefaultOptions() Options {
	return Options{
		PrimalTol:       1e-9,
		DualTol:         1e-9,
		PivotTol:        1e-9,
		DegenerateLimit: 50,
		LU:              lu.DefaultOptions(),
	}
}

// Engine solves one LP and keeps its basis for later warm starts.
type Engine struct {
	lp   *LP
	opts Options
	sink progress.Sink

	m, n, total int
	a           *sparse.Matrix // structurals | logicals | artificials
	lo, hi      []float64
	cost        []float64
	scale       float64

	f      *lu.Factor
	head   []int
	pos    []int
	status []VarStatus
	sign   []float64
	loaded bool

	x, y, d []float64
	obj     float64

	state      State
	phase      int
	iter       int
	degenerate int
	stall      int
	bland      bool
	lost       bool
	timedOut   bool
}

// NewEngine prepares an engine for lp. lp is shared, never modified.
func NewEngine(lp *LP, opts Options) (*Engine, error) {
	m, n := lp.m, lp.n
	total := n + 2*m
	e := &Engine{
		lp:     lp,
		opts:   opts,
		sink:   opts.Sink,
		m:      m,
		n:      n,
		total:  total,
		a:      sparse.NewMatrix(m, total),
		lo:     make([]float64, total),
		hi:     make([]float64, total),
		cost:   make([]float64, total),
		scale:  1,
		f:      lu.New(m, opts.LU),
		head:   make([]int, m),
		pos:    make([]int, total),
		status: make([]VarStatus, total),
		sign:   make([]float64, m),
		x:      make([]float64, total),
		y:      make([]float64, m),
		d:      make([]float64, total),
	}
	if e.sink == nil {
		e.sink = progress.Discard
	}
	for j, c := range lp.cols {
		if err := e.a.SetColumn(j, c); err != nil {
			return nil, fmt.Errorf("simplex: column %d: %w", j, err)
		}
	}
	for i := 0; i < m; i++ {
		if err := e.a.SetColumn(n+i, sparse.Vector{Index: []int{i}, Value: []float64{-1}}); err != nil {
			return nil, fmt.Errorf("simplex: logical %d: %w", i, err)
		}
		e.sign[i] = 1
		if err := e.a.SetColumn(n+m+i, sparse.Vector{Index: []int{i}, Value: []float64{1}}); err != nil {
			return nil, fmt.Errorf("simplex: artificial %d: %w", i, err)
		}
	}
	e.ResetBounds()
	for _, v := range slices.Concat(e.lo, e.hi) {
		if !math.IsInf(v, 0) {
			e.scale = math.Max(e.scale, 1+math.Abs(v))
		}
	}
	return e, nil
}

// ResetBounds restores the LP's own column bounds.
func (e *Engine) ResetBounds() {
	lp := e.lp
	copy(e.lo, lp.colLo)
	copy(e.hi, lp.colHi)
	copy(e.lo[e.n:], lp.rowLo)
	copy(e.hi[e.n:], lp.rowHi)
	for k := e.n + e.m; k < e.total; k++ {
		e.lo[k], e.hi[k] = 0, 0
	}
	if e.loaded {
		for j := range e.total {
			if e.status[j] != Basic {
				e.status[j] = e.nonbasicStatus(j, e.status[j])
				e.x[j] = e.boundValue(j)
			}
		}
	}
}

// SetColumnBounds replaces the bounds of structural column j for the next
// solve. A nonbasic column keeps its side when that side stays finite.
func (e *Engine) SetColumnBounds(j int, lo, hi float64) {
	e.lo[j], e.hi[j] = lo, hi
	if e.loaded && e.status[j] != Basic {
		e.status[j] = e.nonbasicStatus(j, e.status[j])
		e.x[j] = e.boundValue(j)
	}
}

// ColumnBounds returns the working bounds of structural column j.
func (e *Engine) ColumnBounds(j int) (float64, float64) { return e.lo[j], e.hi[j] }

// Solve runs phase 1 and phase 2 of the primal simplex from a crash basis of
// logicals and artificials.
func (e *Engine) Solve(ctx context.Context) State {
	e.begin()
	return e.solveCold(ctx)
}

// Resolve warm starts from the loaded basis with the dual simplex. When the
// basis is missing, cannot be factorized or is not dual feasible, it solves
// from scratch instead.
func (e *Engine) Resolve(ctx context.Context) State {
	e.begin()
	if !e.loaded {
		return e.solveCold(ctx)
	}
	if e.boundsConflict() {
		return e.finish(Infeasible)
	}
	e.enterPhase(2)
	if _, err := e.refactor(); err != nil {
		return e.solveCold(ctx)
	}
	if err := e.computeDuals(); err != nil || !e.makeDualFeasible() {
		return e.solveCold(ctx)
	}
	st := e.dual(ctx)
	if e.lost {
		return e.solveCold(ctx)
	}
	if st == Optimal {
		st = e.primal(ctx)
		if e.lost {
			return e.solveCold(ctx)
		}
	}
	return e.finish(st)
}

func (e *Engine) begin() {
	e.state = Initializing
	e.iter = 0
	e.degenerate = 0
	e.stall = 0
	e.bland = false
	e.lost = false
	e.timedOut = false
}

func (e *Engine) boundsConflict() bool {
	for j := range e.n {
		if e.lo[j] > e.hi[j] {
			return true
		}
	}
	return false
}

func (e *Engine) solveCold(ctx context.Context) State {
	if e.boundsConflict() {
		return e.finish(Infeasible)
	}
	for attempt := 0; ; attempt++ {
		e.lost = false
		st := e.twoPhase(ctx)
		if e.lost && attempt == 0 {
			continue
		}
		if e.lost {
			st = NumericalFailure
		}
		return e.finish(st)
	}
}

func (e *Engine) twoPhase(ctx context.Context) State {
	needPhase1 := e.crash()
	if _, err := e.refactor(); err != nil {
		return NumericalFailure
	}
	if needPhase1 {
		e.enterPhase(1)
		st := e.primal(ctx)
		if st != Optimal {
			return st
		}
		if e.phaseObjective() > e.opts.PrimalTol*e.scale {
			return Infeasible
		}
		if err := e.driveOutArtificials(); err != nil {
			return NumericalFailure
		}
	}
	e.enterPhase(2)
	return e.primal(ctx)
}

func (e *Engine) finish(st State) State {
	e.state = st
	e.sink.Emit(progress.Event{
		Kind:      progress.PhaseChange,
		Phase:     e.phase,
		Iteration: e.iter,
		Message:   st.String(),
	})
	return st
}

// crash installs the diagonal start basis. Rows whose activity at the
// nonbasic point violates the row bounds get a basic artificial; it reports
// whether any did.
func (e *Engine) crash() bool {
	n, m := e.n, e.m
	for k := n + m; k < e.total; k++ {
		e.lo[k], e.hi[k] = 0, 0
	}
	for j := 0; j < n; j++ {
		e.status[j] = e.nonbasicStatus(j, AtLower)
		e.x[j] = e.boundValue(j)
		e.pos[j] = -1
	}
	act := e.lp.Activity(e.x[:n])
	artificial := false
	for i := 0; i < m; i++ {
		r, art := n+i, n+m+i
		v := act[i]
		e.status[art] = AtLower
		e.x[art] = 0
		e.pos[art] = -1
		if v >= e.lo[r]-e.opts.PrimalTol && v <= e.hi[r]+e.opts.PrimalTol {
			e.setBasic(i, r)
			e.x[r] = v
			continue
		}
		target, st := e.lo[r], AtLower
		if v > e.hi[r] {
			target, st = e.hi[r], AtUpper
		}
		e.status[r] = st
		e.x[r] = target
		e.pos[r] = -1
		e.setSign(i, math.Copysign(1, target-v))
		e.hi[art] = math.Inf(1)
		e.setBasic(i, art)
		e.x[art] = math.Abs(target - v)
		artificial = true
	}
	e.loaded = true
	return artificial
}

func (e *Engine) setSign(i int, s float64) {
	if e.sign[i] == s {
		return
	}
	e.sign[i] = s
	// the column has one entry in a valid row, SetColumn cannot fail
	_ = e.a.SetColumn(e.n+e.m+i, sparse.Vector{Index: []int{i}, Value: []float64{s}})
}

func (e *Engine) setBasic(p, j int) {
	e.head[p] = j
	e.pos[j] = p
	e.status[j] = Basic
}

func (e *Engine) enterPhase(phase int) {
	e.phase = phase
	clear(e.cost)
	if phase == 1 {
		for _, j := range e.head {
			if e.isArtificial(j) {
				e.cost[j] = 1
			}
		}
	} else {
		copy(e.cost, e.lp.cost)
		for k := e.n + e.m; k < e.total; k++ {
			e.lo[k], e.hi[k] = 0, 0
		}
	}
	e.stall = 0
	e.bland = false
	e.obj = e.phaseObjective()
	e.sink.Emit(progress.Event{Kind: progress.PhaseChange, Phase: phase, Iteration: e.iter, Objective: e.reportedObjective()})
}

func (e *Engine) isArtificial(j int) bool { return j >= e.n+e.m }

func (e *Engine) phaseObjective() float64 {
	s := 0.0
	for j, c := range e.cost {
		if c != 0 {
			s += c * e.x[j]
		}
	}
	return s
}

func (e *Engine) reportedObjective() float64 {
	if e.phase == 1 {
		return e.obj
	}
	return e.lp.UserObjective(e.obj)
}

// nonbasicStatus picks a valid nonbasic status for j, keeping want when the
// corresponding bound is finite.
func (e *Engine) nonbasicStatus(j int, want VarStatus) VarStatus {
	lo, hi := e.lo[j], e.hi[j]
	switch {
	case want == AtUpper && !math.IsInf(hi, 1):
		return AtUpper
	case want == AtLower && !math.IsInf(lo, -1):
		return AtLower
	case !math.IsInf(lo, -1):
		return AtLower
	case !math.IsInf(hi, 1):
		return AtUpper
	default:
		return AtZero
	}
}

func (e *Engine) boundValue(j int) float64 {
	switch e.status[j] {
	case AtLower:
		return e.lo[j]
	case AtUpper:
		return e.hi[j]
	case AtZero:
		return 0
	default:
		return e.x[j]
	}
}

// refactor factorizes the current basis. A singular basis is repaired once
// by swapping logicals in for the deficient positions.
func (e *Engine) refactor() (repaired bool, err error) {
	err = e.f.Factorize(e.basisColumns())
	var se *lu.SingularError
	if errors.As(err, &se) {
		if !e.repair(se) {
			return false, fmt.Errorf("simplex: refactor: %w", err)
		}
		repaired = true
		err = e.f.Factorize(e.basisColumns())
	}
	if err != nil {
		return repaired, fmt.Errorf("simplex: refactor: %w", err)
	}
	if err := e.computeX(); err != nil {
		return repaired, err
	}
	e.obj = e.phaseObjective()
	reason := "scheduled"
	if repaired {
		reason = "repaired singular basis"
	}
	e.sink.Emit(progress.Event{Kind: progress.Refactor, Iteration: e.iter, Message: reason})
	return repaired, nil
}

func (e *Engine) basisColumns() []sparse.Vector {
	cols := make([]sparse.Vector, e.m)
	for p, j := range e.head {
		cols[p] = e.a.Column(j)
	}
	return cols
}

func (e *Engine) repair(se *lu.SingularError) bool {
	if len(se.Positions) != len(se.Rows) {
		return false
	}
	for k, p := range se.Positions {
		row := se.Rows[k]
		in := e.n + row
		if e.status[in] == Basic {
			in = e.n + e.m + row
			if e.status[in] == Basic {
				return false
			}
		}
		out := e.head[p]
		e.pos[out] = -1
		want := AtLower
		if e.x[out]-e.lo[out] > e.hi[out]-e.x[out] {
			want = AtUpper
		}
		e.status[out] = e.nonbasicStatus(out, want)
		e.x[out] = e.boundValue(out)
		e.setBasic(p, in)
	}
	return true
}

// computeX recomputes the basic values from the nonbasic ones.
func (e *Engine) computeX() error {
	rhs := make([]float64, e.m)
	for j := range e.total {
		if e.status[j] == Basic {
			continue
		}
		v := e.boundValue(j)
		e.x[j] = v
		if v == 0 {
			continue
		}
		col := e.a.Column(j)
		for k, i := range col.Index {
			rhs[i] -= col.Value[k] * v
		}
	}
	xb, err := e.f.Solve(rhs)
	if err != nil {
		return fmt.Errorf("simplex: ftran: %w", err)
	}
	for p, j := range e.head {
		e.x[j] = xb[p]
	}
	return nil
}

// computeDuals prices the current basis. On failure y and d are left
// untouched and must not be used.
func (e *Engine) computeDuals() error {
	cb := make([]float64, e.m)
	for p, j := range e.head {
		cb[p] = e.cost[j]
	}
	y, err := e.f.SolveTranspose(cb)
	if err != nil {
		return fmt.Errorf("simplex: btran: %w", err)
	}
	e.y = y
	for j := range e.total {
		if e.status[j] == Basic {
			e.d[j] = 0
			continue
		}
		e.d[j] = e.cost[j] - e.a.Column(j).Dot(y)
	}
	return nil
}

func (e *Engine) feasTol(bound float64) float64 {
	return e.opts.PrimalTol * math.Max(1, math.Abs(bound))
}

func (e *Engine) basicFeasible() bool {
	for _, j := range e.head {
		v := e.x[j]
		if v < e.lo[j]-e.feasTol(e.lo[j]) || v > e.hi[j]+e.feasTol(e.hi[j]) {
			return false
		}
	}
	return true
}

func (e *Engine) halted(ctx context.Context) (State, bool) {
	if err := ctx.Err(); err != nil {
		e.timedOut = errors.Is(err, context.DeadlineExceeded)
		return Aborted, true
	}
	if e.opts.IterationLimit > 0 && e.iter >= e.opts.IterationLimit {
		return IterationLimit, true
	}
	return Iterating, false
}

// pivot makes q basic at position p. alpha is the FTRAN image of q's column.
func (e *Engine) pivot(q, p int, alpha []float64) error {
	out := e.head[p]
	e.pos[out] = -1
	if e.isArtificial(out) {
		e.lo[out], e.hi[out] = 0, 0
		e.status[out] = AtLower
		e.x[out] = 0
	}
	e.setBasic(p, q)
	if err := e.f.Update(alpha, p); err == nil && !e.f.NeedsRefactor() {
		return nil
	}
	repaired, err := e.refactor()
	if err != nil {
		return err
	}
	if repaired {
		e.lost = !e.basicFeasible()
	}
	return nil
}

func (e *Engine) emitIteration(degenerate bool) {
	e.sink.Emit(progress.Event{
		Kind:       progress.Iteration,
		Phase:      e.phase,
		Iteration:  e.iter,
		Objective:  e.reportedObjective(),
		Degenerate: degenerate,
	})
}

func (e *Engine) trackDegeneracy(step float64) bool {
	if step > e.opts.PrimalTol {
		e.stall = 0
		e.bland = false
		return false
	}
	e.degenerate++
	e.stall++
	if e.opts.DegenerateLimit > 0 && e.stall >= e.opts.DegenerateLimit {
		e.bland = true
	}
	return true
}

// State is the outcome of the last solve call.
func (e *Engine) State() State { return e.state }

// Objective is the objective value of the current point in the problem's
// own direction, including the objective constant.
func (e *Engine) Objective() float64 {
	return e.lp.UserObjective(e.lp.Objective(e.x[:e.n]))
}

// Primal returns the values of the structural columns.
func (e *Engine) Primal() []float64 { return slices.Clone(e.x[:e.n]) }

// RowActivity returns a_i·x for every row.
func (e *Engine) RowActivity() []float64 { return slices.Clone(e.x[e.n : e.n+e.m]) }

// Duals returns the row duals in the problem's own direction.
func (e *Engine) Duals() []float64 {
	y := make([]float64, e.m)
	for i, v := range e.y {
		y[i] = e.lp.sense * v
	}
	return y
}

// ReducedCosts returns the reduced costs of the structural columns in the
// problem's own direction.
func (e *Engine) ReducedCosts() []float64 {
	d := make([]float64, e.n)
	for j := range d {
		d[j] = e.lp.sense * e.d[j]
	}
	return d
}

func (e *Engine) Iterations() int       { return e.iter }
func (e *Engine) DegeneratePivots() int { return e.degenerate }

// Stalled reports whether the last solve halted inside a run of degenerate pivots.
func (e *Engine) Stalled() bool { return e.stall > 0 }

// TimedOut reports whether the last Aborted state came from a context deadline.
func (e *Engine) TimedOut() bool { return e.timedOut }

// SetIterationLimit changes the per call iteration limit.
func (e *Engine) SetIterationLimit(n int) { e.opts.IterationLimit = n }

// Basis snapshots the current basis.
func (e *Engine) Basis() Basis {
	if !e.loaded {
		return Basis{}
	}
	return Basis{
		Head:   slices.Clone(e.head),
		Status: slices.Clone(e.status),
		Sign:   slices.Clone(e.sign),
	}
}

// LoadBasis installs b for the next Resolve. Nonbasic values follow the
// current bounds.
func (e *Engine) LoadBasis(b Basis) error {
	if err := b.validate(e.m, e.total); err != nil {
		return err
	}
	copy(e.head, b.Head)
	copy(e.status, b.Status)
	for i, s := range b.Sign {
		e.setSign(i, s)
	}
	for j := range e.pos {
		e.pos[j] = -1
	}
	for p, j := range e.head {
		e.pos[j] = p
	}
	for j := range e.total {
		if e.status[j] != Basic {
			e.status[j] = e.nonbasicStatus(j, e.status[j])
			e.x[j] = e.boundValue(j)
		}
	}
	e.loaded = true
	return nil
}
