// Package bnb searches the integer solutions of an LP relaxation by branch
// and bound.
//
// Nodes are kept in an arena and never recursed into. The search dives
// depth first into one child while its sibling waits in a frontier ordered
// by LP bound; when a dive ends the best bound node is resumed.
package bnb

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"q.log/milp/progress"
	"q.log/milp/simplex"
)

type Outcome int

const (
	Optimal Outcome = iota
	Suboptimal
	Infeasible
	Unbounded
	Degenerate
	NumericalFailure
	UserAbort
	Timeout
)

func (o Outcome) String() string {
	switch o {
	case Optimal:
		return "optimal"
	case Suboptimal:
		return "suboptimal"
	case Infeasible:
		return "infeasible"
	case Unbounded:
		return "unbounded"
	case Degenerate:
		return "degenerate"
	case NumericalFailure:
		return "numerical failure"
	case UserAbort:
		return "user abort"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Rule selects the branching column among the fractional ones.
type Rule int

const (
	MostFractional Rule = iota
	LowestIndex
)

type Options struct {
	// Epsilon is the distance from an integer accepted as integral.
	Epsilon float64
	// GapAbs and GapRel prune nodes that cannot improve the incumbent by more
	// than max(GapAbs, GapRel*|incumbent|).
	GapAbs float64
	GapRel float64

	NodeLimit      int // zero is unlimited
	DepthLimit     int // zero is unlimited
	IterationLimit int // simplex iterations over the whole search, zero is unlimited
	Deadline       time.Time

	Rule Rule
	// Floor explores the rounded down child first.
	Floor bool

	Simplex simplex.Options
	Sink    progress.Sink
}

func DefaultOptions() Options {
	return Options{
		Epsilon: 1e-7,
		GapAbs:  1e-11,
		GapRel:  1e-9,
		Simplex: simplex.DefaultOptions(),
	}
}

// Incumbent is the best integer feasible point found so far.
type Incumbent struct {
	X []float64
	// Objective is in the problem's own direction.
	Objective float64
	Node      int

	Activity     []float64
	Duals        []float64
	ReducedCosts []float64
}

type Result struct {
	Outcome   Outcome
	Incumbent *Incumbent
	// History lists every incumbent objective in the order they were found.
	History []float64
	// BestBound is the best objective any unexplored node could still reach.
	BestBound  float64
	Nodes      int
	MaxDepth   int
	Iterations int
	Degenerate int
}

// Driver runs one branch and bound search.
type Driver struct {
	lp   *simplex.LP
	eng  *simplex.Engine
	opts Options
	sink progress.Sink

	arena    []Node
	frontier frontier
	integer  []int

	inc        *Incumbent
	incMin     float64 // incumbent in the internal minimization sense
	history    []float64
	iterations int
	degenerate int
	solved     int
	maxDepth   int
	truncated  bool
}

func New(lp *simplex.LP, opts Options) (*Driver, error) {
	sopts := opts.Simplex
	sopts.Sink = opts.Sink
	eng, err := simplex.NewEngine(lp, sopts)
	if err != nil {
		return nil, fmt.Errorf("bnb: %w", err)
	}
	d := &Driver{
		lp:     lp,
		eng:    eng,
		opts:   opts,
		sink:   opts.Sink,
		incMin: math.Inf(1),
	}
	if d.sink == nil {
		d.sink = progress.Discard
	}
	d.frontier.arena = &d.arena
	for j := range lp.Cols() {
		if lp.IsInteger(j) {
			d.integer = append(d.integer, j)
		}
	}
	return d, nil
}

// errStop carries the outcome that ends the search early.
type errStop struct{ outcome Outcome }

func (e *errStop) Error() string { return "bnb: search stopped: " + e.outcome.String() }

func (d *Driver) Run(ctx context.Context) Result {
	if !d.opts.Deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, d.opts.Deadline)
		defer cancel()
	}

	d.arena = append(d.arena[:0], Node{ID: 0, Parent: -1, Bound: math.Inf(-1)})
	d.frontier.ids = d.frontier.ids[:0]
	cur := 0
	for {
		err := d.solve(ctx, cur)
		var stop *errStop
		if errors.As(err, &stop) {
			return d.result(stop.outcome, cur)
		}
		if next, ok := d.process(cur); ok {
			cur = next
			continue
		}
		next, ok := d.nextFromFrontier()
		if !ok {
			if d.truncated {
				return d.result(d.exhausted(), -1)
			}
			if d.inc == nil {
				return d.result(Infeasible, -1)
			}
			return d.result(Optimal, -1)
		}
		cur = next
	}
}

// solve computes the LP relaxation of node id.
func (d *Driver) solve(ctx context.Context, id int) error {
	if err := ctx.Err(); err != nil {
		return &errStop{d.aborted(err)}
	}
	if d.opts.NodeLimit > 0 && d.solved >= d.opts.NodeLimit {
		return &errStop{d.exhausted()}
	}
	if d.opts.IterationLimit > 0 {
		left := d.opts.IterationLimit - d.iterations
		if left <= 0 {
			return &errStop{d.exhausted()}
		}
		d.eng.SetIterationLimit(left)
	}

	d.applyBounds(id)
	var st simplex.State
	n := &d.arena[id]
	if n.basis.Empty() {
		st = d.eng.Solve(ctx)
	} else {
		if err := d.eng.LoadBasis(n.basis); err != nil {
			st = d.eng.Solve(ctx)
		} else {
			st = d.eng.Resolve(ctx)
		}
		n.basis = simplex.Basis{}
	}
	d.solved++
	d.iterations += d.eng.Iterations()
	d.degenerate += d.eng.DegeneratePivots()
	d.maxDepth = max(d.maxDepth, n.Depth)

	switch st {
	case simplex.Optimal:
		n.Bound = d.lp.Objective(d.eng.Primal())
		n.State = Relaxed
	case simplex.Infeasible:
		n.State = Pruned
	case simplex.Unbounded:
		return &errStop{Unbounded}
	case simplex.Aborted:
		if d.eng.TimedOut() {
			return &errStop{d.withIncumbent(Timeout)}
		}
		return &errStop{UserAbort}
	case simplex.IterationLimit:
		if d.eng.Stalled() {
			return &errStop{Degenerate}
		}
		return &errStop{d.exhausted()}
	default:
		return &errStop{d.withIncumbent(NumericalFailure)}
	}
	return nil
}

// applyBounds installs the bounds of node id: the root bounds tightened by
// every change on the path from the root.
func (d *Driver) applyBounds(id int) {
	d.eng.ResetBounds()
	var path []boundChange
	for k := id; k > 0; k = d.arena[k].Parent {
		path = append(path, d.arena[k].change)
	}
	for _, c := range slices.Backward(path) {
		d.eng.SetColumnBounds(c.col, c.lo, c.hi)
	}
}

// process classifies the solved node id. When it branches, the child to dive
// into is returned.
func (d *Driver) process(id int) (int, bool) {
	n := &d.arena[id]
	defer d.emitNode(id)
	if n.State == Pruned {
		return 0, false
	}
	if d.prunable(n.Bound) {
		n.State = Pruned
		return 0, false
	}
	x := d.eng.Primal()
	col, frac := d.branchColumn(x)
	if col < 0 {
		n.State = Integral
		d.improve(id, x)
		return 0, false
	}
	if d.opts.DepthLimit > 0 && n.Depth >= d.opts.DepthLimit {
		n.State = Pruned
		d.truncated = true
		return 0, false
	}

	n.State = Branched
	lo, hi := d.eng.ColumnBounds(col)
	basis := d.eng.Basis()
	down := boundChange{col: col, lo: lo, hi: math.Floor(frac)}
	up := boundChange{col: col, lo: math.Ceil(frac), hi: hi}
	first, second := up, down
	if d.opts.Floor {
		first, second = down, up
	}
	bound, depth := n.Bound, n.Depth+1
	dive := d.addNode(id, depth, bound, first, basis)
	sibling := d.addNode(id, depth, bound, second, basis.Clone())
	d.frontier.push(sibling)
	return dive, true
}

func (d *Driver) addNode(parent, depth int, bound float64, c boundChange, b simplex.Basis) int {
	id := len(d.arena)
	d.arena = append(d.arena, Node{
		ID:     id,
		Parent: parent,
		Depth:  depth,
		Bound:  bound,
		change: c,
		basis:  b,
	})
	return id
}

// nextFromFrontier pops the best bound node that can still improve the incumbent.
func (d *Driver) nextFromFrontier() (int, bool) {
	for d.frontier.Len() > 0 {
		id := d.frontier.pop()
		if d.prunable(d.arena[id].Bound) {
			d.arena[id].State = Pruned
			d.arena[id].basis = simplex.Basis{}
			continue
		}
		return id, true
	}
	return 0, false
}

// branchColumn returns the fractional column to branch on and its value, or -1.
func (d *Driver) branchColumn(x []float64) (int, float64) {
	col, best := -1, 0.0
	for _, j := range d.integer {
		f := x[j] - math.Floor(x[j])
		dist := math.Min(f, 1-f)
		if dist <= d.opts.Epsilon {
			continue
		}
		if d.opts.Rule == LowestIndex {
			return j, x[j]
		}
		if dist > best {
			col, best = j, dist
		}
	}
	if col < 0 {
		return -1, 0
	}
	return col, x[col]
}

func (d *Driver) gap() float64 {
	return math.Max(d.opts.GapAbs, d.opts.GapRel*math.Abs(d.incMin))
}

// prunable reports whether a node with LP bound b cannot strictly improve
// the incumbent.
func (d *Driver) prunable(b float64) bool {
	if d.inc == nil {
		return false
	}
	return b >= d.incMin-d.gap()
}

func (d *Driver) improve(id int, x []float64) {
	for _, j := range d.integer {
		x[j] = math.Round(x[j])
	}
	v := d.lp.Objective(x)
	if d.inc != nil && v >= d.incMin-d.gap() {
		return
	}
	d.incMin = v
	d.inc = &Incumbent{
		X:            x,
		Objective:    d.lp.UserObjective(v),
		Node:         id,
		Activity:     d.lp.Activity(x),
		Duals:        d.eng.Duals(),
		ReducedCosts: d.eng.ReducedCosts(),
	}
	d.history = append(d.history, d.inc.Objective)
	d.sink.Emit(progress.Event{
		Kind:      progress.Incumbent,
		Node:      id,
		Depth:     d.arena[id].Depth,
		Objective: d.inc.Objective,
	})
}

func (d *Driver) emitNode(id int) {
	n := d.arena[id]
	d.sink.Emit(progress.Event{
		Kind:      progress.Node,
		Node:      n.ID,
		Depth:     n.Depth,
		Bound:     d.lp.UserObjective(n.Bound),
		Frontier:  d.frontier.Len(),
		Iteration: d.iterations,
		Status:    n.State.String(),
	})
}

// exhausted is the outcome of a search cut short by a budget. A deadline
// counts as a budget; cancellation does not and ends in UserAbort.
func (d *Driver) exhausted() Outcome {
	return d.withIncumbent(Timeout)
}

func (d *Driver) withIncumbent(o Outcome) Outcome {
	if d.inc != nil {
		return Suboptimal
	}
	return o
}

func (d *Driver) aborted(err error) Outcome {
	if errors.Is(err, context.DeadlineExceeded) {
		return d.withIncumbent(Timeout)
	}
	return UserAbort
}

// result reports outcome o. pending is a node taken off the frontier whose
// relaxation was never finished, or -1.
func (d *Driver) result(o Outcome, pending int) Result {
	r := Result{
		Outcome:    o,
		History:    slices.Clone(d.history),
		Nodes:      d.solved,
		MaxDepth:   d.maxDepth,
		Iterations: d.iterations,
		Degenerate: d.degenerate,
		BestBound:  math.NaN(),
	}
	switch o {
	case Optimal, Suboptimal, UserAbort:
		r.Incumbent = d.inc
	}
	if o == Optimal {
		r.BestBound = d.inc.Objective
	} else if b, ok := d.openBound(pending); ok {
		r.BestBound = d.lp.UserObjective(b)
	}
	return r
}

func (d *Driver) openBound(pending int) (float64, bool) {
	b, ok := d.frontier.best()
	if pending >= 0 && d.arena[pending].State == Relaxed {
		if pb := d.arena[pending].Bound; !ok || pb < b {
			return pb, true
		}
	}
	return b, ok
}
