// Package solver is the entry point for solving a model.Problem.
//
//	s := solver.New(p, solver.WithTimeLimit(time.Minute))
//	switch s.Solve(ctx) {
//	case solver.Optimal, solver.Suboptimal:
//		x, _ := s.SolutionVariables()
//	}
//
// Statuses are results, not errors. Solution accessors return ErrNoSolution
// unless the last solve ended with a solution, or was cancelled after
// finding one.
package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"

	"q.log/milp/bnb"
	"q.log/milp/model"
	"q.log/milp/progress"
	"q.log/milp/simplex"
)

var ErrNoSolution = errors.New("solver: no solution available")

// Stats describes the last solve.
type Stats struct {
	RunID      string
	Duration   time.Duration
	Nodes      int
	MaxDepth   int
	Iterations int
	// DegeneratePivots counts pivots that did not move the objective.
	DegeneratePivots int
	// BestBound is the best objective unexplored nodes could reach, NaN when none remain.
	BestBound float64
}

// Solver solves one problem. It is not safe for concurrent use; solve
// independent problems with independent solvers.
type Solver struct {
	p    *model.Problem
	opts Options

	status Status
	err    error
	result bnb.Result
	stats  Stats
}

// New prepares a solver for p. p is read at every Solve and never modified.
func New(p *model.Problem, opts ...Option) *Solver {
	s := &Solver{p: p, opts: DefaultOptions(), status: NotRun}
	for _, o := range opts {
		o(&s.opts)
	}
	return s
}

func (s *Solver) Options() Options { return s.opts }

// Solve runs the search and returns its status. ctx cancellation ends it
// with UserAbort, keeping any incumbent found so far, its deadline or the time limit with Timeout (Suboptimal
// when a solution was found).
func (s *Solver) Solve(ctx context.Context) Status {
	s.status, s.err, s.result, s.stats = NotRun, nil, bnb.Result{}, Stats{}
	if s.p == nil {
		s.err = fmt.Errorf("solver: nil problem")
		return s.status
	}
	if err := s.opts.Validate(); err != nil {
		s.err = err
		return s.status
	}

	start := time.Now()
	s.stats.RunID = uuid.NewString()[:12]
	ctx, span := startSolveSpan(ctx, s.p.Name(), s.p.NumRows(), s.p.NumCols())
	defer span.End()

	sink := progress.WithRun(s.sink(), s.stats.RunID)
	bopts := s.opts.bnbOptions()
	bopts.Sink = sink
	if s.opts.TimeLimit > 0 {
		bopts.Deadline = start.Add(s.opts.TimeLimit)
	}

	lp, err := simplex.FromProblem(s.p)
	if err == nil {
		var d *bnb.Driver
		if d, err = bnb.New(lp, bopts); err == nil {
			s.result = d.Run(ctx)
			s.status = fromOutcome(s.result.Outcome)
		}
	}
	if err != nil {
		s.err = err
		s.status = NumericalFailure
		span.RecordError(err)
	}

	s.stats.Duration = time.Since(start)
	s.stats.Nodes = s.result.Nodes
	s.stats.MaxDepth = s.result.MaxDepth
	s.stats.Iterations = s.result.Iterations
	s.stats.DegeneratePivots = s.result.Degenerate
	s.stats.BestBound = s.result.BestBound

	done := progress.Event{
		Kind:      progress.Done,
		Status:    s.status.String(),
		Iteration: s.stats.Iterations,
		Node:      s.stats.Nodes,
		Objective: math.NaN(),
	}
	if inc, err := s.incumbent(); err == nil {
		done.Objective = inc.Objective
	}
	sink.Emit(done)
	recordSolveMetrics(ctx, s.stats.Duration, s.status, s.stats.Nodes, s.stats.Iterations)
	setSolveSpanResult(span, s.status, s.stats)
	return s.status
}

func (s *Solver) sink() progress.Sink {
	var sinks progress.Multi
	if s.opts.Logger != nil && s.opts.Verbosity > progress.Neutral {
		sinks = append(sinks, progress.NewSlogSink(s.opts.Logger, s.opts.Verbosity, s.opts.IterationLogRate))
	}
	if s.opts.Sink != nil {
		sinks = append(sinks, s.opts.Sink)
	}
	return sinks
}

// Status is the status of the last solve, NotRun before the first.
func (s *Solver) Status() Status { return s.status }

// Err explains a NotRun or NumericalFailure status caused by bad input.
func (s *Solver) Err() error { return s.err }

func (s *Solver) Stats() Stats { return s.stats }

// History lists the objective of every incumbent in the order found.
func (s *Solver) History() []float64 { return slices.Clone(s.result.History) }

// incumbent is the solution left by the last solve. A UserAbort keeps
// whatever incumbent the search had found before it was cancelled.
func (s *Solver) incumbent() (*bnb.Incumbent, error) {
	if (!s.status.HasSolution() && s.status != UserAbort) || s.result.Incumbent == nil {
		return nil, ErrNoSolution
	}
	return s.result.Incumbent, nil
}

// SolutionVariables returns the value of columns 1..C at indices 0..C-1.
func (s *Solver) SolutionVariables() ([]float64, error) {
	inc, err := s.incumbent()
	if err != nil {
		return nil, err
	}
	return slices.Clone(inc.X), nil
}

// Objective returns the objective value of the solution, constant included.
func (s *Solver) Objective() (float64, error) {
	inc, err := s.incumbent()
	if err != nil {
		return 0, err
	}
	return inc.Objective, nil
}

// Constraints returns the activity of rows 1..R at indices 0..R-1.
func (s *Solver) Constraints() ([]float64, error) {
	inc, err := s.incumbent()
	if err != nil {
		return nil, err
	}
	return slices.Clone(inc.Activity), nil
}

// Duals returns the row duals of the LP in which the solution was found.
func (s *Solver) Duals() ([]float64, error) {
	inc, err := s.incumbent()
	if err != nil {
		return nil, err
	}
	return slices.Clone(inc.Duals), nil
}

// ReducedCosts returns the column reduced costs of the LP in which the
// solution was found.
func (s *Solver) ReducedCosts() ([]float64, error) {
	inc, err := s.incumbent()
	if err != nil {
		return nil, err
	}
	return slices.Clone(inc.ReducedCosts), nil
}
