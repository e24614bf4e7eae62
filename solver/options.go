package solver

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"q.log/milp/bnb"
	"q.log/milp/lu"
	"q.log/milp/progress"
	"q.log/milp/simplex"
)

// BranchRule selects the branching column among the fractional ones.
type BranchRule = bnb.Rule

const (
	BranchMostFractional = bnb.MostFractional
	BranchLowestIndex    = bnb.LowestIndex
)

var ErrInvalidOption = errors.New("solver: invalid option")

// Options are the settings of one Solver. Zero limits mean unlimited.
type Options struct {
	TimeLimit      time.Duration
	IterationLimit int
	NodeLimit      int
	DepthLimit     int

	// Epsilon is the integrality tolerance.
	Epsilon   float64
	MIPGapAbs float64
	MIPGapRel float64

	PrimalTol float64
	DualTol   float64
	PivotTol  float64

	// RefactorInterval is the number of basis updates between refactorizations.
	RefactorInterval int
	PivotThreshold   float64
	DegenerateLimit  int

	Branching  BranchRule
	FloorFirst bool

	Verbosity progress.Verbosity
	// IterationLogRate caps iteration log records per second.
	IterationLogRate float64
	Logger           *slog.Logger
	Sink             progress.Sink
}

func DefaultOptions() Options {
	b := bnb.DefaultOptions()
	s := simplex.DefaultOptions()
	l := lu.DefaultOptions()
	return Options{
		Epsilon:          b.Epsilon,
		MIPGapAbs:        b.GapAbs,
		MIPGapRel:        b.GapRel,
		PrimalTol:        s.PrimalTol,
		DualTol:          s.DualTol,
		PivotTol:         s.PivotTol,
		RefactorInterval: l.MaxUpdates,
		PivotThreshold:   l.PivotThreshold,
		DegenerateLimit:  s.DegenerateLimit,
		Branching:        BranchMostFractional,
		Verbosity:        progress.Neutral,
		IterationLogRate: 10,
	}
}

func (o Options) Validate() error {
	switch {
	case o.TimeLimit < 0:
		return fmt.Errorf("%w: negative time limit", ErrInvalidOption)
	case o.IterationLimit < 0 || o.NodeLimit < 0 || o.DepthLimit < 0:
		return fmt.Errorf("%w: negative limit", ErrInvalidOption)
	case o.Epsilon <= 0 || o.Epsilon >= 0.5:
		return fmt.Errorf("%w: integrality tolerance %g not in (0, 0.5)", ErrInvalidOption, o.Epsilon)
	case o.MIPGapAbs < 0 || o.MIPGapRel < 0:
		return fmt.Errorf("%w: negative MIP gap", ErrInvalidOption)
	case o.PrimalTol <= 0 || o.DualTol <= 0 || o.PivotTol <= 0:
		return fmt.Errorf("%w: tolerances must be positive", ErrInvalidOption)
	case o.RefactorInterval < 1:
		return fmt.Errorf("%w: refactor interval %d", ErrInvalidOption, o.RefactorInterval)
	case o.PivotThreshold <= 0 || o.PivotThreshold > 1:
		return fmt.Errorf("%w: pivot threshold %g not in (0, 1]", ErrInvalidOption, o.PivotThreshold)
	case o.Branching != BranchMostFractional && o.Branching != BranchLowestIndex:
		return fmt.Errorf("%w: branching rule %d", ErrInvalidOption, o.Branching)
	case o.Verbosity < progress.Neutral || o.Verbosity > progress.Full:
		return fmt.Errorf("%w: verbosity %d", ErrInvalidOption, o.Verbosity)
	}
	return nil
}

func (o Options) bnbOptions() bnb.Options {
	l := lu.DefaultOptions()
	l.MaxUpdates = o.RefactorInterval
	l.PivotThreshold = o.PivotThreshold
	return bnb.Options{
		Epsilon:        o.Epsilon,
		GapAbs:         o.MIPGapAbs,
		GapRel:         o.MIPGapRel,
		NodeLimit:      o.NodeLimit,
		DepthLimit:     o.DepthLimit,
		IterationLimit: o.IterationLimit,
		Rule:           o.Branching,
		Floor:          o.FloorFirst,
		Simplex: simplex.Options{
			PrimalTol:       o.PrimalTol,
			DualTol:         o.DualTol,
			PivotTol:        o.PivotTol,
			DegenerateLimit: o.DegenerateLimit,
			LU:              l,
		},
	}
}

// Option changes one setting.
type Option func(*Options)

// WithOptions replaces every setting at once.
func WithOptions(o Options) Option {
	return func(dst *Options) { *dst = o }
}

func WithTimeLimit(d time.Duration) Option {
	return func(o *Options) { o.TimeLimit = d }
}

func WithIterationLimit(n int) Option {
	return func(o *Options) { o.IterationLimit = n }
}

func WithNodeLimit(n int) Option {
	return func(o *Options) { o.NodeLimit = n }
}

func WithDepthLimit(n int) Option {
	return func(o *Options) { o.DepthLimit = n }
}

// WithEpsilon sets the integrality tolerance.
func WithEpsilon(eps float64) Option {
	return func(o *Options) { o.Epsilon = eps }
}

func WithMIPGaps(abs, rel float64) Option {
	return func(o *Options) {
		o.MIPGapAbs = abs
		o.MIPGapRel = rel
	}
}

func WithTolerances(primal, dual float64) Option {
	return func(o *Options) {
		o.PrimalTol = primal
		o.DualTol = dual
	}
}

func WithRefactorInterval(n int) Option {
	return func(o *Options) { o.RefactorInterval = n }
}

func WithDegenerateLimit(n int) Option {
	return func(o *Options) { o.DegenerateLimit = n }
}

func WithBranching(r BranchRule) Option {
	return func(o *Options) { o.Branching = r }
}

// WithFloorFirst explores the rounded down child before the rounded up one.
func WithFloorFirst(floor bool) Option {
	return func(o *Options) { o.FloorFirst = floor }
}

func WithVerbosity(v progress.Verbosity) Option {
	return func(o *Options) { o.Verbosity = v }
}

// WithLogger renders progress events through logger, filtered by the verbosity.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithSink adds an observer of progress events.
func WithSink(s progress.Sink) Option {
	return func(o *Options) { o.Sink = s }
}
