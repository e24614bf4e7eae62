// Package progress carries solver progress events to observers.
//
// The solving packages never write output themselves. They emit Events
// into a Sink; log rendering, metrics and tests subscribe through it.
package progress

import (
	"fmt"
	"strings"
)

// Kind identifies an event.
type Kind int

const (
	Iteration Kind = iota
	Refactor
	PhaseChange
	Node
	Incumbent
	Done
)

func (k Kind) String() string {
	switch k {
	case Iteration:
		return "iteration"
	case Refactor:
		return "refactor"
	case PhaseChange:
		return "phase"
	case Node:
		return "node"
	case Incumbent:
		return "incumbent"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Level is the least verbosity at which events of kind k are reported.
func (k Kind) Level() Verbosity {
	switch k {
	case Iteration:
		return Full
	case Refactor, Node:
		return Detailed
	case PhaseChange, Incumbent:
		return Normal
	default:
		return Important
	}
}

// Event is a single progress notification. Fields not meaningful for a
// Kind are left zero.
type Event struct {
	Kind  Kind
	RunID string

	Phase      int
	Iteration  int
	Objective  float64
	Degenerate bool

	Node     int
	Depth    int
	Bound    float64
	Frontier int

	Status  string
	Message string
}

type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Multi fans an event out to every sink in order.
type Multi []Sink

func (m Multi) Emit(e Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(e)
		}
	}
}

// WithRun stamps id on every event passed to s.
func WithRun(s Sink, id string) Sink {
	if s == nil {
		s = Discard
	}
	return SinkFunc(func(e Event) {
		e.RunID = id
		s.Emit(e)
	})
}

// Verbosity follows the lp_solve levels, from silent to every iteration.
type Verbosity int

const (
	Neutral Verbosity = iota
	Critical
	Severe
	Important
	Normal
	Detailed
	Full
)

var verbosityNames = [...]string{"neutral", "critical", "severe", "important", "normal", "detailed", "full"}

func (v Verbosity) String() string {
	if v < Neutral || v > Full {
		return fmt.Sprintf("verbosity(%d)", int(v))
	}
	return verbosityNames[v]
}

// ParseVerbosity accepts a level name or its number 0..6.
func ParseVerbosity(s string) (Verbosity, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range verbosityNames {
		if s == n || s == fmt.Sprint(i) {
			return Verbosity(i), nil
		}
	}
	return Neutral, fmt.Errorf("progress: unknown verbosity %q", s)
}
