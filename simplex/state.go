package simplex

// State is the engine state. Initializing and Iterating are transient; the
// rest are terminal for a solve call.
type State int

const (
	Initializing State = iota
	Iterating
	Optimal
	Infeasible
	Unbounded
	NumericalFailure
	// IterationLimit and Aborted halt a solve before it is decided.
	IterationLimit
	Aborted
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Iterating:
		return "iterating"
	case Optimal:
		return "optimal"
	case Infeasible:
		return "infeasible"
	case Unbounded:
		return "unbounded"
	case NumericalFailure:
		return "numerical failure"
	case IterationLimit:
		return "iteration limit"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether s ends a solve call.
func (s State) Terminal() bool { return s >= Optimal }
