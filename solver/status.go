package solver

import "q.log/milp/bnb"

// Status is the outcome of a solve. The numbering follows lp_solve.
type Status int

const (
	NotRun           Status = -1
	Optimal          Status = 0
	Suboptimal       Status = 1
	Infeasible       Status = 2
	Unbounded        Status = 3
	Degenerate       Status = 4
	NumericalFailure Status = 5
	UserAbort        Status = 6
	Timeout          Status = 7
)

func (s Status) String() string {
	switch s {
	case NotRun:
		return "NOT RUN"
	case Optimal:
		return "OPTIMAL"
	case Suboptimal:
		return "SUBOPTIMAL"
	case Infeasible:
		return "INFEASIBLE"
	case Unbounded:
		return "UNBOUNDED"
	case Degenerate:
		return "DEGENERATE"
	case NumericalFailure:
		return "NUMERICAL FAILURE"
	case UserAbort:
		return "USER ABORT"
	case Timeout:
		return "TIMEOUT"
	default:
		return "UNKNOWN"
	}
}

// HasSolution reports whether a solve ending in s always leaves a solution
// to read. A UserAbort leaves one only when an incumbent was found first.
func (s Status) HasSolution() bool { return s == Optimal || s == Suboptimal }

func fromOutcome(o bnb.Outcome) Status {
	switch o {
	case bnb.Optimal:
		return Optimal
	case bnb.Suboptimal:
		return Suboptimal
	case bnb.Infeasible:
		return Infeasible
	case bnb.Unbounded:
		return Unbounded
	case bnb.Degenerate:
		return Degenerate
	case bnb.UserAbort:
		return UserAbort
	case bnb.Timeout:
		return Timeout
	default:
		return NumericalFailure
	}
}
