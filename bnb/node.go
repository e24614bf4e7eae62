package bnb

import (
	"container/heap"

	"q.log/milp/simplex"
)

// State is the life cycle of a search node.
type State int

const (
	// Relaxed nodes have a solved LP relaxation, or wait in the frontier for one.
	Relaxed State = iota
	Branched
	Pruned
	Integral
)

func (s State) String() string {
	switch s {
	case Relaxed:
		return "relaxed"
	case Branched:
		return "branched"
	case Pruned:
		return "pruned"
	case Integral:
		return "integral"
	default:
		return "unknown"
	}
}

// boundChange is the tightened interval of one column, relative to the parent.
type boundChange struct {
	col    int
	lo, hi float64
}

// Node lives in the driver's arena and refers to its parent by index.
type Node struct {
	ID     int
	Parent int // -1 at the root
	Depth  int
	State  State
	// Bound is the LP objective of the node, or of its parent while unsolved,
	// in the internal minimization sense.
	Bound float64

	change boundChange
	basis  simplex.Basis
}

// frontier is a min-heap of arena indices keyed by bound, lower ID first on ties.
type frontier struct {
	arena *[]Node
	ids   []int
}

func (f *frontier) Len() int { return len(f.ids) }

func (f *frontier) Less(a, b int) bool {
	na, nb := (*f.arena)[f.ids[a]], (*f.arena)[f.ids[b]]
	if na.Bound != nb.Bound {
		return na.Bound < nb.Bound
	}
	return na.ID < nb.ID
}

func (f *frontier) Swap(a, b int) { f.ids[a], f.ids[b] = f.ids[b], f.ids[a] }

func (f *frontier) Push(x any) { f.ids = append(f.ids, x.(int)) }

func (f *frontier) Pop() any {
	n := len(f.ids)
	id := f.ids[n-1]
	f.ids = f.ids[:n-1]
	return id
}

func (f *frontier) push(id int) { heap.Push(f, id) }

func (f *frontier) pop() int { return heap.Pop(f).(int) }

// best returns the smallest bound in the frontier.
func (f *frontier) best() (float64, bool) {
	if len(f.ids) == 0 {
		return 0, false
	}
	return (*f.arena)[f.ids[0]].Bound, true
}
