package simplex

import (
	"errors"
	"slices"
)

// VarStatus is the position of a variable relative to the basis.
type VarStatus int8

const (
	Basic VarStatus = iota
	AtLower
	AtUpper
	// AtZero is a nonbasic free variable held at zero.
	AtZero
)

func (s VarStatus) String() string {
	switch s {
	case Basic:
		return "basic"
	case AtLower:
		return "lower"
	case AtUpper:
		return "upper"
	case AtZero:
		return "zero"
	default:
		return "unknown"
	}
}

var ErrBasisShape = errors.New("simplex: basis does not match the problem shape")

// Basis is a snapshot of a simplex basis. Variables are numbered structurals
// first (n), then one logical per row (m), then one artificial per row (m).
type Basis struct {
	// Head lists the basic variable of each basis position.
	Head []int
	// Status holds the status of every variable.
	Status []VarStatus
	// Sign is the column sign of each artificial.
	Sign []float64
}

func (b Basis) Empty() bool { return len(b.Head) == 0 }

func (b Basis) Clone() Basis {
	return Basis{
		Head:   slices.Clone(b.Head),
		Status: slices.Clone(b.Status),
		Sign:   slices.Clone(b.Sign),
	}
}

func (b Basis) validate(m, total int) error {
	if len(b.Head) != m || len(b.Status) != total || len(b.Sign) != m {
		return ErrBasisShape
	}
	seen := make([]bool, total)
	for _, j := range b.Head {
		if j < 0 || j >= total || seen[j] || b.Status[j] != Basic {
			return ErrBasisShape
		}
		seen[j] = true
	}
	basic := 0
	for _, s := range b.Status {
		if s == Basic {
			basic++
		}
	}
	if basic != m {
		return ErrBasisShape
	}
	return nil
}
