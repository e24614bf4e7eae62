package lu

import (
	"errors"
	"fmt"
)

var (
	// ErrSingularBasis is matched by every *SingularError.
	ErrSingularBasis = errors.New("lu: singular basis")

	// ErrUnstableUpdate is returned by Update when the eta pivot is too small
	// to be applied. The factorization is left untouched.
	ErrUnstableUpdate = errors.New("lu: unstable update pivot")

	ErrNotFactored = errors.New("lu: no valid factorization")
	ErrDimension   = errors.New("lu: dimension mismatch")
)

// SingularError reports the basis positions that could not be pivoted and
// the rows left uncovered by the elimination. Replacing each deficient
// position with the logical of one uncovered row repairs the basis.
type SingularError struct {
	Positions []int
	Rows      []int
}

func (e *SingularError) Error() string {
	return fmt.Sprintf("lu: singular basis, %d deficient positions %v", len(e.Positions), e.Positions)
}

func (e *SingularError) Is(target error) bool {
	return target == ErrSingularBasis
}
