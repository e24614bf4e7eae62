package model

import (
	"errors"
	"fmt"
)

var (
	ErrDimension        = errors.New("model: dimension mismatch")
	ErrReservedIndex    = errors.New("model: reserved index")
	ErrIndexOutOfRange  = errors.New("model: index out of range")
	ErrInvalidBounds    = errors.New("model: invalid bounds")
	ErrInvalidValue     = errors.New("model: NaN value")
	ErrNegativeSize     = errors.New("model: negative size")
	ErrConstraintType   = errors.New("model: unknown constraint type")
	ErrVariableKind     = errors.New("model: unknown variable kind")
	ErrInvalidDirection = errors.New("model: unknown objective direction")
)

// DimensionError is returned when a coefficient vector does not have the
// length the current model shape requires. The model is left unchanged.
type DimensionError struct {
	Op   string
	Want int
	Got  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("model: %s: vector of length %d, want %d", e.Op, e.Got, e.Want)
}

func (e *DimensionError) Is(target error) bool { return target == ErrDimension }

// ReservedIndexError is returned on an attempt to delete the objective row
// or the RHS column.
type ReservedIndexError struct {
	Op    string
	Index int
}

func (e *ReservedIndexError) Error() string {
	return fmt.Sprintf("model: %s: index %d is reserved", e.Op, e.Index)
}

func (e *ReservedIndexError) Is(target error) bool { return target == ErrReservedIndex }
