package model

import (
	"fmt"
	"math"
)

// SetBounds sets lower and upper bounds of column j. In restrictive mode a
// bound looser than the current one is ignored. A lower bound at +infinite
// or an upper bound at -infinite is rejected.
func (p *Problem) SetBounds(j int, lo, hi float64) error {
	if err := p.checkCol("SetBounds", j); err != nil {
		return err
	}
	if math.IsNaN(lo) || math.IsNaN(hi) {
		return fmt.Errorf("SetBounds: %w", ErrInvalidValue)
	}
	if p.boundsMode == BoundsRestrictive {
		lo = math.Max(lo, p.lower[j])
		hi = math.Min(hi, p.upper[j])
	}
	if lo > hi {
		return fmt.Errorf("SetBounds: column %d [%g, %g]: %w", j, lo, hi, ErrInvalidBounds)
	}
	if lo > 0 && p.IsInfinite(lo) || hi < 0 && p.IsInfinite(hi) {
		return fmt.Errorf("SetBounds: column %d [%g, %g] leaves no finite value: %w", j, lo, hi, ErrInvalidBounds)
	}
	p.lower[j] = lo
	p.upper[j] = hi
	return nil
}

func (p *Problem) SetLowerBound(j int, lo float64) error {
	if err := p.checkCol("SetLowerBound", j); err != nil {
		return err
	}
	return p.SetBounds(j, lo, p.upper[j])
}

func (p *Problem) SetUpperBound(j int, hi float64) error {
	if err := p.checkCol("SetUpperBound", j); err != nil {
		return err
	}
	return p.SetBounds(j, p.lower[j], hi)
}

// SetUnbounded makes column j free: (-infinite, +infinite).
func (p *Problem) SetUnbounded(j int) error {
	if err := p.checkCol("SetUnbounded", j); err != nil {
		return err
	}
	p.lower[j] = -p.infinite
	p.upper[j] = p.infinite
	return nil
}

// Bounds returns the bounds of column j as stored.
func (p *Problem) Bounds(j int) (lo, hi float64, err error) {
	if err := p.checkCol("Bounds", j); err != nil {
		return 0, 0, err
	}
	return p.lower[j], p.upper[j], nil
}

// IsNegative reports whether column j may take negative values.
func (p *Problem) IsNegative(j int) (bool, error) {
	if err := p.checkCol("IsNegative", j); err != nil {
		return false, err
	}
	return p.lower[j] < 0, nil
}

// IsUnbounded reports whether column j is free in both directions.
func (p *Problem) IsUnbounded(j int) (bool, error) {
	if err := p.checkCol("IsUnbounded", j); err != nil {
		return false, err
	}
	return p.IsInfinite(p.lower[j]) && p.IsInfinite(p.upper[j]), nil
}

func (p *Problem) SetBoundsMode(mode BoundsMode) { p.boundsMode = mode }
func (p *Problem) BoundsMode() BoundsMode        { return p.boundsMode }

// SetKind sets the variable kind of column j. Binary also sets the bounds to [0,1].
func (p *Problem) SetKind(j int, kind Kind) error {
	if err := p.checkCol("SetKind", j); err != nil {
		return err
	}
	if !kind.Valid() {
		return fmt.Errorf("SetKind: %w", ErrVariableKind)
	}
	p.kind[j] = kind
	if kind == Binary {
		p.lower[j] = 0
		p.upper[j] = 1
	}
	return nil
}

func (p *Problem) Kind(j int) (Kind, error) {
	if err := p.checkCol("Kind", j); err != nil {
		return Continuous, err
	}
	return p.kind[j], nil
}

// IsInteger reports whether column j must take an integral value.
func (p *Problem) IsInteger(j int) (bool, error) {
	k, err := p.Kind(j)
	return k != Continuous, err
}

// HasIntegers reports whether any column is integer or binary.
func (p *Problem) HasIntegers() bool {
	for _, k := range p.kind[1:] {
		if k != Continuous {
			return true
		}
	}
	return false
}

func (p *Problem) SetConstraintType(i int, typ ConstraintType) error {
	if err := p.checkRow("SetConstraintType", i); err != nil {
		return err
	}
	if !typ.Valid() {
		return fmt.Errorf("SetConstraintType: %w", ErrConstraintType)
	}
	p.rowType[i] = typ
	return nil
}

func (p *Problem) ConstraintType(i int) (ConstraintType, error) {
	if err := p.checkRow("ConstraintType", i); err != nil {
		return Free, err
	}
	return p.rowType[i], nil
}

// SetRHS sets the right-hand side of row i. Row 0 sets the objective constant.
func (p *Problem) SetRHS(i int, v float64) error {
	if i != 0 {
		if err := p.checkRow("SetRHS", i); err != nil {
			return err
		}
	}
	if math.IsNaN(v) {
		return fmt.Errorf("SetRHS: %w", ErrInvalidValue)
	}
	return p.coef.Set(i, 0, v)
}

func (p *Problem) RHS(i int) (float64, error) {
	if i < 0 || i > p.NumRows() {
		return 0, fmt.Errorf("RHS: row %d: %w", i, ErrIndexOutOfRange)
	}
	return p.coef.At(i, 0), nil
}

// SetRange bounds the activity of row i from the side opposite to its RHS:
// a <= row becomes rhs-|r| <= a·x <= rhs, a >= row becomes rhs <= a·x <= rhs+|r|.
// A range of magnitude infinite or more removes it.
func (p *Problem) SetRange(i int, r float64) error {
	if err := p.checkRow("SetRange", i); err != nil {
		return err
	}
	if math.IsNaN(r) {
		return fmt.Errorf("SetRange: %w", ErrInvalidValue)
	}
	if p.IsInfinite(r) {
		p.rowRange[i] = math.Inf(1)
		return nil
	}
	p.rowRange[i] = math.Abs(r)
	return nil
}

// Range returns the range of row i and whether one is set.
func (p *Problem) Range(i int) (float64, bool, error) {
	if err := p.checkRow("Range", i); err != nil {
		return 0, false, err
	}
	r := p.rowRange[i]
	if math.IsInf(r, 1) {
		return 0, false, nil
	}
	return r, true, nil
}

// RowBounds returns the activity interval of row i implied by its type, RHS
// and range. Unbounded sides are ±Inf.
func (p *Problem) RowBounds(i int) (lo, hi float64, err error) {
	if err := p.checkRow("RowBounds", i); err != nil {
		return 0, 0, err
	}
	rhs := p.coef.At(i, 0)
	r, ranged := p.rowRange[i], !math.IsInf(p.rowRange[i], 1)
	lo, hi = math.Inf(-1), math.Inf(1)
	switch p.rowType[i] {
	case LE:
		hi = rhs
		if ranged {
			lo = rhs - r
		}
	case GE:
		lo = rhs
		if ranged {
			hi = rhs + r
		}
	case EQ:
		lo, hi = rhs, rhs
	}
	return p.finite(lo), p.finite(hi), nil
}

// ColumnBounds returns the bounds of column j with the infinite threshold
// applied: magnitudes at or above Infinite() become ±Inf.
func (p *Problem) ColumnBounds(j int) (lo, hi float64, err error) {
	if err := p.checkCol("ColumnBounds", j); err != nil {
		return 0, 0, err
	}
	return p.finite(p.lower[j]), p.finite(p.upper[j]), nil
}

// SetInfinite sets the magnitude from which values are treated as unbounded.
func (p *Problem) SetInfinite(v float64) error {
	if math.IsNaN(v) || v <= 0 {
		return fmt.Errorf("SetInfinite %g: %w", v, ErrInvalidValue)
	}
	for j := 1; j <= p.NumCols(); j++ {
		if p.lower[j] <= -p.infinite {
			p.lower[j] = -v
		}
		if p.upper[j] >= p.infinite {
			p.upper[j] = v
		}
	}
	p.infinite = v
	return nil
}

func (p *Problem) Infinite() float64 { return p.infinite }

func (p *Problem) IsInfinite(v float64) bool { return math.Abs(v) >= p.infinite }

func (p *Problem) finite(v float64) float64 {
	if v >= p.infinite {
		return math.Inf(1)
	}
	if v <= -p.infinite {
		return math.Inf(-1)
	}
	return v
}

func (p *Problem) SetColName(j int, name string) error {
	if err := p.checkCol("SetColName", j); err != nil {
		return err
	}
	p.colNames[j] = name
	return nil
}

// ColName returns the name of column j, or C<j> when none was set.
func (p *Problem) ColName(j int) string {
	if j >= 1 && j <= p.NumCols() && p.colNames[j] != "" {
		return p.colNames[j]
	}
	return fmt.Sprintf("C%d", j)
}

func (p *Problem) SetRowName(i int, name string) error {
	if err := p.checkRow("SetRowName", i); err != nil {
		return err
	}
	p.rowNames[i] = name
	return nil
}

// RowName returns the name of row i, or R<i> when none was set.
func (p *Problem) RowName(i int) string {
	if i >= 1 && i <= p.NumRows() && p.rowNames[i] != "" {
		return p.rowNames[i]
	}
	if i == 0 {
		return "R0"
	}
	return fmt.Sprintf("R%d", i)
}
