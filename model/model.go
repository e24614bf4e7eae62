package model

import (
	"fmt"
	"math"
	"slices"

	"q.log/milp/sparse"
)

// Problem is a mixed-integer linear program.
//
// The coefficient store is (R+1) x (C+1): row 0 holds the objective and
// column 0 holds the right-hand sides, with the objective constant at (0,0).
// Structural rows and columns are numbered from 1.
type Problem struct {
	name string

	//coef objective row, constraint rows and RHS column
	coef *sparse.Matrix

	rowType  []ConstraintType
	rowRange []float64 // +Inf when the row has no range
	rowNames []string

	lower    []float64
	upper    []float64
	kind     []Kind
	colNames []string

	direction  Direction
	infinite   float64
	boundsMode BoundsMode
}

// New creates a problem with rows zero constraints of type <= and cols
// continuous columns bounded by [0, infinite).
func New(rows, cols int) (*Problem, error) {
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("new %dx%d: %w", rows, cols, ErrNegativeSize)
	}
	p := &Problem{
		coef:     sparse.NewMatrix(rows+1, cols+1),
		rowType:  make([]ConstraintType, rows+1),
		rowRange: make([]float64, rows+1),
		rowNames: make([]string, rows+1),
		lower:    make([]float64, cols+1),
		upper:    make([]float64, cols+1),
		kind:     make([]Kind, cols+1),
		colNames: make([]string, cols+1),
		infinite: DefaultInfinite,
	}
	p.rowType[0] = Free
	for i := 1; i <= rows; i++ {
		p.rowType[i] = LE
	}
	for i := range p.rowRange {
		p.rowRange[i] = math.Inf(1)
	}
	for j := 1; j <= cols; j++ {
		p.upper[j] = p.infinite
	}
	return p, nil
}

func (p *Problem) NumRows() int { return p.coef.Rows() - 1 }

func (p *Problem) NumCols() int { return p.coef.Cols() - 1 }

func (p *Problem) Name() string        { return p.name }
func (p *Problem) SetName(name string) { p.name = name }

// Matrix exposes the coefficient store. Callers must treat it as read only.
func (p *Problem) Matrix() *sparse.Matrix { return p.coef }

// AddColumn appends a column. coeffs[0] is the objective coefficient and
// coeffs[i] the coefficient in row i, so len(coeffs) must be NumRows()+1.
func (p *Problem) AddColumn(coeffs []float64) error {
	if len(coeffs) != p.NumRows()+1 {
		return &DimensionError{Op: "AddColumn", Want: p.NumRows() + 1, Got: len(coeffs)}
	}
	if hasNaN(coeffs) {
		return fmt.Errorf("AddColumn: %w", ErrInvalidValue)
	}
	return p.appendColumn(sparse.FromDense(coeffs))
}

// AddColumnSparse appends a column given as values scattered over rows.
// Row 0 is the objective coefficient.
func (p *Problem) AddColumnSparse(values []float64, rows []int) error {
	if len(values) != len(rows) {
		return &DimensionError{Op: "AddColumnSparse", Want: len(rows), Got: len(values)}
	}
	if hasNaN(values) {
		return fmt.Errorf("AddColumnSparse: %w", ErrInvalidValue)
	}
	for _, i := range rows {
		if i < 0 || i > p.NumRows() {
			return fmt.Errorf("AddColumnSparse: row %d: %w", i, ErrIndexOutOfRange)
		}
	}
	v, err := sparse.NewVector(rows, values)
	if err != nil {
		return fmt.Errorf("AddColumnSparse: %w", err)
	}
	return p.appendColumn(v)
}

func (p *Problem) appendColumn(v sparse.Vector) error {
	if err := p.coef.InsertColumn(p.coef.Cols(), v); err != nil {
		return fmt.Errorf("add column: %w", err)
	}
	p.lower = append(p.lower, 0)
	p.upper = append(p.upper, p.infinite)
	p.kind = append(p.kind, Continuous)
	p.colNames = append(p.colNames, "")
	return nil
}

// AddRow appends a constraint coeffs[1:]·x typ rhs. len(coeffs) must be
// NumCols()+1; coeffs[0] is ignored.
func (p *Problem) AddRow(coeffs []float64, typ ConstraintType, rhs float64) error {
	if len(coeffs) != p.NumCols()+1 {
		return &DimensionError{Op: "AddRow", Want: p.NumCols() + 1, Got: len(coeffs)}
	}
	if !typ.Valid() {
		return fmt.Errorf("AddRow: %w", ErrConstraintType)
	}
	if hasNaN(coeffs[1:]) || math.IsNaN(rhs) {
		return fmt.Errorf("AddRow: %w", ErrInvalidValue)
	}
	row := slices.Clone(coeffs)
	row[0] = rhs
	return p.appendRow(row, typ)
}

// AddRowSparse appends a constraint with coefficients scattered over columns.
func (p *Problem) AddRowSparse(values []float64, cols []int, typ ConstraintType, rhs float64) error {
	if len(values) != len(cols) {
		return &DimensionError{Op: "AddRowSparse", Want: len(cols), Got: len(values)}
	}
	if !typ.Valid() {
		return fmt.Errorf("AddRowSparse: %w", ErrConstraintType)
	}
	if hasNaN(values) || math.IsNaN(rhs) {
		return fmt.Errorf("AddRowSparse: %w", ErrInvalidValue)
	}
	row := make([]float64, p.NumCols()+1)
	for k, j := range cols {
		if j < 1 || j > p.NumCols() {
			return fmt.Errorf("AddRowSparse: column %d: %w", j, ErrIndexOutOfRange)
		}
		row[j] += values[k]
	}
	row[0] = rhs
	return p.appendRow(row, typ)
}

func (p *Problem) appendRow(row []float64, typ ConstraintType) error {
	if err := p.coef.InsertRow(p.coef.Rows(), row); err != nil {
		return fmt.Errorf("add row: %w", err)
	}
	p.rowType = append(p.rowType, typ)
	p.rowRange = append(p.rowRange, math.Inf(1))
	p.rowNames = append(p.rowNames, "")
	return nil
}

// DeleteColumn removes column j; higher columns move down by one.
func (p *Problem) DeleteColumn(j int) error {
	if j == 0 {
		return &ReservedIndexError{Op: "DeleteColumn", Index: 0}
	}
	if err := p.checkCol("DeleteColumn", j); err != nil {
		return err
	}
	if err := p.coef.RemoveColumn(j); err != nil {
		return fmt.Errorf("DeleteColumn: %w", err)
	}
	p.lower = slices.Delete(p.lower, j, j+1)
	p.upper = slices.Delete(p.upper, j, j+1)
	p.kind = slices.Delete(p.kind, j, j+1)
	p.colNames = slices.Delete(p.colNames, j, j+1)
	return nil
}

// DeleteRow removes constraint i; higher rows move up by one.
func (p *Problem) DeleteRow(i int) error {
	if i == 0 {
		return &ReservedIndexError{Op: "DeleteRow", Index: 0}
	}
	if err := p.checkRow("DeleteRow", i); err != nil {
		return err
	}
	if err := p.coef.RemoveRow(i); err != nil {
		return fmt.Errorf("DeleteRow: %w", err)
	}
	p.rowType = slices.Delete(p.rowType, i, i+1)
	p.rowRange = slices.Delete(p.rowRange, i, i+1)
	p.rowNames = slices.Delete(p.rowNames, i, i+1)
	return nil
}

// Resize sets the problem to rows constraints and cols columns, deleting
// trailing rows/columns or appending empty ones.
func (p *Problem) Resize(rows, cols int) error {
	if rows < 0 || cols < 0 {
		return fmt.Errorf("Resize %dx%d: %w", rows, cols, ErrNegativeSize)
	}
	for p.NumCols() > cols {
		if err := p.DeleteColumn(p.NumCols()); err != nil {
			return err
		}
	}
	for p.NumRows() > rows {
		if err := p.DeleteRow(p.NumRows()); err != nil {
			return err
		}
	}
	for p.NumCols() < cols {
		if err := p.appendColumn(sparse.Vector{}); err != nil {
			return err
		}
	}
	for p.NumRows() < rows {
		if err := p.appendRow(make([]float64, p.NumCols()+1), LE); err != nil {
			return err
		}
	}
	return nil
}

// SetObjective replaces the objective row. coeffs[0] is the objective
// constant, coeffs[j] the coefficient of column j.
func (p *Problem) SetObjective(coeffs []float64, dir Direction) error {
	if len(coeffs) != p.NumCols()+1 {
		return &DimensionError{Op: "SetObjective", Want: p.NumCols() + 1, Got: len(coeffs)}
	}
	if dir != Minimize && dir != Maximize {
		return fmt.Errorf("SetObjective: %w", ErrInvalidDirection)
	}
	if hasNaN(coeffs) {
		return fmt.Errorf("SetObjective: %w", ErrInvalidValue)
	}
	for j, c := range coeffs {
		if err := p.coef.Set(0, j, c); err != nil {
			return fmt.Errorf("SetObjective: %w", err)
		}
	}
	p.direction = dir
	return nil
}

// SetObjectiveSparse sets the objective coefficients of the given columns,
// leaving the others untouched.
func (p *Problem) SetObjectiveSparse(values []float64, cols []int) error {
	if len(values) != len(cols) {
		return &DimensionError{Op: "SetObjectiveSparse", Want: len(cols), Got: len(values)}
	}
	if hasNaN(values) {
		return fmt.Errorf("SetObjectiveSparse: %w", ErrInvalidValue)
	}
	for _, j := range cols {
		if err := p.checkCol("SetObjectiveSparse", j); err != nil {
			return err
		}
	}
	for k, j := range cols {
		if err := p.coef.Set(0, j, values[k]); err != nil {
			return fmt.Errorf("SetObjectiveSparse: %w", err)
		}
	}
	return nil
}

func (p *Problem) SetMaximize()         { p.direction = Maximize }
func (p *Problem) SetMinimize()         { p.direction = Minimize }
func (p *Problem) Direction() Direction { return p.direction }

// Objective returns the objective row as a dense slice of length NumCols()+1.
func (p *Problem) Objective() []float64 {
	row, _ := p.coef.DenseRow(0)
	return row
}

// Column returns column j densely: objective coefficient followed by the
// coefficients of rows 1..R. Column 0 is the RHS vector.
func (p *Problem) Column(j int) ([]float64, error) {
	if j < 0 || j > p.NumCols() {
		return nil, fmt.Errorf("Column %d: %w", j, ErrIndexOutOfRange)
	}
	return p.coef.DenseColumn(j)
}

// Row returns row i densely with the RHS at index 0. Row 0 is the objective.
func (p *Problem) Row(i int) ([]float64, error) {
	if i < 0 || i > p.NumRows() {
		return nil, fmt.Errorf("Row %d: %w", i, ErrIndexOutOfRange)
	}
	return p.coef.DenseRow(i)
}

// Clone returns an independent deep copy.
func (p *Problem) Clone() *Problem {
	c := *p
	c.coef = p.coef.Clone()
	c.rowType = slices.Clone(p.rowType)
	c.rowRange = slices.Clone(p.rowRange)
	c.rowNames = slices.Clone(p.rowNames)
	c.lower = slices.Clone(p.lower)
	c.upper = slices.Clone(p.upper)
	c.kind = slices.Clone(p.kind)
	c.colNames = slices.Clone(p.colNames)
	return &c
}

func (p *Problem) checkCol(op string, j int) error {
	if j < 1 || j > p.NumCols() {
		return fmt.Errorf("%s: column %d: %w", op, j, ErrIndexOutOfRange)
	}
	return nil
}

func (p *Problem) checkRow(op string, i int) error {
	if i < 1 || i > p.NumRows() {
		return fmt.Errorf("%s: row %d: %w", op, i, ErrIndexOutOfRange)
	}
	return nil
}

func hasNaN(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) {
			return true
		}
	}
	return false
}
