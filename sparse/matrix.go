// Package sparse stores the constraint matrix in compressed column form.
//
// Columns are kept as sorted sparse vectors so the simplex inner loop can read
// a pivot column without copying. A row index is rebuilt lazily the first
// time a row is requested after a structural change; concurrent readers
// share that rebuild, but writers must not run alongside them.
package sparse

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrLengthMismatch = errors.New("sparse: index and value lengths differ")
	ErrNegativeIndex  = errors.New("sparse: negative index")
	ErrOutOfRange     = errors.New("sparse: index out of range")
)

// Matrix is a column-compressed sparse matrix.
type Matrix struct {
	rows int
	cols []Vector

	// mu guards the lazily built row index.
	mu sync.Mutex

	// rowCols[i] lists the columns holding a nonzero in row i.
	rowCols  [][]int
	rowStale bool
}

// NewMatrix returns an empty rows x cols matrix.
func NewMatrix(rows, cols int) *Matrix {
	if rows < 0 || cols < 0 {
		panic("sparse: negative dimension")
	}
	return &Matrix{
		rows:     rows,
		cols:     make([]Vector, cols),
		rowStale: true,
	}
}

func (m *Matrix) Dims() (int, int) { return m.rows, len(m.cols) }

func (m *Matrix) Rows() int { return m.rows }

func (m *Matrix) Cols() int { return len(m.cols) }

// NNZ returns the number of stored nonzeros.
func (m *Matrix) NNZ() int {
	n := 0
	for _, c := range m.cols {
		n += c.NNZ()
	}
	return n
}

// Column returns column j as stored. The caller must not modify it.
func (m *Matrix) Column(j int) Vector {
	return m.cols[j]
}

// DenseColumn returns column j as a dense slice of length Rows().
func (m *Matrix) DenseColumn(j int) ([]float64, error) {
	if j < 0 || j >= len(m.cols) {
		return nil, fmt.Errorf("column %d: %w", j, ErrOutOfRange)
	}
	return m.cols[j].Dense(m.rows), nil
}

// Row gathers row i as a sparse vector indexed by column.
func (m *Matrix) Row(i int) (Vector, error) {
	if i < 0 || i >= m.rows {
		return Vector{}, fmt.Errorf("row %d: %w", i, ErrOutOfRange)
	}
	cols := m.rowIndex(i)
	v := Vector{
		Index: make([]int, 0, len(cols)),
		Value: make([]float64, 0, len(cols)),
	}
	for _, j := range cols {
		v.Index = append(v.Index, j)
		v.Value = append(v.Value, m.cols[j].At(i))
	}
	return v, nil
}

// DenseRow returns row i as a dense slice of length Cols().
func (m *Matrix) DenseRow(i int) ([]float64, error) {
	v, err := m.Row(i)
	if err != nil {
		return nil, err
	}
	return v.Dense(len(m.cols)), nil
}

func (m *Matrix) At(i, j int) float64 {
	return m.cols[j].At(i)
}

// Set writes a single entry. Setting zero removes the entry.
func (m *Matrix) Set(i, j int, x float64) error {
	if i < 0 || i >= m.rows || j < 0 || j >= len(m.cols) {
		return fmt.Errorf("entry (%d,%d): %w", i, j, ErrOutOfRange)
	}
	before := m.cols[j].NNZ()
	m.cols[j].set(i, x)
	if m.cols[j].NNZ() != before {
		m.rowStale = true
	}
	return nil
}

// SetColumn replaces column j.
func (m *Matrix) SetColumn(j int, v Vector) error {
	if j < 0 || j >= len(m.cols) {
		return fmt.Errorf("column %d: %w", j, ErrOutOfRange)
	}
	if err := m.checkVector(v); err != nil {
		return err
	}
	m.cols[j] = v.Clone().compact()
	m.rowStale = true
	return nil
}

// InsertColumn inserts v before column j; j == Cols() appends.
func (m *Matrix) InsertColumn(j int, v Vector) error {
	if j < 0 || j > len(m.cols) {
		return fmt.Errorf("column %d: %w", j, ErrOutOfRange)
	}
	if err := m.checkVector(v); err != nil {
		return err
	}
	m.cols = append(m.cols, Vector{})
	copy(m.cols[j+1:], m.cols[j:])
	m.cols[j] = v.Clone().compact()
	m.rowStale = true
	return nil
}

// RemoveColumn deletes column j and shifts the following columns left.
func (m *Matrix) RemoveColumn(j int) error {
	if j < 0 || j >= len(m.cols) {
		return fmt.Errorf("column %d: %w", j, ErrOutOfRange)
	}
	m.cols = append(m.cols[:j], m.cols[j+1:]...)
	m.rowStale = true
	return nil
}

// InsertRow inserts a row before row i; i == Rows() appends.
// values is indexed by column and must have length Cols().
func (m *Matrix) InsertRow(i int, values []float64) error {
	if i < 0 || i > m.rows {
		return fmt.Errorf("row %d: %w", i, ErrOutOfRange)
	}
	if len(values) != len(m.cols) {
		return fmt.Errorf("row of length %d for %d columns: %w", len(values), len(m.cols), ErrLengthMismatch)
	}
	for j := range m.cols {
		m.cols[j].shift(i, 1)
		if values[j] != 0 {
			m.cols[j].set(i, values[j])
		}
	}
	m.rows++
	m.rowStale = true
	return nil
}

// RemoveRow deletes row i and shifts the following rows up.
func (m *Matrix) RemoveRow(i int) error {
	if i < 0 || i >= m.rows {
		return fmt.Errorf("row %d: %w", i, ErrOutOfRange)
	}
	for j := range m.cols {
		m.cols[j].shift(i, -1)
	}
	m.rows--
	m.rowStale = true
	return nil
}

// MulVec returns A*x.
func (m *Matrix) MulVec(x []float64) []float64 {
	y := make([]float64, m.rows)
	for j, c := range m.cols {
		if x[j] == 0 {
			continue
		}
		for k, i := range c.Index {
			y[i] += c.Value[k] * x[j]
		}
	}
	return y
}

// TMulVec returns A^T*y.
func (m *Matrix) TMulVec(y []float64) []float64 {
	x := make([]float64, len(m.cols))
	for j, c := range m.cols {
		x[j] = c.Dot(y)
	}
	return x
}

// Clone returns a deep copy.
func (m *Matrix) Clone() *Matrix {
	c := &Matrix{
		rows:     m.rows,
		cols:     make([]Vector, len(m.cols)),
		rowStale: true,
	}
	for j, v := range m.cols {
		c.cols[j] = v.Clone()
	}
	return c
}

func (m *Matrix) checkVector(v Vector) error {
	if len(v.Index) != len(v.Value) {
		return ErrLengthMismatch
	}
	for k, i := range v.Index {
		if i < 0 || i >= m.rows {
			return fmt.Errorf("row %d: %w", i, ErrOutOfRange)
		}
		if k > 0 && v.Index[k-1] >= i {
			return fmt.Errorf("unsorted index %d: %w", i, ErrOutOfRange)
		}
	}
	return nil
}

// rowIndex returns the columns holding a nonzero in row i. The returned
// slice is shared and must not be modified.
func (m *Matrix) rowIndex(i int) []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buildRowIndex()
	return m.rowCols[i]
}

func (m *Matrix) buildRowIndex() {
	if !m.rowStale && len(m.rowCols) == m.rows {
		return
	}
	counts := make([]int, m.rows)
	for _, c := range m.cols {
		for _, i := range c.Index {
			counts[i]++
		}
	}
	m.rowCols = make([][]int, m.rows)
	for i := range m.rowCols {
		m.rowCols[i] = make([]int, 0, counts[i])
	}
	for j, c := range m.cols {
		for _, i := range c.Index {
			m.rowCols[i] = append(m.rowCols[i], j)
		}
	}
	m.rowStale = false
}
