package sparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func buildMatrix(t *testing.T) *Matrix {
	t.Helper()
	// 1 0 2
	// 0 3 0
	// 4 0 5
	m := NewMatrix(3, 3)
	require.NoError(t, m.Set(0, 0, 1))
	require.NoError(t, m.Set(2, 0, 4))
	require.NoError(t, m.Set(1, 1, 3))
	require.NoError(t, m.Set(0, 2, 2))
	require.NoError(t, m.Set(2, 2, 5))
	return m
}

func TestNewVectorSortsAndMerges(t *testing.T) {
	v, err := NewVector([]int{4, 1, 4, 2}, []float64{1, 2, 3, 0})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4}, v.Index)
	assert.Equal(t, []float64{2, 4}, v.Value)

	_, err = NewVector([]int{1}, nil)
	assert.ErrorIs(t, err, ErrLengthMismatch)
	_, err = NewVector([]int{-1}, []float64{1})
	assert.ErrorIs(t, err, ErrNegativeIndex)
}

func TestDenseExtraction(t *testing.T) {
	m := buildMatrix(t)

	col, err := m.DenseColumn(2)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 0, 5}, col)

	row, err := m.DenseRow(2)
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 0, 5}, row)

	_, err = m.DenseRow(3)
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.Equal(t, 5, m.NNZ())
}

func TestInsertRemoveColumn(t *testing.T) {
	m := buildMatrix(t)
	v, err := NewVector([]int{1}, []float64{7})
	require.NoError(t, err)

	require.NoError(t, m.InsertColumn(1, v))
	assert.Equal(t, 4, m.Cols())
	row, err := m.DenseRow(1)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 7, 3, 0}, row)

	require.NoError(t, m.RemoveColumn(1))
	row, err = m.DenseRow(1)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 3, 0}, row)

	bad, _ := NewVector([]int{3}, []float64{1})
	assert.ErrorIs(t, m.InsertColumn(0, bad), ErrOutOfRange)
	assert.Equal(t, 3, m.Cols())
}

func TestInsertRemoveRow(t *testing.T) {
	m := buildMatrix(t)

	require.NoError(t, m.InsertRow(1, []float64{9, 0, 8}))
	assert.Equal(t, 4, m.Rows())
	col, err := m.DenseColumn(0)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 9, 0, 4}, col)

	require.NoError(t, m.RemoveRow(0))
	col, err = m.DenseColumn(2)
	require.NoError(t, err)
	assert.Equal(t, []float64{8, 0, 5}, col)

	row, err := m.DenseRow(2)
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 0, 5}, row)

	assert.ErrorIs(t, m.InsertRow(0, []float64{1}), ErrLengthMismatch)
}

func TestMulVec(t *testing.T) {
	m := buildMatrix(t)
	assert.Equal(t, []float64{3, 3, 9}, m.MulVec([]float64{1, 1, 1}))
	assert.Equal(t, []float64{5, 3, 7}, m.TMulVec([]float64{1, 1, 1}))
}

func TestCloneIsIndependent(t *testing.T) {
	m := buildMatrix(t)
	c := m.Clone()
	require.NoError(t, c.Set(0, 0, 42))
	assert.Equal(t, 1.0, m.At(0, 0))
	assert.Equal(t, 42.0, c.At(0, 0))
}

func TestSetZeroRemovesEntry(t *testing.T) {
	m := buildMatrix(t)
	require.NoError(t, m.Set(1, 1, 0))
	assert.Equal(t, 4, m.NNZ())
	row, err := m.Row(1)
	require.NoError(t, err)
	assert.Equal(t, 0, row.NNZ())
}

func TestConcurrentRowReads(t *testing.T) {
	m := buildMatrix(t)
	require.NoError(t, m.Set(1, 2, 6))

	want := [][]float64{{1, 0, 2}, {0, 3, 6}, {4, 0, 5}}
	var g errgroup.Group
	for range 8 {
		g.Go(func() error {
			for i, w := range want {
				row, err := m.DenseRow(i)
				if err != nil {
					return err
				}
				assert.Equal(t, w, row)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}
