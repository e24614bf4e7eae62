package sparse

import (
	"math"
	"sort"
)

// Vector is a sparse vector with strictly increasing indexes.
type Vector struct {
	Index []int
	Value []float64
}

// NewVector builds a Vector from an unordered index/value list.
// Duplicated indexes are summed and explicit zeros are dropped.
func NewVector(index []int, value []float64) (Vector, error) {
	if len(index) != len(value) {
		return Vector{}, ErrLengthMismatch
	}
	type entry struct {
		i int
		v float64
	}
	entries := make([]entry, 0, len(index))
	for k, i := range index {
		if i < 0 {
			return Vector{}, ErrNegativeIndex
		}
		entries = append(entries, entry{i, value[k]})
	}
	sort.SliceStable(entries, func(a, b int) bool { return entries[a].i < entries[b].i })

	v := Vector{
		Index: make([]int, 0, len(entries)),
		Value: make([]float64, 0, len(entries)),
	}
	for _, e := range entries {
		n := len(v.Index)
		if n > 0 && v.Index[n-1] == e.i {
			v.Value[n-1] += e.v
			continue
		}
		v.Index = append(v.Index, e.i)
		v.Value = append(v.Value, e.v)
	}
	return v.compact(), nil
}

// FromDense keeps the nonzero entries of d.
func FromDense(d []float64) Vector {
	v := Vector{}
	for i, x := range d {
		if x != 0 {
			v.Index = append(v.Index, i)
			v.Value = append(v.Value, x)
		}
	}
	return v
}

// Dense scatters v into a new slice of length n. Entries at or beyond n are dropped.
func (v Vector) Dense(n int) []float64 {
	d := make([]float64, n)
	v.ScatterInto(d)
	return d
}

// ScatterInto writes the stored entries into d, ignoring indexes past len(d).
func (v Vector) ScatterInto(d []float64) {
	for k, i := range v.Index {
		if i < len(d) {
			d[i] = v.Value[k]
		}
	}
}

// At returns the entry at i using binary search.
func (v Vector) At(i int) float64 {
	k := sort.SearchInts(v.Index, i)
	if k < len(v.Index) && v.Index[k] == i {
		return v.Value[k]
	}
	return 0
}

// Dot returns the inner product with a dense vector.
func (v Vector) Dot(d []float64) float64 {
	s := 0.0
	for k, i := range v.Index {
		s += v.Value[k] * d[i]
	}
	return s
}

func (v Vector) NNZ() int { return len(v.Index) }

// MaxAbs returns the largest magnitude stored in v.
func (v Vector) MaxAbs() float64 {
	m := 0.0
	for _, x := range v.Value {
		m = math.Max(m, math.Abs(x))
	}
	return m
}

func (v Vector) Clone() Vector {
	return Vector{
		Index: append([]int(nil), v.Index...),
		Value: append([]float64(nil), v.Value...),
	}
}

// set writes x at i keeping the order, removing the entry when x is zero.
func (v *Vector) set(i int, x float64) {
	k := sort.SearchInts(v.Index, i)
	found := k < len(v.Index) && v.Index[k] == i
	switch {
	case found && x == 0:
		v.Index = append(v.Index[:k], v.Index[k+1:]...)
		v.Value = append(v.Value[:k], v.Value[k+1:]...)
	case found:
		v.Value[k] = x
	case x != 0:
		v.Index = append(v.Index, 0)
		v.Value = append(v.Value, 0)
		copy(v.Index[k+1:], v.Index[k:])
		copy(v.Value[k+1:], v.Value[k:])
		v.Index[k] = i
		v.Value[k] = x
	}
}

// shift renumbers indexes after a row insertion (delta = +1) or removal (delta = -1) at pos.
// On removal the entry at pos itself is dropped.
func (v *Vector) shift(pos, delta int) {
	k := sort.SearchInts(v.Index, pos)
	if delta < 0 && k < len(v.Index) && v.Index[k] == pos {
		v.Index = append(v.Index[:k], v.Index[k+1:]...)
		v.Value = append(v.Value[:k], v.Value[k+1:]...)
	}
	for ; k < len(v.Index); k++ {
		v.Index[k] += delta
	}
}

func (v Vector) compact() Vector {
	n := 0
	for k, x := range v.Value {
		if x == 0 {
			continue
		}
		v.Index[n] = v.Index[k]
		v.Value[n] = x
		n++
	}
	v.Index = v.Index[:n]
	v.Value = v.Value[:n]
	return v
}
