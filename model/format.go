package model

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Dense returns the full (R+1) x (C+1) coefficient store as a gonum matrix.
func (p *Problem) Dense() *mat.Dense {
	r, c := p.coef.Dims()
	d := mat.NewDense(r, c, nil)
	for j := 0; j < c; j++ {
		col := p.coef.Column(j)
		for k, i := range col.Index {
			d.Set(i, j, col.Value[k])
		}
	}
	return d
}

// String dumps the problem in a compact human readable layout.
func (p *Problem) String() string {
	var sb strings.Builder
	name := p.name
	if name == "" {
		name = "unnamed"
	}
	fmt.Fprintf(&sb, "%s: %d rows, %d columns, %s\n", name, p.NumRows(), p.NumCols(), p.direction)
	fa := mat.Formatted(p.Dense(), mat.Prefix("    "), mat.Squeeze())
	fmt.Fprintf(&sb, "A = %v\n", fa)
	for i := 1; i <= p.NumRows(); i++ {
		lo, hi, _ := p.RowBounds(i)
		fmt.Fprintf(&sb, "%s %s [%g, %g]\n", p.RowName(i), p.rowType[i], lo, hi)
	}
	for j := 1; j <= p.NumCols(); j++ {
		lo, hi, _ := p.ColumnBounds(j)
		fmt.Fprintf(&sb, "%s %s [%g, %g]\n", p.ColName(j), p.kind[j], lo, hi)
	}
	return sb.String()
}
