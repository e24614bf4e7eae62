// Package instance reads and writes problems in MPS and CPLEX LP files
// through GLPK.
package instance

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/lukpank/go-glpk/glpk"

	"q.log/milp/model"
)

type Format int

const (
	// FreeMPS is the default for .mps files.
	FreeMPS Format = iota
	FixedMPS
	LP
)

func (f Format) String() string {
	switch f {
	case FreeMPS:
		return "fmps"
	case FixedMPS:
		return "mps"
	case LP:
		return "lp"
	default:
		return "unknown"
	}
}

var ErrUnknownFormat = errors.New("instance: unknown format")

// ParseFormat accepts the names printed by Format.String.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "fmps", "free", "free-mps":
		return FreeMPS, nil
	case "mps", "fixed", "fixed-mps":
		return FixedMPS, nil
	case "lp", "cplex":
		return LP, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Detect picks the format from the file extension.
func Detect(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mps", ".fmps":
		return FreeMPS, nil
	case ".lp":
		return LP, nil
	}
	return 0, fmt.Errorf("%w: extension of %s", ErrUnknownFormat, path)
}

// GLPK keeps per-thread state: every call is pinned to one OS thread and
// serialized.
var glpkMu sync.Mutex

func locked(fn func() error) error {
	glpkMu.Lock()
	defer glpkMu.Unlock()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	return fn()
}

// Read loads the problem stored in filename.
func Read(filename string, f Format) (*model.Problem, error) {
	var p *model.Problem
	err := locked(func() error {
		lp := glpk.New()
		defer lp.Delete()

		var err error
		switch f {
		case FreeMPS:
			err = lp.ReadMPS(glpk.MPS_FILE, nil, filename)
		case FixedMPS:
			err = lp.ReadMPS(glpk.MPS_DECK, nil, filename)
		case LP:
			err = lp.ReadLP(nil, filename)
		default:
			return ErrUnknownFormat
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", filename, err)
		}
		p, err = fromGLPK(lp)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("instance: %w", err)
	}
	return p, nil
}

// Write stores p in filename.
func Write(p *model.Problem, filename string, f Format) error {
	err := locked(func() error {
		lp, err := toGLPK(p)
		if err != nil {
			return err
		}
		defer lp.Delete()

		switch f {
		case FreeMPS:
			err = lp.WriteMPS(glpk.MPS_FILE, nil, filename)
		case FixedMPS:
			err = lp.WriteMPS(glpk.MPS_DECK, nil, filename)
		case LP:
			err = lp.WriteLP(nil, filename)
		default:
			return ErrUnknownFormat
		}
		if err != nil {
			return fmt.Errorf("write %s: %w", filename, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("instance: %w", err)
	}
	return nil
}

func fromGLPK(lp *glpk.Prob) (*model.Problem, error) {
	nr, nc := lp.NumRows(), lp.NumCols()
	p, err := model.New(0, nc)
	if err != nil {
		return nil, err
	}
	p.SetName(lp.ProbName())

	//objective, constant at index 0
	obj := make([]float64, nc+1)
	for j := range obj {
		obj[j] = lp.ObjCoef(j)
	}
	dir := model.Minimize
	if lp.ObjDir() == glpk.MAX {
		dir = model.Maximize
	}
	if err := p.SetObjective(obj, dir); err != nil {
		return nil, err
	}

	inf := p.Infinite()
	for j := 1; j <= nc; j++ {
		lo, hi := -inf, inf
		switch lp.ColType(j) {
		case glpk.LO:
			lo = lp.ColLB(j)
		case glpk.UP:
			hi = lp.ColUB(j)
		case glpk.DB, glpk.FX:
			lo, hi = lp.ColLB(j), lp.ColUB(j)
		}
		if err := p.SetBounds(j, lo, hi); err != nil {
			return nil, fmt.Errorf("column %d: %w", j, err)
		}
		switch lp.ColKind(j) {
		case glpk.IV:
			err = p.SetKind(j, model.Integer)
		case glpk.BV:
			err = p.SetKind(j, model.Binary)
		}
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", j, err)
		}
		if name := lp.ColName(j); name != "" {
			if err := p.SetColName(j, name); err != nil {
				return nil, err
			}
		}
	}

	for i := 1; i <= nr; i++ {
		ind, val := lp.MatRow(i)
		cols := make([]int, 0, len(ind))
		vals := make([]float64, 0, len(val))
		for k, j := range ind {
			if k == 0 {
				continue
			}
			cols = append(cols, int(j))
			vals = append(vals, val[k])
		}

		typ, rhs, rng := model.Free, 0.0, inf
		switch lp.RowType(i) {
		case glpk.UP:
			typ, rhs = model.LE, lp.RowUB(i)
		case glpk.LO:
			typ, rhs = model.GE, lp.RowLB(i)
		case glpk.FX:
			typ, rhs = model.EQ, lp.RowLB(i)
		case glpk.DB:
			typ, rhs = model.LE, lp.RowUB(i)
			rng = lp.RowUB(i) - lp.RowLB(i)
		}
		if err := p.AddRowSparse(vals, cols, typ, rhs); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		if err := p.SetRange(i, rng); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		if name := lp.RowName(i); name != "" {
			if err := p.SetRowName(i, name); err != nil {
				return nil, err
			}
		}
	}
	return p, nil
}

func toGLPK(p *model.Problem) (*glpk.Prob, error) {
	nr, nc := p.NumRows(), p.NumCols()
	lp := glpk.New()
	if p.Name() != "" {
		lp.SetProbName(p.Name())
	}
	if p.Direction() == model.Maximize {
		lp.SetObjDir(glpk.MAX)
	} else {
		lp.SetObjDir(glpk.MIN)
	}
	if nr > 0 {
		lp.AddRows(nr)
	}
	if nc > 0 {
		lp.AddCols(nc)
	}

	for j, c := range p.Objective() {
		lp.SetObjCoef(j, c)
	}
	for j := 1; j <= nc; j++ {
		lp.SetColName(j, p.ColName(j))
		lo, hi, err := p.ColumnBounds(j)
		if err != nil {
			lp.Delete()
			return nil, err
		}
		typ, lo, hi := boundsType(lo, hi)
		lp.SetColBnds(j, typ, lo, hi)
		switch k, _ := p.Kind(j); k {
		case model.Integer:
			lp.SetColKind(j, glpk.IV)
		case model.Binary:
			lp.SetColKind(j, glpk.BV)
		}
	}

	m := p.Matrix()
	for i := 1; i <= nr; i++ {
		lp.SetRowName(i, p.RowName(i))
		row, err := m.Row(i)
		if err != nil {
			lp.Delete()
			return nil, err
		}
		//index 0 is unused by glpk, column 0 of the store is the RHS
		ind := []int32{0}
		val := []float64{0}
		for k, j := range row.Index {
			if j == 0 {
				continue
			}
			ind = append(ind, int32(j))
			val = append(val, row.Value[k])
		}
		lp.SetMatRow(i, ind, val)

		lo, hi, err := p.RowBounds(i)
		if err != nil {
			lp.Delete()
			return nil, err
		}
		typ, lo, hi := boundsType(lo, hi)
		lp.SetRowBnds(i, typ, lo, hi)
	}
	return lp, nil
}

func boundsType(lo, hi float64) (glpk.BndsType, float64, float64) {
	loInf, hiInf := math.IsInf(lo, -1), math.IsInf(hi, 1)
	switch {
	case loInf && hiInf:
		return glpk.FR, 0, 0
	case loInf:
		return glpk.UP, 0, hi
	case hiInf:
		return glpk.LO, lo, 0
	case lo == hi:
		return glpk.FX, lo, hi
	default:
		return glpk.DB, lo, hi
	}
}
