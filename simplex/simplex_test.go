package simplex

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"q.log/milp/lu"
	"q.log/milp/model"
	"q.log/milp/progress"
)

const tol = 1e-6

type row struct {
	coeffs []float64
	typ    model.ConstraintType
	rhs    float64
}

func build(t *testing.T, dir model.Direction, obj []float64, rows ...row) *model.Problem {
	t.Helper()
	p, err := model.New(0, len(obj)-1)
	require.NoError(t, err)
	require.NoError(t, p.SetObjective(obj, dir))
	for _, r := range rows {
		require.NoError(t, p.AddRow(r.coeffs, r.typ, r.rhs))
	}
	return p
}

func newEngine(t *testing.T, p *model.Problem, opts Options) *Engine {
	t.Helper()
	l, err := FromProblem(p)
	require.NoError(t, err)
	e, err := NewEngine(l, opts)
	require.NoError(t, err)
	return e
}

func TestMaximizeSum(t *testing.T) {
	p := build(t, model.Maximize, []float64{0, 1, 1}, row{[]float64{0, 1, 1}, model.LE, 10})
	e := newEngine(t, p, DefaultOptions())
	require.Equal(t, Optimal, e.Solve(context.Background()))
	assert.InDelta(t, 10, e.Objective(), tol)
}

func TestInfeasibleRows(t *testing.T) {
	p := build(t, model.Minimize, []float64{0, 1},
		row{[]float64{0, 1}, model.GE, 5},
		row{[]float64{0, 1}, model.LE, 2},
	)
	e := newEngine(t, p, DefaultOptions())
	assert.Equal(t, Infeasible, e.Solve(context.Background()))
}

func TestUnboundedColumn(t *testing.T) {
	p := build(t, model.Maximize, []float64{0, 1})
	e := newEngine(t, p, DefaultOptions())
	assert.Equal(t, Unbounded, e.Solve(context.Background()))
}

func TestUnboundedWithRows(t *testing.T) {
	p := build(t, model.Maximize, []float64{0, 1, 1}, row{[]float64{0, 1, -1}, model.LE, 2})
	e := newEngine(t, p, DefaultOptions())
	assert.Equal(t, Unbounded, e.Solve(context.Background()))
}

func TestDualsAndReducedCosts(t *testing.T) {
	// max 3x + 2y, x + y <= 4, x + 3y <= 6
	p := build(t, model.Maximize, []float64{0, 3, 2},
		row{[]float64{0, 1, 1}, model.LE, 4},
		row{[]float64{0, 1, 3}, model.LE, 6},
	)
	e := newEngine(t, p, DefaultOptions())
	require.Equal(t, Optimal, e.Solve(context.Background()))
	assert.InDelta(t, 12, e.Objective(), tol)
	assert.InDeltaSlice(t, []float64{4, 0}, e.Primal(), tol)
	assert.InDeltaSlice(t, []float64{4, 4}, e.RowActivity(), tol)
	assert.InDeltaSlice(t, []float64{3, 0}, e.Duals(), tol)
	assert.InDeltaSlice(t, []float64{0, -1}, e.ReducedCosts(), tol)
}

func TestEqualityRangesAndFreeColumns(t *testing.T) {
	// min x - y, x + y = 5, x - y ranged in [-1, 3], x free, y in [0, 4]
	p := build(t, model.Minimize, []float64{2, 1, -1},
		row{[]float64{0, 1, 1}, model.EQ, 5},
		row{[]float64{0, 1, -1}, model.LE, 3},
	)
	require.NoError(t, p.SetRange(2, 4))
	require.NoError(t, p.SetUnbounded(1))
	require.NoError(t, p.SetBounds(2, 0, 4))
	e := newEngine(t, p, DefaultOptions())
	require.Equal(t, Optimal, e.Solve(context.Background()))
	// x - y is driven to its lower range -1: x = 2, y = 3
	assert.InDelta(t, 1, e.Objective(), tol)
	assert.InDeltaSlice(t, []float64{2, 3}, e.Primal(), tol)
}

func TestNegativeLowerBound(t *testing.T) {
	p := build(t, model.Minimize, []float64{0, 1}, row{[]float64{0, 1}, model.GE, -3})
	require.NoError(t, p.SetUnbounded(1))
	e := newEngine(t, p, DefaultOptions())
	require.Equal(t, Optimal, e.Solve(context.Background()))
	assert.InDelta(t, -3, e.Objective(), tol)
}

func TestDegenerateCyclingExample(t *testing.T) {
	// Beale's example as given by Chvatal; textbook pricing cycles on it
	p := build(t, model.Maximize, []float64{0, 10, -57, -9, -24},
		row{[]float64{0, 0.5, -5.5, -2.5, 9}, model.LE, 0},
		row{[]float64{0, 0.5, -1.5, -0.5, 1}, model.LE, 0},
		row{[]float64{0, 1, 0, 0, 0}, model.LE, 1},
	)
	opts := DefaultOptions()
	opts.DegenerateLimit = 1
	opts.IterationLimit = 1000
	e := newEngine(t, p, opts)
	require.Equal(t, Optimal, e.Solve(context.Background()))
	assert.InDelta(t, 1, e.Objective(), tol)
	assert.Positive(t, e.DegeneratePivots())
}

func TestMatchesGonumSimplex(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	for trial := 0; trial < 20; trial++ {
		m, n := 3+rnd.Intn(5), 2+rnd.Intn(6)
		c := make([]float64, n)
		for j := range c {
			c[j] = rnd.Float64()*4 - 3
		}
		g := mat.NewDense(m+n, n, nil)
		h := make([]float64, m+n)
		p, err := model.New(0, n)
		require.NoError(t, err)
		require.NoError(t, p.SetObjective(append([]float64{0}, c...), model.Minimize))
		for i := 0; i < m; i++ {
			coeffs := make([]float64, n+1)
			for j := 0; j < n; j++ {
				v := 0.1 + rnd.Float64()
				coeffs[j+1] = v
				g.Set(i, j, v)
			}
			h[i] = 1 + rnd.Float64()*10
			require.NoError(t, p.AddRow(coeffs, model.LE, h[i]))
		}
		for j := 0; j < n; j++ {
			g.Set(m+j, j, -1)
		}

		cs, as, bs := lp.Convert(c, g, h, nil, nil)
		want, _, err := lp.Simplex(cs, as, bs, 1e-10, nil)
		require.NoError(t, err)

		e := newEngine(t, p, DefaultOptions())
		require.Equal(t, Optimal, e.Solve(context.Background()), "trial %d", trial)
		assert.InDelta(t, want, e.Objective(), 1e-6, "trial %d", trial)
		l, _ := FromProblem(p)
		assert.True(t, l.Feasible(e.Primal(), 1e-7), "trial %d", trial)
	}
}

func TestResolveAfterTightening(t *testing.T) {
	// max 5x + 4y, 6x + 4y <= 24, x + 2y <= 6
	p := build(t, model.Maximize, []float64{0, 5, 4},
		row{[]float64{0, 6, 4}, model.LE, 24},
		row{[]float64{0, 1, 2}, model.LE, 6},
	)
	e := newEngine(t, p, DefaultOptions())
	require.Equal(t, Optimal, e.Solve(context.Background()))
	assert.InDelta(t, 21, e.Objective(), tol)
	b := e.Basis()

	for _, tc := range []struct {
		j      int
		lo, hi float64
		want   float64
	}{
		{0, 0, 2, 2*5 + 2*4},
		{0, 4, math.Inf(1), 20},
		{1, 2, math.Inf(1), 18},
	} {
		e.ResetBounds()
		require.NoError(t, e.LoadBasis(b))
		e.SetColumnBounds(tc.j, tc.lo, tc.hi)
		require.Equal(t, Optimal, e.Resolve(context.Background()))
		assert.InDelta(t, tc.want, e.Objective(), tol)

		cold := newEngine(t, p, DefaultOptions())
		cold.SetColumnBounds(tc.j, tc.lo, tc.hi)
		require.Equal(t, Optimal, cold.Solve(context.Background()))
		assert.InDelta(t, cold.Objective(), e.Objective(), tol)
	}
}

func TestResolveDetectsInfeasibility(t *testing.T) {
	p := build(t, model.Maximize, []float64{0, 1, 1}, row{[]float64{0, 1, 1}, model.LE, 3})
	e := newEngine(t, p, DefaultOptions())
	require.Equal(t, Optimal, e.Solve(context.Background()))
	e.SetColumnBounds(0, 2, math.Inf(1))
	e.SetColumnBounds(1, 2, math.Inf(1))
	assert.Equal(t, Infeasible, e.Resolve(context.Background()))

	e.SetColumnBounds(0, 3, 2)
	assert.Equal(t, Infeasible, e.Resolve(context.Background()))
}

func TestResolveRepairsSingularBasis(t *testing.T) {
	// the two structural columns (1,2) and (2,4) are parallel
	p := build(t, model.Maximize, []float64{0, 1, 1},
		row{[]float64{0, 1, 2}, model.LE, 4},
		row{[]float64{0, 2, 4}, model.LE, 8},
	)
	var refactors []string
	opts := DefaultOptions()
	opts.Sink = progress.SinkFunc(func(ev progress.Event) {
		if ev.Kind == progress.Refactor {
			refactors = append(refactors, ev.Message)
		}
	})
	e := newEngine(t, p, opts)
	require.NoError(t, e.LoadBasis(Basis{
		Head:   []int{0, 1},
		Status: []VarStatus{Basic, Basic, AtUpper, AtUpper, AtLower, AtLower},
		Sign:   []float64{1, 1},
	}))

	require.Equal(t, Optimal, e.Resolve(context.Background()))
	assert.Contains(t, refactors, "repaired singular basis")
	assert.InDelta(t, 4, e.Objective(), tol)
	x := e.Primal()
	assert.InDelta(t, 4, x[0]+x[1], tol)
}

func TestDualsFailWithoutFactorization(t *testing.T) {
	p := build(t, model.Maximize, []float64{0, 1}, row{[]float64{0, 1}, model.LE, 3})
	e := newEngine(t, p, DefaultOptions())
	e.y[0] = 7
	assert.ErrorIs(t, e.computeDuals(), lu.ErrNotFactored)
	assert.Equal(t, []float64{7}, e.y)
}

func TestLoadBasisRejectsWrongShape(t *testing.T) {
	p := build(t, model.Maximize, []float64{0, 1}, row{[]float64{0, 1}, model.LE, 3})
	e := newEngine(t, p, DefaultOptions())
	assert.ErrorIs(t, e.LoadBasis(Basis{Head: []int{0, 1}}), ErrBasisShape)
}

func TestHaltingStates(t *testing.T) {
	p := build(t, model.Maximize, []float64{0, 3, 2},
		row{[]float64{0, 1, 1}, model.LE, 4},
		row{[]float64{0, 1, 3}, model.LE, 6},
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := newEngine(t, p, DefaultOptions())
	assert.Equal(t, Aborted, e.Solve(ctx))
	assert.False(t, e.TimedOut())

	opts := DefaultOptions()
	opts.IterationLimit = 1
	e = newEngine(t, p, opts)
	assert.Equal(t, IterationLimit, e.Solve(context.Background()))
	assert.Equal(t, 1, e.Iterations())
}

func TestEmitsProgress(t *testing.T) {
	var kinds []progress.Kind
	opts := DefaultOptions()
	opts.Sink = progress.SinkFunc(func(ev progress.Event) { kinds = append(kinds, ev.Kind) })
	p := build(t, model.Minimize, []float64{0, 1, 1}, row{[]float64{0, 1, 1}, model.GE, 2})
	e := newEngine(t, p, opts)
	require.Equal(t, Optimal, e.Solve(context.Background()))
	assert.InDelta(t, 2, e.Objective(), tol)
	assert.Contains(t, kinds, progress.Iteration)
	assert.Contains(t, kinds, progress.PhaseChange)
	assert.Contains(t, kinds, progress.Refactor)
}
