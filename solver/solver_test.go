package solver

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"q.log/milp/model"
	"q.log/milp/progress"
)

const tol = 1e-6

func newProblem(t *testing.T, cols int) *model.Problem {
	t.Helper()
	p, err := model.New(0, cols)
	require.NoError(t, err)
	return p
}

func TestMaximizeSumOfTwo(t *testing.T) {
	p := newProblem(t, 2)
	require.NoError(t, p.SetObjective([]float64{0, 1, 1}, model.Maximize))
	require.NoError(t, p.AddRow([]float64{0, 1, 1}, model.LE, 10))

	s := New(p)
	require.Equal(t, Optimal, s.Solve(context.Background()))
	obj, err := s.Objective()
	require.NoError(t, err)
	assert.InDelta(t, 10, obj, tol)
	x, err := s.SolutionVariables()
	require.NoError(t, err)
	assert.Len(t, x, 2)
	assert.InDelta(t, 10, x[0]+x[1], tol)
	rows, err := s.Constraints()
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{10}, rows, tol)
}

func TestContradictoryRowsAreInfeasible(t *testing.T) {
	p := newProblem(t, 1)
	require.NoError(t, p.SetObjective([]float64{0, 1}, model.Minimize))
	require.NoError(t, p.AddRow([]float64{0, 1}, model.GE, 5))
	require.NoError(t, p.AddRow([]float64{0, 1}, model.LE, 2))

	s := New(p)
	assert.Equal(t, Infeasible, s.Solve(context.Background()))
	_, err := s.SolutionVariables()
	assert.ErrorIs(t, err, ErrNoSolution)
	_, err = s.Objective()
	assert.ErrorIs(t, err, ErrNoSolution)
}

func TestUnbounded(t *testing.T) {
	p := newProblem(t, 1)
	require.NoError(t, p.SetObjective([]float64{0, 1}, model.Maximize))
	s := New(p)
	assert.Equal(t, Unbounded, s.Solve(context.Background()))
	_, err := s.Duals()
	assert.ErrorIs(t, err, ErrNoSolution)
}

func TestIntegerBound(t *testing.T) {
	p := newProblem(t, 1)
	require.NoError(t, p.SetObjective([]float64{0, 1}, model.Maximize))
	require.NoError(t, p.SetUpperBound(1, 4.5))
	require.NoError(t, p.SetKind(1, model.Integer))

	s := New(p)
	require.Equal(t, Optimal, s.Solve(context.Background()))
	x, err := s.SolutionVariables()
	require.NoError(t, err)
	assert.Equal(t, []float64{4}, x)
}

func TestNotRunBeforeSolve(t *testing.T) {
	s := New(newProblem(t, 1))
	assert.Equal(t, NotRun, s.Status())
	_, err := s.SolutionVariables()
	assert.ErrorIs(t, err, ErrNoSolution)
}

func TestInvalidOptions(t *testing.T) {
	s := New(newProblem(t, 1), WithEpsilon(-1))
	assert.Equal(t, NotRun, s.Solve(context.Background()))
	assert.ErrorIs(t, s.Err(), ErrInvalidOption)

	s = New(nil)
	assert.Equal(t, NotRun, s.Solve(context.Background()))
	assert.Error(t, s.Err())
}

func assignment(t *testing.T) *model.Problem {
	t.Helper()
	// 3x3 assignment; the side row leaves only rows -> cols (2, 0, 1)
	cost := []float64{0, 4, 2, 8, 4, 3, 7, 3, 1, 6}
	p := newProblem(t, 9)
	require.NoError(t, p.SetObjective(cost, model.Minimize))
	for i := 0; i < 3; i++ {
		row := make([]float64, 10)
		col := make([]float64, 10)
		for k := 0; k < 3; k++ {
			row[1+3*i+k] = 1
			col[1+3*k+i] = 1
		}
		require.NoError(t, p.AddRow(row, model.EQ, 1))
		require.NoError(t, p.AddRow(col, model.EQ, 1))
	}
	side := []float64{0, 2, 3, 1, 1, 2, 3, 3, 1, 2}
	require.NoError(t, p.AddRow(side, model.LE, 5.5))
	for j := 1; j <= 9; j++ {
		require.NoError(t, p.SetKind(j, model.Binary))
	}
	return p
}

func TestDeterministicResolve(t *testing.T) {
	p := assignment(t)
	s := New(p)
	first := s.Solve(context.Background())
	obj1, err1 := s.Objective()
	x1, _ := s.SolutionVariables()

	second := s.Solve(context.Background())
	obj2, err2 := s.Objective()
	x2, _ := s.SolutionVariables()

	assert.Equal(t, first, second)
	assert.Equal(t, err1, err2)
	assert.Equal(t, obj1, obj2)
	assert.InDelta(t, 13, obj1, tol)
	assert.Equal(t, x1, x2)
	assert.NotEqual(t, "", s.Stats().RunID)
}

func TestSolveLeavesProblemUntouched(t *testing.T) {
	p := assignment(t)
	before := p.String()
	New(p).Solve(context.Background())
	assert.Equal(t, before, p.String())
}

func TestHistoryIsMonotone(t *testing.T) {
	s := New(assignment(t), WithFloorFirst(true))
	require.Equal(t, Optimal, s.Solve(context.Background()))
	h := s.History()
	require.NotEmpty(t, h)
	for k := 1; k < len(h); k++ {
		assert.Less(t, h[k], h[k-1])
	}
	obj, _ := s.Objective()
	assert.Equal(t, h[len(h)-1], obj)
}

func TestObjectiveConstant(t *testing.T) {
	p := newProblem(t, 1)
	require.NoError(t, p.SetObjective([]float64{2.5, 1}, model.Minimize))
	require.NoError(t, p.SetLowerBound(1, 1))
	s := New(p)
	require.Equal(t, Optimal, s.Solve(context.Background()))
	obj, _ := s.Objective()
	assert.InDelta(t, 3.5, obj, tol)
}

func TestCancellationAndDeadline(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, UserAbort, New(assignment(t)).Solve(ctx))

	past, cancel2 := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel2()
	assert.Equal(t, Timeout, New(assignment(t)).Solve(past))
}

func TestCancelKeepsIncumbent(t *testing.T) {
	const n = 25
	p := newProblem(t, n)
	obj := make([]float64, n+1)
	row := make([]float64, n+1)
	total := 0.0
	for j := 1; j <= n; j++ {
		w := float64(20 + (j*37)%41)
		row[j], obj[j] = w, w+10
		total += w
		require.NoError(t, p.SetKind(j, model.Binary))
	}
	require.NoError(t, p.SetObjective(obj, model.Maximize))
	require.NoError(t, p.AddRow(row, model.LE, math.Floor(total/2)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := New(p, WithSink(progress.SinkFunc(func(e progress.Event) {
		if e.Kind == progress.Incumbent {
			cancel()
		}
	})))
	require.Equal(t, UserAbort, s.Solve(ctx))

	got, err := s.Objective()
	require.NoError(t, err)
	assert.Equal(t, []float64{got}, s.History())
	x, err := s.SolutionVariables()
	require.NoError(t, err)
	used := 0.0
	for j, v := range x {
		used += v * row[j+1]
	}
	assert.LessOrEqual(t, used, math.Floor(total/2))
}

func TestSharedProblemAcrossSolvers(t *testing.T) {
	p := assignment(t)
	var g errgroup.Group
	objs := make([]float64, 4)
	for k := range objs {
		g.Go(func() error {
			s := New(p)
			if st := s.Solve(context.Background()); st != Optimal {
				return fmt.Errorf("solve %d: %s", k, st)
			}
			var err error
			objs[k], err = s.Objective()
			return err
		})
	}
	require.NoError(t, g.Wait())
	for _, v := range objs {
		assert.InDelta(t, 13, v, tol)
	}
}

func TestNodeLimitWithoutIncumbent(t *testing.T) {
	p := newProblem(t, 4)
	require.NoError(t, p.SetObjective([]float64{0, 8, 11, 6, 4}, model.Maximize))
	require.NoError(t, p.AddRow([]float64{0, 5, 7, 4, 3}, model.LE, 14))
	for j := 1; j <= 4; j++ {
		require.NoError(t, p.SetKind(j, model.Binary))
	}
	s := New(p, WithNodeLimit(1))
	assert.Equal(t, Timeout, s.Solve(context.Background()))
	assert.Equal(t, 1, s.Stats().Nodes)
}

func TestLoggerReceivesEvents(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	var events []progress.Event
	s := New(assignment(t),
		WithLogger(logger),
		WithVerbosity(progress.Normal),
		WithSink(progress.SinkFunc(func(e progress.Event) { events = append(events, e) })),
	)
	require.Equal(t, Optimal, s.Solve(context.Background()))
	assert.Contains(t, buf.String(), "solve finished")
	assert.Contains(t, buf.String(), "status=OPTIMAL")
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, progress.Done, last.Kind)
	assert.Equal(t, s.Stats().RunID, last.RunID)
	assert.False(t, strings.Contains(buf.String(), "msg=iteration"))
}

func TestStatusStrings(t *testing.T) {
	assert.Equal(t, "NOT RUN", NotRun.String())
	assert.Equal(t, "TIMEOUT", Timeout.String())
	assert.True(t, Suboptimal.HasSolution())
	assert.False(t, Degenerate.HasSolution())
}
