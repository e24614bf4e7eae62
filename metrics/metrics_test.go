package metrics

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"q.log/milp/model"
	"q.log/milp/progress"
	"q.log/milp/solver"
)

func TestCountsEvents(t *testing.T) {
	c := New(prometheus.NewRegistry())
	clock := time.Unix(0, 0)
	c.now = func() time.Time { return clock }

	c.Emit(progress.Event{Kind: progress.Iteration, RunID: "a"})
	c.Emit(progress.Event{Kind: progress.Iteration, RunID: "a", Degenerate: true})
	c.Emit(progress.Event{Kind: progress.Refactor, RunID: "a"})
	c.Emit(progress.Event{Kind: progress.Node, RunID: "a", Status: "branched"})
	c.Emit(progress.Event{Kind: progress.Node, RunID: "a", Status: "pruned"})
	c.Emit(progress.Event{Kind: progress.Incumbent, RunID: "a"})
	assert.Equal(t, 1.0, testutil.ToFloat64(c.active))

	clock = clock.Add(2 * time.Second)
	c.Emit(progress.Event{Kind: progress.Done, RunID: "a", Status: "OPTIMAL"})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.pivots.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.pivots.WithLabelValues("false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.refactors))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.nodes.WithLabelValues("pruned")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.incumbents))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.solves.WithLabelValues("OPTIMAL")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.active))
	assert.Equal(t, 1, testutil.CollectAndCount(c.duration))
}

func TestObservesSolver(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	p, err := model.New(0, 2)
	require.NoError(t, err)
	require.NoError(t, p.SetObjective([]float64{0, 3, 2}, model.Maximize))
	require.NoError(t, p.AddRow([]float64{0, 2, 2}, model.LE, 7))
	require.NoError(t, p.SetKind(1, model.Integer))
	require.NoError(t, p.SetKind(2, model.Integer))

	s := solver.New(p, solver.WithSink(c))
	require.Equal(t, solver.Optimal, s.Solve(context.Background()))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.solves.WithLabelValues("OPTIMAL")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(c.incumbents), 1.0)
	assert.Positive(t, testutil.ToFloat64(c.refactors))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.active))

	err = testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP milp_solves_total Finished solves by status
# TYPE milp_solves_total counter
milp_solves_total{status="OPTIMAL"} 1
`), "milp_solves_total")
	assert.NoError(t, err)
}
