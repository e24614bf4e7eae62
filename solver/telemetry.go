package solver

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("milp.solver")
	meter  = otel.Meter("milp.solver")
)

var (
	solveLatency metric.Float64Histogram
	solveTotal   metric.Int64Counter
	nodesSolved  metric.Int64Histogram
	pivots       metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		solveLatency, err = meter.Float64Histogram(
			"milp_solve_duration_seconds",
			metric.WithDescription("Duration of solve calls"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		solveTotal, err = meter.Int64Counter(
			"milp_solve_total",
			metric.WithDescription("Total number of solve calls"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		nodesSolved, err = meter.Int64Histogram(
			"milp_solve_nodes",
			metric.WithDescription("Branch and bound nodes per solve"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		pivots, err = meter.Int64Histogram(
			"milp_solve_iterations",
			metric.WithDescription("Simplex iterations per solve"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordSolveMetrics(ctx context.Context, duration time.Duration, status Status, nodes, iterations int) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", status.String()))
	solveLatency.Record(ctx, duration.Seconds(), attrs)
	solveTotal.Add(ctx, 1, attrs)
	nodesSolved.Record(ctx, int64(nodes))
	pivots.Record(ctx, int64(iterations))
}

func startSolveSpan(ctx context.Context, name string, rows, cols int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Solver.Solve",
		trace.WithAttributes(
			attribute.String("milp.problem", name),
			attribute.Int("milp.rows", rows),
			attribute.Int("milp.cols", cols),
		),
	)
}

func setSolveSpanResult(span trace.Span, status Status, stats Stats) {
	span.SetAttributes(
		attribute.String("milp.status", status.String()),
		attribute.Int("milp.nodes", stats.Nodes),
		attribute.Int("milp.iterations", stats.Iterations),
		attribute.String("milp.run_id", stats.RunID),
	)
	if status == NumericalFailure {
		span.SetStatus(codes.Error, status.String())
	}
}
