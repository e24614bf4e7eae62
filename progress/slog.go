package progress

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"
)

// SlogSink renders events as structured log records.
type SlogSink struct {
	logger    *slog.Logger
	verbosity Verbosity
	// iterations are throttled, everything else is logged as it comes
	limiter *rate.Limiter
}

// NewSlogSink logs events up to verbosity. Iteration events are limited to
// perSecond records per second; zero or less disables the limit.
func NewSlogSink(logger *slog.Logger, verbosity Verbosity, perSecond float64) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SlogSink{logger: logger, verbosity: verbosity}
	if perSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
	return s
}

func (s *SlogSink) Emit(e Event) {
	if e.Kind.Level() > s.verbosity {
		return
	}
	if e.Kind == Iteration && s.limiter != nil && !s.limiter.Allow() {
		return
	}

	attrs := []slog.Attr{slog.String("run_id", e.RunID)}
	level := slog.LevelDebug
	msg := e.Kind.String()
	switch e.Kind {
	case Iteration:
		attrs = append(attrs,
			slog.Int("phase", e.Phase),
			slog.Int("iteration", e.Iteration),
			slog.Float64("objective", e.Objective),
			slog.Bool("degenerate", e.Degenerate),
		)
	case Refactor:
		attrs = append(attrs, slog.Int("iteration", e.Iteration), slog.String("reason", e.Message))
	case PhaseChange:
		level = slog.LevelInfo
		attrs = append(attrs, slog.Int("phase", e.Phase), slog.Int("iteration", e.Iteration))
	case Node:
		attrs = append(attrs,
			slog.Int("node", e.Node),
			slog.Int("depth", e.Depth),
			slog.Float64("bound", e.Bound),
			slog.Int("frontier", e.Frontier),
			slog.String("state", e.Status),
		)
	case Incumbent:
		level = slog.LevelInfo
		msg = "improved solution"
		attrs = append(attrs, slog.Int("node", e.Node), slog.Float64("objective", e.Objective))
	case Done:
		level = slog.LevelInfo
		msg = "solve finished"
		attrs = append(attrs,
			slog.String("status", e.Status),
			slog.Float64("objective", e.Objective),
			slog.Int("iterations", e.Iteration),
			slog.Int("nodes", e.Node),
		)
	}
	if e.Message != "" && e.Kind != Refactor {
		attrs = append(attrs, slog.String("detail", e.Message))
	}
	s.logger.LogAttrs(context.Background(), level, msg, attrs...)
}
