package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"q.log/milp/config"
	"q.log/milp/metrics"
	"q.log/milp/progress"
	"q.log/milp/solver"
)

var (
	configPath  string
	verbosity   string
	metricsAddr string
	traceSpans  bool
	timeLimit   time.Duration
	nodeLimit   int
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "milp",
		Short:        "Solve mixed-integer linear programs",
		SilenceUsage: true,
	}
	f := root.PersistentFlags()
	f.StringVarP(&configPath, "config", "c", os.Getenv("MILP_CONFIG"), "YAML settings file")
	f.StringVarP(&verbosity, "verbosity", "v", "", "log level: neutral, critical, severe, important, normal, detailed, full")
	f.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while solving")
	f.BoolVar(&traceSpans, "trace", false, "print OpenTelemetry spans to stderr")
	f.DurationVar(&timeLimit, "time-limit", 0, "wall clock limit per problem")
	f.IntVar(&nodeLimit, "node-limit", 0, "branch and bound node limit per problem")

	root.AddCommand(solveCmd(), batchCmd(), convertCmd(), configCmd())
	return root
}

func newLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	fd := os.Stderr.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// env carries what every subcommand shares: options and the observers
// started for this invocation.
type env struct {
	logger   *slog.Logger
	opts     solver.Options
	shutdown []func(context.Context) error
}

func setup(cmd *cobra.Command) (*env, error) {
	e := &env{logger: newLogger()}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if e.opts, err = cfg.Options(); err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("verbosity") {
		v, err := progress.ParseVerbosity(verbosity)
		if err != nil {
			return nil, err
		}
		e.opts.Verbosity = v
	}
	if flags.Changed("time-limit") {
		e.opts.TimeLimit = timeLimit
	}
	if flags.Changed("node-limit") {
		e.opts.NodeLimit = nodeLimit
	}
	if err := e.opts.Validate(); err != nil {
		return nil, err
	}
	e.opts.Logger = e.logger

	if traceSpans {
		if err := e.startTracing(); err != nil {
			return nil, err
		}
	}
	if metricsAddr != "" {
		if err := e.serveMetrics(); err != nil {
			e.close()
			return nil, err
		}
	}
	return e, nil
}

func (e *env) startTracing() error {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint(), stdouttrace.WithWriter(os.Stderr))
	if err != nil {
		return fmt.Errorf("create exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes("", attribute.String("service.name", "milp"))),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	e.shutdown = append(e.shutdown, tp.Shutdown)
	return nil
}

func (e *env) serveMetrics() error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	e.opts.Sink = progress.Multi{e.opts.Sink, metrics.New(reg)}

	ln, err := net.Listen("tcp", metricsAddr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.logger.Error("metrics server", slog.String("error", err.Error()))
		}
	}()
	e.logger.Info("serving metrics", slog.String("addr", ln.Addr().String()))
	e.shutdown = append(e.shutdown, srv.Shutdown)
	return nil
}

func (e *env) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, fn := range e.shutdown {
		if err := fn(ctx); err != nil {
			e.logger.Warn("shutdown", slog.String("error", err.Error()))
		}
	}
}
