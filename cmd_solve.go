package main

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/spf13/cobra"

	"q.log/milp/config"
	"q.log/milp/instance"
	"q.log/milp/model"
	"q.log/milp/solver"
)

var (
	inputFormat string
	printDuals  bool
)

func solveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "solve FILE",
		Short: "Solve one MPS or LP file and print the solution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			p, err := readProblem(args[0], inputFormat)
			if err != nil {
				return err
			}
			s := solver.New(p, solver.WithOptions(e.opts))
			st := s.Solve(cmd.Context())
			if err := s.Err(); err != nil {
				return err
			}
			report(cmd.OutOrStdout(), p, s, st)
			return nil
		},
	}
	cmd.Flags().StringVarP(&inputFormat, "format", "f", "", "input format: fmps, mps or lp (default from extension)")
	cmd.Flags().BoolVarP(&printDuals, "duals", "S", false, "also print duals and reduced costs")
	return cmd
}

func readProblem(path, format string) (*model.Problem, error) {
	var f instance.Format
	var err error
	if format != "" {
		f, err = instance.ParseFormat(format)
	} else {
		f, err = instance.Detect(path)
	}
	if err != nil {
		return nil, err
	}
	return instance.Read(path, f)
}

func report(w io.Writer, p *model.Problem, s *solver.Solver, st solver.Status) {
	stats := s.Stats()
	fmt.Fprintf(w, "\nStatus: %s after %d nodes, %d iterations, %v\n", st, stats.Nodes, stats.Iterations, stats.Duration)
	if !math.IsNaN(stats.BestBound) && !st.HasSolution() && st != solver.Infeasible {
		fmt.Fprintf(w, "Best bound: %g\n", stats.BestBound)
	}
	obj, err := s.Objective()
	if err != nil {
		return
	}
	x, _ := s.SolutionVariables()
	rows, _ := s.Constraints()
	fmt.Fprintf(w, "\nValue of objective function: %.12g\n", obj)
	fmt.Fprintf(w, "\nActual values of the variables:\n")
	for j, v := range x {
		fmt.Fprintf(w, "%-24s %15.12g\n", p.ColName(j+1), v)
	}
	fmt.Fprintf(w, "\nActual values of the constraints:\n")
	for i, v := range rows {
		fmt.Fprintf(w, "%-24s %15.12g\n", p.RowName(i+1), v)
	}
	if !printDuals {
		return
	}
	duals, _ := s.Duals()
	reduced, _ := s.ReducedCosts()
	fmt.Fprintf(w, "\nDual value of the constraints:\n")
	for i, v := range duals {
		fmt.Fprintf(w, "%-24s %15.12g\n", p.RowName(i+1), v)
	}
	fmt.Fprintf(w, "\nReduced cost of the variables:\n")
	for j, v := range reduced {
		fmt.Fprintf(w, "%-24s %15.12g\n", p.ColName(j+1), v)
	}
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective settings as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			data, err := cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}
}
