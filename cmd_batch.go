package main

import (
	"fmt"
	"runtime"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"q.log/milp/solver"
)

var jobs int

type batchResult struct {
	file   string
	status solver.Status
	obj    *float64
	stats  solver.Stats
	err    error
}

func batchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch FILE...",
		Short: "Solve many files concurrently and print one line per file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			results := make([]batchResult, len(args))
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(max(jobs, 1))
			for k, file := range args {
				g.Go(func() error {
					r := &results[k]
					r.file = file
					p, err := readProblem(file, inputFormat)
					if err != nil {
						r.err = err
						return nil
					}
					s := solver.New(p, solver.WithOptions(e.opts))
					r.status = s.Solve(ctx)
					r.stats = s.Stats()
					r.err = s.Err()
					if obj, err := s.Objective(); err == nil {
						r.obj = &obj
					}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FILE\tSTATUS\tOBJECTIVE\tNODES\tITERATIONS\tTIME")
			failed := 0
			for _, r := range results {
				if r.err != nil {
					failed++
					fmt.Fprintf(tw, "%s\terror: %v\t\t\t\t\n", r.file, r.err)
					continue
				}
				obj := "-"
				if r.obj != nil {
					obj = fmt.Sprintf("%.10g", *r.obj)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%v\n", r.file, r.status, obj, r.stats.Nodes, r.stats.Iterations, r.stats.Duration)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&jobs, "jobs", "j", runtime.NumCPU(), "problems solved at once")
	cmd.Flags().StringVarP(&inputFormat, "format", "f", "", "input format: fmps, mps or lp (default from extension)")
	return cmd
}
