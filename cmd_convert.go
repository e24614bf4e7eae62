package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"q.log/milp/instance"
)

var outputFormat string

func convertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert IN OUT",
		Short: "Rewrite a problem file in another format",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := readProblem(args[0], inputFormat)
			if err != nil {
				return err
			}
			var f instance.Format
			if outputFormat != "" {
				f, err = instance.ParseFormat(outputFormat)
			} else {
				f, err = instance.Detect(args[1])
			}
			if err != nil {
				return err
			}
			if err := instance.Write(p, args[1], f); err != nil {
				return err
			}
			newLogger().Info("converted",
				slog.String("from", args[0]),
				slog.String("to", args[1]),
				slog.Int("rows", p.NumRows()),
				slog.Int("cols", p.NumCols()),
			)
			return nil
		},
	}
	cmd.Flags().StringVarP(&inputFormat, "from", "f", "", "input format (default from extension)")
	cmd.Flags().StringVarP(&outputFormat, "to", "t", "", "output format (default from extension)")
	return cmd
}
