package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jplwindssalinity/v3proc-sub010/calib"
)

func newShowCmd() *cobra.Command {
	var (
		kindName  string
		quantized bool
	)
	cmd := &cobra.Command{
		Use:   "show <table file>",
		Short: "Print the entries of a tracking table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := calib.ParseKind(kindName)
			if err != nil {
				return err
			}
			t, err := calib.ReadFile(args[0], kind, 0)
			if err != nil {
				return err
			}
			return printTable(cmd.OutOrStdout(), t, quantized)
		},
	}
	cmd.Flags().StringVarP(&kindName, "kind", "k", "rgc", "table kind: rgc or dtc")
	cmd.Flags().BoolVarP(&quantized, "quantized", "q", false, "print the 16-bit terms loaded into the instrument")
	return cmd
}

func printTable(w io.Writer, t *calib.Table, quantized bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	if quantized {
		q := t.Quantize()
		fmt.Fprintf(tw, "min\t%g\t%g\t%g\t\n", q.Min[0], q.Min[1], q.Min[2])
		fmt.Fprintf(tw, "scale\t%g\t%g\t%g\t\n", q.Scale[0], q.Scale[1], q.Scale[2])
		for i, terms := range q.Terms {
			fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t\n", i, terms[0], terms[1], terms[2])
		}
		return tw.Flush()
	}
	fmt.Fprintf(tw, "bin\tamplitude\tphase\tbias\t\n")
	for i, e := range t.Entries {
		fmt.Fprintf(tw, "%d\t%.6f\t%.6f\t%.6f\t\n", i, e.Amplitude, e.Phase, e.Bias)
	}
	return tw.Flush()
}
