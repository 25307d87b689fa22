package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sarchlab/beltsim/conveyor"
	"github.com/sarchlab/beltsim/datarecording"
	"github.com/sarchlab/beltsim/tracing"
)

var reportCmd = &cobra.Command{
	Use:   "report FILE",
	Short: "Summarize a recording made with --record.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reader, err := datarecording.OpenReader(args[0])
		if err != nil {
			return err
		}
		defer reader.Close()

		report, err := tracing.LoadReport(cmd.Context(), reader)
		if err != nil {
			return err
		}

		printReport(cmd.OutOrStdout(), report)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

func printReport(w io.Writer, r tracing.RunSummary) {
	if !r.FirstEvent.IsZero() {
		fmt.Fprintf(w, "Recorded:  %s to %s (%s)\n",
			r.FirstEvent.Format("2006-01-02 15:04:05"),
			r.LastEvent.Format("2006-01-02 15:04:05"),
			formatDuration(r.LastEvent.Sub(r.FirstEvent)))
	}

	fmt.Fprintf(w, "Spawned:   %d\n", r.Spawned)
	fmt.Fprintf(w, "Exited:    %d\n", r.Exited)
	fmt.Fprintf(w, "Starts:    %d\n", r.Starts)
	fmt.Fprintf(w, "Stops:     %d\n", r.Stops)
	fmt.Fprintf(w, "Resets:    %d\n", r.Resets)
	fmt.Fprintf(w, "Resamples: %d\n", r.Resamples)

	for _, band := range conveyor.Bands {
		fmt.Fprintf(w, "  %-8s %d\n", band, r.BandCounts[band])
	}
}
