package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/sarchlab/beltsim/conveyor"
	"github.com/sarchlab/beltsim/datarecording"
	"github.com/sarchlab/beltsim/driver"
	"github.com/sarchlab/beltsim/sim"
	"github.com/sarchlab/beltsim/tracing"
)

var headlessCmd = &cobra.Command{
	Use:   "headless",
	Short: "Run the belt in virtual time and print a summary.",
	Long: `Run the belt for the given duration of virtual time. The run ` +
		`finishes as fast as it can be computed and is reproducible with ` +
		`--seed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		flags := cmd.Flags()
		if err := applyEnv(flags); err != nil {
			return err
		}

		duration, _ := flags.GetDuration("duration")
		if duration <= 0 {
			return fmt.Errorf("--duration must be positive, got %s", duration)
		}

		fps, _ := flags.GetFloat64("fps")
		if fps <= 0 {
			return fmt.Errorf("--fps must be positive, got %g", fps)
		}

		belt, err := beltBuilder(flags)
		if err != nil {
			return err
		}

		epoch := time.Now()
		simulator, err := belt.WithStartTime(epoch).Build("Belt")
		if err != nil {
			return err
		}

		record, _ := flags.GetString("record")
		if record != "" {
			recorder, err := datarecording.Open(record)
			if err != nil {
				return err
			}
			defer recorder.Close()

			tracer := tracing.NewDBTracer(recorder)
			defer tracer.Terminate()

			simulator.AcceptHook(tracer)
		}

		v := driver.NewVirtual(
			simulator, sim.NewSerialEngine(), sim.Freq(fps)*sim.Hz, epoch)
		v.ScheduleStart(0)

		summary, err := v.Run(duration)
		if err != nil {
			return err
		}

		printSummary(cmd.OutOrStdout(), summary)

		return nil
	},
}

func init() {
	flags := headlessCmd.Flags()
	flags.Duration("duration", time.Minute, "Virtual time to simulate.")
	flags.Float64("fps", float64(driver.DefaultFrameFreq),
		"Frame ticks per virtual second.")
	flags.String("record", "", "Record belt events into this SQLite file.")
	addBeltFlags(flags)

	rootCmd.AddCommand(headlessCmd)
}

func printSummary(w io.Writer, s driver.Summary) {
	fmt.Fprintf(w, "Simulated:      %s\n", formatDuration(s.Elapsed))
	fmt.Fprintf(w, "Frames:         %d\n", s.Frames)
	fmt.Fprintf(w, "Total produced: %d\n", s.Final.TotalProduced)
	fmt.Fprintf(w, "On belt:        %d\n", s.Final.ActiveItems)
	fmt.Fprintf(w, "Final rate:     %d (%s)\n",
		s.Final.CurrentRate, s.Final.Band)
	fmt.Fprintf(w, "Resamples:      %d\n", s.Resamples)

	for _, band := range conveyor.Bands {
		fmt.Fprintf(w, "  %-8s %d\n", band, s.BandCounts[band])
	}
}
