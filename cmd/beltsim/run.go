package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/beltsim/simulation"
	"github.com/sarchlab/beltsim/telemetry"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the belt on the wall clock.",
	Long: `Run the belt on the wall clock until interrupted. The belt is ` +
		`controlled from the monitoring dashboard, or started right away ` +
		`with --autostart.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		flags := cmd.Flags()
		if err := applyEnv(flags); err != nil {
			return err
		}

		b, err := simulationBuilder(cmd)
		if err != nil {
			return err
		}

		s, err := b.Build()
		if err != nil {
			return err
		}

		atexit.Register(s.Terminate)
		defer s.Terminate()

		return serve(cmd, s)
	},
}

func init() {
	flags := runCmd.Flags()
	flags.Int("monitor-port", 0,
		"Port of the monitoring server. 0 picks a free port.")
	flags.Bool("no-monitor", false, "Do not start the monitoring server.")
	flags.Bool("open", false, "Open the dashboard in a browser.")
	flags.String("telemetry-url", telemetry.DefaultURL,
		"Websocket address the counters are pushed to.")
	flags.Bool("no-telemetry", false, "Do not push counters.")
	flags.String("record", "",
		"Record belt events into this SQLite file.")
	flags.Bool("autostart", false, "Start the belt immediately.")
	addBeltFlags(flags)

	rootCmd.AddCommand(runCmd)
}

func simulationBuilder(cmd *cobra.Command) (simulation.Builder, error) {
	flags := cmd.Flags()
	b := simulation.MakeBuilder().WithLogger(slog.Default())

	belt, err := beltBuilder(flags)
	if err != nil {
		return b, err
	}
	b = b.WithConveyor(belt)

	noMonitor, _ := flags.GetBool("no-monitor")
	port, _ := flags.GetInt("monitor-port")
	switch {
	case noMonitor && flags.Changed("monitor-port"):
		return b, fmt.Errorf("--monitor-port cannot be used with --no-monitor")
	case noMonitor:
		b = b.WithoutMonitoring()
	case port != 0:
		b = b.WithMonitorPort(port)
	}

	noTelemetry, _ := flags.GetBool("no-telemetry")
	if noTelemetry {
		b = b.WithoutTelemetry()
	} else {
		url, _ := flags.GetString("telemetry-url")
		b = b.WithTelemetryURL(url)
	}

	record, _ := flags.GetString("record")
	if record != "" {
		b = b.WithOutputFileName(record)
	}

	return b, nil
}

func serve(cmd *cobra.Command, s *simulation.Simulation) error {
	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	open, _ := cmd.Flags().GetBool("open")
	if open && s.MonitorAddr() != "" {
		if err := browser.OpenURL(s.MonitorAddr()); err != nil {
			slog.Warn("cannot open browser", "error", err)
		}
	}

	autostart, _ := cmd.Flags().GetBool("autostart")
	if autostart || s.MonitorAddr() == "" {
		s.Start()
	}

	<-ctx.Done()

	snapshot := s.Snapshot()
	fmt.Fprintf(cmd.OutOrStdout(),
		"Stopped with %d items produced at %d pieces per minute.\n",
		snapshot.TotalProduced, snapshot.CurrentRate)

	return nil
}
