package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "beltsim",
	Short: "beltsim simulates a conveyor belt with a randomly changing rate.",
	Long: `beltsim simulates a conveyor belt. Items are created at one end at ` +
		`the current production rate and travel to the other end at a fixed ` +
		`speed. Every few seconds the rate is drawn again at random.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		setupLogging(verbose)

		envFile, _ := cmd.Flags().GetString("env-file")

		return loadEnvFile(envFile, cmd.Flags().Changed("env-file"))
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("verbose", false, "Log debug messages.")
	rootCmd.PersistentFlags().String("env-file", ".env",
		"File to load BELTSIM_* variables from.")
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

// loadEnvFile loads the file into the environment. A missing default file is
// not an error. Variables already set are kept.
func loadEnvFile(path string, explicit bool) error {
	_, err := os.Stat(path)
	if err != nil && !explicit {
		return nil
	}

	return godotenv.Load(path)
}
