package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/sarchlab/beltsim/conveyor"
)

// Environment variables read by beltsim. Flags take precedence.
const (
	envTelemetryURL   = "BELTSIM_TELEMETRY_URL"
	envMonitorPort    = "BELTSIM_MONITOR_PORT"
	envSeed           = "BELTSIM_SEED"
	envBeltLength     = "BELTSIM_BELT_LENGTH"
	envItemSpeed      = "BELTSIM_ITEM_SPEED"
	envResamplePeriod = "BELTSIM_RESAMPLE_PERIOD"
	envDefaultRate    = "BELTSIM_DEFAULT_RATE"
)

// flagToEnv lists the flags that can also be set from the environment.
var flagToEnv = map[string]string{
	"telemetry-url":   envTelemetryURL,
	"monitor-port":    envMonitorPort,
	"seed":            envSeed,
	"belt-length":     envBeltLength,
	"item-speed":      envItemSpeed,
	"resample-period": envResamplePeriod,
	"default-rate":    envDefaultRate,
}

// applyEnv sets every flag that was not given on the command line from its
// environment variable, if that is set.
func applyEnv(flags *pflag.FlagSet) error {
	var err error

	flags.VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Changed {
			return
		}

		name, ok := flagToEnv[f.Name]
		if !ok {
			return
		}

		value, ok := os.LookupEnv(name)
		if !ok || value == "" {
			return
		}

		if setErr := flags.Set(f.Name, value); setErr != nil {
			err = fmt.Errorf("invalid %s=%q: %w", name, value, setErr)
		}
	})

	return err
}

func addBeltFlags(flags *pflag.FlagSet) {
	cfg := conveyor.DefaultConfig()

	flags.Int64("seed", 0, "Seed of the rate process. 0 picks one at random.")
	flags.Float64("belt-length", cfg.BeltLength, "Travel distance of the belt.")
	flags.Float64("item-speed", cfg.ItemSpeed,
		"Speed of every item, in units per second.")
	flags.Duration("resample-period", cfg.ResamplePeriod,
		"Time between two rate draws.")
	flags.Int("default-rate", cfg.DefaultRate,
		"Rate at start and after a reset, in pieces per minute.")
}

// beltBuilder turns the belt flags into a conveyor builder.
func beltBuilder(flags *pflag.FlagSet) (conveyor.Builder, error) {
	b := conveyor.MakeBuilder()

	length, err := flags.GetFloat64("belt-length")
	if err != nil {
		return b, err
	}

	speed, err := flags.GetFloat64("item-speed")
	if err != nil {
		return b, err
	}

	period, err := flags.GetDuration("resample-period")
	if err != nil {
		return b, err
	}

	rate, err := flags.GetInt("default-rate")
	if err != nil {
		return b, err
	}

	seed, err := flags.GetInt64("seed")
	if err != nil {
		return b, err
	}

	b = b.WithBeltLength(length).
		WithItemSpeed(speed).
		WithResamplePeriod(period).
		WithDefaultRate(rate)

	if seed != 0 {
		b = b.WithSeed(seed)
	}

	return b, nil
}

func formatDuration(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 1, 64) + "s"
}
