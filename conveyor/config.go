package conveyor

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidConfig is returned when a Config cannot drive a simulation.
var ErrInvalidConfig = errors.New("conveyor: invalid config")

// Config holds the tunable constants of a belt.
type Config struct {
	// BeltLength is the visible travel distance, in spatial units.
	BeltLength float64 `json:"beltLength"`

	// ItemSpeed is how fast every item moves, in units per second. It does
	// not depend on the production rate.
	ItemSpeed float64 `json:"itemSpeed"`

	// ResamplePeriod is how often the production rate is redrawn while the
	// simulation runs.
	ResamplePeriod time.Duration `json:"resamplePeriod"`

	// DefaultRate is the rate in pieces per minute after a reset.
	DefaultRate int `json:"defaultRate"`
}

// DefaultConfig returns the configuration of the reference belt.
func DefaultConfig() Config {
	return Config{
		BeltLength:     800,
		ItemSpeed:      100,
		ResamplePeriod: 8 * time.Second,
		DefaultRate:    60,
	}
}

// Validate reports the first field that makes the config unusable.
func (c Config) Validate() error {
	switch {
	case !finitePositive(c.BeltLength):
		return fmt.Errorf("%w: belt length must be positive and finite, got %g",
			ErrInvalidConfig, c.BeltLength)
	case !finitePositive(c.ItemSpeed):
		return fmt.Errorf("%w: item speed must be positive and finite, got %g",
			ErrInvalidConfig, c.ItemSpeed)
	case c.ResamplePeriod <= 0:
		return fmt.Errorf("%w: resample period must be positive, got %s",
			ErrInvalidConfig, c.ResamplePeriod)
	case c.DefaultRate < 0:
		return fmt.Errorf("%w: default rate must not be negative, got %d",
			ErrInvalidConfig, c.DefaultRate)
	}

	return nil
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}

// TravelTime is how long an item stays on the belt.
func (c Config) TravelTime() time.Duration {
	return time.Duration(c.BeltLength / c.ItemSpeed * float64(time.Second))
}
