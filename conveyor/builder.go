package conveyor

import (
	"math/rand"
	"time"

	"github.com/sarchlab/beltsim/sim"
)

// Builder can build Simulators.
type Builder struct {
	cfg       Config
	src       RandSource
	seed      int64
	seeded    bool
	startTime time.Time
}

// MakeBuilder returns a Builder with the default configuration.
func MakeBuilder() Builder {
	return Builder{
		cfg: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b Builder) WithConfig(cfg Config) Builder {
	b.cfg = cfg
	return b
}

// WithBeltLength sets the travel distance of the belt.
func (b Builder) WithBeltLength(length float64) Builder {
	b.cfg.BeltLength = length
	return b
}

// WithItemSpeed sets the speed of every item, in units per second.
func (b Builder) WithItemSpeed(speed float64) Builder {
	b.cfg.ItemSpeed = speed
	return b
}

// WithResamplePeriod sets how often the rate is redrawn.
func (b Builder) WithResamplePeriod(period time.Duration) Builder {
	b.cfg.ResamplePeriod = period
	return b
}

// WithDefaultRate sets the rate used after a reset.
func (b Builder) WithDefaultRate(rate int) Builder {
	b.cfg.DefaultRate = rate
	return b
}

// WithRandSource sets the randomness used for rate draws. It takes precedence
// over WithSeed.
func (b Builder) WithRandSource(src RandSource) Builder {
	b.src = src
	return b
}

// WithSeed makes rate draws reproducible.
func (b Builder) WithSeed(seed int64) Builder {
	b.seed = seed
	b.seeded = true

	return b
}

// WithStartTime sets the instant the simulator is created at. It defaults to
// the wall clock.
func (b Builder) WithStartTime(t time.Time) Builder {
	b.startTime = t
	return b
}

// Build creates a stopped Simulator at the default rate.
func (b Builder) Build(name string) (*Simulator, error) {
	if err := b.cfg.Validate(); err != nil {
		return nil, err
	}

	now := b.startTime
	if now.IsZero() {
		now = time.Now()
	}

	s := &Simulator{
		ComponentBase:  sim.NewComponentBase(name),
		cfg:            b.cfg,
		rate:           NewRateProcess(b.randSource(), b.cfg.DefaultRate, now),
		resampleAnchor: now,
		lastEvent:      now,
	}
	s.belt = NewBeltModel(b.cfg, s.rate)
	s.reported = s.counters()

	return s, nil
}

func (b Builder) randSource() RandSource {
	if b.src != nil {
		return b.src
	}

	seed := b.seed
	if !b.seeded {
		seed = time.Now().UnixNano()
	}

	return rand.New(rand.NewSource(seed))
}
