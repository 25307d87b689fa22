package conveyor

import (
	"time"
)

// RandSource is the randomness a RateProcess draws from. *rand.Rand from
// math/rand satisfies it.
type RandSource interface {
	// Float64 returns a number in [0, 1).
	Float64() float64

	// Intn returns a number in [0, n).
	Intn(n int) int
}

// Upper bounds of the uniform draw for each branch of the rate distribution.
const (
	nominalUpTo = 0.30
	reducedUpTo = 0.80
	surgeUpTo   = 0.85
)

// Rate bounds, in pieces per minute.
const (
	NominalRate    = 60
	MinReducedRate = 10
	MaxReducedRate = 50
	MinSurgeRate   = 70
	MaxSurgeRate   = 80
	IdleRate       = 0
)

// Band classifies a production rate.
type Band string

// The bands a rate can fall in.
const (
	BandIdle    Band = "idle"
	BandReduced Band = "reduced"
	BandNominal Band = "nominal"
	BandSurge   Band = "surge"
)

// Bands lists every band in display order.
var Bands = []Band{BandIdle, BandReduced, BandNominal, BandSurge}

// BandOf returns the band that rate falls in.
func BandOf(rate int) Band {
	switch {
	case rate <= IdleRate:
		return BandIdle
	case rate == NominalRate:
		return BandNominal
	case rate >= MinSurgeRate:
		return BandSurge
	default:
		return BandReduced
	}
}

// SpawnInterval is the minimum time between two items at the given rate. The
// second return value is false when the rate never spawns.
func SpawnInterval(rate int) (time.Duration, bool) {
	if rate <= 0 {
		return 0, false
	}

	return time.Minute / time.Duration(rate), true
}

// RateState is the current production rate and when it was set.
type RateState struct {
	CurrentRate int       `json:"currentRate"`
	LastChange  time.Time `json:"lastChange"`
}

// RateProcess owns the production rate of the belt. It is the only writer of
// its RateState.
type RateProcess struct {
	rand        RandSource
	defaultRate int
	state       RateState
}

// NewRateProcess creates a RateProcess that starts at defaultRate.
func NewRateProcess(
	src RandSource,
	defaultRate int,
	now time.Time,
) *RateProcess {
	return &RateProcess{
		rand:        src,
		defaultRate: defaultRate,
		state: RateState{
			CurrentRate: defaultRate,
			LastChange:  now,
		},
	}
}

// Sample draws a rate without changing the current one.
//
//	u < 0.30         60
//	0.30 <= u < 0.80 uniform in [10, 50]
//	0.80 <= u < 0.85 uniform in [70, 80]
//	0.85 <= u        0
func (p *RateProcess) Sample() int {
	u := p.rand.Float64()

	switch {
	case u < nominalUpTo:
		return NominalRate
	case u < reducedUpTo:
		return MinReducedRate + p.rand.Intn(MaxReducedRate-MinReducedRate+1)
	case u < surgeUpTo:
		return MinSurgeRate + p.rand.Intn(MaxSurgeRate-MinSurgeRate+1)
	default:
		return IdleRate
	}
}

// Resample replaces the current rate with a fresh draw and returns the
// previous rate.
func (p *RateProcess) Resample(now time.Time) (previous int) {
	previous = p.state.CurrentRate
	p.state = RateState{
		CurrentRate: p.Sample(),
		LastChange:  now,
	}

	return previous
}

// Reset puts the rate back to the default.
func (p *RateProcess) Reset(now time.Time) {
	p.state = RateState{
		CurrentRate: p.defaultRate,
		LastChange:  now,
	}
}

// CurrentRate returns the rate in pieces per minute.
func (p *RateProcess) CurrentRate() int {
	return p.state.CurrentRate
}

// State returns a copy of the rate state.
func (p *RateProcess) State() RateState {
	return p.state
}
