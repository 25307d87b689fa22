package driver

import (
	"fmt"
	"time"

	"github.com/sarchlab/beltsim/conveyor"
	"github.com/sarchlab/beltsim/sim"
)

// DefaultFrameFreq is the frame rate a virtual run ticks the belt at.
const DefaultFrameFreq = 60 * sim.Hz

type command int

const (
	commandStart command = iota
	commandStop
	commandReset
)

func (c command) String() string {
	switch c {
	case commandStart:
		return "start"
	case commandStop:
		return "stop"
	case commandReset:
		return "reset"
	default:
		return fmt.Sprintf("command(%d)", int(c))
	}
}

// commandEvent applies a lifecycle command at a virtual instant.
type commandEvent struct {
	*sim.EventBase
	command command
}

// resampleEvent fires the periodic rate resample. Events that belong to an
// earlier run carry a stale generation and are ignored.
type resampleEvent struct {
	*sim.EventBase
	generation uint64
}

// Summary describes a finished virtual run.
type Summary struct {
	Elapsed    time.Duration
	Frames     uint64
	Resamples  int
	BandCounts map[conveyor.Band]int
	Final      conveyor.Snapshot
}

// Virtual drives a Simulator on a discrete-event engine. Simulated instants
// map onto wall-clock instants as epoch plus the virtual time.
type Virtual struct {
	*sim.ComponentBase

	engine    sim.Engine
	simulator *conveyor.Simulator
	frames    *sim.TickingComponent
	epoch     time.Time
	period    sim.VTimeInSec

	until      sim.VTimeInSec
	generation uint64
	summary    Summary
}

// NewVirtual creates a virtual-time driver. The frame ticks are issued at
// freq.
func NewVirtual(
	s *conveyor.Simulator,
	engine sim.Engine,
	freq sim.Freq,
	epoch time.Time,
) *Virtual {
	v := &Virtual{
		ComponentBase: sim.NewComponentBase(s.Name() + ".Driver"),
		engine:        engine,
		simulator:     s,
		epoch:         epoch,
		period:        sim.SecondsOf(s.Config().ResamplePeriod),
		summary: Summary{
			BandCounts: make(map[conveyor.Band]int),
		},
	}

	v.frames = sim.NewTickingComponent(
		s.Name()+".Frames", engine, freq, frameTicker{v})
	engine.RegisterSimulationEndHandler(runEnd{v})

	return v
}

// Engine returns the engine the driver schedules on.
func (v *Virtual) Engine() sim.Engine {
	return v.engine
}

// ScheduleStart starts the simulator at the given offset into the run.
func (v *Virtual) ScheduleStart(at time.Duration) {
	v.schedule(at, commandStart)
}

// ScheduleStop stops the simulator at the given offset into the run.
func (v *Virtual) ScheduleStop(at time.Duration) {
	v.schedule(at, commandStop)
}

// ScheduleReset resets the simulator at the given offset into the run.
func (v *Virtual) ScheduleReset(at time.Duration) {
	v.schedule(at, commandReset)
}

func (v *Virtual) schedule(at time.Duration, c command) {
	evt := &commandEvent{
		EventBase: sim.NewSecondaryEventBase(sim.SecondsOf(at), v),
		command:   c,
	}
	v.engine.Schedule(evt)
}

// Run processes every event up to d of virtual time and reports what
// happened. Nothing is scheduled past d.
func (v *Virtual) Run(d time.Duration) (Summary, error) {
	v.until = sim.SecondsOf(d)

	err := v.engine.Run()
	v.engine.Finished()

	v.summary.Elapsed = d

	if err != nil {
		return v.summary, fmt.Errorf("driver: virtual run: %w", err)
	}

	return v.summary, nil
}

// Handle applies commands and resamples.
func (v *Virtual) Handle(e sim.Event) error {
	switch e := e.(type) {
	case *commandEvent:
		v.apply(e.command, e.Time())
	case *resampleEvent:
		v.resample(e)
	default:
		return fmt.Errorf("driver: cannot handle event of type %T", e)
	}

	return nil
}

func (v *Virtual) apply(c command, now sim.VTimeInSec) {
	if now > v.until {
		return
	}

	switch c {
	case commandStart:
		if !v.simulator.Start(v.wall(now)) {
			return
		}

		v.generation++
		v.scheduleResample(now + v.period)
		v.frames.TickLater()
	case commandStop:
		if v.simulator.Stop(v.wall(now)) {
			v.generation++
		}
	case commandReset:
		v.simulator.Reset(v.wall(now))
		v.generation++
	}
}

func (v *Virtual) scheduleResample(at sim.VTimeInSec) {
	if at > v.until {
		return
	}

	evt := &resampleEvent{
		EventBase:  sim.NewSecondaryEventBase(at, v),
		generation: v.generation,
	}
	v.engine.Schedule(evt)
}

func (v *Virtual) resample(e *resampleEvent) {
	if e.generation != v.generation {
		return
	}

	if !v.simulator.Resample(v.wall(e.Time())) {
		return
	}

	v.summary.Resamples++
	rate := v.simulator.RateState().CurrentRate
	v.summary.BandCounts[conveyor.BandOf(rate)]++

	v.scheduleResample(e.Time() + v.period)
}

func (v *Virtual) wall(t sim.VTimeInSec) time.Time {
	return v.epoch.Add(t.Duration())
}

type frameTicker struct {
	v *Virtual
}

func (t frameTicker) Tick() bool {
	v := t.v
	now := v.engine.CurrentTime()

	if now > v.until || !v.simulator.Running() {
		return false
	}

	v.simulator.Tick(v.wall(now))
	v.summary.Frames++

	return v.frames.Freq.NextTick(now) <= v.until
}

// runEnd captures the final state once the engine has run out of events.
type runEnd struct {
	v *Virtual
}

func (r runEnd) Handle(sim.VTimeInSec) {
	r.v.summary.Final = r.v.simulator.Snapshot()
}
