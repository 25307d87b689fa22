// Package simulation assembles a belt with the services around it: the
// wall-clock driver, recording, telemetry and the monitoring server.
package simulation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sarchlab/beltsim/conveyor"
	"github.com/sarchlab/beltsim/datarecording"
	"github.com/sarchlab/beltsim/driver"
	"github.com/sarchlab/beltsim/monitoring"
	"github.com/sarchlab/beltsim/sim"
	"github.com/sarchlab/beltsim/telemetry"
	"github.com/sarchlab/beltsim/tracing"
)

const shutdownTimeout = 2 * time.Second

// A Simulation owns one belt and everything attached to it.
type Simulation struct {
	id     string
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	simulator    *conveyor.Simulator
	driver       *driver.Realtime
	dataRecorder datarecording.DataRecorder
	tracer       *tracing.DBTracer
	monitor      *monitoring.Monitor
	monitorAddr  string
	sink         *telemetry.WebsocketSink
	pusher       *telemetry.Pusher

	components    []sim.Named
	compNameIndex map[string]int

	terminateOnce sync.Once
}

func newSimulation(id string, logger *slog.Logger) *Simulation {
	s := &Simulation{
		id:            id,
		logger:        logger,
		compNameIndex: make(map[string]int),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	return s
}

func (s *Simulation) goBackground(f func()) {
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		f()
	}()
}

// ID returns the unique ID of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// Simulator returns the belt.
func (s *Simulation) Simulator() *conveyor.Simulator {
	return s.simulator
}

// Driver returns the wall-clock driver of the belt.
func (s *Simulation) Driver() *driver.Realtime {
	return s.driver
}

// GetDataRecorder returns the data recorder, or nil if recording is off.
func (s *Simulation) GetDataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// GetTracer returns the tracer, or nil if recording is off.
func (s *Simulation) GetTracer() *tracing.DBTracer {
	return s.tracer
}

// GetMonitor returns the monitor, or nil if monitoring is off.
func (s *Simulation) GetMonitor() *monitoring.Monitor {
	return s.monitor
}

// MonitorAddr returns the URL of the monitoring server, or an empty string
// if monitoring is off.
func (s *Simulation) MonitorAddr() string {
	return s.monitorAddr
}

// Telemetry returns the telemetry sink, or nil if telemetry is off.
func (s *Simulation) Telemetry() *telemetry.WebsocketSink {
	return s.sink
}

// Start runs the belt on the wall clock.
func (s *Simulation) Start() bool {
	return s.driver.Start(s.ctx)
}

// Stop halts the belt.
func (s *Simulation) Stop() bool {
	return s.driver.Stop()
}

// Reset halts and clears the belt.
func (s *Simulation) Reset() {
	s.driver.Reset()
}

// Snapshot returns the current view of the belt.
func (s *Simulation) Snapshot() conveyor.Snapshot {
	return s.driver.Snapshot()
}

// RegisterComponent registers a component with the simulation.
func (s *Simulation) RegisterComponent(c sim.Named) {
	compName := c.Name()
	if _, exists := s.compNameIndex[compName]; exists {
		panic("component " + compName + " already registered")
	}

	s.components = append(s.components, c)
	s.compNameIndex[compName] = len(s.components) - 1
}

// GetComponentByName returns the component with the given name, or nil.
func (s *Simulation) GetComponentByName(name string) sim.Named {
	i, ok := s.compNameIndex[name]
	if !ok {
		return nil
	}

	return s.components[i]
}

// Components returns all registered components.
func (s *Simulation) Components() []sim.Named {
	return append([]sim.Named(nil), s.components...)
}

// Terminate stops the belt, shuts every service down and closes the
// recording. It is safe to call more than once.
func (s *Simulation) Terminate() {
	s.terminateOnce.Do(s.terminate)
}

func (s *Simulation) terminate() {
	if s.driver != nil {
		s.driver.Stop()
	}

	if s.monitor != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		err := s.monitor.Shutdown(ctx)
		cancel()

		if err != nil {
			s.logger.Warn("monitoring shutdown", "error", err)
		}
	}

	s.cancel()
	s.wg.Wait()

	if s.tracer != nil {
		s.tracer.Terminate()
	}

	if s.dataRecorder != nil {
		err := s.dataRecorder.Close()
		if err != nil {
			s.logger.Warn("closing recording", "error", err)
		}
	}
}
