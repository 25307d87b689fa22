package simulation

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/rs/xid"

	"github.com/sarchlab/beltsim/conveyor"
	"github.com/sarchlab/beltsim/datarecording"
	"github.com/sarchlab/beltsim/driver"
	"github.com/sarchlab/beltsim/monitoring"
	"github.com/sarchlab/beltsim/telemetry"
	"github.com/sarchlab/beltsim/tracing"
)

// Builder can be used to build a simulation.
type Builder struct {
	belt           conveyor.Builder
	beltName       string
	frameInterval  time.Duration
	monitorOn      bool
	monitorPort    int
	recordOn       bool
	outputFileName string
	telemetryOn    bool
	telemetryURL   string
	telemetryRetry time.Duration
	logger         *slog.Logger
}

// MakeBuilder creates a new builder. Monitoring and telemetry are on and
// recording is off by default.
func MakeBuilder() Builder {
	return Builder{
		belt:           conveyor.MakeBuilder(),
		beltName:       "Belt",
		frameInterval:  driver.DefaultFrameInterval,
		monitorOn:      true,
		telemetryOn:    true,
		telemetryURL:   telemetry.DefaultURL,
		telemetryRetry: telemetry.DefaultRetryDelay,
		logger:         slog.Default(),
	}
}

// WithConveyor sets how the belt is built.
func (b Builder) WithConveyor(belt conveyor.Builder) Builder {
	b.belt = belt
	return b
}

// WithBeltName sets the component name of the belt.
func (b Builder) WithBeltName(name string) Builder {
	b.beltName = name
	return b
}

// WithFrameInterval sets how often the belt is ticked.
func (b Builder) WithFrameInterval(d time.Duration) Builder {
	b.frameInterval = d
	return b
}

// WithoutMonitoring sets the simulation to not use monitoring.
func (b Builder) WithoutMonitoring() Builder {
	b.monitorOn = false
	return b
}

// WithMonitorPort sets the port number for the monitoring server.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

// WithRecording stores the belt events into a database with a generated
// name.
func (b Builder) WithRecording() Builder {
	b.recordOn = true
	return b
}

// WithOutputFileName sets the custom output file name for the data recorder
// and turns recording on.
func (b Builder) WithOutputFileName(filename string) Builder {
	b.recordOn = true
	b.outputFileName = filename

	return b
}

// WithTelemetryURL sets where the counters are pushed.
func (b Builder) WithTelemetryURL(url string) Builder {
	b.telemetryURL = url
	return b
}

// WithTelemetryRetryDelay sets the wait before redialing the collector.
func (b Builder) WithTelemetryRetryDelay(d time.Duration) Builder {
	b.telemetryRetry = d
	return b
}

// WithoutTelemetry turns telemetry off.
func (b Builder) WithoutTelemetry() Builder {
	b.telemetryOn = false
	return b
}

// WithLogger sets the logger handed to every part of the simulation.
func (b Builder) WithLogger(l *slog.Logger) Builder {
	b.logger = l
	return b
}

func (b Builder) parametersMustBeValid() {
	if !b.monitorOn && b.monitorPort != 0 {
		panic("monitor port cannot be set when monitoring is disabled")
	}
}

// Build builds the simulation and starts its background services. The belt
// itself is left stopped.
func (b Builder) Build() (*Simulation, error) {
	b.parametersMustBeValid()

	simulator, err := b.belt.Build(b.beltName)
	if err != nil {
		return nil, fmt.Errorf("simulation: %w", err)
	}

	s := newSimulation(xid.New().String(), b.logger)
	s.simulator = simulator
	s.driver = driver.NewRealtime(simulator).
		WithFrameInterval(b.frameInterval).
		WithLogger(b.logger)
	s.RegisterComponent(simulator)

	if b.recordOn {
		err = b.buildRecording(s)
		if err != nil {
			s.Terminate()
			return nil, err
		}
	}

	if b.telemetryOn {
		b.buildTelemetry(s)
	}

	if b.monitorOn {
		err = b.buildMonitor(s)
		if err != nil {
			s.Terminate()
			return nil, err
		}
	}

	return s, nil
}

func (b Builder) buildRecording(s *Simulation) error {
	outputPath := b.outputFileName
	if outputPath == "" {
		outputPath = "beltsim_" + s.id
	}

	recorder, err := datarecording.Open(outputPath)
	if err != nil {
		return fmt.Errorf("simulation: %w", err)
	}

	s.dataRecorder = recorder
	s.tracer = tracing.NewDBTracer(recorder)
	s.simulator.AcceptHook(s.tracer)

	return nil
}

func (b Builder) buildTelemetry(s *Simulation) {
	s.sink = telemetry.NewWebsocketSink(b.telemetryURL).
		WithRetryDelay(b.telemetryRetry).
		WithLogger(b.logger)
	s.pusher = telemetry.NewPusher(s.sink).WithLogger(b.logger)
	s.simulator.AcceptHook(s.pusher)

	s.goBackground(func() { s.sink.Run(s.ctx) })
	s.goBackground(func() { s.pusher.Run(s.ctx) })
}

func (b Builder) buildMonitor(s *Simulation) error {
	s.monitor = monitoring.NewMonitor().
		WithLogger(b.logger).
		WithRunContext(s.ctx)
	if b.monitorPort > 0 {
		s.monitor.WithPortNumber(b.monitorPort)
	}

	s.monitor.RegisterSimulator(s.simulator)
	s.monitor.RegisterController(s.driver)

	addr, err := s.monitor.StartServer()
	if err != nil {
		return fmt.Errorf("simulation: %w", err)
	}

	s.monitorAddr = addr

	return nil
}
