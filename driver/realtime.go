package driver

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sarchlab/beltsim/conveyor"
)

// DefaultFrameInterval is close to the refresh interval of a 60 Hz display.
const DefaultFrameInterval = 16 * time.Millisecond

// Realtime drives a Simulator from the wall clock. One goroutine owns both
// triggers, so ticks and resamples never interleave.
type Realtime struct {
	simulator     *conveyor.Simulator
	frameInterval time.Duration
	clock         func() time.Time
	logger        *slog.Logger

	lock    sync.Mutex
	loopCtx context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewRealtime creates a Realtime driver for the simulator.
func NewRealtime(s *conveyor.Simulator) *Realtime {
	return &Realtime{
		simulator:     s,
		frameInterval: DefaultFrameInterval,
		clock:         time.Now,
		logger:        slog.Default(),
	}
}

// WithFrameInterval sets how often the belt is ticked.
func (r *Realtime) WithFrameInterval(d time.Duration) *Realtime {
	if d <= 0 {
		panic("frame interval must be positive")
	}

	r.frameInterval = d

	return r
}

// WithLogger sets the logger used for lifecycle messages.
func (r *Realtime) WithLogger(l *slog.Logger) *Realtime {
	r.logger = l
	return r
}

// Start arms both triggers and moves the simulator to Running. The resample
// period starts over at the moment of the call. Start returns false if the
// driver is already armed. Cancelling ctx has the same effect as Stop.
func (r *Realtime) Start(ctx context.Context) bool {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.armed() {
		return false
	}

	r.release()

	now := r.clock()
	r.simulator.Start(now)

	r.loopCtx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})

	go r.loop(r.loopCtx, r.done)

	r.logger.Info("conveyor started",
		"frame_interval", r.frameInterval,
		"resample_period", r.simulator.Config().ResamplePeriod)

	return true
}

// Stop disarms both triggers and moves the simulator to Stopped. When Stop
// returns, no more ticks or resamples happen. Stop returns false if the
// driver was not armed.
func (r *Realtime) Stop() bool {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.disarm()
}

// Reset disarms the triggers and resets the simulator.
func (r *Realtime) Reset() {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.disarm()
	r.simulator.Reset(r.clock())

	r.logger.Info("conveyor reset")
}

// Running tells whether the simulator is running.
func (r *Realtime) Running() bool {
	return r.simulator.Running()
}

// Snapshot returns the current view of the simulator.
func (r *Realtime) Snapshot() conveyor.Snapshot {
	return r.simulator.Snapshot()
}

// Simulator returns the driven simulator.
func (r *Realtime) Simulator() *conveyor.Simulator {
	return r.simulator
}

func (r *Realtime) armed() bool {
	if r.done == nil {
		return false
	}

	select {
	case <-r.done:
		return false
	default:
		return r.loopCtx.Err() == nil
	}
}

// release cancels the context of the previous loop and waits for the loop to
// exit. The loop may already have ended because its parent was cancelled.
func (r *Realtime) release() {
	if r.done == nil {
		return
	}

	r.cancel()
	<-r.done
	r.loopCtx = nil
	r.cancel = nil
	r.done = nil
}

func (r *Realtime) disarm() bool {
	if r.done == nil {
		return false
	}

	wasArmed := r.armed()

	r.release()

	r.simulator.Stop(r.clock())

	if wasArmed {
		r.logger.Info("conveyor stopped")
	}

	return wasArmed
}

func (r *Realtime) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	frames := time.NewTicker(r.frameInterval)
	defer frames.Stop()

	resamples := time.NewTicker(r.simulator.Config().ResamplePeriod)
	defer resamples.Stop()

	for {
		select {
		case <-ctx.Done():
			r.simulator.Stop(r.clock())
			return
		case <-frames.C:
			r.simulator.Tick(r.clock())
		case <-resamples.C:
			now := r.clock()
			if r.simulator.Resample(now) {
				r.logger.Debug("rate resampled",
					"rate", r.simulator.RateState().CurrentRate)
			}
		}
	}
}
