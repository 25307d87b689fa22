package conveyor

import (
	"sync"
	"time"

	"github.com/sarchlab/beltsim/sim"
)

// Simulator runs one belt. It is either Stopped or Running.
//
// All methods are safe for concurrent use: every mutation happens inside one
// exclusive section. Hooks are invoked after that section is left, in the
// order the changes happened, so a hook may call back into the Simulator.
type Simulator struct {
	*sim.ComponentBase

	lock sync.Mutex

	cfg  Config
	rate *RateProcess
	belt *BeltModel

	running        bool
	lastTick       time.Time
	resampleAnchor time.Time
	lastEvent      time.Time
	reported       Counters
}

type pendingHook struct {
	pos    *sim.HookPos
	item   interface{}
	detail interface{}
}

// Config returns the configuration of the simulator.
func (s *Simulator) Config() Config {
	return s.cfg
}

// Start moves the simulator to Running. The tick clock, the spawn clock and
// the resample period are all anchored at now. Start returns false if the
// simulator was already running.
func (s *Simulator) Start(now time.Time) bool {
	s.lock.Lock()

	if s.running {
		s.lock.Unlock()
		return false
	}

	s.running = true
	s.lastTick = now
	s.resampleAnchor = now
	s.lastEvent = now
	s.belt.AnchorSpawnClock()

	s.reported = s.counters()
	hooks := []pendingHook{
		{pos: HookPosStateChanged, item: StateChange{Running: true, At: now}},
		{pos: HookPosCountersChanged, item: s.reported},
	}

	s.lock.Unlock()
	s.invoke(hooks)

	return true
}

// Stop moves the simulator to Stopped. Items stay where they are. Stop
// returns false if the simulator was not running.
func (s *Simulator) Stop(now time.Time) bool {
	s.lock.Lock()

	if !s.running {
		s.lock.Unlock()
		return false
	}

	s.running = false
	s.lastEvent = now

	s.lock.Unlock()
	s.invoke([]pendingHook{
		{pos: HookPosStateChanged, item: StateChange{Running: false, At: now}},
	})

	return true
}

// Reset clears the belt, zeroes the total, restarts item numbering and puts
// the rate back to the default. The simulator is Stopped afterwards.
func (s *Simulator) Reset(now time.Time) {
	s.lock.Lock()

	s.running = false
	s.belt.Reset()
	s.rate.Reset(now)
	s.resampleAnchor = now
	s.lastEvent = now
	s.reported = s.counters()

	s.lock.Unlock()
	s.invoke([]pendingHook{
		{pos: HookPosStateChanged, item: StateChange{
			Running: false,
			Reset:   true,
			At:      now,
		}},
	})
}

// Tick advances the belt to now. The elapsed time is measured from the
// previous tick, or from Start for the first tick of a run. Tick does nothing
// while stopped.
func (s *Simulator) Tick(now time.Time) {
	s.lock.Lock()

	if !s.running {
		s.lock.Unlock()
		return
	}

	delta := now.Sub(s.lastTick)
	if delta < 0 {
		delta = 0
	} else {
		s.lastTick = now
		s.lastEvent = now
	}

	result := s.belt.Tick(delta, now)

	hooks := make([]pendingHook, 0, len(result.Exited)+3)
	for _, item := range result.Exited {
		hooks = append(hooks, pendingHook{
			pos:    HookPosItemExited,
			item:   item,
			detail: now,
		})
	}

	if result.Created {
		hooks = append(hooks, pendingHook{
			pos:  HookPosItemSpawned,
			item: result.Spawned,
		})
	}

	hooks = s.appendCountersChange(hooks)
	hooks = append(hooks, pendingHook{
		pos:  HookPosAfterTick,
		item: s.snapshot(),
	})

	s.lock.Unlock()
	s.invoke(hooks)
}

// Resample redraws the production rate. It does nothing while stopped and
// returns whether a new rate was drawn.
func (s *Simulator) Resample(now time.Time) bool {
	s.lock.Lock()

	if !s.running {
		s.lock.Unlock()
		return false
	}

	previous := s.rate.Resample(now)
	s.resampleAnchor = now
	s.lastEvent = now

	hooks := []pendingHook{
		{pos: HookPosRateChanged, item: RateChange{
			Previous: previous,
			Current:  s.rate.CurrentRate(),
			At:       now,
		}},
	}
	hooks = s.appendCountersChange(hooks)

	s.lock.Unlock()
	s.invoke(hooks)

	return true
}

// Running tells whether the simulator is running.
func (s *Simulator) Running() bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.running
}

// Counters returns the current rate and the total produced.
func (s *Simulator) Counters() Counters {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.counters()
}

// RateState returns the current rate and when it changed.
func (s *Simulator) RateState() RateState {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.rate.State()
}

// Snapshot returns a read-only view of the simulator.
func (s *Simulator) Snapshot() Snapshot {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.snapshot()
}

func (s *Simulator) snapshot() Snapshot {
	items := s.belt.Items()
	views := make([]ItemView, len(items))
	for i, item := range items {
		views[i] = item.View()
	}

	rate := s.rate.State()
	snapshot := Snapshot{
		Items:          views,
		ActiveItems:    len(views),
		CurrentRate:    rate.CurrentRate,
		Band:           BandOf(rate.CurrentRate),
		TotalProduced:  s.belt.TotalProduced(),
		Running:        s.running,
		LastRateChange: rate.LastChange,
		At:             s.lastEvent,
	}

	if s.running {
		next := s.resampleAnchor.Add(s.cfg.ResamplePeriod)
		snapshot.NextResampleAt = &next
	}

	return snapshot
}

func (s *Simulator) counters() Counters {
	return Counters{
		CurrentRate:   s.rate.CurrentRate(),
		TotalProduced: s.belt.TotalProduced(),
	}
}

func (s *Simulator) appendCountersChange(hooks []pendingHook) []pendingHook {
	current := s.counters()
	if current == s.reported {
		return hooks
	}

	s.reported = current

	return append(hooks, pendingHook{pos: HookPosCountersChanged, item: current})
}

func (s *Simulator) invoke(hooks []pendingHook) {
	for _, h := range hooks {
		s.InvokeHook(sim.HookCtx{
			Domain: s,
			Pos:    h.pos,
			Item:   h.item,
			Detail: h.detail,
		})
	}
}
