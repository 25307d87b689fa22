package conveyor

import (
	"time"

	"github.com/sarchlab/beltsim/sim"
)

// Hook positions of the Simulator. Item and Detail of the HookCtx carry the
// types noted below.
var (
	// HookPosItemSpawned: Item is the created Item.
	HookPosItemSpawned = &sim.HookPos{Name: "ItemSpawned"}

	// HookPosItemExited: Item is the removed Item, Detail the time.Time of
	// the tick that removed it.
	HookPosItemExited = &sim.HookPos{Name: "ItemExited"}

	// HookPosRateChanged: Item is a RateChange.
	HookPosRateChanged = &sim.HookPos{Name: "RateChanged"}

	// HookPosStateChanged: Item is a StateChange.
	HookPosStateChanged = &sim.HookPos{Name: "StateChanged"}

	// HookPosCountersChanged: Item is the new Counters. Only fired while
	// running.
	HookPosCountersChanged = &sim.HookPos{Name: "CountersChanged"}

	// HookPosAfterTick: Item is the Snapshot taken at the end of the tick.
	HookPosAfterTick = &sim.HookPos{Name: "AfterTick"}
)

// RateChange describes one resample.
type RateChange struct {
	Previous int       `json:"previous"`
	Current  int       `json:"current"`
	At       time.Time `json:"at"`
}

// StateChange describes a start, stop or reset.
type StateChange struct {
	Running bool      `json:"running"`
	Reset   bool      `json:"reset"`
	At      time.Time `json:"at"`
}

// Counters is what the simulator reports to telemetry.
type Counters struct {
	CurrentRate   int    `json:"currentRate"`
	TotalProduced uint64 `json:"totalProduced"`
}
