package tracing

import (
	"sync"
	"time"

	"github.com/sarchlab/beltsim/conveyor"
	"github.com/sarchlab/beltsim/datarecording"
	"github.com/sarchlab/beltsim/sim"
	"github.com/tebeka/atexit"
)

// Table names written by DBTracer.
const (
	ItemEventTable   = "item_event"
	RateChangeTable  = "rate_change"
	StateChangeTable = "state_change"
)

// Kinds of item events.
const (
	ItemEventSpawn = "spawn"
	ItemEventExit  = "exit"
)

// ItemEventEntry is one row of the item_event table.
type ItemEventEntry struct {
	ItemID   uint64
	Kind     string
	Position float64
	Time     int64
}

// RateChangeEntry is one row of the rate_change table.
type RateChangeEntry struct {
	Previous int
	Rate     int
	Band     string
	Time     int64
}

// StateChangeEntry is one row of the state_change table.
type StateChangeEntry struct {
	Running bool
	Reset   bool
	Time    int64
}

// DBTracer is a hook that stores what happens on a belt into a database.
// Times are stored as Unix milliseconds.
type DBTracer struct {
	mu         sync.Mutex
	backend    datarecording.DataRecorder
	terminated bool
}

// NewDBTracer creates the tables and returns a tracer writing into them.
func NewDBTracer(dataRecorder datarecording.DataRecorder) *DBTracer {
	dataRecorder.CreateTable(ItemEventTable, ItemEventEntry{})
	dataRecorder.CreateTable(RateChangeTable, RateChangeEntry{})
	dataRecorder.CreateTable(StateChangeTable, StateChangeEntry{})

	t := &DBTracer{
		backend: dataRecorder,
	}

	atexit.Register(func() {
		t.Terminate()
	})

	return t
}

// Func records the hook positions the tracer knows about.
func (t *DBTracer) Func(ctx sim.HookCtx) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.terminated {
		return
	}

	switch ctx.Pos {
	case conveyor.HookPosItemSpawned:
		item, ok := ctx.Item.(conveyor.Item)
		if !ok {
			return
		}

		t.recordItem(item, ItemEventSpawn, item.CreatedAt)
	case conveyor.HookPosItemExited:
		item, ok := ctx.Item.(conveyor.Item)
		if !ok {
			return
		}

		at, _ := ctx.Detail.(time.Time)
		t.recordItem(item, ItemEventExit, at)
	case conveyor.HookPosRateChanged:
		change, ok := ctx.Item.(conveyor.RateChange)
		if !ok {
			return
		}

		t.backend.InsertData(RateChangeTable, RateChangeEntry{
			Previous: change.Previous,
			Rate:     change.Current,
			Band:     string(conveyor.BandOf(change.Current)),
			Time:     change.At.UnixMilli(),
		})
	case conveyor.HookPosStateChanged:
		change, ok := ctx.Item.(conveyor.StateChange)
		if !ok {
			return
		}

		t.backend.InsertData(StateChangeTable, StateChangeEntry{
			Running: change.Running,
			Reset:   change.Reset,
			Time:    change.At.UnixMilli(),
		})
	}
}

func (t *DBTracer) recordItem(item conveyor.Item, kind string, at time.Time) {
	t.backend.InsertData(ItemEventTable, ItemEventEntry{
		ItemID:   uint64(item.ID),
		Kind:     kind,
		Position: item.Position,
		Time:     at.UnixMilli(),
	})
}

// Terminate flushes the backend. Nothing is recorded afterwards.
func (t *DBTracer) Terminate() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.terminated {
		return
	}

	t.terminated = true
	t.backend.Flush()
}
