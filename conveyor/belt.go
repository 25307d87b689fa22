package conveyor

import (
	"time"

	"github.com/sarchlab/beltsim/idgen"
)

// A RateTeller tells the production rate in pieces per minute.
type RateTeller interface {
	CurrentRate() int
}

// TickResult reports what changed on the belt during one tick.
type TickResult struct {
	// Spawned is the item created during the tick, if Created is true.
	Spawned Item
	Created bool

	// Exited holds the items that reached the end of the belt, in the
	// order they were created.
	Exited []Item
}

// BeltModel owns the items on the belt.
type BeltModel struct {
	length float64
	speed  float64
	rate   RateTeller

	ids            idgen.Generator
	items          []Item
	totalProduced  uint64
	sinceLastSpawn time.Duration
}

// NewBeltModel creates an empty belt that reads its spawn rate from rate.
func NewBeltModel(cfg Config, rate RateTeller) *BeltModel {
	return &BeltModel{
		length: cfg.BeltLength,
		speed:  cfg.ItemSpeed,
		rate:   rate,
		ids:    idgen.New(),
	}
}

// Tick advances the belt by delta.
//
// Items already on the belt move first and the ones that reach the end are
// removed. Then, if at least one spawn interval has passed since the last
// spawn, a single item is created at position 0. Missed intervals are not
// made up. Moving before spawning means a new item first moves on the tick
// after its creation, so it never leaves the belt before BeltLength/ItemSpeed
// has passed.
func (b *BeltModel) Tick(delta time.Duration, now time.Time) TickResult {
	if delta < 0 {
		delta = 0
	}

	result := TickResult{}

	b.advance(delta)
	result.Exited = b.removeExited()

	b.sinceLastSpawn += delta
	if b.spawnDue() {
		result.Spawned = b.spawn(now)
		result.Created = true
	}

	return result
}

func (b *BeltModel) advance(delta time.Duration) {
	distance := b.speed * float64(delta) / float64(time.Second)
	for i := range b.items {
		b.items[i].Position += distance
	}
}

func (b *BeltModel) removeExited() []Item {
	var exited []Item

	kept := b.items[:0]
	for _, item := range b.items {
		if item.exited(b.length) {
			exited = append(exited, item)
			continue
		}

		kept = append(kept, item)
	}

	for i := len(kept); i < len(b.items); i++ {
		b.items[i] = Item{}
	}
	b.items = kept

	return exited
}

func (b *BeltModel) spawnDue() bool {
	interval, ok := SpawnInterval(b.rate.CurrentRate())
	if !ok {
		return false
	}

	return b.sinceLastSpawn >= interval
}

func (b *BeltModel) spawn(now time.Time) Item {
	item := Item{
		ID:        b.ids.Generate(),
		Position:  0,
		Speed:     b.speed,
		CreatedAt: now,
	}

	b.items = append(b.items, item)
	b.totalProduced++
	b.sinceLastSpawn = 0

	return item
}

// AnchorSpawnClock forgets the time elapsed since the last spawn so that the
// next spawn is a full interval away.
func (b *BeltModel) AnchorSpawnClock() {
	b.sinceLastSpawn = 0
}

// Reset removes all items, zeroes the total and restarts item numbering.
func (b *BeltModel) Reset() {
	b.items = nil
	b.totalProduced = 0
	b.sinceLastSpawn = 0
	b.ids = idgen.New()
}

// Items returns a copy of the items on the belt, oldest first.
func (b *BeltModel) Items() []Item {
	items := make([]Item, len(b.items))
	copy(items, b.items)

	return items
}

// Len returns the number of items on the belt.
func (b *BeltModel) Len() int {
	return len(b.items)
}

// TotalProduced returns how many items were created since the last reset.
func (b *BeltModel) TotalProduced() uint64 {
	return b.totalProduced
}

// SinceLastSpawn returns the time accumulated towards the next spawn.
func (b *BeltModel) SinceLastSpawn() time.Duration {
	return b.sinceLastSpawn
}

// Length returns the travel distance of the belt.
func (b *BeltModel) Length() float64 {
	return b.length
}
