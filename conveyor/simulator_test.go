package conveyor

import (
	"math/rand"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/beltsim/idgen"
	"github.com/sarchlab/beltsim/sim"
)

type hookRecord struct {
	pos  *sim.HookPos
	item interface{}
}

var _ = Describe("Simulator", func() {
	var (
		mockCtrl  *gomock.Controller
		src       *MockRandSource
		simulator *Simulator
		t0        time.Time
		records   []hookRecord
	)

	BeforeEach(func() {
		var err error

		mockCtrl = gomock.NewController(GinkgoT())
		src = NewMockRandSource(mockCtrl)
		t0 = time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
		records = nil

		simulator, err = MakeBuilder().
			WithRandSource(src).
			WithStartTime(t0).
			Build("Belt")
		Expect(err).ToNot(HaveOccurred())

		simulator.AcceptHook(sim.HookFunc(func(ctx sim.HookCtx) {
			records = append(records, hookRecord{ctx.Pos, ctx.Item})
		}))
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	at := func(d time.Duration) time.Time {
		return t0.Add(d)
	}

	recordsAt := func(pos *sim.HookPos) []interface{} {
		var items []interface{}
		for _, r := range records {
			if r.pos == pos {
				items = append(items, r.item)
			}
		}

		return items
	}

	It("should be built stopped at the default rate", func() {
		snapshot := simulator.Snapshot()

		Expect(simulator.Name()).To(Equal("Belt"))
		Expect(snapshot.Running).To(BeFalse())
		Expect(snapshot.CurrentRate).To(Equal(60))
		Expect(snapshot.Band).To(Equal(BandNominal))
		Expect(snapshot.TotalProduced).To(BeZero())
		Expect(snapshot.Items).To(BeEmpty())
		Expect(snapshot.NextResampleAt).To(BeNil())
	})

	It("should reject an invalid config", func() {
		_, err := MakeBuilder().WithBeltLength(0).Build("Bad")
		Expect(err).To(MatchError(ErrInvalidConfig))
	})

	It("should start only once", func() {
		Expect(simulator.Start(t0)).To(BeTrue())
		Expect(simulator.Start(at(time.Second))).To(BeFalse())
		Expect(simulator.Running()).To(BeTrue())
	})

	It("should stop only when running", func() {
		Expect(simulator.Stop(t0)).To(BeFalse())

		simulator.Start(t0)

		Expect(simulator.Stop(at(time.Second))).To(BeTrue())
		Expect(simulator.Running()).To(BeFalse())
	})

	It("should ignore ticks while stopped", func() {
		simulator.Tick(at(10 * time.Second))

		Expect(simulator.Snapshot().TotalProduced).To(BeZero())
		Expect(recordsAt(HookPosAfterTick)).To(BeEmpty())
	})

	It("should spawn the first item one interval after start", func() {
		simulator.Start(t0)

		simulator.Tick(at(999 * time.Millisecond))
		Expect(simulator.Snapshot().TotalProduced).To(BeZero())

		simulator.Tick(at(time.Second))
		snapshot := simulator.Snapshot()
		Expect(snapshot.TotalProduced).To(Equal(uint64(1)))
		Expect(snapshot.Items).To(Equal([]ItemView{{ID: 1, Position: 0}}))

		spawned := recordsAt(HookPosItemSpawned)
		Expect(spawned).To(HaveLen(1))
		Expect(spawned[0].(Item).ID).To(Equal(idgen.ID(1)))
	})

	It("should spawn at most one item on a late tick", func() {
		simulator.Start(t0)

		simulator.Tick(at(10 * time.Second))

		Expect(simulator.Snapshot().TotalProduced).To(Equal(uint64(1)))
	})

	It("should keep items in place while stopped", func() {
		simulator.Start(t0)
		simulator.Tick(at(time.Second))
		simulator.Tick(at(2 * time.Second))
		simulator.Stop(at(2 * time.Second))

		before := simulator.Snapshot()
		simulator.Tick(at(5 * time.Second))
		Expect(simulator.Resample(at(5 * time.Second))).To(BeFalse())
		after := simulator.Snapshot()

		Expect(after.Items).To(Equal(before.Items))
		Expect(after.TotalProduced).To(Equal(uint64(2)))
	})

	It("should not carry a backlog into a new run", func() {
		simulator.Start(t0)
		simulator.Tick(at(900 * time.Millisecond))
		simulator.Stop(at(900 * time.Millisecond))

		simulator.Start(at(time.Minute))
		simulator.Tick(at(time.Minute + 500*time.Millisecond))
		Expect(simulator.Snapshot().TotalProduced).To(BeZero())

		simulator.Tick(at(time.Minute + time.Second))
		Expect(simulator.Snapshot().TotalProduced).To(Equal(uint64(1)))
	})

	It("should measure the first tick of a run from the start instant", func() {
		simulator.Start(t0)
		simulator.Tick(at(time.Second))
		simulator.Stop(at(time.Second))

		simulator.Start(at(time.Hour))
		simulator.Tick(at(time.Hour + 100*time.Millisecond))

		Expect(simulator.Snapshot().Items[0].Position).To(BeNumerically("~", 10, 1e-9))
	})

	It("should remove an item after it crosses the belt", func() {
		simulator.Start(t0)
		simulator.Tick(at(time.Second))

		for step := 1; step < 80; step++ {
			simulator.Tick(at(time.Second + time.Duration(step)*100*time.Millisecond))
		}
		Expect(simulator.Snapshot().Items[0].ID).To(Equal(idgen.ID(1)))
		Expect(recordsAt(HookPosItemExited)).To(BeEmpty())

		simulator.Tick(at(9 * time.Second))

		exited := recordsAt(HookPosItemExited)
		Expect(exited).To(HaveLen(1))
		Expect(exited[0].(Item).ID).To(Equal(idgen.ID(1)))
		Expect(simulator.Snapshot().Items[0].ID).To(Equal(idgen.ID(2)))
	})

	It("should resample while running", func() {
		src.EXPECT().Float64().Return(0.82)
		src.EXPECT().Intn(11).Return(5)

		simulator.Start(t0)
		Expect(simulator.Resample(at(8 * time.Second))).To(BeTrue())

		state := simulator.RateState()
		Expect(state).To(Equal(RateState{CurrentRate: 75, LastChange: at(8 * time.Second)}))

		changes := recordsAt(HookPosRateChanged)
		Expect(changes).To(Equal([]interface{}{
			RateChange{Previous: 60, Current: 75, At: at(8 * time.Second)},
		}))

		snapshot := simulator.Snapshot()
		Expect(snapshot.Band).To(Equal(BandSurge))
		Expect(*snapshot.NextResampleAt).To(Equal(at(16 * time.Second)))
	})

	It("should never spawn at rate zero", func() {
		src.EXPECT().Float64().Return(0.95)

		simulator.Start(t0)
		simulator.Resample(t0)

		for s := 1; s <= 600; s++ {
			simulator.Tick(at(time.Duration(s) * 100 * time.Millisecond))
		}

		Expect(simulator.Snapshot().TotalProduced).To(BeZero())
		Expect(simulator.Snapshot().Band).To(Equal(BandIdle))
	})

	It("should report counters on start and whenever they change", func() {
		src.EXPECT().Float64().Return(0.1)
		src.EXPECT().Float64().Return(0.95)

		simulator.Start(t0)
		simulator.Tick(at(500 * time.Millisecond))
		simulator.Tick(at(time.Second))
		simulator.Resample(at(2 * time.Second))
		simulator.Resample(at(3 * time.Second))

		Expect(recordsAt(HookPosCountersChanged)).To(Equal([]interface{}{
			Counters{CurrentRate: 60, TotalProduced: 0},
			Counters{CurrentRate: 60, TotalProduced: 1},
			Counters{CurrentRate: 0, TotalProduced: 1},
		}))
	})

	It("should reset from any state", func() {
		simulator.Start(t0)
		for s := 1; s <= 5; s++ {
			simulator.Tick(at(time.Duration(s) * time.Second))
		}

		simulator.Reset(at(6 * time.Second))

		snapshot := simulator.Snapshot()
		Expect(snapshot.Items).To(BeEmpty())
		Expect(snapshot.TotalProduced).To(BeZero())
		Expect(snapshot.CurrentRate).To(Equal(60))
		Expect(snapshot.Running).To(BeFalse())
		Expect(snapshot.LastRateChange).To(Equal(at(6 * time.Second)))

		Expect(recordsAt(HookPosStateChanged)).To(ContainElement(
			StateChange{Running: false, Reset: true, At: at(6 * time.Second)}))

		simulator.Reset(at(7 * time.Second))
		Expect(simulator.Snapshot().Running).To(BeFalse())
	})

	It("should restart item numbering after a reset", func() {
		simulator.Start(t0)
		simulator.Tick(at(time.Second))
		simulator.Tick(at(2 * time.Second))
		simulator.Reset(at(3 * time.Second))

		simulator.Start(at(4 * time.Second))
		simulator.Tick(at(5 * time.Second))

		Expect(simulator.Snapshot().Items).To(Equal([]ItemView{{ID: 1, Position: 0}}))
	})

	It("should publish a snapshot after every tick", func() {
		simulator.Start(t0)
		simulator.Tick(at(time.Second))
		simulator.Tick(at(1500 * time.Millisecond))

		snapshots := recordsAt(HookPosAfterTick)
		Expect(snapshots).To(HaveLen(2))

		last := snapshots[1].(Snapshot)
		Expect(last.Items).To(Equal([]ItemView{{ID: 1, Position: 50}}))
		Expect(last.At).To(Equal(at(1500 * time.Millisecond)))
	})

	It("should let hooks read the simulator", func() {
		var seen uint64
		simulator.AcceptHook(sim.HookFunc(func(ctx sim.HookCtx) {
			if ctx.Pos == HookPosItemSpawned {
				seen = ctx.Domain.(*Simulator).Snapshot().TotalProduced
			}
		}))

		simulator.Start(t0)
		simulator.Tick(at(time.Second))

		Expect(seen).To(Equal(uint64(1)))
	})

	It("should never decrease the total while running", func() {
		seeded, err := MakeBuilder().
			WithRandSource(rand.New(rand.NewSource(7))).
			WithStartTime(t0).
			Build("Seeded")
		Expect(err).ToNot(HaveOccurred())

		seeded.Start(t0)

		var previous uint64
		elapsed := time.Duration(0)
		for i := 0; i < 5000; i++ {
			elapsed += 16 * time.Millisecond
			seeded.Tick(at(elapsed))
			if i%500 == 0 {
				seeded.Resample(at(elapsed))
			}

			total := seeded.Snapshot().TotalProduced
			Expect(total).To(BeNumerically(">=", previous))
			Expect(total - previous).To(BeNumerically("<=", 1))
			previous = total
		}
	})
})
