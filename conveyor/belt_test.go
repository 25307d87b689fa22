package conveyor

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/beltsim/idgen"
)

var _ = Describe("BeltModel", func() {
	var (
		mockCtrl *gomock.Controller
		rate     *MockRateTeller
		belt     *BeltModel
		now      time.Time
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		rate = NewMockRateTeller(mockCtrl)
		belt = NewBeltModel(DefaultConfig(), rate)
		now = time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	tick := func(d time.Duration) TickResult {
		now = now.Add(d)
		return belt.Tick(d, now)
	}

	Context("at the nominal rate", func() {
		BeforeEach(func() {
			rate.EXPECT().CurrentRate().Return(60).AnyTimes()
		})

		It("should not spawn before a full interval has passed", func() {
			Expect(tick(999 * time.Millisecond).Created).To(BeFalse())
			Expect(belt.TotalProduced()).To(BeZero())
		})

		It("should spawn once the interval is reached", func() {
			tick(999 * time.Millisecond)
			result := tick(time.Millisecond)

			Expect(result.Created).To(BeTrue())
			Expect(result.Spawned.ID).To(Equal(idgen.ID(1)))
			Expect(result.Spawned.Position).To(BeZero())
			Expect(result.Spawned.Speed).To(Equal(100.0))
			Expect(result.Spawned.CreatedAt).To(Equal(now))
			Expect(belt.TotalProduced()).To(Equal(uint64(1)))
			Expect(belt.Len()).To(Equal(1))
		})

		It("should spawn exactly one item for a single one second tick", func() {
			result := tick(time.Second)

			Expect(result.Created).To(BeTrue())
			Expect(belt.TotalProduced()).To(Equal(uint64(1)))
		})

		It("should spawn at most one item per tick", func() {
			tick(5 * time.Second)

			Expect(belt.TotalProduced()).To(Equal(uint64(1)))
			Expect(belt.SinceLastSpawn()).To(BeZero())
		})

		It("should move items by speed times elapsed time", func() {
			tick(time.Second)
			tick(250 * time.Millisecond)

			Expect(belt.Items()[0].Position).To(BeNumerically("~", 25, 1e-9))
		})

		It("should not move an item in the tick that creates it", func() {
			result := tick(time.Second)

			Expect(result.Spawned.Position).To(BeZero())
			Expect(belt.Items()[0].Position).To(BeZero())
		})

		It("should keep an item on the belt for its full travel time", func() {
			created := tick(time.Second).Spawned

			for i := 1; i < 8; i++ {
				Expect(tick(time.Second).Exited).To(BeEmpty())
			}

			result := tick(time.Second)

			Expect(result.Exited).To(HaveLen(1))
			Expect(result.Exited[0].ID).To(Equal(created.ID))
			Expect(now.Sub(created.CreatedAt)).
				To(Equal(DefaultConfig().TravelTime()))
		})

		It("should remove an item exactly when it reaches the end", func() {
			tick(time.Second)

			for i := 0; i < 79; i++ {
				result := tick(100 * time.Millisecond)
				Expect(result.Exited).To(BeEmpty())
			}

			items := belt.Items()
			Expect(items[0].ID).To(Equal(idgen.ID(1)))
			Expect(items[0].Position).To(BeNumerically("~", 790, 1e-9))

			result := tick(100 * time.Millisecond)

			Expect(result.Exited).To(HaveLen(1))
			Expect(result.Exited[0].ID).To(Equal(idgen.ID(1)))
			Expect(result.Exited[0].Position).To(BeNumerically(">=", 800))
			Expect(belt.Items()[0].ID).To(Equal(idgen.ID(2)))
		})

		It("should keep items in creation order", func() {
			for i := 0; i < 5; i++ {
				tick(time.Second)
			}

			items := belt.Items()
			Expect(items).To(HaveLen(5))
			for i := 1; i < len(items); i++ {
				Expect(items[i].ID).To(BeNumerically(">", items[i-1].ID))
				Expect(items[i].Position).To(BeNumerically("<", items[i-1].Position))
			}
		})

		It("should keep counting after items leave", func() {
			for i := 0; i < 20; i++ {
				tick(time.Second)
			}

			Expect(belt.TotalProduced()).To(Equal(uint64(20)))
			Expect(belt.Len()).To(BeNumerically("<", 20))
		})

		It("should ignore negative deltas", func() {
			tick(time.Second)
			result := belt.Tick(-time.Second, now)

			Expect(result.Created).To(BeFalse())
			Expect(belt.Items()[0].Position).To(BeZero())
		})

		It("should forget the accumulated time when anchored", func() {
			tick(900 * time.Millisecond)
			belt.AnchorSpawnClock()

			Expect(tick(500 * time.Millisecond).Created).To(BeFalse())
			Expect(tick(500 * time.Millisecond).Created).To(BeTrue())
		})

		It("should clear everything on reset", func() {
			for i := 0; i < 3; i++ {
				tick(time.Second)
			}
			tick(500 * time.Millisecond)

			belt.Reset()

			Expect(belt.Items()).To(BeEmpty())
			Expect(belt.TotalProduced()).To(BeZero())
			Expect(tick(999 * time.Millisecond).Created).To(BeFalse())

			result := tick(time.Millisecond)
			Expect(result.Created).To(BeTrue())
			Expect(result.Spawned.ID).To(Equal(idgen.ID(1)))
		})

		It("should hand out copies of the items", func() {
			tick(time.Second)

			items := belt.Items()
			items[0].Position = 500

			Expect(belt.Items()[0].Position).To(BeZero())
		})
	})

	Context("at rate zero", func() {
		BeforeEach(func() {
			rate.EXPECT().CurrentRate().Return(0).AnyTimes()
		})

		It("should never spawn", func() {
			for i := 0; i < 3600; i++ {
				Expect(tick(time.Second).Created).To(BeFalse())
			}

			Expect(belt.TotalProduced()).To(BeZero())
		})
	})

	Context("when the rate changes", func() {
		It("should read the rate on every tick", func() {
			first := rate.EXPECT().CurrentRate().Return(30)
			rate.EXPECT().CurrentRate().Return(60).After(first)

			Expect(tick(time.Second).Created).To(BeFalse())
			Expect(tick(time.Second).Created).To(BeTrue())
		})
	})
})
