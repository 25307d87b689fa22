package simulation

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/beltsim/conveyor"
)

type namedThing string

func (n namedThing) Name() string { return string(n) }

func fastBelt() conveyor.Builder {
	return conveyor.MakeBuilder().
		WithDefaultRate(6000).
		WithResamplePeriod(time.Hour).
		WithSeed(1)
}

var _ = Describe("Simulation", func() {
	var simulation *Simulation

	AfterEach(func() {
		if simulation != nil {
			simulation.Terminate()
			simulation = nil
		}
	})

	It("should register the belt as a component", func() {
		var err error
		simulation, err = MakeBuilder().
			WithoutMonitoring().
			WithoutTelemetry().
			Build()
		Expect(err).NotTo(HaveOccurred())

		Expect(simulation.GetComponentByName("Belt")).
			To(BeIdenticalTo(simulation.Simulator()))
		Expect(simulation.GetComponentByName("Nothing")).To(BeNil())
		Expect(simulation.GetDataRecorder()).To(BeNil())
		Expect(simulation.GetMonitor()).To(BeNil())
		Expect(simulation.Telemetry()).To(BeNil())
	})

	It("should refuse duplicated component names", func() {
		var err error
		simulation, err = MakeBuilder().
			WithoutMonitoring().
			WithoutTelemetry().
			Build()
		Expect(err).NotTo(HaveOccurred())

		simulation.RegisterComponent(namedThing("Other"))
		Expect(simulation.Components()).To(HaveLen(2))

		Expect(func() {
			simulation.RegisterComponent(namedThing("Other"))
		}).To(Panic())
	})

	It("should reject an invalid belt", func() {
		_, err := MakeBuilder().
			WithoutMonitoring().
			WithoutTelemetry().
			WithConveyor(conveyor.MakeBuilder().WithItemSpeed(0)).
			Build()

		Expect(err).To(MatchError(conveyor.ErrInvalidConfig))
	})

	It("should not allow a monitor port without monitoring", func() {
		Expect(func() {
			MakeBuilder().WithoutMonitoring().WithMonitorPort(8080).Build()
		}).To(Panic())
	})

	It("should run the belt on the wall clock", func() {
		var err error
		simulation, err = MakeBuilder().
			WithConveyor(fastBelt()).
			WithFrameInterval(time.Millisecond).
			WithoutMonitoring().
			WithoutTelemetry().
			Build()
		Expect(err).NotTo(HaveOccurred())

		Expect(simulation.Start()).To(BeTrue())
		Eventually(func() uint64 {
			return simulation.Snapshot().TotalProduced
		}, time.Second, 5*time.Millisecond).Should(BeNumerically(">=", 2))

		Expect(simulation.Stop()).To(BeTrue())
		simulation.Reset()
		Expect(simulation.Snapshot().TotalProduced).To(BeZero())
	})

	It("should record into the output file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "run")

		var err error
		simulation, err = MakeBuilder().
			WithConveyor(fastBelt()).
			WithFrameInterval(time.Millisecond).
			WithoutMonitoring().
			WithoutTelemetry().
			WithOutputFileName(path).
			Build()
		Expect(err).NotTo(HaveOccurred())
		Expect(simulation.GetTracer()).NotTo(BeNil())

		simulation.Start()
		Eventually(func() uint64 {
			return simulation.Snapshot().TotalProduced
		}, time.Second, 5*time.Millisecond).Should(BeNumerically(">=", 1))

		simulation.Terminate()
		simulation = nil

		_, err = os.Stat(path + ".sqlite3")
		Expect(err).NotTo(HaveOccurred())
	})

	It("should serve the monitor", func() {
		var err error
		simulation, err = MakeBuilder().
			WithoutTelemetry().
			Build()
		Expect(err).NotTo(HaveOccurred())
		Expect(simulation.MonitorAddr()).To(HavePrefix("http://localhost:"))

		rsp, err := http.Post(
			simulation.MonitorAddr()+"/api/start", "application/json", nil)
		Expect(err).NotTo(HaveOccurred())
		rsp.Body.Close()

		Expect(rsp.StatusCode).To(Equal(http.StatusOK))
		Expect(simulation.Simulator().Running()).To(BeTrue())
	})

	It("should push counters to the collector", func() {
		received := make(chan []byte, 64)
		upgrader := websocket.Upgrader{}
		collector := httptest.NewServer(http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				conn, err := upgrader.Upgrade(w, r, nil)
				if err != nil {
					return
				}
				defer conn.Close()

				for {
					_, msg, err := conn.ReadMessage()
					if err != nil {
						return
					}
					received <- msg
				}
			}))
		defer collector.Close()

		var err error
		simulation, err = MakeBuilder().
			WithConveyor(fastBelt()).
			WithFrameInterval(time.Millisecond).
			WithoutMonitoring().
			WithTelemetryURL("ws" + strings.TrimPrefix(collector.URL, "http")).
			WithTelemetryRetryDelay(10 * time.Millisecond).
			Build()
		Expect(err).NotTo(HaveOccurred())

		Eventually(simulation.Telemetry().Connected, time.Second).
			Should(BeTrue())
		simulation.Start()

		var counters conveyor.Counters
		Eventually(func() uint64 {
			select {
			case msg := <-received:
				Expect(json.Unmarshal(msg, &counters)).To(Succeed())
			default:
			}

			return counters.TotalProduced
		}, 2*time.Second, 5*time.Millisecond).Should(BeNumerically(">=", 1))
	})
})
