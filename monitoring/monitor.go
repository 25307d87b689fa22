// Package monitoring turns a running belt into a web server that shows its
// state and accepts start, stop and reset commands.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/beltsim/conveyor"
	"github.com/sarchlab/beltsim/monitoring/web"
	"github.com/sarchlab/beltsim/sim"
)

// A Controller runs and stops a belt.
type Controller interface {
	Start(ctx context.Context) bool
	Stop() bool
	Reset()
	Snapshot() conveyor.Snapshot
}

// Monitor can turn a simulation into a server and allows external monitoring
// controlling of the simulation.
type Monitor struct {
	controller Controller
	config     conveyor.Config
	components []sim.Named
	portNumber int
	logger     *slog.Logger
	hub        *snapshotHub

	// runCtx is handed to the controller when the belt is started over HTTP.
	runCtx context.Context

	serverLock sync.Mutex
	server     *http.Server
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	m := &Monitor{
		logger: slog.Default(),
		runCtx: context.Background(),
	}
	m.hub = newSnapshotHub(m.logger)

	return m
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithLogger sets the logger of the monitor.
func (m *Monitor) WithLogger(l *slog.Logger) *Monitor {
	m.logger = l
	m.hub.logger = l

	return m
}

// WithRunContext sets the context that belts started over HTTP run under.
func (m *Monitor) WithRunContext(ctx context.Context) *Monitor {
	m.runCtx = ctx
	return m
}

// RegisterController sets what the start, stop and reset endpoints act on.
func (m *Monitor) RegisterController(c Controller) {
	m.controller = c
}

// RegisterSimulator makes the simulator visible as a component and streams
// its snapshots to the dashboard.
func (m *Monitor) RegisterSimulator(s *conveyor.Simulator) {
	m.config = s.Config()
	m.RegisterComponent(s)
	s.AcceptHook(m)
}

// RegisterComponent register a component to be monitored.
func (m *Monitor) RegisterComponent(c sim.Named) {
	m.components = append(m.components, c)
}

// Func streams the snapshot after each tick and after each state change.
func (m *Monitor) Func(ctx sim.HookCtx) {
	var snapshot conveyor.Snapshot

	switch ctx.Pos {
	case conveyor.HookPosAfterTick:
		s, ok := ctx.Item.(conveyor.Snapshot)
		if !ok {
			return
		}

		snapshot = s
	case conveyor.HookPosStateChanged, conveyor.HookPosRateChanged:
		s, ok := ctx.Domain.(*conveyor.Simulator)
		if !ok {
			return
		}

		snapshot = s.Snapshot()
	default:
		return
	}

	if m.hub.NumClients() == 0 {
		return
	}

	msg, err := json.Marshal(snapshot)
	dieOnErr(err)

	m.hub.Broadcast(msg)
}

// Handler returns the HTTP handler serving the API and the dashboard.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/start", m.start).Methods(http.MethodPost)
	r.HandleFunc("/api/stop", m.stop).Methods(http.MethodPost)
	r.HandleFunc("/api/reset", m.reset).Methods(http.MethodPost)
	r.HandleFunc("/api/{command:start|stop|reset}", commandMethodNotAllowed)
	r.HandleFunc("/api/snapshot", m.snapshot).Methods(http.MethodGet)
	r.HandleFunc("/api/config", m.listConfig).Methods(http.MethodGet)
	r.HandleFunc("/api/components", m.listComponents)
	r.HandleFunc("/api/component/{name}", m.listComponentDetails)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.HandleFunc("/ws/snapshots", m.streamSnapshots)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

func commandMethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Allow", http.MethodPost)
	http.Error(w, "commands must be sent as POST", http.StatusMethodNotAllowed)
}

// StartServer starts the monitor as a web server and returns the address it
// listens on.
func (m *Monitor) StartServer() (string, error) {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	if err != nil {
		return "", fmt.Errorf("monitoring: listen on %s: %w", actualPort, err)
	}

	port := listener.Addr().(*net.TCPAddr).Port
	addr := fmt.Sprintf("http://localhost:%d", port)

	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", addr)

	server := &http.Server{
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	m.serverLock.Lock()
	m.server = server
	m.serverLock.Unlock()

	go func() {
		err := server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("monitoring server stopped", "error", err)
		}
	}()

	return addr, nil
}

// Shutdown disconnects the dashboards and stops the server.
func (m *Monitor) Shutdown(ctx context.Context) error {
	m.hub.CloseAll()

	m.serverLock.Lock()
	server := m.server
	m.server = nil
	m.serverLock.Unlock()

	if server == nil {
		return nil
	}

	return server.Shutdown(ctx)
}

type commandRsp struct {
	Changed  bool              `json:"changed"`
	Snapshot conveyor.Snapshot `json:"snapshot"`
}

func (m *Monitor) controllerOr503(w http.ResponseWriter) Controller {
	if m.controller == nil {
		http.Error(w, "no belt registered", http.StatusServiceUnavailable)
	}

	return m.controller
}

func (m *Monitor) start(w http.ResponseWriter, _ *http.Request) {
	c := m.controllerOr503(w)
	if c == nil {
		return
	}

	changed := c.Start(m.runCtx)
	m.writeJSON(w, commandRsp{Changed: changed, Snapshot: c.Snapshot()})
}

func (m *Monitor) stop(w http.ResponseWriter, _ *http.Request) {
	c := m.controllerOr503(w)
	if c == nil {
		return
	}

	changed := c.Stop()
	m.writeJSON(w, commandRsp{Changed: changed, Snapshot: c.Snapshot()})
}

func (m *Monitor) reset(w http.ResponseWriter, _ *http.Request) {
	c := m.controllerOr503(w)
	if c == nil {
		return
	}

	c.Reset()
	m.writeJSON(w, commandRsp{Changed: true, Snapshot: c.Snapshot()})
}

func (m *Monitor) snapshot(w http.ResponseWriter, _ *http.Request) {
	c := m.controllerOr503(w)
	if c == nil {
		return
	}

	m.writeJSON(w, c.Snapshot())
}

func (m *Monitor) listConfig(w http.ResponseWriter, _ *http.Request) {
	m.writeJSON(w, m.config)
}

func (m *Monitor) streamSnapshots(w http.ResponseWriter, r *http.Request) {
	var greeting []byte

	if m.controller != nil {
		msg, err := json.Marshal(m.controller.Snapshot())
		dieOnErr(err)

		greeting = msg
	}

	m.hub.serve(w, r, greeting)
}

func (m *Monitor) listComponents(w http.ResponseWriter, _ *http.Request) {
	names := make([]string, 0, len(m.components))
	for _, c := range m.components {
		names = append(names, c.Name())
	}

	m.writeJSON(w, names)
}

func (m *Monitor) listComponentDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	component := m.findComponentOr404(w, name)
	if component == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

type fieldReq struct {
	CompName  string `json:"comp_name,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	jsonString := mux.Vars(r)["json"]
	req := fieldReq{}

	err := json.Unmarshal([]byte(jsonString), &req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	component := m.findComponentOr404(w, req.CompName)
	if component == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)

	err = serializer.SetEntryPoint(strings.Split(req.FieldName, "."))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = serializer.Serialize(w)
	dieOnErr(err)
}

func (m *Monitor) findComponentOr404(
	w http.ResponseWriter,
	name string,
) sim.Named {
	var component sim.Named
	for _, c := range m.components {
		if c.Name() == name {
			component = c
		}
	}

	if component == nil {
		w.WriteHeader(http.StatusNotFound)
		_, err := w.Write([]byte("Component not found"))
		dieOnErr(err)
	}

	return component
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	m.writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	m.writeJSON(w, prof)
}

func (m *Monitor) writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
