// Package monitoring turns a profiling session into a web server that shows
// the tracked nodes and the recent frames, and that can pause the engine.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	// Enable profiling
	_ "net/http/pprof"

	"github.com/cockroachdb/errors"
	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/framescope/frame"
	"github.com/sarchlab/framescope/idgen"
	"github.com/sarchlab/framescope/monitoring/web"
	"github.com/sarchlab/framescope/observer"
	"github.com/sarchlab/framescope/timing"
	"github.com/sarchlab/framescope/tree"
)

// DefaultFrameCapacity is the number of recent frames a Monitor keeps.
const DefaultFrameCapacity = 256

// NodeStatus is what the monitor knows about a node.
type NodeStatus struct {
	ID          idgen.ID  `json:"id"`
	Name        string    `json:"name"`
	IsComposite bool      `json:"is_composite"`
	Position    string    `json:"position"`
	Alive       bool      `json:"alive"`
	CreatedAt   time.Time `json:"created_at"`
	CompositeMs float64   `json:"composite_ms"`
	LifecycleMs float64   `json:"lifecycle_ms"`
	NumSamples  int       `json:"num_samples"`

	node tree.Node
}

// FrameSummary describes one of the recent frames.
type FrameSummary struct {
	Seq         int     `json:"seq"`
	Source      string  `json:"source"`
	NumProfiles int     `json:"num_profiles"`
	TotalMs     float64 `json:"total_ms"`
}

type recentFrame struct {
	summary FrameSummary
	frame   frame.Frame
}

// Monitor can turn a profiling session into a server and allows external
// monitoring and controlling of the engine that drives it.
type Monitor struct {
	engine        timing.Engine
	portNumber    int
	frameCapacity int
	log           zerolog.Logger
	metrics       *Metrics

	lock     sync.Mutex
	nodes    map[idgen.ID]*NodeStatus
	frames   []recentFrame
	frameSeq int

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	server   *http.Server
	listener net.Listener
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		frameCapacity: DefaultFrameCapacity,
		log:           zerolog.Nop(),
		metrics:       NewMetrics(),
		nodes:         make(map[idgen.ID]*NodeStatus),
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		m.log.Warn().
			Int("port", portNumber).
			Msg("port number not allowed for the monitoring server, " +
				"using a random port instead")

		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithLogger sets the logger of the monitor.
func (m *Monitor) WithLogger(logger zerolog.Logger) *Monitor {
	m.log = logger
	return m
}

// WithFrameCapacity sets the number of recent frames kept.
func (m *Monitor) WithFrameCapacity(n int) *Monitor {
	if n <= 0 {
		panic("frame capacity must be positive")
	}

	m.frameCapacity = n

	return m
}

// RegisterEngine registers the engine that drives the observed host.
func (m *Monitor) RegisterEngine(e timing.Engine) {
	m.engine = e
}

// Metrics returns the prometheus metrics served under /metrics.
func (m *Monitor) Metrics() *Metrics {
	return m.metrics
}

// NodeCreated starts tracking the status of a node.
func (m *Monitor) NodeCreated(e observer.NodeEvent) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.nodes[e.Identity] = &NodeStatus{
		ID:          e.Identity,
		IsComposite: e.IsComposite,
		Position:    e.Position.String(),
		Alive:       true,
		CreatedAt:   time.Now(),
		node:        e.Node,
	}
}

// NodeDestroyed marks a node as gone. Its status stays visible.
func (m *Monitor) NodeDestroyed(e observer.NodeEvent) {
	m.lock.Lock()
	defer m.lock.Unlock()

	status, found := m.nodes[e.Identity]
	if !found {
		return
	}

	status.Alive = false
	status.Position = e.Position.String()
	status.node = nil
}

// Measured accumulates a measurement into the status of its node.
func (m *Monitor) Measured(s observer.Measurement) {
	m.lock.Lock()
	defer m.lock.Unlock()

	status, found := m.nodes[s.Identity]
	if !found {
		return
	}

	status.Position = s.Position.String()
	status.NumSamples++

	if s.Kind == frame.KindComposite {
		status.CompositeMs += s.DurationMs
	} else {
		status.LifecycleMs += s.DurationMs
	}
}

// FrameFlushed keeps f among the recent frames and refreshes the names of
// the nodes it mentions.
func (m *Monitor) FrameFlushed(f frame.Frame) {
	m.lock.Lock()
	defer m.lock.Unlock()

	summary := FrameSummary{
		Seq:    m.frameSeq,
		Source: f.Source,
	}
	m.frameSeq++

	f.Walk(func(_ []int, p *frame.NodeProfile) {
		if p.IsPlaceholder() {
			return
		}

		summary.NumProfiles++
		summary.TotalMs += p.Samples.Total()

		if status, found := m.nodes[p.Node.Identity]; found {
			status.Name = p.Node.Name
		}
	})

	m.frames = append(m.frames, recentFrame{summary: summary, frame: f})
	if len(m.frames) > m.frameCapacity {
		m.frames = m.frames[len(m.frames)-m.frameCapacity:]
	}
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := newProgressBar(name, total)

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Router returns the handler of all the monitoring endpoints.
func (m *Monitor) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pauseEngine)
	r.HandleFunc("/api/continue", m.continueEngine)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/nodes", m.listNodes)
	r.HandleFunc("/api/node/{id:[0-9]+}", m.nodeDetails)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/api/frames", m.listFrames)
	r.HandleFunc("/api/frame/{seq:[0-9]+}", m.frameDetails)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.Handle("/metrics", m.metrics.Handler())
	r.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts the monitor as a web server in the background.
func (m *Monitor) StartServer() error {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	if err != nil {
		return errors.Wrap(err, "starting monitoring server")
	}

	m.listener = listener
	m.server = &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	m.log.Info().
		Str("url", m.URL()).
		Msg("monitoring server started")

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.log.Error().Err(err).Msg("monitoring server stopped")
		}
	}()

	return nil
}

// Port returns the port the server listens on, or 0 if it is not started.
func (m *Monitor) Port() int {
	if m.listener == nil {
		return 0
	}

	return m.listener.Addr().(*net.TCPAddr).Port
}

// URL returns the address of the monitoring page.
func (m *Monitor) URL() string {
	return "http://localhost:" + strconv.Itoa(m.Port())
}

// StopServer shuts the server down.
func (m *Monitor) StopServer(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	err := m.server.Shutdown(ctx)
	m.server = nil
	m.listener = nil

	return err
}

func (m *Monitor) pauseEngine(w http.ResponseWriter, _ *http.Request) {
	if !m.engineOr503(w) {
		return
	}

	m.engine.Pause()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) continueEngine(w http.ResponseWriter, _ *http.Request) {
	if !m.engineOr503(w) {
		return
	}

	m.engine.Continue()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	now := 0.0
	if m.engine != nil {
		now = m.engine.Now()
	}

	m.writeJSON(w, struct {
		Now float64 `json:"now"`
	}{now})
}

func (m *Monitor) engineOr503(w http.ResponseWriter) bool {
	if m.engine != nil {
		return true
	}

	http.Error(w, "no engine registered", http.StatusServiceUnavailable)

	return false
}

func (m *Monitor) listNodes(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	nodes := make([]NodeStatus, 0, len(m.nodes))
	for _, status := range m.nodes {
		nodes = append(nodes, *status)
	}
	m.lock.Unlock()

	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].ID < nodes[j].ID
	})

	m.writeJSON(w, nodes)
}

func (m *Monitor) findNodeOr404(w http.ResponseWriter, idStr string) tree.Node {
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		http.Error(w, "invalid node id", http.StatusBadRequest)
		return nil
	}

	m.lock.Lock()
	status, found := m.nodes[idgen.ID(id)]
	var node tree.Node
	if found {
		node = status.node
	}
	m.lock.Unlock()

	if node == nil {
		http.Error(w, "Node not found", http.StatusNotFound)
	}

	return node
}

func (m *Monitor) nodeDetails(w http.ResponseWriter, r *http.Request) {
	node := m.findNodeOr404(w, mux.Vars(r)["id"])
	if node == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(node)
	serializer.SetMaxDepth(1)

	if err := serializer.Serialize(w); err != nil {
		m.log.Error().Err(err).Msg("serializing node")
	}
}

type fieldReq struct {
	NodeID    string `json:"node_id,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	req := fieldReq{}

	err := json.Unmarshal([]byte(mux.Vars(r)["json"]), &req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	node := m.findNodeOr404(w, req.NodeID)
	if node == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(node)
	serializer.SetMaxDepth(1)

	err = serializer.SetEntryPoint(strings.Split(req.FieldName, "."))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := serializer.Serialize(w); err != nil {
		m.log.Error().Err(err).Msg("serializing field")
	}
}

type framesRsp struct {
	Total  int            `json:"total"`
	Frames []FrameSummary `json:"frames"`
}

// listFrames returns the most recent frames first.
func (m *Monitor) listFrames(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m.lock.Lock()
	rsp := framesRsp{
		Total:  m.frameSeq,
		Frames: make([]FrameSummary, 0),
	}
	for i := len(m.frames) - 1 - offset; i >= 0; i-- {
		if limit > 0 && len(rsp.Frames) >= limit {
			break
		}

		rsp.Frames = append(rsp.Frames, m.frames[i].summary)
	}
	m.lock.Unlock()

	m.writeJSON(w, rsp)
}

func (m *Monitor) frameDetails(w http.ResponseWriter, r *http.Request) {
	seq, err := strconv.Atoi(mux.Vars(r)["seq"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m.lock.Lock()
	var (
		f     frame.Frame
		found bool
	)
	for _, rf := range m.frames {
		if rf.summary.Seq == seq {
			f, found = rf.frame, true
			break
		}
	}
	m.lock.Unlock()

	if !found {
		http.Error(w, "Frame not found", http.StatusNotFound)
		return
	}

	m.writeJSON(w, f)
}

func pageParams(r *http.Request) (limit, offset int, err error) {
	limit, err = intParam(r, "limit")
	if err != nil {
		return 0, 0, err
	}

	offset, err = intParam(r, "offset")
	if err != nil {
		return 0, 0, err
	}

	if limit < 0 || offset < 0 {
		return 0, 0, errors.New("limit and offset must not be negative")
	}

	return limit, offset, nil
}

func intParam(r *http.Request, name string) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, nil
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Wrapf(err, "parameter %s", name)
	}

	return v, nil
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]progressSnapshot, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.snapshot())
	}
	m.progressBarsLock.Unlock()

	m.writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		m.internalError(w, err)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		m.internalError(w, err)
		return
	}

	memoryInfo, err := proc.MemoryInfo()
	if err != nil {
		m.internalError(w, err)
		return
	}

	m.writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memoryInfo.RSS,
	})
}

// collectProfile samples the CPU for one second, or for the number of
// milliseconds given by the ms parameter.
func (m *Monitor) collectProfile(w http.ResponseWriter, r *http.Request) {
	duration := time.Second

	ms, err := intParam(r, "ms")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if ms > 0 {
		duration = time.Duration(ms) * time.Millisecond
	}

	buf := bytes.NewBuffer(nil)

	if err := pprof.StartCPUProfile(buf); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(duration)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		m.internalError(w, err)
		return
	}

	m.writeJSON(w, prof)
}

func (m *Monitor) writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		m.internalError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if _, err := w.Write(data); err != nil {
		m.log.Debug().Err(err).Msg("writing response")
	}
}

func (m *Monitor) internalError(w http.ResponseWriter, err error) {
	m.log.Error().Err(err).Msg("monitoring request failed")
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
