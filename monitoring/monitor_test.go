package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/framescope/frame"
	"github.com/sarchlab/framescope/observer"
	"github.com/sarchlab/framescope/timing"
	"github.com/sarchlab/framescope/tree"
)

type sampleNode struct {
	Label string
	Count int
	Inner *sampleNode
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	return rec
}

func sampleFrame(source string, ids ...uint64) frame.Frame {
	f := frame.Frame{Source: source, Entries: []*frame.NodeProfile{}}
	for _, id := range ids {
		f.Entries = append(f.Entries, &frame.NodeProfile{
			Node:     &frame.NodeMeta{Identity: idOf(id), Name: "node"},
			Samples:  frame.Samples{Composite: 1.5},
			Children: []*frame.NodeProfile{},
		})
	}

	return f
}

var _ = Describe("Monitor", func() {
	var (
		m      *Monitor
		engine *timing.SerialEngine
		router http.Handler
		node   *sampleNode
	)

	BeforeEach(func() {
		engine = timing.NewSerialEngine()
		m = NewMonitor()
		m.RegisterEngine(engine)
		router = m.Router()

		node = &sampleNode{Label: "app", Count: 3, Inner: &sampleNode{}}
		m.NodeCreated(observer.NodeEvent{
			Node:        node,
			Identity:    1,
			IsComposite: true,
			Position:    tree.Position{0},
		})
	})

	It("should fall back to a random port for reserved ports", func() {
		m.WithPortNumber(80)
		Expect(m.portNumber).To(Equal(0))

		m.WithPortNumber(8080)
		Expect(m.portNumber).To(Equal(8080))
	})

	It("should report the engine time", func() {
		rec := get(router, "/api/now")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`{"now":0}`))
	})

	It("should pause and continue the engine", func() {
		Expect(get(router, "/api/pause").Code).To(Equal(http.StatusOK))
		Expect(get(router, "/api/continue").Code).To(Equal(http.StatusOK))
	})

	It("should refuse to pause without an engine", func() {
		m = NewMonitor()

		rec := get(m.Router(), "/api/pause")

		Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
	})

	It("should accumulate measurements per node", func() {
		m.Measured(observer.Measurement{
			Identity: 1, Position: tree.Position{0},
			Kind: frame.KindComposite, DurationMs: 2,
		})
		m.Measured(observer.Measurement{
			Identity: 1, Position: tree.Position{1},
			Kind: frame.KindOnInit, DurationMs: 0.5,
		})
		m.Measured(observer.Measurement{Identity: 42, DurationMs: 9})

		var nodes []NodeStatus
		rec := get(router, "/api/nodes")
		Expect(json.Unmarshal(rec.Body.Bytes(), &nodes)).To(Succeed())

		Expect(nodes).To(HaveLen(1))
		Expect(nodes[0].Position).To(Equal("1"))
		Expect(nodes[0].CompositeMs).To(BeNumerically("~", 2))
		Expect(nodes[0].LifecycleMs).To(BeNumerically("~", 0.5))
		Expect(nodes[0].NumSamples).To(Equal(2))
		Expect(nodes[0].Alive).To(BeTrue())
	})

	It("should keep destroyed nodes with their last position", func() {
		m.NodeDestroyed(observer.NodeEvent{
			Identity: 1, Position: tree.Position{2, 0},
		})

		var nodes []NodeStatus
		rec := get(router, "/api/nodes")
		Expect(json.Unmarshal(rec.Body.Bytes(), &nodes)).To(Succeed())

		Expect(nodes[0].Alive).To(BeFalse())
		Expect(nodes[0].Position).To(Equal("2.0"))
		Expect(get(router, "/api/node/1").Code).To(Equal(http.StatusNotFound))
	})

	It("should serialize a live node", func() {
		rec := get(router, "/api/node/1")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("app"))
	})

	It("should report unknown nodes", func() {
		Expect(get(router, "/api/node/7").Code).To(Equal(http.StatusNotFound))
	})

	It("should serialize a field of a live node", func() {
		req := url.PathEscape(`{"node_id":"1","field_name":"Count"}`)

		rec := get(router, "/api/field/"+req)

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.Len()).NotTo(BeZero())
	})

	It("should list the recent frames, most recent first", func() {
		m.WithFrameCapacity(2)
		m.FrameFlushed(sampleFrame("a", 1))
		m.FrameFlushed(sampleFrame("b", 1, 2))
		m.FrameFlushed(sampleFrame("c"))

		var rsp framesRsp
		rec := get(router, "/api/frames")
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())

		Expect(rsp.Total).To(Equal(3))
		Expect(rsp.Frames).To(HaveLen(2))
		Expect(rsp.Frames[0].Source).To(Equal("c"))
		Expect(rsp.Frames[1].Source).To(Equal("b"))
		Expect(rsp.Frames[1].NumProfiles).To(Equal(2))
		Expect(rsp.Frames[1].TotalMs).To(BeNumerically("~", 3))

		rec = get(router, "/api/frames?limit=1&offset=1")
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.Frames).To(HaveLen(1))
		Expect(rsp.Frames[0].Seq).To(Equal(1))
	})

	It("should name nodes from the frames", func() {
		m.FrameFlushed(sampleFrame("tick", 1))

		var nodes []NodeStatus
		rec := get(router, "/api/nodes")
		Expect(json.Unmarshal(rec.Body.Bytes(), &nodes)).To(Succeed())

		Expect(nodes[0].Name).To(Equal("node"))
	})

	It("should reject bad paging parameters", func() {
		Expect(get(router, "/api/frames?limit=x").Code).
			To(Equal(http.StatusBadRequest))
		Expect(get(router, "/api/frames?offset=-1").Code).
			To(Equal(http.StatusBadRequest))
	})

	It("should return a full frame", func() {
		m.FrameFlushed(sampleFrame("tick", 1))

		rec := get(router, "/api/frame/0")
		Expect(rec.Code).To(Equal(http.StatusOK))

		var f frame.Frame
		Expect(json.Unmarshal(rec.Body.Bytes(), &f)).To(Succeed())
		Expect(f.Source).To(Equal("tick"))

		Expect(get(router, "/api/frame/5").Code).To(Equal(http.StatusNotFound))
	})

	It("should list progress bars", func() {
		bar := m.CreateProgressBar("ticks", 10)
		bar.IncrementInProgress(3)
		bar.MoveInProgressToFinished(2)

		rec := get(router, "/api/progress")
		Expect(rec.Body.String()).To(ContainSubstring(`"finished":2`))
		Expect(rec.Body.String()).To(ContainSubstring(`"in_progress":1`))

		m.CompleteProgressBar(bar)
		Expect(get(router, "/api/progress").Body.String()).To(Equal("[]"))
	})

	It("should report resources", func() {
		rec := get(router, "/api/resource")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("memory_size"))
	})

	It("should export prometheus metrics", func() {
		m.Metrics().NodeCreated(observer.NodeEvent{Identity: 1})
		m.Metrics().FrameFlushed(sampleFrame("tick", 1))

		body := get(router, "/metrics").Body.String()

		Expect(body).To(ContainSubstring("framescope_tracked_nodes 1"))
		Expect(body).To(ContainSubstring(
			`framescope_frames_flushed_total{source="tick"} 1`))
	})

	It("should serve the web page", func() {
		rec := get(router, "/")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(strings.HasPrefix(rec.Body.String(), "<!DOCTYPE html>")).
			To(BeTrue())
	})

	It("should serve on a random port", func() {
		Expect(m.StartServer()).To(Succeed())
		DeferCleanup(func() {
			Expect(m.StopServer(context.Background())).To(Succeed())
		})

		Expect(m.Port()).NotTo(BeZero())

		rsp, err := http.Get(m.URL() + "/api/now")
		Expect(err).NotTo(HaveOccurred())
		defer rsp.Body.Close()
		Expect(rsp.StatusCode).To(Equal(http.StatusOK))
	})
})
