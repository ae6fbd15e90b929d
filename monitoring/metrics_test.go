package monitoring

import (
	dto "github.com/prometheus/client_model/go"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/framescope/frame"
	"github.com/sarchlab/framescope/idgen"
	"github.com/sarchlab/framescope/observer"
)

func idOf(id uint64) idgen.ID {
	return idgen.ID(id)
}

func gather(m *Metrics, name string) []*dto.Metric {
	families, err := m.Registry().Gather()
	Expect(err).NotTo(HaveOccurred())

	for _, f := range families {
		if f.GetName() == name {
			return f.GetMetric()
		}
	}

	return nil
}

func labelValue(metric *dto.Metric, name string) string {
	for _, l := range metric.GetLabel() {
		if l.GetName() == name {
			return l.GetValue()
		}
	}

	return ""
}

var _ = Describe("Metrics", func() {
	var m *Metrics

	BeforeEach(func() {
		m = NewMetrics()
	})

	It("should track created and destroyed nodes", func() {
		m.NodeCreated(observer.NodeEvent{Identity: 1, IsComposite: true})
		m.NodeCreated(observer.NodeEvent{Identity: 2})
		m.NodeDestroyed(observer.NodeEvent{Identity: 2})

		tracked := gather(m, "framescope_tracked_nodes")
		Expect(tracked).To(HaveLen(1))
		Expect(tracked[0].GetGauge().GetValue()).To(Equal(1.0))

		created := gather(m, "framescope_nodes_created_total")
		Expect(created).To(HaveLen(2))

		destroyed := gather(m, "framescope_nodes_destroyed_total")
		Expect(destroyed).To(HaveLen(1))
		Expect(labelValue(destroyed[0], "composite")).To(Equal("false"))
	})

	It("should observe measurements by kind", func() {
		m.Measured(observer.Measurement{Kind: frame.KindComposite, DurationMs: 5})
		m.Measured(observer.Measurement{Kind: frame.KindDoCheck, DurationMs: 1})
		m.Measured(observer.Measurement{Kind: frame.KindDoCheck, DurationMs: 1})

		series := gather(m, "framescope_measurement_duration_seconds")
		Expect(series).To(HaveLen(2))

		counts := map[string]uint64{}
		for _, s := range series {
			counts[labelValue(s, "kind")] = s.GetHistogram().GetSampleCount()
		}

		Expect(counts).To(Equal(map[string]uint64{
			"composite": 1,
			"DoCheck":   2,
		}))
	})

	It("should count frames by source", func() {
		m.FrameFlushed(frame.Frame{Source: "tick"})
		m.FrameFlushed(frame.Frame{Source: "tick"})
		m.FrameFlushed(frame.Frame{Source: "click"})

		counts := map[string]float64{}
		for _, s := range gather(m, "framescope_frames_flushed_total") {
			counts[labelValue(s, "source")] = s.GetCounter().GetValue()
		}

		Expect(counts).To(Equal(map[string]float64{"tick": 2, "click": 1}))

		profiles := gather(m, "framescope_frame_profiles")
		Expect(profiles[0].GetHistogram().GetSampleCount()).To(Equal(uint64(3)))
	})
})
