package tracing

import (
	"sort"
	"sync"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/sarchlab/framescope/frame"
	"github.com/sarchlab/framescope/observer"
)

// Histogram bounds, in microseconds.
const (
	minLatencyUs = 1
	maxLatencyUs = 60 * 1000 * 1000
	sigFigs      = 3
)

// KindSummary describes the latency distribution of one kind, in ms.
type KindSummary struct {
	Kind  frame.Kind
	Count int64
	Mean  float64
	P50   float64
	P90   float64
	P99   float64
	Max   float64
}

// LatencyTracer keeps a latency histogram per kind.
type LatencyTracer struct {
	filter MeasurementFilter

	lock       sync.Mutex
	histograms map[frame.Kind]*hdrhistogram.Histogram
}

// NewLatencyTracer creates a LatencyTracer. A nil filter accepts every
// measurement.
func NewLatencyTracer(filter MeasurementFilter) *LatencyTracer {
	if filter == nil {
		filter = AllMeasurements
	}

	return &LatencyTracer{
		filter:     filter,
		histograms: make(map[frame.Kind]*hdrhistogram.Histogram),
	}
}

// NodeCreated does nothing.
func (t *LatencyTracer) NodeCreated(observer.NodeEvent) {}

// NodeDestroyed does nothing.
func (t *LatencyTracer) NodeDestroyed(observer.NodeEvent) {}

// Measured records the duration of m. Durations out of the histogram range
// are clamped.
func (t *LatencyTracer) Measured(m observer.Measurement) {
	if !t.filter(m) {
		return
	}

	us := int64(m.DurationMs * 1000)
	if us < minLatencyUs {
		us = minLatencyUs
	}

	if us > maxLatencyUs {
		us = maxLatencyUs
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	h, found := t.histograms[m.Kind]
	if !found {
		h = hdrhistogram.New(minLatencyUs, maxLatencyUs, sigFigs)
		t.histograms[m.Kind] = h
	}

	_ = h.RecordValue(us)
}

// Percentile returns the q-th percentile of kind in ms.
func (t *LatencyTracer) Percentile(kind frame.Kind, q float64) float64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	h, found := t.histograms[kind]
	if !found {
		return 0
	}

	return usToMs(h.ValueAtQuantile(q))
}

// Count returns the number of measurements of kind.
func (t *LatencyTracer) Count(kind frame.Kind) int64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	h, found := t.histograms[kind]
	if !found {
		return 0
	}

	return h.TotalCount()
}

// Summary returns one summary per measured kind, sorted by kind.
func (t *LatencyTracer) Summary() []KindSummary {
	t.lock.Lock()
	defer t.lock.Unlock()

	summaries := make([]KindSummary, 0, len(t.histograms))
	for kind, h := range t.histograms {
		summaries = append(summaries, KindSummary{
			Kind:  kind,
			Count: h.TotalCount(),
			Mean:  h.Mean() / 1000,
			P50:   usToMs(h.ValueAtQuantile(50)),
			P90:   usToMs(h.ValueAtQuantile(90)),
			P99:   usToMs(h.ValueAtQuantile(99)),
			Max:   usToMs(h.Max()),
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Kind < summaries[j].Kind
	})

	return summaries
}

// Reset forgets every recorded value.
func (t *LatencyTracer) Reset() {
	t.lock.Lock()
	t.histograms = make(map[frame.Kind]*hdrhistogram.Histogram)
	t.lock.Unlock()
}

func usToMs(us int64) float64 {
	return float64(us) / 1000
}
