package tracing

import (
	"sync"

	"github.com/sarchlab/framescope/frame"
	"github.com/sarchlab/framescope/observer"
)

// TotalTimeTracer adds up the measured time per kind.
type TotalTimeTracer struct {
	filter MeasurementFilter

	lock      sync.Mutex
	totalTime map[frame.Kind]float64
	count     map[frame.Kind]uint64
}

// NewTotalTimeTracer creates a new TotalTimeTracer. A nil filter accepts
// every measurement.
func NewTotalTimeTracer(filter MeasurementFilter) *TotalTimeTracer {
	if filter == nil {
		filter = AllMeasurements
	}

	return &TotalTimeTracer{
		filter:    filter,
		totalTime: make(map[frame.Kind]float64),
		count:     make(map[frame.Kind]uint64),
	}
}

// NodeCreated does nothing.
func (t *TotalTimeTracer) NodeCreated(observer.NodeEvent) {}

// NodeDestroyed does nothing.
func (t *TotalTimeTracer) NodeDestroyed(observer.NodeEvent) {}

// Measured accumulates the duration of m.
func (t *TotalTimeTracer) Measured(m observer.Measurement) {
	if !t.filter(m) {
		return
	}

	t.lock.Lock()
	t.totalTime[m.Kind] += m.DurationMs
	t.count[m.Kind]++
	t.lock.Unlock()
}

// TotalTime returns the total milliseconds measured for kind.
func (t *TotalTimeTracer) TotalTime(kind frame.Kind) float64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.totalTime[kind]
}

// Total returns the total milliseconds measured over all kinds.
func (t *TotalTimeTracer) Total() float64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	total := 0.0
	for _, d := range t.totalTime {
		total += d
	}

	return total
}

// Count returns the number of measurements of kind.
func (t *TotalTimeTracer) Count(kind frame.Kind) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.count[kind]
}

// AverageTime returns the mean duration of kind, 0 without measurements.
func (t *TotalTimeTracer) AverageTime(kind frame.Kind) float64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.count[kind] == 0 {
		return 0
	}

	return t.totalTime[kind] / float64(t.count[kind])
}
