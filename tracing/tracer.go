// Package tracing collects node events, measurements and frames through the
// hooks of observers and sessions.
package tracing

import (
	"github.com/sarchlab/framescope/frame"
	"github.com/sarchlab/framescope/observer"
)

// A Tracer collects node events and measurements.
type Tracer interface {
	NodeCreated(e observer.NodeEvent)
	NodeDestroyed(e observer.NodeEvent)
	Measured(m observer.Measurement)
}

// A FrameTracer collects flushed frames.
type FrameTracer interface {
	FrameFlushed(f frame.Frame)
}

// MeasurementFilter decides which measurements a tracer accounts for.
type MeasurementFilter func(m observer.Measurement) bool

// AllMeasurements accepts every measurement.
func AllMeasurements(observer.Measurement) bool {
	return true
}

// OnlyKinds accepts the measurements of the given kinds.
func OnlyKinds(kinds ...frame.Kind) MeasurementFilter {
	set := make(map[frame.Kind]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}

	return func(m observer.Measurement) bool {
		return set[m.Kind]
	}
}
