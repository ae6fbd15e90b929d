// Package harness assembles a profiling session with its recording,
// tracers and monitoring server.
package harness

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/sarchlab/framescope/datarecording"
	"github.com/sarchlab/framescope/frame"
	"github.com/sarchlab/framescope/monitoring"
	"github.com/sarchlab/framescope/profiler"
	"github.com/sarchlab/framescope/timing"
	"github.com/sarchlab/framescope/tracing"
	"github.com/sarchlab/framescope/tree"
)

// A Harness owns everything needed to profile one host.
type Harness struct {
	id         string
	host       tree.Host
	engine     timing.Engine
	log        zerolog.Logger
	outputFile string
	jsonFile   string
	terminated bool

	session    *profiler.Session
	recorder   *datarecording.FrameRecorder
	jsonTracer *tracing.JSONFrameTracer
	monitor    *monitoring.Monitor
	latency    *tracing.LatencyTracer
	totals     *tracing.TotalTimeTracer
	counts     *tracing.KindCountTracer
}

// ID returns the unique id of the harness.
func (h *Harness) ID() string {
	return h.id
}

// Host returns the profiled host.
func (h *Harness) Host() tree.Host {
	return h.host
}

// Engine returns the engine registered with the harness, if any.
func (h *Harness) Engine() timing.Engine {
	return h.engine
}

// Session returns the profiling session.
func (h *Harness) Session() *profiler.Session {
	return h.session
}

// Recorder returns the frame recorder.
func (h *Harness) Recorder() *datarecording.FrameRecorder {
	return h.recorder
}

// Monitor returns the monitor, nil when monitoring is disabled.
func (h *Harness) Monitor() *monitoring.Monitor {
	return h.monitor
}

// Latency returns the latency tracer attached to the session.
func (h *Harness) Latency() *tracing.LatencyTracer {
	return h.latency
}

// TotalTime returns the total time tracer attached to the session.
func (h *Harness) TotalTime() *tracing.TotalTimeTracer {
	return h.totals
}

// KindCounts returns the tracer counting measurements per kind.
func (h *Harness) KindCounts() *tracing.KindCountTracer {
	return h.counts
}

// OutputFile returns the sqlite file frames are recorded to. It is empty
// for other backends.
func (h *Harness) OutputFile() string {
	return h.outputFile
}

// JSONFile returns the file frames are traced to as JSON, if any.
func (h *Harness) JSONFile() string {
	return h.jsonFile
}

// Start starts recording.
func (h *Harness) Start(callbacks profiler.Callbacks) error {
	return h.session.Start(callbacks)
}

// Stop stops recording and returns the final frame.
func (h *Harness) Stop() (frame.Frame, error) {
	return h.session.Stop()
}

// Terminate stops the recording if needed and releases the recording, the
// JSON trace and the monitoring server. Calling it again does nothing.
func (h *Harness) Terminate() error {
	if h.terminated {
		return nil
	}

	h.terminated = true

	if h.session.Recording() {
		if _, err := h.session.Stop(); err != nil {
			return err
		}
	}

	if h.jsonTracer != nil {
		if err := h.jsonTracer.Finish(); err != nil {
			return err
		}
	}

	if h.monitor != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := h.monitor.StopServer(ctx); err != nil {
			h.log.Warn().Err(err).Msg("stopping monitoring server")
		}
	}

	h.log.Info().
		Str("id", h.id).
		Uint64("frames", h.session.NumFrames()).
		Str("output", h.outputFile).
		Msg("harness terminated")

	return h.recorder.Close()
}
