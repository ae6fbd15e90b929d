// Package profiler turns the measurements of an observer into frames: it
// aggregates samples per node and flushes them, at most once per quantum,
// into snapshots nested by node position.
package profiler

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/sarchlab/framescope/frame"
	"github.com/sarchlab/framescope/hooking"
	"github.com/sarchlab/framescope/idgen"
	"github.com/sarchlab/framescope/instrumentation"
	"github.com/sarchlab/framescope/observer"
	"github.com/sarchlab/framescope/tree"
)

// DefaultQuantum is the flush quantum used when none is given.
const DefaultQuantum = 16 * time.Millisecond

// HookPosFrameFlushed fires for every flushed frame, including the final
// frame returned by Stop. The item is a frame.Frame.
var HookPosFrameFlushed = &hooking.HookPos{Name: "FrameFlushed"}

var (
	// ErrRecordingInProgress is returned when starting a running session.
	ErrRecordingInProgress = errors.New("profiler: recording already in progress")

	// ErrNotRecording is returned when stopping a session that is not running.
	ErrNotRecording = errors.New("profiler: not recording")
)

// Callbacks are the consumer side of a session. Nil callbacks are skipped.
type Callbacks struct {
	OnFrame             func(f frame.Frame)
	OnCreate            func(e observer.NodeEvent)
	OnDestroy           func(e observer.NodeEvent)
	OnChangeMeasured    func(m observer.Measurement)
	OnLifecycleMeasured func(m observer.Measurement)
}

// A Session records the frames of one host. Hooks attached to the session
// receive the observer hooks as well as HookPosFrameFlushed.
type Session struct {
	*hooking.HookableBase

	host          tree.Host
	quantum       time.Duration
	flushOnCreate bool
	log           zerolog.Logger
	clock         instrumentation.Clock
	ids           idgen.Generator

	recording  bool
	callbacks  Callbacks
	observer   *observer.Observer
	aggregator *Aggregator
	scheduler  *FlushScheduler
	forwarder  *forwardHook
	numFrames  uint64
}

// SessionOption configures a Session.
type SessionOption func(s *Session)

// WithQuantum sets the minimum delay between two scheduled flushes.
func WithQuantum(quantum time.Duration) SessionOption {
	return func(s *Session) {
		s.quantum = quantum
	}
}

// WithFlushOnCreate sets whether pending samples are flushed before a node
// is announced. A new node may take the position of a removed one.
func WithFlushOnCreate(enabled bool) SessionOption {
	return func(s *Session) {
		s.flushOnCreate = enabled
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) SessionOption {
	return func(s *Session) {
		s.log = logger
	}
}

// WithClock sets the clock used to measure operations.
func WithClock(clock instrumentation.Clock) SessionOption {
	return func(s *Session) {
		s.clock = clock
	}
}

// WithIDGenerator sets the generator identities are drawn from. Sharing a
// generator across sessions keeps identities unique across recordings.
func WithIDGenerator(ids idgen.Generator) SessionOption {
	return func(s *Session) {
		s.ids = ids
	}
}

// NewSession creates a session over host.
func NewSession(host tree.Host, opts ...SessionOption) *Session {
	if host == nil {
		panic("profiler: host must not be nil")
	}

	s := &Session{
		HookableBase:  hooking.NewHookableBase(),
		host:          host,
		quantum:       DefaultQuantum,
		flushOnCreate: true,
		log:           zerolog.Nop(),
		clock:         instrumentation.WallClock{},
		ids:           idgen.New(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.quantum < 0 {
		panic("profiler: negative quantum")
	}

	return s
}

type forwardHook struct {
	session *Session
}

func (h *forwardHook) Func(ctx hooking.HookCtx) {
	ctx.Domain = h.session
	h.session.InvokeHook(ctx)
}

// Start begins recording.
func (s *Session) Start(callbacks Callbacks) error {
	if s.recording {
		return ErrRecordingInProgress
	}

	s.callbacks = callbacks
	s.observer = observer.New(s.host,
		observer.Config{
			OnCreate:            s.onCreate,
			OnDestroy:           s.onDestroy,
			OnChangeMeasured:    s.onChangeMeasured,
			OnLifecycleMeasured: s.onLifecycleMeasured,
		},
		observer.WithLogger(s.log),
		observer.WithClock(s.clock),
		observer.WithIDGenerator(s.ids),
	)
	s.forwarder = &forwardHook{session: s}
	s.observer.AcceptHook(s.forwarder)
	s.aggregator = NewAggregator(NewFrameBuilder(s.observer, s.log))
	s.scheduler = NewFlushScheduler(s.host, s.quantum, s.scheduledFlush)
	s.recording = true

	if err := s.observer.Initialize(); err != nil {
		s.observer.Destroy()
		s.release()

		return errors.Wrap(err, "profiler: start")
	}

	s.log.Info().
		Dur("quantum", s.quantum).
		Int("nodes", s.observer.Index().Len()).
		Msg("recording started")

	return nil
}

// Stop flushes the pending samples one last time, restores the host and
// returns the final frame. The final frame goes to the hooks but not to
// OnFrame.
func (s *Session) Stop() (frame.Frame, error) {
	if !s.recording {
		return frame.Frame{}, ErrNotRecording
	}

	s.scheduler.Cancel()
	f := s.flush("")

	s.observer.Destroy()
	s.release()

	s.log.Info().Uint64("frames", s.numFrames).Msg("recording stopped")

	return f, nil
}

func (s *Session) release() {
	s.recording = false
	s.observer = nil
	s.aggregator = nil
	s.scheduler = nil
	s.forwarder = nil
}

// Recording tells whether the session is running.
func (s *Session) Recording() bool {
	return s.recording
}

// Observer returns the observer of the running recording, nil otherwise.
func (s *Session) Observer() *observer.Observer {
	return s.observer
}

// NumFrames returns the number of frames flushed so far.
func (s *Session) NumFrames() uint64 {
	return s.numFrames
}

// Pending returns the number of nodes with samples waiting for a flush.
func (s *Session) Pending() int {
	if s.aggregator == nil {
		return 0
	}

	return s.aggregator.Pending()
}

// Flush flushes the pending samples right away, attributing them to source.
func (s *Session) Flush(source string) (frame.Frame, error) {
	if !s.recording {
		return frame.Frame{}, ErrNotRecording
	}

	s.scheduler.Cancel()
	f := s.flush(source)
	s.emit(f)

	return f, nil
}

func (s *Session) record(id idgen.ID, kind frame.Kind, durationMs float64) {
	s.aggregator.Record(id, kind, durationMs)
	s.scheduler.RequestFlush()
}

func (s *Session) onCreate(e observer.NodeEvent) {
	if s.flushOnCreate && s.aggregator.Pending() > 0 {
		s.scheduler.Cancel()
		s.emit(s.flush(""))
	}

	if s.callbacks.OnCreate != nil {
		s.callbacks.OnCreate(e)
	}
}

func (s *Session) onDestroy(e observer.NodeEvent) {
	if s.callbacks.OnDestroy != nil {
		s.callbacks.OnDestroy(e)
	}
}

func (s *Session) onChangeMeasured(m observer.Measurement) {
	s.record(m.Identity, frame.KindComposite, m.DurationMs)

	if s.callbacks.OnChangeMeasured != nil {
		s.callbacks.OnChangeMeasured(m)
	}
}

func (s *Session) onLifecycleMeasured(m observer.Measurement) {
	s.record(m.Identity, m.Kind, m.DurationMs)

	if s.callbacks.OnLifecycleMeasured != nil {
		s.callbacks.OnLifecycleMeasured(m)
	}
}

func (s *Session) scheduledFlush() {
	s.emit(s.flush(s.currentSource()))
}

func (s *Session) currentSource() string {
	if teller, ok := s.host.(tree.SourceTeller); ok {
		return teller.CurrentSource()
	}

	return ""
}

func (s *Session) flush(source string) frame.Frame {
	f := s.aggregator.Flush(source)
	s.numFrames++

	s.InvokeHook(hooking.HookCtx{
		Domain: s,
		Pos:    HookPosFrameFlushed,
		Item:   f,
	})

	return f
}

func (s *Session) emit(f frame.Frame) {
	if s.callbacks.OnFrame != nil {
		s.callbacks.OnFrame(f)
	}
}
