package datarecording

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"

	"github.com/sarchlab/framescope/frame"
)

// Table names used by the FrameRecorder.
const (
	FramesTable  = "frames"
	EntriesTable = "entries"
)

// FrameEntry is one row of the frames table.
type FrameEntry struct {
	Seq         int
	Recording   string
	Source      string
	Time        float64
	NumProfiles int
	TotalMs     float64
	Payload     string
}

// ProfileEntry is one row of the entries table: a non-placeholder profile of
// a frame.
type ProfileEntry struct {
	Seq         int
	Position    string
	Identity    uint64
	Name        string
	IsComposite bool
	CompositeMs float64
	LifecycleMs float64
	Lifecycle   string
}

// FrameRecorder stores flushed frames through a DataRecorder.
type FrameRecorder struct {
	recorder DataRecorder
	exec     *execRecorder
	log      zerolog.Logger
	id       string
	start    time.Time

	lock   sync.Mutex
	seq    int
	closed bool
}

// NewFrameRecorder creates the frame tables in recorder.
func NewFrameRecorder(recorder DataRecorder, logger zerolog.Logger) *FrameRecorder {
	r := &FrameRecorder{
		recorder: recorder,
		log:      logger,
		id:       xid.New().String(),
		start:    time.Now(),
	}

	recorder.CreateTable(FramesTable, FrameEntry{})
	recorder.CreateTable(EntriesTable, ProfileEntry{})

	r.exec = newExecRecorder(recorder)
	r.exec.Start(r.id)

	return r
}

// ID returns the unique id of the recording.
func (r *FrameRecorder) ID() string {
	return r.id
}

// NumFrames returns the number of frames recorded.
func (r *FrameRecorder) NumFrames() int {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.seq
}

// FrameFlushed records f.
func (r *FrameRecorder) FrameFlushed(f frame.Frame) {
	payload, err := json.Marshal(f)
	if err != nil {
		panic(err)
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	if r.closed {
		return
	}

	seq := r.seq
	r.seq++

	total := 0.0
	numProfiles := 0

	f.Walk(func(position []int, p *frame.NodeProfile) {
		if p.IsPlaceholder() {
			return
		}

		numProfiles++
		total += p.Samples.Total()
		r.recorder.InsertData(EntriesTable, profileEntry(seq, position, p))
	})

	r.recorder.InsertData(FramesTable, FrameEntry{
		Seq:         seq,
		Recording:   r.id,
		Source:      f.Source,
		Time:        time.Since(r.start).Seconds(),
		NumProfiles: numProfiles,
		TotalMs:     total,
		Payload:     string(payload),
	})

	r.log.Debug().
		Int("seq", seq).
		Str("source", f.Source).
		Int("profiles", numProfiles).
		Msg("frame recorded")
}

func profileEntry(seq int, position []int, p *frame.NodeProfile) ProfileEntry {
	lifecycle, err := json.Marshal(p.Samples.Lifecycle)
	if err != nil {
		panic(err)
	}

	lifecycleMs := 0.0
	for _, d := range p.Samples.Lifecycle {
		lifecycleMs += d
	}

	return ProfileEntry{
		Seq:         seq,
		Position:    positionString(position),
		Identity:    uint64(p.Node.Identity),
		Name:        p.Node.Name,
		IsComposite: p.Node.IsComposite,
		CompositeMs: p.Samples.Composite,
		LifecycleMs: lifecycleMs,
		Lifecycle:   string(lifecycle),
	}
}

// Close records the end of the run and flushes. The underlying recorder is
// closed too.
func (r *FrameRecorder) Close() error {
	r.lock.Lock()
	if r.closed {
		r.lock.Unlock()
		return nil
	}

	r.closed = true
	frames := r.seq
	r.lock.Unlock()

	r.exec.End()

	r.log.Info().
		Str("recording", r.id).
		Int("frames", frames).
		Msg("recording closed")

	return r.recorder.Close()
}
