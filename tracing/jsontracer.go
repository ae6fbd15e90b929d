package tracing

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/framescope/frame"
)

// JSONFrameTracer writes frames as the elements of a JSON array.
type JSONFrameTracer struct {
	w      io.Writer
	closer io.Closer

	lock       sync.Mutex
	firstFrame bool
	finished   bool
	numFrames  int
}

// NewJSONFrameTracer creates a tracer that writes into w. Finish must be
// called to close the array.
func NewJSONFrameTracer(w io.Writer) (*JSONFrameTracer, error) {
	if _, err := w.Write([]byte("[\n")); err != nil {
		return nil, errors.Wrap(err, "writing frame trace header")
	}

	return &JSONFrameTracer{w: w, firstFrame: true}, nil
}

// NewJSONFrameTracerToFile creates a tracer writing into filename, or into
// a uniquely named file when filename is empty. The array is closed when the
// program exits through atexit.
func NewJSONFrameTracerToFile(filename string) (*JSONFrameTracer, error) {
	if filename == "" {
		filename = xid.New().String() + ".json"
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "creating frame trace %s", filename)
	}

	t, err := NewJSONFrameTracer(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	t.closer = f
	fmt.Fprintf(os.Stderr, "Recording frames in %s\n", filename)

	atexit.Register(func() { _ = t.Finish() })

	return t, nil
}

// FrameFlushed writes f.
func (t *JSONFrameTracer) FrameFlushed(f frame.Frame) {
	b, err := json.Marshal(f)
	if err != nil {
		panic(err)
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	if t.finished {
		return
	}

	if t.firstFrame {
		t.firstFrame = false
	} else if _, err := t.w.Write([]byte(",\n")); err != nil {
		panic(err)
	}

	if _, err := t.w.Write(b); err != nil {
		panic(err)
	}

	t.numFrames++
}

// NumFrames returns the number of frames written.
func (t *JSONFrameTracer) NumFrames() int {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.numFrames
}

// Finish closes the array, and the file if the tracer owns one. Calling it
// again does nothing.
func (t *JSONFrameTracer) Finish() error {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.finished {
		return nil
	}

	t.finished = true

	if _, err := t.w.Write([]byte("\n]\n")); err != nil {
		return errors.Wrap(err, "writing frame trace footer")
	}

	if t.closer != nil {
		return errors.Wrap(t.closer.Close(), "closing frame trace")
	}

	return nil
}
