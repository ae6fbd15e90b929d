package datarecording

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/sarchlab/framescope/frame"
)

// ErrFrameNotFound is returned when a frame sequence number is not recorded.
var ErrFrameNotFound = errors.New("frame not found")

// FrameReader reads the frames stored by a FrameRecorder.
type FrameReader struct {
	reader DataReader
}

// NewFrameReader opens the sqlite recording at path.
func NewFrameReader(path string) (*FrameReader, error) {
	reader, err := NewReader(path)
	if err != nil {
		return nil, err
	}

	return NewFrameReaderWithReader(reader), nil
}

// NewFrameReaderWithReader reads frames through reader.
func NewFrameReaderWithReader(reader DataReader) *FrameReader {
	reader.MapTable(FramesTable, FrameEntry{})
	reader.MapTable(EntriesTable, ProfileEntry{})
	reader.MapTable(execInfoTable, ExecInfo{})

	return &FrameReader{reader: reader}
}

// Frames lists the recorded frames in order, starting at offset. A limit of
// 0 lists them all. It also returns the total number of frames.
func (r *FrameReader) Frames(
	ctx context.Context,
	offset, limit int,
) ([]FrameEntry, int, error) {
	rows, total, err := r.reader.Query(ctx, FramesTable, QueryParams{
		OrderBy: "Seq",
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		return nil, 0, err
	}

	frames := make([]FrameEntry, 0, len(rows))
	for _, row := range rows {
		frames = append(frames, *row.(*FrameEntry))
	}

	return frames, total, nil
}

// Frame reloads the frame with sequence number seq.
func (r *FrameReader) Frame(ctx context.Context, seq int) (frame.Frame, error) {
	rows, _, err := r.reader.Query(ctx, FramesTable, QueryParams{
		Where: "Seq = ?",
		Args:  []any{seq},
	})
	if err != nil {
		return frame.Frame{}, err
	}

	if len(rows) == 0 {
		return frame.Frame{}, errors.Wrapf(ErrFrameNotFound, "seq %d", seq)
	}

	var f frame.Frame
	if err := json.Unmarshal([]byte(rows[0].(*FrameEntry).Payload), &f); err != nil {
		return frame.Frame{}, errors.Wrapf(err, "decoding frame %d", seq)
	}

	return f, nil
}

// Entries returns the profiles of the frame with sequence number seq.
func (r *FrameReader) Entries(ctx context.Context, seq int) ([]ProfileEntry, error) {
	rows, _, err := r.reader.Query(ctx, EntriesTable, QueryParams{
		Where: "Seq = ?",
		Args:  []any{seq},
	})
	if err != nil {
		return nil, err
	}

	entries := make([]ProfileEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, *row.(*ProfileEntry))
	}

	return entries, nil
}

// ExecInfo returns the properties of the recording run.
func (r *FrameReader) ExecInfo(ctx context.Context) (map[string]string, error) {
	rows, _, err := r.reader.Query(ctx, execInfoTable, QueryParams{})
	if err != nil {
		return nil, err
	}

	info := make(map[string]string, len(rows))
	for _, row := range rows {
		e := row.(*ExecInfo)
		info[e.Property] = e.Value
	}

	return info, nil
}

// Close closes the underlying reader.
func (r *FrameReader) Close() error {
	return r.reader.Close()
}

func positionString(position []int) string {
	parts := make([]string, len(position))
	for i, p := range position {
		parts[i] = strconv.Itoa(p)
	}

	return strings.Join(parts, ".")
}
