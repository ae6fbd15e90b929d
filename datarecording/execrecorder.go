package datarecording

import (
	"os"
	"strings"
	"time"
)

const execInfoTable = "exec_info"

// ExecInfo is one property of a recording run.
type ExecInfo struct {
	Property string
	Value    string
}

// execRecorder records when and how a recording ran.
type execRecorder struct {
	recorder DataRecorder
	entries  []ExecInfo
}

func newExecRecorder(recorder DataRecorder) *execRecorder {
	recorder.CreateTable(execInfoTable, ExecInfo{})

	return &execRecorder{recorder: recorder}
}

// Start logs the current execution.
func (e *execRecorder) Start(recordingID string) {
	e.entries = append(e.entries,
		ExecInfo{"Recording ID", recordingID},
		ExecInfo{"Start Time", now()},
		ExecInfo{"Command", strings.Join(os.Args, " ")},
	)

	if wd, err := os.Getwd(); err == nil {
		e.entries = append(e.entries, ExecInfo{"Working Directory", wd})
	}
}

// End writes the collected entries along with the end time.
func (e *execRecorder) End() {
	for _, entry := range e.entries {
		e.recorder.InsertData(execInfoTable, entry)
	}

	e.recorder.InsertData(execInfoTable, ExecInfo{"End Time", now()})
	e.entries = nil
}

func now() string {
	return time.Now().Format("2006-01-02 15:04:05.000000000")
}
