package datarecording

import (
	"os"
	"strings"
	"time"
)

const execTableName = "exec_info"

const execTimeFormat = "2006-01-02 15:04:05.000000000"

// execInfo is one property of the program run.
type execInfo struct {
	Property string
	Value    string
}

// execRecorder records when and how the program ran.
type execRecorder struct {
	recorder DataRecorder
	entries  []execInfo
}

func newExecRecorder(recorder DataRecorder) *execRecorder {
	recorder.CreateTable(execTableName, execInfo{})

	return &execRecorder{
		recorder: recorder,
	}
}

// Start remembers the start time, the command line and the working directory.
func (e *execRecorder) Start() {
	e.entries = append(e.entries,
		execInfo{"Start Time", time.Now().Format(execTimeFormat)},
		execInfo{"Command", strings.Join(os.Args, " ")},
	)

	cwd, err := os.Getwd()
	if err == nil {
		e.entries = append(e.entries, execInfo{"Working Directory", cwd})
	}
}

// End writes the remembered properties together with the end time.
func (e *execRecorder) End() {
	for _, entry := range e.entries {
		e.recorder.InsertData(execTableName, entry)
	}

	e.recorder.InsertData(execTableName,
		execInfo{"End Time", time.Now().Format(execTimeFormat)})

	e.entries = nil
}
