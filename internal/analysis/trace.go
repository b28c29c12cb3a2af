package analysis

import "time"

// TraceEventKind classifies each trace event by type.
type TraceEventKind string

const (
	// KindStageStarted is emitted when a stage picks its route.
	KindStageStarted TraceEventKind = "stage_started"

	// KindStageSucceeded is emitted when a stage produced usable output.
	KindStageSucceeded TraceEventKind = "stage_succeeded"

	// KindStageFailed is emitted when a stage failed and a fallback was used.
	KindStageFailed TraceEventKind = "stage_failed"
)

// TraceEvent is a single structured event of one agentic run.
type TraceEvent struct {
	Kind  TraceEventKind `json:"kind"`
	At    time.Time      `json:"at"`
	Stage Stage          `json:"stage"`

	// Route names the backend a stage used ("ollama:llava", "local_http", "openai:gpt-4o").
	Route string `json:"route,omitempty"`

	// ErrorKind and Error are set on stage_failed.
	ErrorKind StageErrorKind `json:"error_kind,omitempty"`
	Error     string         `json:"error,omitempty"`

	// Elapsed is set on stage_succeeded and stage_failed.
	Elapsed time.Duration `json:"elapsed,omitempty"`
}

// Trace records how one agentic run went. It never affects the result.
type Trace struct {
	AssetID string       `json:"asset_id"`
	Events  []TraceEvent `json:"events"`
}

func (t *Trace) started(stage Stage, route string) time.Time {
	now := time.Now()
	t.Events = append(t.Events, TraceEvent{Kind: KindStageStarted, At: now, Stage: stage, Route: route})
	return now
}

func (t *Trace) finished(stage Stage, route string, since time.Time, err *StageError) {
	e := TraceEvent{At: time.Now(), Stage: stage, Route: route, Elapsed: time.Since(since)}
	if err == nil {
		e.Kind = KindStageSucceeded
	} else {
		e.Kind = KindStageFailed
		e.ErrorKind = err.Kind
		e.Error = err.Error()
	}
	t.Events = append(t.Events, e)
}

// Failed reports whether any stage fell back.
func (t Trace) Failed() bool {
	for _, e := range t.Events {
		if e.Kind == KindStageFailed {
			return true
		}
	}
	return false
}
