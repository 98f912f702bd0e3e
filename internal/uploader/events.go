package uploader

import "filmbox/internal/domain/upload"

// Event is a tagged notification emitted by the state machine. Observers
// switch on the concrete type instead of decoding ad hoc payloads.
type Event interface {
	EventType() string
}

// ProgressEvent carries a byte-level progress report.
type ProgressEvent struct {
	Uploaded int64  `json:"uploaded"`
	Total    int64  `json:"total"`
	Percent  int    `json:"percent"`
	Label    string `json:"label"`
}

func (ProgressEvent) EventType() string { return "upload.progress" }

// StateEvent signals a lifecycle transition.
type StateEvent struct {
	State upload.State `json:"state"`
}

func (StateEvent) EventType() string { return "upload.state" }

// ErrorEvent reports a recoverable failure.
type ErrorEvent struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (ErrorEvent) EventType() string { return "upload.error" }

// EventSink receives machine events together with a copy of the session as it
// stood when the event was produced. Implementations must not block: events
// are delivered synchronously from the transfer goroutine.
type EventSink func(session upload.UploadSession, ev Event)

// NopSink discards events.
func NopSink(upload.UploadSession, Event) {}
