// Package api defines the stable external event and error surface emitted
// by a session, per §6. Event field names and tags are fixed for
// cross-version stability; consumers type-switch on Event rather than
// string-matching a type field.
package api

// EventKind names one of the fixed event tags from §6.
type EventKind string

const (
	KindSpeakerDetected     EventKind = "SpeakerDetected"
	KindSpeakerActivity     EventKind = "SpeakerActivity"
	KindProcessingProgress  EventKind = "ProcessingProgress"
	KindError               EventKind = "Error"
	KindComplete             EventKind = "Complete"
)

// Event is the tagged union emitted to the embedder of the system
// (UI/host). Exactly one of the typed payload fields is non-nil, matching
// Kind.
type Event struct {
	Kind EventKind

	SpeakerDetected    *SpeakerDetected
	SpeakerActivity    *SpeakerActivity
	ProcessingProgress *ProcessingProgress
	Error              *Error
	Complete           *Complete
}

// Critical reports whether this event is kept ahead of non-critical events
// under backpressure, per §4.L's "drop oldest non-critical events first"
// rule; a critical event is dropped only when no non-critical one is left.
// Error and Complete carry information the host cannot reconstruct from a
// later event, so both are critical; the rest are supersede-able status
// updates.
func (e Event) Critical() bool {
	return e.Kind == KindError || e.Kind == KindComplete
}

// SpeakerDetected announces that speaker_id has (re)appeared in the
// session, at time t (ms since session start).
type SpeakerDetected struct {
	SessionID  string
	SpeakerID  string
	IsNew      bool
	Confidence float32
	TMs        int64
}

// SpeakerActivity reports a speech/silence transition for speaker_id. EndMs
// is nil while the activity span is still open.
type SpeakerActivity struct {
	SessionID  string
	SpeakerID  string
	IsActive   bool
	Confidence float32
	StartMs    int64
	EndMs      *int64
}

// ProcessingProgress reports how much of the input has been processed so
// far, for sessions with a known total duration (e.g. file/batch input).
type ProcessingProgress struct {
	SessionID     string
	ProcessedS    float64
	TotalS        float64
	SpeakersFound int
}

// Error is a user-visible failure, per §7: every failure crossing the
// session boundary carries a stable code, a human message, and whether the
// caller can retry or continue.
type Error struct {
	SessionID   string
	Code        string
	Message     string
	Recoverable bool
}

// Complete marks the end of a session. Warnings carries any non-fatal
// issues accumulated during the run (skipped spans, storage fallbacks)
// that did not warrant their own Error event.
type Complete struct {
	SessionID        string
	TotalSpeakers    int
	ProcessingTimeMs int64
	Warnings         []string
}
