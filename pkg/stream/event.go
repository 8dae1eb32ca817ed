// Package stream converts heterogeneous upstream event feeds into one
// canonical, ordered sequence of response chunks.
package stream

// EventType tags a canonical stream event.
type EventType string

const (
	EventContentDelta   EventType = "content_delta"
	EventReasoningDelta EventType = "reasoning_delta"
	EventDone           EventType = "done"
	EventError          EventType = "error"
)

// Event is the canonical output unit delivered to the caller. Exactly
// one done or error event terminates a request's stream; deltas may
// repeat any number of times before it.
type Event struct {
	Type         EventType `json:"type"`
	Text         string    `json:"text,omitempty"`
	FinishReason string    `json:"finish_reason,omitempty"`
	ErrKind      string    `json:"err_kind,omitempty"`
	ErrMessage   string    `json:"err_message,omitempty"`
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

// ContentDelta builds a visible-text chunk.
func ContentDelta(text string) Event {
	return Event{Type: EventContentDelta, Text: text}
}

// ReasoningDelta builds an intermediate-thinking chunk.
func ReasoningDelta(text string) Event {
	return Event{Type: EventReasoningDelta, Text: text}
}

// Done builds the successful terminal event.
func Done(finishReason string) Event {
	return Event{Type: EventDone, FinishReason: finishReason}
}

// ErrorEvent builds the failure terminal event.
func ErrorEvent(kind, message string) Event {
	return Event{Type: EventError, ErrKind: kind, ErrMessage: message}
}

// Sink accepts canonical events in emission order. The core makes no
// assumption about what sits behind it (SSE writer, queue, buffer).
type Sink interface {
	Send(Event) error
}

// CollectSink buffers events in memory. Used by tests and the CLI.
type CollectSink struct {
	Events []Event
}

// Send appends the event.
func (s *CollectSink) Send(e Event) error {
	s.Events = append(s.Events, e)
	return nil
}

// Content concatenates the text of all content deltas received so far.
func (s *CollectSink) Content() string {
	var out string
	for _, e := range s.Events {
		if e.Type == EventContentDelta {
			out += e.Text
		}
	}
	return out
}
