package stream

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Notes attached to a translation so the normalizer can decide whether
// and how to log a dropped event.
const (
	noteNoise    = "noise"
	noteUnparsed = "unparsed"
)

// noisePrefixes matches diagnostic chatter agent runs print before and
// between real events. These lines are dropped without logging.
var noisePrefixes = []string{
	"Loaded cached credentials",
	"Loading model",
	"Preflight check",
	"Sandbox container",
	"Warming up",
	"[agent]",
	"* Running on",
}

func isNoiseLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	for _, prefix := range noisePrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}

// translation is the result of transforming one raw upstream event.
type translation struct {
	events         []Event
	emittedContent bool
	note           string
}

// translateEvent is a pure transform from one opaque upstream event to
// zero or more canonical events. emittedContent is the dedup flag
// carried across the request: once any content delta has been emitted,
// a terminal result payload must not re-emit its accumulated text.
func translateEvent(raw RawEvent, emittedContent bool) translation {
	tr := translation{emittedContent: emittedContent}
	body := string(raw)

	if !gjson.Valid(body) {
		if isNoiseLine(body) {
			tr.note = noteNoise
		} else {
			tr.note = noteUnparsed
		}
		return tr
	}
	root := gjson.Parse(body)
	if !root.IsObject() {
		tr.note = noteUnparsed
		return tr
	}

	// Upstream-declared errors terminate the stream.
	if errField := root.Get("error"); errField.Exists() && errField.Type != gjson.Null {
		kind := errField.Get("type").String()
		if kind == "" {
			kind = "upstream_error"
		}
		msg := errField.Get("message").String()
		if msg == "" {
			msg = errField.String()
		}
		tr.events = append(tr.events, ErrorEvent(kind, msg))
		return tr
	}

	matched := false

	// Rule 1: direct token deltas, either top-level or in an
	// OpenAI-style choices envelope.
	if text, ok := directField(root, "reasoning_content"); ok {
		tr.events = append(tr.events, ReasoningDelta(text))
		matched = true
	}
	if text, ok := directField(root, "content"); ok {
		tr.events = append(tr.events, ContentDelta(text))
		tr.emittedContent = true
		matched = true
	}

	// Rule 2: nested agent-stream deltas (delta.text / delta.thinking
	// at any depth).
	if !matched {
		if text, ok := findDeltaField(root, "thinking", 0); ok {
			tr.events = append(tr.events, ReasoningDelta(text))
			matched = true
		}
		if text, ok := findDeltaField(root, "text", 0); ok {
			tr.events = append(tr.events, ContentDelta(text))
			tr.emittedContent = true
			matched = true
		}
	}

	// Rule 3: terminal result payload carrying the full accumulated
	// text. Only contributes visible content when no deltas were ever
	// streamed; otherwise it just supplies the finish signal.
	if result, ok := resultPayload(root); ok {
		if !tr.emittedContent && result != "" {
			tr.events = append(tr.events, ContentDelta(result))
			tr.emittedContent = true
		}
		tr.events = append(tr.events, Done(finishReason(root)))
		return tr
	}

	if reason, ok := finishSignal(root); ok {
		tr.events = append(tr.events, Done(reason))
		return tr
	}

	if !matched && len(tr.events) == 0 {
		tr.note = noteUnparsed
	}
	return tr
}

// directField probes a top-level field and its choices-envelope twin.
func directField(root gjson.Result, name string) (string, bool) {
	if v := root.Get(name); v.Type == gjson.String && v.Str != "" {
		return v.Str, true
	}
	if v := root.Get("choices.0.delta." + name); v.Type == gjson.String && v.Str != "" {
		return v.Str, true
	}
	return "", false
}

const maxDeltaDepth = 8

// findDeltaField searches for a delta.<field> shape, however deeply
// the agent wrapped it in outer envelopes.
func findDeltaField(v gjson.Result, field string, depth int) (string, bool) {
	if depth > maxDeltaDepth {
		return "", false
	}
	if t := v.Get("delta." + field); t.Type == gjson.String {
		return t.Str, true
	}
	var text string
	found := false
	v.ForEach(func(_, child gjson.Result) bool {
		if !child.IsObject() && !child.IsArray() {
			return true
		}
		if s, ok := findDeltaField(child, field, depth+1); ok {
			text, found = s, true
			return false
		}
		return true
	})
	return text, found
}

func resultPayload(root gjson.Result) (string, bool) {
	if root.Get("type").String() == "result" {
		return root.Get("result").String(), true
	}
	if v := root.Get("result"); v.Type == gjson.String {
		return v.Str, true
	}
	return "", false
}

func finishSignal(root gjson.Result) (string, bool) {
	if v := root.Get("choices.0.finish_reason"); v.Type == gjson.String && v.Str != "" {
		return v.Str, true
	}
	if v := root.Get("finish_reason"); v.Type == gjson.String && v.Str != "" {
		return v.Str, true
	}
	if v := root.Get("delta.stop_reason"); v.Type == gjson.String && v.Str != "" {
		return v.Str, true
	}
	if root.Get("done").Bool() {
		return "stop", true
	}
	return "", false
}

func finishReason(root gjson.Result) string {
	if reason, ok := finishSignal(root); ok {
		return reason
	}
	if v := root.Get("stop_reason"); v.Type == gjson.String && v.Str != "" {
		return v.Str
	}
	return "stop"
}
