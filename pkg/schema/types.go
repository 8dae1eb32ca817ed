package schema

import "strings"

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContentKind tags a content part.
type ContentKind string

const (
	ContentText  ContentKind = "text"
	ContentImage ContentKind = "image"
)

// ContentPart is one element of a message body. Text parts carry Text;
// image parts carry either a URL or base64 Data plus a MIME type.
type ContentPart struct {
	Kind     ContentKind `json:"kind"`
	Text     string      `json:"text,omitempty"`
	ImageURL string      `json:"image_url,omitempty"`
	Data     string      `json:"data,omitempty"`
	MIMEType string      `json:"mime_type,omitempty"`
}

// Message is a single turn in a conversation.
type Message struct {
	Role  Role          `json:"role"`
	Parts []ContentPart `json:"parts"`
}

// TextMessage builds a message with a single text part.
func TextMessage(role Role, text string) Message {
	return Message{Role: role, Parts: []ContentPart{{Kind: ContentText, Text: text}}}
}

// Request is an inbound chat-completion request as seen by the core.
// Transport concerns (headers, auth, session ids) stay in the gateway
// that feeds us.
type Request struct {
	Messages []Message `json:"messages"`
	// Stream is advisory; the core always produces an ordered event
	// sequence and leaves delivery pacing to the sink.
	Stream bool `json:"stream,omitempty"`
}

// Text returns the concatenated text of all user and system parts, in
// order. Used by classifiers; never sent upstream verbatim.
func (r *Request) Text() string {
	var sb strings.Builder
	for _, msg := range r.Messages {
		for _, part := range msg.Parts {
			if part.Kind != ContentText || part.Text == "" {
				continue
			}
			if sb.Len() > 0 {
				sb.WriteByte('\n')
			}
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

// LastUserText returns the text of the most recent user message, or the
// full request text when there is none.
func (r *Request) LastUserText() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role != RoleUser {
			continue
		}
		var sb strings.Builder
		for _, part := range r.Messages[i].Parts {
			if part.Kind == ContentText {
				sb.WriteString(part.Text)
			}
		}
		if sb.Len() > 0 {
			return sb.String()
		}
	}
	return r.Text()
}

// ImageCount returns the number of image parts anywhere in the request.
func (r *Request) ImageCount() int {
	n := 0
	for _, msg := range r.Messages {
		for _, part := range msg.Parts {
			if part.Kind == ContentImage {
				n++
			}
		}
	}
	return n
}

// HasImages reports whether any message carries an image part.
func (r *Request) HasImages() bool {
	return r.ImageCount() > 0
}
