package adapter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"

	"github.com/zen-systems/agentgate/pkg/registry"
	"github.com/zen-systems/agentgate/pkg/schema"
	"github.com/zen-systems/agentgate/pkg/stream"
)

// GoogleBackend streams generations from Gemini models. Gemini chunks
// carry no incremental envelope of their own, so the backend emits
// compact content events plus one finish event.
type GoogleBackend struct {
	client *genai.Client
}

// NewGoogleBackend creates a Google Gemini backend.
func NewGoogleBackend(apiKey string) (*GoogleBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google API key is required")
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create google client: %w", err)
	}
	return &GoogleBackend{client: client}, nil
}

// Name returns the provider identifier.
func (b *GoogleBackend) Name() string { return "google" }

// EmitsReasoning reports reasoning-delta support.
func (b *GoogleBackend) EmitsReasoning() bool { return false }

// Invoke starts a streaming generation.
func (b *GoogleBackend) Invoke(ctx context.Context, spec registry.ModelSpec, req *schema.Request) (stream.Source, error) {
	contents, err := toGeminiContents(req)
	if err != nil {
		return nil, &BackendError{Provider: b.Name(), Err: err}
	}

	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(spec.MaxOutputTokens),
		Temperature:     genai.Ptr(float32(spec.Temperature)),
	}

	src := stream.NewChannelSource(1)
	go func() {
		finish := "stop"
		for resp, err := range b.client.Models.GenerateContentStream(ctx, spec.ID, contents, config) {
			if err != nil {
				src.Finish(&BackendError{Provider: b.Name(), Temporary: true, Err: err})
				return
			}
			if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
				continue
			}
			candidate := resp.Candidates[0]
			if candidate.FinishReason != "" {
				finish = string(candidate.FinishReason)
			}
			for _, part := range candidate.Content.Parts {
				if part.Text == "" {
					continue
				}
				if !src.Emit(ctx, contentEvent(part.Text)) {
					return
				}
			}
		}
		if !src.Emit(ctx, finishEvent(finish)) {
			return
		}
		src.Finish(nil)
	}()
	return src, nil
}

func contentEvent(text string) stream.RawEvent {
	body, _ := json.Marshal(map[string]string{"content": text})
	return stream.RawEvent(body)
}

func finishEvent(reason string) stream.RawEvent {
	body, _ := json.Marshal(map[string]string{"finish_reason": reason})
	return stream.RawEvent(body)
}

func toGeminiContents(req *schema.Request) ([]*genai.Content, error) {
	var out []*genai.Content
	for _, msg := range req.Messages {
		role := genai.RoleUser
		if msg.Role == schema.RoleAssistant {
			role = genai.RoleModel
		}
		var parts []*genai.Part
		for _, part := range msg.Parts {
			switch part.Kind {
			case schema.ContentText:
				parts = append(parts, &genai.Part{Text: part.Text})
			case schema.ContentImage:
				if part.Data == "" {
					return nil, fmt.Errorf("gemini image parts require inline data")
				}
				decoded, err := base64.StdEncoding.DecodeString(part.Data)
				if err != nil {
					return nil, fmt.Errorf("decode image data: %w", err)
				}
				parts = append(parts, &genai.Part{
					InlineData: &genai.Blob{MIMEType: part.MIMEType, Data: decoded},
				})
			}
		}
		if len(parts) == 0 {
			continue
		}
		out = append(out, &genai.Content{Role: role, Parts: parts})
	}
	return out, nil
}
