package adapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/zen-systems/agentgate/pkg/registry"
	"github.com/zen-systems/agentgate/pkg/schema"
	"github.com/zen-systems/agentgate/pkg/stream"
)

// OpenAIBackend streams chat completions from OpenAI models.
type OpenAIBackend struct {
	client openai.Client
}

// NewOpenAIBackend creates an OpenAI backend.
func NewOpenAIBackend(apiKey string) (*OpenAIBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	return &OpenAIBackend{client: openai.NewClient(option.WithAPIKey(apiKey))}, nil
}

// Name returns the provider identifier.
func (b *OpenAIBackend) Name() string { return "openai" }

// EmitsReasoning reports reasoning-delta support.
func (b *OpenAIBackend) EmitsReasoning() bool { return true }

// Invoke starts a streaming completion and exposes the chunk feed as
// an event source. Chunks pass through as the SDK's raw JSON; the
// normalizer owns shape translation.
func (b *OpenAIBackend) Invoke(ctx context.Context, spec registry.ModelSpec, req *schema.Request) (stream.Source, error) {
	params := openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(spec.ID),
		Messages:            toOpenAIMessages(req),
		MaxCompletionTokens: openai.Int(int64(spec.MaxOutputTokens)),
		Temperature:         openai.Float(spec.Temperature),
	}

	sdkStream := b.client.Chat.Completions.NewStreaming(ctx, params)
	if err := sdkStream.Err(); err != nil {
		_ = sdkStream.Close()
		return nil, b.wrap(err)
	}

	src := stream.NewChannelSource(1)
	go func() {
		defer sdkStream.Close()
		for sdkStream.Next() {
			chunk := sdkStream.Current()
			if !src.Emit(ctx, stream.RawEvent(chunk.RawJSON())) {
				return
			}
		}
		src.Finish(b.wrap(sdkStream.Err()))
	}()
	return src, nil
}

func (b *OpenAIBackend) wrap(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &BackendError{Provider: b.Name(), Status: apiErr.StatusCode, Err: err}
	}
	return &BackendError{Provider: b.Name(), Err: err}
}

func toOpenAIMessages(req *schema.Request) []openai.ChatCompletionMessageParamUnion {
	var out []openai.ChatCompletionMessageParamUnion
	for _, msg := range req.Messages {
		switch msg.Role {
		case schema.RoleSystem:
			out = append(out, openai.SystemMessage(joinText(msg)))
		case schema.RoleAssistant:
			out = append(out, openai.AssistantMessage(joinText(msg)))
		default:
			out = append(out, openai.UserMessage(toOpenAIParts(msg)))
		}
	}
	return out
}

func toOpenAIParts(msg schema.Message) []openai.ChatCompletionContentPartUnionParam {
	var parts []openai.ChatCompletionContentPartUnionParam
	for _, part := range msg.Parts {
		switch part.Kind {
		case schema.ContentText:
			parts = append(parts, openai.TextContentPart(part.Text))
		case schema.ContentImage:
			url := part.ImageURL
			if url == "" && part.Data != "" {
				url = fmt.Sprintf("data:%s;base64,%s", part.MIMEType, part.Data)
			}
			parts = append(parts, openai.ImageContentPart(
				openai.ChatCompletionContentPartImageImageURLParam{URL: url}))
		}
	}
	return parts
}

func joinText(msg schema.Message) string {
	var text string
	for _, part := range msg.Parts {
		if part.Kind == schema.ContentText {
			text += part.Text
		}
	}
	return text
}
