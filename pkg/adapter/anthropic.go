package adapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"

	"github.com/zen-systems/agentgate/pkg/registry"
	"github.com/zen-systems/agentgate/pkg/schema"
	"github.com/zen-systems/agentgate/pkg/stream"
)

// AnthropicBackend streams messages from Claude models.
type AnthropicBackend struct {
	client anthropic.Client
}

// NewAnthropicBackend creates an Anthropic backend.
func NewAnthropicBackend(apiKey string) (*AnthropicBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	return &AnthropicBackend{client: anthropic.NewClient(anthropicoption.WithAPIKey(apiKey))}, nil
}

// Name returns the provider identifier.
func (b *AnthropicBackend) Name() string { return "anthropic" }

// EmitsReasoning reports reasoning-delta support; extended thinking
// arrives as delta.thinking events.
func (b *AnthropicBackend) EmitsReasoning() bool { return true }

// Invoke starts a streaming message and exposes the event feed as an
// event source. Events pass through as the SDK's raw JSON
// (content_block_delta, message_delta, ...); the normalizer owns
// shape translation.
func (b *AnthropicBackend) Invoke(ctx context.Context, spec registry.ModelSpec, req *schema.Request) (stream.Source, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(spec.ID),
		MaxTokens: int64(spec.MaxOutputTokens),
		Messages:  toAnthropicMessages(req),
	}

	sdkStream := b.client.Messages.NewStreaming(ctx, params)
	if err := sdkStream.Err(); err != nil {
		_ = sdkStream.Close()
		return nil, b.wrap(err)
	}

	src := stream.NewChannelSource(1)
	go func() {
		defer sdkStream.Close()
		for sdkStream.Next() {
			event := sdkStream.Current()
			if !src.Emit(ctx, stream.RawEvent(event.RawJSON())) {
				return
			}
		}
		src.Finish(b.wrap(sdkStream.Err()))
	}()
	return src, nil
}

func (b *AnthropicBackend) wrap(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &BackendError{Provider: b.Name(), Status: apiErr.StatusCode, Err: err}
	}
	return &BackendError{Provider: b.Name(), Err: err}
}

func toAnthropicMessages(req *schema.Request) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	for _, msg := range req.Messages {
		var blocks []anthropic.ContentBlockParamUnion
		for _, part := range msg.Parts {
			switch part.Kind {
			case schema.ContentText:
				blocks = append(blocks, anthropic.NewTextBlock(part.Text))
			case schema.ContentImage:
				if part.ImageURL != "" {
					blocks = append(blocks, anthropic.NewImageBlock(
						anthropic.URLImageSourceParam{URL: part.ImageURL}))
				} else if part.Data != "" {
					blocks = append(blocks, anthropic.NewImageBlockBase64(part.MIMEType, part.Data))
				}
			}
		}
		if len(blocks) == 0 {
			continue
		}
		if msg.Role == schema.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		} else {
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
	}
	return out
}
