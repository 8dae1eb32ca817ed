package adapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/zen-systems/agentgate/pkg/registry"
	"github.com/zen-systems/agentgate/pkg/schema"
	"github.com/zen-systems/agentgate/pkg/stream"
)

// MockBackend returns deterministic streams for local runs and tests.
// Failures can be scripted per model id to exercise the fallback chain.
type MockBackend struct {
	name      string
	responses map[string]string
	failures  map[string]error
	// Calls records the model ids invoked, in order.
	Calls []string
}

// NewMockBackend creates a mock backend answering for a provider name.
func NewMockBackend(name string) *MockBackend {
	if name == "" {
		name = "mock"
	}
	return &MockBackend{
		name:      name,
		responses: make(map[string]string),
		failures:  make(map[string]error),
	}
}

// Respond scripts the content streamed for a model id.
func (b *MockBackend) Respond(modelID, content string) *MockBackend {
	b.responses[modelID] = content
	return b
}

// Fail scripts an immediate invocation error for a model id.
func (b *MockBackend) Fail(modelID string, err error) *MockBackend {
	b.failures[modelID] = err
	return b
}

// Name returns the provider identifier.
func (b *MockBackend) Name() string { return b.name }

// EmitsReasoning reports reasoning-delta support.
func (b *MockBackend) EmitsReasoning() bool { return false }

// Invoke returns a scripted stream: one content event per rune chunk
// plus a terminal result payload, mirroring real feeds closely enough
// for dedup to matter.
func (b *MockBackend) Invoke(_ context.Context, spec registry.ModelSpec, req *schema.Request) (stream.Source, error) {
	b.Calls = append(b.Calls, spec.ID)
	if err, ok := b.failures[spec.ID]; ok {
		return nil, err
	}

	content, ok := b.responses[spec.ID]
	if !ok {
		content = fmt.Sprintf("mock response to: %s", req.LastUserText())
	}

	src := stream.NewChannelSource(4)
	half := len(content) / 2
	for _, chunk := range []string{content[:half], content[half:]} {
		if chunk == "" {
			continue
		}
		body, _ := json.Marshal(map[string]string{"content": chunk})
		src.Emit(context.Background(), stream.RawEvent(body))
	}
	terminal, _ := json.Marshal(map[string]string{"type": "result", "result": content})
	src.Emit(context.Background(), stream.RawEvent(terminal))
	src.Finish(nil)
	return src, nil
}
