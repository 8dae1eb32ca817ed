package adapter

import (
	"context"
	"fmt"
	"io"

	"github.com/zen-systems/agentgate/pkg/registry"
	"github.com/zen-systems/agentgate/pkg/schema"
	"github.com/zen-systems/agentgate/pkg/stream"
)

// AgentRunner starts a tool-using agent run in an isolated sandbox and
// returns its event feed as line-delimited JSON. Sandbox provisioning,
// filesystem, and network policy live behind this boundary; the core
// only consumes the feed.
type AgentRunner interface {
	Start(ctx context.Context, req *schema.Request) (io.ReadCloser, error)
}

// AgentBackend exposes a sandboxed agent run through the same Backend
// contract as direct model calls, so the routing engine and normalizer
// never special-case it.
type AgentBackend struct {
	runner AgentRunner
}

// NewAgentBackend wraps an agent runner.
func NewAgentBackend(runner AgentRunner) *AgentBackend {
	return &AgentBackend{runner: runner}
}

// Name returns the provider identifier.
func (b *AgentBackend) Name() string { return "agent" }

// EmitsReasoning reports reasoning-delta support; agent feeds
// interleave thinking deltas with content.
func (b *AgentBackend) EmitsReasoning() bool { return true }

// Invoke starts the agent run and adapts its feed into an event
// source. Diagnostic chatter on the feed is the normalizer's problem.
func (b *AgentBackend) Invoke(ctx context.Context, _ registry.ModelSpec, req *schema.Request) (stream.Source, error) {
	if b.runner == nil {
		return nil, &BackendError{Provider: b.Name(), Err: fmt.Errorf("no agent runner configured")}
	}
	feed, err := b.runner.Start(ctx, req)
	if err != nil {
		return nil, &BackendError{Provider: b.Name(), Err: err}
	}
	return stream.NewLineSource(feed), nil
}
