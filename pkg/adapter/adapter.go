// Package adapter implements the backend invocation layer: one Backend
// per provider kind, each turning a request into an upstream event
// source the normalizer can consume. The routing engine and normalizer
// never branch on backend identity; capabilities live on the contract.
package adapter

import (
	"context"
	"fmt"

	"github.com/zen-systems/agentgate/pkg/registry"
	"github.com/zen-systems/agentgate/pkg/schema"
	"github.com/zen-systems/agentgate/pkg/stream"
)

// Backend invokes one kind of model or agent and exposes its feed as
// an upstream event source. An immediate error means nothing was
// streamed and the caller may fall back to another candidate.
type Backend interface {
	// Name returns the provider identifier ("openai", "anthropic", ...).
	Name() string

	// EmitsReasoning reports whether the backend's feed can carry
	// reasoning deltas alongside content.
	EmitsReasoning() bool

	// Invoke starts a generation and returns its event source. The
	// source is scoped to the request and must be closed by the
	// consumer on every exit path.
	Invoke(ctx context.Context, spec registry.ModelSpec, req *schema.Request) (stream.Source, error)
}

// Mux dispatches invocations to the Backend registered for a spec's
// provider.
type Mux struct {
	backends map[string]Backend
}

// NewMux builds a dispatcher over the given backends, keyed by name.
func NewMux(backends ...Backend) *Mux {
	m := &Mux{backends: make(map[string]Backend, len(backends))}
	for _, b := range backends {
		m.backends[b.Name()] = b
	}
	return m
}

// Backend returns the backend registered under a provider name.
func (m *Mux) Backend(provider string) (Backend, bool) {
	b, ok := m.backends[provider]
	return b, ok
}

// Invoke routes the call to the spec's provider backend.
func (m *Mux) Invoke(ctx context.Context, spec registry.ModelSpec, req *schema.Request) (stream.Source, error) {
	b, ok := m.backends[spec.Provider]
	if !ok {
		return nil, &BackendError{
			Provider: spec.Provider,
			Err:      fmt.Errorf("no backend registered for provider %q", spec.Provider),
		}
	}
	return b.Invoke(ctx, spec, req)
}
