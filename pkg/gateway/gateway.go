// Package gateway wires the request pipeline: complexity
// classification, task routing, backend invocation, and stream
// normalization. One Handle call serves one request end to end.
package gateway

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/zen-systems/agentgate/pkg/adapter"
	"github.com/zen-systems/agentgate/pkg/classify"
	"github.com/zen-systems/agentgate/pkg/registry"
	"github.com/zen-systems/agentgate/pkg/route"
	"github.com/zen-systems/agentgate/pkg/schema"
	"github.com/zen-systems/agentgate/pkg/stream"
)

// agentSpec is the pseudo model spec handed to the agent backend; the
// sandbox decides its own model, the core only tracks the path taken.
var agentSpec = registry.ModelSpec{ID: "agent", Provider: "agent"}

// Gateway serves chat requests over the classify-route-normalize
// pipeline.
type Gateway struct {
	complexity *classify.Complexity
	task       *classify.Task
	engine     *route.Engine
	agent      adapter.Backend
	log        zerolog.Logger
	streamOpts []stream.NormalizerOption
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(g *Gateway) { g.log = log }
}

// WithNormalizerOptions forwards options to every per-request
// normalizer.
func WithNormalizerOptions(opts ...stream.NormalizerOption) Option {
	return func(g *Gateway) { g.streamOpts = opts }
}

// New creates a Gateway. The agent backend may be nil when no sandbox
// is attached; agent-path requests then fail with a single terminal
// error event.
func New(complexity *classify.Complexity, task *classify.Task, engine *route.Engine, agent adapter.Backend, opts ...Option) *Gateway {
	g := &Gateway{
		complexity: complexity,
		task:       task,
		engine:     engine,
		agent:      agent,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Result reports how a request was served.
type Result struct {
	Analysis  classify.Analysis
	AgentPath bool
	// Decision is nil on the agent path.
	Decision *route.Decision
}

// Handle classifies the request, routes it, and streams the normalized
// events into the sink. Exactly one terminal event reaches the sink on
// every path except caller cancellation.
func (g *Gateway) Handle(ctx context.Context, req *schema.Request, sink stream.Sink) (*Result, error) {
	analysis := g.complexity.Classify(ctx, req)
	result := &Result{Analysis: analysis, AgentPath: analysis.NeedsAgent}
	g.log.Info().
		Bool("needs_agent", analysis.NeedsAgent).
		Str("reason", analysis.Reason).
		Int("images", analysis.ImageCount).
		Msg("request classified")

	var src stream.Source
	if analysis.NeedsAgent {
		var err error
		src, err = g.invokeAgent(ctx, req)
		if err != nil {
			g.log.Error().Err(err).Msg("agent invocation failed")
			_ = sink.Send(stream.ErrorEvent("agent_unavailable", err.Error()))
			return result, err
		}
	} else {
		category, confidence := g.task.Classify(ctx, req)
		decision := g.engine.Plan(category, confidence, req.HasImages())
		result.Decision = decision
		g.log.Info().
			Str("category", string(category)).
			Float64("confidence", confidence).
			Str("primary", decision.Primary.ID).
			Int("fallbacks", len(decision.FallbackChain)).
			Msg("routing planned")

		var err error
		src, err = g.engine.Execute(ctx, decision, req)
		if err != nil {
			g.log.Error().Err(err).Msg("routing chain failed")
			_ = sink.Send(stream.ErrorEvent("chain_exhausted", err.Error()))
			return result, err
		}
	}

	normalizer := stream.NewNormalizer(src, append([]stream.NormalizerOption{
		stream.WithLogger(g.log),
	}, g.streamOpts...)...)
	if err := normalizer.Pipe(ctx, sink); err != nil {
		return result, err
	}
	return result, nil
}

func (g *Gateway) invokeAgent(ctx context.Context, req *schema.Request) (stream.Source, error) {
	if g.agent == nil {
		return nil, &adapter.BackendError{Provider: "agent", Err: errNoAgent}
	}
	return g.agent.Invoke(ctx, agentSpec, req)
}

var errNoAgent = errors.New("no agent backend configured")
