package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zen-systems/agentgate/pkg/adapter"
	"github.com/zen-systems/agentgate/pkg/classify"
	"github.com/zen-systems/agentgate/pkg/registry"
	"github.com/zen-systems/agentgate/pkg/route"
	"github.com/zen-systems/agentgate/pkg/schema"
	"github.com/zen-systems/agentgate/pkg/stream"
)

type fixture struct {
	gateway *Gateway
	mock    *adapter.MockBackend
	agent   *adapter.MockBackend
	engine  *route.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg, err := registry.New([]registry.ModelSpec{
		{ID: "general-1", Provider: "mock", TaskCategories: []registry.TaskCategory{registry.TaskGeneralText, registry.TaskSimpleText}, Priority: 1, CallTimeout: time.Second},
		{ID: "general-2", Provider: "mock", TaskCategories: []registry.TaskCategory{registry.TaskGeneralText}, Priority: 2, CallTimeout: time.Second},
		{ID: "vision-1", Provider: "mock", TaskCategories: []registry.TaskCategory{registry.TaskVision, registry.TaskGeneralText}, SupportsVision: true, Priority: 3, CallTimeout: time.Second},
	})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	mock := adapter.NewMockBackend("mock")
	agent := adapter.NewMockBackend("agent")
	engine := route.NewEngine(reg, adapter.NewMux(mock, agent),
		route.WithRetryPolicy(route.RetryPolicy{MaxRetries: 0, BaseBackoff: time.Millisecond, MaxBackoff: time.Millisecond}))

	g := New(classify.NewComplexity(nil), classify.NewTask(nil), engine, agent)
	return &fixture{gateway: g, mock: mock, agent: agent, engine: engine}
}

func request(text string) *schema.Request {
	return &schema.Request{Messages: []schema.Message{schema.TextMessage(schema.RoleUser, text)}}
}

func TestFastPathSimpleQuestion(t *testing.T) {
	fx := newFixture(t)
	fx.mock.Respond("general-1", "4")

	var sink stream.CollectSink
	result, err := fx.gateway.Handle(context.Background(), request("What is 2+2?"), &sink)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if result.AgentPath {
		t.Fatalf("trivial question took agent path: %+v", result.Analysis)
	}
	if result.Decision == nil || result.Decision.Primary.ID != "general-1" {
		t.Fatalf("decision: %+v", result.Decision)
	}
	if sink.Content() != "4" {
		t.Fatalf("content: %q", sink.Content())
	}
	last := sink.Events[len(sink.Events)-1]
	if last.Type != stream.EventDone {
		t.Fatalf("missing done: %+v", sink.Events)
	}
	for _, ev := range sink.Events {
		if ev.Type == stream.EventReasoningDelta {
			t.Fatalf("unexpected reasoning delta: %+v", ev)
		}
	}
}

func TestAgentPathOnKeywordMatch(t *testing.T) {
	fx := newFixture(t)
	fx.agent.Respond("agent", "rendered the city")

	var sink stream.CollectSink
	result, err := fx.gateway.Handle(context.Background(), request("Generate an image of a futuristic city"), &sink)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if !result.AgentPath || result.Analysis.Reason != classify.ReasonKeywordMatch {
		t.Fatalf("analysis: %+v", result.Analysis)
	}
	if result.Decision != nil {
		t.Fatalf("agent path must not plan a model chain")
	}
	if len(fx.mock.Calls) != 0 {
		t.Fatalf("fast-path backend invoked: %v", fx.mock.Calls)
	}
	if sink.Content() != "rendered the city" {
		t.Fatalf("content: %q", sink.Content())
	}
}

func TestAgentPathOnURLInteraction(t *testing.T) {
	fx := newFixture(t)
	fx.agent.Respond("agent", "page loads fine")

	var sink stream.CollectSink
	result, err := fx.gateway.Handle(context.Background(), request("test https://example.com in a browser"), &sink)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !result.AgentPath || result.Analysis.Reason != classify.ReasonURLInteraction {
		t.Fatalf("analysis: %+v", result.Analysis)
	}
}

func TestFallbackOnPrimaryFailure(t *testing.T) {
	fx := newFixture(t)
	fx.mock.Fail("general-1", &adapter.BackendError{Status: 503, Err: errors.New("unavailable")})
	fx.mock.Respond("general-2", "served by backup")

	var sink stream.CollectSink
	result, err := fx.gateway.Handle(context.Background(), request("Tell me about the history of the Hanseatic League in Northern Europe and its trade routes."), &sink)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	attempts := result.Decision.Attempts
	if len(attempts) != 2 {
		t.Fatalf("attempts: %+v", attempts)
	}
	if attempts[0].Outcome != route.OutcomeTransientFailure || attempts[1].Outcome != route.OutcomeSuccess {
		t.Fatalf("attempt outcomes: %+v", attempts)
	}
	if sink.Content() != "served by backup" {
		t.Fatalf("content: %q", sink.Content())
	}
	if snap := fx.engine.Metrics().Snapshot(); snap.FallbackCount != 1 {
		t.Fatalf("fallback count: %d", snap.FallbackCount)
	}
}

func TestChainExhaustedSurfacesSingleErrorEvent(t *testing.T) {
	fx := newFixture(t)
	boom := &adapter.BackendError{Status: 500, Err: errors.New("boom")}
	fx.mock.Fail("general-1", boom)
	fx.mock.Fail("general-2", boom)

	var sink stream.CollectSink
	_, err := fx.gateway.Handle(context.Background(), request("Summarize the plot of a novel I have not named yet, in three paragraphs please."), &sink)
	var exhausted *route.ChainExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ChainExhaustedError, got %v", err)
	}

	if len(sink.Events) != 1 || sink.Events[0].Type != stream.EventError {
		t.Fatalf("expected exactly one terminal error event, got %+v", sink.Events)
	}
}

func TestVisionRequestRoutesToVisionModel(t *testing.T) {
	fx := newFixture(t)
	fx.mock.Respond("vision-1", "a cat on a sofa")

	req := &schema.Request{Messages: []schema.Message{{
		Role: schema.RoleUser,
		Parts: []schema.ContentPart{
			{Kind: schema.ContentText, Text: "what is in this picture?"},
			{Kind: schema.ContentImage, ImageURL: "https://example.com/cat.png"},
		},
	}}}

	var sink stream.CollectSink
	result, err := fx.gateway.Handle(context.Background(), req, &sink)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if result.Decision.Category != registry.TaskVision {
		t.Fatalf("category: %s", result.Decision.Category)
	}
	for _, spec := range result.Decision.Candidates() {
		if !spec.SupportsVision {
			t.Fatalf("text model %s in vision chain", spec.ID)
		}
	}
	if sink.Content() != "a cat on a sofa" {
		t.Fatalf("content: %q", sink.Content())
	}
}

func TestAgentPathWithoutRunner(t *testing.T) {
	fx := newFixture(t)
	g := New(classify.NewComplexity(nil), classify.NewTask(nil), fx.engine, nil)

	var sink stream.CollectSink
	_, err := g.Handle(context.Background(), request("Generate an image of a harbor"), &sink)
	if err == nil {
		t.Fatalf("expected error without agent backend")
	}
	if len(sink.Events) != 1 || sink.Events[0].Type != stream.EventError {
		t.Fatalf("expected single error event, got %+v", sink.Events)
	}
}
