package classify

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/zen-systems/agentgate/pkg/schema"
)

type fakeVerifier struct {
	calls        int
	verdict      *Verdict
	pick         *CategoryPick
	err          error
	categoryErr  error
	blockForever bool
}

func (f *fakeVerifier) VerifyComplexity(ctx context.Context, prompt string) (*Verdict, error) {
	f.calls++
	if f.blockForever {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.verdict, nil
}

func (f *fakeVerifier) ClassifyCategory(ctx context.Context, prompt string) (*CategoryPick, error) {
	f.calls++
	if f.blockForever {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.categoryErr != nil {
		return nil, f.categoryErr
	}
	return f.pick, nil
}

func textRequest(text string) *schema.Request {
	return &schema.Request{Messages: []schema.Message{schema.TextMessage(schema.RoleUser, text)}}
}

func TestKeywordMatchIsAuthoritative(t *testing.T) {
	verifier := &fakeVerifier{verdict: &Verdict{NeedsAgent: false}}
	c := NewComplexity(verifier)

	inputs := []string{
		"Generate an image of a futuristic city",
		"please run the tests and report failures",
		"can you scrape that listing site for me",
		"create a file named notes.txt with my agenda",
	}
	for _, input := range inputs {
		analysis := c.Classify(context.Background(), textRequest(input))
		if !analysis.NeedsAgent {
			t.Fatalf("%q: expected needs_agent", input)
		}
		if analysis.Reason != ReasonKeywordMatch {
			t.Fatalf("%q: reason %q", input, analysis.Reason)
		}
		if len(analysis.MatchedKeywords) == 0 {
			t.Fatalf("%q: no matched keywords recorded", input)
		}
	}
	if verifier.calls != 0 {
		t.Fatalf("keyword path made %d verification calls", verifier.calls)
	}
}

func TestKeywordPathDeterministic(t *testing.T) {
	c := NewComplexity(nil)
	req := textRequest("Generate an image of a castle and also compile the assets")

	first := c.Classify(context.Background(), req)
	second := c.Classify(context.Background(), req)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("keyword path not deterministic:\n%+v\n%+v", first, second)
	}
}

func TestURLInteractionOverridesVerifier(t *testing.T) {
	// The verifier would say "simple"; the URL heuristic must win
	// without even consulting it.
	verifier := &fakeVerifier{verdict: &Verdict{NeedsAgent: false, Reason: "looks conversational"}}
	c := NewComplexity(verifier)

	analysis := c.Classify(context.Background(), textRequest("test https://example.com in a browser"))
	if !analysis.NeedsAgent {
		t.Fatalf("expected needs_agent")
	}
	if analysis.Reason != ReasonURLInteraction {
		t.Fatalf("reason: %q", analysis.Reason)
	}
	if verifier.calls != 0 {
		t.Fatalf("verifier consulted %d times", verifier.calls)
	}
}

func TestTrivialShortCircuit(t *testing.T) {
	verifier := &fakeVerifier{verdict: &Verdict{NeedsAgent: true}}
	c := NewComplexity(verifier)

	analysis := c.Classify(context.Background(), textRequest("What is 2+2?"))
	if analysis.NeedsAgent {
		t.Fatalf("trivial prompt routed to agent")
	}
	if analysis.Reason != ReasonTrivial {
		t.Fatalf("reason: %q", analysis.Reason)
	}
	if verifier.calls != 0 {
		t.Fatalf("verifier consulted for trivial prompt")
	}
}

func TestConservativeDefaultOnTimeout(t *testing.T) {
	verifier := &fakeVerifier{blockForever: true}
	c := NewComplexity(verifier, WithVerifyTimeout(10*time.Millisecond))

	analysis := c.Classify(context.Background(), textRequest(longAmbiguousPrompt()))
	if !analysis.NeedsAgent {
		t.Fatalf("timeout must fail toward agent path")
	}
	if !strings.HasPrefix(analysis.Reason, "conservative_default") {
		t.Fatalf("reason: %q", analysis.Reason)
	}
	if !strings.Contains(analysis.Reason, "timeout") {
		t.Fatalf("cause missing from reason: %q", analysis.Reason)
	}
}

func TestConservativeDefaultOnError(t *testing.T) {
	verifier := &fakeVerifier{err: context.Canceled}
	c := NewComplexity(verifier)

	analysis := c.Classify(context.Background(), textRequest(longAmbiguousPrompt()))
	if !analysis.NeedsAgent {
		t.Fatalf("verifier error must fail toward agent path")
	}
	if !strings.HasPrefix(analysis.Reason, "conservative_default") {
		t.Fatalf("reason: %q", analysis.Reason)
	}
}

func TestConservativeDefaultOnMissingCredentials(t *testing.T) {
	for _, c := range []*Complexity{
		NewComplexity(nil),
		NewComplexity(&fakeVerifier{err: ErrNoCredentials}),
	} {
		analysis := c.Classify(context.Background(), textRequest(longAmbiguousPrompt()))
		if !analysis.NeedsAgent {
			t.Fatalf("missing credentials must fail toward agent path")
		}
		if !strings.Contains(analysis.Reason, "no_credentials") {
			t.Fatalf("reason: %q", analysis.Reason)
		}
	}
}

func TestCleanVerdictPassedThrough(t *testing.T) {
	verifier := &fakeVerifier{verdict: &Verdict{NeedsAgent: false, Reason: "pure prose question"}}
	c := NewComplexity(verifier)

	analysis := c.Classify(context.Background(), textRequest(longAmbiguousPrompt()))
	if analysis.NeedsAgent {
		t.Fatalf("clean negative verdict ignored")
	}
	if analysis.Reason != "pure prose question" {
		t.Fatalf("reason: %q", analysis.Reason)
	}
}

func TestVerdictCached(t *testing.T) {
	verifier := &fakeVerifier{verdict: &Verdict{NeedsAgent: false, Reason: "cached"}}
	c := NewComplexity(verifier)
	req := textRequest(longAmbiguousPrompt())

	c.Classify(context.Background(), req)
	c.Classify(context.Background(), req)
	if verifier.calls != 1 {
		t.Fatalf("expected 1 verification call, got %d", verifier.calls)
	}
}

func TestAnalysisRecordsImages(t *testing.T) {
	req := &schema.Request{Messages: []schema.Message{{
		Role: schema.RoleUser,
		Parts: []schema.ContentPart{
			{Kind: schema.ContentText, Text: "hello"},
			{Kind: schema.ContentImage, ImageURL: "https://example.com/cat.png"},
			{Kind: schema.ContentImage, ImageURL: "https://example.com/dog.png"},
		},
	}}}

	c := NewComplexity(nil)
	analysis := c.Classify(context.Background(), req)
	if !analysis.HasImages || analysis.ImageCount != 2 {
		t.Fatalf("images not recorded: %+v", analysis)
	}
}

// longAmbiguousPrompt is long enough to dodge the trivial short-circuit
// and contains no keywords, URL, or complexity verbs.
func longAmbiguousPrompt() string {
	return "Could you help me understand the historical significance of the " +
		"Bretton Woods agreement and how it shaped postwar monetary policy in Europe?"
}
