package classify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zen-systems/agentgate/pkg/registry"
	"github.com/zen-systems/agentgate/pkg/schema"
)

func imageRequest() *schema.Request {
	return &schema.Request{Messages: []schema.Message{{
		Role: schema.RoleUser,
		Parts: []schema.ContentPart{
			{Kind: schema.ContentText, Text: "what is in this picture?"},
			{Kind: schema.ContentImage, ImageURL: "https://example.com/cat.png"},
		},
	}}}
}

func TestImagesForceVision(t *testing.T) {
	verifier := &fakeVerifier{pick: &CategoryPick{Category: "programming", Confidence: 0.9}}
	task := NewTask(verifier)

	cat, conf := task.Classify(context.Background(), imageRequest())
	if cat != registry.TaskVision || conf != 1.0 {
		t.Fatalf("got %s/%.2f", cat, conf)
	}
	if verifier.calls != 0 {
		t.Fatalf("vision shortcut made %d calls", verifier.calls)
	}
}

func TestShortPlainTextIsSimple(t *testing.T) {
	verifier := &fakeVerifier{}
	task := NewTask(verifier)

	cat, conf := task.Classify(context.Background(), textRequest("What is 2+2?"))
	if cat != registry.TaskSimpleText || conf != 0.8 {
		t.Fatalf("got %s/%.2f", cat, conf)
	}
	if verifier.calls != 0 {
		t.Fatalf("heuristic path made %d calls", verifier.calls)
	}
}

func TestTaskVocabularySkipsSimpleHeuristic(t *testing.T) {
	verifier := &fakeVerifier{pick: &CategoryPick{Category: "programming", Confidence: 0.92}}
	task := NewTask(verifier)

	cat, conf := task.Classify(context.Background(), textRequest("implement a quicksort"))
	if cat != registry.TaskProgramming {
		t.Fatalf("category: %s", cat)
	}
	if conf != 0.92 {
		t.Fatalf("confidence: %.2f", conf)
	}
	if verifier.calls != 1 {
		t.Fatalf("expected 1 classification call, got %d", verifier.calls)
	}
}

func TestClassifierFailureDefaultsToGeneral(t *testing.T) {
	cases := []*fakeVerifier{
		{categoryErr: errors.New("transport down")},
		{pick: &CategoryPick{Category: "telepathy", Confidence: 0.9}},
		{pick: &CategoryPick{Category: "programming", Confidence: 1.7}},
		{pick: nil},
	}
	for i, verifier := range cases {
		task := NewTask(verifier)
		cat, conf := task.Classify(context.Background(), textRequest("implement a quicksort"))
		if cat != registry.TaskGeneralText || conf != 0.5 {
			t.Fatalf("case %d: got %s/%.2f", i, cat, conf)
		}
	}
}

func TestClassifierTimeoutDefaultsToGeneral(t *testing.T) {
	verifier := &fakeVerifier{blockForever: true}
	task := NewTask(verifier, WithTaskTimeout(10*time.Millisecond))

	cat, conf := task.Classify(context.Background(), textRequest("implement a quicksort"))
	if cat != registry.TaskGeneralText || conf != 0.5 {
		t.Fatalf("got %s/%.2f", cat, conf)
	}
}

func TestNilVerifierDefaultsToGeneral(t *testing.T) {
	task := NewTask(nil)
	cat, conf := task.Classify(context.Background(), textRequest("implement a quicksort"))
	if cat != registry.TaskGeneralText || conf != 0.5 {
		t.Fatalf("got %s/%.2f", cat, conf)
	}
}
