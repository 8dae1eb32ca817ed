package classify

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/zen-systems/agentgate/pkg/registry"
	"github.com/zen-systems/agentgate/pkg/schema"
)

// Fast-path confidence levels for the heuristic outcomes.
const (
	visionConfidence  = 1.0
	simpleConfidence  = 0.8
	defaultConfidence = 0.5
)

// Task picks the model category for a fast-path request. It never
// fails: any classification trouble lands on general_text, a safe
// non-specialized category.
type Task struct {
	verifier Verifier
	timeout  time.Duration
	log      zerolog.Logger
}

// TaskOption configures a Task classifier.
type TaskOption func(*Task)

// WithTaskTimeout overrides the classification call bound.
func WithTaskTimeout(d time.Duration) TaskOption {
	return func(t *Task) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithTaskLogger sets the logger.
func WithTaskLogger(log zerolog.Logger) TaskOption {
	return func(t *Task) { t.log = log }
}

// NewTask creates a task classifier. A nil verifier degrades every
// non-heuristic prompt to general_text.
func NewTask(verifier Verifier, opts ...TaskOption) *Task {
	t := &Task{
		verifier: verifier,
		timeout:  DefaultVerifyTimeout,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Classify returns the best category for the request plus a confidence.
func (t *Task) Classify(ctx context.Context, req *schema.Request) (registry.TaskCategory, float64) {
	if req.HasImages() {
		return registry.TaskVision, visionConfidence
	}

	text := req.Text()
	if isSimpleText(text) {
		return registry.TaskSimpleText, simpleConfidence
	}

	if t.verifier == nil {
		return registry.TaskGeneralText, defaultConfidence
	}

	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	pick, err := t.verifier.ClassifyCategory(callCtx, text)
	if err != nil || pick == nil {
		t.log.Warn().Err(err).Msg("task classification failed; defaulting to general_text")
		return registry.TaskGeneralText, defaultConfidence
	}

	category := registry.ParseCategory(pick.Category)
	if category == registry.TaskUnknown {
		t.log.Warn().Str("category", pick.Category).Msg("task classifier returned unknown category")
		return registry.TaskGeneralText, defaultConfidence
	}
	confidence := pick.Confidence
	if confidence < 0 || confidence > 1 {
		return registry.TaskGeneralText, defaultConfidence
	}
	return category, confidence
}
