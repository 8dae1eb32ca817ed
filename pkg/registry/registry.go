// Package registry holds the immutable catalogue of backend models the
// router can dispatch to. The catalogue is loaded once at process start
// and is read-only afterwards, so concurrent lookups need no locking.
package registry

import (
	"fmt"
	"sort"
	"time"
)

// TaskCategory classifies what a model is specialized for.
type TaskCategory string

const (
	TaskSimpleText    TaskCategory = "simple_text"
	TaskGeneralText   TaskCategory = "general_text"
	TaskMathReasoning TaskCategory = "math_reasoning"
	TaskProgramming   TaskCategory = "programming"
	TaskCreative      TaskCategory = "creative"
	TaskVision        TaskCategory = "vision"
	TaskUnknown       TaskCategory = "unknown"
)

// Categories lists every routable category, in a stable order.
func Categories() []TaskCategory {
	return []TaskCategory{
		TaskSimpleText, TaskGeneralText, TaskMathReasoning,
		TaskProgramming, TaskCreative, TaskVision,
	}
}

// ParseCategory maps a string to a TaskCategory, defaulting to unknown.
func ParseCategory(s string) TaskCategory {
	switch TaskCategory(s) {
	case TaskSimpleText, TaskGeneralText, TaskMathReasoning,
		TaskProgramming, TaskCreative, TaskVision:
		return TaskCategory(s)
	}
	return TaskUnknown
}

// ModelSpec describes one backend model. Specs are immutable once loaded;
// request-time code must never mutate them.
type ModelSpec struct {
	ID              string
	DisplayName     string
	Provider        string
	TaskCategories  []TaskCategory
	Priority        int
	MaxOutputTokens int
	SupportsVision  bool
	CallTimeout     time.Duration
	Temperature     float64
}

// ServesCategory reports whether the spec is eligible for a category.
func (s ModelSpec) ServesCategory(cat TaskCategory) bool {
	for _, c := range s.TaskCategories {
		if c == cat {
			return true
		}
	}
	return false
}

// DefaultFallbackCap bounds the fallback chain length per request.
const DefaultFallbackCap = 3

// Registry is the priority-ordered model catalogue.
type Registry struct {
	specs       []ModelSpec
	fallbackCap int
}

// Option configures a Registry.
type Option func(*Registry)

// WithFallbackCap overrides the fallback chain cap.
func WithFallbackCap(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.fallbackCap = n
		}
	}
}

// New builds a Registry from specs, sorted by priority (stable, so the
// input order breaks ties).
func New(specs []ModelSpec, opts ...Option) (*Registry, error) {
	r := &Registry{
		specs:       make([]ModelSpec, len(specs)),
		fallbackCap: DefaultFallbackCap,
	}
	copy(r.specs, specs)
	sort.SliceStable(r.specs, func(i, j int) bool {
		return r.specs[i].Priority < r.specs[j].Priority
	})
	for _, opt := range opts {
		opt(r)
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) validate() error {
	if len(r.specs) == 0 {
		return fmt.Errorf("registry: no models configured")
	}
	seen := make(map[string]bool, len(r.specs))
	hasGeneral := false
	for _, s := range r.specs {
		if s.ID == "" {
			return fmt.Errorf("registry: model with empty id")
		}
		if seen[s.ID] {
			return fmt.Errorf("registry: duplicate model id %q", s.ID)
		}
		seen[s.ID] = true
		if s.Priority < 0 {
			return fmt.Errorf("registry: model %q has negative priority", s.ID)
		}
		if s.ServesCategory(TaskGeneralText) {
			hasGeneral = true
		}
	}
	if !hasGeneral {
		return fmt.Errorf("registry: no general_text-capable model configured")
	}
	return nil
}

// Models returns the full catalogue in priority order.
func (r *Registry) Models() []ModelSpec {
	out := make([]ModelSpec, len(r.specs))
	copy(out, r.specs)
	return out
}

// Lookup returns the spec for an id.
func (r *Registry) Lookup(id string) (ModelSpec, bool) {
	for _, s := range r.specs {
		if s.ID == id {
			return s, true
		}
	}
	return ModelSpec{}, false
}

// GetModelForTask returns the lowest-priority spec eligible for the
// category. When nothing matches exactly it falls back to the best
// general_text-capable spec, which validation guarantees exists.
func (r *Registry) GetModelForTask(cat TaskCategory) ModelSpec {
	for _, s := range r.specs {
		if s.ServesCategory(cat) {
			return s
		}
	}
	for _, s := range r.specs {
		if s.ServesCategory(TaskGeneralText) {
			return s
		}
	}
	// Unreachable after validation.
	return r.specs[0]
}

// GetFallbackModels returns up to the configured cap of alternates for a
// primary, in priority order. Vision requests only fall back to
// vision-capable specs and text requests only to text specs; crossing
// that line would silently change what the model can see.
func (r *Registry) GetFallbackModels(primaryID string, requiresVision bool) []ModelSpec {
	var out []ModelSpec
	for _, s := range r.specs {
		if s.ID == primaryID {
			continue
		}
		if s.SupportsVision != requiresVision {
			continue
		}
		out = append(out, s)
		if len(out) == r.fallbackCap {
			break
		}
	}
	return out
}
