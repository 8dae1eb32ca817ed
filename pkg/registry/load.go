package registry

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileCatalog mirrors the models.yaml layout.
type fileCatalog struct {
	FallbackCap int         `yaml:"fallback_cap,omitempty"`
	Models      []fileModel `yaml:"models"`
}

type fileModel struct {
	ID              string   `yaml:"id"`
	DisplayName     string   `yaml:"display_name,omitempty"`
	Provider        string   `yaml:"provider"`
	TaskCategories  []string `yaml:"task_categories"`
	Priority        int      `yaml:"priority"`
	MaxOutputTokens int      `yaml:"max_output_tokens,omitempty"`
	SupportsVision  bool     `yaml:"supports_vision,omitempty"`
	CallTimeoutMs   int      `yaml:"call_timeout_ms,omitempty"`
	Temperature     float64  `yaml:"temperature,omitempty"`
}

const (
	defaultCallTimeout     = 60 * time.Second
	defaultMaxOutputTokens = 4096
)

// LoadFile reads a model catalogue from a YAML file.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var catalog fileCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parse model catalogue %s: %w", path, err)
	}

	specs := make([]ModelSpec, 0, len(catalog.Models))
	for _, m := range catalog.Models {
		spec := ModelSpec{
			ID:              m.ID,
			DisplayName:     m.DisplayName,
			Provider:        m.Provider,
			Priority:        m.Priority,
			MaxOutputTokens: m.MaxOutputTokens,
			SupportsVision:  m.SupportsVision,
			Temperature:     m.Temperature,
			CallTimeout:     defaultCallTimeout,
		}
		if spec.DisplayName == "" {
			spec.DisplayName = m.ID
		}
		if spec.MaxOutputTokens <= 0 {
			spec.MaxOutputTokens = defaultMaxOutputTokens
		}
		if m.CallTimeoutMs > 0 {
			spec.CallTimeout = time.Duration(m.CallTimeoutMs) * time.Millisecond
		}
		for _, cat := range m.TaskCategories {
			parsed := ParseCategory(cat)
			if parsed == TaskUnknown {
				return nil, fmt.Errorf("model %q: unknown task category %q", m.ID, cat)
			}
			spec.TaskCategories = append(spec.TaskCategories, parsed)
		}
		specs = append(specs, spec)
	}

	var opts []Option
	if catalog.FallbackCap > 0 {
		opts = append(opts, WithFallbackCap(catalog.FallbackCap))
	}
	return New(specs, opts...)
}

// Default returns the built-in catalogue used when no models.yaml is
// present.
func Default() *Registry {
	r, err := New([]ModelSpec{
		{
			ID:              "claude-sonnet-4-20250514",
			DisplayName:     "Claude Sonnet 4",
			Provider:        "anthropic",
			TaskCategories:  []TaskCategory{TaskGeneralText, TaskProgramming, TaskCreative},
			Priority:        10,
			MaxOutputTokens: 8192,
			CallTimeout:     90 * time.Second,
			Temperature:     0.7,
		},
		{
			ID:              "gpt-5.2-thinking",
			DisplayName:     "GPT-5.2 Thinking",
			Provider:        "openai",
			TaskCategories:  []TaskCategory{TaskMathReasoning, TaskGeneralText},
			Priority:        20,
			MaxOutputTokens: 8192,
			CallTimeout:     120 * time.Second,
			Temperature:     0.2,
		},
		{
			ID:              "gpt-5.2-instant",
			DisplayName:     "GPT-5.2 Instant",
			Provider:        "openai",
			TaskCategories:  []TaskCategory{TaskSimpleText, TaskGeneralText},
			Priority:        30,
			MaxOutputTokens: 4096,
			CallTimeout:     30 * time.Second,
			Temperature:     0.7,
		},
		{
			ID:              "gpt-5.2-codex",
			DisplayName:     "GPT-5.2 Codex",
			Provider:        "openai",
			TaskCategories:  []TaskCategory{TaskProgramming},
			Priority:        40,
			MaxOutputTokens: 16384,
			CallTimeout:     120 * time.Second,
			Temperature:     0.1,
		},
		{
			ID:              "gemini-2.0-pro",
			DisplayName:     "Gemini 2.0 Pro",
			Provider:        "google",
			TaskCategories:  []TaskCategory{TaskVision, TaskGeneralText},
			Priority:        50,
			MaxOutputTokens: 8192,
			SupportsVision:  true,
			CallTimeout:     90 * time.Second,
			Temperature:     0.7,
		},
		{
			ID:              "gemini-2.0-flash",
			DisplayName:     "Gemini 2.0 Flash",
			Provider:        "google",
			TaskCategories:  []TaskCategory{TaskVision, TaskSimpleText},
			Priority:        60,
			MaxOutputTokens: 4096,
			SupportsVision:  true,
			CallTimeout:     30 * time.Second,
			Temperature:     0.7,
		},
	})
	if err != nil {
		// The built-in catalogue is validated by tests; a failure here
		// is a programming error.
		panic(err)
	}
	return r
}
