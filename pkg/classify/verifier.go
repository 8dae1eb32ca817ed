package classify

import (
	"context"
	"errors"

	"github.com/invopop/jsonschema"
)

// ErrNoCredentials is returned by a Verifier whose backing model has no
// usable credentials. The complexity classifier folds it into the
// conservative default rather than surfacing it.
var ErrNoCredentials = errors.New("classify: no credentials for verification model")

// Verdict is the structured decision returned by the complexity
// verification call.
type Verdict struct {
	NeedsAgent bool   `json:"needs_agent" jsonschema:"description=True when the request requires tool use or sandboxed execution"`
	Reason     string `json:"reason,omitempty" jsonschema:"description=Short justification for the decision"`
}

// CategoryPick is the structured decision returned by the task
// classification call.
type CategoryPick struct {
	Category   string  `json:"category" jsonschema:"enum=simple_text,enum=general_text,enum=math_reasoning,enum=programming,enum=creative,enum=vision"`
	Confidence float64 `json:"confidence" jsonschema:"minimum=0,maximum=1"`
}

// Verifier issues the bounded structured classification calls. Both
// calls use a tool/function-call constrained response; free-form text
// parsing is the implementation's problem, not the classifier's.
type Verifier interface {
	// VerifyComplexity decides whether the prompt needs the agent path.
	VerifyComplexity(ctx context.Context, prompt string) (*Verdict, error)
	// ClassifyCategory picks the model category for a fast-path prompt.
	ClassifyCategory(ctx context.Context, prompt string) (*CategoryPick, error)
}

// VerdictSchema returns the JSON schema for the complexity tool
// parameters.
func VerdictSchema() *jsonschema.Schema {
	return reflectSchema(&Verdict{})
}

// CategoryPickSchema returns the JSON schema for the task tool
// parameters.
func CategoryPickSchema() *jsonschema.Schema {
	return reflectSchema(&CategoryPick{})
}

func reflectSchema(v any) *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}
	return reflector.Reflect(v)
}
