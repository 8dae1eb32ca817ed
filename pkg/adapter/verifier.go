package adapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/zen-systems/agentgate/pkg/classify"
)

// DefaultVerifierModel is the fast auxiliary model used for
// classification calls when none is configured.
const DefaultVerifierModel = "gpt-5.2-instant"

const (
	complexityTool = "record_complexity"
	categoryTool   = "record_category"
)

// OpenAIVerifier implements classify.Verifier with tool-call
// constrained responses: the model must answer by calling a function
// whose parameter schema is derived from the verdict structs, so there
// is no free-form text to parse.
type OpenAIVerifier struct {
	client openai.Client
	model  string
}

// NewOpenAIVerifier creates a verifier over a fast auxiliary model.
func NewOpenAIVerifier(apiKey, model string) (*OpenAIVerifier, error) {
	if apiKey == "" {
		return nil, classify.ErrNoCredentials
	}
	if model == "" {
		model = DefaultVerifierModel
	}
	return &OpenAIVerifier{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}, nil
}

// VerifyComplexity asks the auxiliary model whether the prompt needs
// agent execution.
func (v *OpenAIVerifier) VerifyComplexity(ctx context.Context, prompt string) (*classify.Verdict, error) {
	system := "Decide whether the user request requires a tool-using agent " +
		"(code execution, file access, web browsing, media generation) or can be " +
		"answered directly by a language model. Record your decision with the tool."

	args, err := v.call(ctx, system, prompt, complexityTool,
		"Record whether the request needs agent execution.", classify.VerdictSchema())
	if err != nil {
		return nil, err
	}

	var verdict classify.Verdict
	if err := json.Unmarshal([]byte(args), &verdict); err != nil {
		return nil, fmt.Errorf("malformed complexity verdict: %w", err)
	}
	return &verdict, nil
}

// ClassifyCategory asks the auxiliary model which model category best
// serves the prompt.
func (v *OpenAIVerifier) ClassifyCategory(ctx context.Context, prompt string) (*classify.CategoryPick, error) {
	system := "Classify the user request into exactly one model category and " +
		"record it with the tool, including your confidence."

	args, err := v.call(ctx, system, prompt, categoryTool,
		"Record the best model category for the request.", classify.CategoryPickSchema())
	if err != nil {
		return nil, err
	}

	var pick classify.CategoryPick
	if err := json.Unmarshal([]byte(args), &pick); err != nil {
		return nil, fmt.Errorf("malformed category pick: %w", err)
	}
	return &pick, nil
}

// call issues one forced tool call and returns the raw arguments JSON.
func (v *OpenAIVerifier) call(ctx context.Context, system, prompt, tool, description string, schema *jsonschema.Schema) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(v.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(prompt),
		},
		Tools: []openai.ChatCompletionToolParam{{
			Function: openai.FunctionDefinitionParam{
				Name:        tool,
				Description: openai.String(description),
				Parameters:  toFunctionParameters(schema),
			},
		}},
		ToolChoice: openai.ChatCompletionToolChoiceOptionUnionParam{
			OfChatCompletionNamedToolChoice: &openai.ChatCompletionNamedToolChoiceParam{
				Function: openai.ChatCompletionNamedToolChoiceFunctionParam{Name: tool},
			},
		},
	}

	resp, err := v.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("verifier returned no choices")
	}
	calls := resp.Choices[0].Message.ToolCalls
	if len(calls) == 0 {
		return "", fmt.Errorf("verifier made no tool call")
	}
	return calls[0].Function.Arguments, nil
}

func toFunctionParameters(schema *jsonschema.Schema) openai.FunctionParameters {
	data, err := json.Marshal(schema)
	if err != nil {
		return openai.FunctionParameters{}
	}
	var params map[string]any
	if err := json.Unmarshal(data, &params); err != nil {
		return openai.FunctionParameters{}
	}
	return openai.FunctionParameters(params)
}
