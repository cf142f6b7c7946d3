package tools

import (
	"context"

	"github.com/effective-security/mailagent/pkg/llmutils"
	"github.com/invopop/jsonschema"
)

// ITool is a tool the model may request by name.
type ITool interface {
	// Name returns the name of the Tool, unique within a Registry.
	Name() string
	// Description returns the description of the tool, to be used in the prompt.
	// Should not exceed LLM model limit.
	Description() string
	// Parameters returns the JSON schema of the arguments.
	Parameters() *jsonschema.Schema

	// Bind decodes and validates the arguments, a JSON object encoded as string.
	// It has no side effects: the returned Invocation runs the tool.
	// Errors are marked with ErrInvalidArguments.
	Bind(arguments string) (Invocation, error)
}

// Invocation is a tool call with decoded arguments, ready to run.
type Invocation func(ctx context.Context) (string, error)

// Callback receives tool execution events.
type Callback interface {
	OnToolStart(ctx context.Context, tool ITool, input string)
	OnToolEnd(ctx context.Context, tool ITool, input string, output string)
	OnToolError(ctx context.Context, tool ITool, input string, err error)
}

type toolDescription struct {
	Name        string `json:"Name" yaml:"Name"`
	Description string `json:"Description" yaml:"Description"`
}

type toolsDescription struct {
	Tools []toolDescription `json:"Tools" yaml:"Tools"`
}

// GetDescriptions returns the names and descriptions of the tools
// as a fenced JSON block.
func GetDescriptions(list ...ITool) string {
	var d toolsDescription
	for _, tool := range list {
		d.Tools = append(d.Tools, toolDescription{
			Name:        tool.Name(),
			Description: tool.Description(),
		})
	}
	return llmutils.BackticksJSON(llmutils.ToJSONIndent(d))
}
