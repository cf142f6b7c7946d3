package llms

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	xslices "github.com/effective-security/x/slices"
)

// Role is the author of a chat message.
type Role string

const (
	// RoleAI is a message produced by the model.
	RoleAI Role = "ai"
	// RoleHuman is a message sent by the user.
	RoleHuman Role = "human"
	// RoleSystem is a system instruction. It is sent to the model,
	// but never appended to a transcript by the agent.
	RoleSystem Role = "system"
	// RoleTool is the observation produced by a tool.
	RoleTool Role = "tool"
)

// Message is one entry of a conversation: a role and a sequence of parts.
// An AI message may carry ToolCall parts, a tool message carries exactly one
// ToolCallResponse part.
type Message struct {
	Role  Role          `json:"role"`
	Parts []ContentPart `json:"parts"`
}

// ContentPart is an interface all parts of content have to implement.
type ContentPart interface {
	isPart()
}

// TextPart creates TextContent from a given string.
func TextPart(s string) TextContent {
	return TextContent{Text: s}
}

// TextContent is content with some text.
type TextContent struct {
	Text string `json:"text"`
}

func (tc TextContent) String() string {
	return tc.Text
}

func (TextContent) isPart() {}

// FunctionCall is the name and arguments of a function call.
type FunctionCall struct {
	// The name of the function to call.
	Name string `json:"name"`
	// The arguments to pass to the function, as a JSON object encoded as string.
	Arguments string `json:"arguments"`
}

// ToolCall is a call to a tool (as requested by the model) that should be executed.
type ToolCall struct {
	// ID is the unique identifier of the tool call.
	ID string `json:"id"`
	// Type is the type of the tool call. Typically, this would be "function".
	Type string `json:"type"`
	// FunctionCall is the function call to be executed.
	FunctionCall *FunctionCall `json:"function,omitempty"`
}

// Name returns the name of the requested tool.
func (tc ToolCall) Name() string {
	if tc.FunctionCall == nil {
		return ""
	}
	return tc.FunctionCall.Name
}

// Arguments returns the raw JSON arguments of the call.
func (tc ToolCall) Arguments() string {
	if tc.FunctionCall == nil {
		return ""
	}
	return tc.FunctionCall.Arguments
}

func (tc ToolCall) String() string {
	return fmt.Sprintf("ToolCall: %s (%s), input: %s", tc.ID, tc.Name(), tc.Arguments())
}

func (ToolCall) isPart() {}

// ToolCallResponse is the response returned by a tool call.
type ToolCallResponse struct {
	// ToolCallID is the ID of the tool call this response is for.
	ToolCallID string `json:"tool_call_id"`
	// Name is the name of the tool that was called.
	Name string `json:"name"`
	// Content is the textual content of the response.
	Content string `json:"content"`
}

func (tc ToolCallResponse) String() string {
	return fmt.Sprintf("ToolCallResponse: %s (%s), response size: %d", tc.ToolCallID, tc.Name, len(tc.Content))
}

func (ToolCallResponse) isPart() {}

// ContentResponse is the response returned by a GenerateContent call.
// It can potentially return multiple content choices.
type ContentResponse struct {
	Choices []*ContentChoice
}

// ContentChoice is one of the response choices returned by GenerateContent
// calls.
type ContentChoice struct {
	// Content is the textual content of a response
	Content string `json:"content"`

	// StopReason is the reason the model stopped generating output.
	StopReason string `json:"stop_reason"`

	// GenerationInfo is arbitrary information the model adds to the response,
	// such as token usage.
	GenerationInfo map[string]any `json:"generation_info"`

	// ToolCalls is a list of tool calls the model asks to invoke.
	ToolCalls []ToolCall `json:"tool_calls"`

	// ReasoningContent is returned by reasoning models before the final answer.
	ReasoningContent string `json:"reasoning_content"`
}

// MessageFromParts is a helper function to create a Message with a role and a
// list of parts.
func MessageFromParts(role Role, parts ...ContentPart) Message {
	return Message{
		Role:  role,
		Parts: parts,
	}
}

// MessageFromTextParts is a helper function to create a Message with a role and a
// list of text parts.
func MessageFromTextParts(role Role, parts ...string) Message {
	result := Message{
		Role:  role,
		Parts: make([]ContentPart, 0, len(parts)),
	}
	for _, part := range parts {
		result.Parts = append(result.Parts, TextPart(part))
	}
	return result
}

// MessageFromToolCalls creates an AI message carrying the tool calls,
// optionally preceded by the text the model returned with them.
func MessageFromToolCalls(text string, toolCalls ...ToolCall) Message {
	result := Message{
		Role:  RoleAI,
		Parts: make([]ContentPart, 0, len(toolCalls)+1),
	}
	if text != "" {
		result.Parts = append(result.Parts, TextPart(text))
	}
	for _, toolCall := range toolCalls {
		tc := ToolCall{
			ID:   toolCall.ID,
			Type: toolCall.Type,
		}
		if toolCall.FunctionCall != nil {
			tc.FunctionCall = &FunctionCall{
				Name:      toolCall.FunctionCall.Name,
				Arguments: toolCall.FunctionCall.Arguments,
			}
		}
		result.Parts = append(result.Parts, tc)
	}
	return result
}

// MessageFromToolResponse creates a tool message for the response.
func MessageFromToolResponse(toolResponse ToolCallResponse) Message {
	return MessageFromParts(RoleTool, toolResponse)
}

// ToolCalls returns the tool calls carried by the message, in order.
func (m Message) ToolCalls() []ToolCall {
	var list []ToolCall
	for _, p := range m.Parts {
		if tc, ok := p.(ToolCall); ok {
			list = append(list, tc)
		}
	}
	return list
}

// HasToolCalls returns true if the message carries at least one tool call.
func (m Message) HasToolCalls() bool {
	return slices.ContainsFunc(m.Parts, func(p ContentPart) bool {
		_, ok := p.(ToolCall)
		return ok
	})
}

// ToolResponse returns the tool response carried by a tool message.
func (m Message) ToolResponse() (ToolCallResponse, bool) {
	for _, p := range m.Parts {
		if tr, ok := p.(ToolCallResponse); ok {
			return tr, true
		}
	}
	return ToolCallResponse{}, false
}

// Text returns the text parts of the message joined with new lines.
// Tool calls and responses are ignored, except for tool messages,
// where the response content is returned.
func (m Message) Text() string {
	var list []string
	for _, p := range m.Parts {
		switch typ := p.(type) {
		case TextContent:
			list = append(list, typ.Text)
		case ToolCallResponse:
			list = append(list, typ.Content)
		}
	}
	return strings.Join(list, "\n")
}

// GetContent returns a printable rendering of all parts.
func (m Message) GetContent() string {
	var buf strings.Builder
	lastNewLine := true
	for _, p := range m.Parts {
		if !lastNewLine {
			buf.WriteString("\n")
		}
		switch typ := p.(type) {
		case TextContent:
			buf.WriteString(typ.Text)
			lastNewLine = strings.HasSuffix(typ.Text, "\n")
		case ToolCall:
			buf.WriteString("Tool Call: ")
			js, _ := json.Marshal(typ)
			buf.Write(js)
			buf.WriteString("\n")
			lastNewLine = true
		case ToolCallResponse:
			buf.WriteString("Response: ")
			js, _ := json.Marshal(typ)
			buf.Write(js)
			buf.WriteString("\n")
			lastNewLine = true
		}
	}
	if !lastNewLine {
		buf.WriteString("\n")
	}
	return buf.String()
}

// UnansweredToolCalls returns the tool calls in the transcript that have no
// tool message with the matching ID after them.
func UnansweredToolCalls(messages []Message) []ToolCall {
	var pending []ToolCall
	for _, m := range messages {
		switch m.Role {
		case RoleAI:
			pending = append(pending, m.ToolCalls()...)
		case RoleTool:
			if tr, ok := m.ToolResponse(); ok {
				pending = slices.DeleteFunc(pending, func(tc ToolCall) bool {
					return tc.ID == tr.ToolCallID
				})
			}
		}
	}
	return pending
}

// ValidateToolCall checks that a tool call requested by a model names a
// function and carries arguments encoded as a JSON object.
// Errors are marked with ErrMalformedResponse.
func ValidateToolCall(tc ToolCall) error {
	if tc.Name() == "" {
		return errors.Wrapf(ErrMalformedResponse, "tool call %q has no function name", tc.ID)
	}
	args := strings.TrimSpace(tc.Arguments())
	if args == "" {
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(args), &obj); err != nil || obj == nil {
		return errors.Wrapf(ErrMalformedResponse, "tool call %q to %s: arguments are not a JSON object: %s",
			tc.ID, tc.Name(), xslices.StringUpto(args, 64))
	}
	return nil
}
