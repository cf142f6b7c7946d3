package openai

import (
	"github.com/cockroachdb/errors"
	"github.com/effective-security/mailagent/pkg/llms"
)

const (
	roleSystem    = "system"
	roleAssistant = "assistant"
	roleUser      = "user"
	roleTool      = "tool"
)

type chatRequest struct {
	Model             string         `json:"model"`
	Messages          []*chatMessage `json:"messages"`
	Temperature       float64        `json:"temperature"`
	MaxTokens         int            `json:"max_tokens,omitempty"`
	Stop              []string       `json:"stop,omitempty"`
	Seed              int            `json:"seed,omitempty"`
	Tools             []llms.Tool    `json:"tools,omitempty"`
	ToolChoice        any            `json:"tool_choice,omitempty"`
	ParallelToolCalls *bool          `json:"parallel_tool_calls,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

type chatMessage struct {
	Role string `json:"role"`
	// Content is null for an assistant message carrying only tool calls.
	Content    *string        `json:"content"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Name       string         `json:"name,omitempty"`
}

type chatToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int    `json:"index"`
	FinishReason string `json:"finish_reason"`
	Message      struct {
		Role             string         `json:"role"`
		Content          string         `json:"content"`
		ReasoningContent string         `json:"reasoning_content"`
		ToolCalls        []chatToolCall `json:"tool_calls"`
	} `json:"message"`
}

type chatUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

func toChatMessages(messages []llms.Message) ([]*chatMessage, error) {
	chatMsgs := make([]*chatMessage, 0, len(messages))
	for _, mc := range messages {
		msg := &chatMessage{}
		switch mc.Role {
		case llms.RoleSystem:
			msg.Role = roleSystem
		case llms.RoleHuman:
			msg.Role = roleUser
		case llms.RoleAI:
			msg.Role = roleAssistant
		case llms.RoleTool:
			msg.Role = roleTool
			tr, ok := mc.ToolResponse()
			if !ok || len(mc.Parts) != 1 {
				return nil, errors.Errorf("expected exactly one ToolCallResponse part for role %v, got %d parts", mc.Role, len(mc.Parts))
			}
			msg.ToolCallID = tr.ToolCallID
			msg.Name = tr.Name
			msg.Content = &tr.Content
			chatMsgs = append(chatMsgs, msg)
			continue
		default:
			return nil, errors.Wrapf(llms.ErrUnexpectedRole, "%q", mc.Role)
		}

		for _, tc := range mc.ToolCalls() {
			msg.ToolCalls = append(msg.ToolCalls, chatToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: chatFunction{
					Name:      tc.Name(),
					Arguments: tc.Arguments(),
				},
			})
		}
		text := mc.Text()
		if text != "" || len(msg.ToolCalls) == 0 {
			msg.Content = &text
		}
		chatMsgs = append(chatMsgs, msg)
	}
	return chatMsgs, nil
}

func toChatTools(tools []llms.Tool) ([]llms.Tool, error) {
	for _, t := range tools {
		if t.Type != "function" || t.Function == nil {
			return nil, errors.Errorf("tool type %v not supported", t.Type)
		}
	}
	return tools, nil
}
