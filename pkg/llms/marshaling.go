package llms

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// Transcript encoding.
// Every part is tagged with its type, so a transcript written by
// one run can be read back and continued by another.

const (
	partTypeText         = "text"
	partTypeToolCall     = "tool_call"
	partTypeToolResponse = "tool_response"
)

// partJSON is the union of all tagged part encodings.
type partJSON struct {
	Type         string            `json:"type"`
	Text         string            `json:"text,omitempty"`
	ToolCall     *toolCallJSON     `json:"tool_call,omitempty"`
	ToolResponse *toolResponseJSON `json:"tool_response,omitempty"`
}

// toolCallJSON keeps the field order: function, id, type
type toolCallJSON struct {
	FunctionCall *FunctionCall `json:"function"`
	ID           string        `json:"id"`
	Type         string        `json:"type"`
}

type toolResponseJSON struct {
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name"`
	Content    string `json:"content"`
}

// messageJSON accepts the short form {"role":"human","text":"..."}
// as well as the list of parts.
type messageJSON struct {
	Role  Role              `json:"role"`
	Text  string            `json:"text,omitempty"`
	Parts []json.RawMessage `json:"parts,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler for Message
func (m *Message) UnmarshalJSON(data []byte) error {
	var msg messageJSON
	if err := json.Unmarshal(data, &msg); err != nil {
		return errors.WithStack(err)
	}
	switch msg.Role {
	case RoleAI, RoleHuman, RoleSystem, RoleTool:
	default:
		return errors.Wrapf(ErrUnexpectedRole, "role %q", msg.Role)
	}

	m.Role = msg.Role
	m.Parts = nil

	if msg.Text != "" {
		m.Parts = []ContentPart{TextContent{Text: msg.Text}}
		return nil
	}

	for _, raw := range msg.Parts {
		var pj partJSON
		if err := json.Unmarshal(raw, &pj); err != nil {
			return errors.WithStack(err)
		}
		part, err := unmarshalContentPart(pj)
		if err != nil {
			return err
		}
		m.Parts = append(m.Parts, part)
	}
	return nil
}

// unmarshalContentPart converts partJSON to ContentPart
func unmarshalContentPart(pj partJSON) (ContentPart, error) {
	switch pj.Type {
	case partTypeText, "":
		return TextContent{Text: pj.Text}, nil
	case partTypeToolCall:
		if pj.ToolCall == nil {
			return nil, errors.New("tool_call field is required for tool_call type")
		}
		if pj.ToolCall.ID == "" {
			return nil, errors.New("missing id field in ToolCall")
		}
		fc := pj.ToolCall.FunctionCall
		if fc == nil {
			fc = &FunctionCall{}
		}
		return ToolCall{
			ID:           pj.ToolCall.ID,
			Type:         pj.ToolCall.Type,
			FunctionCall: fc,
		}, nil
	case partTypeToolResponse:
		if pj.ToolResponse == nil {
			return nil, errors.New("tool_response field is required for tool_response type")
		}
		if pj.ToolResponse.ToolCallID == "" {
			return nil, errors.New("missing tool_call_id field in ToolCallResponse")
		}
		return ToolCallResponse{
			ToolCallID: pj.ToolResponse.ToolCallID,
			Name:       pj.ToolResponse.Name,
			Content:    pj.ToolResponse.Content,
		}, nil
	default:
		return nil, errors.Newf("unknown content type: '%s'", pj.Type)
	}
}

// MarshalJSON implements json.Marshaler for TextContent
func (tc TextContent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Text string `json:"text"`
		Type string `json:"type"`
	}{
		Text: tc.Text,
		Type: partTypeText,
	})
}

// MarshalJSON implements json.Marshaler for ToolCall
func (tc ToolCall) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     string       `json:"type"`
		ToolCall toolCallJSON `json:"tool_call"`
	}{
		Type: partTypeToolCall,
		ToolCall: toolCallJSON{
			FunctionCall: tc.FunctionCall,
			ID:           tc.ID,
			Type:         tc.Type,
		},
	})
}

// MarshalJSON implements json.Marshaler for ToolCallResponse
func (tc ToolCallResponse) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type         string           `json:"type"`
		ToolResponse toolResponseJSON `json:"tool_response"`
	}{
		Type: partTypeToolResponse,
		ToolResponse: toolResponseJSON{
			ToolCallID: tc.ToolCallID,
			Name:       tc.Name,
			Content:    tc.Content,
		},
	})
}

// UnmarshalTranscript decodes a JSON array of messages.
func UnmarshalTranscript(data []byte) ([]Message, error) {
	var list []Message
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, errors.WithMessage(err, "failed to decode transcript")
	}
	return list, nil
}
