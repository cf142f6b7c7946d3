package agent

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// ToolPolicy constrains the model's use of tools in one call.
type ToolPolicy string

const (
	// ToolPolicyNone forbids tool calls.
	ToolPolicyNone ToolPolicy = "none"
	// ToolPolicyRequired forces the model to call at least one tool.
	ToolPolicyRequired ToolPolicy = "required"
	// ToolPolicyAuto lets the model choose between a tool call and a reply.
	ToolPolicyAuto ToolPolicy = "auto"
)

// ParseToolPolicy parses the policy name. "any" is accepted for "required".
func ParseToolPolicy(s string) (ToolPolicy, error) {
	switch p := ToolPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case ToolPolicyNone, ToolPolicyRequired, ToolPolicyAuto:
		return p, nil
	case "any":
		return ToolPolicyRequired, nil
	}
	return "", errors.Wrapf(ErrInvalidOption, "unknown tool policy %q, expected none, required or auto", s)
}

// Valid returns true for the known policies.
func (p ToolPolicy) Valid() bool {
	return p == ToolPolicyNone || p == ToolPolicyRequired || p == ToolPolicyAuto
}
