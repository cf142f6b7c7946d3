package tools

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrToolNotFound is returned when no tool is registered under the requested name.
	ErrToolNotFound = errors.New("tool not found")
	// ErrInvalidArguments is matched by ArgumentError.
	ErrInvalidArguments = errors.New("invalid tool arguments")
	// ErrToolFailed marks errors returned by the tool itself.
	ErrToolFailed = errors.New("tool execution failed")
	// ErrInvalidTool is returned when registering a tool without a name or schema.
	ErrInvalidTool = errors.New("invalid tool")
	// ErrDuplicateTool is returned when a name is registered twice.
	ErrDuplicateTool = errors.New("duplicate tool")
)

// ArgumentError names the argument that failed to decode or validate.
type ArgumentError struct {
	Tool string
	// Argument is the JSON name of the argument,
	// empty when the arguments as a whole are rejected.
	Argument string
	Reason   string
}

func (e *ArgumentError) Error() string {
	if e.Argument == "" {
		return fmt.Sprintf("invalid arguments for tool %s: %s", e.Tool, e.Reason)
	}
	return fmt.Sprintf("invalid argument %q for tool %s: %s", e.Argument, e.Tool, e.Reason)
}

// Is reports ErrInvalidArguments.
func (e *ArgumentError) Is(target error) bool {
	return target == ErrInvalidArguments
}
