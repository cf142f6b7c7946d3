package agent

import (
	"strconv"

	"github.com/effective-security/mailagent/pkg/llms"
)

// State of the agent loop.
type State int

const (
	// StateInit is the initial state.
	StateInit State = iota
	// StateCallModel invokes the model with the transcript.
	StateCallModel
	// StateRunTool dispatches the tool calls of the last message.
	StateRunTool
	// StateDone is terminal.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateCallModel:
		return "CALL_MODEL"
	case StateRunTool:
		return "RUN_TOOL"
	case StateDone:
		return "DONE"
	}
	return "State(" + strconv.Itoa(int(s)) + ")"
}

// Router decides the next state of the loop.
type Router struct {
	// AfterTool is the state after RUN_TOOL: StateDone or StateCallModel.
	AfterTool State
}

// Next returns the state following current, given the last message
// appended to the transcript. It has no side effects.
func (r Router) Next(current State, last llms.Message) State {
	switch current {
	case StateInit:
		return StateCallModel
	case StateCallModel:
		if last.HasToolCalls() {
			return StateRunTool
		}
		return StateDone
	case StateRunTool:
		if r.AfterTool == StateCallModel {
			return StateCallModel
		}
		return StateDone
	}
	return StateDone
}

// Iterative returns true if tool results are sent back to the model.
func (r Router) Iterative() bool {
	return r.AfterTool == StateCallModel
}
