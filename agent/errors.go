package agent

import "github.com/cockroachdb/errors"

var (
	// ErrEmptyConversation is returned when Run or Invoke gets no messages.
	ErrEmptyConversation = errors.New("empty conversation")
	// ErrMaxToolRounds is returned when the model keeps requesting tools
	// after the configured number of tool rounds.
	ErrMaxToolRounds = errors.New("tool rounds limit exceeded")
	// ErrUnansweredToolCall is returned when a transcript has a tool call
	// without a matching tool message.
	ErrUnansweredToolCall = errors.New("unanswered tool call")
	// ErrNoToolCalls is returned when Dispatch gets a message without tool calls.
	ErrNoToolCalls = errors.New("message has no tool calls")
	// ErrInvalidOption is returned by New for inconsistent options.
	ErrInvalidOption = errors.New("invalid agent option")
)
