// Package agent implements the tool-calling loop: a small state machine that
// calls the model, runs the tools the model requested, and stops when the model
// answers in plain text.
//
// States and transitions:
//
//	INIT       -> CALL_MODEL
//	CALL_MODEL -> RUN_TOOL   the model requested one or more tools
//	CALL_MODEL -> DONE       the model answered without tool calls
//	RUN_TOOL   -> DONE       default, a single tool round
//	RUN_TOOL   -> CALL_MODEL with WithIterative, the model sees the tool results
//
// An Agent holds no per-run state, concurrent calls to Run are independent.
package agent
