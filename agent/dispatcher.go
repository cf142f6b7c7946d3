package agent

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mailagent/pkg/llms"
	"github.com/effective-security/mailagent/pkg/metricskey"
	"github.com/effective-security/mailagent/tools"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/xlog"
)

// ToolFailedPrefix starts the content of a tool message reporting
// a failure of the tool itself.
const ToolFailedPrefix = "Tool call failed: "

// Dispatcher executes the tool calls of an assistant message.
type Dispatcher struct {
	registry *tools.Registry
	cfg      *Config
}

// NewDispatcher returns a Dispatcher over the registry.
func NewDispatcher(registry *tools.Registry, cfg *Config) *Dispatcher {
	if registry == nil {
		registry, _ = tools.NewRegistry()
	}
	if cfg == nil {
		cfg = NewConfig()
	}
	return &Dispatcher{
		registry: registry,
		cfg:      cfg,
	}
}

type preparedCall struct {
	call llms.ToolCall
	tool tools.ITool
	run  tools.Invocation
}

// Dispatch returns one tool message per tool call of msg, in request order.
//
// All calls are resolved and their arguments validated before any tool runs:
// an unknown tool (tools.ErrToolNotFound) or invalid arguments
// (tools.ErrInvalidArguments) fail the dispatch and no messages are returned.
// A failure of the tool itself is returned to the model as the content of
// its tool message.
func (d *Dispatcher) Dispatch(ctx context.Context, msg llms.Message) ([]llms.Message, error) {
	calls := msg.ToolCalls()
	if len(calls) == 0 {
		return nil, errors.WithStack(ErrNoToolCalls)
	}

	cb := d.cfg.Callback
	prepared := make([]preparedCall, 0, len(calls))
	for _, tc := range calls {
		name := tc.Name()
		tool, run, err := d.registry.Prepare(name, tc.Arguments())
		if err != nil {
			switch {
			case errors.Is(err, tools.ErrToolNotFound):
				metricskey.StatsToolCallsNotFound.IncrCounter(1, name)
				if cb != nil {
					cb.OnToolNotFound(ctx, d.cfg.Name, name)
				}
			case errors.Is(err, tools.ErrInvalidArguments):
				metricskey.StatsToolCallsInvalidArguments.IncrCounter(1, name)
			}
			logger.ContextKV(ctx, xlog.ERROR,
				"agent", d.cfg.Name,
				"call_id", tc.ID,
				"tool", name,
				"args", slices.StringUpto(tc.Arguments(), 64),
				"err", err.Error(),
			)
			return nil, errors.WithMessagef(err, "tool call %s", tc.ID)
		}
		prepared = append(prepared, preparedCall{call: tc, tool: tool, run: run})
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}

	results := make([]llms.Message, 0, len(prepared))
	for _, p := range prepared {
		results = append(results, d.execute(ctx, p))
	}
	return results, nil
}

func (d *Dispatcher) execute(ctx context.Context, p preparedCall) llms.Message {
	name := p.tool.Name()
	input := p.call.Arguments()

	cb := d.cfg.Callback
	if cb != nil {
		cb.OnToolStart(ctx, p.tool, input)
	}

	started := time.Now()
	content, err := p.run(ctx)
	metricskey.PerfToolCall.MeasureSince(started, name)

	if err != nil {
		metricskey.StatsToolCallsFailed.IncrCounter(1, name)
		logger.ContextKV(ctx, xlog.WARNING,
			"agent", d.cfg.Name,
			"call_id", p.call.ID,
			"tool", name,
			"err", err.Error(),
		)
		if cb != nil {
			cb.OnToolError(ctx, p.tool, input, errors.Mark(err, tools.ErrToolFailed))
		}
		content = ToolFailedPrefix + err.Error()
	} else {
		metricskey.StatsToolCallsSucceeded.IncrCounter(1, name)
		if cb != nil {
			cb.OnToolEnd(ctx, p.tool, input, content)
		}
	}

	return llms.MessageFromToolResponse(llms.ToolCallResponse{
		ToolCallID: p.call.ID,
		Name:       name,
		Content:    content,
	})
}
