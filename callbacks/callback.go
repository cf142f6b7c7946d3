package callbacks

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/effective-security/mailagent/agent"
	"github.com/effective-security/mailagent/pkg/llms"
	"github.com/effective-security/mailagent/pkg/llmutils"
	"github.com/effective-security/mailagent/tools"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/xlog"
)

// ensure that the callbacks implement the correct interfaces
var (
	_ agent.Callback = (*Noop)(nil)
	_ agent.Callback = (*Printer)(nil)
	_ agent.Callback = (*PackageLogger)(nil)
	_ agent.Callback = (*Fanout)(nil)
	_ agent.Callback = (*Scratchpad)(nil)
)

// Mode defines the mode for callback printing
type Mode int

const (
	// ModeDefault is the default mode for callback printing
	ModeDefault Mode = iota
	// ModeVerbose is the verbose mode for callback printing
	ModeVerbose
)

// Fanout is a callback handler that forwards the events to multiple callbacks.
type Fanout struct {
	callbacks []agent.Callback
}

func NewFanout(callbacks ...agent.Callback) *Fanout {
	return &Fanout{callbacks: callbacks}
}

// Add appends the callback, it must not be called during a run.
func (l *Fanout) Add(callback agent.Callback) {
	l.callbacks = append(l.callbacks, callback)
}

// Len returns the number of callbacks.
func (l *Fanout) Len() int {
	return len(l.callbacks)
}

func (l *Fanout) OnRunStart(ctx context.Context, agentName string, messages []llms.Message) {
	for _, callback := range l.callbacks {
		callback.OnRunStart(ctx, agentName, messages)
	}
}

func (l *Fanout) OnRunEnd(ctx context.Context, agentName string, messages []llms.Message) {
	for _, callback := range l.callbacks {
		callback.OnRunEnd(ctx, agentName, messages)
	}
}

func (l *Fanout) OnRunError(ctx context.Context, agentName string, err error, messages []llms.Message) {
	for _, callback := range l.callbacks {
		callback.OnRunError(ctx, agentName, err, messages)
	}
}

func (l *Fanout) OnStateChange(ctx context.Context, agentName string, from, to agent.State) {
	for _, callback := range l.callbacks {
		callback.OnStateChange(ctx, agentName, from, to)
	}
}

func (l *Fanout) OnLLMCallStart(ctx context.Context, agentName string, llm llms.Model, payload []llms.Message) {
	for _, callback := range l.callbacks {
		callback.OnLLMCallStart(ctx, agentName, llm, payload)
	}
}

func (l *Fanout) OnLLMCallEnd(ctx context.Context, agentName string, llm llms.Model, resp *llms.ContentResponse) {
	for _, callback := range l.callbacks {
		callback.OnLLMCallEnd(ctx, agentName, llm, resp)
	}
}

func (l *Fanout) OnToolStart(ctx context.Context, tool tools.ITool, input string) {
	for _, callback := range l.callbacks {
		callback.OnToolStart(ctx, tool, input)
	}
}

func (l *Fanout) OnToolEnd(ctx context.Context, tool tools.ITool, input string, output string) {
	for _, callback := range l.callbacks {
		callback.OnToolEnd(ctx, tool, input, output)
	}
}

func (l *Fanout) OnToolError(ctx context.Context, tool tools.ITool, input string, err error) {
	for _, callback := range l.callbacks {
		callback.OnToolError(ctx, tool, input, err)
	}
}

func (l *Fanout) OnToolNotFound(ctx context.Context, agentName string, tool string) {
	for _, callback := range l.callbacks {
		callback.OnToolNotFound(ctx, agentName, tool)
	}
}

// Noop does nothing.
type Noop struct{}

func NewNoop() *Noop {
	return &Noop{}
}

func (l *Noop) OnRunStart(ctx context.Context, agentName string, messages []llms.Message) {
}
func (l *Noop) OnRunEnd(ctx context.Context, agentName string, messages []llms.Message) {
}
func (l *Noop) OnRunError(ctx context.Context, agentName string, err error, messages []llms.Message) {
}
func (l *Noop) OnStateChange(ctx context.Context, agentName string, from, to agent.State) {
}
func (l *Noop) OnLLMCallStart(ctx context.Context, agentName string, llm llms.Model, payload []llms.Message) {
}
func (l *Noop) OnLLMCallEnd(ctx context.Context, agentName string, llm llms.Model, resp *llms.ContentResponse) {
}
func (l *Noop) OnToolStart(ctx context.Context, tool tools.ITool, input string) {
}
func (l *Noop) OnToolEnd(ctx context.Context, tool tools.ITool, input string, output string) {
}
func (l *Noop) OnToolError(ctx context.Context, tool tools.ITool, input string, err error) {
}
func (l *Noop) OnToolNotFound(ctx context.Context, agentName string, tool string) {
}

// Printer is a callback handler that prints to the Writer.
type Printer struct {
	Out  io.Writer
	Mode Mode

	lock sync.Mutex
}

func NewPrinter(out io.Writer, mode Mode) *Printer {
	return &Printer{Out: out, Mode: mode}
}

func (l *Printer) OnRunStart(ctx context.Context, agentName string, messages []llms.Message) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Run Start: %s, %d messages\n", agentName, len(messages))
	if l.Mode == ModeVerbose {
		fmt.Fprintf(l.Out, "Input: %s\n", llmutils.FindLastUserQuestion(messages))
	}
}

func (l *Printer) OnRunEnd(ctx context.Context, agentName string, messages []llms.Message) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Run End: %s, %d messages\n", agentName, len(messages))
	if l.Mode == ModeVerbose {
		llmutils.PrintMessages(l.Out, messages)
	}
}

func (l *Printer) OnRunError(ctx context.Context, agentName string, err error, messages []llms.Message) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Run Error: %s: %s\n", agentName, err.Error())
}

func (l *Printer) OnStateChange(ctx context.Context, agentName string, from, to agent.State) {
	if l.Mode != ModeVerbose {
		return
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "State: %s -> %s\n", from, to)
}

func (l *Printer) OnLLMCallStart(ctx context.Context, agentName string, llm llms.Model, payload []llms.Message) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "LLM Call: %s: %s model, %d messages\n", agentName, llm.GetName(), len(payload))
}

func (l *Printer) OnLLMCallEnd(ctx context.Context, agentName string, llm llms.Model, resp *llms.ContentResponse) {
	l.lock.Lock()
	defer l.lock.Unlock()
	in, out, _ := llmutils.CountTokens(resp)
	fmt.Fprintf(l.Out, "LLM Call End: %s: %s model, %d input tokens, %d output tokens\n", agentName, llm.GetName(), in, out)
	if l.Mode == ModeVerbose {
		for _, choice := range resp.Choices {
			if choice.ReasoningContent != "" {
				fmt.Fprintf(l.Out, "Reasoning: %s\n", choice.ReasoningContent)
			}
			if choice.Content != "" {
				fmt.Fprintln(l.Out, choice.Content)
			}
		}
	}
}

func (l *Printer) OnToolStart(ctx context.Context, tool tools.ITool, input string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool Start: %s\n", tool.Name())
	fmt.Fprintf(l.Out, "Input: %s\n", input)
}

func (l *Printer) OnToolEnd(ctx context.Context, tool tools.ITool, input string, output string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool End: %s\n", tool.Name())
	if l.Mode == ModeVerbose {
		fmt.Fprintf(l.Out, "Output: %s\n", output)
	}
}

func (l *Printer) OnToolError(ctx context.Context, tool tools.ITool, input string, err error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool Error: %s: %s\n", tool.Name(), err.Error())
}

func (l *Printer) OnToolNotFound(ctx context.Context, agentName string, tool string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool Not Found: %s\n", tool)
}

// PackageLogger is a callback handler that prints to the logger.
// Every entry carries the run ID and, when set, the project of the run.
type PackageLogger struct {
	logger *xlog.PackageLogger
}

func NewPackageLogger(logger *xlog.PackageLogger) *PackageLogger {
	return &PackageLogger{logger: logger}
}

func (l *PackageLogger) log(ctx context.Context, level xlog.LogLevel, event string, kv ...any) {
	entries := []any{"event", event}
	if rc := agent.GetRunContext(ctx); rc != nil {
		entries = append(entries, "run_id", rc.RunID())
		if rc.Project() != "" {
			entries = append(entries, "project", rc.Project())
		}
	}
	l.logger.ContextKV(ctx, level, append(entries, kv...)...)
}

func (l *PackageLogger) OnRunStart(ctx context.Context, agentName string, messages []llms.Message) {
	l.log(ctx, xlog.DEBUG, "run_start",
		"agent", agentName,
		"messages", len(messages),
		"input", slices.StringUpto(llmutils.FindLastUserQuestion(messages), 64),
	)
}

func (l *PackageLogger) OnRunEnd(ctx context.Context, agentName string, messages []llms.Message) {
	l.log(ctx, xlog.DEBUG, "run_end",
		"agent", agentName,
		"messages", len(messages),
	)
}

func (l *PackageLogger) OnRunError(ctx context.Context, agentName string, err error, messages []llms.Message) {
	l.log(ctx, xlog.ERROR, "run_error",
		"agent", agentName,
		"messages", len(messages),
		"err", err.Error(),
	)
}

func (l *PackageLogger) OnStateChange(ctx context.Context, agentName string, from, to agent.State) {
	l.log(ctx, xlog.DEBUG, "state_change",
		"agent", agentName,
		"from", from.String(),
		"to", to.String(),
	)
}

func (l *PackageLogger) OnLLMCallStart(ctx context.Context, agentName string, llm llms.Model, payload []llms.Message) {
	l.log(ctx, xlog.DEBUG, "llm_call_start",
		"agent", agentName,
		"model", llm.GetName(),
		"messages", len(payload),
	)
}

func (l *PackageLogger) OnLLMCallEnd(ctx context.Context, agentName string, llm llms.Model, resp *llms.ContentResponse) {
	in, out, total := llmutils.CountTokens(resp)
	l.log(ctx, xlog.DEBUG, "llm_call_end",
		"agent", agentName,
		"model", llm.GetName(),
		"choices", len(resp.Choices),
		"input_tokens", in,
		"output_tokens", out,
		"total_tokens", total,
	)
}

func (l *PackageLogger) OnToolStart(ctx context.Context, tool tools.ITool, input string) {
	l.log(ctx, xlog.DEBUG, "tool_start",
		"tool", tool.Name(),
		"input", input,
	)
}

func (l *PackageLogger) OnToolEnd(ctx context.Context, tool tools.ITool, input string, output string) {
	l.log(ctx, xlog.DEBUG, "tool_end",
		"tool", tool.Name(),
		"output", slices.StringUpto(output, 64),
	)
}

func (l *PackageLogger) OnToolError(ctx context.Context, tool tools.ITool, input string, err error) {
	l.log(ctx, xlog.ERROR, "tool_error",
		"tool", tool.Name(),
		"err", err.Error(),
	)
}

func (l *PackageLogger) OnToolNotFound(ctx context.Context, agentName string, tool string) {
	l.log(ctx, xlog.WARNING, "tool_not_found",
		"agent", agentName,
		"tool", tool,
	)
}
