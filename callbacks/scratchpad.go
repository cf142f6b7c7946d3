package callbacks

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/effective-security/mailagent/agent"
	"github.com/effective-security/mailagent/pkg/llms"
	"github.com/effective-security/mailagent/pkg/llmutils"
	"github.com/effective-security/mailagent/tools"
)

// TimeNowFn is the clock of the scratchpad, replaced in tests.
var TimeNowFn = time.Now

// RunStats is the summary of one run.
type RunStats struct {
	RunID   string `json:"run_id" yaml:"run_id"`
	Project string `json:"project,omitempty" yaml:"project,omitempty"`

	Duration           time.Duration `json:"duration" yaml:"duration"`
	Succeeded          bool          `json:"succeeded" yaml:"succeeded"`
	Transitions        uint32        `json:"transitions" yaml:"transitions"`
	TotalMessages      uint32        `json:"total_messages" yaml:"total_messages"`
	LLMCalls           uint32        `json:"llm_calls" yaml:"llm_calls"`
	LLMBytesOut        uint64        `json:"llm_bytes_out" yaml:"llm_bytes_out"`
	LLMBytesIn         uint64        `json:"llm_bytes_in" yaml:"llm_bytes_in"`
	LLMInputTokens     uint64        `json:"llm_input_tokens" yaml:"llm_input_tokens"`
	LLMOutputTokens    uint64        `json:"llm_output_tokens" yaml:"llm_output_tokens"`
	LLMTotalTokens     uint64        `json:"llm_total_tokens" yaml:"llm_total_tokens"`
	ToolCalls          uint32        `json:"tool_calls" yaml:"tool_calls"`
	ToolCallsSucceeded uint32        `json:"tool_calls_succeeded" yaml:"tool_calls_succeeded"`
	ToolCallsFailed    uint32        `json:"tool_calls_failed" yaml:"tool_calls_failed"`
	ToolNotFound       uint32        `json:"tool_not_found" yaml:"tool_not_found"`
}

// Scratchpad records the events of runs, keyed by the run ID of the context.
// A run is recorded from OnRunStart until EndRun.
type Scratchpad struct {
	runs map[string]*run
	mode Mode
	lock sync.Mutex
}

func NewScratchpad(mode Mode) *Scratchpad {
	return &Scratchpad{
		runs: make(map[string]*run),
		mode: mode,
	}
}

// EndRun returns the stats and the log of the run, and forgets it.
func (l *Scratchpad) EndRun(ctx context.Context) (*RunStats, []byte) {
	run := l.getRun(ctx)
	if run == nil {
		return nil, nil
	}

	run.lock.Lock()
	stats := run.stats
	run.lock.Unlock()
	stats.Duration = TimeNowFn().Sub(run.started)

	run.print(fmt.Sprintf("Transitions: %d, Messages: %d", stats.Transitions, stats.TotalMessages))
	run.print(fmt.Sprintf("Tool calls: %d, Failed: %d, Not Found: %d",
		stats.ToolCalls,
		stats.ToolCallsFailed,
		stats.ToolNotFound,
	))
	run.print(fmt.Sprintf("LLM calls: %d, Bytes Out: %d, Bytes In: %d, Input Tokens: %d, Output Tokens: %d, Total Tokens: %d",
		stats.LLMCalls,
		stats.LLMBytesOut,
		stats.LLMBytesIn,
		stats.LLMInputTokens,
		stats.LLMOutputTokens,
		stats.LLMTotalTokens,
	))
	run.print(fmt.Sprintf("*** Run Ended. Duration: %s ***", stats.Duration))

	l.lock.Lock()
	delete(l.runs, stats.RunID)
	l.lock.Unlock()

	return &stats, run.w.Bytes()
}

func (l *Scratchpad) getRun(ctx context.Context) *run {
	runID := agent.GetRunID(ctx)
	if runID == "" {
		return nil
	}

	l.lock.Lock()
	defer l.lock.Unlock()
	return l.runs[runID]
}

func (l *Scratchpad) OnRunStart(ctx context.Context, agentName string, messages []llms.Message) {
	rc := agent.GetRunContext(ctx)
	if rc == nil {
		return
	}

	r := &run{
		stats: RunStats{
			RunID:   rc.RunID(),
			Project: rc.Project(),
		},
		started: TimeNowFn(),
	}

	l.lock.Lock()
	l.runs[rc.RunID()] = r
	l.lock.Unlock()

	r.print(agentName, "*** Run Started ***")
	if l.mode == ModeVerbose {
		r.print(agentName, "Input:", llmutils.FindLastUserQuestion(messages))
	}
}

func (l *Scratchpad) OnRunEnd(ctx context.Context, agentName string, messages []llms.Message) {
	run := l.getRun(ctx)
	if run == nil {
		return
	}
	run.lock.Lock()
	run.stats.Succeeded = true
	run.lock.Unlock()
	if l.mode == ModeVerbose {
		run.print(agentName, l.printMessages(messages))
	}
	run.print(agentName, "*** Run Succeeded ***")
}

func (l *Scratchpad) OnRunError(ctx context.Context, agentName string, err error, messages []llms.Message) {
	run := l.getRun(ctx)
	if run == nil {
		return
	}
	run.print(agentName, "*** Error ***", err.Error())
	run.print(agentName, l.printMessages(messages))
}

func (l *Scratchpad) OnStateChange(ctx context.Context, agentName string, from, to agent.State) {
	run := l.getRun(ctx)
	if run == nil {
		return
	}
	atomic.AddUint32(&run.stats.Transitions, 1)
	if l.mode == ModeVerbose {
		run.print(agentName, "State:", from.String(), "->", to.String())
	}
}

func (l *Scratchpad) printMessages(messages []llms.Message) string {
	var buf strings.Builder
	buf.WriteString("Messages:\n")
	for idx, msg := range messages {
		fmt.Fprintf(&buf, "[%d] %s:\n", idx, msg.Role)
		textParts := 0
		toolParts := 0
		toolResponseParts := 0
		for _, part := range msg.Parts {
			switch typ := part.(type) {
			case llms.TextContent:
				textParts++
			case llms.ToolCall:
				toolParts++
				buf.WriteString("  - ")
				buf.WriteString(typ.String())
				buf.WriteString("\n")
			case llms.ToolCallResponse:
				toolResponseParts++
				buf.WriteString("  - ")
				buf.WriteString(typ.String())
				buf.WriteString("\n")
			}
		}

		fmt.Fprintf(&buf, "  - %d texts, %d tool calls, %d tool responses\n", textParts, toolParts, toolResponseParts)
	}
	return buf.String()
}

func (l *Scratchpad) OnLLMCallStart(ctx context.Context, agentName string, llm llms.Model, payload []llms.Message) {
	run := l.getRun(ctx)
	if run == nil {
		return
	}

	atomic.AddUint64(&run.stats.LLMBytesOut, llmutils.CountMessagesContentSize(payload))
	atomic.AddUint32(&run.stats.LLMCalls, 1)
	count := uint32(len(payload))
	atomic.AddUint32(&run.stats.TotalMessages, count)

	run.print(agentName, "*** LLM Call ***", fmt.Sprintf("%s model, %d messages", llm.GetName(), count))
	if l.mode == ModeVerbose {
		run.print(agentName, l.printMessages(payload))
	}
}

func (l *Scratchpad) OnLLMCallEnd(ctx context.Context, agentName string, llm llms.Model, resp *llms.ContentResponse) {
	run := l.getRun(ctx)
	if run == nil {
		return
	}

	atomic.AddUint64(&run.stats.LLMBytesIn, llmutils.CountResponseContentSize(resp))
	tokensIn, tokensOut, tokensTotal := llmutils.CountTokens(resp)
	atomic.AddUint64(&run.stats.LLMInputTokens, uint64(tokensIn))
	atomic.AddUint64(&run.stats.LLMOutputTokens, uint64(tokensOut))
	atomic.AddUint64(&run.stats.LLMTotalTokens, uint64(tokensTotal))

	run.print(agentName, "*** LLM Call End ***", fmt.Sprintf("%s model, %d input tokens, %d output tokens, %d total tokens", llm.GetName(), tokensIn, tokensOut, tokensTotal))
}

func (l *Scratchpad) OnToolStart(ctx context.Context, tool tools.ITool, input string) {
	run := l.getRun(ctx)
	if run == nil {
		return
	}
	atomic.AddUint32(&run.stats.ToolCalls, 1)
	run.print(tool.Name(), "*** Tool Start ***")
	run.print(tool.Name(), "Input:", input)
}

func (l *Scratchpad) OnToolEnd(ctx context.Context, tool tools.ITool, input string, output string) {
	run := l.getRun(ctx)
	if run == nil {
		return
	}
	atomic.AddUint32(&run.stats.ToolCallsSucceeded, 1)
	if l.mode == ModeVerbose {
		run.print(tool.Name(), "Output:", output)
	}
	run.print(tool.Name(), "*** Tool End ***")
}

func (l *Scratchpad) OnToolError(ctx context.Context, tool tools.ITool, input string, err error) {
	run := l.getRun(ctx)
	if run == nil {
		return
	}
	atomic.AddUint32(&run.stats.ToolCallsFailed, 1)
	run.print(tool.Name(), "*** Tool Error ***", err.Error())
}

func (l *Scratchpad) OnToolNotFound(ctx context.Context, agentName string, tool string) {
	run := l.getRun(ctx)
	if run == nil {
		return
	}
	atomic.AddUint32(&run.stats.ToolNotFound, 1)
	run.print(agentName, "*** Tool Not Found ***", tool)
}

type run struct {
	w       bytes.Buffer
	started time.Time
	lock    sync.Mutex
	stats   RunStats
}

// print writes the entries to the run's output.
// The entries are written in the following format:
// [timestamp runID] entry entry\n
func (r *run) print(entries ...string) {
	r.lock.Lock()
	defer r.lock.Unlock()

	now := TimeNowFn()
	ts := now.Format("2006-01-02 15:04:05")

	_, _ = r.w.WriteString(ts)
	_, _ = r.w.WriteString(" ")
	_, _ = r.w.WriteString(r.stats.RunID)
	_, _ = r.w.WriteString(" ")

	for i, entry := range entries {
		if i > 0 {
			_, _ = r.w.WriteString(" ")
		}
		_, _ = r.w.WriteString(entry)
	}
	_, _ = r.w.WriteString("\n")
}
