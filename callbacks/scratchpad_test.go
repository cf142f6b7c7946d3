package callbacks

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mailagent/agent"
	"github.com/effective-security/mailagent/mocks/mockllms"
	"github.com/effective-security/mailagent/pkg/llms"
	"github.com/effective-security/mailagent/tools/email"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestRunContext(t *testing.T) (context.Context, *agent.RunContext) {
	rc := agent.NewRunContext("", "agents-from-scratch")
	return agent.WithRunContext(t.Context(), rc), rc
}

func TestScratchpad_StartRun_EndRun(t *testing.T) {
	t.Parallel()
	sp := NewScratchpad(ModeVerbose)
	ctx, rc := newTestRunContext(t)

	input := []llms.Message{llms.MessageFromTextParts(llms.RoleHuman, "What's 2+2?")}
	sp.OnRunStart(ctx, "mailagent", input)

	r := sp.runs[rc.RunID()]
	require.NotNil(t, r)
	r.stats.ToolCalls = 3
	r.stats.ToolCallsFailed = 2
	r.stats.ToolNotFound = 1
	r.stats.LLMCalls = 1
	r.stats.Transitions = 2

	sp.OnRunEnd(ctx, "mailagent", append(input, llms.MessageFromTextParts(llms.RoleAI, "4")))

	stats, buf := sp.EndRun(ctx)
	require.NotNil(t, stats)
	assert.True(t, stats.Succeeded)
	assert.Equal(t, rc.RunID(), stats.RunID)
	assert.Equal(t, "agents-from-scratch", stats.Project)

	out := string(buf)
	assert.Contains(t, out, "Run Started")
	assert.Contains(t, out, "Input: What's 2+2?")
	assert.Contains(t, out, "Run Succeeded")
	assert.Contains(t, out, "Run Ended")
	assert.Contains(t, out, "Tool calls: 3, Failed: 2, Not Found: 1")
	assert.Contains(t, out, "Transitions: 2")

	_, ok := sp.runs[rc.RunID()]
	assert.False(t, ok)

	s2, _ := sp.EndRun(ctx)
	assert.Nil(t, s2)
}

func TestScratchpad_getRun_nil(t *testing.T) {
	t.Parallel()
	sp := NewScratchpad(ModeDefault)
	assert.Nil(t, sp.getRun(context.Background()))
	ctx, _ := newTestRunContext(t)
	assert.Nil(t, sp.getRun(ctx))

	// no run context, nothing is recorded
	sp.OnRunStart(context.Background(), "mailagent", nil)
	assert.Empty(t, sp.runs)
}

func TestScratchpad_OnCallbacks(t *testing.T) {
	t.Parallel()

	llm := mockllms.NewMockModel(gomock.NewController(t))
	llm.EXPECT().GetName().Return("test-model").AnyTimes()
	tool, err := email.New()
	require.NoError(t, err)

	sp := NewScratchpad(ModeVerbose)
	ctx, _ := newTestRunContext(t)

	payload := []llms.Message{llms.MessageFromTextParts(llms.RoleHuman, "foo")}
	resp := &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		Content:        "Answer 1",
		GenerationInfo: map[string]any{"InputTokens": int64(5), "OutputTokens": int64(2), "TotalTokens": int64(7)},
	}}}

	emitAll := func() {
		sp.OnRunStart(ctx, "A1", payload)
		sp.OnStateChange(ctx, "A1", agent.StateInit, agent.StateCallModel)
		sp.OnLLMCallStart(ctx, "A1", llm, payload)
		sp.OnLLMCallEnd(ctx, "A1", llm, resp)
		sp.OnToolStart(ctx, tool, "tinput")
		sp.OnToolEnd(ctx, tool, "tinput", "toutput")
		sp.OnToolError(ctx, tool, "tinput", errors.New("terr"))
		sp.OnToolNotFound(ctx, "A1", "T2")
		sp.OnRunError(ctx, "A1", errors.New("fail"), payload)
	}
	emitAll()

	stats, output := sp.EndRun(ctx)
	require.NotNil(t, stats)
	assert.False(t, stats.Succeeded)
	assert.EqualValues(t, 1, stats.LLMCalls)
	assert.EqualValues(t, 1, stats.TotalMessages)
	assert.EqualValues(t, 5, stats.LLMInputTokens)
	assert.EqualValues(t, 2, stats.LLMOutputTokens)
	assert.EqualValues(t, 7, stats.LLMTotalTokens)
	assert.EqualValues(t, 1, stats.ToolCalls)
	assert.EqualValues(t, 1, stats.ToolCallsSucceeded)
	assert.EqualValues(t, 1, stats.ToolCallsFailed)
	assert.EqualValues(t, 1, stats.ToolNotFound)

	outStr := string(output)
	assert.Contains(t, outStr, "State: INIT -> CALL_MODEL")
	assert.Contains(t, outStr, "write_email *** Tool Start ***")
	assert.Contains(t, outStr, "write_email *** Tool End ***")
	assert.Contains(t, outStr, "LLM Call End")
	assert.Contains(t, outStr, "*** Error *** fail")
	assert.Contains(t, outStr, "Tool Not Found")
	assert.Contains(t, outStr, "1 texts, 0 tool calls, 0 tool responses")

	// callbacks outside of a recorded run are ignored
	sp.OnLLMCallStart(ctx, "A1", llm, nil)
	sp.OnToolStart(ctx, tool, "tinput")
	sp.OnToolNotFound(ctx, "A1", "T3")
	sp.OnRunEnd(ctx, "A1", nil)
	assert.Empty(t, sp.runs)
}

func TestScratchpad_Duration(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	now := start
	oldTimeFn := TimeNowFn
	TimeNowFn = func() time.Time { return now }
	defer func() { TimeNowFn = oldTimeFn }()

	sp := NewScratchpad(ModeDefault)
	ctx, _ := newTestRunContext(t)
	sp.OnRunStart(ctx, "mailagent", nil)

	now = start.Add(3 * time.Second)
	stats, buf := sp.EndRun(ctx)
	require.NotNil(t, stats)
	assert.Equal(t, 3*time.Second, stats.Duration)
	assert.True(t, strings.HasPrefix(string(buf), "2024-01-01 12:00:00 "))
}

func Test_run_print_format(t *testing.T) {
	r := &run{stats: RunStats{RunID: "12345"}}
	oldTimeFn := TimeNowFn
	TimeNowFn = func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }
	defer func() { TimeNowFn = oldTimeFn }()

	r.print("hello", "again")
	lines := strings.Split(r.w.String(), "\n")
	require.NotEmpty(t, lines[0])
	assert.Equal(t, "2024-01-01 12:00:00 12345 hello again", lines[0])
}
