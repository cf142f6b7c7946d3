package agent

import (
	"context"

	"github.com/effective-security/mailagent/pkg/llms"
	"github.com/effective-security/mailagent/tools"
)

// Callback receives the loop events. Implementations must be safe for
// concurrent use when an Agent serves concurrent runs.
type Callback interface {
	tools.Callback

	OnRunStart(ctx context.Context, agent string, messages []llms.Message)
	OnRunEnd(ctx context.Context, agent string, messages []llms.Message)
	OnRunError(ctx context.Context, agent string, err error, messages []llms.Message)
	OnStateChange(ctx context.Context, agent string, from, to State)
	OnLLMCallStart(ctx context.Context, agent string, llm llms.Model, payload []llms.Message)
	OnLLMCallEnd(ctx context.Context, agent string, llm llms.Model, resp *llms.ContentResponse)
	OnToolNotFound(ctx context.Context, agent string, tool string)
}
