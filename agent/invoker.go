package agent

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mailagent/pkg/llms"
	"github.com/effective-security/mailagent/pkg/llmutils"
	"github.com/effective-security/mailagent/pkg/metricskey"
	"github.com/effective-security/mailagent/tools"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	"github.com/google/uuid"
)

// Invoker sends the conversation to the model and turns the first choice
// into one assistant message.
type Invoker struct {
	llm      llms.Model
	registry *tools.Registry
	cfg      *Config
}

// NewInvoker returns an Invoker advertising the tools of the registry.
func NewInvoker(llm llms.Model, registry *tools.Registry, cfg *Config) *Invoker {
	if registry == nil {
		registry, _ = tools.NewRegistry()
	}
	if cfg == nil {
		cfg = NewConfig()
	}
	return &Invoker{
		llm:      llm,
		registry: registry,
		cfg:      cfg,
	}
}

// Invoke calls the model once with the messages and the tool policy.
// The system prompt, when configured, is sent before the messages
// but is not part of the result.
//
// Errors of the model call are marked with one of llms.ErrTransport,
// llms.ErrAuthentication, llms.ErrModelAPI or llms.ErrMalformedResponse.
func (i *Invoker) Invoke(ctx context.Context, messages []llms.Message, policy ToolPolicy) (llms.Message, error) {
	if len(messages) == 0 {
		return llms.Message{}, errors.WithStack(ErrEmptyConversation)
	}
	if !policy.Valid() {
		return llms.Message{}, errors.Wrapf(ErrInvalidOption, "tool policy %q", policy)
	}

	payload := messages
	if i.cfg.SystemPrompt != "" {
		payload = make([]llms.Message, 0, len(messages)+1)
		payload = append(payload, llms.MessageFromTextParts(llms.RoleSystem, i.cfg.SystemPrompt))
		payload = append(payload, messages...)
	}

	opts, err := i.callOptions(ctx, policy)
	if err != nil {
		return llms.Message{}, err
	}

	agentName := i.cfg.Name
	modelName := values.StringsCoalesce(i.cfg.Model, i.llm.GetName())

	cb := i.cfg.Callback
	if cb != nil {
		cb.OnLLMCallStart(ctx, agentName, i.llm, payload)
	}

	bytesSent := llmutils.CountMessagesContentSize(payload)
	metricskey.StatsLLMMessagesSent.IncrCounter(float64(len(payload)), agentName, modelName)
	metricskey.StatsLLMBytesSent.IncrCounter(float64(bytesSent), agentName, modelName)

	started := time.Now()
	resp, err := i.llm.GenerateContent(ctx, payload, opts...)
	metricskey.PerfLLMCall.MeasureSince(started, agentName, modelName)
	if err == nil && (resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil) {
		err = errors.Wrap(llms.ErrMalformedResponse, "model returned no choices")
	}
	if err != nil {
		metricskey.StatsLLMCallsFailed.IncrCounter(1, agentName, modelName, errorReason(err))
		logger.ContextKV(ctx, xlog.ERROR,
			"agent", agentName,
			"model", modelName,
			"reason", errorReason(err),
			"err", err.Error(),
		)
		return llms.Message{}, errors.WithMessage(err, "failed to generate content from LLM")
	}

	if cb != nil {
		cb.OnLLMCallEnd(ctx, agentName, i.llm, resp)
	}

	metricskey.StatsLLMBytesReceived.IncrCounter(float64(llmutils.CountResponseContentSize(resp)), agentName, modelName)
	tokensIn, tokensOut, _ := llmutils.CountTokens(resp)
	metricskey.StatsLLMInputTokens.IncrCounter(float64(tokensIn), agentName, modelName)
	metricskey.StatsLLMOutputTokens.IncrCounter(float64(tokensOut), agentName, modelName)

	msg, err := messageFromChoice(resp.Choices[0])
	if err != nil {
		metricskey.StatsLLMCallsFailed.IncrCounter(1, agentName, modelName, errorReason(err))
		return llms.Message{}, err
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"agent", agentName,
		"model", modelName,
		"policy", policy,
		"tool_calls", len(msg.ToolCalls()),
		"stop_reason", resp.Choices[0].StopReason,
	)
	return msg, nil
}

func (i *Invoker) callOptions(ctx context.Context, policy ToolPolicy) ([]llms.CallOption, error) {
	opts := []llms.CallOption{
		llms.WithTemperature(i.cfg.Temperature),
	}
	if i.cfg.Model != "" {
		opts = append(opts, llms.WithModel(i.cfg.Model))
	}
	if i.cfg.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(i.cfg.MaxTokens))
	}
	if i.cfg.Seed != 0 {
		opts = append(opts, llms.WithSeed(i.cfg.Seed))
	}
	if len(i.cfg.StopWords) > 0 {
		opts = append(opts, llms.WithStopWords(i.cfg.StopWords))
	}

	if i.registry.Len() == 0 {
		return opts, nil
	}

	prov := i.llm.GetProviderType()
	if !prov.Supports(llms.CapabilityFunctionCalling) {
		return nil, errors.Newf("agent %s: provider %s does not support function calling", i.cfg.Name, prov)
	}
	if policy == ToolPolicyRequired && !prov.Supports(llms.CapabilityToolChoiceRequired) {
		logger.ContextKV(ctx, xlog.WARNING,
			"agent", i.cfg.Name,
			"provider", prov,
			"status", "tool_choice_required_not_supported",
			"fallback", ToolPolicyAuto,
		)
		policy = ToolPolicyAuto
	}

	opts = append(opts,
		llms.WithTools(i.registry.Definitions()),
		llms.WithToolChoice(string(policy)),
		llms.WithParallelToolCalls(false),
	)
	return opts, nil
}

// messageFromChoice normalises the tool calls of the choice and builds
// the assistant message.
func messageFromChoice(choice *llms.ContentChoice) (llms.Message, error) {
	if len(choice.ToolCalls) == 0 {
		return llms.MessageFromTextParts(llms.RoleAI, choice.Content), nil
	}

	calls := make([]llms.ToolCall, 0, len(choice.ToolCalls))
	for _, tc := range choice.ToolCalls {
		if err := llms.ValidateToolCall(tc); err != nil {
			return llms.Message{}, err
		}
		if tc.ID == "" {
			tc.ID = "call_" + uuid.NewString()
		}
		if tc.Type == "" {
			tc.Type = "function"
		}
		fc := *tc.FunctionCall
		if strings.TrimSpace(fc.Arguments) == "" {
			fc.Arguments = "{}"
		}
		tc.FunctionCall = &fc
		calls = append(calls, tc)
	}
	return llms.MessageFromToolCalls(choice.Content, calls...), nil
}

// errorReason returns the metric tag of the model error class.
func errorReason(err error) string {
	switch {
	case errors.Is(err, llms.ErrAuthentication):
		return "authentication"
	case errors.Is(err, llms.ErrModelAPI):
		return "api"
	case errors.Is(err, llms.ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, llms.ErrTransport):
		return "transport"
	}
	return "other"
}
