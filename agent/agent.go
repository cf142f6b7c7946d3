package agent

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mailagent/pkg/llms"
	"github.com/effective-security/mailagent/pkg/metricskey"
	"github.com/effective-security/mailagent/tools"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mailagent", "agent")

// Agent runs the tool-calling loop.
type Agent struct {
	cfg        *Config
	llm        llms.Model
	registry   *tools.Registry
	router     Router
	invoker    *Invoker
	dispatcher *Dispatcher
}

// New returns an Agent calling the model with the tools of the registry.
// A nil registry advertises no tools.
func New(llm llms.Model, registry *tools.Registry, opts ...Option) (*Agent, error) {
	if llm == nil {
		return nil, errors.Wrap(ErrInvalidOption, "model is required")
	}
	if registry == nil {
		registry, _ = tools.NewRegistry()
	}
	cfg := NewConfig(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Agent{
		cfg:        cfg,
		llm:        llm,
		registry:   registry,
		router:     Router{AfterTool: cfg.AfterTool},
		invoker:    NewInvoker(llm, registry, cfg),
		dispatcher: NewDispatcher(registry, cfg),
	}, nil
}

// Name returns the name of the Agent.
func (a *Agent) Name() string {
	return a.cfg.Name
}

// Config returns the configuration of the Agent, it must not be modified.
func (a *Agent) Config() *Config {
	return a.cfg
}

// Registry returns the tools available to the model.
func (a *Agent) Registry() *tools.Registry {
	return a.registry
}

// Invoker returns the model invoker of the Agent.
func (a *Agent) Invoker() *Invoker {
	return a.invoker
}

// Dispatcher returns the tool dispatcher of the Agent.
func (a *Agent) Dispatcher() *Dispatcher {
	return a.dispatcher
}

// Run executes the loop on a copy of the initial conversation and returns
// the transcript: the initial messages followed by every assistant and tool
// message of the run.
//
// On error the transcript built so far is returned with the error.
func (a *Agent) Run(ctx context.Context, initial []llms.Message) ([]llms.Message, error) {
	started := time.Now()
	defer metricskey.PerfAgentRun.MeasureSince(started, a.cfg.Name)

	if GetRunContext(ctx) == nil {
		ctx = WithRunContext(ctx, NewRunContext("", ""))
	}

	transcript := make([]llms.Message, 0, len(initial)+3)
	transcript = append(transcript, initial...)

	logger.ContextKV(ctx, xlog.DEBUG,
		"agent", a.cfg.Name,
		"run_id", GetRunID(ctx),
		"iterative", a.router.Iterative(),
		"messages", len(transcript),
	)

	cb := a.cfg.Callback
	if cb != nil {
		cb.OnRunStart(ctx, a.cfg.Name, transcript)
	}

	transcript, err := a.run(ctx, transcript)
	if err != nil {
		metricskey.StatsAgentRunsFailed.IncrCounter(1, a.cfg.Name)
		logger.ContextKV(ctx, xlog.ERROR,
			"agent", a.cfg.Name,
			"run_id", GetRunID(ctx),
			"messages", len(transcript),
			"err", err.Error(),
		)
		if cb != nil {
			cb.OnRunError(ctx, a.cfg.Name, err, transcript)
		}
		return transcript, err
	}

	metricskey.StatsAgentRunsSucceeded.IncrCounter(1, a.cfg.Name)
	if cb != nil {
		cb.OnRunEnd(ctx, a.cfg.Name, transcript)
	}
	return transcript, nil
}

func (a *Agent) run(ctx context.Context, transcript []llms.Message) ([]llms.Message, error) {
	if len(transcript) == 0 {
		return transcript, errors.WithStack(ErrEmptyConversation)
	}
	if pending := llms.UnansweredToolCalls(transcript); len(pending) > 0 {
		return transcript, errors.Wrapf(ErrUnansweredToolCall,
			"conversation has tool call %s to %s without a tool message", pending[0].ID, pending[0].Name())
	}

	var (
		state  = StateInit
		rounds int
		last   = transcript[len(transcript)-1]
	)

	for state != StateDone {
		switch state {
		case StateCallModel:
			policy := a.cfg.ToolPolicy
			if rounds > 0 {
				policy = a.cfg.FollowUpPolicy
			}
			msg, err := a.invoker.Invoke(ctx, transcript, policy)
			if err != nil {
				return transcript, err
			}
			transcript = append(transcript, msg)
			last = msg

		case StateRunTool:
			if rounds >= a.cfg.MaxToolRounds {
				return transcript, errors.Wrapf(ErrMaxToolRounds, "agent %s: %d rounds", a.cfg.Name, rounds)
			}
			rounds++
			results, err := a.dispatcher.Dispatch(ctx, last)
			if err != nil {
				return transcript, err
			}
			transcript = append(transcript, results...)
			last = results[len(results)-1]
		}

		next := a.router.Next(state, last)
		logger.ContextKV(ctx, xlog.DEBUG,
			"agent", a.cfg.Name,
			"run_id", GetRunID(ctx),
			"from", state,
			"to", next,
			"messages", len(transcript),
		)
		if a.cfg.Callback != nil {
			a.cfg.Callback.OnStateChange(ctx, a.cfg.Name, state, next)
		}
		state = next
	}

	if pending := llms.UnansweredToolCalls(transcript); len(pending) > 0 {
		return transcript, errors.Wrapf(ErrUnansweredToolCall, "tool call %s to %s", pending[0].ID, pending[0].Name())
	}
	return transcript, nil
}
