package main

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mailagent/agent"
	"github.com/effective-security/mailagent/callbacks"
	"github.com/effective-security/mailagent/config"
	"github.com/effective-security/mailagent/pkg/llmfactory"
	"github.com/effective-security/mailagent/pkg/llms"
	"github.com/effective-security/mailagent/pkg/llmutils"
	"github.com/effective-security/mailagent/pkg/prompts"
	"github.com/effective-security/mailagent/tools"
	"github.com/effective-security/mailagent/tools/email"
	"github.com/effective-security/xlog"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

type runFlags struct {
	iterative  bool
	toolChoice string
	followUp   string
	system     string
	output     string
	transcript string
	maxRounds  int
	seed       int
	stop       []string
	stats      bool
}

func runCmd(c *cli) *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run [message...]",
		Short: "Run the agent on a user message",
		Long: `Run the agent on a user message and print the transcript.

By default the loop stops after the first tool round. With --iterative the
tool results are sent back to the model until it answers in plain text.

Examples:
  mailagent run "Email Jim confirming the meeting"
  mailagent run --iterative --system default "Email Jim confirming the meeting"
  mailagent run --output yaml "What's 2+2?"
  mailagent run --transcript chat.yaml "and copy Bob"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, f, args)
		},
	}

	cmd.Flags().BoolVar(&f.iterative, "iterative", false, "send tool results back to the model")
	cmd.Flags().StringVar(&f.toolChoice, "tool-choice", string(agent.ToolPolicyRequired), "tool policy of the first model call: required|auto|none")
	cmd.Flags().StringVar(&f.followUp, "follow-up", string(agent.ToolPolicyAuto), "tool policy after a tool round: required|auto|none")
	cmd.Flags().StringVar(&f.system, "system", "", `system prompt template, "default" for the built-in one`)
	cmd.Flags().StringVarP(&f.output, "output", "o", "text", "output format: text|json|yaml")
	cmd.Flags().StringVar(&f.transcript, "transcript", "", "YAML or JSON file with the conversation to continue")
	cmd.Flags().IntVar(&f.maxRounds, "max-rounds", agent.DefaultMaxToolRounds, "maximum number of tool rounds")
	cmd.Flags().IntVar(&f.seed, "seed", 0, "sampling seed, 0 to leave it to the model")
	cmd.Flags().StringSliceVar(&f.stop, "stop", nil, "words that end the generation")
	cmd.Flags().BoolVar(&f.stats, "stats", false, "print the run statistics")

	return cmd
}

func (c *cli) run(cmd *cobra.Command, f runFlags, args []string) error {
	switch f.output {
	case "text", "json", "yaml":
	default:
		return errors.Newf("unsupported output format %q, expected text, json or yaml", f.output)
	}
	policy, err := agent.ParseToolPolicy(f.toolChoice)
	if err != nil {
		return err
	}
	followUp, err := agent.ParseToolPolicy(f.followUp)
	if err != nil {
		return err
	}

	messages, err := loadTranscript(f.transcript)
	if err != nil {
		return err
	}
	if input := strings.TrimSpace(strings.Join(args, " ")); input != "" {
		messages = append(messages, llms.MessageFromTextParts(llms.RoleHuman, input))
	}
	if len(messages) == 0 {
		return errors.New("a message is required: mailagent run \"Email Jim confirming the meeting\"")
	}

	p, err := c.provider()
	if err != nil {
		return err
	}
	settings, err := p.Settings()
	if err != nil {
		return err
	}
	c.setupLogging(settings)

	systemPrompt, err := formatSystemPrompt(f.system, settings)
	if err != nil {
		return err
	}

	llm, err := llmfactory.NewLLM(llmfactory.FromSettings(settings))
	if err != nil {
		return err
	}

	registry, err := tools.NewRegistry()
	if err != nil {
		return err
	}
	if err = email.Register(registry); err != nil {
		return err
	}

	fanout := callbacks.NewFanout()
	if settings.Tracing {
		fanout.Add(callbacks.NewPackageLogger(logger))
	}
	if c.verbose {
		fanout.Add(callbacks.NewPrinter(c.errOut, callbacks.ModeVerbose))
	}
	var scratchpad *callbacks.Scratchpad
	if f.stats {
		scratchpad = callbacks.NewScratchpad(callbacks.ModeDefault)
		fanout.Add(scratchpad)
	}

	opts := []agent.Option{
		agent.WithTemperature(settings.Temperature),
		agent.WithToolPolicy(policy),
		agent.WithFollowUpPolicy(followUp),
		agent.WithIterative(f.iterative),
		agent.WithMaxToolRounds(f.maxRounds),
		agent.WithSystemPrompt(systemPrompt),
		agent.WithSeed(f.seed),
		agent.WithStopWords(f.stop...),
	}
	if fanout.Len() > 0 {
		opts = append(opts, agent.WithCallback(fanout))
	}

	a, err := agent.New(llm, registry, opts...)
	if err != nil {
		return err
	}

	ctx := agent.WithRunContext(cmd.Context(), agent.NewRunContext("", settings.Project))
	logger.ContextKV(ctx, xlog.INFO,
		"status", "run",
		"run_id", agent.GetRunID(ctx),
		"model", llm.GetName(),
		"iterative", f.iterative,
		"messages", len(messages),
	)

	transcript, runErr := a.Run(ctx, messages)
	if runErr == nil || len(transcript) > len(messages) {
		if err = render(c.out, f.output, transcript); err != nil {
			return err
		}
	}
	if scratchpad != nil {
		if stats, _ := scratchpad.EndRun(ctx); stats != nil {
			_, _ = c.errOut.Write([]byte(llmutils.ToYAML(stats)))
		}
	}
	return runErr
}

// loadTranscript reads a conversation saved with --output json or yaml.
func loadTranscript(path string) ([]llms.Message, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	js, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read transcript %s", path)
	}
	list, err := llms.UnmarshalTranscript(js)
	if err != nil {
		return nil, errors.WithMessagef(err, "transcript %s", path)
	}
	return list, nil
}

func formatSystemPrompt(tmpl string, s *config.Settings) (string, error) {
	switch tmpl {
	case "":
		return "", nil
	case "default":
		tmpl = prompts.DefaultSystemPrompt
	}
	pt, err := prompts.NewPromptTemplate(tmpl, nil)
	if err != nil {
		return "", err
	}
	return pt.Format(map[string]any{
		"project": s.Project,
		"model":   s.Model,
	})
}
