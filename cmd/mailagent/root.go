package main

import (
	"io"

	"github.com/effective-security/mailagent/config"
	"github.com/effective-security/xlog"
	"github.com/spf13/cobra"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mailagent", "cmd")

type cli struct {
	out    io.Writer
	errOut io.Writer
	env    config.LookupFunc

	configFile string
	verbose    bool
}

func newCLI(out, errOut io.Writer, env config.LookupFunc) *cli {
	return &cli{
		out:    out,
		errOut: errOut,
		env:    env,
	}
}

func newRootCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mailagent",
		Short: "Email assistant driven by a tool-calling model",
		Long: `mailagent sends a user message to the model and runs the write_email
tool when the model asks for it.

Configuration is read from the environment:
  ARK_API_KEY       API key of the model endpoint (required)
  ARK_BASE_URL      base URL of the chat completions API
  ARK_MODEL         model or endpoint ID
  ARK_TEMPERATURE   sampling temperature, 0 by default
  ARK_TIMEOUT       timeout of one model call, 0 disables it
  AGENT_TRACING     log every loop event, true by default
  AGENT_PROJECT     project label of the traces
  AGENT_LOG_LEVEL   log level, INFO by default

LANGSMITH_TRACING and LANGSMITH_PROJECT are read when the AGENT_ names are not set.
Settings other than the API key may also be read from --config FILE.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(c.out)
	cmd.SetErr(c.errOut)

	cmd.PersistentFlags().StringVarP(&c.configFile, "config", "c", "", "settings file: YAML, JSON or TOML")
	cmd.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "print the loop events")

	cmd.AddCommand(runCmd(c))
	cmd.AddCommand(toolsCmd(c))
	cmd.AddCommand(checkCmd(c))

	return cmd
}

// provider returns the configuration provider for the flags.
func (c *cli) provider() (*config.Provider, error) {
	file, err := config.LoadFile(c.configFile)
	if err != nil {
		return nil, err
	}
	return config.NewProvider(c.env, file), nil
}

// setupLogging sends the logs to the error output at the configured level.
func (c *cli) setupLogging(s *config.Settings) {
	lvl, _ := config.ParseLogLevel(s.LogLevel)
	xlog.SetFormatter(xlog.NewStringFormatter(c.errOut))
	xlog.SetGlobalLogLevel(lvl)
}
