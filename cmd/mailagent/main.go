// Command mailagent runs the email tool-calling agent against an
// OpenAI compatible chat completions endpoint.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mailagent/config"
	"github.com/effective-security/mailagent/pkg/llms"
	"github.com/fatih/color"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, newCLI(os.Stdout, os.Stderr, os.LookupEnv), os.Args[1:])
	stop()
	os.Exit(code)
}

// execute runs the command line and returns the exit status.
func execute(ctx context.Context, c *cli, args []string) int {
	cmd := newRootCmd(c)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		_, _ = color.New(color.FgRed).Fprintf(c.errOut, "Error: %s\n", err.Error())
		if hint := errorHint(err); hint != "" {
			_, _ = color.New(color.FgYellow).Fprintf(c.errOut, "Hint: %s\n", hint)
		}
		return 1
	}
	return 0
}

// errorHint points at the settings behind a model failure.
func errorHint(err error) string {
	if !llms.IsModelError(err) {
		return ""
	}
	switch {
	case errors.Is(err, llms.ErrAuthentication):
		return "check " + config.KeyAPIKey
	case errors.Is(err, llms.ErrTransport):
		return "check " + config.KeyBaseURL + " and " + config.KeyTimeout
	case errors.Is(err, llms.ErrModelAPI), errors.Is(err, llms.ErrMalformedResponse):
		return "check " + config.KeyModel + " and " + config.KeyBaseURL
	}
	return ""
}
