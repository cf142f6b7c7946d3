package main

import (
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mailagent/pkg/llms"
	"github.com/effective-security/mailagent/pkg/llmutils"
	"github.com/fatih/color"
)

var (
	userColor      = color.New(color.FgCyan, color.Bold)
	assistantColor = color.New(color.FgGreen, color.Bold)
	toolColor      = color.New(color.FgYellow, color.Bold)
	callColor      = color.New(color.FgMagenta)
)

func render(w io.Writer, format string, transcript []llms.Message) error {
	switch format {
	case "json":
		_, err := fmt.Fprintln(w, llmutils.ToJSONIndent(transcript))
		return errors.WithStack(err)
	case "yaml":
		_, err := io.WriteString(w, llmutils.ToYAML(transcript))
		return errors.WithStack(err)
	}
	for _, msg := range transcript {
		renderText(w, msg)
	}
	return nil
}

func renderText(w io.Writer, msg llms.Message) {
	switch msg.Role {
	case llms.RoleHuman:
		_, _ = userColor.Fprint(w, "user: ")
	case llms.RoleAI:
		_, _ = assistantColor.Fprint(w, "assistant: ")
	case llms.RoleTool:
		_, _ = toolColor.Fprint(w, "tool: ")
	default:
		fmt.Fprintf(w, "%s: ", msg.Role)
	}

	first := true
	for _, part := range msg.Parts {
		if !first {
			fmt.Fprint(w, "  ")
		}
		first = false
		switch p := part.(type) {
		case llms.TextContent:
			fmt.Fprintln(w, p.Text)
		case llms.ToolCall:
			_, _ = callColor.Fprintf(w, "%s(%s)", p.Name(), p.Arguments())
			fmt.Fprintf(w, " [%s]\n", p.ID)
		case llms.ToolCallResponse:
			fmt.Fprintln(w, p.Content)
		}
	}
	if first {
		fmt.Fprintln(w)
	}
}
