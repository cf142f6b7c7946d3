package main

import (
	"fmt"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/effective-security/mailagent/pkg/llmutils"
	"github.com/effective-security/mailagent/tools"
	"github.com/effective-security/mailagent/tools/email"
	"github.com/spf13/cobra"
)

func toolsCmd(c *cli) *cobra.Command {
	var example bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools available to the model",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := tools.NewRegistry()
			if err != nil {
				return err
			}
			if err = email.Register(registry); err != nil {
				return err
			}

			fmt.Fprint(c.out, tools.GetDescriptions(registry.Tools()...))
			for _, t := range registry.Tools() {
				fmt.Fprintf(c.out, "\n%s parameters:\n%s\n", t.Name(), llmutils.ToJSONIndent(t.Parameters()))
			}

			if example {
				var req email.Request
				if err = gofakeit.Struct(&req); err != nil {
					return err
				}
				fmt.Fprintf(c.out, "\n%s example arguments:\n%s\n", email.ToolName, llmutils.ToJSONIndent(req))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&example, "example", false, "print example arguments")
	return cmd
}
