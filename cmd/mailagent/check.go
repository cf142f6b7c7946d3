package main

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mailagent/config"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func checkCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration",
		Long: `Validate the configuration and print the effective settings.
The API key is redacted. Every missing variable is reported at once.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.provider()
			if err != nil {
				return err
			}

			for _, name := range p.Missing() {
				v, _ := config.Find(name)
				_, _ = color.New(color.FgRed).Fprintf(c.out, "missing: %s", name)
				fmt.Fprintf(c.out, " (%s, %s)\n", v.Description, v.Tier)
			}

			settings, err := p.Settings()
			if err != nil {
				return err
			}

			y, err := yaml.Marshal(settings.Redacted())
			if err != nil {
				return errors.WithStack(err)
			}
			fmt.Fprint(c.out, string(y))
			_, _ = color.New(color.FgGreen).Fprintln(c.out, "configuration is valid")
			return nil
		},
	}
}
