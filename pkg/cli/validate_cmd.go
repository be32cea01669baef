package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"duck-pipeline/internal/transform"
)

func newValidateCmd(_ *app) *cobra.Command {
	var flags pipelineFlags

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a pipeline file offline",
		Long:  "Checks sources, transformations and, unless --skip-target is set, targets without touching any database.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := flags.load()
			if err != nil {
				return err
			}

			var problems []error
			if err := p.Validate(flags.skipTarget); err != nil {
				problems = append(problems, unjoin(err)...)
			}
			if _, err := transform.ParseAll(p.Transformations); err != nil {
				problems = append(problems, unjoin(err)...)
			}

			w := cmd.OutOrStdout()
			if len(problems) > 0 {
				if getOutputFormat(cmd) == "json" {
					msgs := make([]string, len(problems))
					for i, e := range problems {
						msgs[i] = e.Error()
					}
					if err := PrintJSON(w, map[string]any{"valid": false, "errors": msgs}); err != nil {
						return err
					}
				} else {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Configuration has %d validation error(s):\n", len(problems))
					for _, e := range problems {
						_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "  - %s\n", e)
					}
				}
				return reportedError{fmt.Errorf("%s: %w", flags.configPath, errors.Join(problems...))}
			}

			if getOutputFormat(cmd) == "json" {
				return PrintJSON(w, map[string]any{
					"valid":           true,
					"sources":         len(p.Sources),
					"transformations": len(p.Transformations),
					"targets":         len(p.Targets),
				})
			}
			_, _ = fmt.Fprintf(w, "Configuration is valid: %d source(s), %d transformation(s), %d target(s).\n",
				len(p.Sources), len(p.Transformations), len(p.Targets))
			return nil
		},
	}

	flags.register(cmd.Flags(), true)
	return cmd
}

// unjoin flattens an errors.Join tree one level.
func unjoin(err error) []error {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}
