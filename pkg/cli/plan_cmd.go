package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"duck-pipeline/internal/config"
	"duck-pipeline/internal/engine"
	"duck-pipeline/internal/transform"
)

type plannedStepJSON struct {
	Index     int      `json:"index"`
	Type      string   `json:"type"`
	Output    string   `json:"output"`
	Inputs    []string `json:"inputs"`
	DependsOn []int    `json:"depends_on"`
	Depth     int      `json:"depth"`
	Statement string   `json:"statement"`
	Warnings  []string `json:"warnings,omitempty"`
}

func newPlanCmd(a *app) *cobra.Command {
	var (
		flags   pipelineFlags
		showSQL bool
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the statements a run would execute",
		Long: "Parses the transformations and prints, in order, the table each one writes, the tables it reads, " +
			"and the SQL it would run. Plain table names are resolved against the existing catalog when present.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := flags.load()
			if err != nil {
				return err
			}
			transforms, err := transform.ParseAll(p.Transformations)
			if err != nil {
				return err
			}

			var cat transform.Catalog
			if existing, err := openExistingCatalog(cmd.Context(), a, p); err != nil {
				return err
			} else if existing != nil {
				defer func() { _ = existing.Close() }()
				cat = existing
			}

			steps, err := transform.Plan(cmd.Context(), cat, transforms)
			if err != nil {
				return err
			}
			lineage := transform.Lineage(transforms)

			out := make([]plannedStepJSON, len(steps))
			for i, s := range steps {
				inputs := make([]string, len(s.Inputs))
				for j, ref := range s.Inputs {
					inputs[j] = ref.String()
				}
				out[i] = plannedStepJSON{
					Index:     s.Index,
					Type:      s.Kind.String(),
					Output:    s.Output.String(),
					Inputs:    inputs,
					DependsOn: lineage[i].DependsOn,
					Depth:     lineage[i].Depth,
					Statement: s.Statement,
					Warnings:  lineage[i].Warnings,
				}
				if out[i].DependsOn == nil {
					out[i].DependsOn = []int{}
				}
			}

			if getOutputFormat(cmd) == "json" {
				return PrintJSON(cmd.OutOrStdout(), out)
			}
			return printPlan(cmd, out, showSQL)
		},
	}

	flags.register(cmd.Flags(), false)
	cmd.Flags().BoolVar(&showSQL, "sql", false, "Print the full SQL statement of every step")
	return cmd
}

func printPlan(cmd *cobra.Command, steps []plannedStepJSON, showSQL bool) error {
	w := cmd.OutOrStdout()
	rows := make([][]string, len(steps))
	for i, s := range steps {
		deps := make([]string, len(s.DependsOn))
		for j, d := range s.DependsOn {
			deps[j] = fmt.Sprintf("#%d", d)
		}
		inputs := strings.Join(s.Inputs, ", ")
		if inputs == "" {
			inputs = "(sql)"
		}
		rows[i] = []string{fmt.Sprintf("#%d", s.Index), s.Type, s.Output, inputs, strings.Join(deps, ", "), fmt.Sprint(s.Depth)}
	}
	if err := PrintTable(w, []string{"STEP", "TYPE", "OUTPUT", "INPUTS", "DEPENDS ON", "DEPTH"}, rows); err != nil {
		return err
	}

	for _, s := range steps {
		for _, warn := range s.Warnings {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: step #%d: %s\n", s.Index, warn)
		}
	}

	if showSQL {
		for _, s := range steps {
			_, _ = fmt.Fprintf(w, "\n-- #%d %s\n%s;\n", s.Index, s.Type, s.Statement)
		}
	}
	return nil
}

// openExistingCatalog opens the pipeline's DuckDB file if it already exists.
// A missing file yields a nil catalog.
func openExistingCatalog(ctx context.Context, a *app, p *config.Pipeline) (*engine.Catalog, error) {
	if _, err := os.Stat(p.RawDB.Path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return engine.Open(ctx, p.RawDB.Path, a.engineOptions(), a.logger)
}
