package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"duck-pipeline/internal/db"
	"duck-pipeline/internal/db/repository"
	"duck-pipeline/internal/domain"
	"duck-pipeline/internal/pipeline"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		flags   pipelineFlags
		history string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a pipeline once",
		Long:  "Loads sources into raw.*, runs transformations into curated.*, and publishes targets unless --skip-target is set.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := flags.load()
			if err != nil {
				return err
			}

			runner, closeLedger, err := newRunner(cmd.Context(), a, historyPath(cmd.Flags(), history, a.cfg))
			if err != nil {
				return err
			}
			defer closeLedger()

			summary, err := runner.Run(cmd.Context(), p, pipeline.Options{
				SkipTarget: flags.skipTarget,
				Engine:     a.engineOptions(),
			})
			if err != nil {
				return err
			}
			return printSummary(cmd, summary)
		},
	}

	flags.register(cmd.Flags(), true)
	cmd.Flags().StringVar(&history, "history", "", "SQLite run history file (default $DUCKPIPE_HISTORY_DB; empty disables)")
	return cmd
}

// newRunner builds a Runner, recording history when path is set.
func newRunner(ctx context.Context, a *app, path string) (*pipeline.Runner, func(), error) {
	if path == "" {
		return pipeline.NewRunner(nil, a.logger), func() {}, nil
	}
	ledger, err := db.OpenLedger(ctx, path, a.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open run history: %w", err)
	}
	var repo domain.RunRepository = repository.NewRunRepo(ledger)
	return pipeline.NewRunner(repo, a.logger), func() { closeDB(ledger) }, nil
}

func closeDB(d *sql.DB) { _ = d.Close() }

type summaryJSON struct {
	RunID         string          `json:"run_id"`
	SourceRows    []tableRowsJSON `json:"sources"`
	Steps         []tableRowsJSON `json:"transformations"`
	Targets       []tableRowsJSON `json:"targets"`
	TargetSkipped bool            `json:"target_skipped"`
	DurationMS    int64           `json:"duration_ms"`
}

type tableRowsJSON struct {
	Name  string `json:"name"`
	Table string `json:"table"`
	Rows  int64  `json:"rows"`
}

func printSummary(cmd *cobra.Command, s *domain.RunSummary) error {
	w := cmd.OutOrStdout()
	if getOutputFormat(cmd) == "json" {
		out := summaryJSON{
			RunID:         s.RunID,
			SourceRows:    []tableRowsJSON{},
			Steps:         []tableRowsJSON{},
			Targets:       []tableRowsJSON{},
			TargetSkipped: s.TargetSkipped,
			DurationMS:    s.FinishedAt.Sub(s.StartedAt).Milliseconds(),
		}
		for _, r := range s.Sources {
			out.SourceRows = append(out.SourceRows, tableRowsJSON{Name: r.Name, Table: r.Table.String(), Rows: r.Rows})
		}
		for _, r := range s.Steps {
			out.Steps = append(out.Steps, tableRowsJSON{Name: fmt.Sprintf("#%d %s", r.Index, r.Kind), Table: r.Table.String(), Rows: r.Rows})
		}
		for _, r := range s.Targets {
			out.Targets = append(out.Targets, tableRowsJSON{Name: r.Source, Table: r.Target, Rows: r.Rows})
		}
		return PrintJSON(w, out)
	}

	rows := make([][]string, 0, len(s.Sources)+len(s.Steps)+len(s.Targets))
	for _, r := range s.Sources {
		rows = append(rows, []string{"load", r.Name, r.Table.String(), fmt.Sprint(r.Rows)})
	}
	for _, r := range s.Steps {
		rows = append(rows, []string{"transform", fmt.Sprintf("#%d %s", r.Index, r.Kind), r.Table.String(), fmt.Sprint(r.Rows)})
	}
	for _, r := range s.Targets {
		rows = append(rows, []string{"publish", r.Source, r.Target, fmt.Sprint(r.Rows)})
	}
	if err := PrintTable(w, []string{"STAGE", "STEP", "TABLE", "ROWS"}, rows); err != nil {
		return err
	}
	return printFooter(w, s)
}

func printFooter(w io.Writer, s *domain.RunSummary) error {
	note := ""
	if s.TargetSkipped {
		note = " (target skipped)"
	}
	_, err := fmt.Fprintf(w, "\nRun %s completed in %s%s.\n", s.RunID, formatDuration(s.FinishedAt.Sub(s.StartedAt)), note)
	return err
}
