package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"duck-pipeline/internal/db"
	"duck-pipeline/internal/db/repository"
	"duck-pipeline/internal/domain"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		history string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded pipeline runs, or the steps of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := historyPath(cmd.Flags(), history, a.cfg)
			if path == "" {
				return domain.ErrConfiguration("no run history configured: set --history or DUCKPIPE_HISTORY_DB")
			}
			repo, closeFn, err := openHistory(cmd.Context(), path)
			if err != nil {
				return err
			}
			defer closeFn()

			if len(args) == 1 {
				return showRun(cmd, repo, args[0])
			}
			return listRuns(cmd, repo, limit)
		},
	}

	cmd.Flags().StringVar(&history, "history", "", "SQLite run history file (default $DUCKPIPE_HISTORY_DB)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")
	return cmd
}

func openHistory(ctx context.Context, path string) (*repository.RunRepo, func(), error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil, domain.ErrNotFound("run history %s does not exist", path)
	}
	conn, err := db.OpenSQLite(ctx, path, db.ModeRead)
	if err != nil {
		return nil, nil, err
	}
	return repository.NewRunRepo(conn), func() { closeDB(conn) }, nil
}

type runJSON struct {
	ID           string  `json:"id"`
	ConfigPath   string  `json:"config_path"`
	ConfigHash   string  `json:"config_hash"`
	Status       string  `json:"status"`
	SkipTarget   bool    `json:"skip_target"`
	StartedAt    string  `json:"started_at"`
	FinishedAt   *string `json:"finished_at,omitempty"`
	ErrorMessage *string `json:"error_message,omitempty"`
}

func toRunJSON(r domain.PipelineRun) runJSON {
	out := runJSON{
		ID:           r.ID,
		ConfigPath:   r.ConfigPath,
		ConfigHash:   r.ConfigHash,
		Status:       r.Status,
		SkipTarget:   r.SkipTarget,
		StartedAt:    r.StartedAt.UTC().Format(timeJSON),
		ErrorMessage: r.ErrorMessage,
	}
	if r.FinishedAt != nil {
		s := r.FinishedAt.UTC().Format(timeJSON)
		out.FinishedAt = &s
	}
	return out
}

const timeJSON = "2006-01-02T15:04:05.000Z07:00"

func listRuns(cmd *cobra.Command, repo *repository.RunRepo, limit int) error {
	runs, err := repo.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}

	if getOutputFormat(cmd) == "json" {
		out := make([]runJSON, len(runs))
		for i, r := range runs {
			out[i] = toRunJSON(r)
		}
		return PrintJSON(cmd.OutOrStdout(), out)
	}

	rows := make([][]string, len(runs))
	for i, r := range runs {
		started := r.StartedAt
		rows[i] = []string{r.ID, r.Status, r.ConfigPath, shortHash(r.ConfigHash), formatTime(&started), formatTime(r.FinishedAt), deref(r.ErrorMessage)}
	}
	return PrintTable(cmd.OutOrStdout(), []string{"RUN", "STATUS", "CONFIG", "HASH", "STARTED", "FINISHED", "ERROR"}, rows)
}

type stepJSON struct {
	Stage        string  `json:"stage"`
	Index        int     `json:"index"`
	Name         string  `json:"name"`
	Status       string  `json:"status"`
	Rows         *int64  `json:"rows,omitempty"`
	ErrorMessage *string `json:"error_message,omitempty"`
}

func showRun(cmd *cobra.Command, repo *repository.RunRepo, id string) error {
	run, err := repo.GetRun(cmd.Context(), id)
	if err != nil {
		return err
	}
	steps, err := repo.ListSteps(cmd.Context(), id)
	if err != nil {
		return err
	}

	if getOutputFormat(cmd) == "json" {
		out := make([]stepJSON, len(steps))
		for i, s := range steps {
			out[i] = stepJSON{Stage: s.Stage, Index: s.StepIndex, Name: s.Name, Status: s.Status, Rows: s.Rows, ErrorMessage: s.ErrorMessage}
		}
		return PrintJSON(cmd.OutOrStdout(), map[string]any{"run": toRunJSON(*run), "steps": out})
	}

	w := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(w, "Run %s: %s (%s)\n\n", run.ID, run.Status, run.ConfigPath)
	rows := make([][]string, len(steps))
	for i, s := range steps {
		rows[i] = []string{s.Stage, fmt.Sprint(s.StepIndex), s.Name, s.Status, formatRows(s.Rows), deref(s.ErrorMessage)}
	}
	return PrintTable(w, []string{"STAGE", "#", "NAME", "STATUS", "ROWS", "ERROR"}, rows)
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
