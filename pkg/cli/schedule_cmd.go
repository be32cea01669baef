package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"duck-pipeline/internal/domain"
	"duck-pipeline/internal/pipeline"
)

func newScheduleCmd(a *app) *cobra.Command {
	var (
		flags    pipelineFlags
		cronExpr string
		history  string
		runNow   bool
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run a pipeline on a cron schedule until interrupted",
		Long: "Runs the pipeline whenever the cron expression fires. The pipeline file is re-read on every run. " +
			"A run is skipped while the previous one is still in progress.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := flags.load()
			if err != nil {
				return err
			}
			schedule := p.Schedule
			if cmd.Flags().Changed("cron") {
				schedule = cronExpr
			}
			if schedule == "" {
				return domain.ErrConfiguration("no schedule: set 'schedule' in %s or pass --cron", flags.configPath)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			runner, closeLedger, err := newRunner(ctx, a, historyPath(cmd.Flags(), history, a.cfg))
			if err != nil {
				return err
			}
			defer closeLedger()

			job := pipeline.PipelineJob(runner, flags.configPath, pipeline.Options{
				SkipTarget: flags.skipTarget,
				Engine:     a.engineOptions(),
			})

			sched := pipeline.NewScheduler(a.logger)
			if err := sched.Add(flags.configPath, schedule, job); err != nil {
				return err
			}
			if runNow {
				if err := job(ctx); err != nil {
					a.logger.Warn("initial run failed", "error", err)
				}
			}
			return sched.Run(ctx)
		},
	}

	flags.register(cmd.Flags(), true)
	cmd.Flags().StringVar(&cronExpr, "cron", "", "Cron expression overriding the file's schedule, e.g. \"*/15 * * * *\" or @hourly")
	cmd.Flags().StringVar(&history, "history", "", "SQLite run history file (default $DUCKPIPE_HISTORY_DB; empty disables)")
	cmd.Flags().BoolVar(&runNow, "run-now", false, "Run once immediately before waiting for the schedule")
	return cmd
}
