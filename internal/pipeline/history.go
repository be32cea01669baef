package pipeline

import (
	"context"
	"log/slog"
	"time"

	"duck-pipeline/internal/config"
	"duck-pipeline/internal/domain"
)

// recorder writes run progress to the ledger. Ledger failures are logged and
// never fail the pipeline.
type recorder struct {
	ctx    context.Context
	repo   domain.RunRepository
	runID  string
	logger *slog.Logger
}

func (r *Runner) startRecording(ctx context.Context, p *config.Pipeline, opts Options) *recorder {
	rec := &recorder{ctx: context.WithoutCancel(ctx), repo: r.history, runID: domain.NewID(), logger: r.logger}
	if rec.repo == nil {
		return rec
	}
	run := &domain.PipelineRun{
		ID:         rec.runID,
		ConfigPath: p.Path,
		ConfigHash: p.Fingerprint(),
		Status:     domain.RunStatusRunning,
		SkipTarget: opts.SkipTarget,
	}
	if err := rec.repo.CreateRun(rec.ctx, run); err != nil {
		rec.warn("create run", err)
		rec.repo = nil
	}
	return rec
}

func (rec *recorder) finishRun(runErr error) {
	if rec.repo == nil {
		return
	}
	status := domain.RunStatusSuccess
	if runErr != nil {
		status = domain.RunStatusFailed
	}
	if err := rec.repo.FinishRun(rec.ctx, rec.runID, status, errMessage(runErr)); err != nil {
		rec.warn("finish run", err)
	}
}

// step records the start of a step and returns a func that finishes it.
func (rec *recorder) step(stage string, index int, name string) func(rows int64, err error) {
	if rec.repo == nil {
		return func(int64, error) {}
	}
	s := &domain.PipelineRunStep{RunID: rec.runID, Stage: stage, StepIndex: index, Name: name}
	if err := rec.repo.CreateStep(rec.ctx, s); err != nil {
		rec.warn("create step", err)
		return func(int64, error) {}
	}
	return func(rows int64, stepErr error) {
		status := domain.RunStatusSuccess
		var rowsPtr *int64
		if stepErr != nil {
			status = domain.RunStatusFailed
		} else {
			rowsPtr = &rows
		}
		if err := rec.repo.FinishStep(rec.ctx, s.ID, status, rowsPtr, errMessage(stepErr)); err != nil {
			rec.warn("finish step", err)
		}
	}
}

// completedStep records a step that already finished successfully.
func (rec *recorder) completedStep(stage string, index int, name string, rows int64, took time.Duration) {
	if rec.repo == nil {
		return
	}
	s := &domain.PipelineRunStep{
		RunID:     rec.runID,
		Stage:     stage,
		StepIndex: index,
		Name:      name,
		StartedAt: time.Now().Add(-took),
	}
	if err := rec.repo.CreateStep(rec.ctx, s); err != nil {
		rec.warn("create step", err)
		return
	}
	if err := rec.repo.FinishStep(rec.ctx, s.ID, domain.RunStatusSuccess, &rows, nil); err != nil {
		rec.warn("finish step", err)
	}
}

// failedStep records a step that already failed.
func (rec *recorder) failedStep(stage string, index int, name string, stepErr error) {
	rec.step(stage, index, name)(0, stepErr)
}

func (rec *recorder) warn(op string, err error) {
	rec.logger.Warn("run history unavailable", "op", op, "run_id", rec.runID, "error", err)
}

func errMessage(err error) *string {
	if err == nil {
		return nil
	}
	msg := err.Error()
	return &msg
}
