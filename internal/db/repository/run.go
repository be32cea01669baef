package repository

import (
	"context"
	"database/sql"
	"time"

	"duck-pipeline/internal/domain"
)

// Compile-time check.
var _ domain.RunRepository = (*RunRepo)(nil)

// RunRepo implements RunRepository using SQLite.
type RunRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewRunRepo creates a new RunRepo.
func NewRunRepo(db *sql.DB) *RunRepo {
	return &RunRepo{db: db, now: time.Now}
}

// CreateRun inserts a run. An empty ID is filled in, as is a zero StartedAt.
func (r *RunRepo) CreateRun(ctx context.Context, run *domain.PipelineRun) error {
	if run.ID == "" {
		run.ID = domain.NewID()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = r.now()
	}
	if run.Status == "" {
		run.Status = domain.RunStatusRunning
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pipeline_runs (id, config_path, config_hash, status, skip_target, started_at, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ConfigPath, run.ConfigHash, run.Status, boolToInt(run.SkipTarget),
		formatTime(run.StartedAt), nullStrFromPtr(run.ErrorMessage))
	return mapDBError(err)
}

// FinishRun sets the final status of a run and stamps finished_at.
func (r *RunRepo) FinishRun(ctx context.Context, id, status string, errMsg *string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE pipeline_runs SET status = ?, error_message = ?, finished_at = ?
		WHERE id = ?`,
		status, nullStrFromPtr(errMsg), formatTime(r.now()), id)
	if err != nil {
		return mapDBError(err)
	}
	return requireAffected(res, "run", id)
}

// CreateStep inserts a step of an existing run.
func (r *RunRepo) CreateStep(ctx context.Context, step *domain.PipelineRunStep) error {
	if step.ID == "" {
		step.ID = domain.NewID()
	}
	if step.StartedAt.IsZero() {
		step.StartedAt = r.now()
	}
	if step.Status == "" {
		step.Status = domain.RunStatusRunning
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pipeline_run_steps
			(id, run_id, stage, step_index, name, status, rows, error_message, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		step.ID, step.RunID, step.Stage, step.StepIndex, step.Name, step.Status,
		nullInt64FromPtr(step.Rows), nullStrFromPtr(step.ErrorMessage), formatTime(step.StartedAt))
	return mapDBError(err)
}

// FinishStep sets the final status and row count of a step.
func (r *RunRepo) FinishStep(ctx context.Context, id, status string, rows *int64, errMsg *string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE pipeline_run_steps SET status = ?, rows = ?, error_message = ?, finished_at = ?
		WHERE id = ?`,
		status, nullInt64FromPtr(rows), nullStrFromPtr(errMsg), formatTime(r.now()), id)
	if err != nil {
		return mapDBError(err)
	}
	return requireAffected(res, "step", id)
}

// GetRun returns a run by ID.
func (r *RunRepo) GetRun(ctx context.Context, id string) (*domain.PipelineRun, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, config_path, config_hash, status, skip_target, started_at, finished_at, error_message
		FROM pipeline_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err != nil {
		return nil, mapDBError(err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first. limit <= 0 means 20.
func (r *RunRepo) ListRuns(ctx context.Context, limit int) ([]domain.PipelineRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, config_path, config_hash, status, skip_target, started_at, finished_at, error_message
		FROM pipeline_runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var runs []domain.PipelineRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// ListSteps returns the steps of a run in execution order.
func (r *RunRepo) ListSteps(ctx context.Context, runID string) ([]domain.PipelineRunStep, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, run_id, stage, step_index, name, status, rows, error_message, started_at, finished_at
		FROM pipeline_run_steps WHERE run_id = ?
		ORDER BY CASE stage WHEN 'load' THEN 0 WHEN 'transform' THEN 1 ELSE 2 END, step_index, started_at`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var steps []domain.PipelineRunStep
	for rows.Next() {
		var (
			s          domain.PipelineRunStep
			nrows      sql.NullInt64
			errMsg     sql.NullString
			startedAt  string
			finishedAt sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.RunID, &s.Stage, &s.StepIndex, &s.Name, &s.Status,
			&nrows, &errMsg, &startedAt, &finishedAt); err != nil {
			return nil, err
		}
		s.Rows = ptrFromNullInt64(nrows)
		s.ErrorMessage = ptrFromNullStr(errMsg)
		s.StartedAt = parseTime(startedAt)
		s.FinishedAt = parseTimePtr(finishedAt)
		steps = append(steps, s)
	}
	return steps, rows.Err()
}

// === Private mappers ===

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*domain.PipelineRun, error) {
	var (
		run        domain.PipelineRun
		skipTarget int64
		startedAt  string
		finishedAt sql.NullString
		errMsg     sql.NullString
	)
	if err := row.Scan(&run.ID, &run.ConfigPath, &run.ConfigHash, &run.Status, &skipTarget,
		&startedAt, &finishedAt, &errMsg); err != nil {
		return nil, err
	}
	run.SkipTarget = skipTarget != 0
	run.StartedAt = parseTime(startedAt)
	run.FinishedAt = parseTimePtr(finishedAt)
	run.ErrorMessage = ptrFromNullStr(errMsg)
	return &run, nil
}

func requireAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound("%s %s not found", kind, id)
	}
	return nil
}
