package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internaldb "duck-pipeline/internal/db"
	"duck-pipeline/internal/domain"
)

func setupRunRepo(t *testing.T) *RunRepo {
	t.Helper()
	return NewRunRepo(internaldb.OpenTestLedger(t))
}

func TestRunRepo_CreateAndFinishRun(t *testing.T) {
	repo := setupRunRepo(t)
	ctx := context.Background()

	run := &domain.PipelineRun{ConfigPath: "pipeline.yaml", ConfigHash: "9f2c1e", SkipTarget: true}
	require.NoError(t, repo.CreateRun(ctx, run))
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, domain.RunStatusRunning, run.Status)

	got, err := repo.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "pipeline.yaml", got.ConfigPath)
	assert.Equal(t, "9f2c1e", got.ConfigHash)
	assert.True(t, got.SkipTarget)
	assert.Nil(t, got.FinishedAt)
	assert.Nil(t, got.ErrorMessage)
	assert.WithinDuration(t, run.StartedAt, got.StartedAt, time.Millisecond)

	msg := "transformation #1 (join -> x): missing required field \"on\""
	require.NoError(t, repo.FinishRun(ctx, run.ID, domain.RunStatusFailed, &msg))

	got, err = repo.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, got.Status)
	require.NotNil(t, got.FinishedAt)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, msg, *got.ErrorMessage)
}

func TestRunRepo_NotFound(t *testing.T) {
	repo := setupRunRepo(t)
	ctx := context.Background()

	_, err := repo.GetRun(ctx, "missing")
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)

	err = repo.FinishRun(ctx, "missing", domain.RunStatusSuccess, nil)
	require.ErrorAs(t, err, &nf)

	err = repo.FinishStep(ctx, "missing", domain.RunStatusSuccess, nil, nil)
	require.ErrorAs(t, err, &nf)
}

func TestRunRepo_DuplicateRun(t *testing.T) {
	repo := setupRunRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateRun(ctx, &domain.PipelineRun{ID: "r1", ConfigPath: "a.yaml"}))
	err := repo.CreateRun(ctx, &domain.PipelineRun{ID: "r1", ConfigPath: "a.yaml"})
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestRunRepo_Steps(t *testing.T) {
	repo := setupRunRepo(t)
	ctx := context.Background()

	run := &domain.PipelineRun{ConfigPath: "pipeline.yaml"}
	require.NoError(t, repo.CreateRun(ctx, run))

	steps := []*domain.PipelineRunStep{
		{RunID: run.ID, Stage: domain.StagePublish, StepIndex: 0, Name: "curated.summary -> public.summary"},
		{RunID: run.ID, Stage: domain.StageTransform, StepIndex: 1, Name: "curated.summary"},
		{RunID: run.ID, Stage: domain.StageTransform, StepIndex: 0, Name: "curated.high_value_orders"},
		{RunID: run.ID, Stage: domain.StageLoad, StepIndex: 0, Name: "orders"},
	}
	for _, s := range steps {
		require.NoError(t, repo.CreateStep(ctx, s))
	}

	rows := int64(42)
	require.NoError(t, repo.FinishStep(ctx, steps[2].ID, domain.RunStatusSuccess, &rows, nil))

	got, err := repo.ListSteps(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 4)

	var order []string
	for _, s := range got {
		order = append(order, s.Name)
	}
	assert.Equal(t, []string{
		"orders",
		"curated.high_value_orders",
		"curated.summary",
		"curated.summary -> public.summary",
	}, order)

	require.NotNil(t, got[1].Rows)
	assert.Equal(t, int64(42), *got[1].Rows)
	assert.Equal(t, domain.RunStatusSuccess, got[1].Status)
	assert.NotNil(t, got[1].FinishedAt)
	assert.Nil(t, got[0].Rows)
}

func TestRunRepo_StepRequiresRun(t *testing.T) {
	repo := setupRunRepo(t)
	err := repo.CreateStep(context.Background(), &domain.PipelineRunStep{RunID: "nope", Stage: domain.StageLoad, Name: "x"})
	require.Error(t, err)
}

func TestRunRepo_ListRuns(t *testing.T) {
	repo := setupRunRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.CreateRun(ctx, &domain.PipelineRun{
			ConfigPath: "pipeline.yaml",
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
		}))
	}

	runs, err := repo.ListRuns(ctx, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, base.Add(4*time.Minute), runs[0].StartedAt)
	assert.Equal(t, base.Add(2*time.Minute), runs[2].StartedAt)

	all, err := repo.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}
