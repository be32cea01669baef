package domain

import (
	"context"
	"time"
)

// Run status constants.
const (
	RunStatusRunning = "RUNNING"
	RunStatusSuccess = "SUCCESS"
	RunStatusFailed  = "FAILED"
	RunStatusSkipped = "SKIPPED"
)

// Run stages.
const (
	StageLoad      = "load"
	StageTransform = "transform"
	StagePublish   = "publish"
)

// SourceResult reports one staged source.
type SourceResult struct {
	Name  string
	Table TableRef
	Rows  int64
}

// StepResult reports one executed transform descriptor.
type StepResult struct {
	Index    int
	Kind     TransformKind
	Table    TableRef
	Rows     int64
	Duration time.Duration
}

// TargetResult reports one published target table.
type TargetResult struct {
	Source string
	Target string
	Rows   int64
}

// RunSummary is what a pipeline invocation produced.
type RunSummary struct {
	RunID         string
	Sources       []SourceResult
	Steps         []StepResult
	Targets       []TargetResult
	TargetSkipped bool
	StartedAt     time.Time
	FinishedAt    time.Time
}

// PipelineRun is a recorded pipeline invocation.
type PipelineRun struct {
	ID           string
	ConfigPath   string
	ConfigHash   string // fingerprint of the parsed pipeline definition
	Status       string
	SkipTarget   bool
	StartedAt    time.Time
	FinishedAt   *time.Time
	ErrorMessage *string
}

// PipelineRunStep is one recorded unit of work within a run: a source load,
// a transform descriptor, or a target publish.
type PipelineRunStep struct {
	ID           string
	RunID        string
	Stage        string
	StepIndex    int
	Name         string
	Status       string
	Rows         *int64
	ErrorMessage *string
	StartedAt    time.Time
	FinishedAt   *time.Time
}

// RunRepository persists run history.
type RunRepository interface {
	CreateRun(ctx context.Context, run *PipelineRun) error
	FinishRun(ctx context.Context, id, status string, errMsg *string) error
	CreateStep(ctx context.Context, step *PipelineRunStep) error
	FinishStep(ctx context.Context, id, status string, rows *int64, errMsg *string) error
	GetRun(ctx context.Context, id string) (*PipelineRun, error)
	ListRuns(ctx context.Context, limit int) ([]PipelineRun, error)
	ListSteps(ctx context.Context, runID string) ([]PipelineRunStep, error)
}
