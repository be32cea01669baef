// Package pipeline orchestrates a full run: stage sources, run transforms,
// publish targets, and record history.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"duck-pipeline/internal/config"
	"duck-pipeline/internal/domain"
	"duck-pipeline/internal/engine"
	"duck-pipeline/internal/ingestion"
	"duck-pipeline/internal/publish"
	"duck-pipeline/internal/transform"
)

// Options tunes a single run.
type Options struct {
	SkipTarget bool
	Engine     engine.Options
}

// PublisherFactory opens the target database.
type PublisherFactory func(ctx context.Context, spec config.TargetConnSpec, logger *slog.Logger) (publish.Publisher, error)

// Runner executes pipelines. It is safe to reuse across runs but not to run
// concurrently against the same DuckDB file.
type Runner struct {
	history       domain.RunRepository
	openPublisher PublisherFactory
	logger        *slog.Logger
}

// NewRunner creates a Runner. history may be nil to disable the run ledger.
func NewRunner(history domain.RunRepository, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{history: history, openPublisher: publish.Open, logger: logger}
}

// WithPublisherFactory replaces how target databases are opened.
func (r *Runner) WithPublisherFactory(f PublisherFactory) *Runner {
	r.openPublisher = f
	return r
}

// Run validates the pipeline, then loads sources, runs transformations and,
// unless opts.SkipTarget is set, publishes targets. The summary is returned
// even on failure and covers the work completed.
func (r *Runner) Run(ctx context.Context, p *config.Pipeline, opts Options) (*domain.RunSummary, error) {
	summary := &domain.RunSummary{StartedAt: time.Now(), TargetSkipped: opts.SkipTarget}

	if err := p.Validate(opts.SkipTarget); err != nil {
		return summary, err
	}
	transforms, err := transform.ParseAll(p.Transformations)
	if err != nil {
		return summary, err
	}

	rec := r.startRecording(ctx, p, opts)
	summary.RunID = rec.runID
	logger := r.logger.With("run_id", rec.runID)
	logger.Info("pipeline started", "config", p.Path, "raw_db", p.RawDB.Path, "skip_target", opts.SkipTarget)

	err = r.execute(ctx, logger, rec, p, transforms, opts, summary)
	summary.FinishedAt = time.Now()
	rec.finishRun(err)

	if err != nil {
		logger.Error("pipeline failed", "error", err, "duration", summary.FinishedAt.Sub(summary.StartedAt))
		return summary, err
	}
	logger.Info("pipeline completed",
		"sources", len(summary.Sources),
		"transformations", len(summary.Steps),
		"targets", len(summary.Targets),
		"duration", summary.FinishedAt.Sub(summary.StartedAt),
	)
	return summary, nil
}

func (r *Runner) execute(
	ctx context.Context,
	logger *slog.Logger,
	rec *recorder,
	p *config.Pipeline,
	transforms []domain.Transform,
	opts Options,
	summary *domain.RunSummary,
) error {
	cat, err := engine.Open(ctx, p.RawDB.Path, opts.Engine, logger)
	if err != nil {
		return err
	}
	defer func() { _ = cat.Close() }()

	if err := r.configureStorage(ctx, cat, p); err != nil {
		return err
	}

	// Sources.
	loader := ingestion.NewLoader(cat, logger)
	for i, src := range p.Sources {
		done := rec.step(domain.StageLoad, i, src.Name)
		res, err := loader.LoadOne(ctx, src)
		if err != nil {
			done(0, err)
			return err
		}
		done(res.Rows, nil)
		summary.Sources = append(summary.Sources, res)
	}

	// Transformations.
	eng := transform.NewEngine(cat, logger)
	results, runErr := eng.Run(ctx, transforms)
	summary.Steps = results
	for _, res := range results {
		rec.completedStep(domain.StageTransform, res.Index, res.Table.String(), res.Rows, res.Duration)
	}
	if runErr != nil {
		var stepErr *domain.StepError
		if errors.As(runErr, &stepErr) {
			name := fmt.Sprintf("#%d", stepErr.Index)
			if stepErr.OutputTable != "" {
				name = domain.CuratedTable(stepErr.OutputTable).String()
			}
			rec.failedStep(domain.StageTransform, stepErr.Index, name, runErr)
		}
		return runErr
	}

	// Targets.
	if opts.SkipTarget {
		logger.Info("skipping target publish")
		return nil
	}
	pub, err := r.openPublisher(ctx, p.Target, logger)
	if err != nil {
		return err
	}
	defer func() { _ = pub.Close() }()

	start := time.Now()
	targets, err := pub.Publish(ctx, cat, p.Targets)
	if err != nil {
		rec.failedStep(domain.StagePublish, 0, "targets", err)
		return err
	}
	elapsed := time.Since(start)
	for i, t := range targets {
		rec.completedStep(domain.StagePublish, i, t.Source+" -> "+t.Target, t.Rows, elapsed)
	}
	summary.Targets = targets
	return nil
}

// configureStorage enables remote reads when any source needs them.
func (r *Runner) configureStorage(ctx context.Context, cat *engine.Catalog, p *config.Pipeline) error {
	if s3 := p.Storage.S3; s3 != nil {
		return cat.ConfigureS3(ctx, engine.S3Settings{
			KeyID:    s3.KeyID,
			Secret:   s3.Secret,
			Endpoint: s3.Endpoint,
			Region:   s3.Region,
			URLStyle: s3.URLStyle,
		})
	}
	for _, src := range p.Sources {
		if ingestion.IsRemote(src.Path) {
			if err := cat.InstallExtensions(ctx); err != nil {
				return fmt.Errorf("remote source %q: %w", src.Name, err)
			}
			return nil
		}
	}
	return nil
}
