package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"duck-pipeline/internal/config"
	"duck-pipeline/internal/domain"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Scheduler runs jobs on cron schedules. A tick is skipped while the
// previous run of the same job is still in progress.
type Scheduler struct {
	cron    *cron.Cron
	logger  *slog.Logger
	mu      sync.Mutex
	ctx     context.Context
	entries map[string]cron.EntryID // job name → cron entry
}

// NewScheduler creates a new scheduler. Standard five-field expressions and
// descriptors such as @hourly or @every 10m are accepted.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("component", "scheduler")
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		logger:  logger,
		ctx:     context.Background(),
		entries: make(map[string]cron.EntryID),
	}
}

// Add registers job under name. Registering an existing name replaces it.
func (s *Scheduler) Add(name, schedule string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, err := s.cron.AddFunc(schedule, func() {
		s.mu.Lock()
		ctx := s.ctx
		s.mu.Unlock()

		start := time.Now()
		if err := job(ctx); err != nil {
			s.logger.Warn("scheduled run failed", "job", name, "error", err, "duration", time.Since(start))
			return
		}
		s.logger.Info("scheduled run finished", "job", name, "duration", time.Since(start))
	})
	if err != nil {
		return domain.ErrConfiguration("invalid cron schedule %q: %v", schedule, err)
	}

	if prev, ok := s.entries[name]; ok {
		s.cron.Remove(prev)
	}
	s.entries[name] = entryID
	s.logger.Info("scheduled pipeline", "job", name, "schedule", schedule)
	return nil
}

// Next returns the next activation time of a registered job.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

// Start begins running jobs in the background. Jobs receive ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.cron.Start()
	s.logger.Info("pipeline scheduler started", "jobs", len(s.entries))
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("pipeline scheduler stopped")
}

// Run starts the scheduler and blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Start(ctx)
	<-ctx.Done()
	s.Stop()
	return nil
}

// PipelineJob returns a Job that reloads the pipeline file on every tick, so
// edits take effect without restarting the scheduler.
func PipelineJob(runner *Runner, path string, opts Options) Job {
	return func(ctx context.Context) error {
		p, err := config.LoadPipeline(path)
		if err != nil {
			return err
		}
		_, err = runner.Run(ctx, p, opts)
		return err
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
