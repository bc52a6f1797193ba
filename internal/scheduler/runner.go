package scheduler

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rxledger/statements/internal/api/dto"
	"github.com/rxledger/statements/internal/cache"
	"github.com/rxledger/statements/internal/config"
	ierr "github.com/rxledger/statements/internal/errors"
	"github.com/rxledger/statements/internal/logger"
	"github.com/rxledger/statements/internal/sentry"
	"github.com/rxledger/statements/internal/service"
	"github.com/rxledger/statements/internal/types"
	"github.com/samber/lo"
)

// Trigger names what started a processing run
const (
	TriggerSchedule = "schedule"
	TriggerCron     = "cron"
	TriggerManual   = "manual"
)

// Runner starts processing passes on a schedule or on demand and keeps a
// short history of their outcomes
type Runner struct {
	processor service.StatementProcessor
	cache     cache.Cache
	lock      RunLock
	config    *config.Configuration
	logger    *logger.Logger
	sentry    *sentry.Service

	mu   sync.Mutex
	cron *cron.Cron
}

func NewRunner(
	processor service.StatementProcessor,
	c cache.Cache,
	lock RunLock,
	cfg *config.Configuration,
	log *logger.Logger,
	sentrySvc *sentry.Service,
) *Runner {
	return &Runner{
		processor: processor,
		cache:     c,
		lock:      lock,
		config:    cfg,
		logger:    log,
		sentry:    sentrySvc,
	}
}

// Trigger runs one pass synchronously and returns its summary. It fails with
// an invalid operation error if a pass is already running here or elsewhere.
func (r *Runner) Trigger(ctx context.Context, trigger string) (*dto.ProcessingRunResponse, error) {
	if r.processor.IsRunning() {
		return nil, ierr.NewError("statement processing already running").
			WithHint("A processing pass is already in progress, try again later").
			Mark(ierr.ErrInvalidOperation)
	}

	release, err := r.lock.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release(context.WithoutCancel(ctx))

	ctx, cancel := context.WithTimeout(ctx, r.config.Statement.RunTimeout())
	defer cancel()

	run := &dto.ProcessingRunResponse{
		RunID:     types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PROCESSING_RUN),
		Trigger:   trigger,
		StartedAt: time.Now().UTC(),
	}
	r.logger.Infow("statement processing run started", "run_id", run.RunID, "trigger", trigger)
	r.sentry.AddBreadcrumb("statement_processing", "run started", map[string]interface{}{
		"run_id":  run.RunID,
		"trigger": trigger,
	})

	resp, err := r.processor.ProcessPending(ctx)
	finished := time.Now().UTC()
	run.FinishedAt = &finished

	if err != nil {
		if ierr.IsInvalidOperation(err) {
			// lost the race against another caller, nothing ran
			return nil, err
		}
		run.Error = err.Error()
		r.record(ctx, run)
		r.logger.Errorw("statement processing run failed", "run_id", run.RunID, "error", err)
		r.sentry.CaptureWithTags(err, map[string]string{"run_id": run.RunID, "trigger": trigger})
		return run, err
	}

	run.Processed = resp.Processed
	run.Completed = resp.Completed
	run.Failed = resp.Failed
	if resp.Interrupted {
		run.Error = "interrupted before all pending statements were processed"
	}
	r.record(ctx, run)

	r.logger.Infow("statement processing run finished",
		"run_id", run.RunID,
		"processed", run.Processed,
		"completed", run.Completed,
		"failed", run.Failed,
		"duration", finished.Sub(run.StartedAt),
	)
	return run, nil
}

func (r *Runner) record(ctx context.Context, run *dto.ProcessingRunResponse) {
	r.cache.Set(ctx, cache.GenerateKey(cache.PrefixProcessingRun, run.RunID), run, 0)
	r.cache.Set(ctx, cache.KeyLatestProcessingRun, run, 0)
}

// Status reports whether a pass is running and the last recorded run
func (r *Runner) Status(ctx context.Context) *dto.ProcessingStatusResponse {
	status := &dto.ProcessingStatusResponse{Running: r.processor.IsRunning()}
	if v, ok := r.cache.Get(ctx, cache.KeyLatestProcessingRun); ok {
		if run, ok := v.(*dto.ProcessingRunResponse); ok {
			status.LastRun = run
		}
	}
	return status
}

// GetRun returns a recorded run by id
func (r *Runner) GetRun(ctx context.Context, runID string) (*dto.ProcessingRunResponse, error) {
	v, ok := r.cache.Get(ctx, cache.GenerateKey(cache.PrefixProcessingRun, runID))
	if !ok {
		return nil, ierr.NewErrorf("processing run %s not found", runID).
			WithHint("Processing run not found or expired").
			Mark(ierr.ErrNotFound)
	}
	run, ok := v.(*dto.ProcessingRunResponse)
	if !ok {
		return nil, ierr.NewErrorf("unexpected cache entry for run %s", runID).
			Mark(ierr.ErrSystem)
	}
	return run, nil
}

// ListRuns returns the recorded runs, newest first
func (r *Runner) ListRuns(ctx context.Context) []*dto.ProcessingRunResponse {
	runs := lo.FilterMap(r.cache.List(ctx, cache.PrefixProcessingRun+":"), func(v interface{}, _ int) (*dto.ProcessingRunResponse, bool) {
		run, ok := v.(*dto.ProcessingRunResponse)
		return run, ok
	})
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	return runs
}

// Start registers the cron schedule, if one is configured
func (r *Runner) Start(ctx context.Context) error {
	schedule := r.config.Statement.Schedule
	if schedule == "" {
		r.logger.Infow("statement processing schedule disabled")
		return nil
	}

	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(printfLogger{r.logger})))
	if _, err := c.AddFunc(schedule, r.scheduledRun); err != nil {
		return ierr.WithError(err).
			WithHintf("Invalid statement schedule %q", schedule).
			Mark(ierr.ErrValidation)
	}

	r.mu.Lock()
	r.cron = c
	r.mu.Unlock()

	c.Start()
	r.logger.Infow("statement processing schedule started", "schedule", schedule)
	return nil
}

// Stop halts the schedule and waits for a running scheduled pass
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if closer, ok := r.lock.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (r *Runner) scheduledRun() {
	if _, err := r.Trigger(context.Background(), TriggerSchedule); err != nil {
		r.logger.Warnw("scheduled statement processing did not complete", "error", err)
	}
}

// printfLogger adapts the service logger to cron's printf logger
type printfLogger struct {
	logger *logger.Logger
}

func (l printfLogger) Printf(format string, args ...interface{}) {
	l.logger.Debugf(format, args...)
}
