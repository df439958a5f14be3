package cronjob

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tgifai/cronturn/internal/config"
	"github.com/tgifai/cronturn/internal/pkg/logs"
)

const (
	tickInterval      = 15 * time.Second
	defaultJobTimeout = 300 * time.Second

	StatusError = "error"
)

var ErrJobNotFound = errors.New("job not found")

// RunFunc executes one fire of a job and reports its terminal status. A
// non-nil error counts towards the job's backoff.
type RunFunc func(ctx context.Context, job Job) (status string, err error)

// Scheduler manages periodic and one-shot jobs, persists them to disk, and
// hands due jobs to a RunFunc.
type Scheduler struct {
	store      *Store
	run        RunFunc
	cfg        config.CronjobConfig
	concurrent chan struct{} // semaphore sized to MaxConcurrentRuns
	now        func() time.Time

	runningMu sync.Mutex
	running   map[string]struct{} // jobIDs fired by the tick loop (singleton guard)

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(cfg config.CronjobConfig, run RunFunc) *Scheduler {
	maxConcurrent := cfg.MaxConcurrentRuns
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	return &Scheduler{
		store:      NewStore(cfg.Store),
		run:        run,
		cfg:        cfg,
		concurrent: make(chan struct{}, maxConcurrent),
		now:        time.Now,
		running:    make(map[string]struct{}),
	}
}

// Load reads the job store and schedules enabled jobs that have no next
// run yet. Start calls it; one-off commands call it directly.
func (s *Scheduler) Load(ctx context.Context) error {
	if err := s.store.Load(); err != nil {
		return fmt.Errorf("load job store: %w", err)
	}
	now := s.now()
	for _, job := range s.store.List() {
		changed := job.State.RunningAtMs != 0
		job.State.RunningAtMs = 0
		if job.Enabled && job.State.NextRunAtMs == 0 {
			next, err := job.Schedule.NextRun(now)
			if err != nil {
				logs.CtxWarn(ctx, "[cronjob] job %s has invalid schedule, disabling: %v", job.ID, err)
				job.Enabled = false
			} else if !next.IsZero() {
				job.State.NextRunAtMs = next.UnixMilli()
			}
			changed = true
		}
		if changed {
			s.store.Update(job)
		}
	}
	return nil
}

// Start loads persisted jobs and begins the scheduling loop.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.Load(ctx); err != nil {
		return err
	}

	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(ctx)
	}()

	logs.CtxInfo(ctx, "[cronjob] scheduler started (jobs=%d, max_concurrent=%d)", len(s.store.List()), cap(s.concurrent))
	return nil
}

// Stop cancels the scheduling loop and waits for in-flight jobs to finish.
func (s *Scheduler) Stop(ctx context.Context) {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		logs.CtxWarn(ctx, "[cronjob] stop timed out waiting for running jobs")
	}

	if err := s.store.Save(); err != nil {
		logs.CtxWarn(ctx, "[cronjob] save store on shutdown: %v", err)
	}
	logs.CtxInfo(ctx, "[cronjob] scheduler stopped")
}

// AddJob validates, schedules and persists a new job. An empty ID is
// filled with a random one.
func (s *Scheduler) AddJob(job Job) (Job, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.SessionTarget == "" {
		job.SessionTarget = SessionIsolated
	}
	if err := job.Validate(); err != nil {
		return job, err
	}

	now := s.now()
	job.CreatedAtMs = now.UnixMilli()
	job.UpdatedAtMs = job.CreatedAtMs
	job.State = State{}
	if job.Enabled {
		next, err := job.Schedule.NextRun(now)
		if err != nil {
			return job, fmt.Errorf("calc initial next run: %w", err)
		}
		if !next.IsZero() {
			job.State.NextRunAtMs = next.UnixMilli()
		}
	}

	if err := s.store.Add(job); err != nil {
		return job, err
	}
	if err := s.store.Save(); err != nil {
		return job, fmt.Errorf("persist job: %w", err)
	}
	return job, nil
}

// RemoveJob removes a job by ID and persists the change.
func (s *Scheduler) RemoveJob(jobID string) error {
	if !s.store.Remove(jobID) {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return s.store.Save()
}

func (s *Scheduler) GetJob(jobID string) (Job, bool) {
	return s.store.Get(jobID)
}

// ListJobs returns all registered jobs ordered by id.
func (s *Scheduler) ListJobs() []Job {
	return s.store.List()
}

// RunNow fires jobID immediately and waits for the run to finish. It
// bypasses the concurrency limit and the singleton guard; runs of the same
// session serialize further down. Disabled jobs run only when force is set.
func (s *Scheduler) RunNow(ctx context.Context, jobID string, force bool) (string, error) {
	job, ok := s.store.Get(jobID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if !job.Enabled && !force {
		return "", fmt.Errorf("job %s is disabled", jobID)
	}
	return s.executeJob(ctx, job)
}

// ---------------------------------------------------------------------------
// internal
// ---------------------------------------------------------------------------

func (s *Scheduler) loop(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	for _, job := range s.store.ListDue(s.now()) {
		if !s.tryAcquire() {
			break // hit concurrency limit, try next tick
		}
		if !s.markRunning(job.ID) {
			s.release()
			continue // singleton: skip if still executing
		}

		j := job
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.release()
			defer s.markNotRunning(j.ID)
			_, _ = s.executeJob(ctx, j)
		}()
	}
}

func (s *Scheduler) executeJob(ctx context.Context, job Job) (status string, err error) {
	timeout := time.Duration(s.cfg.JobTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	ctx, cancel := context.WithTimeout(logs.WithJob(ctx, job.ID), timeout)
	defer cancel()

	start := s.now()
	job.State.RunningAtMs = start.UnixMilli()
	s.store.Update(job)

	defer func() {
		if r := recover(); r != nil {
			logs.CtxError(ctx, "[cronjob] job %s panicked: %v\n%s", job.ID, r, debug.Stack())
			status, err = StatusError, fmt.Errorf("job %s panicked: %v", job.ID, r)
		}
		s.finish(ctx, job.ID, start, status, err)
	}()

	logs.CtxInfo(ctx, "[cronjob] firing job %s (%s)", job.Name, job.ID)
	status, err = s.run(ctx, job)
	if err != nil && status == "" {
		status = StatusError
	}
	return status, err
}

// finish records the outcome on the stored copy of the job, which may have
// been edited while the run was in flight.
func (s *Scheduler) finish(ctx context.Context, jobID string, start time.Time, status string, runErr error) {
	job, ok := s.store.Get(jobID)
	if !ok {
		logs.CtxInfo(ctx, "[cronjob] job %s removed during run", jobID)
		return
	}
	now := s.now()

	job.State.RunningAtMs = 0
	job.State.LastRunAtMs = start.UnixMilli()
	job.State.LastDurationMs = now.Sub(start).Milliseconds()
	job.State.LastStatus = status
	job.State.LastError = ""

	if runErr != nil {
		job.State.LastError = runErr.Error()
		job.State.ConsecutiveErrors++
		logs.CtxWarn(ctx, "[cronjob] job %s finished with %s: %v", jobID, status, runErr)
	} else {
		job.State.ConsecutiveErrors = 0
		logs.CtxInfo(ctx, "[cronjob] job %s finished with %s in %dms", jobID, status, job.State.LastDurationMs)
	}

	if runErr == nil && job.DeleteAfterRun {
		s.store.Remove(jobID)
		s.persist(ctx, jobID)
		return
	}

	switch {
	case job.Schedule.Kind == ScheduleAt:
		job.Enabled = false
		job.State.NextRunAtMs = 0
	case runErr != nil:
		delay := withJitter(backoffDelay(job.State.ConsecutiveErrors))
		job.State.NextRunAtMs = now.Add(delay).UnixMilli()
		logs.CtxWarn(ctx, "[cronjob] job %s backoff %v (errors=%d)", jobID, delay, job.State.ConsecutiveErrors)
	default:
		next, err := job.Schedule.NextRun(now)
		if err != nil {
			logs.CtxWarn(ctx, "[cronjob] reschedule %s failed: %v, disabling", jobID, err)
			job.Enabled = false
			job.State.NextRunAtMs = 0
		} else if next.IsZero() {
			job.Enabled = false
			job.State.NextRunAtMs = 0
		} else {
			job.State.NextRunAtMs = next.UnixMilli()
		}
	}
	s.store.Update(job)
	s.persist(ctx, jobID)
}

func (s *Scheduler) persist(ctx context.Context, jobID string) {
	if err := s.store.Save(); err != nil {
		logs.CtxWarn(ctx, "[cronjob] persist after run %s: %v", jobID, err)
	}
}

// concurrency helpers

func (s *Scheduler) tryAcquire() bool {
	select {
	case s.concurrent <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *Scheduler) release() {
	<-s.concurrent
}

func (s *Scheduler) markRunning(jobID string) bool {
	s.runningMu.Lock()
	defer s.runningMu.Unlock()
	if _, ok := s.running[jobID]; ok {
		return false
	}
	s.running[jobID] = struct{}{}
	return true
}

func (s *Scheduler) markNotRunning(jobID string) {
	s.runningMu.Lock()
	defer s.runningMu.Unlock()
	delete(s.running, jobID)
}
