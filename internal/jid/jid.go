// Package jid implements Job Intake & Dispatch (JID): the component that
// accepts new submissions, consumes intaken tasks into the Admission &
// Priority Engine's pending set, and drives the dispatch loop that hands
// executable tasks to the crawl collaborator.
package jid

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/crawlctl/crawlctl/internal/ape"
	"github.com/crawlctl/crawlctl/internal/apperr"
	"github.com/crawlctl/crawlctl/internal/crawler"
	"github.com/crawlctl/crawlctl/internal/estimator"
	"github.com/crawlctl/crawlctl/internal/job"
	"github.com/crawlctl/crawlctl/internal/ledger"
	"github.com/crawlctl/crawlctl/internal/livestatus"
	"github.com/crawlctl/crawlctl/internal/logging"
	"github.com/crawlctl/crawlctl/internal/store"
	"github.com/crawlctl/crawlctl/internal/transport"
)

// SubmitRequest is the validated shape of a new-job request, independent of
// the transport (HTTP, CLI) that produced it.
type SubmitRequest struct {
	Urls      []string
	UserID    string
	Priority  job.Priority
	UserAgent string
}

// djsStore is the subset of *store.Store JID needs. Narrowing to an
// interface here (rather than depending on *store.Store directly) lets
// scenario tests substitute an in-memory fake instead of a live Postgres
// connection.
type djsStore interface {
	CreatePending(ctx context.Context, j job.Job) error
	MarkRunning(ctx context.Context, jobID string, startedAt time.Time) error
	MarkSucceeded(ctx context.Context, jobID, resultArtifact string, urlsSucceeded, urlsFailed int, executionDurationMs int64, completedAt time.Time) error
	MarkFailed(ctx context.Context, jobID string, urlsSucceeded, urlsFailed int, executionDurationMs int64, completedAt time.Time) error
	Get(ctx context.Context, jobID string) (*job.Job, error)
}

// publisher is the subset of *transport.Producer JID needs, narrowed for
// the same testability reason as djsStore.
type publisher interface {
	Publish(ctx context.Context, msg job.TaskMessage) error
}

// Service is JID's public surface: the single object the HTTP API and the
// cobra commands construct once per process and share.
type Service struct {
	store     djsStore
	live      *livestatus.Store
	ledger    *ledger.Ledger
	engine    *ape.Engine
	estimator *estimator.Estimator
	producer  publisher
	fetcher   crawler.Fetcher
	capacity  job.WorkerCapacity
	now       func() time.Time
}

func New(
	djs *store.Store,
	lsc *livestatus.Store,
	rl *ledger.Ledger,
	engine *ape.Engine,
	est *estimator.Estimator,
	producer *transport.Producer,
	fetcher crawler.Fetcher,
	capacity job.WorkerCapacity,
) *Service {
	return newService(djs, lsc, rl, engine, est, producer, fetcher, capacity)
}

// newService is the interface-typed constructor New delegates to. Kept
// separate so package tests can inject in-memory fakes for the store and
// publisher without standing up Postgres or Kafka.
func newService(
	djs djsStore,
	lsc *livestatus.Store,
	rl *ledger.Ledger,
	engine *ape.Engine,
	est *estimator.Estimator,
	producer publisher,
	fetcher crawler.Fetcher,
	capacity job.WorkerCapacity,
) *Service {
	return &Service{
		store:     djs,
		live:      lsc,
		ledger:    rl,
		engine:    engine,
		estimator: est,
		producer:  producer,
		fetcher:   fetcher,
		capacity:  capacity,
		now:       time.Now,
	}
}

// Submit validates the request, mints a job ID, writes the initial
// PENDING row to the Durable Job Store, and publishes the task to the
// work-queue transport. The row is durably written before the publish so
// a status query immediately after submit always finds the job. On a
// publish failure the PENDING row stays behind for the operator to
// reconcile or retry; no consumer will ever pick it up on its own.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*job.Job, error) {
	if len(req.Urls) == 0 {
		return nil, apperr.InvalidInput("Validation failed", "urls must be non-empty")
	}

	jobID := uuid.NewString()
	now := s.now()

	j := job.Job{
		ID:            jobID,
		Status:        job.EStatus.Pending(),
		UrlsSubmitted: len(req.Urls),
		UserID:        req.UserID,
		CreatedAt:     now,
	}
	if err := s.store.CreatePending(ctx, j); err != nil {
		return nil, err
	}

	msg := job.TaskMessage{
		JobID:     jobID,
		Urls:      req.Urls,
		UserID:    req.UserID,
		UserAgent: req.UserAgent,
		Priority:  req.Priority.String(),
	}
	if err := s.producer.Publish(ctx, msg); err != nil {
		logging.Get().Error("failed to publish task after creating pending row", "jobId", jobID, "error", err)
		return nil, err
	}

	return &j, nil
}

// Intake is the transport.Handler consuming task messages: it computes
// the job's ResourceEstimate exactly once and inserts the resulting
// PrioritizedTask into the Admission & Priority Engine's pending set. A
// failure here (before the task enters the pending set) must not
// acknowledge the message, so it is simply returned for
// transport.Consumer.Run to leave uncommitted and redelivered.
func (s *Service) Intake(ctx context.Context, msg job.TaskMessage) error {
	estimate, err := s.estimator.Estimate(ctx, msg.UserID, len(msg.Urls))
	if err != nil {
		return err
	}

	task := &job.PrioritizedTask{
		JobID:      msg.JobID,
		UserID:     msg.UserID,
		UrlCount:   len(msg.Urls),
		Estimate:   estimate,
		Priority:   job.ParsePriority(msg.Priority),
		SubmitTime: s.now(),
		UserAgent:  msg.UserAgent,
	}
	s.engine.Insert(task, msg.Urls)
	return nil
}

// RunDispatchLoop ticks at interval, draining every currently executable
// task from the pending set on each tick and handing it to the crawl
// collaborator. It blocks until ctx is cancelled.
func (s *Service) RunDispatchLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.dispatchTick(ctx)
		}
	}
}

// dispatchTick drains the pending set of every task executable right now.
// Each dispatched task runs in its own goroutine so a slow crawl never
// delays the next tick; a panic in one task's goroutine is recovered and
// turned into a FAILED job rather than crashing the process.
func (s *Service) dispatchTick(ctx context.Context) {
	for {
		task, urls, ok, err := s.engine.NextExecutable(ctx)
		if err != nil {
			logging.Get().Error("dispatch tick failed to evaluate pending set", "error", err)
			return
		}
		if !ok {
			return
		}
		go s.runTask(ctx, task, urls)
	}
}

// runTask executes one dispatched task end to end: ledger registration,
// the RUNNING transition, the crawl itself, and the terminal write.
func (s *Service) runTask(ctx context.Context, task *job.PrioritizedTask, urls []string) {
	defer func() {
		if r := recover(); r != nil {
			logging.Get().Error("dispatched task panicked", "jobId", task.JobID, "panic", fmt.Sprint(r))
			s.finish(ctx, task, 0, len(urls), 0, nil, fmt.Errorf("panic: %v", r))
		}
	}()

	startedAt := s.now()
	if err := s.ledger.RegisterStart(ctx, task.JobID, task.UserID, task.Estimate.EstimatedThreads); err != nil {
		logging.Get().Error("failed to register task start in resource ledger", "jobId", task.JobID, "error", err)
		return
	}
	if err := s.store.MarkRunning(ctx, task.JobID, startedAt); err != nil {
		logging.Get().Error("failed to mark job running", "jobId", task.JobID, "error", err)
		return
	}
	if err := s.live.Write(ctx, task.JobID, job.LiveStatus{
		Status:        job.EStatus.Running(),
		Message:       "crawl started",
		UrlsSubmitted: len(urls),
	}); err != nil {
		logging.Get().Warn("failed to write initial live status", "jobId", task.JobID, "error", err)
	}

	onProgress := func(p crawler.Progress) {
		if err := s.live.Write(ctx, task.JobID, job.LiveStatus{
			Status:        job.EStatus.Running(),
			Message:       p.Message,
			UrlsSubmitted: len(urls),
			UrlsSucceeded: p.UrlsSucceeded,
			UrlsFailed:    p.UrlsFailed,
		}); err != nil {
			logging.Get().Warn("failed to write live status progress", "jobId", task.JobID, "error", err)
		}
	}

	result, err := s.fetcher.Crawl(ctx, task.JobID, urls, task.Estimate.EstimatedThreads, onProgress)
	executionDurationMs := s.now().Sub(startedAt).Milliseconds()
	s.finish(ctx, task, result.UrlsSucceeded, result.UrlsFailed, executionDurationMs, &result, err)
}

// finish performs the terminal bookkeeping: DJS status write, LSC delete,
// and Resource Ledger credit release, in that order, regardless of
// whether the crawl itself succeeded.
func (s *Service) finish(ctx context.Context, task *job.PrioritizedTask, urlsSucceeded, urlsFailed int, executionDurationMs int64, result *crawler.Result, crawlErr error) {
	completedAt := s.now()

	if crawlErr != nil {
		if err := s.store.MarkFailed(ctx, task.JobID, urlsSucceeded, urlsFailed, executionDurationMs, completedAt); err != nil {
			logging.Get().Error("failed to mark job failed", "jobId", task.JobID, "error", err)
		}
	} else {
		artifact := ""
		if result != nil {
			artifact = result.ResultArtifact
		}
		if err := s.store.MarkSucceeded(ctx, task.JobID, artifact, urlsSucceeded, urlsFailed, executionDurationMs, completedAt); err != nil {
			logging.Get().Error("failed to mark job succeeded", "jobId", task.JobID, "error", err)
		}
		if task.UrlCount > 0 {
			durationPerURL := float64(executionDurationMs) / float64(task.UrlCount)
			if err := s.estimator.RecordCompletion(ctx, task.UserID, durationPerURL); err != nil {
				logging.Get().Warn("failed to record completion sample", "jobId", task.JobID, "error", err)
			}
		}
	}

	if err := s.live.Delete(ctx, task.JobID); err != nil {
		logging.Get().Warn("failed to delete live status on completion", "jobId", task.JobID, "error", err)
	}
	if err := s.ledger.ReleaseCredits(ctx, task.JobID, task.UserID, task.Estimate.EstimatedThreads); err != nil {
		logging.Get().Error("failed to release resource ledger credits", "jobId", task.JobID, "error", err)
	}
}

// Status reads the status of jobID, preferring the Live Status Cache and
// falling back to the Durable Job Store when no live entry exists.
func (s *Service) Status(ctx context.Context, jobID string) (*job.LiveStatus, *job.Job, error) {
	live, err := s.live.Read(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	if live != nil {
		return live, nil, nil
	}
	j, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	return nil, j, nil
}

// Result returns the successfully completed job record for jobID:
// JobNotCompleted for any non-SUCCEEDED status (FAILED included), and an
// internal error when a SUCCEEDED row carries no artifact.
func (s *Service) Result(ctx context.Context, jobID string) (*job.Job, error) {
	j, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.Status != job.EStatus.Succeeded() {
		return nil, apperr.JobNotCompleted(jobID)
	}
	if j.ResultArtifact == "" {
		return nil, apperr.Internal("job succeeded but has no result artifact", nil)
	}
	return j, nil
}
