// Package ape implements the Admission & Priority Engine: the in-memory
// pending set, the resource/age-blended scoring policy, and the
// quota-and-capacity execution gate.
//
// The pending set is process-wide state, constructed once at process
// start and emptied only by dispatch; nothing drains it on shutdown.
// Intake acknowledges a message as soon as its task is inserted, so tasks
// still pending when the process exits or crashes are lost with it; only
// messages whose intake failed before insertion are redelivered.
package ape

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/crawlctl/crawlctl/internal/job"
	"github.com/crawlctl/crawlctl/internal/ledger"
)

// MaxWaitMs caps the wait-age term: a task that has waited this long
// scores as if it had waited forever.
const MaxWaitMs = 300_000

// Limits is the per-user quota configuration the scoring/gating rules
// check against.
type Limits struct {
	MaxThreadsPerWindow int
	MaxJobsPerWindow    int
}

// Engine is the APE's public surface. One Engine is constructed per
// process; instances do not share state. The transport partitions task
// messages by jobId, so no two processes ever hold the same job.
type Engine struct {
	tasks sync.Map // jobID -> *job.PrioritizedTask
	urls  sync.Map // jobID -> []string

	ledger   *ledger.Ledger
	capacity job.WorkerCapacity
	limits   Limits
	now      func() time.Time // overridable for tests
}

func New(l *ledger.Ledger, capacity job.WorkerCapacity, limits Limits) *Engine {
	return &Engine{
		ledger:   l,
		capacity: capacity,
		limits:   limits,
		now:      time.Now,
	}
}

// Insert adds a newly-intaken task to the pending set. Safe for
// concurrent use.
func (e *Engine) Insert(task *job.PrioritizedTask, urls []string) {
	e.urls.Store(task.JobID, urls)
	e.tasks.Store(task.JobID, task)
}

// Len reports the current pending-set size.
func (e *Engine) Len() int {
	n := 0
	e.tasks.Range(func(_, _ any) bool { n++; return true })
	return n
}

// candidate pairs a task with its freshly computed score, for sorting.
type candidate struct {
	task       *job.PrioritizedTask
	score      float64
	canExecute bool
}

// NextExecutable scans the pending set, scores every task against a
// single snapshot of the Resource Ledger, and atomically removes and
// returns the first executable task in rank order. Returns
// (nil, nil, false, nil) if no task is currently executable.
func (e *Engine) NextExecutable(ctx context.Context) (*job.PrioritizedTask, []string, bool, error) {
	snapshot, err := e.ledger.CurrentResourceStatus(ctx, e.capacity)
	if err != nil {
		return nil, nil, false, err
	}

	userUsageCache := map[string]job.UserUsage{}
	userUsage := func(userID string) (job.UserUsage, error) {
		if userID == "" {
			return job.UserUsage{}, nil
		}
		if u, ok := userUsageCache[userID]; ok {
			return u, nil
		}
		u, err := e.ledger.UserUsage(ctx, userID)
		if err != nil {
			return job.UserUsage{}, err
		}
		userUsageCache[userID] = u
		return u, nil
	}

	var candidates []candidate
	var rangeErr error
	e.tasks.Range(func(_, v any) bool {
		task := v.(*job.PrioritizedTask)
		usage, err := userUsage(task.UserID)
		if err != nil {
			rangeErr = err
			return false
		}
		score, canExecute := e.score(task, snapshot, usage)
		task.PriorityScore = score
		task.CanExecute = canExecute
		candidates = append(candidates, candidate{task: task, score: score, canExecute: canExecute})
		return true
	})
	if rangeErr != nil {
		return nil, nil, false, rangeErr
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score < b.score
		}
		if !a.task.SubmitTime.Equal(b.task.SubmitTime) {
			return a.task.SubmitTime.Before(b.task.SubmitTime)
		}
		return a.task.JobID < b.task.JobID
	})

	for _, c := range candidates {
		if !c.canExecute {
			continue
		}
		// Atomic removal w.r.t. concurrent inserts/removals: only the
		// goroutine that observes exactly this task wins it.
		if !e.tasks.CompareAndDelete(c.task.JobID, c.task) {
			continue // another dispatcher already took (or replaced) it
		}
		urlsAny, _ := e.urls.LoadAndDelete(c.task.JobID)
		urls, _ := urlsAny.([]string)
		return c.task, urls, true, nil
	}
	return nil, nil, false, nil
}

// QuotaOK reports whether a user at usage could start a task needing
// threads more without exceeding either per-window limit. Exposed
// separately so tests can probe the gate without a capacity snapshot.
func (e *Engine) QuotaOK(usage job.UserUsage, threads int) bool {
	return usage.ThreadsInUse+threads <= e.limits.MaxThreadsPerWindow &&
		usage.JobsStartedInWindow < e.limits.MaxJobsPerWindow
}

func (e *Engine) score(task *job.PrioritizedTask, snapshot job.WorkerResourceStatus, usage job.UserUsage) (float64, bool) {
	quotaOK := e.QuotaOK(usage, task.Estimate.EstimatedThreads)
	if !quotaOK {
		return 1000.0, false
	}

	waitNorm := float64(e.now().Sub(task.SubmitTime).Milliseconds()) / MaxWaitMs
	if waitNorm > 1 {
		waitNorm = 1
	}
	if waitNorm < 0 {
		waitNorm = 0
	}

	score := 0.7*task.Estimate.ResourceScore - 0.3*waitNorm + task.Priority.Bias()
	if score < -0.3 {
		score = -0.3
	}

	capacityOK := snapshot.AvailableThreads() >= task.Estimate.EstimatedThreads && snapshot.AvailableInstances() > 0
	return score, capacityOK
}
