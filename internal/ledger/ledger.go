// Package ledger implements the Resource Ledger (RL): cluster-wide
// running-job accounting and per-user sliding-window thread and job
// usage, backed by atomic Redis primitives.
package ledger

import (
	"context"

	"github.com/crawlctl/crawlctl/internal/job"
	"github.com/crawlctl/crawlctl/internal/kv"
	"github.com/crawlctl/crawlctl/internal/logging"
)

// Ledger is the RL's public surface.
type Ledger struct {
	kv         kv.Client
	windowSecs int64
}

func New(c kv.Client, windowSeconds int64) *Ledger {
	return &Ledger{kv: c, windowSecs: windowSeconds}
}

// RegisterStart performs the dispatch-time bookkeeping: adds jobID to the
// running-set, adds threads to the cluster counter, and adds to the
// user's thread/job counters (both TTL'd to the configured window,
// refreshed on every increment).
func (l *Ledger) RegisterStart(ctx context.Context, jobID, userID string, threads int) error {
	if err := l.kv.SAdd(ctx, kv.RunningJobsKey(), jobID, kv.RunningSetTTLSeconds); err != nil {
		return err
	}
	if _, err := l.kv.IncrBy(ctx, kv.ThreadUsageKey(), int64(threads)); err != nil {
		return err
	}
	if err := l.kv.Expire(ctx, kv.ThreadUsageKey(), kv.ThreadUsageTTLSeconds); err != nil {
		return err
	}
	if userID == "" {
		return nil
	}
	if _, err := l.kv.IncrBy(ctx, kv.UserThreadsKey(userID), int64(threads)); err != nil {
		return err
	}
	if err := l.kv.Expire(ctx, kv.UserThreadsKey(userID), l.windowSecs); err != nil {
		return err
	}
	if _, err := l.kv.Incr(ctx, kv.UserJobsKey(userID)); err != nil {
		return err
	}
	return l.kv.Expire(ctx, kv.UserJobsKey(userID), l.windowSecs)
}

// ReleaseCredits performs the completion-time bookkeeping: removes jobID
// from the running-set, releases cluster and per-user thread credits
// (clamped at zero), and never decrements the per-user job counter (it is
// a sliding-window-by-TTL count, not a concurrency gauge).
func (l *Ledger) ReleaseCredits(ctx context.Context, jobID, userID string, threads int) error {
	if err := l.kv.SRem(ctx, kv.RunningJobsKey(), jobID); err != nil {
		return err
	}
	if v, err := l.kv.DecrByClamped(ctx, kv.ThreadUsageKey(), int64(threads)); err != nil {
		return err
	} else if v == 0 {
		logging.Get().Info("cluster thread usage drained to zero", "jobId", jobID)
	}
	if userID == "" {
		return nil
	}
	if _, err := l.kv.DecrByClamped(ctx, kv.UserThreadsKey(userID), int64(threads)); err != nil {
		return err
	}
	return nil
}

// UserUsage reads the current per-user sliding-window usage. The counters
// can never be observed negative: DecrByClamped never writes a negative
// value.
func (l *Ledger) UserUsage(ctx context.Context, userID string) (job.UserUsage, error) {
	threadsRaw, err := l.kv.Get(ctx, kv.UserThreadsKey(userID))
	if err != nil {
		return job.UserUsage{}, err
	}
	jobsRaw, err := l.kv.Get(ctx, kv.UserJobsKey(userID))
	if err != nil {
		return job.UserUsage{}, err
	}
	return job.UserUsage{
		UserID:              userID,
		ThreadsInUse:        atoiOrZero(threadsRaw),
		JobsStartedInWindow: atoiOrZero(jobsRaw),
	}, nil
}

// CurrentResourceStatus snapshots cluster usage: totals from cap,
// used-threads from the cluster counter (falling back to 2x the
// running-set cardinality if the counter key is missing but the
// running-set is non-empty), used-instances sized by the running-set
// cardinality (capped at total instances; a job occupies at most one
// instance slot for accounting purposes), and a utilization rate.
func (l *Ledger) CurrentResourceStatus(ctx context.Context, cap job.WorkerCapacity) (job.WorkerResourceStatus, error) {
	runningCount, err := l.kv.SCard(ctx, kv.RunningJobsKey())
	if err != nil {
		return job.WorkerResourceStatus{}, err
	}

	usedThreadsRaw, err := l.kv.Get(ctx, kv.ThreadUsageKey())
	if err != nil {
		return job.WorkerResourceStatus{}, err
	}
	usedThreads := 0
	if usedThreadsRaw == "" {
		if runningCount > 0 {
			usedThreads = int(runningCount) * 2
		}
	} else {
		usedThreads = atoiOrZero(usedThreadsRaw)
	}

	usedInstances := int(runningCount)
	if usedInstances > cap.TotalInstances {
		usedInstances = cap.TotalInstances
	}

	status := job.WorkerResourceStatus{
		TotalThreads:   cap.TotalThreads(),
		UsedThreads:    usedThreads,
		TotalInstances: cap.TotalInstances,
		UsedInstances:  usedInstances,
	}
	if status.TotalThreads > 0 {
		status.UtilizationRate = float64(status.UsedThreads) / float64(status.TotalThreads)
	}
	return status, nil
}

func atoiOrZero(s string) int {
	if s == "" {
		return 0
	}
	n := 0
	neg := false
	for i, c := range s {
		if i == 0 && c == '-' {
			neg = true
			continue
		}
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	if neg {
		return -n
	}
	return n
}
