package kv

import "fmt"

// TTLs bound the leak from a crashed worker: a stale running-set entry or
// counter expires within an hour.
const (
	LiveStatusTTLSeconds     = 3600 // 1 hour
	RunningSetTTLSeconds     = 3600 // 1 hour
	ThreadUsageTTLSeconds    = 3600 // 1 hour
	globalEstimatorScopeName = "_global"
)

func LiveStatusKey(jobID string) string {
	return "scraping:job:live:status:" + jobID
}

func RunningJobsKey() string {
	return "crawler:worker:running:jobs"
}

func ThreadUsageKey() string {
	return "crawler:worker:thread:usage"
}

func UserThreadsKey(userID string) string {
	return "crawler:user:threads:" + userID
}

func UserJobsKey(userID string) string {
	return "crawler:user:jobs:" + userID
}

// AvgDurationKey backs the estimator's rolling mean of per-URL durations
// over recently completed jobs. An empty userID scopes to the global
// (unfiltered) list.
func AvgDurationKey(userID string) string {
	scope := userID
	if scope == "" {
		scope = globalEstimatorScopeName
	}
	return fmt.Sprintf("crawler:worker:stats:avg_duration:%s", scope)
}
