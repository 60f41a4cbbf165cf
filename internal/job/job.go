package job

import "time"

// Job is the durable record of a submitted crawl batch. It is the shape
// persisted by the Durable Job Store (internal/store) and returned, in
// whole or in part, by every status/result read.
type Job struct {
	ID                  string
	Status              Status
	UrlsSubmitted       int
	UrlsSucceeded       int
	UrlsFailed          int
	UserID              string // empty means anonymous submission
	ResultArtifact      string // non-empty iff Status == SUCCEEDED
	ExecutionDurationMs int64
	CreatedAt           time.Time
	StartedAt           *time.Time
	CompletedAt         *time.Time
}

// TaskMessage is the wire shape published to the work-queue transport at
// submit time and consumed exactly once by JID's intake operation.
type TaskMessage struct {
	JobID  string   `json:"jobId"`
	Urls   []string `json:"urls"`
	UserID string   `json:"userId,omitempty"`

	// UserAgent is carried across the transport onto the pending task; it
	// is never persisted to the Durable Job Store, and the dispatch path
	// does not hand it to the crawl collaborator.
	UserAgent string `json:"userAgent,omitempty"`

	// Priority carries the submitter's advisory hint ("low"/"normal"/
	// "high") across the transport. Empty means normal.
	Priority string `json:"priority,omitempty"`
}

// ResourceEstimate is computed once at intake and never mutated afterward.
type ResourceEstimate struct {
	EstimatedThreads    int // in [1,10]
	EstimatedDurationMs int64
	ResourceScore       float64 // in [0,1]
}

// Priority is a client-supplied advisory hint. It never overrides the
// quota gate and only nudges the score within a small band.
type Priority uint8

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

// ParsePriority parses the REST API's optional "priority" field, defaulting
// to PriorityNormal for an empty or unrecognized value.
func ParsePriority(s string) Priority {
	switch s {
	case "low":
		return PriorityLow
	case "high":
		return PriorityHigh
	default:
		return PriorityNormal
	}
}

// String renders p in the wire form ParsePriority accepts.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityHigh:
		return "high"
	default:
		return "normal"
	}
}

// Bias returns the additive score offset for this priority.
func (p Priority) Bias() float64 {
	switch p {
	case PriorityHigh:
		return -0.05
	case PriorityLow:
		return 0.05
	default:
		return 0
	}
}

// PrioritizedTask is the APE's pending-set record for one job. URLs are
// deliberately not embedded here: they live in a parallel map so that
// sorting the pending set for scoring stays cheap.
type PrioritizedTask struct {
	JobID         string
	UserID        string
	UrlCount      int
	Estimate      ResourceEstimate
	Priority      Priority
	SubmitTime    time.Time
	PriorityScore float64
	CanExecute    bool

	// UserAgent is carried alongside the pending task. It is never
	// scored or persisted, and crawler.Fetcher.Crawl takes no user-agent
	// argument, so it is not passed to the crawl collaborator.
	UserAgent string
}

// LiveStatus is the volatile progress snapshot written by the execution
// driver while a job is RUNNING.
type LiveStatus struct {
	Status        Status `json:"status"`
	Message       string `json:"message"`
	UrlsSubmitted int    `json:"urlsSubmitted"`
	UrlsSucceeded int    `json:"urlsSucceeded"`
	UrlsFailed    int    `json:"urlsFailed"`
}

// WorkerCapacity is process-wide immutable cluster sizing configuration.
type WorkerCapacity struct {
	TotalInstances        int
	MaxThreadsPerInstance int
}

// TotalThreads is the cluster-wide thread budget.
func (w WorkerCapacity) TotalThreads() int {
	return w.TotalInstances * w.MaxThreadsPerInstance
}

// UserUsage is the per-user sliding-window accounting snapshot returned by
// the Resource Ledger's read path.
type UserUsage struct {
	UserID              string
	ThreadsInUse        int
	JobsStartedInWindow int
}

// WorkerResourceStatus is the cluster-wide snapshot the APE scores against.
type WorkerResourceStatus struct {
	TotalThreads    int
	UsedThreads     int
	TotalInstances  int
	UsedInstances   int
	UtilizationRate float64
}

// AvailableThreads reports the remaining cluster thread budget, clamped at zero.
func (w WorkerResourceStatus) AvailableThreads() int {
	if w.TotalThreads <= w.UsedThreads {
		return 0
	}
	return w.TotalThreads - w.UsedThreads
}

// AvailableInstances reports the remaining cluster instance budget, clamped at zero.
func (w WorkerResourceStatus) AvailableInstances() int {
	if w.TotalInstances <= w.UsedInstances {
		return 0
	}
	return w.TotalInstances - w.UsedInstances
}
