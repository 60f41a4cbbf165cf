// Package estimator computes ResourceEstimates: a rolling mean of per-URL
// duration backing the duration estimate, and a stepwise thread-count
// function of the URL count.
package estimator

import (
	"context"

	"github.com/crawlctl/crawlctl/internal/job"
	"github.com/crawlctl/crawlctl/internal/kv"
)

const (
	defaultDurationPerUrlMs = 2000
	minDurationPerUrlMs     = 100
	maxDurationPerUrlMs     = 30000
	maxEstimatedDurationMs  = 30000
	sampleWindow            = 100 // "100 most recently completed SUCCEEDED jobs"
)

// Estimator is the public surface.
type Estimator struct {
	kv kv.Client
}

func New(c kv.Client) *Estimator {
	return &Estimator{kv: c}
}

// RecordCompletion appends a new executionDurationMs/urlsSubmitted sample
// to both the per-user and global rolling windows, backing future
// estimates. Call once per SUCCEEDED job, never for FAILED ones.
func (e *Estimator) RecordCompletion(ctx context.Context, userID string, durationPerUrlMs float64) error {
	if err := e.kv.PushSample(ctx, kv.AvgDurationKey(""), durationPerUrlMs, sampleWindow); err != nil {
		return err
	}
	if userID == "" {
		return nil
	}
	return e.kv.PushSample(ctx, kv.AvgDurationKey(userID), durationPerUrlMs, sampleWindow)
}

// Estimate computes a ResourceEstimate for a job with urlCount urls,
// optionally scoped to userID's own history.
func (e *Estimator) Estimate(ctx context.Context, userID string, urlCount int) (job.ResourceEstimate, error) {
	durationPerUrl, err := e.durationPerUrlMs(ctx, userID)
	if err != nil {
		return job.ResourceEstimate{}, err
	}

	totalDuration := durationPerUrl * float64(urlCount)
	threads := threadsForURLCount(urlCount)
	resourceScore := 0.6*(float64(threads)/10) + 0.4*minF(1, totalDuration/maxEstimatedDurationMs)

	return job.ResourceEstimate{
		EstimatedThreads:    threads,
		EstimatedDurationMs: int64(totalDuration),
		ResourceScore:       resourceScore,
	}, nil
}

// durationPerUrlMs returns the unweighted mean of the last 100 samples,
// preferring the user-scoped window when it has data, falling back to the
// global window, and finally to the documented default of 2000ms.
func (e *Estimator) durationPerUrlMs(ctx context.Context, userID string) (float64, error) {
	if userID != "" {
		samples, err := e.kv.Samples(ctx, kv.AvgDurationKey(userID), sampleWindow)
		if err != nil {
			return 0, err
		}
		if len(samples) > 0 {
			return clamp(mean(samples), minDurationPerUrlMs, maxDurationPerUrlMs), nil
		}
	}
	samples, err := e.kv.Samples(ctx, kv.AvgDurationKey(""), sampleWindow)
	if err != nil {
		return 0, err
	}
	if len(samples) == 0 {
		return defaultDurationPerUrlMs, nil
	}
	return clamp(mean(samples), minDurationPerUrlMs, maxDurationPerUrlMs), nil
}

// threadsForURLCount steps the thread estimate up with batch size,
// capping at 10.
func threadsForURLCount(urlCount int) int {
	switch {
	case urlCount <= 5:
		return 1
	case urlCount <= 20:
		return minI(3, urlCount/7+1)
	case urlCount <= 50:
		return minI(6, urlCount/10+2)
	default:
		return minI(10, urlCount/10+3)
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func minI(a, b int) int {
	if a < b {
		return a
	}
	return b
}
