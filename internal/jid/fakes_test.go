package jid

import (
	"context"
	"sync"
	"time"

	"github.com/crawlctl/crawlctl/internal/apperr"
	"github.com/crawlctl/crawlctl/internal/crawler"
	"github.com/crawlctl/crawlctl/internal/job"
)

// fakeStore is an in-memory djsStore, standing in for Postgres in tests.
type fakeStore struct {
	mu   sync.Mutex
	rows map[string]*job.Job
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[string]*job.Job{}}
}

func (f *fakeStore) CreatePending(ctx context.Context, j job.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := j
	f.rows[j.ID] = &cp
	return nil
}

func (f *fakeStore) MarkRunning(ctx context.Context, jobID string, startedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[jobID]
	if !ok {
		return nil
	}
	row.Status = job.EStatus.Running()
	row.StartedAt = &startedAt
	return nil
}

func (f *fakeStore) MarkSucceeded(ctx context.Context, jobID, resultArtifact string, urlsSucceeded, urlsFailed int, executionDurationMs int64, completedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row := f.rows[jobID]
	row.Status = job.EStatus.Succeeded()
	row.ResultArtifact = resultArtifact
	row.UrlsSucceeded = urlsSucceeded
	row.UrlsFailed = urlsFailed
	row.ExecutionDurationMs = executionDurationMs
	row.CompletedAt = &completedAt
	return nil
}

func (f *fakeStore) MarkFailed(ctx context.Context, jobID string, urlsSucceeded, urlsFailed int, executionDurationMs int64, completedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row := f.rows[jobID]
	row.Status = job.EStatus.Failed()
	row.UrlsSucceeded = urlsSucceeded
	row.UrlsFailed = urlsFailed
	row.ExecutionDurationMs = executionDurationMs
	row.CompletedAt = &completedAt
	return nil
}

func (f *fakeStore) Get(ctx context.Context, jobID string) (*job.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[jobID]
	if !ok {
		return nil, apperr.JobNotFound(jobID)
	}
	cp := *row
	return &cp, nil
}

// fakePublisher records every published message and reports whether the
// corresponding durable row already existed at publish time.
type fakePublisher struct {
	mu                  sync.Mutex
	published           []job.TaskMessage
	store               *fakeStore
	rowExistedAtPublish []bool
}

func (f *fakePublisher) Publish(ctx context.Context, msg job.TaskMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, msg)
	if f.store != nil {
		_, err := f.store.Get(ctx, msg.JobID)
		f.rowExistedAtPublish = append(f.rowExistedAtPublish, err == nil)
	}
	return nil
}

// fakeFetcher is a scripted crawler.Fetcher: it "succeeds" every URL
// instantly and reports one progress callback, unless err is set.
type fakeFetcher struct {
	err error
}

func (f *fakeFetcher) Crawl(ctx context.Context, jobID string, urls []string, threads int, onProgress crawler.ProgressFunc) (crawler.Result, error) {
	if f.err != nil {
		return crawler.Result{}, f.err
	}
	if onProgress != nil {
		onProgress(crawler.Progress{Message: "done", UrlsSucceeded: len(urls)})
	}
	return crawler.Result{
		ResultArtifact: "<html>ok</html>",
		UrlsSucceeded:  len(urls),
	}, nil
}

// fakeKV is a minimal in-memory kv.Client, shared by the livestatus,
// ledger, and estimator components jid wires together in tests.
type fakeKV struct {
	mu      sync.Mutex
	strings map[string]string
	sets    map[string]map[string]bool
}

func newFakeKV() *fakeKV {
	return &fakeKV{strings: map[string]string{}, sets: map[string]map[string]bool{}}
}

func (f *fakeKV) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.strings[key], nil
}

func (f *fakeKV) Set(ctx context.Context, key, value string, ttl int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.strings[key] = value
	return nil
}

func (f *fakeKV) Del(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.strings, k)
	}
	return nil
}

func (f *fakeKV) Incr(ctx context.Context, key string) (int64, error) {
	return f.IncrBy(ctx, key, 1)
}

func (f *fakeKV) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := parseInt(f.strings[key]) + delta
	f.strings[key] = formatInt(v)
	return v, nil
}

func (f *fakeKV) DecrByClamped(ctx context.Context, key string, delta int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := parseInt(f.strings[key]) - delta
	if v < 0 {
		v = 0
	}
	f.strings[key] = formatInt(v)
	return v, nil
}

func (f *fakeKV) Expire(ctx context.Context, key string, ttlSeconds int64) error { return nil }

func (f *fakeKV) SAdd(ctx context.Context, key string, member string, ttlSeconds int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sets[key] == nil {
		f.sets[key] = map[string]bool{}
	}
	f.sets[key][member] = true
	return nil
}

func (f *fakeKV) SRem(ctx context.Context, key string, member string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sets[key], member)
	return nil
}

func (f *fakeKV) SCard(ctx context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.sets[key])), nil
}

func (f *fakeKV) PushSample(ctx context.Context, key string, value float64, limit int64) error {
	return nil
}

func (f *fakeKV) Samples(ctx context.Context, key string, limit int64) ([]float64, error) {
	return nil, nil
}

func parseInt(s string) int64 {
	if s == "" {
		return 0
	}
	var n int64
	neg := false
	for i, c := range s {
		if i == 0 && c == '-' {
			neg = true
			continue
		}
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int64(c-'0')
	}
	if neg {
		return -n
	}
	return n
}

func formatInt(v int64) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var digits []byte
	for v > 0 {
		digits = append([]byte{byte('0' + v%10)}, digits...)
		v /= 10
	}
	if neg {
		digits = append([]byte{'-'}, digits...)
	}
	return string(digits)
}
