package estimator

import (
	"context"
	"sync"
)

// fakeKV implements only the rolling-sample-list behavior the estimator
// exercises (PushSample/Samples), matching kv.Client's contract: most
// recently pushed first, trimmed to limit.
type fakeKV struct {
	mu      sync.Mutex
	samples map[string][]float64
}

func newFakeKV() *fakeKV {
	return &fakeKV{samples: map[string][]float64{}}
}

func (f *fakeKV) Get(ctx context.Context, key string) (string, error) { return "", nil }
func (f *fakeKV) Set(ctx context.Context, key, value string, ttl int64) error { return nil }
func (f *fakeKV) Del(ctx context.Context, keys ...string) error               { return nil }
func (f *fakeKV) Incr(ctx context.Context, key string) (int64, error)         { return 0, nil }
func (f *fakeKV) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	return 0, nil
}
func (f *fakeKV) DecrByClamped(ctx context.Context, key string, delta int64) (int64, error) {
	return 0, nil
}
func (f *fakeKV) Expire(ctx context.Context, key string, ttlSeconds int64) error { return nil }
func (f *fakeKV) SAdd(ctx context.Context, key, member string, ttlSeconds int64) error {
	return nil
}
func (f *fakeKV) SRem(ctx context.Context, key, member string) error    { return nil }
func (f *fakeKV) SCard(ctx context.Context, key string) (int64, error) { return 0, nil }

func (f *fakeKV) PushSample(ctx context.Context, key string, value float64, limit int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := append([]float64{value}, f.samples[key]...)
	if int64(len(s)) > limit {
		s = s[:limit]
	}
	f.samples[key] = s
	return nil
}

func (f *fakeKV) Samples(ctx context.Context, key string, limit int64) ([]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.samples[key]
	if int64(len(s)) > limit {
		s = s[:limit]
	}
	out := make([]float64, len(s))
	copy(out, s)
	return out, nil
}
