package livestatus

import (
	"context"
	"sync"
)

type fakeKV struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeKV() *fakeKV {
	return &fakeKV{values: map[string]string{}}
}

func (f *fakeKV) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[key], nil
}

func (f *fakeKV) Set(ctx context.Context, key, value string, ttl int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return nil
}

func (f *fakeKV) Del(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.values, k)
	}
	return nil
}

func (f *fakeKV) Incr(ctx context.Context, key string) (int64, error) { return 0, nil }
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
func (f *fakeKV) SRem(ctx context.Context, key, member string) error      { return nil }
func (f *fakeKV) SCard(ctx context.Context, key string) (int64, error)   { return 0, nil }
func (f *fakeKV) PushSample(ctx context.Context, key string, value float64, limit int64) error {
	return nil
}
func (f *fakeKV) Samples(ctx context.Context, key string, limit int64) ([]float64, error) {
	return nil, nil
}
