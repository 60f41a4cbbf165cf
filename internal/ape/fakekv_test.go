package ape

import (
	"context"
	"fmt"
	"sync"
)

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
	v := atoi(f.strings[key]) + delta
	f.strings[key] = fmt.Sprintf("%d", v)
	return v, nil
}

func (f *fakeKV) DecrByClamped(ctx context.Context, key string, delta int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := atoi(f.strings[key]) - delta
	if v < 0 {
		v = 0
	}
	f.strings[key] = fmt.Sprintf("%d", v)
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

func atoi(s string) int64 {
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
