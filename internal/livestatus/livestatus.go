// Package livestatus implements the Live Status Cache (LSC): a keyed
// write-through channel from worker-side progress reporters to the status
// read path, with a refreshing 1-hour TTL and delete-on-terminal
// semantics.
package livestatus

import (
	"context"
	"encoding/json"

	"github.com/crawlctl/crawlctl/internal/job"
	"github.com/crawlctl/crawlctl/internal/kv"
	"github.com/crawlctl/crawlctl/internal/logging"
)

// Store is the LSC's public surface.
type Store struct {
	kv kv.Client
}

func New(c kv.Client) *Store {
	return &Store{kv: c}
}

// Write carries the full progress snapshot as a single value and refreshes
// the TTL. Call on every progress update during RUNNING; a silent worker
// crash lets the entry expire and status reads fall back to the durable
// store.
func (s *Store) Write(ctx context.Context, jobID string, status job.LiveStatus) error {
	b, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, kv.LiveStatusKey(jobID), string(b), kv.LiveStatusTTLSeconds)
}

// Delete removes the LSC entry for jobID. Called on every terminal write
// to the durable store.
func (s *Store) Delete(ctx context.Context, jobID string) error {
	return s.kv.Del(ctx, kv.LiveStatusKey(jobID))
}

// Read returns the live status for jobID, or (nil, nil) if absent. A
// malformed payload is logged and treated as absent, so callers always
// fall back to the Durable Job Store on a nil result.
func (s *Store) Read(ctx context.Context, jobID string) (*job.LiveStatus, error) {
	raw, err := s.kv.Get(ctx, kv.LiveStatusKey(jobID))
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	var ls job.LiveStatus
	if err := json.Unmarshal([]byte(raw), &ls); err != nil {
		logging.Get().Warn("malformed live status payload, falling back to durable store", "jobId", jobID, "error", err)
		return nil, nil
	}
	return &ls, nil
}
