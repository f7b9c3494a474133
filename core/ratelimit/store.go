package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Record is the state of one (identity, preset) window after a hit.
type Record struct {
	Count       int
	WindowStart time.Time
}

// Store counts hits. Hit must increment and read the key atomically with respect to other hits on the same key,
// starting a fresh window (Count 1, WindowStart now) when none exists or the stored one has elapsed.
type Store interface {
	Hit(ctx context.Context, key string, preset Preset, now time.Time) (Record, error)
}

// Sweeper is implemented by stores that need stale windows to be evicted.
type Sweeper interface {
	Sweep(now time.Time) int
}

type memoryRecord struct {
	count       int
	windowStart time.Time
	window      time.Duration
}

// MemoryStore is the process-wide in-memory Store. Nothing survives a restart.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*memoryRecord
}

var (
	_ Store   = (*MemoryStore)(nil)
	_ Sweeper = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*memoryRecord)}
}

func (s *MemoryStore) Hit(_ context.Context, key string, preset Preset, now time.Time) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok || now.Sub(rec.windowStart) >= preset.Window {
		rec = &memoryRecord{windowStart: now, window: preset.Window}
		s.records[key] = rec
	}
	rec.count++
	return Record{Count: rec.count, WindowStart: rec.windowStart}, nil
}

// Sweep deletes the records whose window has elapsed and returns how many were deleted.
// Such records would be reset on their next hit anyway.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	for k, rec := range s.records {
		if now.Sub(rec.windowStart) >= rec.window {
			delete(s.records, k)
			n++
		}
	}
	return n
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
