package ratelimit

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"
)

// UnknownIdentity is the bucket shared by callers the transport cannot identify.
const UnknownIdentity = "unknown"

// Result is the outcome of a Check. RetryAfterSeconds is only set when the call is rejected.
type Result struct {
	Allowed           bool
	RetryAfterSeconds int
	Preset            string
	Count             int
}

type (
	// Observer is notified of every decision (metrics, audit...). It must not block.
	Observer func(preset Preset, res Result)

	Option func(*Limiter)
)

// WithStore makes the limiter count in store. Once store fails for a key, that key is counted
// in the in-process fallback until the fallback window ends.
func WithStore(store Store) Option {
	return func(l *Limiter) { l.store = store }
}

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func WithObserver(obs Observer) Option {
	return func(l *Limiter) { l.observer = obs }
}

// WithStoreErrorHandler is called whenever the configured store fails and the fallback is used.
func WithStoreErrorHandler(fn func(error)) Option {
	return func(l *Limiter) { l.onStoreErr = fn }
}

type Limiter struct {
	store      Store
	fallback   *MemoryStore
	now        func() time.Time
	observer   Observer
	onStoreErr func(error)

	mu       sync.Mutex
	degraded map[string]time.Time // key -> end of its fallback window
}

func New(opts ...Option) *Limiter {
	l := &Limiter{
		fallback: NewMemoryStore(),
		now:      time.Now,
		degraded: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.store == nil {
		l.store = l.fallback
	}
	return l
}

// Check records a call from identity against preset and tells whether it is admitted.
// An empty identity is counted in the UnknownIdentity bucket.
func (l *Limiter) Check(ctx context.Context, identity string, preset Preset) Result {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		identity = UnknownIdentity
	}
	key := preset.Name + ":" + identity
	now := l.now()

	var rec Record
	if l.isDegraded(key, now) {
		rec, _ = l.fallback.Hit(ctx, key, preset, now)
	} else {
		var err error
		if rec, err = l.store.Hit(ctx, key, preset, now); err != nil {
			if l.onStoreErr != nil {
				l.onStoreErr(err)
			}
			rec, _ = l.fallback.Hit(ctx, key, preset, now)
			l.degrade(key, rec.WindowStart.Add(preset.Window))
		}
	}

	res := Result{Allowed: true, Preset: preset.Name, Count: rec.Count}
	if rec.Count > preset.Max {
		res.Allowed = false
		res.RetryAfterSeconds = retryAfter(preset.Window-now.Sub(rec.WindowStart))
	}

	if l.observer != nil {
		l.observer(preset, res)
	}
	return res
}

func (l *Limiter) isDegraded(key string, now time.Time) bool {
	if l.store == Store(l.fallback) {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	until, ok := l.degraded[key]
	if ok && !now.Before(until) {
		delete(l.degraded, key)
		return false
	}
	return ok
}

func (l *Limiter) degrade(key string, until time.Time) {
	l.mu.Lock()
	l.degraded[key] = until
	l.mu.Unlock()
}

// StartJanitor evicts elapsed windows every `every` until ctx is done.
func (l *Limiter) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}

	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				l.Sweep()
			}
		}
	}()
}

// Sweep evicts elapsed windows now and returns how many were evicted.
func (l *Limiter) Sweep() int {
	now := l.now()
	n := l.fallback.Sweep(now)

	l.mu.Lock()
	for key, until := range l.degraded {
		if !now.Before(until) {
			delete(l.degraded, key)
		}
	}
	l.mu.Unlock()

	if sw, ok := l.store.(Sweeper); ok && l.store != Store(l.fallback) {
		n += sw.Sweep(now)
	}
	return n
}

func retryAfter(remaining time.Duration) int {
	secs := int(math.Ceil(remaining.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
