package rate

import (
	"context"
	"strings"
	"sync"
	"time"
)

const defaultSweepThreshold = 10000

type window struct {
	count int
	start time.Time
	span  time.Duration
}

// Memory is a process-local fixed-window limiter. Each process keeps its own
// view and all state is lost on restart.
type Memory struct {
	mu             sync.Mutex
	entries        map[string]*window
	now            func() time.Time
	sweepThreshold int
}

// MemoryOption configures a [Memory] limiter.
type MemoryOption func(*Memory)

// WithClock overrides the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// WithSweepThreshold sets the entry count above which stale windows are
// pruned during Allow.
func WithSweepThreshold(n int) MemoryOption {
	return func(m *Memory) {
		if n > 0 {
			m.sweepThreshold = n
		}
	}
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries:        make(map[string]*window),
		now:            time.Now,
		sweepThreshold: defaultSweepThreshold,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Allow grants the first hit of a key, and any hit arriving more than window
// after the window opened, by starting a new window with count 1. Inside an
// open window hits are granted while count < limit.
func (m *Memory) Allow(_ context.Context, key string, limit int, win time.Duration) (bool, error) {
	if err := checkArgs(key, limit, win); err != nil {
		return false, err
	}
	key = strings.ToLower(key)

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if len(m.entries) > m.sweepThreshold {
		m.sweepLocked(now)
	}

	w, ok := m.entries[key]
	if !ok || now.Sub(w.start) > win {
		m.entries[key] = &window{count: 1, start: now, span: win}
		return true, nil
	}
	if w.count < limit {
		w.count++
		return true, nil
	}
	return false, nil
}

// Reset forgets key.
func (m *Memory) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, strings.ToLower(key))
	m.mu.Unlock()
	return nil
}

// Len reports the number of tracked keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// sweepLocked drops windows that have closed. Keys of different scopes share
// the map, so each entry is judged by the window it was opened with.
func (m *Memory) sweepLocked(now time.Time) {
	for k, w := range m.entries {
		if now.Sub(w.start) > w.span {
			delete(m.entries, k)
		}
	}
}
