// Package progress tracks asynchronous transfers by id so that an unrelated
// caller can poll them.
//
// A transfer is observed as Queued (10) while it runs, then either Complete
// (100) or Failed (-1). Unknown (0) means no entry exists. Terminal states
// never change; completed entries are dropped after their retention window,
// which defaults to zero, so callers must poll promptly.
package progress

import (
	"sync"
	"time"
)

const (
	Unknown  = 0
	Queued   = 10
	Complete = 100
	Failed   = -1
)

// Status is the tracked state of one transfer.
type Status struct {
	Progress  int       `json:"progress"`
	Kind      string    `json:"kind,omitempty"`
	Rows      int       `json:"rows"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Terminal reports whether s is Complete or Failed.
func (s Status) Terminal() bool {
	return s.Progress == Complete || s.Progress == Failed
}

// Tracker is a concurrency-safe keyed status store.
type Tracker interface {
	Queue(id, kind string)
	SetRows(id string, rows int)
	Complete(id string, rows int)
	Fail(id string, err error)
	Get(id string) int
	Status(id string) (Status, bool)
	Remove(id string)
}

// MemoryTracker keeps statuses in a mutex-guarded map.
type MemoryTracker struct {
	mu                 sync.RWMutex
	entries            map[string]Status
	completedRetention time.Duration
	failedRetention    time.Duration
	now                func() time.Time
}

// NewMemoryTracker returns a tracker that keeps completed entries for
// completedRetention (zero removes them at once) and failed entries until
// a Sweep finds them older than failedRetention (zero or less keeps them).
func NewMemoryTracker(completedRetention, failedRetention time.Duration) *MemoryTracker {
	return &MemoryTracker{
		entries:            make(map[string]Status),
		completedRetention: completedRetention,
		failedRetention:    failedRetention,
		now:                time.Now,
	}
}

// Queue creates the entry for id. An existing entry is left untouched.
func (m *MemoryTracker) Queue(id, kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; ok {
		return
	}
	m.entries[id] = Status{Progress: Queued, Kind: kind, UpdatedAt: m.now()}
}

// SetRows records the rows moved so far by a running transfer.
func (m *MemoryTracker) SetRows(id string, rows int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.entries[id]
	if !ok || s.Terminal() {
		return
	}
	s.Rows = rows
	s.UpdatedAt = m.now()
	m.entries[id] = s
}

// Complete marks a running transfer done. Unknown or already terminal ids
// are ignored.
func (m *MemoryTracker) Complete(id string, rows int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.entries[id]
	if !ok || s.Terminal() {
		return
	}
	if m.completedRetention <= 0 {
		delete(m.entries, id)
		return
	}
	s.Progress = Complete
	s.Rows = rows
	s.UpdatedAt = m.now()
	m.entries[id] = s
}

// Fail marks a running transfer failed and keeps the error text.
// Unknown or already terminal ids are ignored.
func (m *MemoryTracker) Fail(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.entries[id]
	if !ok || s.Terminal() {
		return
	}
	s.Progress = Failed
	if err != nil {
		s.Error = err.Error()
	}
	s.UpdatedAt = m.now()
	m.entries[id] = s
}

// Get returns the progress code for id, Unknown when absent.
func (m *MemoryTracker) Get(id string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entries[id].Progress
}

func (m *MemoryTracker) Status(id string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.entries[id]
	return s, ok
}

func (m *MemoryTracker) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
}

// Len returns the number of tracked entries.
func (m *MemoryTracker) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Sweep drops terminal entries older than their retention window and
// returns how many were removed.
func (m *MemoryTracker) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.entries {
		var keep time.Duration
		switch s.Progress {
		case Complete:
			keep = m.completedRetention
		case Failed:
			if m.failedRetention <= 0 {
				continue
			}
			keep = m.failedRetention
		default:
			continue
		}
		if now.Sub(s.UpdatedAt) >= keep {
			delete(m.entries, id)
			removed++
		}
	}
	return removed
}
