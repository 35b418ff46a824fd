package tasks

import (
	"fmt"
	"sync"
	"time"
)

// Supervisor holds at most one task record per work. Terminal records
// stay visible until the next Create replaces them or the janitor
// discards them after a grace period.
type Supervisor struct {
	mu      sync.Mutex
	tasks   map[string]*Task // keyed by work id
	timeout time.Duration
}

func NewSupervisor(timeout time.Duration) *Supervisor {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Supervisor{
		tasks:   make(map[string]*Task),
		timeout: timeout,
	}
}

// Timeout is the per-task wall-clock cap.
func (s *Supervisor) Timeout() time.Duration { return s.timeout }

// Create registers a new pending task for workID, replacing a terminal
// record. A non-terminal existing task blocks creation.
func (s *Supervisor) Create(workID, userID, question string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.tasks[workID]; ok && !existing.Terminal() {
		return nil, fmt.Errorf("work %s already has task %s in state %s", workID, existing.ID, existing.Status())
	}
	t := newTask(workID, userID, question)
	s.tasks[workID] = t
	return t, nil
}

// Get returns the current task record for workID.
func (s *Supervisor) Get(workID string) (*Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[workID]
	return t, ok
}

// Running returns the task for workID only when it is non-terminal.
func (s *Supervisor) Running(workID string) (*Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[workID]
	if !ok || t.Terminal() {
		return nil, false
	}
	return t, true
}

// GC discards terminal records that ended before now-grace. Returns the
// number removed.
func (s *Supervisor) GC(grace time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-grace)
	removed := 0
	for workID, t := range s.tasks {
		if t.Terminal() && !t.EndedAt().IsZero() && t.EndedAt().Before(cutoff) {
			delete(s.tasks, workID)
			removed++
		}
	}
	return removed
}
