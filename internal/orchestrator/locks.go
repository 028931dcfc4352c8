package orchestrator

import "sync"

// issueLocks serializes event processing per issue number so that two
// near-simultaneous edits of one issue cannot race to create duplicate
// bot comments. Events for distinct issues run fully concurrently.
//
// Entries are never removed; the map grows with distinct issue numbers,
// which is bounded by human issue-filing cadence.
type issueLocks struct {
	mu    sync.Mutex
	locks map[int]*sync.Mutex
}

func newIssueLocks() *issueLocks {
	return &issueLocks{locks: make(map[int]*sync.Mutex)}
}

func (l *issueLocks) lock(issue int) func() {
	l.mu.Lock()
	m, ok := l.locks[issue]
	if !ok {
		m = &sync.Mutex{}
		l.locks[issue] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
