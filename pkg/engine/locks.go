package engine

import "sync"

// providerLocks serializes reconciliation per provider. Concurrent syncs
// of different providers proceed in parallel; a second sync of the same
// provider blocks until the first finishes.
type providerLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newProviderLocks() *providerLocks {
	return &providerLocks{locks: map[string]*sync.Mutex{}}
}

// Lock acquires the per-provider mutex and returns its unlock function.
func (l *providerLocks) Lock(providerID string) func() {
	l.mu.Lock()
	m, ok := l.locks[providerID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[providerID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
