package orchestrator

import "sync"

// namedLocks serializes deployments per environment name. Distinct
// environments deploy in parallel.
type namedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newNamedLocks() *namedLocks {
	return &namedLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *namedLocks) lock(name string) (unlock func()) {
	l.mu.Lock()
	m, ok := l.locks[name]
	if !ok {
		m = &sync.Mutex{}
		l.locks[name] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
