package workflow

import "sync"

// instanceLocks serializes read-modify-write cycles per instance. An entry
// lives only while someone holds or waits for it.
type instanceLocks struct {
	mu    sync.Mutex
	locks map[string]*instanceLock
}

type instanceLock struct {
	mu   sync.Mutex
	refs int
}

func newInstanceLocks() *instanceLocks {
	return &instanceLocks{locks: make(map[string]*instanceLock)}
}

// lock acquires the mutex of instanceID and returns its unlock func.
func (l *instanceLocks) lock(instanceID string) func() {
	l.mu.Lock()

	m, ok := l.locks[instanceID]
	if !ok {
		m = &instanceLock{}
		l.locks[instanceID] = m
	}
	m.refs++
	l.mu.Unlock()

	m.mu.Lock()

	return func() {
		m.mu.Unlock()

		l.mu.Lock()
		defer l.mu.Unlock()

		m.refs--
		if m.refs == 0 {
			delete(l.locks, instanceID)
		}
	}
}
