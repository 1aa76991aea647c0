package orchestrator

import "sync"

// lockTable hands out mutexes keyed by correlation id. Entries are
// created lazily on first acquisition and removed once the last holder
// releases, so the table never grows beyond the set of ids currently
// being worked on.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*lockEntry)}
}

// Lock acquires the mutex for id, blocking while another goroutine
// holds it. Every Lock must be paired with exactly one Unlock.
func (t *lockTable) Lock(id string) {
	t.mu.Lock()
	entry, ok := t.locks[id]
	if !ok {
		entry = &lockEntry{}
		t.locks[id] = entry
	}
	entry.refs++
	t.mu.Unlock()

	entry.mu.Lock()
}

// Unlock releases the mutex for id and discards the entry when no other
// goroutine holds or waits on it.
func (t *lockTable) Unlock(id string) {
	t.mu.Lock()
	entry := t.locks[id]
	entry.refs--
	if entry.refs == 0 {
		delete(t.locks, id)
	}
	t.mu.Unlock()

	entry.mu.Unlock()
}

// Len reports the number of live entries. Used by tests to verify locks
// are dropped after terminal transitions.
func (t *lockTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}
