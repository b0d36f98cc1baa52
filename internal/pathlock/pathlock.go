// Package pathlock serializes work per file path.
package pathlock

import "sync"

// Table hands out one mutex per path. Entries are dropped when the
// last holder releases them.
type Table struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// New returns an empty Table.
func New() *Table {
	return &Table{locks: make(map[string]*entry)}
}

// Lock blocks until path is free and returns the matching unlock.
func (t *Table) Lock(path string) func() {
	t.mu.Lock()
	l, ok := t.locks[path]
	if !ok {
		l = &entry{}
		t.locks[path] = l
	}
	l.refs++
	t.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		t.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(t.locks, path)
		}
		t.mu.Unlock()
	}
}

// Len returns the number of paths currently locked or waited on.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}
