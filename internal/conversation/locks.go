package conversation

import "sync"

// Locks serializes turn processing per conversation id. Turns for different
// conversations proceed concurrently; turns for the same conversation are
// applied one at a time in arrival order.
type Locks struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func NewLocks() *Locks {
	return &Locks{locks: make(map[string]*entry)}
}

// Acquire blocks until the per-conversation lock is held and returns the
// release function. Entries are reference counted so the map does not grow
// with every conversation ever seen.
func (l *Locks) Acquire(id string) func() {
	l.mu.Lock()
	e, ok := l.locks[id]
	if !ok {
		e = &entry{}
		l.locks[id] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
