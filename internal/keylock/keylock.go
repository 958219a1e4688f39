// Package keylock provides mutual exclusion scoped to a (collection, key)
// pair. Entries are reference counted and dropped once no goroutine holds or
// waits for them, so the table does not grow with the keyspace.
package keylock

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// Locker is a table of per-key mutexes. The zero value is ready to use.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

func New() *Locker {
	return &Locker{}
}

// Lock blocks until the caller holds the lock for (collection, key) and
// returns the function that releases it. The release function must be
// called exactly once.
func (l *Locker) Lock(collection, key string) func() {
	name := collection + "/" + key

	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*entry)
	}
	e, ok := l.locks[name]
	if !ok {
		e = &entry{}
		l.locks[name] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, name)
		}
		l.mu.Unlock()
	}
}

// Len reports how many keys currently have holders or waiters.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
