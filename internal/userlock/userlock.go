// Package userlock serializes work per user id without serializing
// unrelated users.
package userlock

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// Locker is a keyed mutex. Entries are created on demand and dropped once no
// goroutine holds or waits on them, so the map stays bounded by the number of
// users with in-flight work.
type Locker struct {
	mu      sync.Mutex
	entries map[int64]*entry
}

// New returns an empty Locker.
func New() *Locker {
	return &Locker{entries: make(map[int64]*entry)}
}

// Lock blocks until the caller holds userID's lock and returns the matching
// unlock function. The unlock function must be called exactly once.
func (l *Locker) Lock(userID int64) func() {
	l.mu.Lock()
	e, ok := l.entries[userID]
	if !ok {
		e = &entry{}
		l.entries[userID] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			l.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(l.entries, userID)
			}
			l.mu.Unlock()
		})
	}
}

// Held reports how many users currently have a holder or waiter.
func (l *Locker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
