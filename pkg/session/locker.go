package session

import "sync"

// Locker serializes turn processing per session ID. Duplicate webhook
// deliveries for the same session otherwise race on load-mutate-save.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*sync.Mutex)}
}

// Acquire blocks until the session lock is held and returns the release
// function. Locks are created lazily and never removed; the set of live
// sessions is small relative to turn volume.
func (l *Locker) Acquire(sessionID string) func() {
	l.mu.Lock()
	lock, ok := l.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[sessionID] = lock
	}
	l.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}
