package conversation

import (
	"context"
	"sync"
)

// SessionLocks serializes turns per session. Entries are reference counted so
// the map only holds sessions with a turn in flight or waiting.
type SessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	ch   chan struct{}
	refs int
}

func NewSessionLocks() *SessionLocks {
	return &SessionLocks{locks: make(map[string]*sessionLock)}
}

// Lock blocks until the session is free or ctx is done. The returned func
// releases the lock and must be called exactly once.
func (l *SessionLocks) Lock(ctx context.Context, sessionID string) (func(), error) {
	l.mu.Lock()
	entry, ok := l.locks[sessionID]
	if !ok {
		entry = &sessionLock{ch: make(chan struct{}, 1)}
		l.locks[sessionID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(sessionID, entry)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.ch
			l.release(sessionID, entry)
		})
	}, nil
}

func (l *SessionLocks) release(sessionID string, entry *sessionLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, sessionID)
	}
}

// Len reports how many sessions currently hold or wait for a lock.
func (l *SessionLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
