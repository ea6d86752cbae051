package checkpoint

import "sync"

// sessionLocker serializes writes per session ID using a refcounted set of
// per-key mutexes, so concurrent Invoke calls for different sessions never
// block each other while same-session writes never interleave.
type sessionLocker struct {
	mu    sync.Mutex
	locks map[string]*refcountedMutex
}

type refcountedMutex struct {
	mu   sync.Mutex
	refs int
}

func newSessionLocker() *sessionLocker {
	return &sessionLocker{locks: make(map[string]*refcountedMutex)}
}

// lock acquires the per-session mutex for sessionID and returns a function
// that releases it and garbage-collects the entry once no other caller
// holds a reference.
func (l *sessionLocker) lock(sessionID string) func() {
	l.mu.Lock()
	rm, ok := l.locks[sessionID]
	if !ok {
		rm = &refcountedMutex{}
		l.locks[sessionID] = rm
	}
	rm.refs++
	l.mu.Unlock()

	rm.mu.Lock()

	return func() {
		rm.mu.Unlock()

		l.mu.Lock()
		rm.refs--
		if rm.refs == 0 {
			delete(l.locks, sessionID)
		}
		l.mu.Unlock()
	}
}
