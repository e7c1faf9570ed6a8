package trade

import "sync"

// userLocks hands out one mutex per user id. Entries are reference counted
// and dropped once no caller holds or waits on them.
type userLocks struct {
	mu sync.Mutex
	m  map[string]*userLock
}

type userLock struct {
	sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{m: make(map[string]*userLock)}
}

// lock blocks until the caller owns userID and returns the release func.
func (l *userLocks) lock(userID string) func() {
	l.mu.Lock()
	ul, ok := l.m[userID]
	if !ok {
		ul = &userLock{}
		l.m[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.Lock()
	return func() {
		ul.Unlock()
		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.m, userID)
		}
		l.mu.Unlock()
	}
}

func (l *userLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
