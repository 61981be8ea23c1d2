package dispatch

import "sync"

type keyedLock struct {
	mu    sync.Mutex
	refs  int
	owner *keyedMutex
	key   string
}

// keyedMutex hands out one mutex per contact and forgets it when nobody holds
// or waits for it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock blocks until key is free and returns the matching unlock func
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{owner: k, key: key}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return l.unlock
}

func (l *keyedLock) unlock() {
	l.mu.Unlock()

	k := l.owner
	k.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, l.key)
	}
	k.mu.Unlock()
}

// size returns the number of tracked keys
func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
