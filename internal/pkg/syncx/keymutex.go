// Package syncx holds small concurrency helpers shared by the engines.
package syncx

import "sync"

// KeyMutex serializes work per string key. Locks for distinct keys are
// independent, so operations on different orders (or tips) proceed fully in
// parallel while two operations on the same key never overlap.
//
// Entries are reference-counted and removed when the last holder unlocks,
// so the map does not grow with the total number of keys ever seen.
type KeyMutex struct {
	mu sync.Mutex
	m  map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func NewKeyMutex() *KeyMutex {
	return &KeyMutex{m: make(map[string]*keyLock)}
}

// Lock acquires the lock for key and returns the corresponding unlock
// function. Typical use:
//
//	defer km.Lock(orderID)()
func (km *KeyMutex) Lock(key string) (unlock func()) {
	km.mu.Lock()
	l, ok := km.m[key]
	if !ok {
		l = &keyLock{}
		km.m[key] = l
	}
	l.refs++
	km.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		km.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(km.m, key)
		}
		km.mu.Unlock()
	}
}
