// Package keylock provides per-key mutual exclusion. The event store uses
// it to serialize appends per aggregate, and the anti-cheat engine to
// serialize telemetry processing per driver; operations on distinct keys
// proceed fully in parallel.
package keylock

import "sync"

// KeyLock is a map of lazily created mutexes keyed by string.
// The zero value is not usable; call New.
type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates an empty KeyLock.
func New() *KeyLock {
	return &KeyLock{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key, creating it on first use.
// Locks are retained for the life of the process; the key space here
// (aggregate ids, driver ids) is bounded by the domain.
func (k *KeyLock) Lock(key string) {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
}

// Unlock releases the mutex for key. It panics if the key was never locked,
// mirroring sync.Mutex semantics.
func (k *KeyLock) Unlock(key string) {
	k.mu.Lock()
	m, ok := k.locks[key]
	k.mu.Unlock()
	if !ok {
		panic("keylock: unlock of never-locked key " + key)
	}
	m.Unlock()
}
