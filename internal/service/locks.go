// Package service implements the battle engine, the threaded comment
// manager and the reward calculator.
package service

import (
	"fmt"
	"sync"
)

// keyedLocks serializes read-modify-write cycles per entity id. Two
// concurrent operations against the same key run one after the other;
// operations against different keys proceed independently. Lock entries are
// reference-counted and dropped once the last holder releases, so the map
// does not grow with the number of entities ever touched.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*entityLock
}

type entityLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[string]*entityLock)}
}

// Lock acquires the lock for key and returns its release function.
func (k *keyedLocks) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &entityLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func battleKey(id uint) string {
	return fmt.Sprintf("battle:%d", id)
}

func commentKey(id uint) string {
	return fmt.Sprintf("comment:%d", id)
}
