package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedLocks_SerializesSameKey(t *testing.T) {
	t.Parallel()

	locks := newKeyedLocks()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("battle:1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
}

func TestKeyedLocks_IndependentKeysDoNotBlock(t *testing.T) {
	t.Parallel()

	locks := newKeyedLocks()
	unlockA := locks.Lock("battle:1")

	done := make(chan struct{})
	go func() {
		unlockB := locks.Lock("battle:2")
		unlockB()
		close(done)
	}()

	// The second key must proceed while the first is still held.
	<-done
	unlockA()
}

func TestKeyedLocks_ReleasesEntries(t *testing.T) {
	t.Parallel()

	locks := newKeyedLocks()
	unlock := locks.Lock("comment:9")
	unlock()

	locks.mu.Lock()
	defer locks.mu.Unlock()
	assert.Empty(t, locks.locks, "released keys must not linger in the map")
}
