package engine

import (
	"sync"
	"testing"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := newKeyedMutex()

	const workers = 16
	const iterations = 200

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				unlock := km.Lock("session-a")
				counter++
				unlock()
			}
		}()
	}
	wg.Wait()

	if counter != workers*iterations {
		t.Fatalf("counter = %d, want %d", counter, workers*iterations)
	}
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	km := newKeyedMutex()

	// Holding one key must not block another.
	unlockA := km.Lock("a")
	done := make(chan struct{})
	go func() {
		unlock := km.Lock("b")
		unlock()
		close(done)
	}()
	<-done
	unlockA()
}

func TestKeyedMutexReleasesEntries(t *testing.T) {
	km := newKeyedMutex()

	for _, key := range []string{"a", "b", "c"} {
		unlock := km.Lock(key)
		unlock()
	}

	km.mu.Lock()
	defer km.mu.Unlock()
	if len(km.locks) != 0 {
		t.Fatalf("entries left in map = %d, want 0", len(km.locks))
	}
}
