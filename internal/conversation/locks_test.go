package conversation

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocks_SerializesSameConversation(t *testing.T) {
	locks := NewLocks()

	const goroutines = 50
	counter := 0
	var wg sync.WaitGroup

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locks.Acquire("conv-1")
			defer release()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, goroutines, counter)
}

func TestLocks_DifferentConversationsDoNotBlock(t *testing.T) {
	locks := NewLocks()

	releaseA := locks.Acquire("conv-a")
	defer releaseA()

	done := make(chan struct{})
	go func() {
		release := locks.Acquire("conv-b")
		release()
		close(done)
	}()

	<-done // would deadlock if conv-b waited on conv-a
}

func TestLocks_EntriesAreReleased(t *testing.T) {
	locks := NewLocks()

	release := locks.Acquire("conv-1")
	release()

	locks.mu.Lock()
	defer locks.mu.Unlock()
	assert.Empty(t, locks.locks)
}
