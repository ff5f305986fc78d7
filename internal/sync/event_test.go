package sync

import (
	"sync"
	"testing"
	"time"

	assert_ "github.com/stretchr/testify/assert"
)

func isReady(e *Event) bool {
	select {
	case <-e.Wait():
		return true
	default:
		return false
	}
}

func TestEventSetClear(t *testing.T) {
	assert := assert_.New(t)
	e := NewEvent()
	assert.False(e.IsSet())
	assert.False(isReady(e))

	assert.True(e.Set())
	assert.False(e.Set(), "already set")
	assert.True(e.IsSet())
	assert.True(isReady(e))

	assert.True(e.Clear())
	assert.False(e.Clear(), "already clear")
	assert.False(e.IsSet())
	assert.False(isReady(e))
}

func TestEventReleasesWaiters(t *testing.T) {
	assert := assert_.New(t)
	e := NewEvent()
	var wg sync.WaitGroup
	released := make(chan struct{})
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-e.Wait()
		}()
	}
	go func() {
		wg.Wait()
		close(released)
	}()

	select {
	case <-released:
		assert.Fail("waiters released before Set")
	case <-time.After(100 * time.Millisecond):
	}

	e.Set()
	select {
	case <-released:
	case <-time.After(5 * time.Second):
		assert.Fail("waiters not released by Set")
	}
}
