package async

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEvent_Wait_BlocksUntilNotify(t *testing.T) {
	e := NewEvent()

	var wg sync.WaitGroup
	released := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, e.Wait(context.Background()))
		close(released)
	}()

	select {
	case <-released:
		t.Fatal("Wait returned before Notify")
	case <-time.After(10 * time.Millisecond):
	}

	e.Notify()
	wg.Wait()
}

func TestEvent_Notify_WakesLaterWaiters(t *testing.T) {
	e := NewEvent()
	e.Notify()

	for i := 0; i < 5; i++ {
		assert.NoError(t, e.Wait(context.Background()))
	}
}

func TestEvent_Reset_StartsNewGeneration(t *testing.T) {
	e := NewEvent()
	e.Notify()
	assert.NoError(t, e.Wait(context.Background()))

	e.Reset()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, e.Wait(ctx), context.DeadlineExceeded)

	e.Notify()
	assert.NoError(t, e.Wait(context.Background()))
}
