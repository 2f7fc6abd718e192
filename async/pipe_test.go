package async

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipe_SPSC_PreservesOrder(t *testing.T) {
	p := NewPipe[int]()

	go func() {
		for i := 0; i < 1000; i++ {
			p.Send(i)
		}
	}()

	for i := 0; i < 1000; i++ {
		v, err := p.Receive(context.Background())
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
}

func TestPipe_MPMC_NoDoubleDelivery(t *testing.T) {
	const n = 2000
	const consumers = 8
	p := NewPipe[int]()

	go func() {
		for i := 0; i < n; i++ {
			p.Send(i)
		}
	}()

	var mu sync.Mutex
	seen := make(map[int]int, n)
	var wg sync.WaitGroup
	for c := 0; c < consumers; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
				v, err := p.Receive(ctx)
				cancel()
				if err != nil {
					return
				}
				mu.Lock()
				seen[v]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n)
	for v, count := range seen {
		assert.Equalf(t, 1, count, "value %d delivered %d times", v, count)
	}
}

func TestPipe_Receive_TimesOutWhenEmpty(t *testing.T) {
	p := NewPipe[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := p.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPipe_Len_ReflectsQueuedNotWaiters(t *testing.T) {
	p := NewPipe[int]()
	assert.Equal(t, 0, p.Len())
	p.Send(1)
	p.Send(2)
	assert.Equal(t, 2, p.Len())
	_, _ = p.Receive(context.Background())
	assert.Equal(t, 1, p.Len())
}
