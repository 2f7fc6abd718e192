package async

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBarrier_ReleasesExactlyAtThreshold(t *testing.T) {
	const n = 8
	b := NewBarrier[int](n)

	var wg sync.WaitGroup
	results := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := b.Await(context.Background(), 42)
			require.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
}

func TestBarrier_ResetsForNextPhase(t *testing.T) {
	b := NewBarrier[int](2)

	var wg sync.WaitGroup
	for phase := 0; phase < 3; phase++ {
		phase := phase
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				v, err := b.Await(context.Background(), phase)
				assert.NoError(t, err)
				assert.Equal(t, phase, v)
			}()
		}
		wg.Wait()
	}
}

func TestBarrier_Await_TimesOut(t *testing.T) {
	b := NewBarrier[int](2)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := b.Await(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBarrier_Release_LowersThreshold(t *testing.T) {
	b := NewBarrier[int](4)

	done := make(chan int, 1)
	go func() {
		v, err := b.Await(context.Background(), 7)
		assert.NoError(t, err)
		done <- v
	}()

	time.Sleep(10 * time.Millisecond)
	b.Release(3, 99)

	select {
	case v := <-done:
		assert.Equal(t, 99, v)
	case <-time.After(time.Second):
		t.Fatal("barrier did not release after Release lowered threshold")
	}
}
