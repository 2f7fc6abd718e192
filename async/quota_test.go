package async

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuota_AcquireRelease_NeverOverAcquires(t *testing.T) {
	const capacity = int64(100)
	q := NewQuota(capacity)

	var inFlight atomic.Int64
	var maxObserved atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 4; j++ {
				g, err := q.Acquire(context.Background(), 33)
				require.NoError(t, err)

				cur := inFlight.Add(33)
				for {
					prev := maxObserved.Load()
					if cur <= prev || maxObserved.CompareAndSwap(prev, cur) {
						break
					}
				}

				time.Sleep(time.Millisecond)
				inFlight.Add(-33)
				g.Release()
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, maxObserved.Load(), capacity)
	assert.Equal(t, int64(0), inFlight.Load())
	assert.Equal(t, capacity, q.available[0])
}

func TestQuota_Acquire_BlocksUntilReleased(t *testing.T) {
	q := NewQuota(10)

	g1, err := q.Acquire(context.Background(), 8)
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		g2, err := q.Acquire(context.Background(), 5)
		assert.NoError(t, err)
		close(acquired)
		g2.Release()
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire should not have succeeded while first holds 8/10")
	case <-time.After(20 * time.Millisecond):
	}

	g1.Release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquire never unblocked after release")
	}
}

func TestQuota_Acquire_CancelDoesNotDebit(t *testing.T) {
	q := NewQuota(10)
	g, err := q.Acquire(context.Background(), 10)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = q.Acquire(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	g.Release()
	assert.Equal(t, int64(10), q.available[0])
}

func TestQuota_MultiDimension_AllOrNothing(t *testing.T) {
	q := NewQuota(10, 1)

	_, err := q.Acquire(context.Background(), 1, 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = q.Acquire(ctx, 1, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Equal(t, int64(9), q.available[0])
}
