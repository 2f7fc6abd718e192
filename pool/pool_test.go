package pool

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/joeycumines/iris/internal/xerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_SubmitJoin_ExactlyOnce(t *testing.T) {
	p := NewPool(4)
	p.Start()

	var count atomic.Int64
	const n = 1000
	for i := 0; i < n; i++ {
		require.NoError(t, p.Submit(func() { count.Add(1) }, i%4))
	}

	p.Join()

	assert.EqualValues(t, n, count.Load())
	assert.EqualValues(t, 0, p.PendingCount())
}

func TestPool_SubmitAfterTerminate_Errors(t *testing.T) {
	p := NewPool(2)
	p.Start()
	p.Terminate()
	p.wg.Wait()

	err := p.Submit(func() {}, 0)
	assert.ErrorIs(t, err, xerrors.ErrPoolTerminated)
}

func TestPool_PollDelay_WakesOnSubmit(t *testing.T) {
	p := NewPool(1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.PollDelay(1, time.Second)
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, p.Submit(func() {}, 0))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("PollDelay did not wake on submit")
	}
}

func TestPool_Limit_NarrowsPrioritySize(t *testing.T) {
	p := NewPool(4)
	p.Limit(0)
	assert.Equal(t, 4, p.effectivePrioritySize())
	p.Limit(4)
	assert.Equal(t, 1, p.effectivePrioritySize())
}

func TestPool_Cleanup_DrainsWithoutWorkers(t *testing.T) {
	p := NewPool(3)

	var count atomic.Int64
	for i := 0; i < 30; i++ {
		require.NoError(t, p.Submit(func() { count.Add(1) }, i%3))
	}

	for !p.Cleanup() {
	}

	assert.EqualValues(t, 30, count.Load())
}
